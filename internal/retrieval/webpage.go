package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// HTTP timeout for each page fetch
	pageFetchTimeout = 30 * time.Second

	// User agent for page requests
	pageUserAgent = "ThaiLawCouncil-Retriever/1.0"
)

// PageSource retrieves context from a fixed set of published reference pages,
// e.g. the site's own English translations of Thai statutes. Pages are
// fetched once per process and kept in memory; relevance against a query is
// token overlap over the extracted article text.
type PageSource struct {
	urls   []string
	client *http.Client

	pages *pageCache
}

type fetchedPage struct {
	url   string
	title string
	text  string
}

// NewPageSource creates a PageSource over the given URLs.
func NewPageSource(urls []string) *PageSource {
	return &PageSource{
		urls:   urls,
		client: &http.Client{Timeout: pageFetchTimeout},
		pages:  newPageCache(),
	}
}

// Name implements Source.
func (s *PageSource) Name() string {
	return "reference_pages"
}

// Search scores every configured page against the query and returns matching
// pages as chunks, best first. Pages that cannot be fetched are skipped.
func (s *PageSource) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	for _, url := range s.urls {
		page, ok := s.pages.Get(url)
		if !ok {
			fetched, err := s.fetchPage(ctx, url)
			if err != nil {
				continue
			}
			s.pages.Set(url, fetched)
			page = fetched
		}

		score := overlapScore(queryTokens, tokenize(page.text))
		if score <= 0 {
			continue
		}

		source := page.title
		if source == "" {
			source = page.url
		}
		chunks = append(chunks, Chunk{Source: source, Content: page.text, Score: score})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	if len(chunks) > limit {
		chunks = chunks[:limit]
	}

	return chunks, nil
}

// fetchPage downloads a page and extracts its readable text.
func (s *PageSource) fetchPage(ctx context.Context, url string) (fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fetchedPage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", pageUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return fetchedPage{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fetchedPage{}, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fetchedPage{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return fetchedPage{
		url:   url,
		title: strings.TrimSpace(doc.Find("title").First().Text()),
		text:  extractArticleText(doc),
	}, nil
}

// extractArticleText pulls the main textual content of a page: headings,
// paragraphs, and list items, with scripts and styles dropped.
func extractArticleText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, p, li, dd, dt").Each(func(i int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		// Drop nbsp artifacts common in CMS output.
		text = strings.TrimSpace(strings.ReplaceAll(text, "\u00a0", " "))
		if text != "" {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, "\n")
}

// pageCache holds fetched pages for the lifetime of the process.
type pageCache struct {
	mu    sync.RWMutex
	pages map[string]fetchedPage
}

func newPageCache() *pageCache {
	return &pageCache{pages: make(map[string]fetchedPage)}
}

func (c *pageCache) Get(url string) (fetchedPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.pages[url]
	return page, ok
}

func (c *pageCache) Set(url string, page fetchedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[url] = page
}
