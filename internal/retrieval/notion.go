package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"
)

// NotionSource surfaces supplementary legal facts maintained in a Notion
// workspace. It is optional and disabled unless a token is configured.
// API calls are throttled to Notion's documented 3 req/s.
type NotionSource struct {
	client  *notionapi.Client
	limiter *rate.Limiter
}

// NewNotionSource creates a NotionSource with the given integration token.
func NewNotionSource(token string) *NotionSource {
	return &NotionSource{
		client:  notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
	}
}

// Name implements Source.
func (s *NotionSource) Name() string {
	return "notion"
}

// Search finds workspace pages matching the query and extracts their text.
// Results are scored by Notion's own result order since the search API does
// not expose relevance values.
func (s *NotionSource) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("notion rate limit wait: %w", err)
	}

	resp, err := s.client.Search.Do(ctx, &notionapi.SearchRequest{
		Query:    query,
		PageSize: limit,
		Filter: notionapi.SearchFilter{
			Value:    "page",
			Property: "object",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notion search failed: %w", err)
	}

	var chunks []Chunk
	for i, obj := range resp.Results {
		page, ok := obj.(*notionapi.Page)
		if !ok {
			continue
		}

		content, err := s.pageContent(ctx, page.ID)
		if err != nil || content == "" {
			continue
		}

		source := "Notion"
		if title := pageTitle(page); title != "" {
			source = "Notion: " + title
		}

		chunks = append(chunks, Chunk{
			Source:  source,
			Content: content,
			// Rank-based score: first result scores 1.0, then decays.
			Score: 1.0 / float64(i+1),
		})

		if len(chunks) >= limit {
			break
		}
	}

	return chunks, nil
}

// pageContent fetches a page's blocks and concatenates their plain text.
func (s *NotionSource) pageContent(ctx context.Context, id notionapi.ObjectID) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := s.client.Block.GetChildren(ctx, notionapi.BlockID(id), &notionapi.Pagination{PageSize: 100})
	if err != nil {
		return "", fmt.Errorf("notion get children failed: %w", err)
	}

	var parts []string
	for _, block := range resp.Results {
		if text := blockText(block); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n"), nil
}

// blockText extracts plain text from the block types legal notes use.
func blockText(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return richText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return richText(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		return richText(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		return richText(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		return richText(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		return richText(b.NumberedListItem.RichText)
	case *notionapi.QuoteBlock:
		return richText(b.Quote.RichText)
	default:
		return ""
	}
}

func richText(parts []notionapi.RichText) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.PlainText)
	}
	return sb.String()
}

// pageTitle pulls the title property from a page, if any.
func pageTitle(page *notionapi.Page) string {
	for _, prop := range page.Properties {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return richText(title.Title)
		}
	}
	return ""
}
