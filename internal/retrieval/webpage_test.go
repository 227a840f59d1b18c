package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const testPageHTML = `<!DOCTYPE html>
<html>
<head><title>Thai Contract Law Guide</title><style>body { color: red }</style></head>
<body>
<nav>Home | About | Contact</nav>
<h1>Contract Formation in Thailand</h1>
<p>A contract requires offer and acceptance under the Civil and Commercial Code.</p>
<ul><li>Offer must be definite</li><li>Acceptance must be unconditional</li></ul>
<script>trackVisit();</script>
<footer>Copyright 2026</footer>
</body>
</html>`

func TestPageSourceSearch(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPageHTML))
	}))
	defer server.Close()

	src := NewPageSource([]string{server.URL})

	chunks, err := src.Search(context.Background(), "contract offer acceptance", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	chunk := chunks[0]
	if chunk.Source != "Thai Contract Law Guide" {
		t.Errorf("expected page title as source, got %q", chunk.Source)
	}
	for _, dropped := range []string{"trackVisit", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(chunk.Content, dropped) {
			t.Errorf("extracted text should not contain %q", dropped)
		}
	}
	for _, kept := range []string{"Contract Formation in Thailand", "offer and acceptance", "Offer must be definite"} {
		if !strings.Contains(chunk.Content, kept) {
			t.Errorf("extracted text missing %q", kept)
		}
	}

	// A second search reuses the cached page.
	if _, err := src.Search(context.Background(), "contract acceptance", 10); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&fetches) != 1 {
		t.Errorf("expected 1 fetch, got %d", fetches)
	}
}

func TestPageSourceNoOverlap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPageHTML))
	}))
	defer server.Close()

	src := NewPageSource([]string{server.URL})
	chunks, err := src.Search(context.Background(), "submarine volcanoes", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for unrelated query, got %v", chunks)
	}
}

func TestPageSourceSkipsUnreachablePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewPageSource([]string{server.URL})
	chunks, err := src.Search(context.Background(), "contract law", 10)
	if err != nil {
		t.Fatalf("unreachable page should be skipped, not fail: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %v", chunks)
	}
}
