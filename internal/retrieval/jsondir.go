package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource searches JSON files of legal chunks on the local filesystem. It
// is the development and fallback backend when the Vortex database is not
// reachable. Each file holds either one chunk object or an array of them,
// with "content" and "source" keys. Relevance is simple token overlap.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Name implements Source.
func (s *DirSource) Name() string {
	return "json_files"
}

type chunkDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Search scores every chunk in the directory tree against the query and
// returns the top matches. A missing directory yields no chunks rather than
// an error.
func (s *DirSource) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var scored []Chunk
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		docs, err := readChunkFile(path)
		if err != nil {
			// Skip malformed files, keep searching the rest.
			return nil
		}

		for _, doc := range docs {
			if doc.Content == "" {
				continue
			}
			score := overlapScore(queryTokens, tokenize(doc.Content))
			if score <= 0 {
				continue
			}
			source := doc.Source
			if source == "" {
				source = strings.TrimSuffix(filepath.Base(path), ".json")
			}
			scored = append(scored, Chunk{Source: source, Content: doc.Content, Score: score})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.dir, err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

// readChunkFile parses a JSON file holding one chunk or an array of chunks.
func readChunkFile(path string) ([]chunkDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []chunkDoc
	if err := json.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}

	var single chunkDoc
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []chunkDoc{single}, nil
}
