package retrieval

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptWithContext(t *testing.T) {
	chunks := []Chunk{
		{Source: "Civil Code s.420", Content: "wrongful act text"},
		{Source: "", Content: "unattributed text"},
	}

	prompt := BuildSystemPrompt(chunks)

	if !strings.Contains(prompt, "[Document 1] (Source: Civil Code s.420)") {
		t.Error("missing first document header")
	}
	if !strings.Contains(prompt, "[Document 2] (Source: Unknown)") {
		t.Error("missing Unknown fallback for empty source")
	}
	if !strings.Contains(prompt, "wrongful act text") {
		t.Error("missing chunk content")
	}
	if !strings.Contains(prompt, "Retrieved Legal Documents") {
		t.Error("missing context preamble")
	}
}

func TestBuildSystemPromptWithoutContext(t *testing.T) {
	prompt := BuildSystemPrompt(nil)

	if !strings.Contains(prompt, "No specific legal documents were retrieved") {
		t.Error("expected the no-context prompt")
	}
	if strings.Contains(prompt, "[Document") {
		t.Error("no-context prompt should not contain document blocks")
	}
}

func TestOverlapScore(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		content string
		want    float64
	}{
		{"full overlap", "contract law", "contract law basics", 1.0},
		{"half overlap", "contract law", "law of the sea", 0.5},
		{"no overlap", "contract law", "marine biology", 0.0},
		{"case insensitive", "CONTRACT", "contract terms", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlapScore(tokenize(tt.query), tokenize(tt.content))
			if got != tt.want {
				t.Errorf("overlapScore(%q, %q) = %f, want %f", tt.query, tt.content, got, tt.want)
			}
		})
	}
}

func TestOverlapScoreEmptyQuery(t *testing.T) {
	if got := overlapScore(tokenize(""), tokenize("anything")); got != 0 {
		t.Errorf("empty query should score 0, got %f", got)
	}
}
