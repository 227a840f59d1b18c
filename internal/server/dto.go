package server

import (
	"errors"

	"thailaw-council/internal/council"
	"thailaw-council/internal/retrieval"
)

// ChatRequest is the incoming message from the WordPress widget.
type ChatRequest struct {
	Message   string `json:"message" binding:"required,min=1,max=5000"`
	SessionID string `json:"session_id" binding:"max=200"`
}

// SourceCitation is one retrieval source surfaced to the caller.
type SourceCitation struct {
	Source  string `json:"source"`
	Excerpt string `json:"excerpt"`
}

// CouncilMetadata summarizes the council process for the caller.
type CouncilMetadata struct {
	ModelsUsed        []string                   `json:"models_used"`
	Chairman          string                     `json:"chairman"`
	AggregateRankings []council.AggregateRanking `json:"aggregate_rankings"`
}

// ChatResponse is the synchronous chat payload.
type ChatResponse struct {
	Answer          string           `json:"answer"`
	Sources         []SourceCitation `json:"sources"`
	SessionID       string           `json:"session_id"`
	CouncilMetadata CouncilMetadata  `json:"council_metadata"`
}

// SendMessageRequest is the council-UI message body.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessageResponse returns all three stages to the council UI.
type SendMessageResponse struct {
	Stage1   []council.Stage1Response `json:"stage1"`
	Stage2   []council.Stage2Ranking  `json:"stage2"`
	Stage3   council.Stage3Response   `json:"stage3"`
	Metadata StageMetadata            `json:"metadata"`
}

// StageMetadata carries the label mapping and aggregate rankings.
type StageMetadata struct {
	LabelToModel      map[string]string          `json:"label_to_model"`
	AggregateRankings []council.AggregateRanking `json:"aggregate_rankings"`
}

// citationsFrom converts retrieval chunks into citations, truncating each
// excerpt to 200 runes.
func citationsFrom(chunks []retrieval.Chunk) []SourceCitation {
	citations := make([]SourceCitation, 0, len(chunks))
	for _, chunk := range chunks {
		source := chunk.Source
		if source == "" {
			source = "Unknown"
		}
		excerpt := chunk.Content
		if runes := []rune(excerpt); len(runes) > 200 {
			excerpt = string(runes[:200])
		}
		citations = append(citations, SourceCitation{Source: source, Excerpt: excerpt})
	}
	return citations
}

// chatResponseFrom assembles the caller-facing payload from a council result.
func chatResponseFrom(result *council.Result, sessionID string) ChatResponse {
	return ChatResponse{
		Answer:    result.Answer,
		Sources:   citationsFrom(result.Chunks),
		SessionID: sessionID,
		CouncilMetadata: CouncilMetadata{
			ModelsUsed:        result.ModelsUsed(),
			Chairman:          result.Stage3.Model,
			AggregateRankings: result.AggregateRankings,
		},
	}
}

// errorCode maps a pipeline error to a stable internal diagnostic code. The
// user-visible message stays generic.
func errorCode(err error) string {
	switch {
	case errors.Is(err, council.ErrAllMembersFailed):
		return "all_members_failed"
	case errors.Is(err, council.ErrChairmanUnavailable):
		return "chairman_unavailable"
	default:
		return "council_failed"
	}
}
