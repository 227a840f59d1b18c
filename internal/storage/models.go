// Package storage persists conversations as one JSON file per conversation
// id, with writes serialized per id and performed atomically.
package storage

import (
	"time"

	"thailaw-council/internal/council"
	"thailaw-council/internal/retrieval"
)

// Turn is one question/answer exchange: the user query, the retrieval and
// council outputs it produced, and when it happened. Turns are append-only.
type Turn struct {
	Index             int                        `json:"index"`
	Query             string                     `json:"query"`
	Chunks            []retrieval.Chunk          `json:"chunks,omitempty"`
	Stage1            []council.Stage1Response   `json:"stage1"`
	Stage1Failures    []council.MemberFailure    `json:"stage1_failures,omitempty"`
	Stage2            []council.Stage2Ranking    `json:"stage2"`
	Stage3            council.Stage3Response     `json:"stage3"`
	Answer            string                     `json:"answer"`
	AggregateRankings []council.AggregateRanking `json:"aggregate_rankings"`
	CreatedAt         time.Time                  `json:"created_at"`
}

// Conversation is the full record for one conversation id.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Turns     []Turn    `json:"turns"`
}

// Metadata is the listing view of a conversation.
type Metadata struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	TurnCount int       `json:"turn_count"`
}

// TurnFromResult builds a Turn from a council result. Index is assigned by
// the store on append.
func TurnFromResult(query string, result *council.Result) Turn {
	return Turn{
		Query:             query,
		Chunks:            result.Chunks,
		Stage1:            result.Stage1,
		Stage1Failures:    result.Stage1Failures,
		Stage2:            result.Stage2,
		Stage3:            result.Stage3,
		Answer:            result.Answer,
		AggregateRankings: result.AggregateRankings,
		CreatedAt:         time.Now().UTC(),
	}
}
