// Package council implements the three-stage deliberation pipeline: parallel
// generation by every council member, anonymized peer ranking, and chairman
// synthesis.
package council

import (
	"errors"
	"time"

	"thailaw-council/internal/retrieval"
)

// Pipeline-fatal conditions. Member-level failures are absorbed at stage
// boundaries and never surface as these.
var (
	// ErrAllMembersFailed means Stage 1 produced zero usable responses.
	ErrAllMembersFailed = errors.New("all council members failed to respond")

	// ErrChairmanUnavailable means the chairman and every configured
	// fallback failed, so there is no synthesizer for Stage 3.
	ErrChairmanUnavailable = errors.New("chairman model unavailable")
)

// State names the orchestrator's position in the pipeline.
type State string

const (
	StateRetrieving State = "retrieving"
	StateStage1     State = "stage1"
	StateStage2     State = "stage2"
	StateStage3     State = "stage3"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Config is the council's membership and timing, fixed at process start.
type Config struct {
	// Members is the ordered list of model identifiers queried in Stage 1
	// and Stage 2. Order is also the deterministic tie-break for aggregate
	// rankings.
	Members []string

	// Chairman synthesizes the final answer in Stage 3.
	Chairman string

	// FallbackChairmen are attempted in order if the chairman fails.
	FallbackChairmen []string

	// TitleModel generates conversation titles; a fast, cheap model.
	TitleModel string

	// StageTimeout is the shared wall-clock deadline for all calls within
	// one stage.
	StageTimeout time.Duration

	// TitleTimeout bounds title generation.
	TitleTimeout time.Duration

	// RateLimitRetryDelay is how long to wait before the single Stage-1
	// retry of a rate-limited member. Zero disables the retry.
	RateLimitRetryDelay time.Duration
}

// Validate checks the configuration once at startup.
func (c Config) Validate() error {
	if len(c.Members) == 0 {
		return errors.New("council requires at least one member model")
	}
	// Ranking labels are single letters A-Z, so membership is capped at 26.
	if len(c.Members) > 26 {
		return errors.New("council supports at most 26 members")
	}
	if c.Chairman == "" {
		return errors.New("council requires a chairman model")
	}
	seen := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		if m == "" {
			return errors.New("council member model id must not be empty")
		}
		if _, dup := seen[m]; dup {
			return errors.New("duplicate council member: " + m)
		}
		seen[m] = struct{}{}
	}
	return nil
}

// Stage1Response is one member's answer from Stage 1.
type Stage1Response struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	LatencyMS int64  `json:"latency_ms"`
}

// MemberFailure records a member excluded during Stage 1. Surfaced only in
// metadata, never as a pipeline error.
type MemberFailure struct {
	Model string `json:"model"`
	Error string `json:"error"`
}

// Stage2Ranking is one member's peer-ranking submission. Valid is false when
// the parsed list is not a permutation of the anonymized labels; invalid
// submissions are kept for audit but contribute nothing to aggregate scores.
type Stage2Ranking struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
	Valid         bool     `json:"valid"`
}

// Stage3Response is the chairman's synthesis.
type Stage3Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// AggregateRanking is a member's mean rank position across all valid
// submissions that ranked it. Lower is better.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Result is the full output bundle of one council run. It is both the
// response payload and the persisted turn content.
type Result struct {
	Answer            string             `json:"answer"`
	Chunks            []retrieval.Chunk  `json:"chunks"`
	Stage1            []Stage1Response   `json:"stage1"`
	Stage1Failures    []MemberFailure    `json:"stage1_failures,omitempty"`
	Stage2            []Stage2Ranking    `json:"stage2"`
	Stage3            Stage3Response     `json:"stage3"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
	LabelToModel      map[string]string  `json:"label_to_model"`
}

// ModelsUsed lists the members that contributed a Stage-1 answer, in the
// order they appear in the result.
func (r *Result) ModelsUsed() []string {
	models := make([]string, 0, len(r.Stage1))
	for _, s := range r.Stage1 {
		models = append(models, s.Model)
	}
	return models
}

// Event is a status notification emitted at stage boundaries during a
// streaming run.
type Event struct {
	Type     string      `json:"type"`
	Data     interface{} `json:"data,omitempty"`
	Metadata interface{} `json:"metadata,omitempty"`
	Message  string      `json:"message,omitempty"`
}
