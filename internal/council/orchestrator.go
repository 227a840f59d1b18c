package council

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"thailaw-council/internal/gateway"
	"thailaw-council/internal/retrieval"
	"thailaw-council/pkg/logger"
)

// Invoker is the slice of the model gateway the orchestrator needs.
type Invoker interface {
	Invoke(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (string, error)
	InvokeAll(ctx context.Context, models []string, messages []gateway.Message, timeout time.Duration) map[string]gateway.Result
}

// Retriever supplies context chunks for a query. Retrieval never fails from
// the council's perspective; it only returns fewer or zero chunks.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []retrieval.Chunk
}

// Orchestrator drives one query through the deliberation pipeline:
// RETRIEVING -> STAGE1 -> STAGE2 -> STAGE3 -> DONE, with FAILED reachable
// from any state. Stages are strictly sequential; all concurrency lives
// inside a stage's fan-out.
type Orchestrator struct {
	gw  Invoker
	ret Retriever
	cfg Config
}

// New validates the configuration and creates an Orchestrator.
func New(gw Invoker, ret Retriever, cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid council config: %w", err)
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 120 * time.Second
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = 30 * time.Second
	}
	return &Orchestrator{gw: gw, ret: ret, cfg: cfg}, nil
}

// Config returns the council configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Run executes the full pipeline for one query. emit, when non-nil, receives
// a status event at each stage boundary; the returned Result is the complete
// output bundle. A nil Result means the pipeline reached FAILED.
func (o *Orchestrator) Run(ctx context.Context, query string, emit func(Event)) (*Result, error) {
	send := func(e Event) {
		if emit != nil {
			emit(e)
		}
	}

	// RETRIEVING
	send(Event{Type: "rag_start"})
	chunks := o.ret.Retrieve(ctx, query)
	send(Event{Type: "rag_complete", Data: len(chunks)})

	// Stage-1 message construction has exactly two variants: with retrieved
	// context injected into the system prompt, or the no-context prompt.
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: retrieval.BuildSystemPrompt(chunks)},
		{Role: gateway.RoleUser, Content: query},
	}

	// STAGE 1
	send(Event{Type: "stage1_start"})
	stage1, failures, err := o.runStage1(ctx, messages)
	if err != nil {
		send(Event{Type: "error", Message: "all council members failed"})
		return nil, err
	}
	send(Event{Type: "stage1_complete", Data: stage1})

	// Anonymization: fresh labels in a query-random order, mapping private
	// to this query.
	rng := rand.New(rand.NewSource(rand.Int63()))
	labeled, labelToModel := anonymize(stage1, rng)

	// STAGE 2
	send(Event{Type: "stage2_start"})
	stage2 := o.runStage2(ctx, query, stage1, labeled)
	aggregate := ComputeAggregateRankings(stage2, labelToModel, o.cfg.Members)
	send(Event{
		Type: "stage2_complete",
		Data: stage2,
		Metadata: map[string]interface{}{
			"aggregate_rankings": aggregate,
		},
	})

	// STAGE 3
	send(Event{Type: "stage3_start"})
	stage3, err := o.runStage3(ctx, query, stage1, aggregate, len(chunks) > 0)
	if err != nil {
		send(Event{Type: "error", Message: "chairman synthesis failed"})
		return nil, err
	}
	send(Event{Type: "stage3_complete", Data: stage3})

	return &Result{
		Answer:            stage3.Response,
		Chunks:            chunks,
		Stage1:            stage1,
		Stage1Failures:    failures,
		Stage2:            stage2,
		Stage3:            stage3,
		AggregateRankings: aggregate,
		LabelToModel:      labelToModel,
	}, nil
}

// runStage1 fans the identical message list out to every member under one
// shared deadline. Partial success is success; rate-limited members get one
// delayed retry when configured. Zero successes is the only fatal outcome.
func (o *Orchestrator) runStage1(ctx context.Context, messages []gateway.Message) ([]Stage1Response, []MemberFailure, error) {
	start := time.Now()
	results := o.gw.InvokeAll(ctx, o.cfg.Members, messages, o.cfg.StageTimeout)

	var rateLimited []string
	if o.cfg.RateLimitRetryDelay > 0 {
		for _, model := range o.cfg.Members {
			var rlErr *gateway.RateLimitError
			if res := results[model]; res.Err != nil && errors.As(res.Err, &rlErr) {
				rateLimited = append(rateLimited, model)
			}
		}
	}

	if len(rateLimited) > 0 {
		logger.Info("retrying rate-limited members",
			zap.Strings("models", rateLimited),
			zap.Duration("delay", o.cfg.RateLimitRetryDelay))

		select {
		case <-time.After(o.cfg.RateLimitRetryDelay):
			retried := o.gw.InvokeAll(ctx, rateLimited, messages, o.cfg.StageTimeout)
			for model, res := range retried {
				results[model] = res
			}
		case <-ctx.Done():
		}
	}

	var (
		responses []Stage1Response
		failures  []MemberFailure
	)
	for _, model := range o.cfg.Members {
		res := results[model]
		if res.Err != nil {
			failures = append(failures, MemberFailure{Model: model, Error: res.Err.Error()})
			continue
		}
		responses = append(responses, Stage1Response{
			Model:     model,
			Response:  res.Text,
			LatencyMS: res.Latency.Milliseconds(),
		})
	}

	logger.Info("stage 1 complete",
		zap.Int("responses", len(responses)),
		zap.Int("failures", len(failures)),
		zap.Duration("elapsed", time.Since(start)))

	if len(responses) == 0 {
		return nil, nil, fmt.Errorf("stage 1: %w", ErrAllMembersFailed)
	}

	return responses, failures, nil
}

// runStage2 collects peer rankings from every surviving member. Ranking is
// best-effort: submissions that fail to arrive or fail the permutation check
// are marked invalid and excluded from scoring, and a stage with zero valid
// submissions still succeeds.
func (o *Orchestrator) runStage2(ctx context.Context, query string, stage1 []Stage1Response, labeled []anonymized) []Stage2Ranking {
	prompt := buildRankingPrompt(query, labeled)
	messages := []gateway.Message{{Role: gateway.RoleUser, Content: prompt}}

	rankers := make([]string, 0, len(stage1))
	for _, s := range stage1 {
		rankers = append(rankers, s.Model)
	}

	results := o.gw.InvokeAll(ctx, rankers, messages, o.cfg.StageTimeout)
	labels := labelsOf(labeled)

	var stage2 []Stage2Ranking
	for _, model := range rankers {
		res := results[model]
		if res.Err != nil {
			continue
		}

		parsed := ParseRanking(res.Text)
		valid := IsPermutation(parsed, labels)
		if !valid {
			logger.Warn("discarding ranking submission",
				zap.String("model", model),
				zap.Strings("parsed", parsed))
		}

		stage2 = append(stage2, Stage2Ranking{
			Model:         model,
			Ranking:       res.Text,
			ParsedRanking: parsed,
			Valid:         valid,
		})
	}

	return stage2
}

// runStage3 invokes the chairman, then each configured fallback in order.
// This is the one stage with no partial result: if every candidate fails the
// pipeline fails with ErrChairmanUnavailable.
func (o *Orchestrator) runStage3(ctx context.Context, query string, stage1 []Stage1Response, aggregate []AggregateRanking, hasContext bool) (Stage3Response, error) {
	prompt := buildChairmanPrompt(query, stage1, aggregate, hasContext)
	messages := []gateway.Message{{Role: gateway.RoleUser, Content: prompt}}

	chairmen := append([]string{o.cfg.Chairman}, o.cfg.FallbackChairmen...)

	var lastErr error
	for _, model := range chairmen {
		text, err := o.gw.Invoke(ctx, model, messages, o.cfg.StageTimeout)
		if err != nil {
			logger.Warn("chairman candidate failed",
				zap.String("model", model),
				zap.Error(err))
			lastErr = err
			continue
		}
		return Stage3Response{Model: model, Response: text}, nil
	}

	return Stage3Response{}, fmt.Errorf("stage 3: %w: %v", ErrChairmanUnavailable, lastErr)
}
