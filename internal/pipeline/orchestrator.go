// File path: internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/common/telemetry"
	ctxbuilder "github.com/nicodishanthj/laptop-insights/internal/context"
	"github.com/nicodishanthj/laptop-insights/internal/data/artifacts"
	"github.com/nicodishanthj/laptop-insights/internal/facts"
	"github.com/nicodishanthj/laptop-insights/internal/history"
	"github.com/nicodishanthj/laptop-insights/internal/llm"
	"github.com/nicodishanthj/laptop-insights/internal/retriever"
	"github.com/nicodishanthj/laptop-insights/internal/synth"
)

// NotReadyAnswer is returned for every request while the artifact bundle is
// not ready.
const NotReadyAnswer = "Error: System components not loaded."

const (
	OutcomeNotReady        = "not_ready"
	OutcomeRetrievalFailed = "retrieval_failed"
)

const (
	StageRetrieve   = "retrieve"
	StageFacts      = "facts"
	StageFuse       = "fuse"
	StageSynthesize = "synthesize"
	StageTotal      = "total"
)

// Request is one chat invocation.
type Request struct {
	Query   string         `json:"query" validate:"required"`
	History []history.Turn `json:"history" validate:"omitempty,dive"`
}

// Result is always produced, even when no answer could be generated.
type Result struct {
	Answer   string              `json:"llm_answer"`
	Passages []retriever.Passage `json:"retrieved_context"`

	// Outcome is the synthesis kind, or OutcomeNotReady/OutcomeRetrievalFailed
	// when the pipeline stopped early.
	Outcome   string                   `json:"-"`
	Synthesis synth.Outcome            `json:"-"`
	Err       error                    `json:"-"`
	Timings   map[string]time.Duration `json:"-"`
}

// Orchestrator runs retrieve, resolve, fuse, window and synthesize in order
// against the handles of one artifact bundle.
type Orchestrator struct {
	bundle *artifacts.Bundle

	topK         int
	historyTurns int
	timeout      time.Duration

	retriever   *retriever.Retriever
	resolver    *facts.Resolver
	fuser       *ctxbuilder.Fuser
	synthesizer *synth.Synthesizer
}

// New wires the stages from bundle. A bundle that is not ready yields an
// orchestrator that answers every request with NotReadyAnswer.
func New(bundle *artifacts.Bundle) *Orchestrator {
	cfg := bundle.Config()
	o := &Orchestrator{
		bundle:       bundle,
		topK:         cfg.TopK,
		historyTurns: cfg.HistoryTurns,
		timeout:      cfg.RequestTimeout,
	}
	if !bundle.Ready() {
		return o
	}
	o.retriever = retriever.New(bundle.Embedder(), bundle.Index(), bundle.Metadata(),
		retriever.WithCacheSize(cfg.EmbedCacheSize))
	o.resolver = facts.NewResolver(bundle.FactSource(), facts.WithConcurrency(cfg.FactConcurrency))
	o.fuser = ctxbuilder.NewFuser(ctxbuilder.Config{MaxPassageRunes: cfg.MaxPassageRunes})
	o.synthesizer = synth.New(bundle.Generator(), llm.GenerationConfig{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
	})
	return o
}

// Ready reports whether requests will reach the pipeline stages.
func (o *Orchestrator) Ready() bool {
	return o != nil && o.bundle.Ready() && o.retriever != nil
}

// Err returns the readiness failure, if any.
func (o *Orchestrator) Err() error {
	if o == nil {
		return artifacts.NotReady(nil).Err()
	}
	return o.bundle.Err()
}

// Run executes the pipeline for req. It never panics on collaborator faults
// and always returns a Result.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	logger := common.Logger()
	began := time.Now()
	if !o.Ready() {
		logger.Warn("pipeline: components not loaded", "error", o.Err())
		telemetry.RecordRequest(OutcomeNotReady)
		return Result{
			Answer:   NotReadyAnswer,
			Passages: []retriever.Passage{},
			Outcome:  OutcomeNotReady,
			Err:      o.Err(),
		}
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ctx, end := telemetry.StartSpan(ctx, "pipeline.run")
	timings := make(map[string]time.Duration, 5)
	mark := func(stage string, start time.Time) {
		d := time.Since(start)
		timings[stage] = d
		telemetry.RecordStage(stage, d)
	}
	logger.Info("pipeline: processing query", "query", req.Query, "history", len(req.History))

	start := time.Now()
	passages, err := o.retriever.Retrieve(ctx, req.Query, o.topK)
	mark(StageRetrieve, start)
	if err != nil {
		logger.Error("pipeline: retrieval failed", "error", err)
		mark(StageTotal, began)
		telemetry.RecordRequest(OutcomeRetrievalFailed)
		end("outcome", OutcomeRetrievalFailed)
		return Result{
			Answer:   fmt.Sprintf("Error during search: %v", err),
			Passages: []retriever.Passage{},
			Outcome:  OutcomeRetrievalFailed,
			Err:      err,
			Timings:  timings,
		}
	}

	start = time.Now()
	skus := retriever.DistinctSKUs(passages)
	dynamic := o.resolver.ResolveAll(ctx, skus)
	mark(StageFacts, start)
	if len(skus) == 0 {
		logger.Debug("pipeline: no skus referenced by retrieved passages")
	}

	start = time.Now()
	fused := o.fuser.Fuse(passages, dynamic)
	mark(StageFuse, start)

	start = time.Now()
	window := history.Window(req.History, o.historyTurns)
	outcome := o.synthesizer.Synthesize(ctx, fused, window, req.Query)
	mark(StageSynthesize, start)

	mark(StageTotal, began)
	telemetry.RecordRequest(string(outcome.Kind))
	end("outcome", outcome.Kind, "passages", len(passages), "skus", len(skus))
	logger.Info("pipeline: completed", "outcome", outcome.Kind, "dur", timings[StageTotal])
	return Result{
		Answer:    outcome.Display(),
		Passages:  passages,
		Outcome:   string(outcome.Kind),
		Synthesis: outcome,
		Err:       outcome.Err,
		Timings:   timings,
	}
}
