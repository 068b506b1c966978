// File path: internal/pipeline/orchestrator_test.go
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nicodishanthj/laptop-insights/internal/config"
	ctxbuilder "github.com/nicodishanthj/laptop-insights/internal/context"
	"github.com/nicodishanthj/laptop-insights/internal/data/artifacts"
	"github.com/nicodishanthj/laptop-insights/internal/history"
	"github.com/nicodishanthj/laptop-insights/internal/llm"
	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
	"github.com/nicodishanthj/laptop-insights/internal/vector"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0, 1}, nil
}

func (e *countingEmbedder) Name() string { return "counting" }

type countingIndex struct {
	inner vector.Index
	calls int
}

func (i *countingIndex) Search(ctx context.Context, v []float32, k int) ([]vector.Hit, error) {
	i.calls++
	return i.inner.Search(ctx, v, k)
}

func (i *countingIndex) Len() int { return i.inner.Len() }

type countingSource struct {
	mu    sync.Mutex
	calls []string
	snaps map[string]sqlite.Snapshot
}

func (s *countingSource) Snapshot(ctx context.Context, sku string) (sqlite.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sku)
	return s.snaps[sku], nil
}

type countingGenerator struct {
	calls      int
	messages   []llm.Message
	completion llm.Completion
	err        error
	deadline   bool
}

func (g *countingGenerator) Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerationConfig) (llm.Completion, error) {
	g.calls++
	g.messages = messages
	_, g.deadline = ctx.Deadline()
	return g.completion, g.err
}

func (g *countingGenerator) Name() string { return "counting" }

type fixture struct {
	embedder  *countingEmbedder
	index     *countingIndex
	source    *countingSource
	generator *countingGenerator
}

func newFixture(t *testing.T, vectors [][]float32) *fixture {
	t.Helper()
	flat, err := vector.NewFlatIndex(2, vectors)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	return &fixture{
		embedder:  &countingEmbedder{},
		index:     &countingIndex{inner: flat},
		source:    &countingSource{snaps: map[string]sqlite.Snapshot{}},
		generator: &countingGenerator{completion: llm.Completion{Text: "Here is the answer."}},
	}
}

func (f *fixture) orchestrator(t *testing.T, records []vector.Record) *Orchestrator {
	t.Helper()
	return f.orchestratorWith(t, records, func(*config.Config) {})
}

func (f *fixture) orchestratorWith(t *testing.T, records []vector.Record, tweak func(*config.Config)) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.TopK = 3
	tweak(&cfg)
	bundle := artifacts.Load(context.Background(), cfg,
		artifacts.WithIndex(f.index),
		artifacts.WithMetadata(vector.NewMetadata(records)),
		artifacts.WithFactSource(f.source),
		artifacts.WithGenerator(f.generator),
		artifacts.WithEmbedder(f.embedder),
	)
	if !bundle.Ready() {
		t.Fatalf("bundle not ready: %v", bundle.Err())
	}
	return New(bundle)
}

func lastPrompt(t *testing.T, g *countingGenerator) string {
	t.Helper()
	if len(g.messages) == 0 {
		t.Fatal("generator received no messages")
	}
	return g.messages[len(g.messages)-1].Content
}

func TestRunEmptyIndexStillSynthesizes(t *testing.T) {
	f := newFixture(t, nil)
	result := f.orchestrator(t, nil).Run(context.Background(), Request{Query: "Which laptop is lightest?"})

	if result.Answer != "Here is the answer." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Passages) != 0 {
		t.Fatalf("expected no passages, got %d", len(result.Passages))
	}
	prompt := lastPrompt(t, f.generator)
	if !strings.Contains(prompt, ctxbuilder.NoSpecsMarker) || !strings.Contains(prompt, ctxbuilder.NoDynamicMarker) {
		t.Fatalf("prompt missing empty markers: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "Which laptop is lightest?") {
		t.Fatalf("prompt must end with the query: %q", prompt)
	}
	if len(f.source.calls) != 0 {
		t.Fatalf("expected no fact lookups, got %v", f.source.calls)
	}
}

func TestRunEmptyIndexFileStillSynthesizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte(`{"vectors":[]}`), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	flat, err := vector.LoadFlatIndex(path)
	if err != nil {
		t.Fatalf("LoadFlatIndex: %v", err)
	}
	f := newFixture(t, nil)
	f.index = &countingIndex{inner: flat}
	result := f.orchestrator(t, nil).Run(context.Background(), Request{Query: "q"})

	if result.Outcome != "ok" {
		t.Fatalf("expected ok outcome, got %s: %s", result.Outcome, result.Answer)
	}
	if f.generator.calls != 1 {
		t.Fatalf("expected one generation call, got %d", f.generator.calls)
	}
	if !strings.Contains(lastPrompt(t, f.generator), ctxbuilder.NoSpecsMarker) {
		t.Fatal("prompt missing empty specifications marker")
	}
}

func TestRunResolvesDistinctSortedSKUs(t *testing.T) {
	vectors := [][]float32{{0, 1}, {0, 2}, {5, 5}}
	records := []vector.Record{
		{SKU: "Z-100", Text: "Z display", SectionTitle: "Display", Citations: []int{4}},
		{SKU: "A-200", Text: "A battery"},
		{SKU: "Z-100", Text: "Z ports"},
	}
	f := newFixture(t, vectors)
	avail := "In Stock"
	f.source.snaps["Z-100"] = sqlite.Snapshot{
		Laptop:      &sqlite.Laptop{SKU: "Z-100", Availability: &avail},
		LatestPrice: &sqlite.PriceRecord{Price: 899.99, Date: "2024-02-01"},
	}
	result := f.orchestrator(t, records).Run(context.Background(), Request{Query: "battery?"})

	if result.Outcome != "ok" {
		t.Fatalf("expected ok outcome, got %s (%v)", result.Outcome, result.Err)
	}
	if len(result.Passages) != 3 || result.Passages[0].SKU != "Z-100" || result.Passages[1].SKU != "A-200" {
		t.Fatalf("unexpected passage order: %+v", result.Passages)
	}
	if len(f.source.calls) != 2 {
		t.Fatalf("expected 2 lookups, got %v", f.source.calls)
	}
	prompt := lastPrompt(t, f.generator)
	a := strings.Index(prompt, "For 'A-200':")
	z := strings.Index(prompt, "For 'Z-100':")
	if a < 0 || z < 0 || a > z {
		t.Fatalf("dynamic facts not rendered in sorted order: %q", prompt)
	}
	if !strings.Contains(prompt, "Latest Price: Unknown Currency 899.99") {
		t.Fatalf("expected latest price in prompt: %q", prompt)
	}
	if !f.generator.deadline {
		t.Fatal("expected generation to run under a request deadline")
	}
	for _, stage := range []string{StageRetrieve, StageFacts, StageFuse, StageSynthesize, StageTotal} {
		if _, ok := result.Timings[stage]; !ok {
			t.Errorf("missing timing for %s", stage)
		}
	}
}

func TestRunNotReadyTouchesNothing(t *testing.T) {
	f := newFixture(t, [][]float32{{0, 1}})
	orch := New(artifacts.NotReady(errors.New("index missing")))
	result := orch.Run(context.Background(), Request{Query: "anything"})

	if result.Answer != NotReadyAnswer {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if result.Passages == nil || len(result.Passages) != 0 {
		t.Fatalf("expected empty passage list, got %+v", result.Passages)
	}
	if result.Outcome != OutcomeNotReady {
		t.Fatalf("unexpected outcome %s", result.Outcome)
	}
	if f.embedder.calls != 0 || f.index.calls != 0 || len(f.source.calls) != 0 || f.generator.calls != 0 {
		t.Fatalf("dependencies touched: embed=%d search=%d facts=%d generate=%d",
			f.embedder.calls, f.index.calls, len(f.source.calls), f.generator.calls)
	}
	if orch.Ready() {
		t.Fatal("orchestrator must not report ready")
	}
}

func TestRunSafetyBlockIsNonFatal(t *testing.T) {
	records := []vector.Record{{SKU: "A", Text: "a"}}
	f := newFixture(t, [][]float32{{0, 1}})
	f.generator.completion = llm.Completion{BlockReason: "SAFETY"}
	result := f.orchestrator(t, records).Run(context.Background(), Request{Query: "q"})

	if !strings.Contains(result.Answer, "SAFETY") {
		t.Fatalf("answer must mention the block reason: %q", result.Answer)
	}
	if result.Outcome != "blocked" {
		t.Fatalf("unexpected outcome %s", result.Outcome)
	}
	if len(result.Passages) != 1 {
		t.Fatalf("passages must still be returned, got %d", len(result.Passages))
	}
}

func TestRunRetrievalFailureShortCircuits(t *testing.T) {
	records := []vector.Record{{SKU: "A", Text: "a"}}
	f := newFixture(t, [][]float32{{0, 1}})
	f.embedder.err = errors.New("embedding service unavailable")
	result := f.orchestrator(t, records).Run(context.Background(), Request{Query: "q"})

	if !strings.HasPrefix(result.Answer, "Error during search: ") {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "embedding service unavailable") {
		t.Fatalf("answer must carry the cause: %q", result.Answer)
	}
	if result.Passages == nil || len(result.Passages) != 0 {
		t.Fatal("expected empty, non-nil passages")
	}
	if result.Outcome != OutcomeRetrievalFailed {
		t.Fatalf("unexpected outcome %s", result.Outcome)
	}
	if f.index.calls != 0 || len(f.source.calls) != 0 || f.generator.calls != 0 {
		t.Fatal("later stages must be skipped")
	}
}

func TestRunWindowsHistory(t *testing.T) {
	records := []vector.Record{{SKU: "A", Text: "a"}}
	f := newFixture(t, [][]float32{{0, 1}})
	turns := make([]history.Turn, 0, 8)
	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "model"
		}
		turns = append(turns, history.Turn{Role: role, Content: string(rune('a' + i))})
	}
	f.orchestrator(t, records).Run(context.Background(), Request{Query: "q", History: turns})

	if len(f.generator.messages) != 6 {
		t.Fatalf("expected 5 history turns plus the prompt, got %d", len(f.generator.messages))
	}
	if f.generator.messages[0].Content != "d" {
		t.Fatalf("expected window to start at the fourth turn, got %q", f.generator.messages[0].Content)
	}
}

func TestRunCancelledContextFailsRetrieval(t *testing.T) {
	records := []vector.Record{{SKU: "A", Text: "a"}}
	f := newFixture(t, [][]float32{{0, 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := f.orchestrator(t, records).Run(ctx, Request{Query: "q"})

	if result.Outcome != OutcomeRetrievalFailed {
		t.Fatalf("expected retrieval failure, got %s", result.Outcome)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected cancellation cause, got %v", result.Err)
	}
	if f.generator.calls != 0 {
		t.Fatal("generation must not run after a failed search")
	}
}

func TestRunCapsHistoryAtMaxTurns(t *testing.T) {
	records := []vector.Record{{SKU: "A", Text: "a"}}
	f := newFixture(t, [][]float32{{0, 1}})
	turns := make([]history.Turn, 0, 10)
	for i := 0; i < 10; i++ {
		turns = append(turns, history.Turn{Role: "user", Content: string(rune('a' + i))})
	}
	orch := f.orchestratorWith(t, records, func(cfg *config.Config) { cfg.HistoryTurns = 8 })
	orch.Run(context.Background(), Request{Query: "q", History: turns})

	if got := len(f.generator.messages) - 1; got != history.MaxTurns {
		t.Fatalf("expected %d history turns, got %d", history.MaxTurns, got)
	}
}
