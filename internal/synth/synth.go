// File path: internal/synth/synth.go
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/common/telemetry"
	"github.com/nicodishanthj/laptop-insights/internal/history"
	"github.com/nicodishanthj/laptop-insights/internal/llm"
)

// SystemInstruction is prepended to the final user message.
const SystemInstruction = "You are an expert Q&A assistant and recommender for laptop specifications. " +
	"Base your answers *only* on the provided context (static specs, dynamic data) and conversation history. " +
	"Do not use outside knowledge. " +
	"Prioritize dynamic data (price, availability, rating) if relevant to the query. " +
	"When using static specs, cite the 'Citations' number (e.g., [cite: 123]). " +
	"When using dynamic data, state it clearly (e.g., 'The current price is...')."

type Kind string

const (
	KindOK               Kind = "ok"
	KindBlocked          Kind = "blocked"
	KindEmptyUnknown     Kind = "empty_unknown"
	KindGenerationFailed Kind = "generation_failed"
)

// Outcome is the classified result of one generation call.
type Outcome struct {
	Kind   Kind
	Text   string
	Reason string
	Err    error
}

// Display renders the outcome as the answer text returned to callers.
func (o Outcome) Display() string {
	switch o.Kind {
	case KindOK:
		return o.Text
	case KindBlocked:
		return "Error: Content generation blocked by safety filters. Reason: " + o.Reason
	case KindGenerationFailed:
		return fmt.Sprintf("Error during LLM call: %v", o.Err)
	default:
		return "Error: LLM response was empty or blocked for an unknown reason."
	}
}

type Synthesizer struct {
	generator llm.Generator
	config    llm.GenerationConfig
}

func New(generator llm.Generator, cfg llm.GenerationConfig) *Synthesizer {
	return &Synthesizer{generator: generator, config: cfg}
}

// BuildMessages orders the windowed history before the final user message.
// Turns with roles the model does not understand are dropped.
func BuildMessages(fused string, window []history.Turn, query string) []llm.Message {
	messages := make([]llm.Message, 0, len(window)+1)
	for _, turn := range window {
		role, ok := llm.NormalizeRole(turn.Role)
		if !ok {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	prompt := "SYSTEM INSTRUCTIONS: " + SystemInstruction + "\n\n" +
		"CONTEXT FOR YOUR RESPONSE:\n" + fused + "\n--- END CONTEXT ---\n\n" +
		"Based *only* on the CONTEXT provided AND the conversation history (if any), answer this question: " + query
	return append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
}

// Synthesize calls the generator once. Failures are classified into the
// Outcome and never returned as errors.
func (s *Synthesizer) Synthesize(ctx context.Context, fused string, window []history.Turn, query string) Outcome {
	logger := common.Logger()
	start := time.Now()
	outcome := s.generate(ctx, BuildMessages(fused, window, query))
	telemetry.RecordSynthesis(string(outcome.Kind))
	if outcome.Kind == KindOK {
		logger.Info("synth: answer generated", "dur", time.Since(start), "chars", len(outcome.Text))
	} else {
		logger.Warn("synth: generation did not produce an answer", "kind", outcome.Kind, "reason", outcome.Reason, "error", outcome.Err, "dur", time.Since(start))
	}
	return outcome
}

func (s *Synthesizer) generate(ctx context.Context, messages []llm.Message) Outcome {
	if s == nil || s.generator == nil {
		return Outcome{Kind: KindGenerationFailed, Err: fmt.Errorf("generator not configured")}
	}
	completion, err := s.generator.Generate(ctx, messages, s.config)
	if err != nil {
		return Outcome{Kind: KindGenerationFailed, Err: err}
	}
	text := strings.TrimSpace(completion.Text)
	switch {
	case text == "" && completion.BlockReason != "":
		return Outcome{Kind: KindBlocked, Reason: completion.BlockReason}
	case text == "":
		return Outcome{Kind: KindEmptyUnknown}
	default:
		return Outcome{Kind: KindOK, Text: text}
	}
}
