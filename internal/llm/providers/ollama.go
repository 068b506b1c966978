// File path: internal/llm/providers/ollama.go
package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/nicodishanthj/laptop-insights/internal/common"
)

// OllamaProvider talks to a local Ollama server through langchaingo. Chat
// and embeddings use separate models.
type OllamaProvider struct {
	chat  *ollama.LLM
	embed *ollama.LLM
	model string
}

func NewOllamaProvider(serverURL, chatModel, embedModel string) (*OllamaProvider, error) {
	newLLM := func(model string) (*ollama.LLM, error) {
		opts := []ollama.Option{ollama.WithModel(model)}
		if url := strings.TrimSpace(serverURL); url != "" {
			opts = append(opts, ollama.WithServerURL(url))
		}
		return ollama.New(opts...)
	}
	chat, err := newLLM(chatModel)
	if err != nil {
		return nil, fmt.Errorf("ollama: chat model: %w", err)
	}
	embed, err := newLLM(embedModel)
	if err != nil {
		return nil, fmt.Errorf("ollama: embed model: %w", err)
	}
	common.Logger().Info("llm: Ollama provider configured", "server", serverURL, "chat_model", chatModel, "embed_model", embedModel)
	return &OllamaProvider{chat: chat, embed: embed, model: chatModel}, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (Completion, error) {
	if len(messages) == 0 {
		return Completion{}, ErrNoMessages
	}
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		if msg.Role == RoleModel {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	options := []llms.CallOption{llms.WithTemperature(float64(cfg.Temperature))}
	if cfg.MaxOutputTokens > 0 {
		options = append(options, llms.WithMaxTokens(int(cfg.MaxOutputTokens)))
	}
	common.Logger().Debug("llm: sending ollama request", "model", o.model, "messages", len(messages))
	resp, err := o.chat.GenerateContent(ctx, content, options...)
	if err != nil {
		return Completion{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Completion{}, nil
	}
	return Completion{Text: resp.Choices[0].Content}, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.embed.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vectors[0], nil
}

func (o *OllamaProvider) Name() string {
	return "ollama"
}

var (
	_ Generator = (*OllamaProvider)(nil)
	_ Embedder  = (*OllamaProvider)(nil)
)
