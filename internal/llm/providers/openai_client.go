// File path: internal/llm/providers/openai_client.go
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nicodishanthj/laptop-insights/internal/common"
)

type OpenAIProvider struct {
	client     openai.Client
	chatModel  string
	embedModel string
}

// NewOpenAIProvider builds a client for the OpenAI API or any compatible
// endpoint.
func NewOpenAIProvider(apiKey, endpoint, chatModel, embedModel string, timeout time.Duration) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingCredential)
	}
	logger := common.Logger()
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		logger.Info("llm: configuring OpenAI client with custom endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	logger.Info("llm: OpenAI provider configured", "chat_model", chatModel, "embed_model", embedModel)
	return &OpenAIProvider{client: openai.NewClient(opts...), chatModel: chatModel, embedModel: embedModel}, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (Completion, error) {
	if len(messages) == 0 {
		return Completion{}, ErrNoMessages
	}
	logger := common.Logger()
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.chatModel),
		Temperature: openai.Float(float64(cfg.Temperature)),
	}
	if cfg.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(cfg.MaxOutputTokens))
	}
	for _, msg := range messages {
		if msg.Role == RoleModel {
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
			continue
		}
		params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
	}
	logger.Debug("llm: sending chat completion request", "model", o.chatModel, "messages", len(messages))
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, nil
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" && strings.TrimSpace(choice.Message.Content) == "" {
		return Completion{BlockReason: "SAFETY"}, nil
	}
	return Completion{Text: choice.Message.Content}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(o.embedModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	values := resp.Data[0].Embedding
	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

var (
	_ Generator = (*OpenAIProvider)(nil)
	_ Embedder  = (*OpenAIProvider)(nil)
)
