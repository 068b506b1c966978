// File path: internal/llm/providers/gemini.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nicodishanthj/laptop-insights/internal/common"
)

// GeminiProvider serves both generation and embeddings from one genai
// client.
type GeminiProvider struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

func NewGeminiProvider(ctx context.Context, apiKey, chatModel, embedModel string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredential)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	common.Logger().Info("llm: Gemini provider configured", "chat_model", chatModel, "embed_model", embedModel)
	return &GeminiProvider{client: client, chatModel: chatModel, embedModel: embedModel}, nil
}

// Generate replays all but the last message as chat history and sends the
// last one. Blocked prompts or candidates come back as a Completion with a
// BlockReason.
func (g *GeminiProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (Completion, error) {
	if len(messages) == 0 {
		return Completion{}, ErrNoMessages
	}
	logger := common.Logger()
	model := g.client.GenerativeModel(g.chatModel)
	model.SetTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	model.SafetySettings = permissiveSafety()

	session := model.StartChat()
	for _, msg := range messages[:len(messages)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  msg.Role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	last := messages[len(messages)-1]
	logger.Debug("llm: sending gemini chat message", "model", g.chatModel, "history", len(session.History))
	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return Completion{BlockReason: blockReason(blocked)}, nil
		}
		return Completion{}, err
	}
	return Completion{Text: responseText(resp)}, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embedModel)
	em.TaskType = genai.TaskTypeRetrievalQuery
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return res.Embedding.Values, nil
}

func (g *GeminiProvider) Name() string {
	return "gemini"
}

func (g *GeminiProvider) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func permissiveSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{Category: category, Threshold: genai.HarmBlockNone})
	}
	return settings
}

// Reason codes the API can return that this SDK release has no names for.
var (
	extraBlockReasons = map[genai.BlockReason]string{
		3: "BLOCKLIST",
		4: "PROHIBITED_CONTENT",
		5: "IMAGE_SAFETY",
	}
	extraFinishReasons = map[genai.FinishReason]string{
		6:  "LANGUAGE",
		7:  "BLOCKLIST",
		8:  "PROHIBITED_CONTENT",
		9:  "SPII",
		10: "MALFORMED_FUNCTION_CALL",
		11: "IMAGE_SAFETY",
	}
)

func blockReason(err *genai.BlockedError) string {
	if err.PromptFeedback != nil && err.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		reason := err.PromptFeedback.BlockReason
		if name, ok := extraBlockReasons[reason]; ok {
			return name
		}
		return enumName(reason.String(), "BlockReason")
	}
	if err.Candidate != nil && err.Candidate.FinishReason != genai.FinishReasonUnspecified {
		reason := err.Candidate.FinishReason
		if name, ok := extraFinishReasons[reason]; ok {
			return name
		}
		return enumName(reason.String(), "FinishReason")
	}
	return "UNSPECIFIED"
}

// enumName turns "BlockReasonMaxTokens" into "MAX_TOKENS". Values the SDK
// cannot name come back as "BlockReason(n)" and are reported verbatim.
func enumName(name, prefix string) string {
	trimmed, ok := strings.CutPrefix(name, prefix)
	if !ok || trimmed == "" || strings.HasPrefix(trimmed, "(") {
		return name
	}
	var b strings.Builder
	for i, r := range trimmed {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

var (
	_ Generator = (*GeminiProvider)(nil)
	_ Embedder  = (*GeminiProvider)(nil)
)
