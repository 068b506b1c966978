// File path: internal/llm/llm.go
package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/config"
	"github.com/nicodishanthj/laptop-insights/internal/llm/providers"
)

type (
	Message          = providers.Message
	Generator        = providers.Generator
	Embedder         = providers.Embedder
	GenerationConfig = providers.GenerationConfig
	Completion       = providers.Completion
)

const (
	RoleUser  = providers.RoleUser
	RoleModel = providers.RoleModel
)

// Clients holds the generator and embedder selected by configuration along
// with anything that must be closed at shutdown.
type Clients struct {
	Generator Generator
	Embedder  Embedder
	closers   []io.Closer
}

func (c *Clients) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewClients builds the configured generator and embedder. A missing
// credential is an error so the caller can hold the service NotReady.
// localDimension sizes the offline embedder to match the loaded index.
func NewClients(ctx context.Context, cfg config.Config, localDimension int) (*Clients, error) {
	logger := common.Logger()
	clients := &Clients{}
	var gemini *providers.GeminiProvider
	var openaiProvider *providers.OpenAIProvider
	var ollamaProvider *providers.OllamaProvider

	build := func(kind string) (interface {
		Generator
		Embedder
	}, error) {
		switch kind {
		case "gemini", "":
			if gemini == nil {
				p, err := providers.NewGeminiProvider(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel)
				if err != nil {
					return nil, err
				}
				gemini = p
				clients.closers = append(clients.closers, p)
			}
			return gemini, nil
		case "openai":
			if openaiProvider == nil {
				p, err := providers.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIEndpoint, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, cfg.RequestTimeout)
				if err != nil {
					return nil, err
				}
				openaiProvider = p
			}
			return openaiProvider, nil
		case "ollama":
			if ollamaProvider == nil {
				p, err := providers.NewOllamaProvider(cfg.OllamaServerURL, cfg.OllamaModel, cfg.OllamaEmbedModel)
				if err != nil {
					return nil, err
				}
				ollamaProvider = p
			}
			return ollamaProvider, nil
		case "local":
			logger.Warn("llm: using local stub provider")
			return providers.NewLocalProvider(localDimension), nil
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", kind)
		}
	}

	generator, err := build(strings.ToLower(strings.TrimSpace(cfg.Generator)))
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("generator: %w", err)
	}
	embedder, err := build(strings.ToLower(strings.TrimSpace(cfg.Embedder)))
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	clients.Generator = generator
	clients.Embedder = embedder
	logger.Info("llm: providers selected", "generator", generator.Name(), "embedder", embedder.Name())
	return clients, nil
}

// NormalizeRole maps caller-supplied roles onto the model schema. Roles
// other than user, model and assistant are rejected.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleUser:
		return RoleUser, true
	case RoleModel, "assistant":
		return RoleModel, true
	default:
		return "", false
	}
}
