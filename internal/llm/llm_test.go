// File path: internal/llm/llm_test.go
package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/nicodishanthj/laptop-insights/internal/config"
	"github.com/nicodishanthj/laptop-insights/internal/llm/providers"
)

func TestNormalizeRole(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"user":      {RoleUser, true},
		" USER ":    {RoleUser, true},
		"model":     {RoleModel, true},
		"assistant": {RoleModel, true},
		"system":    {"", false},
		"":          {"", false},
	}
	for input, tc := range cases {
		got, ok := NormalizeRole(input)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeRole(%q) = (%q, %v), want (%q, %v)", input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNewClientsLocal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator = "local"
	cfg.Embedder = "local"
	clients, err := NewClients(context.Background(), cfg, 8)
	if err != nil {
		t.Fatalf("new clients: %v", err)
	}
	defer clients.Close()
	vec, err := clients.Embedder.Embed(context.Background(), "ThinkPad battery life")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 8 {
		t.Fatalf("expected 8 dimensions, got %d", len(vec))
	}
	completion, err := clients.Generator.Generate(context.Background(), []Message{{Role: RoleUser, Content: " hi "}}, GenerationConfig{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if completion.Text != "[local-stub] hi" {
		t.Fatalf("unexpected completion %q", completion.Text)
	}
}

func TestNewClientsMissingCredential(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator = "openai"
	cfg.Embedder = "local"
	cfg.OpenAIAPIKey = ""
	if _, err := NewClients(context.Background(), cfg, 8); !errors.Is(err, providers.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}

	cfg = config.DefaultConfig()
	cfg.GoogleAPIKey = ""
	if _, err := NewClients(context.Background(), cfg, 8); !errors.Is(err, providers.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential for gemini, got %v", err)
	}
}

func TestNewClientsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator = "mystery"
	if _, err := NewClients(context.Background(), cfg, 8); err == nil {
		t.Fatal("expected unknown provider error")
	}
}
