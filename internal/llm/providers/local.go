// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"fmt"
)

// Message is a single chat exchange entry.
type Message struct {
	Role    string
	Content string
}

// Provider is the completion capability consumed by the intent extractor.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// LocalProvider is a deterministic offline fallback. It always reports an
// unclear classification, so the service degrades to clarification
// prompts instead of failing when no API key is configured.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	return "none|none|none", nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
