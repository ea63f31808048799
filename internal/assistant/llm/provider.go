// Package llm adapts an external language model to the assistant: it describes the callable
// operations derived from the intent catalog, sends the conversation, and turns the reply into
// either a validated operation call or free text.
package llm

import (
	"context"
	"errors"
	"fmt"

	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
)

var (
	ErrModelTimeout     = errors.New("MODEL_TIMEOUT")
	ErrModelUnavailable = errors.New("MODEL_UNAVAILABLE")
	ErrModelMalformed   = errors.New("MODEL_MALFORMED_REPLY")
)

// Message is one conversation entry sent to the model.
type Message struct {
	Role models.Role
	Text string
}

// Request is what a provider receives.
type Request struct {
	System    string
	Messages  []Message
	Functions []Function
}

// FunctionCall is a structured call chosen by the model.
type FunctionCall struct {
	Name string
	Args map[string]interface{}
}

// Reply carries either a call or free text.
type Reply struct {
	Call *FunctionCall
	Text string
}

// Provider is a concrete model backend. Implementations classify failures by wrapping
// ErrModelTimeout, ErrModelUnavailable or ErrModelMalformed.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Reply, error)
}

// NewProvider builds the provider selected in cfg. Provider "none" (or empty) returns nil,
// which keeps the assistant fully deterministic.
func NewProvider(ctx context.Context, cfg config.ModelConfig, log logger.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "gateway":
		return NewGatewayProvider(cfg, log), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}
