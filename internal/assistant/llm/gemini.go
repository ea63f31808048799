// internal/assistant/llm/gemini.go
package llm

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/genai"

	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/validation"
	"fiscal-assistant/internal/models"
)

// GeminiProvider uses Gemini function calling through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
	log    logger.Logger
}

// NewGeminiProvider creates the genai client. BaseURL overrides the API endpoint when set.
func NewGeminiProvider(ctx context.Context, cfg config.ModelConfig, log logger.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Name
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiProvider{
		client: client,
		model:  model,
		log:    log.WithFields(map[string]interface{}{"component": "llm-gemini", "model": model}),
	}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Complete(ctx context.Context, req Request) (*Reply, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	gcfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.1)}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Functions) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Functions))
		for _, f := range req.Functions {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        f.Name,
				Description: f.Description,
				Parameters:  toGenaiSchema(f.Schema),
			})
		}
		gcfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gcfg)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrModelTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrModelMalformed)
	}
	if calls := resp.FunctionCalls(); len(calls) > 0 {
		g.log.Debug("gemini returned function call", map[string]interface{}{"function": calls[0].Name})
		return &Reply{Call: &FunctionCall{Name: calls[0].Name, Args: calls[0].Args}}, nil
	}
	return &Reply{Text: resp.Text()}, nil
}

func toGenaiSchema(s validation.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Type:        genai.TypeObject,
		Description: s.Description,
		Properties:  make(map[string]*genai.Schema, len(s.Properties)),
		Required:    s.Required,
	}
	for name, p := range s.Properties {
		prop := &genai.Schema{Description: p.Description, Enum: p.Enum, Minimum: p.Minimum}
		switch p.Type {
		case "number":
			prop.Type = genai.TypeNumber
		case "integer":
			prop.Type = genai.TypeInteger
		case "boolean":
			prop.Type = genai.TypeBoolean
		default:
			prop.Type = genai.TypeString
		}
		out.Properties[name] = prop
	}
	return out
}
