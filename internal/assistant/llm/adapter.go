// internal/assistant/llm/adapter.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/validation"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
)

const systemPrompt = `Você é o assistente fiscal de uma plataforma de emissão de NFS-e.
Interprete o pedido do usuário em português e, quando ele corresponder a uma das operações
disponíveis, responda chamando a operação com os argumentos extraídos do texto.
Valores monetários são números em reais. CPF e CNPJ vão apenas com dígitos.
Nunca invente dados que o usuário não informou. Se nenhuma operação servir, responda em texto curto.`

// Proposal is the adapter's interpretation of one turn.
type Proposal struct {
	Intent    models.Intent
	Operation string
	Args      map[string]interface{}
	// Text is set when the model answered without choosing an operation.
	Text string
}

// IsCall reports whether the model chose an operation.
func (p *Proposal) IsCall() bool {
	return p.Operation != ""
}

// Adapter wraps a Provider with the operation catalog, a timeout and argument validation.
type Adapter struct {
	provider  Provider
	functions []Function
	byName    map[string]Function
	timeout   time.Duration
	history   int
	log       logger.Logger
}

// NewAdapter builds an adapter over provider. history bounds how many prior turns are sent.
func NewAdapter(provider Provider, rules []intent.Rule, timeout time.Duration, history int, log logger.Logger) *Adapter {
	fns := Operations(rules)
	byName := make(map[string]Function, len(fns))
	for _, f := range fns {
		byName[f.Name] = f
	}
	return &Adapter{
		provider:  provider,
		functions: fns,
		byName:    byName,
		timeout:   timeout,
		history:   history,
		log:       log.WithFields(map[string]interface{}{"component": "llm-adapter", "provider": provider.Name()}),
	}
}

// ProviderName labels latency metrics.
func (a *Adapter) ProviderName() string {
	return a.provider.Name()
}

// Functions returns the operation catalog sent with every request.
func (a *Adapter) Functions() []Function {
	return a.functions
}

// Propose asks the model about utt within the adapter timeout. Errors wrap one of the
// ErrModel* sentinels.
func (a *Adapter) Propose(ctx context.Context, utt models.Utterance) (*Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.provider.Complete(ctx, a.request(utt))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrModelMalformed) {
			return nil, fmt.Errorf("%w: no reply after %s", ErrModelTimeout, a.timeout)
		}
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: empty reply", ErrModelMalformed)
	}

	if reply.Call == nil {
		text := strings.TrimSpace(reply.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: reply has neither call nor text", ErrModelMalformed)
		}
		return &Proposal{Text: text}, nil
	}

	fn, ok := a.byName[reply.Call.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %q", ErrModelMalformed, reply.Call.Name)
	}
	args := reply.Call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := validation.Validate(fn.Schema, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelMalformed, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s arguments: %s", ErrModelMalformed, fn.Name, strings.Join(result.GetErrorMessages(), "; "))
	}

	a.log.Debug("model chose operation", map[string]interface{}{"operation": fn.Name})
	return &Proposal{Intent: fn.Intent, Operation: fn.Name, Args: args}, nil
}

func (a *Adapter) request(utt models.Utterance) Request {
	history := utt.History
	if a.history > 0 && len(history) > a.history {
		history = history[len(history)-a.history:]
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, t := range history {
		if t.Role == models.RoleSystem || strings.TrimSpace(t.Text) == "" {
			continue
		}
		msgs = append(msgs, Message{Role: t.Role, Text: t.Text})
	}
	msgs = append(msgs, Message{Role: models.RoleUser, Text: utt.Text})
	return Request{System: systemPrompt, Messages: msgs, Functions: a.functions}
}
