// Package pipeline assembles the command engine and the action pipeline from a set of
// store implementations, so binaries only decide which backends to use.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"fiscal-assistant/internal/assistant/executor"
	"fiscal-assistant/internal/assistant/llm"
	"fiscal-assistant/internal/assistant/orchestrator"
	"fiscal-assistant/internal/assistant/responder"
	"fiscal-assistant/internal/assistant/validator"
	"fiscal-assistant/internal/common/cache"
	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/internal/store"

	"go.opentelemetry.io/otel/trace"
)

// Stores are the backends the pipeline runs on. The last group is optional.
type Stores struct {
	Counterparties store.CounterpartyDirectory
	Invoices       store.InvoiceHistory
	Quota          store.QuotaStatus
	Registry       store.FiscalRegistry
	Turns          store.TurnLog
	Pending        store.PendingActions
	Sink           store.ActionSink

	QuotaInvalidator executor.QuotaInvalidator
	Notifier         executor.Notifier
	Tracer           trace.Tracer
	// Provider overrides the language model selected in the configuration.
	Provider llm.Provider
}

type Pipeline struct {
	Rules        []intent.Rule
	Classifier   *intent.Classifier
	Responder    *responder.Responder
	Adapter      *llm.Adapter
	Orchestrator *orchestrator.Orchestrator
	Validator    *validator.Validator
	Executor     *executor.Executor
}

func New(ctx context.Context, cfg *config.Config, s Stores, log logger.Logger) (*Pipeline, error) {
	if s.Counterparties == nil || s.Invoices == nil || s.Quota == nil || s.Registry == nil || s.Sink == nil {
		return nil, fmt.Errorf("pipeline: counterparties, invoices, quota, registry and sink stores are required")
	}

	jurisdictions := cfg.Jurisdictions
	if len(jurisdictions) == 0 {
		jurisdictions = config.DefaultJurisdictions()
	}

	rules := intent.Catalog()
	p := &Pipeline{
		Rules:      rules,
		Classifier: intent.NewClassifier(rules),
		Responder: responder.New(responder.Deps{
			Counterparties: s.Counterparties,
			Invoices:       s.Invoices,
			Registry:       s.Registry,
		}, responder.Config{
			SearchLimit:  cfg.Assistant.SearchLimit,
			HistoryLimit: cfg.Assistant.HistoryWindow,
		}, log),
	}

	provider := s.Provider
	if provider == nil {
		var err error
		if provider, err = llm.NewProvider(ctx, cfg.Model, log); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if provider != nil {
		timeout := config.GetDuration(cfg.Assistant.ModelTimeout)
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		p.Adapter = llm.NewAdapter(provider, rules, timeout, cfg.Assistant.HistoryWindow, log)
		log.Info("language model enabled", map[string]interface{}{"provider": provider.Name()})
	}

	p.Orchestrator = orchestrator.New(orchestrator.Deps{
		Classifier:    p.Classifier,
		Disambiguator: intent.NewDisambiguator(rules),
		Responder:     p.Responder,
		Adapter:       p.Adapter,
		Turns:         s.Turns,
		Pending:       s.Pending,
		Tracer:        s.Tracer,
	}, orchestrator.ConfigFrom(cfg.Assistant), log)

	vcfg := validator.ConfigFrom(cfg.Validator, jurisdictions)
	if vcfg.HealthTTL <= 0 {
		vcfg.HealthTTL = 5 * time.Minute
	}
	p.Validator = validator.New(validator.Deps{
		Quota:    s.Quota,
		Registry: s.Registry,
		Invoices: s.Invoices,
		Prober:   s.Sink,
		Health:   cache.NewTTLCache[string, models.ConnectionHealth](vcfg.HealthTTL, nil),
	}, vcfg, log)

	p.Executor = executor.New(executor.Deps{
		Validator:      p.Validator,
		Sink:           s.Sink,
		Counterparties: s.Counterparties,
		Invoices:       s.Invoices,
		Registry:       s.Registry,
		Quota:          s.QuotaInvalidator,
		Notifier:       s.Notifier,
	}, jurisdictions, nil, log)

	return p, nil
}
