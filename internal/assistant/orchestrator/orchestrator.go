// Package orchestrator drives one conversation turn: classify, route to the deterministic
// responder or the language model, fall back when the model fails, and log the turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fiscal-assistant/internal/assistant/llm"
	"fiscal-assistant/internal/assistant/responder"
	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/metrics"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/internal/nlu/normalize"
	"fiscal-assistant/internal/store"
)

// Routes reported in Response.Route and the turns metric.
const (
	RouteInput         = "input"
	RouteDeterministic = "deterministic"
	RouteModel         = "model"
	RouteFallback      = "fallback"
	RouteClarify       = "clarify"
	RoutePending       = "pending"
)

const notUnderstood = "Desculpe, não consegui entender o pedido agora. Pode reformular? Se preferir, digite \"ajuda\" para ver o que posso fazer."

type Deps struct {
	Classifier    *intent.Classifier
	Disambiguator *intent.Disambiguator
	Responder     *responder.Responder
	// Adapter is nil when no language model is configured.
	Adapter *llm.Adapter
	Turns   store.TurnLog
	// Pending is optional; without it confirmations have to come from the caller.
	Pending store.PendingActions
	Tracer  trace.Tracer
}

type Config struct {
	ConfidenceThreshold float64
	HistoryWindow       int
	PendingTTL          time.Duration
	Clock               func() time.Time
}

// ConfigFrom converts the loaded assistant configuration.
func ConfigFrom(cfg config.AssistantConfig) Config {
	return Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		HistoryWindow:       cfg.HistoryWindow,
		PendingTTL:          config.GetDuration(cfg.PendingTTL),
	}
}

// Response is the outcome of one turn.
type Response struct {
	Plan           *models.ActionPlan `json:"plan"`
	Route          string             `json:"route"`
	Classification intent.Result      `json:"classification"`
	// Confirmation is set when this turn confirmed the pending plan returned in Plan.
	Confirmation *models.Confirmation `json:"confirmation,omitempty"`
}

// Orchestrator is safe for concurrent use; all per-turn state lives in the stores.
type Orchestrator struct {
	deps Deps
	cfg  Config
	log  logger.Logger
}

func New(deps Deps, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.6
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("fiscal-assistant/orchestrator")
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		log:  log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Handle answers one utterance. It always produces a plan; collaborator failures degrade
// the answer instead of failing the turn.
func (o *Orchestrator) Handle(ctx context.Context, utt models.Utterance) *Response {
	ctx, span := o.deps.Tracer.Start(ctx, "orchestrator.Handle", trace.WithAttributes(
		attribute.String("tenant.id", utt.Hints.TenantID),
		attribute.String("user.id", utt.Hints.UserID),
	))
	defer span.End()

	if len(utt.History) == 0 && o.deps.Turns != nil {
		if recent, err := o.deps.Turns.Recent(ctx, utt.Hints.UserID, o.cfg.HistoryWindow); err == nil {
			utt.History = recent
		} else {
			o.log.Warn("turn history unavailable", map[string]interface{}{"userId": utt.Hints.UserID, "error": err.Error()})
		}
	}

	resp := o.route(ctx, utt)
	if awaitsReply(resp) {
		o.keepPending(ctx, utt.Hints.UserID, resp.Plan)
	}
	o.record(ctx, utt, resp)

	span.SetAttributes(
		attribute.String("assistant.route", resp.Route),
		attribute.String("assistant.action", string(resp.Plan.Action)),
		attribute.String("assistant.intent", string(resp.Plan.Intent)),
	)
	metrics.TurnsTotal.WithLabelValues(resp.Route, string(resp.Plan.Action)).Inc()
	return resp
}

func (o *Orchestrator) route(ctx context.Context, utt models.Utterance) *Response {
	if strings.TrimSpace(utt.Text) == "" {
		return &Response{Plan: o.plan(models.ActionMenu, models.IntentUnknown, intent.GenericMenu, nil), Route: RouteInput}
	}

	if resp := o.resolvePending(ctx, utt); resp != nil {
		return resp
	}

	res := o.deps.Classifier.Classify(utt.Text)
	if o.deps.Responder.Priority(utt.Text) || res.Top.Confidence >= o.cfg.ConfidenceThreshold {
		return o.deterministic(ctx, utt, res, RouteDeterministic)
	}

	if o.deps.Adapter != nil {
		if resp := o.delegate(ctx, utt, res); resp != nil {
			return resp
		}
	}

	if intent.NeedsClarification(res.Top, res.Alternatives) {
		if clar := o.deps.Disambiguator.Clarify(res); len(clar.Options) >= 2 {
			options := make([]string, 0, len(clar.Options))
			for _, opt := range clar.Options {
				options = append(options, string(opt))
			}
			plan := o.plan(models.ActionClarify, res.Top.Intent, clar.Question, map[string]interface{}{
				"options":   options,
				"utterance": utt.Text,
			})
			return &Response{Plan: plan, Route: RouteClarify, Classification: res}
		}
	}

	route := RouteDeterministic
	if o.deps.Adapter != nil {
		route = RouteFallback
	}
	return o.deterministic(ctx, utt, res, route)
}

func (o *Orchestrator) deterministic(ctx context.Context, utt models.Utterance, res intent.Result, route string) *Response {
	plan, err := o.deps.Responder.Respond(ctx, responder.NewRequest(utt, res))
	if err != nil {
		o.log.Error("deterministic responder failed", map[string]interface{}{
			"tenantId": utt.Hints.TenantID,
			"intent":   string(res.Top.Intent),
			"error":    err.Error(),
		})
		plan = o.plan(models.ActionNotUnderstood, res.Top.Intent, notUnderstood, nil)
	}
	return &Response{Plan: plan, Route: route, Classification: res}
}

// delegate asks the model. A nil result means the caller must fall back.
func (o *Orchestrator) delegate(ctx context.Context, utt models.Utterance, res intent.Result) *Response {
	start := time.Now()
	prop, err := o.deps.Adapter.Propose(ctx, utt)
	metrics.ModelLatency.WithLabelValues(o.deps.Adapter.ProviderName()).Observe(time.Since(start).Seconds())
	if err != nil {
		o.fallback(utt, fallbackReason(err), err)
		return nil
	}

	if !prop.IsCall() {
		plan := o.plan(models.ActionReply, res.Top.Intent, prop.Text, nil)
		return &Response{Plan: plan, Route: RouteModel, Classification: res}
	}

	plan, err := o.deps.Responder.ResolveCall(ctx, utt, responder.Call{Intent: prop.Intent, Args: prop.Args})
	if err != nil {
		o.fallback(utt, "resolve", err)
		return nil
	}
	return &Response{Plan: plan, Route: RouteModel, Classification: res}
}

func (o *Orchestrator) fallback(utt models.Utterance, reason string, err error) {
	o.log.Warn("language model failed, falling back to deterministic responder", map[string]interface{}{
		"tenantId": utt.Hints.TenantID,
		"reason":   reason,
		"error":    err.Error(),
	})
	metrics.ModelFallbacks.WithLabelValues(reason).Inc()
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, llm.ErrModelTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrModelMalformed):
		return "malformed"
	default:
		return "unavailable"
	}
}

func (o *Orchestrator) plan(action models.ActionType, in models.Intent, explanation string, data map[string]interface{}) *models.ActionPlan {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &models.ActionPlan{
		ID:                   uuid.New().String(),
		Action:               action,
		Intent:               in,
		Data:                 data,
		Explanation:          explanation,
		RequiresConfirmation: action.IsMutating(),
		CreatedAt:            o.cfg.Clock().UTC(),
	}
}

// ==========================
// Pending plans
// ==========================

var (
	reConfirm = regexp.MustCompile(`^(sim|s|ok|okay|claro|isso( mesmo)?|confirm[oa]r?|confirmado|(sim,? )?pode( sim| emitir| cancelar| cadastrar| seguir)?|manda( ver)?)[.!]*$`)
	reDecline = regexp.MustCompile(`^(nao|n|cancela|cancelar|esquece|deixa( pra la)?|nao quero|desisto|para)[.!]*$`)
)

func folded(text string) string {
	return strings.TrimSpace(normalize.Fold(normalize.Normalize(text)))
}

// IsConfirmation reports whether text accepts a pending plan.
func IsConfirmation(text string) bool { return reConfirm.MatchString(folded(text)) }

// IsDecline reports whether text drops a pending plan.
func IsDecline(text string) bool { return reDecline.MatchString(folded(text)) }

// resolvePending answers replies to the plan awaiting the user. A reply that is not about
// the pending plan drops it and the utterance is handled as a new command.
func (o *Orchestrator) resolvePending(ctx context.Context, utt models.Utterance) *Response {
	if o.deps.Pending == nil {
		return nil
	}
	pending, err := o.deps.Pending.Take(ctx, utt.Hints.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.log.Warn("pending plan unavailable", map[string]interface{}{"userId": utt.Hints.UserID, "error": err.Error()})
		}
		return nil
	}
	if o.cfg.Clock().Sub(pending.CreatedAt) > o.cfg.PendingTTL {
		return nil
	}

	if IsDecline(utt.Text) {
		plan := o.plan(models.ActionDiscarded, pending.Intent, "Tudo bem, não vou seguir com isso. Posso ajudar em algo mais?",
			map[string]interface{}{"plan_id": pending.ID})
		return &Response{Plan: plan, Route: RoutePending}
	}

	switch pending.Action {
	case models.ActionChooseCounterparty:
		plan, err := o.deps.Responder.Choose(ctx, utt, pending)
		if err != nil {
			o.log.Warn("counterparty choice failed", map[string]interface{}{"error": err.Error()})
			return nil
		}
		if plan != nil {
			return &Response{Plan: plan, Route: RoutePending}
		}
	case models.ActionClarify:
		if resp := o.clarified(ctx, utt, pending); resp != nil {
			return resp
		}
	case models.ActionCancelInvoice:
		if pending.String("justification") == "" {
			return o.justified(pending, utt.Text)
		}
		fallthrough
	default:
		if pending.RequiresConfirmation && IsConfirmation(utt.Text) {
			return &Response{
				Plan:  pending,
				Route: RoutePending,
				Confirmation: &models.Confirmation{
					PlanID:      pending.ID,
					TurnID:      uuid.New().String(),
					ConfirmedAt: o.cfg.Clock().UTC(),
				},
			}
		}
	}
	return nil
}

// justified takes the reply to a cancellation that still lacks its reason as that reason.
// A bare confirmation is refused until a reason arrives.
func (o *Orchestrator) justified(pending *models.ActionPlan, text string) *Response {
	number := pending.String("invoice_number")
	if IsConfirmation(text) {
		plan := o.plan(models.ActionCancelInvoice, pending.Intent,
			"Antes de confirmar, preciso do motivo do cancelamento, com pelo menos 15 caracteres.",
			map[string]interface{}{"invoice_number": number, "justification": ""})
		return &Response{Plan: plan, Route: RoutePending}
	}
	reason := strings.Trim(strings.TrimSpace(text), " .!")
	plan := o.plan(models.ActionCancelInvoice, pending.Intent,
		fmt.Sprintf("Vou solicitar o cancelamento da nota nº %s. Motivo: %s. Confirma?", number, reason),
		map[string]interface{}{"invoice_number": number, "justification": reason})
	return &Response{Plan: plan, Route: RoutePending}
}

// clarified re-runs the original utterance with the intent the user picked.
func (o *Orchestrator) clarified(ctx context.Context, utt models.Utterance, pending *models.ActionPlan) *Response {
	var options []string
	switch v := pending.Data["options"].(type) {
	case []string:
		options = v
	case []interface{}:
		for _, opt := range v {
			if s, ok := opt.(string); ok {
				options = append(options, s)
			}
		}
	}
	idx, ok := responder.OptionNumber(utt.Text, len(options))
	if !ok {
		return nil
	}
	chosen := models.IntentScore{Intent: models.Intent(options[idx]), Confidence: 1}
	original := utt
	if text := pending.String("utterance"); text != "" {
		original.Text = text
	}
	return o.deterministic(ctx, original, intent.Result{Top: chosen, Normalized: normalize.Normalize(original.Text)}, RoutePending)
}

func awaitsReply(resp *Response) bool {
	switch resp.Plan.Action {
	case models.ActionChooseCounterparty, models.ActionClarify:
		return true
	}
	return resp.Plan.RequiresConfirmation && resp.Confirmation == nil
}

func (o *Orchestrator) keepPending(ctx context.Context, userID string, plan *models.ActionPlan) {
	if o.deps.Pending == nil {
		return
	}
	if err := o.deps.Pending.Put(ctx, userID, plan); err != nil {
		o.log.Warn("failed to store pending plan", map[string]interface{}{"userId": userID, "error": err.Error()})
	}
}

// record appends the user turn and the answer. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, utt models.Utterance, resp *Response) {
	if o.deps.Turns == nil {
		return
	}
	now := o.cfg.Clock().UTC()
	turns := []models.Turn{
		{UserID: utt.Hints.UserID, TenantID: utt.Hints.TenantID, Role: models.RoleUser, Text: utt.Text, CreatedAt: now},
		{
			UserID:    utt.Hints.UserID,
			TenantID:  utt.Hints.TenantID,
			Role:      models.RoleAssistant,
			Text:      resp.Plan.Explanation,
			Action:    string(resp.Plan.Action),
			PlanID:    resp.Plan.ID,
			CreatedAt: now,
		},
	}
	for _, t := range turns {
		if err := o.deps.Turns.Append(ctx, t); err != nil {
			o.log.Warn("failed to append turn", map[string]interface{}{"userId": utt.Hints.UserID, "error": err.Error()})
			return
		}
	}
}
