// Package responder turns a classified utterance into an ActionPlan without any external
// model. Recognizers are evaluated in table order and the first match wins; ResolveCall
// feeds structured model calls through the same handlers.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/extract"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/internal/nlu/normalize"
	"fiscal-assistant/internal/store"
)

// Deps are the read collaborators the responder consults.
type Deps struct {
	Counterparties store.CounterpartyDirectory
	Invoices       store.InvoiceHistory
	Registry       store.FiscalRegistry
}

// Config tunes lookups.
type Config struct {
	SearchLimit  int
	HistoryLimit int
	// Clock resolves relative periods; nil means time.Now.
	Clock func() time.Time
}

// Request is one turn as seen by the responder.
type Request struct {
	Utterance      models.Utterance
	Normalized     string
	Entities       models.Entities
	Classification intent.Result
}

// NewRequest normalizes and extracts entities for utt.
func NewRequest(utt models.Utterance, res intent.Result) Request {
	return Request{
		Utterance:      utt,
		Normalized:     normalize.Normalize(utt.Text),
		Entities:       extract.All(utt.Text),
		Classification: res,
	}
}

// input is what handlers read. Fields holds pattern captures or model arguments.
type input struct {
	req    Request
	folded string
	intent models.Intent
	fields map[string]string
}

func (in *input) tenant() string { return in.req.Utterance.Hints.TenantID }

func (in *input) field(name string) string {
	return strings.TrimSpace(in.fields[name])
}

type handlerFunc func(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error)

// Responder is safe for concurrent use.
type Responder struct {
	deps        Deps
	cfg         Config
	recognizers []recognizer
	log         logger.Logger
}

func New(deps Deps, cfg Config, log logger.Logger) *Responder {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Responder{
		deps:        deps,
		cfg:         cfg,
		recognizers: recognizers(),
		log:         log.WithFields(map[string]interface{}{"component": "responder"}),
	}
}

// Priority reports whether text hits a high-priority surface pattern, which routes the turn
// to the responder regardless of classifier confidence.
func (r *Responder) Priority(text string) bool {
	folded := normalize.Fold(normalize.Normalize(text))
	for _, rec := range r.recognizers {
		if !rec.priority {
			continue
		}
		if _, ok := rec.matchText(folded); ok {
			return true
		}
	}
	return false
}

// Respond runs the recognizer chain. It never returns a nil plan without an error; when no
// recognizer applies the generic menu is returned.
func (r *Responder) Respond(ctx context.Context, req Request) (*models.ActionPlan, error) {
	folded := normalize.Fold(req.Normalized)
	top := req.Classification.Top

	for _, rec := range r.recognizers {
		if rec.excluded(folded) {
			continue
		}
		fields, ok := rec.matchText(folded)
		if !ok && !rec.handles(top) {
			continue
		}
		in := &input{req: req, folded: folded, intent: rec.intentFor(top), fields: fields}
		plan, err := rec.handle(ctx, r, in)
		if err != nil {
			return nil, fmt.Errorf("recognizer %s: %w", rec.name, err)
		}
		if plan == nil {
			continue
		}
		r.log.Debug("recognizer matched", map[string]interface{}{"recognizer": rec.name, "action": plan.Action})
		return plan, nil
	}
	return r.menu(), nil
}

// Call is a structured operation chosen by the external model.
type Call struct {
	Intent models.Intent
	Args   map[string]interface{}
}

// ResolveCall maps a model call onto the recognizer owning call.Intent, so the model path
// produces exactly the plans the deterministic path would.
func (r *Responder) ResolveCall(ctx context.Context, utt models.Utterance, call Call) (*models.ActionPlan, error) {
	var rec *recognizer
	for i := range r.recognizers {
		if r.recognizers[i].owns(call.Intent) {
			rec = &r.recognizers[i]
			break
		}
	}
	if rec == nil {
		return r.menu(), nil
	}

	ents, fields := fromArgs(call.Args)
	req := Request{
		Utterance:      utt,
		Normalized:     normalize.Normalize(utt.Text),
		Entities:       ents,
		Classification: intent.Result{Top: models.IntentScore{Intent: call.Intent, Confidence: 1}},
	}
	in := &input{req: req, intent: call.Intent, fields: fields}
	plan, err := rec.handle(ctx, r, in)
	if err != nil {
		return nil, fmt.Errorf("recognizer %s: %w", rec.name, err)
	}
	if plan == nil {
		return r.menu(), nil
	}
	return plan, nil
}

// Choose turns a pending choose_counterparty plan plus the user's pick into an emission plan.
// It returns nil when the reply does not identify one of the candidates.
func (r *Responder) Choose(ctx context.Context, utt models.Utterance, pending *models.ActionPlan) (*models.ActionPlan, error) {
	ids, _ := pending.Data["candidate_ids"].([]interface{})
	if len(ids) == 0 {
		if s, ok := pending.Data["candidate_ids"].([]string); ok {
			for _, id := range s {
				ids = append(ids, id)
			}
		}
	}
	idx, ok := OptionNumber(utt.Text, len(ids))
	if !ok {
		return nil, nil
	}
	id, _ := ids[idx].(string)
	cp, err := r.deps.Counterparties.FindByID(ctx, utt.Hints.TenantID, id)
	if err != nil {
		return nil, err
	}
	amount, _ := pending.Float("amount")
	return r.emissionPlan(cp, amount, pending.String("description")), nil
}

func (r *Responder) now() time.Time { return r.cfg.Clock() }

func (r *Responder) plan(action models.ActionType, in models.Intent, explanation string, data map[string]interface{}) *models.ActionPlan {
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
		CreatedAt:            r.now().UTC(),
	}
}

func (r *Responder) menu() *models.ActionPlan {
	return r.plan(models.ActionMenu, models.IntentUnknown, intent.GenericMenu, nil)
}
