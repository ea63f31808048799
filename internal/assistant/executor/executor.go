// Package executor performs confirmed, validated action plans against the fiscal
// platform and reports the outcome in user-facing terms.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fiscal-assistant/internal/common/aws"
	"fiscal-assistant/internal/common/config"
	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/metrics"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

// Validator is satisfied by *validator.Validator.
type Validator interface {
	Validate(ctx context.Context, tenantID string, plan *models.ActionPlan) (*models.ValidationVerdict, error)
}

// QuotaInvalidator drops cached plan snapshots after an emission.
type QuotaInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// Notifier is satisfied by *aws.Notifier.
type Notifier interface {
	InvoiceEmitted(ctx context.Context, inv *models.Invoice, cp *models.Counterparty) error
	Publish(ctx context.Context, ev aws.Event) error
}

type Deps struct {
	Validator      Validator
	Sink           store.ActionSink
	Counterparties store.CounterpartyDirectory
	Invoices       store.InvoiceHistory
	Registry       store.FiscalRegistry
	// Optional
	Quota    QuotaInvalidator
	Notifier Notifier
}

type Executor struct {
	deps          Deps
	jurisdictions map[string]config.JurisdictionConfig
	clock         func() time.Time
	log           logger.Logger
}

func New(deps Deps, jurisdictions map[string]config.JurisdictionConfig, clock func() time.Time, log logger.Logger) *Executor {
	if jurisdictions == nil {
		jurisdictions = config.DefaultJurisdictions()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Executor{
		deps:          deps,
		jurisdictions: jurisdictions,
		clock:         clock,
		log:           log.WithFields(map[string]interface{}{"component": "executor"}),
	}
}

// Execute runs a mutating plan. It refuses plans without a matching confirmation and
// re-validates right before the side effect. On failure the returned result still
// carries a message fit for the user next to the structured error.
func (e *Executor) Execute(ctx context.Context, tenantID string, plan *models.ActionPlan, conf *models.Confirmation) (*models.ExecutionResult, error) {
	action := string(plan.Action)
	if !plan.Action.IsMutating() {
		metrics.Executions.WithLabelValues(action, "unsupported").Inc()
		return nil, apperrors.NewUnsupportedActionError(action)
	}
	if conf == nil || conf.PlanID != plan.ID || conf.ConfirmedAt.IsZero() {
		metrics.Executions.WithLabelValues(action, "unconfirmed").Inc()
		return nil, apperrors.NewConfirmationRequiredError(plan.ID)
	}

	verdict, err := e.deps.Validator.Validate(ctx, tenantID, plan)
	if err != nil {
		return nil, err
	}
	if !verdict.Valid {
		metrics.Executions.WithLabelValues(action, "invalid").Inc()
		result := &models.ExecutionResult{
			PlanID:      plan.ID,
			Action:      plan.Action,
			Message:     RenderVerdict(verdict),
			Diagnostics: map[string]interface{}{"codes": verdict.Codes()},
		}
		return result, apperrors.NewValidationFailedError(verdict.Codes()).WithMetadata("verdict", verdict)
	}

	log := e.log.WithFields(map[string]interface{}{"tenantId": tenantID, "planId": plan.ID, "action": action})
	var result *models.ExecutionResult
	switch plan.Action {
	case models.ActionEmitInvoice:
		result, err = e.emit(ctx, tenantID, plan, log)
	case models.ActionCancelInvoice:
		result, err = e.cancel(ctx, tenantID, plan, log)
	case models.ActionCreateClient:
		result, err = e.createClient(ctx, tenantID, plan)
	}

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failed"
		fields := map[string]interface{}{"error": err.Error()}
		if result != nil {
			fields["diagnostics"] = result.Diagnostics
		}
		log.Warn("execution failed", fields)
	case !result.Success:
		outcome = "rejected"
	}
	metrics.Executions.WithLabelValues(action, outcome).Inc()
	return result, err
}

func (e *Executor) emit(ctx context.Context, tenantID string, plan *models.ActionPlan, log logger.Logger) (*models.ExecutionResult, error) {
	req := plan.EmissionRequest()
	result := &models.ExecutionResult{PlanID: plan.ID, Action: plan.Action}

	inv, err := e.deps.Sink.EmitInvoice(ctx, tenantID, req)
	if err != nil {
		return e.sinkFailure(ctx, tenantID, result, err)
	}
	if inv.TenantID == "" {
		inv.TenantID = tenantID
	}
	if inv.Status == "" {
		inv.Status = models.InvoicePending
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = e.clock().UTC()
	}
	result.Invoice = inv
	e.record(ctx, inv, log)
	if e.deps.Quota != nil {
		if err := e.deps.Quota.Invalidate(ctx, tenantID); err != nil {
			log.Warn("quota cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}

	switch inv.Status {
	case models.InvoiceAuthorized:
		result.Success = true
		result.Message = fmt.Sprintf("Nota %s emitida para %s no valor de R$ %s.", inv.Number, req.CounterpartyName, models.FormatBRL(req.Amount))
		if inv.VerificationCode != "" {
			result.Message += " Código de verificação: " + inv.VerificationCode + "."
		}
		e.notifyEmitted(ctx, inv, req, log)
	case models.InvoiceRejected:
		result.Message = "A prefeitura rejeitou a nota."
		if inv.RejectionReason != "" {
			result.Message += " Motivo: " + inv.RejectionReason + "."
			result.Diagnostics = map[string]interface{}{"rejectionReason": inv.RejectionReason}
		}
	default:
		result.Success = true
		result.Message = fmt.Sprintf("Nota enviada para %s no valor de R$ %s. A prefeitura ainda está processando; aviso quando for autorizada.",
			req.CounterpartyName, models.FormatBRL(req.Amount))
	}
	e.publish(ctx, "invoice.emitted", tenantID, plan.ID, inv, log)
	return result, nil
}

func (e *Executor) cancel(ctx context.Context, tenantID string, plan *models.ActionPlan, log logger.Logger) (*models.ExecutionResult, error) {
	req := plan.CancellationRequest()
	result := &models.ExecutionResult{PlanID: plan.ID, Action: plan.Action}

	inv, err := e.deps.Sink.CancelInvoice(ctx, tenantID, req)
	if err != nil {
		return e.sinkFailure(ctx, tenantID, result, err)
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceCancelled
	}

	// The platform answers with the cancellation only; keep the stored record's details.
	if stored, err := e.deps.Invoices.ByNumber(ctx, tenantID, req.InvoiceNumber); err == nil {
		stored.Status = inv.Status
		inv = stored
	}
	if inv.TenantID == "" {
		inv.TenantID = tenantID
	}
	result.Invoice = inv
	result.Success = inv.Status == models.InvoiceCancelled
	if result.Success {
		result.Message = fmt.Sprintf("Nota %s cancelada.", req.InvoiceNumber)
	} else {
		result.Message = fmt.Sprintf("O pedido de cancelamento da nota %s foi enviado e aguarda a prefeitura.", req.InvoiceNumber)
	}
	e.record(ctx, inv, log)
	e.publish(ctx, "invoice.cancelled", tenantID, plan.ID, inv, log)
	return result, nil
}

func (e *Executor) createClient(ctx context.Context, tenantID string, plan *models.ActionPlan) (*models.ExecutionResult, error) {
	cp := &models.Counterparty{
		TenantID:     tenantID,
		Name:         strings.TrimSpace(plan.String("name")),
		Document:     plan.String("document"),
		DocumentKind: models.DocumentKind(plan.String("document_kind")),
		Email:        plan.String("email"),
		CreatedAt:    e.clock().UTC(),
	}
	result := &models.ExecutionResult{PlanID: plan.ID, Action: plan.Action}
	if cp.Name == "" || cp.Document == "" {
		return nil, apperrors.NewInvalidInputError("create_client needs name and document")
	}

	err := e.deps.Counterparties.Create(ctx, cp)
	switch {
	case errors.Is(err, store.ErrDuplicateDocument):
		result.Message = "Já existe um cliente cadastrado com este documento."
		return result, nil
	case err != nil:
		result.Message = "Não consegui cadastrar o cliente agora. Tente novamente em alguns minutos."
		result.Diagnostics = map[string]interface{}{"error": err.Error()}
		return result, apperrors.NewDatabaseError("create counterparty", err)
	}
	result.Success = true
	result.Counterparty = cp
	result.Message = fmt.Sprintf("Cliente %s cadastrado.", cp.Name)
	return result, nil
}

// sinkFailure fills the result with the translated message and keeps the technical
// detail in Diagnostics only.
func (e *Executor) sinkFailure(ctx context.Context, tenantID string, result *models.ExecutionResult, err error) (*models.ExecutionResult, error) {
	j := e.jurisdiction(ctx, tenantID)
	result.Message = Translate(err, j)
	result.Diagnostics = Diagnostics(err)
	if se, ok := store.AsSinkError(err); ok && se.Retryable {
		return result, apperrors.NewSinkUnavailableError(err)
	}
	return result, apperrors.NewExecutionFailedError(result.Message, err)
}

func (e *Executor) jurisdiction(ctx context.Context, tenantID string) config.JurisdictionConfig {
	if e.deps.Registry == nil {
		return config.JurisdictionConfig{}
	}
	reg, err := e.deps.Registry.Registration(ctx, tenantID)
	if err != nil {
		return config.JurisdictionConfig{}
	}
	return e.jurisdictions[reg.MunicipalityCode]
}

func (e *Executor) record(ctx context.Context, inv *models.Invoice, log logger.Logger) {
	if err := e.deps.Invoices.Record(ctx, inv); err != nil {
		log.Error("failed to record invoice", map[string]interface{}{"number": inv.Number, "error": err.Error()})
	}
}

func (e *Executor) notifyEmitted(ctx context.Context, inv *models.Invoice, req models.EmissionRequest, log logger.Logger) {
	if e.deps.Notifier == nil {
		return
	}
	cp, err := e.deps.Counterparties.FindByID(ctx, inv.TenantID, req.CounterpartyID)
	if err != nil {
		cp = &models.Counterparty{ID: req.CounterpartyID, Name: req.CounterpartyName, Email: req.Email}
	}
	if cp.Email == "" {
		cp.Email = req.Email
	}
	if err := e.deps.Notifier.InvoiceEmitted(ctx, inv, cp); err != nil {
		log.Warn("emission notice not sent", map[string]interface{}{"error": err.Error()})
	}
}

func (e *Executor) publish(ctx context.Context, kind, tenantID, planID string, inv *models.Invoice, log logger.Logger) {
	if e.deps.Notifier == nil {
		return
	}
	ev := aws.Event{
		Type:          kind,
		TenantID:      tenantID,
		PlanID:        planID,
		InvoiceNumber: inv.Number,
		Status:        inv.Status,
		Amount:        inv.Amount,
		OccurredAt:    e.clock().UTC(),
	}
	if err := e.deps.Notifier.Publish(ctx, ev); err != nil {
		log.Warn("outcome event not published", map[string]interface{}{"type": kind, "error": err.Error()})
	}
}
