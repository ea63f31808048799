// Package validator runs the business rules a mutating action must pass before it reaches
// the fiscal platform. Checks are independent, run concurrently and never stop at the
// first failure, so the user sees every remediation in one turn.
package validator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fiscal-assistant/internal/common/cache"
	"fiscal-assistant/internal/common/config"
	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/metrics"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

// HealthProber performs a live connection check with the fiscal authority.
type HealthProber interface {
	CheckConnection(ctx context.Context, tenantID string) (models.ConnectionHealth, error)
}

// HealthCache holds the last known connection health per tenant.
type HealthCache = cache.TTLCache[string, models.ConnectionHealth]

type Deps struct {
	Quota    store.QuotaStatus
	Registry store.FiscalRegistry
	Invoices store.InvoiceHistory
	// Prober and Health are optional; without a prober the registration's stored state is used.
	Prober HealthProber
	Health *HealthCache
}

type Config struct {
	QuotaWarningThreshold int
	CertificateWarning    time.Duration
	CancellationWarning   time.Duration
	MinJustification      int
	HealthTTL             time.Duration
	Concurrency           int
	MEIAnnualLimit        float64
	Jurisdictions         map[string]config.JurisdictionConfig
	Clock                 func() time.Time
}

// ConfigFrom converts the loaded configuration.
func ConfigFrom(cfg config.ValidatorConfig, jurisdictions map[string]config.JurisdictionConfig) Config {
	return Config{
		QuotaWarningThreshold: cfg.QuotaWarningThreshold,
		CertificateWarning:    time.Duration(cfg.CertificateWarningDays) * 24 * time.Hour,
		CancellationWarning:   time.Duration(cfg.CancellationWarningMins) * time.Minute,
		MinJustification:      cfg.MinJustificationLength,
		HealthTTL:             config.GetDuration(cfg.HealthTTL),
		Concurrency:           cfg.Concurrency,
		MEIAnnualLimit:        cfg.MEIAnnualLimit,
		Jurisdictions:         jurisdictions,
	}
}

type Validator struct {
	deps Deps
	cfg  Config
	log  logger.Logger
}

func New(deps Deps, cfg Config, log logger.Logger) *Validator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MinJustification <= 0 {
		cfg.MinJustification = 15
	}
	if cfg.QuotaWarningThreshold <= 0 {
		cfg.QuotaWarningThreshold = 5
	}
	if cfg.MEIAnnualLimit <= 0 {
		cfg.MEIAnnualLimit = 81000
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Jurisdictions == nil {
		cfg.Jurisdictions = config.DefaultJurisdictions()
	}
	return &Validator{
		deps: deps,
		cfg:  cfg,
		log:  log.WithFields(map[string]interface{}{"component": "validator"}),
	}
}

// Validate dispatches on the plan's action. Actions without side effects on the fiscal
// platform are rejected with an UNSUPPORTED_ACTION error.
func (v *Validator) Validate(ctx context.Context, tenantID string, plan *models.ActionPlan) (*models.ValidationVerdict, error) {
	switch plan.Action {
	case models.ActionEmitInvoice:
		return v.ValidateEmission(ctx, tenantID, plan.EmissionRequest()), nil
	case models.ActionCancelInvoice:
		return v.ValidateCancellation(ctx, tenantID, plan.CancellationRequest()), nil
	case models.ActionCreateClient:
		return v.run(ctx, "create_client", []check{{"subscription", checkSubscription}}, v.subject(ctx, tenantID)), nil
	}
	return nil, apperrors.NewUnsupportedActionError(string(plan.Action))
}

// ValidateEmission checks an emission request. The verdict is computed fresh every time.
func (v *Validator) ValidateEmission(ctx context.Context, tenantID string, req models.EmissionRequest) *models.ValidationVerdict {
	s := v.subject(ctx, tenantID)
	s.emission = req
	return v.run(ctx, "emission", emissionChecks, s)
}

// ValidateCancellation checks a cancellation request.
func (v *Validator) ValidateCancellation(ctx context.Context, tenantID string, req models.CancellationRequest) *models.ValidationVerdict {
	s := v.subject(ctx, tenantID)
	s.cancellation = req
	s.invoice = sync.OnceValues(func() (*models.Invoice, error) {
		return v.deps.Invoices.ByNumber(ctx, tenantID, req.InvoiceNumber)
	})
	return v.run(ctx, "cancellation", cancellationChecks, s)
}

// subject is the shared, lazily loaded state of one validation. Each collaborator is
// consulted at most once regardless of how many checks read it.
type subject struct {
	tenantID     string
	emission     models.EmissionRequest
	cancellation models.CancellationRequest
	plan         func() (*models.PlanStatus, error)
	registration func() (*models.FiscalRegistration, error)
	invoice      func() (*models.Invoice, error)
}

func (v *Validator) subject(ctx context.Context, tenantID string) *subject {
	return &subject{
		tenantID: tenantID,
		plan: sync.OnceValues(func() (*models.PlanStatus, error) {
			return v.deps.Quota.Plan(ctx, tenantID)
		}),
		registration: sync.OnceValues(func() (*models.FiscalRegistration, error) {
			return v.deps.Registry.Registration(ctx, tenantID)
		}),
	}
}

type outcome struct {
	errs  []models.ValidationItem
	warns []models.ValidationItem
}

func (o *outcome) fail(code apperrors.ErrorCode, message string, details map[string]interface{}, suggestions ...string) {
	o.errs = append(o.errs, models.ValidationItem{Code: string(code), Message: message, Details: details, Suggestions: suggestions})
}

func (o *outcome) warn(code apperrors.ErrorCode, message string, details map[string]interface{}, suggestions ...string) {
	o.warns = append(o.warns, models.ValidationItem{Code: string(code), Message: message, Details: details, Suggestions: suggestions})
}

type check struct {
	name string
	run  func(ctx context.Context, v *Validator, s *subject, o *outcome)
}

// run fans the checks out and aggregates their items in declaration order.
func (v *Validator) run(ctx context.Context, operation string, checks []check, s *subject) *models.ValidationVerdict {
	results := make([]outcome, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)
	for i, c := range checks {
		g.Go(func() error {
			c.run(gctx, v, s, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	var errs, warns []models.ValidationItem
	for _, r := range results {
		errs = append(errs, r.errs...)
		warns = append(warns, r.warns...)
	}
	verdict := models.NewVerdict(errs, warns)

	for _, e := range verdict.Errors {
		metrics.ValidationItems.WithLabelValues("error", e.Code).Inc()
	}
	for _, w := range verdict.Warnings {
		metrics.ValidationItems.WithLabelValues("warning", w.Code).Inc()
	}
	metrics.Validations.WithLabelValues(operation, strconv.FormatBool(verdict.Valid)).Inc()

	v.log.Info("validation finished", map[string]interface{}{
		"operation": operation,
		"tenantId":  s.tenantID,
		"valid":     verdict.Valid,
		"errors":    verdict.Codes(),
		"warnings":  len(verdict.Warnings),
	})
	return verdict
}

func (v *Validator) now() time.Time { return v.cfg.Clock() }
