// internal/assistant/validator/checks.go
package validator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

var emissionChecks = []check{
	{"subscription", checkSubscription},
	{"quota", checkQuota},
	{"counterparty", checkCounterparty},
	{"registration", checkRegistration},
	{"jurisdiction", checkJurisdiction},
	{"certificate", checkCertificate},
	{"connection", checkConnection},
	{"tax_regime", checkTaxRegime},
}

var cancellationChecks = []check{
	{"subscription", checkSubscription},
	{"registration", checkRegistration},
	{"jurisdiction", checkJurisdiction},
	{"certificate", checkCertificate},
	{"connection", checkConnection},
	{"invoice", checkInvoiceStatus},
	{"justification", checkJustification},
	{"deadline", checkCancellationDeadline},
}

func unavailable(v *Validator, o *outcome, name string, err error) {
	v.log.Warn("validation collaborator failed", map[string]interface{}{
		"check": name,
		"error": err.Error(),
	})
	o.fail(apperrors.CodeStatusUnavailable,
		"Não consegui verificar todas as condições agora. Tente novamente em alguns minutos.",
		map[string]interface{}{"check": name})
}

// ==========================
// Shared checks
// ==========================

func checkSubscription(_ context.Context, v *Validator, s *subject, o *outcome) {
	plan, err := s.plan()
	switch {
	case errors.Is(err, store.ErrNotFound):
		o.fail(apperrors.CodeSubscriptionInactive,
			"Você ainda não tem uma assinatura ativa.",
			nil, "Escolha um plano para começar a emitir notas.")
		return
	case err != nil:
		unavailable(v, o, "subscription", err)
		return
	}
	if !plan.Active() {
		o.fail(apperrors.CodeSubscriptionInactive,
			fmt.Sprintf("Sua assinatura do plano %s não está ativa (%s).", plan.PlanName, plan.Status),
			map[string]interface{}{"status": plan.Status},
			"Regularize o pagamento da assinatura para voltar a emitir.")
	}
}

func checkRegistration(_ context.Context, v *Validator, s *subject, o *outcome) {
	_, err := s.registration()
	switch {
	case errors.Is(err, store.ErrNotFound):
		o.fail(apperrors.CodeFiscalRegistrationMissing,
			"Sua empresa ainda não está cadastrada na plataforma fiscal.",
			nil, "Conclua o cadastro fiscal da empresa nas configurações.")
	case err != nil:
		unavailable(v, o, "registration", err)
	}
}

// The checks below depend on the registration and stay silent when it is missing,
// which checkRegistration already reports.

func checkJurisdiction(_ context.Context, v *Validator, s *subject, o *outcome) {
	reg, err := s.registration()
	if err != nil {
		return
	}
	if j, ok := v.cfg.Jurisdictions[reg.MunicipalityCode]; ok && j.Supported {
		return
	}
	o.fail(apperrors.CodeJurisdictionUnsupported,
		"Ainda não emitimos notas para o município da sua empresa.",
		map[string]interface{}{"municipalityCode": reg.MunicipalityCode})
}

func checkCertificate(_ context.Context, v *Validator, s *subject, o *outcome) {
	reg, err := s.registration()
	if err != nil {
		return
	}
	if !reg.CertificatePresent || reg.CertificateExpiresAt == nil {
		o.fail(apperrors.CodeCertificateMissing,
			"Nenhum certificado digital foi enviado.",
			nil, "Envie seu certificado A1 nas configurações fiscais.")
		return
	}
	expires := *reg.CertificateExpiresAt
	now := v.now()
	details := map[string]interface{}{"expiresAt": expires.UTC().Format("2006-01-02")}
	switch {
	case !expires.After(now):
		o.fail(apperrors.CodeCertificateExpired,
			fmt.Sprintf("Seu certificado digital venceu em %s.", expires.Format("02/01/2006")),
			details, "Renove o certificado e envie o novo arquivo.")
	case expires.Sub(now) <= v.cfg.CertificateWarning:
		days := int(math.Ceil(expires.Sub(now).Hours() / 24))
		o.warn(apperrors.CodeCertificateExpiring,
			fmt.Sprintf("Seu certificado digital vence em %d dia(s).", days),
			details, "Providencie a renovação para não interromper as emissões.")
	}
}

func checkConnection(ctx context.Context, v *Validator, s *subject, o *outcome) {
	reg, err := s.registration()
	if err != nil {
		return
	}
	switch v.connectionHealth(ctx, s.tenantID, reg) {
	case models.ConnectionHealthy:
	case models.ConnectionFailed:
		o.fail(apperrors.CodeConnectionFailed,
			"A conexão com a prefeitura falhou na última verificação.",
			nil, "Verifique o certificado e a senha da prefeitura e teste a conexão novamente.")
	default:
		o.fail(apperrors.CodeConnectionMissing,
			"Sua empresa ainda não está conectada à prefeitura.",
			nil, "Conecte a empresa à prefeitura nas configurações fiscais.")
	}
}

// connectionHealth prefers, in order: a cached state, a recent state stored with the
// registration and a live probe. Whatever is used is cached until the TTL elapses.
func (v *Validator) connectionHealth(ctx context.Context, tenantID string, reg *models.FiscalRegistration) models.ConnectionHealth {
	if v.deps.Health != nil {
		if h, ok := v.deps.Health.Get(tenantID); ok {
			return h
		}
	}

	fresh := !reg.ConnectionCheckedAt.IsZero() && v.now().Sub(reg.ConnectionCheckedAt) < v.cfg.HealthTTL
	if fresh || v.deps.Prober == nil {
		if v.deps.Health != nil && fresh {
			v.deps.Health.SetUntil(tenantID, reg.Connection, reg.ConnectionCheckedAt.Add(v.cfg.HealthTTL))
		}
		return reg.Connection
	}

	health, err := v.deps.Prober.CheckConnection(ctx, tenantID)
	if err != nil {
		v.log.Warn("connection probe failed, using stored state", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
		return reg.Connection
	}
	if v.deps.Health != nil {
		v.deps.Health.Set(tenantID, health)
	}
	return health
}

// ==========================
// Emission checks
// ==========================

func checkQuota(ctx context.Context, v *Validator, s *subject, o *outcome) {
	plan, err := s.plan()
	if err != nil || plan.Unlimited {
		return
	}
	remaining := plan.Remaining()
	details := map[string]interface{}{
		"used":      plan.InvoicesUsed,
		"allowed":   plan.InvoicesAllowed,
		"remaining": remaining,
	}
	switch {
	case remaining == 0:
		o.fail(apperrors.CodeQuotaExceeded,
			fmt.Sprintf("Você já emitiu as %d notas do plano %s este mês.", plan.InvoicesAllowed, plan.PlanName),
			details, v.upgradeSuggestions(ctx, plan)...)
	case remaining <= v.cfg.QuotaWarningThreshold:
		o.warn(apperrors.CodeQuotaNearLimit,
			fmt.Sprintf("Restam %d nota(s) no seu plano este mês.", remaining),
			details)
	}
}

func (v *Validator) upgradeSuggestions(ctx context.Context, plan *models.PlanStatus) []string {
	options, err := v.deps.Quota.UpgradeOptions(ctx, plan.PlanID)
	if err != nil {
		v.log.Warn("upgrade options unavailable", map[string]interface{}{"error": err.Error()})
	}
	var out []string
	for _, opt := range options {
		limit := fmt.Sprintf("%d notas/mês", opt.MonthlyInvoices)
		if opt.Unlimited {
			limit = "notas ilimitadas"
		}
		out = append(out, fmt.Sprintf("Mude para o plano %s: %s por R$ %s/mês.", opt.Name, limit, models.FormatBRL(opt.MonthlyPrice)))
	}
	if len(out) == 0 {
		out = append(out, "Faça upgrade do seu plano para continuar emitindo este mês.")
	}
	return out
}

func checkCounterparty(_ context.Context, _ *Validator, s *subject, o *outcome) {
	req := s.emission
	if strings.TrimSpace(req.CounterpartyID) == "" && strings.TrimSpace(req.CounterpartyName) == "" {
		o.fail(apperrors.CodeCounterpartyMissing,
			"Informe para quem a nota será emitida.",
			nil, "Diga o nome ou o CPF/CNPJ do cliente.")
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		o.fail(apperrors.CodeAmountInvalid,
			"O valor da nota precisa ser maior que zero.",
			map[string]interface{}{"amount": req.Amount})
	}
}

func checkTaxRegime(_ context.Context, v *Validator, s *subject, o *outcome) {
	reg, err := s.registration()
	if err != nil || reg.TaxRegime != models.RegimeMEI {
		return
	}
	limit := v.cfg.MEIAnnualLimit
	total := reg.YearToDateRevenue + s.emission.Amount
	details := map[string]interface{}{
		"yearToDate": reg.YearToDateRevenue,
		"limit":      limit,
	}
	switch {
	case total > limit:
		o.fail(apperrors.CodeTaxRegimeLimitExceeded,
			fmt.Sprintf("Esta nota faria seu faturamento no ano passar do limite do MEI (R$ %s).", models.FormatBRL(limit)),
			details, "Converse com seu contador sobre o desenquadramento para ME no Simples Nacional.")
	case total >= limit*0.8:
		o.warn(apperrors.CodeTaxRegimeLimitNear,
			fmt.Sprintf("Com esta nota você chega a %.0f%% do limite anual do MEI.", total/limit*100),
			details)
	}
}

// ==========================
// Cancellation checks
// ==========================

func checkInvoiceStatus(_ context.Context, v *Validator, s *subject, o *outcome) {
	if strings.TrimSpace(s.cancellation.InvoiceNumber) == "" {
		o.fail(apperrors.CodeInvoiceNotFound, "Informe o número da nota que deseja cancelar.", nil)
		return
	}
	inv, err := s.invoice()
	switch {
	case errors.Is(err, store.ErrNotFound):
		o.fail(apperrors.CodeInvoiceNotFound,
			fmt.Sprintf("Não encontrei a nota %s.", s.cancellation.InvoiceNumber),
			map[string]interface{}{"number": s.cancellation.InvoiceNumber})
		return
	case err != nil:
		unavailable(v, o, "invoice", err)
		return
	}
	if inv.Status != models.InvoiceAuthorized {
		o.fail(apperrors.CodeInvoiceNotCancellable,
			fmt.Sprintf("A nota %s não pode ser cancelada porque está com status %s.", inv.Number, inv.Status),
			map[string]interface{}{"status": string(inv.Status)},
			"Somente notas autorizadas podem ser canceladas.")
	}
}

func checkJustification(_ context.Context, v *Validator, s *subject, o *outcome) {
	n := utf8.RuneCountInString(strings.TrimSpace(s.cancellation.Justification))
	if n >= v.cfg.MinJustification {
		return
	}
	o.fail(apperrors.CodeJustificationTooShort,
		fmt.Sprintf("A justificativa precisa ter pelo menos %d caracteres.", v.cfg.MinJustification),
		map[string]interface{}{"length": n, "minimum": v.cfg.MinJustification},
		"Explique o motivo, por exemplo: \"valor informado incorretamente\".")
}

func checkCancellationDeadline(_ context.Context, v *Validator, s *subject, o *outcome) {
	if s.cancellation.InvoiceNumber == "" {
		return
	}
	reg, err := s.registration()
	if err != nil {
		return
	}
	inv, err := s.invoice()
	if err != nil || inv.Status != models.InvoiceAuthorized {
		return
	}

	code := inv.MunicipalityCode
	if code == "" {
		code = reg.MunicipalityCode
	}
	j, ok := v.cfg.Jurisdictions[code]
	if !ok || !j.Supported {
		return
	}
	if !j.SupportsCancellation {
		o.fail(apperrors.CodeCancellationUnsupported,
			fmt.Sprintf("A prefeitura de %s não permite cancelar notas por aqui.", j.Name),
			map[string]interface{}{"municipalityCode": code},
			"Solicite o cancelamento diretamente no portal da prefeitura.")
		return
	}

	deadline := inv.IssuedAt.Add(time.Duration(j.CancellationDeadlineHours) * time.Hour)
	left := deadline.Sub(v.now())
	details := map[string]interface{}{
		"deadline":      deadline.UTC().Format(time.RFC3339),
		"deadlineHours": j.CancellationDeadlineHours,
	}
	switch {
	case left <= 0:
		o.fail(apperrors.CodeCancellationDeadlineExpired,
			fmt.Sprintf("O prazo de cancelamento em %s (%d horas após a emissão) já terminou.", j.Name, j.CancellationDeadlineHours),
			details, "Emita uma nota de substituição ou procure a prefeitura.")
	case left <= v.cfg.CancellationWarning:
		o.warn(apperrors.CodeCancellationDeadlineNear,
			fmt.Sprintf("O prazo de cancelamento termina em %d minuto(s).", int(math.Ceil(left.Minutes()))),
			details)
	}
}
