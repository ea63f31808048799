// internal/assistant/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-assistant/internal/common/aws"
	"fiscal-assistant/internal/common/config"
	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
	"fiscal-assistant/internal/store/memory"
)

const tenant = "tenant-1"

var now = time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)

type fakeValidator struct {
	verdict *models.ValidationVerdict
	calls   int
}

func (f *fakeValidator) Validate(context.Context, string, *models.ActionPlan) (*models.ValidationVerdict, error) {
	f.calls++
	if f.verdict == nil {
		return models.NewVerdict(nil, nil), nil
	}
	return f.verdict, nil
}

type fakeSink struct {
	invoice *models.Invoice
	err     error
	emitted []models.EmissionRequest
	cancels []models.CancellationRequest
}

func (s *fakeSink) EmitInvoice(_ context.Context, _ string, req models.EmissionRequest) (*models.Invoice, error) {
	s.emitted = append(s.emitted, req)
	if s.err != nil {
		return nil, s.err
	}
	out := *s.invoice
	return &out, nil
}

func (s *fakeSink) CancelInvoice(_ context.Context, _ string, req models.CancellationRequest) (*models.Invoice, error) {
	s.cancels = append(s.cancels, req)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Invoice{Number: req.InvoiceNumber, Status: models.InvoiceCancelled}, nil
}

func (s *fakeSink) CheckConnection(context.Context, string) (models.ConnectionHealth, error) {
	return models.ConnectionHealthy, nil
}

type fakeNotifier struct {
	notices []*models.Counterparty
	events  []aws.Event
}

func (n *fakeNotifier) InvoiceEmitted(_ context.Context, _ *models.Invoice, cp *models.Counterparty) error {
	n.notices = append(n.notices, cp)
	return nil
}

func (n *fakeNotifier) Publish(_ context.Context, ev aws.Event) error {
	n.events = append(n.events, ev)
	return nil
}

type fixture struct {
	validator      *fakeValidator
	sink           *fakeSink
	notifier       *fakeNotifier
	quota          *memory.Quota
	invoices       *memory.Invoices
	counterparties *memory.Counterparties
	executor       *Executor
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		validator: &fakeValidator{},
		sink: &fakeSink{invoice: &models.Invoice{
			ID: "inv-new", Number: "124", VerificationCode: "AB12-CD34", Status: models.InvoiceAuthorized,
			Amount: 1500, IssuedAt: now,
		}},
		notifier: &fakeNotifier{},
		quota:    memory.NewQuota(),
		invoices: memory.NewInvoices(models.Invoice{
			ID: "inv-900", TenantID: tenant, Number: "900", Status: models.InvoiceAuthorized,
			CounterpartyName: "Empresa ABC", Amount: 2000, IssuedAt: now.Add(-48 * time.Hour),
		}),
		counterparties: memory.NewCounterparties(models.Counterparty{
			ID: "cp-joao", TenantID: tenant, Name: "João Silva", Document: "52998224725",
			DocumentKind: models.DocumentCPF, Email: "joao@example.com",
		}),
	}
	f.quota.Plans[tenant] = models.PlanStatus{TenantID: tenant, PlanID: "basic", Status: "active", InvoicesUsed: 3, InvoicesAllowed: 50}

	registry := memory.NewRegistry()
	registry.Items[tenant] = models.FiscalRegistration{TenantID: tenant, MunicipalityCode: "3550308"}

	f.executor = New(Deps{
		Validator:      f.validator,
		Sink:           f.sink,
		Counterparties: f.counterparties,
		Invoices:       f.invoices,
		Registry:       registry,
		Quota:          f.quota,
		Notifier:       f.notifier,
	}, config.DefaultJurisdictions(), func() time.Time { return now }, logger.NewTestLogger(t))
	return f
}

func emitPlan() *models.ActionPlan {
	return &models.ActionPlan{
		ID:     "plan-1",
		Action: models.ActionEmitInvoice,
		Data: map[string]interface{}{
			"amount":            1500.0,
			"counterparty":      "cp-joao",
			"counterparty_name": "João Silva",
		},
		RequiresConfirmation: true,
	}
}

func confirmed(plan *models.ActionPlan) *models.Confirmation {
	return &models.Confirmation{PlanID: plan.ID, TurnID: "turn-2", ConfirmedAt: now}
}

func code(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	se, ok := apperrors.As(err)
	require.True(t, ok, "expected a StandardError, got %v", err)
	return se.Code
}

func TestExecute_RequiresMatchingConfirmation(t *testing.T) {
	tests := []struct {
		name string
		conf *models.Confirmation
	}{
		{"no confirmation", nil},
		{"other plan", &models.Confirmation{PlanID: "plan-2", ConfirmedAt: now}},
		{"never confirmed", &models.Confirmation{PlanID: "plan-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.executor.Execute(context.Background(), tenant, emitPlan(), tt.conf)

			assert.Equal(t, apperrors.ErrCodeConfirmationRequired, code(t, err))
			assert.Empty(t, f.sink.emitted)
			assert.Zero(t, f.validator.calls)
		})
	}
}

func TestExecute_RejectsReadOnlyPlans(t *testing.T) {
	f := newFixture(t)
	plan := &models.ActionPlan{ID: "plan-q", Action: models.ActionQueryInvoices}

	_, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))
	assert.Equal(t, apperrors.ErrCodeUnsupportedAction, code(t, err))
}

func TestExecute_ValidationRunsFirst(t *testing.T) {
	f := newFixture(t)
	f.validator.verdict = models.NewVerdict([]models.ValidationItem{{
		Code:        "quota-exceeded",
		Message:     "Você já emitiu as 50 notas do plano Básico este mês.",
		Suggestions: []string{"Mude para o plano Pro."},
	}}, nil)
	plan := emitPlan()

	result, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))

	assert.Equal(t, apperrors.ErrCodeValidationFailed, code(t, err))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "50 notas")
	assert.Contains(t, result.Message, "Mude para o plano Pro.")
	assert.Empty(t, f.sink.emitted)
}

func TestExecute_EmitAuthorized(t *testing.T) {
	f := newFixture(t)
	plan := emitPlan()

	result, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "Nota 124 emitida para João Silva no valor de R$ 1.500,00")
	assert.Contains(t, result.Message, "AB12-CD34")
	require.Len(t, f.sink.emitted, 1)
	assert.Equal(t, "cp-joao", f.sink.emitted[0].CounterpartyID)

	stored, err := f.invoices.ByNumber(context.Background(), tenant, "124")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceAuthorized, stored.Status)

	assert.Equal(t, 4, f.quota.Plans[tenant].InvoicesUsed)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "joao@example.com", f.notifier.notices[0].Email)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "invoice.emitted", f.notifier.events[0].Type)
	assert.Equal(t, "plan-1", f.notifier.events[0].PlanID)
}

func TestExecute_EmitRejectedByAuthority(t *testing.T) {
	f := newFixture(t)
	f.sink.invoice = &models.Invoice{Number: "125", Status: models.InvoiceRejected, RejectionReason: "Código de serviço inválido"}
	plan := emitPlan()

	result, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "rejeitou")
	assert.Contains(t, result.Message, "Código de serviço inválido")
	assert.Empty(t, f.notifier.notices)
}

func TestExecute_SinkFailureIsTranslated(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      apperrors.ErrorCode
		retryable bool
	}{
		{
			name: "authority outage",
			err:  &store.SinkError{Operation: "emit", StatusCode: 503, Code: "HTTP_503", Detail: "upstream connect error", Retryable: true},
			code: apperrors.ErrCodeSinkUnavailable,
		},
		{
			name: "certificate refused",
			err:  &store.SinkError{Operation: "emit", StatusCode: 422, Code: "CERTIFICATE_REVOKED", Detail: "E160 certificado revogado"},
			code: apperrors.ErrCodeExecutionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.sink.err = tt.err
			plan := emitPlan()

			result, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))

			assert.Equal(t, tt.code, code(t, err))
			require.NotNil(t, result)
			assert.False(t, result.Success)
			assert.Contains(t, result.Message, "São Paulo")
			se := tt.err.(*store.SinkError)
			assert.NotContains(t, result.Message, se.Code)
			assert.NotContains(t, result.Message, se.Detail)
			assert.Equal(t, se.Code, result.Diagnostics["code"])
			assert.Equal(t, 3, f.quota.Plans[tenant].InvoicesUsed)
		})
	}
}

func TestExecute_Cancel(t *testing.T) {
	f := newFixture(t)
	plan := &models.ActionPlan{
		ID:     "plan-c",
		Action: models.ActionCancelInvoice,
		Data:   map[string]interface{}{"invoice_number": "900", "justification": "valor informado incorretamente"},
	}

	result, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Nota 900 cancelada.", result.Message)
	stored, err := f.invoices.ByNumber(context.Background(), tenant, "900")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceCancelled, stored.Status)
	assert.Equal(t, "Empresa ABC", stored.CounterpartyName)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "invoice.cancelled", f.notifier.events[0].Type)
}

func TestExecute_CreateClient(t *testing.T) {
	f := newFixture(t)
	plan := &models.ActionPlan{
		ID:     "plan-cc",
		Action: models.ActionCreateClient,
		Data: map[string]interface{}{
			"name": "Maria Souza", "document": "12345678909", "document_kind": "cpf", "email": "maria@example.com",
		},
	}

	result, err := f.executor.Execute(context.Background(), tenant, plan, confirmed(plan))
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Counterparty)
	assert.NotEmpty(t, result.Counterparty.ID)

	found, err := f.counterparties.FindByDocument(context.Background(), tenant, "12345678909")
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", found.Name)

	duplicate := &models.ActionPlan{ID: "plan-dup", Action: models.ActionCreateClient, Data: map[string]interface{}{
		"name": "Outro João", "document": "52998224725",
	}}
	result, err = f.executor.Execute(context.Background(), tenant, duplicate, confirmed(duplicate))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Já existe")
}

func TestTranslate(t *testing.T) {
	sp := config.JurisdictionConfig{Name: "São Paulo"}

	tests := []struct {
		name string
		err  error
		j    config.JurisdictionConfig
		want string
	}{
		{"certificate", &store.SinkError{Code: "CERT_EXPIRED"}, sp, "certificado digital"},
		{"credentials by status", &store.SinkError{StatusCode: 401, Code: "HTTP_401"}, sp, "senha da prefeitura"},
		{"duplicate", &store.SinkError{StatusCode: 409, Code: "HTTP_409"}, sp, "já foi enviada"},
		{"outage", &store.SinkError{Code: "TRANSPORT", Detail: "dial tcp: connection refused"}, sp, "instável"},
		{"unknown emission code", &store.SinkError{Operation: "emit", Code: "E999"}, sp, "não aceitou a nota"},
		{"unknown cancellation code", &store.SinkError{Operation: "cancel", Code: "E999"}, sp, "não aceitou o cancelamento"},
		{"deadline", context.DeadlineExceeded, sp, "demorou demais"},
		{"unknown jurisdiction", &store.SinkError{Code: "TRANSPORT"}, config.JurisdictionConfig{}, "do seu município"},
		{"plain error", errors.New("boom"), sp, "Tente novamente"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Translate(tt.err, tt.j)
			assert.Contains(t, msg, tt.want)
			assert.NotContains(t, msg, "HTTP_")
			assert.NotContains(t, msg, "E999")
			assert.NotContains(t, msg, "dial tcp")
		})
	}
}
