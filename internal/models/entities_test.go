// internal/models/entities_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Valid(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{"valid cpf", Document{Kind: DocumentCPF, Number: "52998224725"}, true},
		{"valid cpf 2", Document{Kind: DocumentCPF, Number: "12345678909"}, true},
		{"cpf wrong verifier", Document{Kind: DocumentCPF, Number: "52998224726"}, false},
		{"cpf repeated digits", Document{Kind: DocumentCPF, Number: "11111111111"}, false},
		{"valid cnpj", Document{Kind: DocumentCNPJ, Number: "11222333000181"}, true},
		{"valid cnpj 2", Document{Kind: DocumentCNPJ, Number: "12345678000195"}, true},
		{"cnpj wrong verifier", Document{Kind: DocumentCNPJ, Number: "11222333000182"}, false},
		{"kind and length mismatch", Document{Kind: DocumentCNPJ, Number: "52998224725"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.Valid())
		})
	}
}

func TestDocument_Formatted(t *testing.T) {
	assert.Equal(t, "529.982.247-25", Document{Kind: DocumentCPF, Number: "52998224725"}.Formatted())
	assert.Equal(t, "11.222.333/0001-81", Document{Kind: DocumentCNPJ, Number: "11222333000181"}.Formatted())
}

func TestPeriod_Token(t *testing.T) {
	assert.Equal(t, "this_month", Period{Kind: PeriodThisMonth}.Token())
	assert.Equal(t, "day:15", Period{Kind: PeriodDay, Value: 15}.Token())
	assert.Equal(t, "month:3", Period{Kind: PeriodMonth, Value: 3}.Token())
}

func TestPeriod_Range(t *testing.T) {
	// Wednesday
	now := time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		period   Period
		from, to time.Time
	}{
		{Period{Kind: PeriodToday}, day(10, 14), day(10, 15)},
		{Period{Kind: PeriodYesterday}, day(10, 13), day(10, 14)},
		{Period{Kind: PeriodThisWeek}, day(10, 12), day(10, 19)},
		{Period{Kind: PeriodThisMonth}, day(10, 1), day(11, 1)},
		{Period{Kind: PeriodThisYear}, day(1, 1), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Period{Kind: PeriodDay, Value: 5}, day(10, 5), day(10, 6)},
		{Period{Kind: PeriodMonth, Value: 3}, day(3, 1), day(4, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.period.Token(), func(t *testing.T) {
			from, to := tt.period.Range(now)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestNewVerdict_ValidMirrorsErrors(t *testing.T) {
	ok := NewVerdict(nil, []ValidationItem{{Code: "quota-near-limit"}})
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)
	assert.Len(t, ok.Warnings, 1)

	bad := NewVerdict([]ValidationItem{{Code: "quota-exceeded"}}, nil)
	assert.False(t, bad.Valid)
	assert.Equal(t, []string{"quota-exceeded"}, bad.Codes())
}

func TestActionType_IsMutating(t *testing.T) {
	assert.True(t, ActionEmitInvoice.IsMutating())
	assert.True(t, ActionCancelInvoice.IsMutating())
	assert.False(t, ActionQueryInvoices.IsMutating())
	assert.False(t, ActionGreeting.IsMutating())
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "1.500,00", FormatBRL(1500))
	assert.Equal(t, "0,99", FormatBRL(0.99))
	assert.Equal(t, "1.234.567,89", FormatBRL(1234567.89))
	assert.Equal(t, "150,50", FormatBRL(150.5))
	assert.Equal(t, "-2.000,00", FormatBRL(-2000))
}

func TestActionPlan_Requests(t *testing.T) {
	plan := &ActionPlan{Data: map[string]interface{}{
		"amount":            1500.0,
		"counterparty":      "cp-1",
		"counterparty_name": "João Silva",
		"document":          "52998224725",
		"invoice_number":    "123",
		"justification":     "valor digitado errado",
	}}

	emission := plan.EmissionRequest()
	assert.Equal(t, 1500.0, emission.Amount)
	assert.Equal(t, "cp-1", emission.CounterpartyID)
	assert.Equal(t, "", emission.Email)

	cancellation := plan.CancellationRequest()
	assert.Equal(t, "123", cancellation.InvoiceNumber)
	assert.Equal(t, "valor digitado errado", cancellation.Justification)
}
