// internal/assistant/executor/translate.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

// translation maps a family of platform failures onto an actionable message.
type translation struct {
	codes   []string // platform error codes, matched by prefix
	status  []int
	message func(place string) string
}

var translations = []translation{
	{
		codes: []string{"AUTH"},
		message: func(string) string {
			return "Não consegui me autenticar na plataforma fiscal. Nossa equipe já foi avisada; tente novamente em alguns minutos."
		},
	},
	{
		codes:  []string{"CERTIFICATE", "CERT_"},
		status: []int{495, 496},
		message: func(place string) string {
			return fmt.Sprintf("A prefeitura %s recusou seu certificado digital. Confira se ele está válido e envie-o novamente nas configurações fiscais.", place)
		},
	},
	{
		codes:  []string{"MUNICIPAL_CREDENTIALS", "INVALID_CREDENTIALS"},
		status: []int{401, 403},
		message: func(place string) string {
			return fmt.Sprintf("O acesso à prefeitura %s foi negado. Verifique o usuário e a senha da prefeitura e teste a conexão.", place)
		},
	},
	{
		codes:  []string{"DUPLICATE", "RPS_DUPLICATE"},
		status: []int{409},
		message: func(string) string {
			return "Esta nota já foi enviada. Consulte suas últimas notas antes de emitir de novo."
		},
	},
	{
		codes: []string{"SERVICE_CODE", "INVALID_SERVICE"},
		message: func(place string) string {
			return fmt.Sprintf("O código de serviço cadastrado não é aceito pela prefeitura %s. Revise o serviço nas configurações fiscais.", place)
		},
	},
	{
		codes: []string{"TAKER", "COUNTERPARTY", "INVALID_DOCUMENT"},
		message: func(string) string {
			return "A prefeitura não aceitou os dados do cliente. Confira o CPF/CNPJ e o endereço do cadastro."
		},
	},
	{
		codes: []string{"CANCEL_DEADLINE", "CANCELLATION_EXPIRED"},
		message: func(place string) string {
			return fmt.Sprintf("O prazo para cancelar pela prefeitura %s terminou. Emita uma nota de substituição.", place)
		},
	},
	{
		codes:  []string{"MUNICIPALITY_UNAVAILABLE", "TRANSPORT", "TIMEOUT"},
		status: []int{429, 500, 502, 503, 504},
		message: func(place string) string {
			return fmt.Sprintf("O sistema da prefeitura %s está instável no momento. Tente novamente em alguns minutos.", place)
		},
	},
}

// Translate turns an execution failure into a message for the user. Authority codes,
// HTTP statuses and transport detail never appear in the output.
func Translate(err error, j config.JurisdictionConfig) string {
	place := "do seu município"
	if j.Name != "" {
		place = "de " + j.Name
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Sprintf("A prefeitura %s demorou demais para responder. Veja suas notas pendentes antes de tentar de novo.", place)
	}

	se, ok := store.AsSinkError(err)
	if !ok {
		return "Não consegui concluir a operação agora. Tente novamente em alguns minutos."
	}
	code := strings.ToUpper(se.Code)
	for _, t := range translations {
		if t.matches(code, se.StatusCode) {
			return t.message(place)
		}
	}
	if se.Operation == "cancel" {
		return fmt.Sprintf("A prefeitura %s não aceitou o cancelamento. Confira a situação da nota e tente novamente.", place)
	}
	return fmt.Sprintf("A prefeitura %s não aceitou a nota. Revise os dados e tente novamente.", place)
}

func (t translation) matches(code string, status int) bool {
	for _, c := range t.codes {
		if strings.HasPrefix(code, c) {
			return true
		}
	}
	for _, s := range t.status {
		if s == status {
			return true
		}
	}
	return false
}

// Diagnostics is the operator-facing view of a failure.
func Diagnostics(err error) map[string]interface{} {
	d := map[string]interface{}{"error": err.Error()}
	if se, ok := store.AsSinkError(err); ok {
		d["operation"] = se.Operation
		d["statusCode"] = se.StatusCode
		d["code"] = se.Code
		d["detail"] = se.Detail
		d["retryable"] = se.Retryable
	}
	return d
}

// RenderVerdict lists every blocking item and its first suggestion.
func RenderVerdict(v *models.ValidationVerdict) string {
	var b strings.Builder
	b.WriteString("Não posso continuar ainda:")
	for _, item := range v.Errors {
		b.WriteString("\n- ")
		b.WriteString(item.Message)
		if len(item.Suggestions) > 0 {
			b.WriteString(" ")
			b.WriteString(item.Suggestions[0])
		}
	}
	for _, item := range v.Warnings {
		b.WriteString("\nAtenção: ")
		b.WriteString(item.Message)
	}
	return b.String()
}
