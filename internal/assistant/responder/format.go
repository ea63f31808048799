// internal/assistant/responder/format.go
package responder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/normalize"
)

const helpText = `Posso ajudar com:
1. Emitir nota fiscal: "emitir nota de R$ 1.500 para João Silva"
2. Consultar notas: "minhas notas deste mês", "última nota", "notas rejeitadas"
3. Clientes: "cadastrar cliente Maria Souza CPF 529.982.247-25", "meus clientes"
4. Faturamento e impostos: "quanto faturei este mês", "ver impostos"
5. Cancelar nota: "cancelar nota 123 porque o valor saiu errado"
6. Conexão: "verificar conexão com a prefeitura"`

var monthNames = []string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func periodLabel(p models.Period) string {
	switch p.Kind {
	case models.PeriodToday:
		return "hoje"
	case models.PeriodYesterday:
		return "ontem"
	case models.PeriodThisWeek:
		return "nesta semana"
	case models.PeriodThisYear:
		return "neste ano"
	case models.PeriodDay:
		return fmt.Sprintf("no dia %d", p.Value)
	case models.PeriodMonth:
		if p.Value >= 1 && p.Value <= 12 {
			return "em " + monthNames[p.Value-1]
		}
	}
	return "neste mês"
}

var statusLabels = map[models.InvoiceStatus]string{
	models.InvoiceAuthorized: "autorizada",
	models.InvoicePending:    "pendente",
	models.InvoiceProcessing: "em processamento",
	models.InvoiceRejected:   "rejeitada",
	models.InvoiceCancelled:  "cancelada",
}

func statusLabel(s models.InvoiceStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func invoiceLine(inv models.Invoice) string {
	line := fmt.Sprintf("Nº %s · %s · R$ %s · %s", inv.Number, inv.CounterpartyName, models.FormatBRL(inv.Amount), statusLabel(inv.Status))
	if inv.Status == models.InvoiceRejected && inv.RejectionReason != "" {
		line += " (" + inv.RejectionReason + ")"
	}
	return line
}

func invoiceList(title, empty string, invoices []models.Invoice) string {
	if len(invoices) == 0 {
		return empty
	}
	var b strings.Builder
	b.WriteString(title)
	for _, inv := range invoices {
		b.WriteString("\n- ")
		b.WriteString(invoiceLine(inv))
	}
	return b.String()
}

func documentLabel(kind models.DocumentKind, number string) string {
	if number == "" {
		return ""
	}
	if kind == "" {
		kind = kindOf(number)
	}
	d := models.Document{Kind: kind, Number: number}
	return strings.ToUpper(string(kind)) + " " + d.Formatted()
}

func kindOf(digits string) models.DocumentKind {
	if len(digits) == 14 {
		return models.DocumentCNPJ
	}
	return models.DocumentCPF
}

func counterpartyLabel(cp models.Counterparty) string {
	if doc := documentLabel(cp.DocumentKind, cp.Document); doc != "" {
		return cp.Name + " (" + doc + ")"
	}
	return cp.Name
}

var (
	reDocumentText  = regexp.MustCompile(`\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}|\d{3}\.?\d{3}\.?\d{3}-?\d{2}`)
	reInvoiceNumber = regexp.MustCompile(`\b(\d{1,9})\b`)
	reJustification = regexp.MustCompile(`(?i)(?:motivo|justificativa|porque|pois|por causa d[eoa])\s*:?\s*(.+)$`)
	reLastInvoice   = regexp.MustCompile(`\bultim[ao]\b`)
	reEmail         = regexp.MustCompile(`[\w.+\-]+@[\w\-]+(?:\.[\w\-]+)+`)
	reDescription   = regexp.MustCompile(`(?i)\b(?:referente|ref\.?)\s+(?:a\s+|ao\s+|à\s+|aos\s+|às\s+)?(.+)$`)
	reOption        = regexp.MustCompile(`^(?:(?:a |o )?(?:opcao|numero|n) )?(\d{1,2})[.)!]?$`)
)

var ordinals = map[string]int{
	"primeiro": 1, "primeira": 1, "segundo": 2, "segunda": 2, "terceiro": 3, "terceira": 3,
	"quarto": 4, "quarta": 4, "quinto": 5, "quinta": 5,
}

// invoiceNumber finds the first short number that is not part of a CPF or CNPJ.
func invoiceNumber(text string) string {
	m := reInvoiceNumber.FindStringSubmatch(reDocumentText.ReplaceAllString(text, " "))
	if m == nil {
		return ""
	}
	return m[1]
}

// withoutJustification drops the reason span so digits inside it are not read as the invoice number.
func withoutJustification(text string) string {
	return reJustification.ReplaceAllString(text, " ")
}

func justification(text string) string {
	m := reJustification.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(m[1], " .!"))
}

func description(text string) string {
	m := reDescription.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(m[1], " .!"))
}

// OptionNumber parses a reply such as "2", "opção 2" or "o segundo" into a zero-based index
// among n options.
func OptionNumber(text string, n int) (int, bool) {
	s := normalize.Fold(normalize.Normalize(text))
	s = strings.TrimSpace(strings.TrimSuffix(s, "."))
	k := 0
	if m := reOption.FindStringSubmatch(s); m != nil {
		k, _ = strconv.Atoi(m[1])
	} else {
		for _, w := range strings.Fields(s) {
			if v, ok := ordinals[w]; ok {
				k = v
				break
			}
		}
	}
	if k < 1 || k > n {
		return 0, false
	}
	return k - 1, true
}

// bareName takes the leading name of a "name + document" line, keeping the user's casing.
func bareName(raw string) string {
	end := strings.IndexFunc(raw, unicode.IsDigit)
	if end < 0 {
		return ""
	}
	words := strings.Fields(strings.Trim(raw[:end], " ,;:-"))
	for len(words) > 0 {
		last := strings.ToLower(strings.Trim(words[len(words)-1], " ,;:-"))
		if last != "cpf" && last != "cnpj" && last != "documento" && last != "" {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Trim(strings.Join(words, " "), " ,;:-")
}

func sameName(a, b string) bool {
	fold := func(s string) string { return normalize.Fold(strings.ToLower(strings.TrimSpace(s))) }
	return fold(a) == fold(b)
}
