// internal/assistant/responder/args.go
package responder

import (
	"fmt"
	"strconv"
	"strings"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/extract"
)

// argFields maps model argument names onto handler field names.
var argFields = map[string]string{
	"numero":        "number",
	"justificativa": "justification",
	"descricao":     "description",
	"nome":          "name",
	"email":         "email",
	"termo":         "term",
	"status":        "status",
}

// fromArgs converts model call arguments into the entities and fields handlers read.
func fromArgs(args map[string]interface{}) (models.Entities, map[string]string) {
	var ents models.Entities
	fields := make(map[string]string)

	for key, raw := range args {
		switch key {
		case "valor":
			if v, ok := number(raw); ok && v > 0 {
				ents.Amount = &v
			}
		case "cliente":
			ents.CounterpartyName = strings.TrimSpace(fmt.Sprint(raw))
		case "documento":
			if d, ok := extract.Document(fmt.Sprint(raw)); ok {
				ents.Document = d
			}
		case "periodo":
			if p, ok := parsePeriod(fmt.Sprint(raw)); ok {
				ents.Period = p
			}
		default:
			if name, ok := argFields[key]; ok {
				fields[name] = strings.TrimSpace(fmt.Sprint(raw))
			}
		}
	}
	if term := fields["term"]; term != "" && ents.Document == nil {
		if d, ok := extract.Document(term); ok {
			ents.Document = d
		}
	}
	return ents, fields
}

func number(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
			return f, true
		}
		return extract.Amount(v)
	}
	return 0, false
}

// parsePeriod reads a canonical token such as "this_month", "day:15" or "month:3".
func parsePeriod(token string) (*models.Period, bool) {
	token = strings.TrimSpace(token)
	kind, value, hasValue := strings.Cut(token, ":")
	switch models.PeriodKind(kind) {
	case models.PeriodToday, models.PeriodYesterday, models.PeriodThisWeek, models.PeriodThisMonth, models.PeriodThisYear:
		if hasValue {
			return nil, false
		}
		return &models.Period{Kind: models.PeriodKind(kind)}, true
	case models.PeriodDay, models.PeriodMonth:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || (kind == string(models.PeriodDay) && n > 31) || (kind == string(models.PeriodMonth) && n > 12) {
			return nil, false
		}
		return &models.Period{Kind: models.PeriodKind(kind), Value: n}, true
	}
	return nil, false
}
