// Package extract pulls amounts, tax documents, counterparty names and periods out of
// Portuguese free text. Every function is pure.
package extract

import "fiscal-assistant/internal/models"

// All runs every extractor over text.
func All(text string) models.Entities {
	var e models.Entities
	if v, ok := Amount(text); ok {
		e.Amount = &v
	}
	if d, ok := Document(text); ok {
		e.Document = d
	}
	e.CounterpartyName = CounterpartyName(text)
	if p, ok := Period(text); ok {
		e.Period = p
	}
	return e
}
