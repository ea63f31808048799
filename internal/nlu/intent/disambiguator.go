// internal/nlu/intent/disambiguator.go
package intent

import (
	"fmt"
	"strings"

	"fiscal-assistant/internal/models"
)

const (
	minTopConfidence   = 0.4
	altConfidenceFloor = 0.3
	minConfidenceGap   = 0.2
	maxOptions         = 3
)

// GenericMenu is offered when there are not enough describable candidates to ask about.
const GenericMenu = `Não entendi bem. Posso ajudar com:
1. Emitir uma nota fiscal
2. Consultar suas notas
3. Cadastrar ou buscar clientes
4. Ver faturamento e impostos
5. Verificar a conexão com a prefeitura
O que você gostaria de fazer?`

// NeedsClarification is true when the top score is weak or an alternative is too close to it.
func NeedsClarification(top models.IntentScore, alternatives []models.IntentScore) bool {
	if top.Confidence < minTopConfidence {
		return true
	}
	if len(alternatives) == 0 {
		return false
	}
	best := alternatives[0]
	for _, a := range alternatives[1:] {
		if a.Confidence > best.Confidence {
			best = a
		}
	}
	return best.Confidence > altConfidenceFloor && top.Confidence-best.Confidence < minConfidenceGap
}

// Clarification is the question put to the user and the intents its numbered options map to.
type Clarification struct {
	Question string          `json:"question"`
	Options  []models.Intent `json:"options,omitempty"`
}

// Disambiguator builds clarification questions from rule descriptions.
type Disambiguator struct {
	descriptions map[models.Intent]string
}

func NewDisambiguator(rules []Rule) *Disambiguator {
	d := &Disambiguator{descriptions: make(map[models.Intent]string, len(rules))}
	for _, r := range rules {
		if r.Description != "" && r.Intent != models.IntentUnknown {
			d.descriptions[r.Intent] = r.Description
		}
	}
	return d
}

// Describe returns the user-facing label of an intent.
func (d *Disambiguator) Describe(intent models.Intent) (string, bool) {
	desc, ok := d.descriptions[intent]
	return desc, ok
}

// Clarify lists up to three describable candidates, or the generic menu when fewer
// than two can be described.
func (d *Disambiguator) Clarify(res Result) Clarification {
	var (
		options []models.Intent
		labels  []string
	)
	for _, s := range res.Ranked() {
		desc, ok := d.descriptions[s.Intent]
		if !ok {
			continue
		}
		options = append(options, s.Intent)
		labels = append(labels, desc)
		if len(options) == maxOptions {
			break
		}
	}
	if len(options) < 2 {
		return Clarification{Question: GenericMenu}
	}

	var b strings.Builder
	b.WriteString("Não tenho certeza do que você quer. Você quis dizer:\n")
	for i, l := range labels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	b.WriteString("Responda com o número da opção.")
	return Clarification{Question: b.String(), Options: options}
}
