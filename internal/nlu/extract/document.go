// internal/nlu/extract/document.go
package extract

import (
	"regexp"

	"fiscal-assistant/internal/models"
)

// documentPatterns are tried in order; group 1 holds the candidate.
var documentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\D)(\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2})(?:\D|$)`),
	regexp.MustCompile(`(?:^|\D)(\d{3}\.?\d{3}\.?\d{3}-?\d{2})(?:\D|$)`),
	regexp.MustCompile(`(?:^|\D)(\d{11}|\d{14})(?:\D|$)`),
	regexp.MustCompile(`(?i)documento\s*:?\s*([\d./\-]{11,18})`),
}

var reNonDigit = regexp.MustCompile(`\D`)

// Document finds a CPF or CNPJ and returns it as digits only.
func Document(text string) (*models.Document, bool) {
	for _, re := range documentPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		digits := reNonDigit.ReplaceAllString(m[1], "")
		switch len(digits) {
		case 14:
			return &models.Document{Kind: models.DocumentCNPJ, Number: digits}, true
		case 11:
			return &models.Document{Kind: models.DocumentCPF, Number: digits}, true
		}
	}
	return nil, false
}

// ContainsDocument reports whether any document pattern occurs in text.
func ContainsDocument(text string) bool {
	_, ok := Document(text)
	return ok
}
