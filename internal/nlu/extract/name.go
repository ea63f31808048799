// internal/nlu/extract/name.go
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"fiscal-assistant/internal/nlu/normalize"
)

// noise is removed before name patterns run so numbers never leak into names.
var noise = []*regexp.Regexp{
	regexp.MustCompile(`\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}`),
	regexp.MustCompile(`\d{3}\.?\d{3}\.?\d{3}-?\d{2}`),
	regexp.MustCompile(`[\w.+\-]+@[\w\-]+(?:\.[\w\-]+)+`),
	regexp.MustCompile(`\(?\b\d{2}\)?\s?9?\d{4}-?\d{4}\b`),
	regexp.MustCompile(`(?i)r\$\s*\d[\d.,]*(?:\s*(?:mil|k)\b)?`),
	regexp.MustCompile(`(?i)\b\d[\d.,]*\s*(?:reais|real|mil|k)\b`),
	regexp.MustCompile(`(?i)\b(?:mil\s+e\s+\p{L}+|mil)\s+reais\b`),
	regexp.MustCompile(`(?i)(?:^|\s)mil(?:\s+e\s+\p{L}+)?(?:\s|$)`),
	regexp.MustCompile(`\b\d+\b`),
}

// namePatterns run in decreasing specificity; group 1 holds the candidate.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bnome\s+(?:dele\s+|dela\s+|do\s+cliente\s+|da\s+empresa\s+)?(?:eh|é|e)\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)\bchamad[oa]\s+(?:de\s+)?(.+)`),
	regexp.MustCompile(`(?i)\bcliente\s*:\s*(.+)`),
	regexp.MustCompile(`(?i)\b(?:cadastr\w*|cri\w*|adicion\w*|registr\w*|inclu\w*)\s+(?:o\s+|a\s+|um\s+|uma\s+)?(?:nov[oa]\s+)?(?:cliente|tomador|empresa)\s+(.+)`),
	regexp.MustCompile(`(?i)\b(?:para|pra|pro)\s+(?:o\s+|a\s+)?(?:cliente\s+|tomador\s+)?(.+)`),
	regexp.MustCompile(`(?i)\bd[oa]\s+(?:cliente\s+)?(.+)`),
	regexp.MustCompile(`(?i)\braz(?:ão|ao)\s+social\s*:?\s*(.+)`),
	regexp.MustCompile(`(?i)\bcliente\s+(.+)`),
}

// reNameDelimiter marks where the name ends and other fields begin.
var reNameDelimiter = regexp.MustCompile(`(?i)\s*(?:[,;!?]|\.\s|\s-\s|\s+com\s+|\s+no\s+valor|\s+valor\b|\s+cpf\b|\s+cnpj\b|\s+documento\b|\s+e-?mail\b|\s+telefone\b|\s+referente\b|\s+hoje\b|\s+ontem\b|\s+por\s+favor\b|\s+deste\s+m[eê]s|\s+desse\s+m[eê]s|\s+neste\s+m[eê]s)`)

// trailing connectors left over once amounts are stripped ("João Silva de").
var trailingConnectors = map[string]bool{
	"de": true, "do": true, "da": true, "no": true, "na": true, "e": true,
	"o": true, "a": true, "um": true, "uma": true, "em": true,
}

var nameStopWords = map[string]bool{
	"novo": true, "nova": true, "com": true, "cliente": true, "clientes": true,
	"nota": true, "notas": true, "um": true, "uma": true, "o": true, "a": true,
	"ele": true, "ela": true, "mim": true, "voce": true, "que": true,
	"mes": true, "dia": true, "ano": true, "semana": true, "hoje": true,
	"ontem": true, "mesmo": true, "mesma": true, "todos": true, "todas": true,
	"favor": true, "sim": true, "nao": true, "valor": true, "empresa": true,
	"fiscal": true, "imposto": true, "impostos": true, "das": true,
}

// CounterpartyName extracts the counterparty from free text, keeping its original casing.
func CounterpartyName(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	for _, re := range noise {
		s = re.ReplaceAllString(s, " ")
	}
	s = strings.Join(strings.Fields(s), " ")

	for _, re := range namePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}
	return ""
}

func cleanName(candidate string) string {
	if loc := reNameDelimiter.FindStringIndex(candidate); loc != nil {
		candidate = candidate[:loc[0]]
	}
	words := strings.Fields(strings.Trim(candidate, " .,:;-"))
	for len(words) > 0 && trailingConnectors[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	name := strings.Join(words, " ")
	if !hasLetter(name) || len([]rune(name)) < 2 {
		return ""
	}
	if len(words) == 1 && nameStopWords[normalize.Fold(strings.ToLower(name))] {
		return ""
	}
	return name
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
