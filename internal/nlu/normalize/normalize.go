// Package normalize lowercases, trims and typo-corrects raw user text.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// corrections maps single-token typos and abbreviations to their canonical form.
// No replacement may contain a key, otherwise Normalize stops being idempotent.
var corrections = map[string]string{
	// documents
	"nf":    "nota fiscal",
	"nfe":   "nota fiscal",
	"nfs":   "nota fiscal",
	"nfse":  "nota fiscal",
	"ntoa":  "nota",
	"notta": "nota",
	"nots":  "notas",
	"cpnj":  "cnpj",
	"cnjp":  "cnpj",
	"cfp":   "cpf",
	// verbs
	"emitr":    "emitir",
	"emtir":    "emitir",
	"emitri":   "emitir",
	"imitir":   "emitir",
	"canselar": "cancelar",
	"cancelr":  "cancelar",
	"cancelra": "cancelar",
	"cadastar": "cadastrar",
	"cadastra": "cadastrar",
	// nouns
	"cliete":      "cliente",
	"clinte":      "cliente",
	"cleinte":     "cliente",
	"clintes":     "clientes",
	"faturmento":  "faturamento",
	"faturamneto": "faturamento",
	"impsoto":     "imposto",
	"inposto":     "imposto",
	"stauts":      "status",
	"emissao":     "emissão",
	"conexao":     "conexão",
	"ultima":      "última",
	"ultimo":      "último",
	"mes":         "mês",
	"ajuad":       "ajuda",
	// chat abbreviations
	"vc":   "você",
	"voce": "você",
	"pfv":  "por favor",
	"pls":  "por favor",
	"obg":  "obrigado",
	"tb":   "também",
	"tbm":  "também",
	"q":    "que",
	"oq":   "o que",
	"qnt":  "quanto",
	"qto":  "quanto",
	"qts":  "quantas",
	"hj":   "hoje",
	"ontm": "ontem",
	"pra":  "para",
	"rs":   "reais",
	"dps":  "depois",
	"agr":  "agora",
}

// Normalize lowercases, trims, collapses whitespace and applies the correction dictionary
// on whole words. Empty input yields "".
func Normalize(raw string) string {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if s == "" {
		return ""
	}
	return replaceWords(s)
}

// replaceWords substitutes maximal letter/digit runs that match a dictionary key.
func replaceWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	start := -1
	flush := func(end int) {
		word := s[start:end]
		if repl, ok := corrections[word]; ok {
			b.WriteString(repl)
		} else {
			b.WriteString(word)
		}
		start = -1
	}

	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			flush(i)
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		flush(len(s))
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Fold strips diacritics so "emissão" and "emissao" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ContainsWord reports whether phrase occurs in text on word boundaries.
// Both arguments are expected to be normalized already.
func ContainsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(phrase); {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}
		at := offset + idx
		end := at + len(phrase)
		if boundaryBefore(text, at) && boundaryAfter(text, end) {
			return true
		}
		offset = at + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

// Entries exposes the correction dictionary for invariant tests.
func Entries() map[string]string {
	out := make(map[string]string, len(corrections))
	for k, v := range corrections {
		out[k] = v
	}
	return out
}
