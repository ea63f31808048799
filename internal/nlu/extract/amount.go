// internal/nlu/extract/amount.go
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"fiscal-assistant/internal/nlu/normalize"
)

const (
	minBareAmount = 1
	maxBareAmount = 10_000_000
)

// numberWords maps Portuguese cardinal words to their value.
var numberWords = map[string]float64{
	"um": 1, "uma": 1, "dois": 2, "duas": 2, "três": 3, "tres": 3, "quatro": 4,
	"cinco": 5, "seis": 6, "sete": 7, "oito": 8, "nove": 9, "dez": 10,
	"onze": 11, "doze": 12, "treze": 13, "quatorze": 14, "catorze": 14,
	"quinze": 15, "dezesseis": 16, "dezessete": 17, "dezoito": 18, "dezenove": 19,
	"vinte": 20, "trinta": 30, "quarenta": 40, "cinquenta": 50, "sessenta": 60,
	"setenta": 70, "oitenta": 80, "noventa": 90,
	"cem": 100, "cento": 100, "duzentos": 200, "trezentos": 300,
	"quatrocentos": 400, "quinhentos": 500, "seiscentos": 600,
	"setecentos": 700, "oitocentos": 800, "novecentos": 900,
}

var (
	reSymbolAmount   = regexp.MustCompile(`r\$\s*(\d[\d.,]*)(\s*(?:mil|k)(?:[^\p{L}]|$))?`)
	reCurrencyWord   = regexp.MustCompile(`(\d[\d.,]*)\s*(?:reais|real|contos?|pilas?)(?:[^\p{L}]|$)`)
	reShorthandK     = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*k(?:[^\p{L}\d]|$)`)
	rePreposition    = regexp.MustCompile(`(?:^|[^\p{L}])(?:de|valor(?:\s+de)?)\s*:?\s*(\d[\d.,]*)`)
	reBareNumber     = regexp.MustCompile(`\d[\d.,]*`)
	reThousandsGroup = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reNotAmount      = regexp.MustCompile(`\d{2,3}\.\d{3}\.\d{3}[/\-]\d{2,4}(?:-\d{2})?|\bdia\s+\d{1,2}\b|\d{1,2}/\d{1,2}(?:/\d{2,4})?`)

	reWordsThousand *regexp.Regexp
	reWordsCurrency *regexp.Regexp
)

func init() {
	words := make([]string, 0, len(numberWords))
	for w := range numberWords {
		words = append(words, regexp.QuoteMeta(w))
	}
	// longest first so "dezoito" wins over "dez"
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	word := `(?:` + strings.Join(words, "|") + `)`
	phrase := word + `(?:\s+e\s+` + word + `)*`

	reWordsThousand = regexp.MustCompile(
		`(?:^|[^\p{L}\d])(?:(\d+(?:[.,]\d+)?|` + phrase + `)\s+)?mil(?:\s+e\s+(` + phrase + `))?(?:[^\p{L}]|$)`)
	reWordsCurrency = regexp.MustCompile(
		`(?:^|[^\p{L}\d])(` + phrase + `)\s+(?:reais|real)(?:[^\p{L}]|$)`)
}

// Amount extracts a monetary value in BRL. The matchers run in priority order and the
// first success wins.
func Amount(text string) (float64, bool) {
	s := normalize.Normalize(text)
	if s == "" {
		return 0, false
	}
	for _, m := range amountMatchers {
		if v, ok := m(s); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

type amountMatcher func(string) (float64, bool)

var amountMatchers = []amountMatcher{
	matchSymbol,
	matchCurrencyWord,
	matchShorthandK,
	matchNumberWords,
	matchPreposition,
	matchBareNumber,
}

func matchSymbol(s string) (float64, bool) {
	m := reSymbolAmount.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, ok := parseBRNumber(m[1])
	if ok && m[2] != "" {
		v *= 1000
	}
	return v, ok
}

func matchCurrencyWord(s string) (float64, bool) {
	m := reCurrencyWord.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return parseBRNumber(m[1])
}

func matchShorthandK(s string) (float64, bool) {
	m := reShorthandK.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v * 1000, true
}

func matchNumberWords(s string) (float64, bool) {
	if m := reWordsThousand.FindStringSubmatch(s); m != nil {
		multiplier := 1.0
		if m[1] != "" {
			if v, ok := parseBRNumber(m[1]); ok {
				multiplier = v
			} else {
				multiplier = sumWords(m[1])
			}
		}
		return multiplier*1000 + sumWords(m[2]), true
	}
	if m := reWordsCurrency.FindStringSubmatch(s); m != nil {
		return sumWords(m[1]), true
	}
	return 0, false
}

func matchPreposition(s string) (float64, bool) {
	m := rePreposition.FindStringSubmatch(s)
	if m == nil || isDocumentLength(m[1]) {
		return 0, false
	}
	return parseBRNumber(m[1])
}

func matchBareNumber(s string) (float64, bool) {
	s = reNotAmount.ReplaceAllString(s, " ")
	for _, candidate := range reBareNumber.FindAllString(s, -1) {
		if isDocumentLength(candidate) {
			continue
		}
		v, ok := parseBRNumber(candidate)
		if ok && v >= minBareAmount && v <= maxBareAmount {
			return v, true
		}
	}
	return 0, false
}

// isDocumentLength reports runs that look like a CPF (11) or CNPJ (14).
func isDocumentLength(s string) bool {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n == 11 || n == 14
}

// sumWords adds the values of "quinhentos e vinte e cinco" style phrases.
func sumWords(phrase string) float64 {
	total := 0.0
	for _, part := range strings.Fields(phrase) {
		total += numberWords[part]
	}
	return total
}

// parseBRNumber reads Brazilian formatting: dot groups thousands, comma marks decimals.
// A lone dot followed by other than three digits is read as a decimal point ("1.5").
func parseBRNumber(raw string) (float64, bool) {
	s := strings.TrimRight(raw, ".,")
	if s == "" {
		return 0, false
	}
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case reThousandsGroup.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
