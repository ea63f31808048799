// internal/nlu/intent/classifier.go
package intent

import (
	"sort"
	"strings"
	"unicode"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/normalize"
)

const (
	phraseScore     = 0.5
	keywordScore    = 0.3
	contextScore    = 0.1
	negativeScore   = 0.5
	exactBonus      = 0.5
	maxAlternatives = 2
)

// Result is the ranked classification of one utterance.
type Result struct {
	Top          models.IntentScore   `json:"top"`
	Alternatives []models.IntentScore `json:"alternatives"`
	Normalized   string               `json:"normalized"`
}

// Ranked returns the top score followed by its alternatives.
func (r Result) Ranked() []models.IntentScore {
	out := make([]models.IntentScore, 0, 1+len(r.Alternatives))
	out = append(out, r.Top)
	return append(out, r.Alternatives...)
}

// compiled holds a rule with its word lists folded once.
type compiled struct {
	rule      Rule
	phrases   []string
	keywords  []string
	context   []string
	ambiguous []string
	negatives []string
}

// Classifier scores text against a fixed rule catalog. It is safe for concurrent use.
type Classifier struct {
	rules []compiled
	index map[models.Intent]int
}

// NewClassifier compiles the given rules; pass Catalog() for the default set.
func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{
		rules: make([]compiled, 0, len(rules)),
		index: make(map[models.Intent]int, len(rules)),
	}
	for i, r := range rules {
		c.rules = append(c.rules, compiled{
			rule:      r,
			phrases:   foldAll(r.Phrases),
			keywords:  foldAll(r.Keywords),
			context:   foldAll(r.Context),
			ambiguous: foldAll(r.Ambiguous),
			negatives: foldAll(r.NegativeWords),
		})
		c.index[r.Intent] = i
	}
	return c
}

// Rules returns the catalog in declaration order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.rule
	}
	return out
}

// Rule looks up the rule of an intent.
func (c *Classifier) Rule(intent models.Intent) (Rule, bool) {
	i, ok := c.index[intent]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i].rule, true
}

// Classify ranks every intent with a positive score. With no candidate the top is
// IntentUnknown at zero confidence.
func (c *Classifier) Classify(text string) Result {
	normalized := normalize.Normalize(text)
	res := Result{
		Top:        models.IntentScore{Intent: models.IntentUnknown},
		Normalized: normalized,
	}
	if normalized == "" {
		return res
	}
	folded := normalize.Fold(normalized)
	bare := strings.TrimFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	scores := make([]models.IntentScore, 0, len(c.rules))
	for _, r := range c.rules {
		s := r.score(text, folded, bare)
		if s <= 0 {
			continue
		}
		scores = append(scores, models.IntentScore{Intent: r.rule.Intent, Confidence: s})
	}
	if len(scores) == 0 {
		return res
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})

	res.Top = scores[0]
	rest := scores[1:]
	if len(rest) > maxAlternatives {
		rest = rest[:maxAlternatives]
	}
	res.Alternatives = rest
	return res
}

func (r compiled) score(raw, folded, bare string) float64 {
	var explicit float64
	for _, p := range r.phrases {
		if normalize.ContainsWord(folded, p) {
			explicit += phraseScore
		}
	}
	for _, k := range r.keywords {
		if normalize.ContainsWord(folded, k) {
			explicit += keywordScore
		}
	}

	total := explicit
	for _, w := range r.context {
		if normalize.ContainsWord(folded, w) {
			total += contextScore
		}
	}
	for _, w := range r.negatives {
		if normalize.ContainsWord(folded, w) {
			total -= negativeScore
		}
	}

	// An explicit keyword or phrase outranks the negative patterns; they only
	// suppress the ambiguous words.
	guarded := 0
	for _, re := range r.rule.NegativePatterns {
		if re.MatchString(raw) {
			guarded++
		}
	}
	ambiguous := 0
	for _, a := range r.ambiguous {
		if normalize.ContainsWord(folded, a) {
			ambiguous++
		}
	}
	switch {
	case guarded == 0:
		total += keywordScore * float64(ambiguous)
	case explicit == 0:
		total -= negativeScore * float64(guarded+ambiguous)
	}

	if r.rule.ExactMatch {
		for _, k := range r.keywords {
			if bare == k {
				total += exactBonus
				break
			}
		}
	}
	return clamp(total * r.rule.Weight)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func foldAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = normalize.Fold(normalize.Normalize(w))
	}
	return out
}
