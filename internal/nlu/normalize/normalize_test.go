// internal/nlu/normalize/normalize_test.go
package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only spaces", "   \t\n ", ""},
		{"lowercase and collapse", "  Emitir   NOTA  ", "emitir nota"},
		{"abbreviation", "emitir nf pro cliente", "emitir nota fiscal pro cliente"},
		{"typo", "emitr nota pra cliete", "emitir nota para cliente"},
		{"accent restored", "qual a ultima nota do mes", "qual a última nota do mês"},
		{"no match inside longer word", "quanto faturei no trimestre", "quanto faturei no trimestre"},
		{"keeps punctuation", "oi, vc pode emitir?", "oi, você pode emitir?"},
		{"currency untouched", "R$ 1.500,00 pra João", "r$ 1.500,00 para joão"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Emitir NF de R$ 1.500,00 pra Joao Silva",
		"qnts notas vc emitiu hj?",
		"cancelra a ultima nota pfv",
		"oq é o DAS do mes",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestCorrections_NonOverlapping(t *testing.T) {
	entries := Entries()
	for key, repl := range entries {
		for _, word := range strings.Fields(repl) {
			_, clash := entries[word]
			assert.False(t, clash, "replacement %q of %q contains key %q", repl, key, word)
		}
		assert.NotContains(t, key, " ", "keys must be single words")
	}
	assert.GreaterOrEqual(t, len(entries), 40)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "emissao de nota para joao", Fold("emissão de nota para joão"))
	assert.Equal(t, "conexao", Fold("conexão"))
	assert.Equal(t, "r$ 1.500,00", Fold("r$ 1.500,00"))
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"emitir nota para joão", "emitir nota", true},
		{"emitir notas", "nota", false},
		{"meu plano atual", "ano", false},
		{"neste ano", "ano", true},
		{"pagar o das", "das", true},
		{"r$ 100", "r$", true},
		{"anota ai", "nota", false},
		{"", "nota", false},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsWord(tt.text, tt.phrase))
		})
	}
}
