// internal/assistant/responder/recognizers.go
package responder

import (
	"regexp"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/extract"
)

// pattern is one surface form of a recognizer. Capture group i fills fields[i].
type pattern struct {
	re     *regexp.Regexp
	fields []string
	// unlessDocument disables the pattern when the text carries a CPF or CNPJ.
	unlessDocument bool
}

func pat(expr string, fields ...string) pattern {
	return pattern{re: regexp.MustCompile(expr), fields: fields}
}

type recognizer struct {
	name     string
	patterns []pattern
	// except disables the recognizer for texts it matches.
	except   *regexp.Regexp
	intents  []models.Intent
	priority bool
	handle   handlerFunc
}

// matchText evaluates the pattern table against folded, normalized text.
func (rec *recognizer) matchText(folded string) (map[string]string, bool) {
	if folded == "" || rec.excluded(folded) {
		return nil, false
	}
	for _, pt := range rec.patterns {
		if pt.unlessDocument && extract.ContainsDocument(folded) {
			continue
		}
		m := pt.re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		fields := make(map[string]string, len(pt.fields))
		for i, name := range pt.fields {
			if i+1 < len(m) && m[i+1] != "" {
				fields[name] = m[i+1]
			}
		}
		return fields, true
	}
	return nil, false
}

func (rec *recognizer) excluded(folded string) bool {
	return rec.except != nil && rec.except.MatchString(folded)
}

func (rec *recognizer) owns(in models.Intent) bool {
	for _, i := range rec.intents {
		if i == in {
			return true
		}
	}
	return false
}

func (rec *recognizer) handles(top models.IntentScore) bool {
	return top.Confidence > 0 && rec.owns(top.Intent)
}

func (rec *recognizer) intentFor(top models.IntentScore) models.Intent {
	if rec.owns(top.Intent) {
		return top.Intent
	}
	if len(rec.intents) > 0 {
		return rec.intents[0]
	}
	return models.IntentUnknown
}

var (
	reExceptMutation = regexp.MustCompile(`\b(?:cancel\w*|anul\w*|emitir|emite|emita)\b`)
	reExceptBareLine = regexp.MustCompile(`\b(?:nota|notas|fiscal|emitir|emite|emita|faturar|cancelar|cancela|buscar|procurar|pagar|gerar|valor|reais|cadastrar|cliente)\b`)
)

// recognizers returns the chain in evaluation order: history, clients, emission, fixed
// responses. Reordering changes which handler answers overlapping phrasings.
func recognizers() []recognizer {
	return []recognizer{
		// history
		{
			name: "last_invoice",
			patterns: []pattern{
				pat(`\bultima nota\b`),
				pat(`\bnota mais recente\b`),
				pat(`\bultima (?:que )?emiti(?:da)?\b`),
			},
			except:   reExceptMutation,
			intents:  []models.Intent{models.IntentLastInvoice},
			priority: true,
			handle:   handleLastInvoice,
		},
		{
			name: "rejected_invoices",
			patterns: []pattern{
				pat(`\bnotas? (?:fiscais? )?(?:rejeitad|recusad)\w*`),
				pat(`\bnotas? com erro\b`),
				pat(`\bpor ?que (?:a )?nota (?:foi )?rejeitada\b`),
			},
			intents:  []models.Intent{models.IntentRejectedInvoices},
			priority: true,
			handle:   handleRejected,
		},
		{
			name: "pending_invoices",
			patterns: []pattern{
				pat(`\bnotas? (?:fiscais? )?pendentes?\b`),
				pat(`\bnotas? em processamento\b`),
				pat(`\bnotas? aguardando\b`),
			},
			intents:  []models.Intent{models.IntentPendingInvoices},
			priority: true,
			handle:   handlePending,
		},
		{
			name: "invoice_status",
			patterns: []pattern{
				pat(`\b(?:status|situacao) da nota (?:fiscal )?(?:numero |n )?(\d{1,9})\b`, "number"),
				pat(`\bnota (?:fiscal )?(?:numero |n )?(\d{1,9}) (?:foi )?(?:autorizada|aprovada|rejeitada|cancelada)\b`, "number"),
			},
			except:   reExceptMutation,
			intents:  []models.Intent{models.IntentInvoiceStatus},
			priority: true,
			handle:   handleInvoiceStatus,
		},
		{
			name: "invoice_counts",
			patterns: []pattern{
				pat(`\bquantas notas\b`),
			},
			priority: true,
			handle:   handleInvoiceCounts,
		},
		{
			name: "invoice_list",
			patterns: []pattern{
				pat(`\b(?:listar|ver|mostrar|mostra|minhas) (?:as |minhas )?notas\b`),
				pat(`\bnotas (?:fiscais )?emitidas\b`),
				pat(`^(?:as )?notas (?:fiscais )?(?:d[oa]|para|pro) \S`),
				pat(`\bhistorico de notas\b`),
			},
			except:   regexp.MustCompile(`\b(?:cancelar|cancela|emitir|emite|emita)\b`),
			intents:  []models.Intent{models.IntentListInvoices},
			priority: true,
			handle:   handleInvoiceList,
		},

		// clients
		{
			name: "create_client",
			patterns: []pattern{
				pat(`\b(?:cadastr|registr|adicion|inclu|cri)\w* (?:o |a |um |uma )?(?:nov[oa] )?(?:cliente|tomador)\b`),
				pat(`\bnovo cliente\b`),
			},
			intents:  []models.Intent{models.IntentCreateClient},
			priority: true,
			handle:   handleCreateClient,
		},
		{
			name: "name_document",
			patterns: []pattern{
				pat(`^\p{L}[\p{L}.'& -]*\p{L}\.? ?[,;:-]? ?(?:(?:cpf|cnpj|documento) ?:? ?)?\d[\d./-]{9,17}\d$`),
			},
			except:   reExceptBareLine,
			priority: true,
			handle:   handleNameDocument,
		},
		{
			name: "list_clients",
			patterns: []pattern{
				pat(`\b(?:meus|listar|ver|mostrar|lista de|quais sao (?:os )?meus|quais) clientes\b`),
			},
			intents: []models.Intent{models.IntentListClients},
			handle:  handleListClients,
		},
		{
			name: "search_client",
			patterns: []pattern{
				pat(`\b(?:buscar|procurar|pesquisar|encontrar|achar) (?:o |a |pelo |pela )?cliente (.+)$`, "term"),
				pat(`\btenho (?:o |a |um |uma )?cliente (?:chamad[oa] )?(.+?)\??$`, "term"),
				pat(`\b(?:buscar|procurar|pesquisar) cliente\b`),
			},
			intents: []models.Intent{models.IntentSearchClient},
			handle:  handleSearchClient,
		},

		// emission
		{
			name: "emit_invoice",
			patterns: []pattern{
				pat(`\b(?:emitir|emite|emita|gerar|gera|fazer|faz|faca|criar|cria|tirar|tira) (?:uma |a |outra )?(?:nova )?nota\b`),
				pat(`\bnova nota\b`),
				pat(`\bfaturar (?:para|pro)\b`),
			},
			intents:  []models.Intent{models.IntentEmitInvoice},
			priority: true,
			handle:   handleEmission,
		},

		// fixed responses
		{
			name: "revenue",
			patterns: []pattern{
				pat(`\bquanto (?:eu )?(?:faturei|recebi)\b`),
				pat(`\bfaturamento\b`),
				pat(`\btotal faturado\b`),
			},
			intents: []models.Intent{models.IntentRevenueQuery},
			handle:  handleRevenue,
		},
		{
			name: "taxes",
			patterns: []pattern{
				pat(`\b(?:impostos?|tributos?|guia)\b`),
				{re: regexp.MustCompile(`\b(?:o|do|meu|pagar|gerar|emitir|ver|boleto do) das\b|^das\b`), unlessDocument: true},
			},
			intents:  []models.Intent{models.IntentViewTaxes, models.IntentPayTax, models.IntentGenerateTax},
			priority: true,
			handle:   handleTaxes,
		},
		{
			name: "cancellation",
			patterns: []pattern{
				pat(`\b(?:cancelar|cancela|cancele|anular|anula) (?:a |uma )?(?:ultima )?nota\b`),
				pat(`\bcancelamento da nota\b`),
			},
			intents: []models.Intent{models.IntentCancelInvoice},
			handle:  handleCancellation,
		},
		{
			name: "connection",
			patterns: []pattern{
				pat(`\b(?:conexao|conectad[oa]|certificado)\b`),
				pat(`\bprefeitura\b`),
			},
			intents: []models.Intent{models.IntentCheckConnection},
			handle:  handleConnection,
		},
		{
			name: "help",
			patterns: []pattern{
				pat(`^(?:ajuda|help|menu|comandos|opcoes)[!?. ]*$`),
				pat(`\bo que (?:voce )?(?:faz|sabe fazer)\b`),
				pat(`\bcomo funciona\b`),
				pat(`\bpreciso de ajuda\b`),
			},
			intents:  []models.Intent{models.IntentHelp},
			priority: true,
			handle:   handleHelp,
		},
		{
			name: "greeting",
			patterns: []pattern{
				pat(`^(?:oi|ola|bom dia|boa tarde|boa noite|hey|eai|e ai|opa)[!?. ]*$`),
			},
			intents:  []models.Intent{models.IntentGreeting},
			priority: true,
			handle:   handleGreeting,
		},
	}
}
