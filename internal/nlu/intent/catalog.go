// Package intent scores utterances against a closed catalog of intents and decides
// when the user has to be asked to choose between close candidates.
package intent

import (
	"regexp"

	"fiscal-assistant/internal/models"
)

// Parameter describes one typed argument of the operation bound to a rule.
type Parameter struct {
	Name        string
	Type        string // "string" or "number"
	Description string
	Required    bool
	Enum        []string
}

// Rule is one declarative catalog entry. Matching is done on the folded, normalized
// text and on word boundaries.
type Rule struct {
	Intent      models.Intent
	Description string // shown to the user in clarification questions

	Phrases  []string // +0.5 each
	Keywords []string // +0.3 each
	Context  []string // +0.1 each

	// Ambiguous keywords also have an unrelated everyday meaning. They count as keywords
	// only while no NegativePattern matches the raw text. Once one does, they score
	// nothing next to an explicit keyword or phrase and -0.5 each on their own, as does
	// every matched pattern.
	Ambiguous        []string
	NegativeWords    []string // -0.5 each
	NegativePatterns []*regexp.Regexp

	// ExactMatch grants +0.5 when the whole utterance equals one keyword.
	ExactMatch bool
	Weight     float64

	Operation  string // name exposed to the language model; empty keeps the intent local
	Parameters []Parameter
	ReadOnly   bool
}

var reDocumentNumber = regexp.MustCompile(`\d{3}\.?\d{3}\.?\d{3}-?\d{2}|\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}`)

var periodParam = Parameter{
	Name:        "periodo",
	Type:        "string",
	Description: "Período consultado",
	Enum:        []string{"today", "yesterday", "this_week", "this_month", "this_year"},
}

// Catalog returns the intent rules in declaration order. Ties in scoring keep this order.
func Catalog() []Rule {
	return []Rule{
		{
			Intent:        models.IntentEmitInvoice,
			Description:   "Emitir uma nota fiscal",
			Phrases:       []string{"emitir nota", "emitir uma nota", "gerar nota", "fazer nota", "fazer uma nota", "nova nota", "criar nota", "faturar para"},
			Keywords:      []string{"emitir", "emite", "emita", "faturar"},
			Context:       []string{"nota", "fiscal", "valor", "reais", "para", "mil"},
			NegativeWords: []string{"cancelar", "cancela", "listar", "última", "das", "guia"},
			Weight:        1.0,
			Operation:     "emitir_nota",
			Parameters: []Parameter{
				{Name: "valor", Type: "number", Description: "Valor do serviço em reais", Required: true},
				{Name: "cliente", Type: "string", Description: "Nome do tomador do serviço"},
				{Name: "documento", Type: "string", Description: "CPF ou CNPJ do tomador, apenas dígitos"},
				{Name: "descricao", Type: "string", Description: "Descrição do serviço prestado"},
			},
		},
		{
			Intent:      models.IntentCancelInvoice,
			Description: "Cancelar uma nota fiscal",
			Phrases:     []string{"cancelar nota", "cancelar a nota", "cancela a nota", "anular nota", "cancelar uma nota"},
			Keywords:    []string{"cancelar", "cancela", "cancelamento", "anular"},
			Context:     []string{"nota", "número", "motivo", "justificativa"},
			Weight:      1.0,
			Operation:   "cancelar_nota",
			Parameters: []Parameter{
				{Name: "numero", Type: "string", Description: "Número da nota a cancelar", Required: true},
				{Name: "justificativa", Type: "string", Description: "Motivo do cancelamento"},
			},
		},
		{
			Intent:        models.IntentListInvoices,
			Description:   "Ver as notas emitidas",
			Phrases:       []string{"minhas notas", "listar notas", "ver notas", "mostrar notas", "notas emitidas", "histórico de notas"},
			Keywords:      []string{"notas", "listar", "lista", "histórico"},
			Context:       []string{"emitidas", "mês", "semana", "hoje", "ontem", "ano", "todas"},
			NegativeWords: []string{"cancelar", "emitir", "rejeitadas", "pendentes"},
			Weight:        0.9,
			Operation:     "listar_notas",
			Parameters: []Parameter{
				{Name: "cliente", Type: "string", Description: "Filtrar pelo nome do tomador"},
				{Name: "status", Type: "string", Description: "Filtrar pela situação", Enum: []string{"authorized", "pending", "processing", "rejected", "cancelled"}},
				periodParam,
			},
			ReadOnly: true,
		},
		{
			Intent:      models.IntentLastInvoice,
			Description: "Ver a última nota emitida",
			Phrases:     []string{"última nota", "nota mais recente", "última emitida"},
			Keywords:    []string{"última", "último", "recente"},
			Context:     []string{"nota", "emitida", "emiti"},
			Weight:      1.0,
			Operation:   "ultima_nota",
			ReadOnly:    true,
		},
		{
			Intent:        models.IntentInvoiceStatus,
			Description:   "Consultar a situação de uma nota",
			Phrases:       []string{"status da nota", "situação da nota", "nota foi autorizada"},
			Keywords:      []string{"status", "situação", "autorizada"},
			Context:       []string{"nota", "número"},
			NegativeWords: []string{"conexão", "prefeitura"},
			Weight:        0.9,
			Operation:     "status_nota",
			Parameters: []Parameter{
				{Name: "numero", Type: "string", Description: "Número da nota", Required: true},
			},
			ReadOnly: true,
		},
		{
			Intent:      models.IntentRejectedInvoices,
			Description: "Ver as notas rejeitadas",
			Phrases:     []string{"notas rejeitadas", "nota rejeitada", "notas com erro", "notas recusadas"},
			Keywords:    []string{"rejeitada", "rejeitadas", "recusada", "recusadas", "erro"},
			Context:     []string{"nota", "notas", "porque"},
			Weight:      1.0,
			Operation:   "notas_rejeitadas",
			Parameters:  []Parameter{periodParam},
			ReadOnly:    true,
		},
		{
			Intent:      models.IntentPendingInvoices,
			Description: "Ver as notas pendentes",
			Phrases:     []string{"notas pendentes", "nota pendente", "em processamento", "aguardando autorização"},
			Keywords:    []string{"pendente", "pendentes", "processando", "aguardando"},
			Context:     []string{"nota", "notas"},
			Weight:      1.0,
			Operation:   "notas_pendentes",
			ReadOnly:    true,
		},
		{
			Intent:        models.IntentCreateClient,
			Description:   "Cadastrar um novo cliente",
			Phrases:       []string{"cadastrar cliente", "novo cliente", "criar cliente", "adicionar cliente", "registrar cliente", "cadastrar tomador"},
			Keywords:      []string{"cadastrar", "cadastro", "adicionar", "registrar"},
			Context:       []string{"cliente", "cpf", "cnpj", "nome", "email"},
			NegativeWords: []string{"listar", "notas"},
			Weight:        1.0,
			Operation:     "cadastrar_cliente",
			Parameters: []Parameter{
				{Name: "nome", Type: "string", Description: "Nome ou razão social", Required: true},
				{Name: "documento", Type: "string", Description: "CPF ou CNPJ, apenas dígitos", Required: true},
				{Name: "email", Type: "string", Description: "E-mail para envio da nota"},
			},
		},
		{
			Intent:        models.IntentListClients,
			Description:   "Ver a lista de clientes",
			Phrases:       []string{"meus clientes", "listar clientes", "ver clientes", "lista de clientes", "quais clientes", "quais são meus clientes"},
			Keywords:      []string{"clientes"},
			Context:       []string{"listar", "todos", "lista", "cadastrados"},
			NegativeWords: []string{"nota", "notas", "emitir"},
			Weight:        0.9,
			Operation:     "listar_clientes",
			ReadOnly:      true,
		},
		{
			Intent:      models.IntentSearchClient,
			Description: "Buscar um cliente",
			Phrases:     []string{"buscar cliente", "procurar cliente", "encontrar cliente", "pesquisar cliente", "tenho cliente"},
			Keywords:    []string{"buscar", "procurar", "pesquisar", "encontrar"},
			Context:     []string{"cliente", "nome", "cpf", "cnpj"},
			Weight:      0.9,
			Operation:   "buscar_cliente",
			Parameters: []Parameter{
				{Name: "termo", Type: "string", Description: "Nome, apelido ou documento do cliente", Required: true},
			},
			ReadOnly: true,
		},
		{
			Intent:      models.IntentRevenueQuery,
			Description: "Consultar o faturamento",
			Phrases:     []string{"quanto faturei", "meu faturamento", "total faturado", "quanto recebi", "receita do mês"},
			Keywords:    []string{"faturamento", "faturei", "faturado", "receita"},
			Context:     []string{"mês", "ano", "semana", "total", "quanto"},
			Weight:      1.0,
			Operation:   "consultar_faturamento",
			Parameters:  []Parameter{periodParam},
			ReadOnly:    true,
		},
		{
			Intent:           models.IntentViewTaxes,
			Description:      "Ver os impostos a pagar",
			Phrases:          []string{"meus impostos", "ver impostos", "quanto de imposto", "valor do imposto", "simples nacional"},
			Keywords:         []string{"imposto", "impostos", "tributo", "tributos", "guia"},
			Ambiguous:        []string{"das"},
			Context:          []string{"mês", "valor", "vencimento"},
			NegativeWords:    []string{"notas", "clientes", "cliente"},
			NegativePatterns: []*regexp.Regexp{reDocumentNumber},
			Weight:           0.9,
			Operation:        "ver_impostos",
			Parameters:       []Parameter{periodParam},
			ReadOnly:         true,
		},
		{
			Intent:        models.IntentPayTax,
			Description:   "Pagar o DAS",
			Phrases:       []string{"pagar imposto", "pagar o das", "pagar das", "pagar guia", "pagamento do das"},
			Keywords:      []string{"pagar", "pagamento"},
			Context:       []string{"imposto", "das", "guia", "vencimento", "boleto"},
			NegativeWords: []string{"nota", "notas", "cliente"},
			Weight:        1.0,
			Operation:     "pagar_imposto",
			ReadOnly:      true,
		},
		{
			Intent:        models.IntentGenerateTax,
			Description:   "Gerar a guia do DAS",
			Phrases:       []string{"gerar das", "gerar o das", "gerar guia", "emitir das", "emitir guia", "gerar boleto"},
			Keywords:      []string{"gerar"},
			Context:       []string{"das", "guia", "imposto", "boleto"},
			NegativeWords: []string{"nota", "notas", "cliente"},
			Weight:        1.0,
			Operation:     "gerar_guia",
			Parameters:    []Parameter{periodParam},
			ReadOnly:      true,
		},
		{
			Intent:      models.IntentCheckConnection,
			Description: "Verificar a conexão com a prefeitura",
			Phrases:     []string{"status da conexão", "verificar conexão", "testar conexão", "conexão com a prefeitura", "estou conectado"},
			Keywords:    []string{"conexão", "conectado", "conectar", "prefeitura", "certificado"},
			Context:     []string{"status", "verificar", "funcionando"},
			Weight:      1.0,
			Operation:   "verificar_conexao",
			ReadOnly:    true,
		},
		{
			Intent:      models.IntentHelp,
			Description: "Ver o que posso fazer",
			Phrases:     []string{"o que você faz", "como funciona", "preciso de ajuda", "me ajuda", "o que você sabe fazer"},
			Keywords:    []string{"ajuda", "help", "menu", "comandos", "opções"},
			ExactMatch:  true,
			Weight:      0.8,
			ReadOnly:    true,
		},
		{
			Intent:     models.IntentGreeting,
			Keywords:   []string{"oi", "olá", "bom dia", "boa tarde", "boa noite", "hey", "eai", "opa"},
			ExactMatch: true,
			Weight:     1.0,
			ReadOnly:   true,
		},
	}
}
