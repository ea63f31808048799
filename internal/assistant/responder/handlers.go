// internal/assistant/responder/handlers.go
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fiscal-assistant/internal/common/validation"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

func (r *Responder) period(in *input) models.Period {
	if p := in.req.Entities.Period; p != nil {
		return *p
	}
	return models.Period{Kind: models.PeriodThisMonth}
}

func (r *Responder) missing(in models.Intent, explanation string, missing []string, data map[string]interface{}) *models.ActionPlan {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["missing"] = missing
	data["for"] = string(in)
	return r.plan(models.ActionRequestMissingData, in, explanation, data)
}

// ==========================
// History
// ==========================

func handleLastInvoice(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	inv, err := r.deps.Invoices.Last(ctx, in.tenant())
	if errors.Is(err, store.ErrNotFound) {
		return r.plan(models.ActionInvoiceDetail, models.IntentLastInvoice,
			"Você ainda não emitiu nenhuma nota fiscal.", map[string]interface{}{"found": false}), nil
	}
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Sua última nota foi a nº %s, para %s, no valor de R$ %s. Situação: %s.",
		inv.Number, inv.CounterpartyName, models.FormatBRL(inv.Amount), statusLabel(inv.Status))
	return r.plan(models.ActionInvoiceDetail, models.IntentLastInvoice, text,
		map[string]interface{}{"found": true, "invoice": inv}), nil
}

func (r *Responder) listInvoices(ctx context.Context, in *input, filter models.InvoiceFilter) ([]models.Invoice, error) {
	if filter.Limit == 0 {
		filter.Limit = r.cfg.HistoryLimit
	}
	return r.deps.Invoices.List(ctx, in.tenant(), filter)
}

func (r *Responder) withPeriod(in *input, filter *models.InvoiceFilter) {
	if p := in.req.Entities.Period; p != nil {
		filter.From, filter.To = p.Range(r.now())
	}
}

func handleRejected(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	filter := models.InvoiceFilter{Status: models.InvoiceRejected}
	r.withPeriod(in, &filter)
	invoices, err := r.listInvoices(ctx, in, filter)
	if err != nil {
		return nil, err
	}
	text := invoiceList(fmt.Sprintf("Você tem %d nota(s) rejeitada(s):", len(invoices)),
		"Nenhuma nota rejeitada. Está tudo certo com as suas emissões.", invoices)
	return r.plan(models.ActionQueryInvoices, models.IntentRejectedInvoices, text,
		map[string]interface{}{"status": string(models.InvoiceRejected), "count": len(invoices), "invoices": invoices}), nil
}

func handlePending(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	var invoices []models.Invoice
	for _, status := range []models.InvoiceStatus{models.InvoicePending, models.InvoiceProcessing} {
		batch, err := r.listInvoices(ctx, in, models.InvoiceFilter{Status: status})
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, batch...)
	}
	text := invoiceList(fmt.Sprintf("Você tem %d nota(s) aguardando a prefeitura:", len(invoices)),
		"Nenhuma nota pendente no momento.", invoices)
	return r.plan(models.ActionQueryInvoices, models.IntentPendingInvoices, text,
		map[string]interface{}{"status": string(models.InvoicePending), "count": len(invoices), "invoices": invoices}), nil
}

func handleInvoiceStatus(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	number := in.field("number")
	if number == "" {
		number = invoiceNumber(in.folded)
	}
	if number == "" {
		return r.missing(models.IntentInvoiceStatus, "Qual o número da nota que você quer consultar?",
			[]string{"invoice_number"}, nil), nil
	}
	inv, err := r.deps.Invoices.ByNumber(ctx, in.tenant(), number)
	if errors.Is(err, store.ErrNotFound) {
		return r.plan(models.ActionInvoiceDetail, models.IntentInvoiceStatus,
			fmt.Sprintf("Não encontrei a nota nº %s. Confira o número e tente de novo.", number),
			map[string]interface{}{"found": false, "invoice_number": number}), nil
	}
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("A nota nº %s está %s.", inv.Number, statusLabel(inv.Status))
	if inv.Status == models.InvoiceRejected && inv.RejectionReason != "" {
		text += " Motivo: " + inv.RejectionReason + "."
	}
	return r.plan(models.ActionInvoiceDetail, models.IntentInvoiceStatus, text,
		map[string]interface{}{"found": true, "invoice": inv, "invoice_number": number}), nil
}

func handleInvoiceCounts(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	p := r.period(in)
	from, to := p.Range(r.now())
	sum, err := r.deps.Invoices.Summary(ctx, in.tenant(), from, to)
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, s := range []models.InvoiceStatus{models.InvoiceAuthorized, models.InvoicePending, models.InvoiceProcessing, models.InvoiceRejected, models.InvoiceCancelled} {
		if n := sum.ByStatus[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, statusLabel(s)))
		}
	}
	text := fmt.Sprintf("Você emitiu %d nota(s) %s.", sum.Total, periodLabel(p))
	if len(parts) > 0 {
		text += " " + strings.Join(parts, ", ") + "."
	}
	return r.plan(models.ActionInvoiceSummary, models.IntentListInvoices, text,
		map[string]interface{}{"period": p.Token(), "summary": sum}), nil
}

func handleInvoiceList(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	filter := models.InvoiceFilter{
		Status:           models.InvoiceStatus(in.field("status")),
		CounterpartyName: in.req.Entities.CounterpartyName,
	}
	r.withPeriod(in, &filter)
	invoices, err := r.listInvoices(ctx, in, filter)
	if err != nil {
		return nil, err
	}

	title := "Suas notas"
	if filter.CounterpartyName != "" {
		title += " para " + filter.CounterpartyName
	}
	if p := in.req.Entities.Period; p != nil {
		title += " " + periodLabel(*p)
	}
	text := invoiceList(title+":", "Não encontrei notas com esses critérios.", invoices)

	data := map[string]interface{}{"count": len(invoices), "invoices": invoices}
	if filter.CounterpartyName != "" {
		data["counterparty_name"] = filter.CounterpartyName
	}
	if filter.Status != "" {
		data["status"] = string(filter.Status)
	}
	if p := in.req.Entities.Period; p != nil {
		data["period"] = p.Token()
	}
	return r.plan(models.ActionQueryInvoices, models.IntentListInvoices, text, data), nil
}

// ==========================
// Clients
// ==========================

func handleCreateClient(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	name := in.field("name")
	if name == "" {
		name = in.req.Entities.CounterpartyName
	}
	doc := in.req.Entities.Document
	email := in.field("email")
	if !validation.ValidateEmail(email) {
		email = reEmail.FindString(in.req.Utterance.Text)
	}

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if doc == nil {
		missing = append(missing, "document")
	}
	if len(missing) > 0 {
		data := map[string]interface{}{}
		if name != "" {
			data["name"] = name
		}
		if doc != nil {
			data["document"] = doc.Number
		}
		return r.missing(models.IntentCreateClient,
			"Para cadastrar o cliente preciso do nome completo e do CPF ou CNPJ. Ex.: \"Maria Souza, CPF 529.982.247-25\".",
			missing, data), nil
	}

	existing, err := r.deps.Counterparties.FindByDocument(ctx, in.tenant(), doc.Number)
	if err == nil {
		return r.plan(models.ActionClientExists, models.IntentCreateClient,
			fmt.Sprintf("Você já tem esse cliente cadastrado: %s.", counterpartyLabel(*existing)),
			map[string]interface{}{"counterparty": existing.ID, "counterparty_name": existing.Name}), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	text := fmt.Sprintf("Vou cadastrar o cliente %s (%s).", name, documentLabel(doc.Kind, doc.Number))
	if !doc.Valid() {
		text += " Atenção: os dígitos verificadores desse documento não conferem, confira o número."
	}
	text += " Confirma?"
	data := map[string]interface{}{
		"name":           name,
		"document":       doc.Number,
		"document_kind":  string(doc.Kind),
		"document_valid": doc.Valid(),
	}
	if email != "" {
		data["email"] = email
	}
	return r.plan(models.ActionCreateClient, models.IntentCreateClient, text, data), nil
}

func handleNameDocument(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	if in.fields == nil {
		in.fields = map[string]string{}
	}
	if in.fields["name"] == "" {
		in.fields["name"] = bareName(in.req.Utterance.Text)
	}
	return handleCreateClient(ctx, r, in)
}

func handleListClients(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	list, err := r.deps.Counterparties.List(ctx, in.tenant(), r.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return r.plan(models.ActionListClients, models.IntentListClients,
			"Você ainda não tem clientes cadastrados. Diga \"cadastrar cliente\" para começar.",
			map[string]interface{}{"count": 0}), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Seus clientes (%d):", len(list))
	for _, cp := range list {
		b.WriteString("\n- ")
		b.WriteString(counterpartyLabel(cp))
	}
	return r.plan(models.ActionListClients, models.IntentListClients, b.String(),
		map[string]interface{}{"count": len(list), "counterparties": list}), nil
}

func handleSearchClient(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	if doc := in.req.Entities.Document; doc != nil {
		cp, err := r.deps.Counterparties.FindByDocument(ctx, in.tenant(), doc.Number)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		var found []models.Counterparty
		if cp != nil {
			found = append(found, *cp)
		}
		return r.searchResult(documentLabel(doc.Kind, doc.Number), found), nil
	}

	term := in.req.Entities.CounterpartyName
	if term == "" {
		term = in.field("term")
	}
	if term == "" {
		return r.missing(models.IntentSearchClient, "Qual cliente você quer buscar? Pode me dizer o nome ou o CPF/CNPJ.",
			[]string{"term"}, nil), nil
	}
	found, err := r.deps.Counterparties.Search(ctx, in.tenant(), term, r.cfg.SearchLimit)
	if err != nil {
		return nil, err
	}
	return r.searchResult(term, found), nil
}

func (r *Responder) searchResult(term string, found []models.Counterparty) *models.ActionPlan {
	data := map[string]interface{}{"term": term, "count": len(found), "counterparties": found}
	if len(found) == 0 {
		return r.plan(models.ActionSearchClients, models.IntentSearchClient,
			fmt.Sprintf("Não encontrei nenhum cliente para \"%s\". Quer cadastrar?", term), data)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Encontrei %d cliente(s) para \"%s\":", len(found), term)
	for _, cp := range found {
		b.WriteString("\n- ")
		b.WriteString(counterpartyLabel(cp))
	}
	return r.plan(models.ActionSearchClients, models.IntentSearchClient, b.String(), data)
}

// ==========================
// Emission
// ==========================

func handleEmission(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	ents := in.req.Entities
	desc := in.field("description")
	if desc == "" {
		desc = description(in.req.Utterance.Text)
	}

	var (
		cp         *models.Counterparty
		candidates []models.Counterparty
		err        error
	)
	switch {
	case ents.Document != nil:
		cp, err = r.deps.Counterparties.FindByDocument(ctx, in.tenant(), ents.Document.Number)
	case ents.CounterpartyName != "":
		candidates, err = r.deps.Counterparties.Search(ctx, in.tenant(), ents.CounterpartyName, r.cfg.SearchLimit)
		cp, candidates = pickCandidate(ents.CounterpartyName, candidates)
	case in.req.Utterance.Hints.ActiveCounterpartyID != "":
		cp, err = r.deps.Counterparties.FindByID(ctx, in.tenant(), in.req.Utterance.Hints.ActiveCounterpartyID)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	hasCounterparty := cp != nil || ents.Document != nil || ents.CounterpartyName != ""

	if ents.Amount == nil || !hasCounterparty {
		return r.missingEmissionData(ents, cp, desc), nil
	}
	amount := *ents.Amount

	switch {
	case cp != nil:
		return r.emissionPlan(cp, amount, desc), nil
	case len(candidates) > 1:
		return r.chooseCounterparty(candidates, amount, desc), nil
	default:
		return r.registerThenEmit(ents, amount, desc), nil
	}
}

// pickCandidate prefers an exact name or alias match among the search results, which
// keeps "João Silva" from colliding with "João Silva Filho".
func pickCandidate(name string, found []models.Counterparty) (*models.Counterparty, []models.Counterparty) {
	if len(found) == 1 {
		return &found[0], found
	}
	var exact []models.Counterparty
	for _, cp := range found {
		if sameName(cp.Name, name) {
			exact = append(exact, cp)
			continue
		}
		for _, a := range cp.Aliases {
			if sameName(a, name) {
				exact = append(exact, cp)
				break
			}
		}
	}
	if len(exact) == 1 {
		return &exact[0], found
	}
	return nil, found
}

func (r *Responder) emissionPlan(cp *models.Counterparty, amount float64, desc string) *models.ActionPlan {
	text := fmt.Sprintf("Vou emitir uma nota fiscal de R$ %s para %s.", models.FormatBRL(amount), counterpartyLabel(*cp))
	if desc != "" {
		text += " Descrição: " + desc + "."
	}
	text += " Confirma?"
	data := map[string]interface{}{
		"amount":            amount,
		"counterparty":      cp.ID,
		"counterparty_name": cp.Name,
		"document":          cp.Document,
	}
	if cp.Email != "" {
		data["email"] = cp.Email
	}
	if desc != "" {
		data["description"] = desc
	}
	return r.plan(models.ActionEmitInvoice, models.IntentEmitInvoice, text, data)
}

func (r *Responder) chooseCounterparty(candidates []models.Counterparty, amount float64, desc string) *models.ActionPlan {
	ids := make([]string, 0, len(candidates))
	list := make([]map[string]interface{}, 0, len(candidates))
	var b strings.Builder
	b.WriteString("Encontrei mais de um cliente com esse nome:")
	for i, cp := range candidates {
		ids = append(ids, cp.ID)
		list = append(list, map[string]interface{}{"id": cp.ID, "name": cp.Name, "document": cp.Document})
		fmt.Fprintf(&b, "\n%d. %s", i+1, counterpartyLabel(cp))
	}
	fmt.Fprintf(&b, "\nPara qual deles é a nota de R$ %s? Responda com o número.", models.FormatBRL(amount))
	data := map[string]interface{}{"amount": amount, "candidate_ids": ids, "candidates": list}
	if desc != "" {
		data["description"] = desc
	}
	return r.plan(models.ActionChooseCounterparty, models.IntentEmitInvoice, b.String(), data)
}

func (r *Responder) registerThenEmit(ents models.Entities, amount float64, desc string) *models.ActionPlan {
	data := map[string]interface{}{"amount": amount}
	who := ents.CounterpartyName
	if ents.Document != nil {
		data["document"] = ents.Document.Number
		data["document_kind"] = string(ents.Document.Kind)
		if who == "" {
			who = documentLabel(ents.Document.Kind, ents.Document.Number)
		}
	}
	if ents.CounterpartyName != "" {
		data["counterparty_name"] = ents.CounterpartyName
	}
	if desc != "" {
		data["description"] = desc
	}
	ask := "o nome completo e o CPF ou CNPJ"
	switch {
	case ents.Document != nil && ents.CounterpartyName == "":
		ask = "o nome completo"
	case ents.Document == nil && ents.CounterpartyName != "":
		ask = "o CPF ou CNPJ"
	}
	text := fmt.Sprintf("Não encontrei %s nos seus clientes. Para emitir a nota de R$ %s, me envie %s para eu cadastrar.",
		who, models.FormatBRL(amount), ask)
	return r.plan(models.ActionRegisterThenEmit, models.IntentEmitInvoice, text, data)
}

func (r *Responder) missingEmissionData(ents models.Entities, cp *models.Counterparty, desc string) *models.ActionPlan {
	data := map[string]interface{}{}
	var missing []string
	if ents.Amount == nil {
		missing = append(missing, "amount")
	} else {
		data["amount"] = *ents.Amount
	}
	switch {
	case cp != nil:
		data["counterparty"] = cp.ID
		data["counterparty_name"] = cp.Name
	case ents.CounterpartyName != "":
		data["counterparty_name"] = ents.CounterpartyName
	case ents.Document != nil:
		data["document"] = ents.Document.Number
	default:
		missing = append(missing, "counterparty")
	}
	if desc != "" {
		data["description"] = desc
	}

	var text string
	switch {
	case len(missing) == 2:
		text = "Para emitir a nota preciso do valor e do cliente. Ex.: \"emitir nota de R$ 1.500 para João Silva\"."
	case missing[0] == "amount":
		text = "Qual o valor da nota?"
	default:
		text = "Para qual cliente é a nota? Pode informar o nome ou o CPF/CNPJ."
	}
	return r.missing(models.IntentEmitInvoice, text, missing, data)
}

// ==========================
// Fixed responses
// ==========================

func handleRevenue(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	p := r.period(in)
	from, to := p.Range(r.now())
	sum, err := r.deps.Invoices.Summary(ctx, in.tenant(), from, to)
	if err != nil {
		return nil, err
	}
	authorized := sum.ByStatus[models.InvoiceAuthorized]
	text := fmt.Sprintf("Seu faturamento %s foi de R$ %s em %d nota(s) autorizada(s).",
		periodLabel(p), models.FormatBRL(sum.TotalAmount), authorized)
	return r.plan(models.ActionRevenueReport, models.IntentRevenueQuery, text, map[string]interface{}{
		"period":       p.Token(),
		"from":         from,
		"to":           to,
		"total_amount": sum.TotalAmount,
		"invoices":     authorized,
	}), nil
}

var taxTexts = map[models.Intent]string{
	models.IntentViewTaxes: "Como optante do Simples Nacional ou MEI, seus impostos são pagos em uma guia única, o DAS, " +
		"com vencimento todo dia 20. O valor depende do faturamento do mês anterior.",
	models.IntentPayTax: "O DAS pode ser pago por boleto, PIX ou débito automático até o dia 20 de cada mês. " +
		"Depois do vencimento há multa e juros.",
	models.IntentGenerateTax: "A guia do DAS é gerada no Portal do Simples Nacional (PGMEI para MEI) com o seu CNPJ. " +
		"Escolha o período de apuração e emita o boleto.",
}

func handleTaxes(_ context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	topic := in.intent
	switch {
	case strings.Contains(in.folded, "pagar") || strings.Contains(in.folded, "pagamento"):
		topic = models.IntentPayTax
	case strings.Contains(in.folded, "gerar") || strings.Contains(in.folded, "boleto") || strings.Contains(in.folded, "emitir"):
		topic = models.IntentGenerateTax
	}
	text, ok := taxTexts[topic]
	if !ok {
		topic = models.IntentViewTaxes
		text = taxTexts[topic]
	}
	data := map[string]interface{}{"topic": string(topic)}
	if p := in.req.Entities.Period; p != nil {
		data["period"] = p.Token()
	}
	return r.plan(models.ActionTaxInfo, topic, text, data), nil
}

func handleCancellation(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	number := in.field("number")
	if number == "" && reLastInvoice.MatchString(in.folded) {
		inv, err := r.deps.Invoices.Last(ctx, in.tenant())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if inv != nil {
			number = inv.Number
		}
	}
	if number == "" {
		number = invoiceNumber(withoutJustification(in.folded))
	}
	reason := in.field("justification")
	if reason == "" {
		reason = justification(in.req.Normalized)
	}

	if number == "" {
		data := map[string]interface{}{}
		if reason != "" {
			data["justification"] = reason
		}
		return r.missing(models.IntentCancelInvoice, "Qual o número da nota que você quer cancelar?",
			[]string{"invoice_number"}, data), nil
	}

	text := fmt.Sprintf("Vou solicitar o cancelamento da nota nº %s.", number)
	if reason != "" {
		text += " Motivo: " + reason + ". Confirma?"
	} else {
		text += " Informe também o motivo do cancelamento, com pelo menos 15 caracteres."
	}
	plan := r.plan(models.ActionCancelInvoice, models.IntentCancelInvoice, text,
		map[string]interface{}{"invoice_number": number, "justification": reason})
	return plan, nil
}

func handleConnection(ctx context.Context, r *Responder, in *input) (*models.ActionPlan, error) {
	reg, err := r.deps.Registry.Registration(ctx, in.tenant())
	if errors.Is(err, store.ErrNotFound) {
		return r.plan(models.ActionCheckConnection, models.IntentCheckConnection,
			"Sua empresa ainda não está conectada à prefeitura. Conclua o cadastro fiscal nas configurações para emitir notas.",
			map[string]interface{}{"connection": string(models.ConnectionNotConnected)}), nil
	}
	if err != nil {
		return nil, err
	}

	var text string
	switch reg.Connection {
	case models.ConnectionHealthy:
		text = "A conexão com a prefeitura está funcionando."
	case models.ConnectionFailed:
		text = "A última verificação da conexão com a prefeitura falhou. Confira o certificado digital e as credenciais municipais."
	default:
		text = "Sua empresa ainda não está conectada à prefeitura."
	}
	if !reg.CertificatePresent {
		text += " Nenhum certificado digital foi enviado."
	} else if reg.CertificateExpiresAt != nil {
		if reg.CertificateExpiresAt.Before(r.now()) {
			text += fmt.Sprintf(" O certificado digital venceu em %s.", reg.CertificateExpiresAt.Format("02/01/2006"))
		} else {
			text += fmt.Sprintf(" O certificado digital vale até %s.", reg.CertificateExpiresAt.Format("02/01/2006"))
		}
	}
	return r.plan(models.ActionCheckConnection, models.IntentCheckConnection, text, map[string]interface{}{
		"connection":          string(reg.Connection),
		"certificate_present": reg.CertificatePresent,
	}), nil
}

func handleHelp(_ context.Context, r *Responder, _ *input) (*models.ActionPlan, error) {
	return r.plan(models.ActionHelp, models.IntentHelp, helpText, nil), nil
}

func handleGreeting(_ context.Context, r *Responder, _ *input) (*models.ActionPlan, error) {
	return r.plan(models.ActionGreeting, models.IntentGreeting, "Olá! Sou seu assistente fiscal. "+helpText, nil), nil
}
