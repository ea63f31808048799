// Package fiscalapi is the HTTP client of the fiscal platform that emits and cancels NFS-e.
package fiscalapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fiscal-assistant/internal/common/cache"
	"fiscal-assistant/internal/common/config"
	httpclient "fiscal-assistant/internal/common/http"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"
)

// Client implements store.ActionSink over the platform REST API.
type Client struct {
	baseURL string
	http    *httpclient.Client
	tokens  *tokenSource
	log     logger.Logger
}

var _ store.ActionSink = (*Client)(nil)

// NewClient builds a client. tokens may be shared between clients; clock is used for
// token expiry and may be nil.
func NewClient(cfg config.FiscalAPIConfig, tokens *cache.TTLCache[string, string], clock cache.Clock, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if clock == nil {
		clock = time.Now
	}
	if tokens == nil {
		tokens = cache.NewTTLCache[string, string](time.Hour, clock)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpclient.NewClient(timeout),
		tokens: &tokenSource{
			tokenURL:     cfg.TokenURL,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			httpClient:   &http.Client{Timeout: timeout},
			tokens:       tokens,
			now:          clock,
		},
		log: log.WithFields(map[string]interface{}{"component": "fiscalapi"}),
	}
}

type emitPayload struct {
	Counterparty struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Document string `json:"document,omitempty"`
		Email    string `json:"email,omitempty"`
	} `json:"counterparty"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

type invoicePayload struct {
	ID               string    `json:"id"`
	Number           string    `json:"number"`
	VerificationCode string    `json:"verificationCode"`
	Status           string    `json:"status"`
	MunicipalityCode string    `json:"municipalityCode"`
	RejectionReason  string    `json:"rejectionReason"`
	IssuedAt         time.Time `json:"issuedAt"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) EmitInvoice(ctx context.Context, tenantID string, req models.EmissionRequest) (*models.Invoice, error) {
	var body emitPayload
	body.Counterparty.ID = req.CounterpartyID
	body.Counterparty.Name = req.CounterpartyName
	body.Counterparty.Document = req.Document
	body.Counterparty.Email = req.Email
	body.Amount = req.Amount
	body.Description = req.Description

	var out invoicePayload
	if err := c.call(ctx, "emit", http.MethodPost, c.tenantPath(tenantID, "nfse"), body, &out); err != nil {
		return nil, err
	}

	c.log.Info("invoice emitted", map[string]interface{}{"tenantId": tenantID, "number": out.Number, "status": out.Status})
	return &models.Invoice{
		ID:               out.ID,
		TenantID:         tenantID,
		Number:           out.Number,
		VerificationCode: out.VerificationCode,
		Status:           models.InvoiceStatus(out.Status),
		CounterpartyID:   req.CounterpartyID,
		CounterpartyName: req.CounterpartyName,
		Amount:           req.Amount,
		Description:      req.Description,
		MunicipalityCode: out.MunicipalityCode,
		RejectionReason:  out.RejectionReason,
		IssuedAt:         out.IssuedAt,
	}, nil
}

func (c *Client) CancelInvoice(ctx context.Context, tenantID string, req models.CancellationRequest) (*models.Invoice, error) {
	path := c.tenantPath(tenantID, "nfse/"+url.PathEscape(req.InvoiceNumber)+"/cancel")
	payload := map[string]string{"justification": req.Justification}

	var out invoicePayload
	if err := c.call(ctx, "cancel", http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}

	c.log.Info("invoice cancelled", map[string]interface{}{"tenantId": tenantID, "number": out.Number})
	return &models.Invoice{
		ID:               out.ID,
		TenantID:         tenantID,
		Number:           out.Number,
		VerificationCode: out.VerificationCode,
		Status:           models.InvoiceStatus(out.Status),
		MunicipalityCode: out.MunicipalityCode,
		IssuedAt:         out.IssuedAt,
	}, nil
}

// CheckConnection asks the platform whether the tenant's link with the authority works.
func (c *Client) CheckConnection(ctx context.Context, tenantID string) (models.ConnectionHealth, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "connection", http.MethodGet, c.tenantPath(tenantID, "connection"), nil, &out); err != nil {
		return models.ConnectionFailed, err
	}
	switch models.ConnectionHealth(out.Status) {
	case models.ConnectionHealthy, models.ConnectionNotConnected:
		return models.ConnectionHealth(out.Status), nil
	}
	return models.ConnectionFailed, nil
}

func (c *Client) tenantPath(tenantID, suffix string) string {
	return fmt.Sprintf("%s/v1/tenants/%s/%s", c.baseURL, url.PathEscape(tenantID), suffix)
}

func (c *Client) call(ctx context.Context, op, method, target string, payload, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &store.SinkError{Operation: op, Code: "AUTH", Detail: err.Error(), Retryable: true}
	}
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	err = c.http.DoJSON(ctx, method, target, headers, payload, out)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	if !stderrors.As(err, &statusErr) {
		return &store.SinkError{Operation: op, Code: "TRANSPORT", Detail: err.Error(), Retryable: true}
	}
	sinkErr := &store.SinkError{
		Operation:  op,
		StatusCode: statusErr.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", statusErr.StatusCode),
		Detail:     statusErr.Body,
		Retryable:  statusErr.Temporary(),
	}
	var body errorPayload
	if json.Unmarshal([]byte(statusErr.Body), &body) == nil && body.Code != "" {
		sinkErr.Code = body.Code
		sinkErr.Detail = body.Message
	}
	return sinkErr
}
