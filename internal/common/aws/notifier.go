// internal/common/aws/notifier.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Event is published to the outcome topic after every executed action.
type Event struct {
	Type          string               `json:"type"` // invoice.emitted, invoice.cancelled, invoice.failed
	TenantID      string               `json:"tenantId"`
	PlanID        string               `json:"planId"`
	InvoiceNumber string               `json:"invoiceNumber,omitempty"`
	Status        models.InvoiceStatus `json:"status,omitempty"`
	Amount        float64              `json:"amount,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// Notifier sends the emission notice to the counterparty and publishes outcome events.
// A nil SES or SNS service disables that channel.
type Notifier struct {
	cfg    config.NotificationConfig
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

func NewNotifier(cfg config.NotificationConfig, sesSvc SESService, snsSvc SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		ses:    sesSvc,
		sns:    snsSvc,
		logger: log.With(map[string]interface{}{"component": "notifier"}),
	}
}

// InvoiceEmitted mails the counterparty when an address is known.
func (n *Notifier) InvoiceEmitted(ctx context.Context, inv *models.Invoice, cp *models.Counterparty) error {
	if n.ses == nil || !n.cfg.Email.Enabled || cp == nil || cp.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("Nota fiscal %s emitida", inv.Number)
	body := renderNotice(inv, cp)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{cp.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	if err != nil {
		return fmt.Errorf("send emission notice: %w", err)
	}
	n.logger.Info("emission notice sent", map[string]interface{}{
		"invoiceNumber": inv.Number,
		"tenantId":      inv.TenantID,
	})
	return nil
}

// Publish sends an outcome event to the configured topic.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	if n.sns == nil || !n.cfg.Events.Enabled || n.cfg.Events.TopicARN == "" {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.Events.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func renderNotice(inv *models.Invoice, cp *models.Counterparty) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s.\n\n", cp.Name)
	fmt.Fprintf(&b, "A nota fiscal de serviço nº %s foi emitida em %s.\n", inv.Number, inv.IssuedAt.Format("02/01/2006"))
	fmt.Fprintf(&b, "Valor: R$ %s\n", models.FormatBRL(inv.Amount))
	if inv.VerificationCode != "" {
		fmt.Fprintf(&b, "Código de verificação: %s\n", inv.VerificationCode)
	}
	if inv.Description != "" {
		fmt.Fprintf(&b, "Serviço: %s\n", inv.Description)
	}
	return b.String()
}
