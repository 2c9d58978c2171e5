// Package worker contains the batch dispatcher and ESP sender adapters.
//
// ESP adapters are split into individual files:
//   - esp_sendgrid.go: SendGrid v3 Mail Send
//   - esp_mailgun.go:  Mailgun Messages API
//   - esp_ses.go:      AWS SES v2
//   - esp_smtp.go:     generic SMTP via gomail
//   - esp_select.go:   first-fully-configured-backend selection at startup
package worker

import (
	"context"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// ESPSender is the uniform interface over outbound email backends. Exactly
// one implementation is selected at process start (see SelectSender) and
// never swapped mid-campaign.
//
// Send captures per-recipient transport failures as outcome data: a
// non-nil error is reserved for adapter misconfiguration, never for a
// provider rejecting one recipient. A single recipient's failure must not
// abort its batch.
type ESPSender interface {
	Name() string
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendOutcome, error)
}

func failedOutcome(recipient string, err error) *domain.SendOutcome {
	return &domain.SendOutcome{Recipient: recipient, Success: false, Error: err.Error()}
}
