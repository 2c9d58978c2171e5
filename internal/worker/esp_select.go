package worker

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrNoSenderConfigured is returned when no backend has a complete
// credential group. Dispatch requests fail fast on it rather than
// attempting a send.
var ErrNoSenderConfigured = errors.New("no email provider configured")

// ProviderCredentials holds the credential groups for every supported
// backend. A group is complete only when all of its fields are set.
type ProviderCredentials struct {
	// SendGrid group: API key + sender identity.
	SendGridAPIKey string
	SenderEmail    string

	// Mailgun group: sending domain + API key.
	MailgunAPIKey string
	MailgunDomain string

	// SES group: access key + secret + region.
	AWSAccessKey string
	AWSSecretKey string
	AWSRegion    string

	// SMTP group: host + user + password.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

type backendCandidate struct {
	name    string
	missing []string
	build   func() ESPSender
}

// SelectSender resolves the active backend once at startup: the first
// candidate with a complete credential group wins, in fixed order SendGrid,
// Mailgun, SES, SMTP. The selection holds for the process lifetime; the
// adapter never falls back mid-campaign.
//
// When no group is complete the returned error wraps ErrNoSenderConfigured
// and names the missing fields per backend so the operator can fix the
// configuration.
func SelectSender(creds ProviderCredentials) (ESPSender, error) {
	candidates := []backendCandidate{
		{
			name:    "sendgrid",
			missing: missingFields(field{"api_key", creds.SendGridAPIKey}, field{"sender_email", creds.SenderEmail}),
			build:   func() ESPSender { return NewSendGridSender(creds.SendGridAPIKey) },
		},
		{
			name:    "mailgun",
			missing: missingFields(field{"api_key", creds.MailgunAPIKey}, field{"domain", creds.MailgunDomain}),
			build:   func() ESPSender { return NewMailgunSender(creds.MailgunAPIKey, creds.MailgunDomain) },
		},
		{
			name: "ses",
			missing: missingFields(
				field{"access_key", creds.AWSAccessKey},
				field{"secret_key", creds.AWSSecretKey},
				field{"region", creds.AWSRegion},
			),
			build: func() ESPSender { return NewSESSender(creds.AWSAccessKey, creds.AWSSecretKey, creds.AWSRegion) },
		},
		{
			name: "smtp",
			missing: missingFields(
				field{"host", creds.SMTPHost},
				field{"user", creds.SMTPUser},
				field{"password", creds.SMTPPassword},
			),
			build: func() ESPSender {
				return NewSMTPSender(creds.SMTPHost, creds.SMTPPort, creds.SMTPUser, creds.SMTPPassword)
			},
		},
	}

	var detail []string
	for _, c := range candidates {
		if len(c.missing) == 0 {
			log.Printf("[ProviderSelect] Using %s backend", c.name)
			return c.build(), nil
		}
		detail = append(detail, fmt.Sprintf("%s missing [%s]", c.name, strings.Join(c.missing, " ")))
	}

	return nil, fmt.Errorf("%w: %s", ErrNoSenderConfigured, strings.Join(detail, "; "))
}

type field struct {
	name  string
	value string
}

func missingFields(fields ...field) []string {
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}
