package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httpretry"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// MailgunSender sends emails via the Mailgun Messages API.
type MailgunSender struct {
	apiKey  string
	domain  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewMailgunSender creates a Mailgun sender targeting the given domain.
// Transient API errors (429, 5xx) are retried with backoff before a send
// counts as failed.
func NewMailgunSender(apiKey, sendingDomain string) *MailgunSender {
	return &MailgunSender{
		apiKey:  apiKey,
		domain:  sendingDomain,
		baseURL: "https://api.mailgun.net/v3",
		client:  httpretry.NewRetryClient(&http.Client{Timeout: 60 * time.Second}, 2),
	}
}

func (s *MailgunSender) Name() string { return "mailgun" }

// Send delivers a single email through Mailgun.
func (s *MailgunSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendOutcome, error) {
	if s.apiKey == "" || s.domain == "" {
		return nil, fmt.Errorf("Mailgun API key or domain not configured")
	}

	to := msg.Recipient
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", msg.ToName, msg.Recipient)
	}

	form := url.Values{}
	form.Add("from", fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail))
	form.Add("to", to)
	form.Add("subject", msg.Subject)
	form.Add("html", msg.HTMLContent)
	if msg.TextContent != "" {
		form.Add("text", msg.TextContent)
	}
	if msg.ReplyTo != "" {
		form.Add("h:Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		form.Add("h:"+k, v)
	}
	form.Add("v:record_id", msg.RecordID)
	if msg.CampaignID != "" {
		form.Add("v:campaign_id", msg.CampaignID)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return failedOutcome(msg.Recipient, fmt.Errorf("send request: %w", err)), nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return failedOutcome(msg.Recipient, fmt.Errorf("Mailgun error %d: %s", resp.StatusCode, string(body))), nil
	}

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	json.Unmarshal(body, &result)
	messageID := strings.Trim(result.ID, "<>")
	log.Printf("[Mailgun] Sent to %s (id: %s)", logger.RedactEmail(msg.Recipient), messageID)

	return &domain.SendOutcome{
		Recipient: msg.Recipient,
		Success:   true,
		MessageID: messageID,
		SentAt:    time.Now().UTC(),
	}, nil
}
