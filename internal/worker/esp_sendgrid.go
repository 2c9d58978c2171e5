package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httpretry"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// SendGridSender sends emails via the SendGrid v3 Mail Send API.
type SendGridSender struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewSendGridSender creates a SendGrid sender. Transient API errors (429,
// 5xx) are retried with backoff before a send counts as failed.
func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{
		apiKey:  apiKey,
		baseURL: "https://api.sendgrid.com/v3",
		client:  httpretry.NewRetryClient(&http.Client{Timeout: 60 * time.Second}, 2),
	}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

// Send delivers a single email through SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendOutcome, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("SendGrid API key not configured")
	}

	to := map[string]string{"email": msg.Recipient}
	if msg.ToName != "" {
		to["name"] = msg.ToName
	}
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{
				"to":          []map[string]string{to},
				"custom_args": map[string]string{"record_id": msg.RecordID, "campaign_id": msg.CampaignID},
			},
		},
		"from":    map[string]string{"email": msg.FromEmail, "name": msg.FromName},
		"subject": msg.Subject,
		"content": []map[string]string{{"type": "text/html", "value": msg.HTMLContent}},
	}
	if msg.TextContent != "" {
		payload["content"] = []map[string]string{
			{"type": "text/plain", "value": msg.TextContent},
			{"type": "text/html", "value": msg.HTMLContent},
		}
	}
	if msg.ReplyTo != "" {
		payload["reply_to"] = map[string]string{"email": msg.ReplyTo}
	}
	if len(msg.Headers) > 0 {
		payload["headers"] = msg.Headers
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/mail/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return failedOutcome(msg.Recipient, fmt.Errorf("send: %w", err)), nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return failedOutcome(msg.Recipient, fmt.Errorf("SendGrid error %d: %s", resp.StatusCode, string(body))), nil
	}

	messageID := resp.Header.Get("X-Message-Id")
	if messageID == "" {
		messageID = uuid.New().String()
	}

	log.Printf("[SendGrid] Sent to %s (id: %s)", logger.RedactEmail(msg.Recipient), messageID)
	return &domain.SendOutcome{
		Recipient: msg.Recipient,
		Success:   true,
		MessageID: messageID,
		SentAt:    time.Now().UTC(),
	}, nil
}
