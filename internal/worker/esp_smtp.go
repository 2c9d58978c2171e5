package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// SMTPSender sends emails through a generic SMTP relay. It is the fallback
// backend when no transactional API provider is configured.
type SMTPSender struct {
	host   string
	port   int
	dialer *gomail.Dialer
}

// NewSMTPSender creates an SMTP sender using authenticated submission.
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:   host,
		port:   port,
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

func (s *SMTPSender) Name() string { return "smtp" }

// Send delivers a single email over SMTP. gomail's dial-and-send is not
// context-aware, so the transfer runs in a goroutine and the context
// deadline is enforced from outside; an abandoned transfer finishes (or
// fails) in the background.
func (s *SMTPSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendOutcome, error) {
	if s.host == "" {
		return nil, fmt.Errorf("SMTP host not configured")
	}

	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), s.host)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.Recipient, msg.ToName)
	} else {
		m.SetHeader("To", msg.Recipient)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s>", messageID))
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}
	if msg.TextContent != "" {
		m.SetBody("text/plain", msg.TextContent)
		m.AddAlternative("text/html", msg.HTMLContent)
	} else {
		m.SetBody("text/html", msg.HTMLContent)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.dialer.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return failedOutcome(msg.Recipient, fmt.Errorf("smtp send: %w", ctx.Err())), nil
	case err := <-errCh:
		if err != nil {
			log.Printf("[SMTP] Failed to send to %s: %v", logger.RedactEmail(msg.Recipient), err)
			return failedOutcome(msg.Recipient, fmt.Errorf("smtp send: %w", err)), nil
		}
	}

	log.Printf("[SMTP] Sent to %s via %s:%d (id: %s)", logger.RedactEmail(msg.Recipient), s.host, s.port, messageID)

	return &domain.SendOutcome{
		Recipient: msg.Recipient,
		Success:   true,
		MessageID: messageID,
		SentAt:    time.Now().UTC(),
	}, nil
}
