package domain

import "time"

// DeliveryStatus is the canonical lifecycle state of one (campaign,
// recipient, attempt) delivery record.
type DeliveryStatus string

const (
	StatusNotSent   DeliveryStatus = "not_sent"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusOpened    DeliveryStatus = "opened"
	StatusClicked   DeliveryStatus = "clicked"
	StatusReplied   DeliveryStatus = "replied"
	StatusBounced   DeliveryStatus = "bounced"
	StatusFailed    DeliveryStatus = "failed"
)

// Terminal reports whether no further status-only transitions are expected.
// Engagement timestamps may still be recorded on a terminal record; a stale
// tracking beacon arriving after a bounce is evidence worth keeping.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusReplied || s == StatusBounced || s == StatusFailed
}

// DeliveryRecord is the persisted state of one recipient's relationship to
// one campaign send attempt.
//
// The status column and the raw engagement timestamps are allowed to
// diverge: opened_at/clicked_at being non-null is authoritative evidence of
// engagement even when status updates lag behind event ingestion. Consumers
// that need engagement truth must read the timestamp fields, not the enum.
type DeliveryRecord struct {
	ID            string         `json:"id" db:"id"`
	CampaignID    *string        `json:"campaign_id,omitempty" db:"campaign_id"`
	Recipient     string         `json:"recipient" db:"recipient"`
	Status        DeliveryStatus `json:"status" db:"status"`
	ProviderID    *string        `json:"provider_id,omitempty" db:"provider_id"`
	Error         *string        `json:"error,omitempty" db:"error_message"`
	SentAt        *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	OpenedAt      *time.Time     `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt     *time.Time     `json:"clicked_at,omitempty" db:"clicked_at"`
	BouncedAt     *time.Time     `json:"bounced_at,omitempty" db:"bounced_at"`
	LastClickedAt *time.Time     `json:"last_clicked_at,omitempty" db:"last_clicked_at"`
	ClickCount    int            `json:"click_count" db:"click_count"`
	IsReplied     bool           `json:"is_replied" db:"is_replied"`
	IsTestEmail   bool           `json:"is_test_email" db:"is_test_email"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Engaged reports whether the record carries any engagement evidence,
// regardless of what the status enum says.
func (r *DeliveryRecord) Engaged() bool {
	return r.OpenedAt != nil || r.ClickedAt != nil
}

// SendOutcome is the per-recipient result of one send attempt. Outcomes are
// ephemeral: the dispatcher aggregates them for the caller and reflects them
// onto DeliveryRecords, but they are never persisted themselves.
type SendOutcome struct {
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at,omitempty"`
}

// EmailMessage is the fully-resolved message handed to an ESP sender.
// By the time a message reaches this struct, all personalization and
// tracking injection is complete.
type EmailMessage struct {
	RecordID    string            `json:"record_id"`
	CampaignID  string            `json:"campaign_id,omitempty"`
	Recipient   string            `json:"recipient"`
	ToName      string            `json:"to_name,omitempty"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content"`
	TextContent string            `json:"text_content,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}
