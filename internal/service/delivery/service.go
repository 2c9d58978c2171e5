package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Service implements delivery lifecycle business logic. All public methods
// are safe for concurrent use if the underlying repository is
// concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a delivery service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreatePending creates a delivery record in not_sent for a recipient about
// to be dispatched. campaignID may be empty for ad-hoc/test sends.
func (s *Service) CreatePending(ctx context.Context, campaignID, recipient string, isTest bool) (*domain.DeliveryRecord, error) {
	if !domain.ValidEmail(recipient) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	now := time.Now().UTC()
	rec := &domain.DeliveryRecord{
		ID:          uuid.New().String(),
		Recipient:   recipient,
		Status:      domain.StatusNotSent,
		IsTestEmail: isTest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if campaignID != "" {
		rec.CampaignID = &campaignID
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create delivery record: %w", err)
	}
	return rec, nil
}

// Get returns a single delivery record.
func (s *Service) Get(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	return s.repo.Get(ctx, id)
}

// ApplySendOutcome reflects a provider send outcome onto the record:
// sent + sent_at + provider_id on success, failed + error on failure.
func (s *Service) ApplySendOutcome(ctx context.Context, id string, out domain.SendOutcome) error {
	at := out.SentAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if out.Success {
		return s.repo.MarkSent(ctx, id, out.MessageID, at)
	}
	return s.repo.MarkFailed(ctx, id, out.Error, at)
}

// ApplyProviderEvent ingests a delivery/bounce notification from the
// provider webhook. The record is resolved by provider message ID.
func (s *Service) ApplyProviderEvent(ctx context.Context, providerID string, event Event, at time.Time) error {
	rec, err := s.repo.GetByProviderID(ctx, providerID)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch event {
	case EventDelivered:
		return s.repo.MarkDelivered(ctx, rec.ID, at)
	case EventBounced:
		return s.repo.MarkBounced(ctx, rec.ID, at)
	default:
		return fmt.Errorf("unsupported provider event %q", event)
	}
}

// RecordOpen ingests an open beacon for the given record.
func (s *Service) RecordOpen(ctx context.Context, id string) error {
	return s.repo.RecordOpen(ctx, id, time.Now().UTC())
}

// RecordClick ingests a click beacon for the given record. Every click
// increments click_count and refreshes last_clicked_at; the status moves to
// clicked on the first click and never regresses afterwards.
func (s *Service) RecordClick(ctx context.Context, id string) error {
	return s.repo.RecordClick(ctx, id, time.Now().UTC())
}

// MarkReplied is the entry point for the reply-detection collaborator.
func (s *Service) MarkReplied(ctx context.Context, id string) error {
	return s.repo.MarkReplied(ctx, id, time.Now().UTC())
}

// History returns the delivery history for a campaign.
func (s *Service) History(ctx context.Context, campaignID string, limit, offset int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListByCampaign(ctx, campaignID, limit, offset)
}

// RecipientHistory returns a recipient's delivery history across campaigns.
func (s *Service) RecipientHistory(ctx context.Context, recipient string, limit int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListByRecipient(ctx, recipient, limit)
}
