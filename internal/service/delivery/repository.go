package delivery

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository defines the data access contract for delivery records.
// Implementations must be safe for concurrent use.
//
// The event-specific mutators mirror ApplyEvent's semantics but are
// expressed as single atomic row updates, so two racing tracking beacons
// for the same record resolve through the datastore's row-update atomicity
// rather than application-level locking.
type Repository interface {
	// Create inserts a new record. The record's ID must be set.
	Create(ctx context.Context, rec *domain.DeliveryRecord) error

	// Get returns a single record. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.DeliveryRecord, error)

	// GetByProviderID resolves a record by the provider-assigned message ID,
	// for webhook correlation. Returns ErrNotFound if unknown.
	GetByProviderID(ctx context.Context, providerID string) (*domain.DeliveryRecord, error)

	// MarkSent records an accepted send: status upgrade to sent, provider_id,
	// and sent_at (set once).
	MarkSent(ctx context.Context, id, providerID string, at time.Time) error

	// MarkFailed records a failed send attempt with its error description.
	MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error

	// MarkDelivered records a provider delivery confirmation.
	MarkDelivered(ctx context.Context, id string, at time.Time) error

	// MarkBounced records a provider bounce.
	MarkBounced(ctx context.Context, id string, at time.Time) error

	// RecordOpen sets opened_at (once) and upgrades status to opened.
	RecordOpen(ctx context.Context, id string, at time.Time) error

	// RecordClick sets clicked_at (once), increments click_count, refreshes
	// last_clicked_at (every time), and upgrades status to clicked.
	RecordClick(ctx context.Context, id string, at time.Time) error

	// MarkReplied sets is_replied and upgrades status to replied.
	MarkReplied(ctx context.Context, id string, at time.Time) error

	// ListByCampaign returns the delivery history for a campaign, newest
	// first.
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]domain.DeliveryRecord, error)

	// ListByRecipient returns a recipient's delivery history across
	// campaigns, newest first. Test sends are included; aggregate analytics
	// must filter on is_test_email.
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.DeliveryRecord, error)
}
