// Package postgres implements the service repository interfaces against
// PostgreSQL using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/delivery"
)

// Status guards for atomic SQL-side upgrades. These mirror the rank order
// in delivery.NextStatus: a status only moves forward, and terminal
// statuses are never listed as upgradable.
var (
	upgradableToDelivered = []string{"not_sent", "sent"}
	upgradableToOpened    = []string{"not_sent", "sent", "delivered"}
	upgradableToClicked   = []string{"not_sent", "sent", "delivered", "opened"}
)

const deliveryColumns = `
	id, campaign_id, recipient, status, provider_id, error_message,
	sent_at, delivered_at, opened_at, clicked_at, bounced_at, last_clicked_at,
	click_count, is_replied, is_test_email, created_at, updated_at`

// DeliveryRepo implements delivery.Repository against PostgreSQL.
//
// Engagement updates are single-row atomic statements, so two racing
// tracking beacons for the same record serialize at the database without
// application-level locking.
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery repository.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

func (r *DeliveryRepo) Create(ctx context.Context, rec *domain.DeliveryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_deliveries
			(id, campaign_id, recipient, status, click_count, is_replied,
			 is_test_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, false, $5, NOW(), NOW())
	`, rec.ID, rec.CampaignID, rec.Recipient, rec.Status, rec.IsTestEmail)
	if err != nil {
		return fmt.Errorf("create delivery record: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) Get(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+deliveryColumns+` FROM dispatch_deliveries WHERE id = $1`, id)
	return scanDelivery(row)
}

func (r *DeliveryRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+deliveryColumns+` FROM dispatch_deliveries WHERE provider_id = $1`, providerID)
	return scanDelivery(row)
}

func (r *DeliveryRepo) MarkSent(ctx context.Context, id, providerID string, at time.Time) error {
	return r.exec(ctx, "mark sent", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status = 'not_sent' THEN 'sent' ELSE status END,
			provider_id = $2,
			sent_at = COALESCE(sent_at, $3),
			updated_at = NOW()
		WHERE id = $1
	`, id, providerID, at)
}

func (r *DeliveryRepo) MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error {
	return r.exec(ctx, "mark failed", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status IN ('not_sent', 'sent') THEN 'failed' ELSE status END,
			error_message = $2,
			updated_at = $3
		WHERE id = $1
	`, id, errMsg, at)
}

func (r *DeliveryRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "mark delivered", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status = ANY($3) THEN 'delivered' ELSE status END,
			delivered_at = COALESCE(delivered_at, $2),
			updated_at = NOW()
		WHERE id = $1
	`, id, at, pq.Array(upgradableToDelivered))
}

func (r *DeliveryRepo) MarkBounced(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "mark bounced", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status IN ('replied', 'bounced', 'failed') THEN status ELSE 'bounced' END,
			bounced_at = COALESCE(bounced_at, $2),
			updated_at = NOW()
		WHERE id = $1
	`, id, at)
}

func (r *DeliveryRepo) RecordOpen(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "record open", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status = ANY($3) THEN 'opened' ELSE status END,
			opened_at = COALESCE(opened_at, $2),
			updated_at = NOW()
		WHERE id = $1
	`, id, at, pq.Array(upgradableToOpened))
}

func (r *DeliveryRepo) RecordClick(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "record click", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status = ANY($3) THEN 'clicked' ELSE status END,
			clicked_at = COALESCE(clicked_at, $2),
			last_clicked_at = $2,
			click_count = click_count + 1,
			updated_at = NOW()
		WHERE id = $1
	`, id, at, pq.Array(upgradableToClicked))
}

func (r *DeliveryRepo) MarkReplied(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "mark replied", `
		UPDATE dispatch_deliveries SET
			status = CASE WHEN status IN ('bounced', 'failed') THEN status ELSE 'replied' END,
			is_replied = true,
			updated_at = $2
		WHERE id = $1
	`, id, at)
}

func (r *DeliveryRepo) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+deliveryColumns+`
		FROM dispatch_deliveries
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list by campaign: %w", err)
	}
	return collectDeliveries(rows)
}

func (r *DeliveryRepo) ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+deliveryColumns+`
		FROM dispatch_deliveries
		WHERE recipient = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipient, limit)
	if err != nil {
		return nil, fmt.Errorf("list by recipient: %w", err)
	}
	return collectDeliveries(rows)
}

// CampaignCounts returns sent/opened/clicked/bounced/failed totals for a
// campaign, excluding test sends from every aggregate.
func (r *DeliveryRepo) CampaignCounts(ctx context.Context, campaignID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM dispatch_deliveries
		WHERE campaign_id = $1 AND is_test_email = false
		GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *DeliveryRepo) exec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (*domain.DeliveryRecord, error) {
	rec := &domain.DeliveryRecord{}
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.Recipient, &rec.Status, &rec.ProviderID,
		&rec.Error, &rec.SentAt, &rec.DeliveredAt, &rec.OpenedAt, &rec.ClickedAt,
		&rec.BouncedAt, &rec.LastClickedAt, &rec.ClickCount, &rec.IsReplied,
		&rec.IsTestEmail, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, delivery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan delivery record: %w", err)
	}
	return rec, nil
}

func collectDeliveries(rows *sql.Rows) ([]domain.DeliveryRecord, error) {
	defer rows.Close()
	var out []domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
