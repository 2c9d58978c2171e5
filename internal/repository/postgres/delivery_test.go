package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/delivery"
)

func newMock(t *testing.T) (*DeliveryRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDeliveryRepo(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMock(t)

	campID := "camp-1"
	rec := &domain.DeliveryRecord{
		ID:         "rec-1",
		CampaignID: &campID,
		Recipient:  "a@ok.com",
		Status:     domain.StatusNotSent,
	}

	mock.ExpectExec(`INSERT INTO dispatch_deliveries`).
		WithArgs("rec-1", &campID, "a@ok.com", domain.StatusNotSent, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM dispatch_deliveries WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, delivery.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGet(t *testing.T) {
	repo, mock := newMock(t)

	now := time.Now().UTC()
	cols := []string{
		"id", "campaign_id", "recipient", "status", "provider_id", "error_message",
		"sent_at", "delivered_at", "opened_at", "clicked_at", "bounced_at",
		"last_clicked_at", "click_count", "is_replied", "is_test_email",
		"created_at", "updated_at",
	}
	mock.ExpectQuery(`FROM dispatch_deliveries WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"rec-1", "camp-1", "a@ok.com", "clicked", "prov-9", nil,
			now, now, now, now, nil, now, 2, false, false, now, now,
		))

	rec, err := repo.Get(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != domain.StatusClicked || rec.ClickCount != 2 {
		t.Errorf("unexpected record: status=%s clicks=%d", rec.Status, rec.ClickCount)
	}
	if rec.ProviderID == nil || *rec.ProviderID != "prov-9" {
		t.Errorf("provider id not scanned")
	}
	if rec.BouncedAt != nil {
		t.Errorf("bounced_at should be nil")
	}
}

func TestMarkSent(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE dispatch_deliveries SET`).
		WithArgs("rec-1", "prov-9", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkSent(context.Background(), "rec-1", "prov-9", at); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
}

func TestRecordClickMissingRecord(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE dispatch_deliveries SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordClick(context.Background(), "missing", time.Now().UTC())
	if !errors.Is(err, delivery.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCampaignCountsExcludesTestSends(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\)\s+FROM dispatch_deliveries\s+WHERE campaign_id = \$1 AND is_test_email = false`).
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("sent", 40).
			AddRow("opened", 8).
			AddRow("failed", 2))

	counts, err := repo.CampaignCounts(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("CampaignCounts: %v", err)
	}
	if counts["sent"] != 40 || counts["opened"] != 8 || counts["failed"] != 2 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
