package delivery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/delivery"
)

// memRepo is an in-memory delivery repository for unit testing. Mutators
// apply the same event semantics as the Postgres implementation.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*domain.DeliveryRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*domain.DeliveryRecord)}
}

func (m *memRepo) Create(_ context.Context, rec *domain.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[cp.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) GetByProviderID(_ context.Context, providerID string) (*domain.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ProviderID != nil && *rec.ProviderID == providerID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, delivery.ErrNotFound
}

func (m *memRepo) apply(id string, ev delivery.Event, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return delivery.ErrNotFound
	}
	delivery.ApplyEvent(rec, ev, at)
	return nil
}

func (m *memRepo) MarkSent(_ context.Context, id, providerID string, at time.Time) error {
	if err := m.apply(id, delivery.EventSendSucceeded, at); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].ProviderID = &providerID
	return nil
}

func (m *memRepo) MarkFailed(_ context.Context, id, errMsg string, at time.Time) error {
	if err := m.apply(id, delivery.EventSendFailed, at); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].Error = &errMsg
	return nil
}

func (m *memRepo) MarkDelivered(_ context.Context, id string, at time.Time) error {
	return m.apply(id, delivery.EventDelivered, at)
}

func (m *memRepo) MarkBounced(_ context.Context, id string, at time.Time) error {
	return m.apply(id, delivery.EventBounced, at)
}

func (m *memRepo) RecordOpen(_ context.Context, id string, at time.Time) error {
	return m.apply(id, delivery.EventOpened, at)
}

func (m *memRepo) RecordClick(_ context.Context, id string, at time.Time) error {
	return m.apply(id, delivery.EventClicked, at)
}

func (m *memRepo) MarkReplied(_ context.Context, id string, at time.Time) error {
	return m.apply(id, delivery.EventReplied, at)
}

func (m *memRepo) ListByCampaign(_ context.Context, campaignID string, limit, offset int) ([]domain.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryRecord
	for _, rec := range m.records {
		if rec.CampaignID != nil && *rec.CampaignID == campaignID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memRepo) ListByRecipient(_ context.Context, recipient string, limit int) ([]domain.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryRecord
	for _, rec := range m.records {
		if rec.Recipient == recipient {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func TestCreatePending(t *testing.T) {
	svc := delivery.NewService(newMemRepo())
	ctx := context.Background()

	rec, err := svc.CreatePending(ctx, "camp-1", "a@ok.com", false)
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if rec.Status != domain.StatusNotSent {
		t.Errorf("status = %s, want not_sent", rec.Status)
	}
	if rec.CampaignID == nil || *rec.CampaignID != "camp-1" {
		t.Errorf("campaign id not set")
	}

	// Ad-hoc send: no campaign.
	adhoc, err := svc.CreatePending(ctx, "", "b@ok.com", true)
	if err != nil {
		t.Fatalf("CreatePending ad-hoc: %v", err)
	}
	if adhoc.CampaignID != nil {
		t.Errorf("ad-hoc record must have nil campaign id")
	}
	if !adhoc.IsTestEmail {
		t.Errorf("test flag not carried")
	}
}

func TestCreatePendingRejectsInvalidAddress(t *testing.T) {
	svc := delivery.NewService(newMemRepo())

	if _, err := svc.CreatePending(context.Background(), "", "not-an-email", false); !errors.Is(err, delivery.ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
}

func TestApplySendOutcome(t *testing.T) {
	repo := newMemRepo()
	svc := delivery.NewService(repo)
	ctx := context.Background()

	ok, _ := svc.CreatePending(ctx, "camp-1", "a@ok.com", false)
	bad, _ := svc.CreatePending(ctx, "camp-1", "b@ok.com", false)

	if err := svc.ApplySendOutcome(ctx, ok.ID, domain.SendOutcome{
		Recipient: "a@ok.com", Success: true, MessageID: "prov-123", SentAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("ApplySendOutcome success: %v", err)
	}
	if err := svc.ApplySendOutcome(ctx, bad.ID, domain.SendOutcome{
		Recipient: "b@ok.com", Success: false, Error: "mailbox full",
	}); err != nil {
		t.Fatalf("ApplySendOutcome failure: %v", err)
	}

	got, _ := svc.Get(ctx, ok.ID)
	if got.Status != domain.StatusSent || got.SentAt == nil {
		t.Errorf("success outcome: status=%s sentAt=%v", got.Status, got.SentAt)
	}
	if got.ProviderID == nil || *got.ProviderID != "prov-123" {
		t.Errorf("provider id not recorded")
	}

	got, _ = svc.Get(ctx, bad.ID)
	if got.Status != domain.StatusFailed || got.Error == nil || *got.Error != "mailbox full" {
		t.Errorf("failure outcome: status=%s err=%v", got.Status, got.Error)
	}
}

func TestApplyProviderEvent(t *testing.T) {
	repo := newMemRepo()
	svc := delivery.NewService(repo)
	ctx := context.Background()

	rec, _ := svc.CreatePending(ctx, "camp-1", "a@ok.com", false)
	_ = svc.ApplySendOutcome(ctx, rec.ID, domain.SendOutcome{Success: true, MessageID: "prov-9"})

	if err := svc.ApplyProviderEvent(ctx, "prov-9", delivery.EventDelivered, time.Now().UTC()); err != nil {
		t.Fatalf("ApplyProviderEvent: %v", err)
	}
	got, _ := svc.Get(ctx, rec.ID)
	if got.Status != domain.StatusDelivered || got.DeliveredAt == nil {
		t.Errorf("delivered webhook not applied: %s", got.Status)
	}

	if err := svc.ApplyProviderEvent(ctx, "unknown-id", delivery.EventBounced, time.Now().UTC()); !errors.Is(err, delivery.ErrNotFound) {
		t.Errorf("unknown provider id: err = %v, want ErrNotFound", err)
	}
}

func TestDoubleClickLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := delivery.NewService(repo)
	ctx := context.Background()

	rec, _ := svc.CreatePending(ctx, "camp-1", "a@ok.com", false)
	_ = svc.ApplySendOutcome(ctx, rec.ID, domain.SendOutcome{Success: true, MessageID: "m1"})

	if err := svc.RecordClick(ctx, rec.ID); err != nil {
		t.Fatalf("first click: %v", err)
	}
	got, _ := svc.Get(ctx, rec.ID)
	if got.Status != domain.StatusClicked || got.ClickCount != 1 {
		t.Fatalf("after first click: status=%s count=%d", got.Status, got.ClickCount)
	}

	if err := svc.RecordClick(ctx, rec.ID); err != nil {
		t.Fatalf("second click: %v", err)
	}
	got, _ = svc.Get(ctx, rec.ID)
	if got.Status != domain.StatusClicked {
		t.Errorf("status regressed after second click: %s", got.Status)
	}
	if got.ClickCount != 2 {
		t.Errorf("click count = %d, want 2", got.ClickCount)
	}
}
