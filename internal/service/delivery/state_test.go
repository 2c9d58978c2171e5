package delivery

import (
	"testing"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		current domain.DeliveryStatus
		event   Event
		want    domain.DeliveryStatus
	}{
		{"send success from not_sent", domain.StatusNotSent, EventSendSucceeded, domain.StatusSent},
		{"send failure from not_sent", domain.StatusNotSent, EventSendFailed, domain.StatusFailed},
		{"delivered from sent", domain.StatusSent, EventDelivered, domain.StatusDelivered},
		{"bounce from sent", domain.StatusSent, EventBounced, domain.StatusBounced},
		{"bounce from delivered", domain.StatusDelivered, EventBounced, domain.StatusBounced},
		{"open from delivered", domain.StatusDelivered, EventOpened, domain.StatusOpened},
		{"open skips delivered", domain.StatusSent, EventOpened, domain.StatusOpened},
		{"click from opened", domain.StatusOpened, EventClicked, domain.StatusClicked},
		{"click straight from sent", domain.StatusSent, EventClicked, domain.StatusClicked},
		{"reply from clicked", domain.StatusClicked, EventReplied, domain.StatusReplied},

		// Upgrade-only: later-arriving earlier-stage events never regress.
		{"open after click keeps clicked", domain.StatusClicked, EventOpened, domain.StatusClicked},
		{"delivered after open keeps opened", domain.StatusOpened, EventDelivered, domain.StatusOpened},
		{"duplicate click keeps clicked", domain.StatusClicked, EventClicked, domain.StatusClicked},
		{"send outcome after open keeps opened", domain.StatusOpened, EventSendSucceeded, domain.StatusOpened},
		{"send failure from sent", domain.StatusSent, EventSendFailed, domain.StatusFailed},
		{"late send failure after delivery keeps delivered", domain.StatusDelivered, EventSendFailed, domain.StatusDelivered},
		{"late send failure after open keeps opened", domain.StatusOpened, EventSendFailed, domain.StatusOpened},
		{"late send failure after click keeps clicked", domain.StatusClicked, EventSendFailed, domain.StatusClicked},

		// Terminal states absorb everything.
		{"click on bounced stays bounced", domain.StatusBounced, EventClicked, domain.StatusBounced},
		{"open on failed stays failed", domain.StatusFailed, EventOpened, domain.StatusFailed},
		{"delivered on replied stays replied", domain.StatusReplied, EventDelivered, domain.StatusReplied},
		{"bounce on replied stays replied", domain.StatusReplied, EventBounced, domain.StatusReplied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStatus(tt.current, tt.event); got != tt.want {
				t.Errorf("NextStatus(%s, %s) = %s, want %s", tt.current, tt.event, got, tt.want)
			}
		})
	}
}

func TestApplyEventClickSemantics(t *testing.T) {
	rec := &domain.DeliveryRecord{Status: domain.StatusSent}

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	ApplyEvent(rec, EventClicked, t1)

	if rec.Status != domain.StatusClicked {
		t.Fatalf("status after first click = %s, want clicked", rec.Status)
	}
	if rec.ClickCount != 1 {
		t.Fatalf("click count = %d, want 1", rec.ClickCount)
	}
	if rec.ClickedAt == nil || !rec.ClickedAt.Equal(t1) {
		t.Fatalf("clicked_at not set to first click time")
	}

	t2 := t1.Add(5 * time.Minute)
	ApplyEvent(rec, EventClicked, t2)

	if rec.Status != domain.StatusClicked {
		t.Errorf("status after second click = %s, want clicked (no regression)", rec.Status)
	}
	if rec.ClickCount != 2 {
		t.Errorf("click count = %d, want 2", rec.ClickCount)
	}
	if !rec.ClickedAt.Equal(t1) {
		t.Errorf("clicked_at moved on second click; must be set exactly once")
	}
	if rec.LastClickedAt == nil || !rec.LastClickedAt.Equal(t2) {
		t.Errorf("last_clicked_at not refreshed on second click")
	}
}

func TestApplyEventEngagementOnTerminalRecord(t *testing.T) {
	// A stale beacon after a bounce still records engagement evidence,
	// but the status stays terminal.
	bounced := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	rec := &domain.DeliveryRecord{Status: domain.StatusSent}
	ApplyEvent(rec, EventBounced, bounced)

	late := bounced.Add(time.Hour)
	ApplyEvent(rec, EventOpened, late)
	ApplyEvent(rec, EventClicked, late)

	if rec.Status != domain.StatusBounced {
		t.Errorf("status = %s, want bounced", rec.Status)
	}
	if rec.OpenedAt == nil {
		t.Errorf("opened_at not recorded on bounced record")
	}
	if rec.ClickedAt == nil || rec.ClickCount != 1 {
		t.Errorf("click evidence not recorded on bounced record")
	}
	if !rec.Engaged() {
		t.Errorf("Engaged() = false despite engagement timestamps")
	}
}

func TestApplyEventTimestampInvariant(t *testing.T) {
	// A timestamp is set iff the corresponding lifecycle point was reached.
	now := time.Now().UTC()
	rec := &domain.DeliveryRecord{Status: domain.StatusNotSent}

	if rec.SentAt != nil || rec.DeliveredAt != nil || rec.OpenedAt != nil {
		t.Fatal("fresh record must have no timestamps")
	}

	ApplyEvent(rec, EventSendSucceeded, now)
	if rec.SentAt == nil {
		t.Error("sent_at not set on send success")
	}
	if rec.DeliveredAt != nil {
		t.Error("delivered_at set before delivery")
	}

	ApplyEvent(rec, EventDelivered, now)
	if rec.DeliveredAt == nil {
		t.Error("delivered_at not set on delivery")
	}

	ApplyEvent(rec, EventReplied, now)
	if !rec.IsReplied || rec.Status != domain.StatusReplied {
		t.Error("reply event did not set is_replied and status")
	}
}

func TestApplyEventSendFailure(t *testing.T) {
	rec := &domain.DeliveryRecord{Status: domain.StatusNotSent}
	ApplyEvent(rec, EventSendFailed, time.Now().UTC())

	if rec.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if rec.SentAt != nil {
		t.Errorf("sent_at must stay nil on failed send")
	}
}
