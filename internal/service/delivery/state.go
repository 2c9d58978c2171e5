package delivery

import (
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Event drives a delivery record through its lifecycle.
type Event string

const (
	EventSendSucceeded Event = "send_succeeded"
	EventSendFailed    Event = "send_failed"
	EventDelivered     Event = "delivered"
	EventBounced       Event = "bounced"
	EventOpened        Event = "opened"
	EventClicked       Event = "clicked"
	EventReplied       Event = "replied"
)

// statusRank orders statuses along the forward lifecycle. A transition is
// applied only when it moves the record forward; later events can never
// regress status.
var statusRank = map[domain.DeliveryStatus]int{
	domain.StatusNotSent:   0,
	domain.StatusSent:      1,
	domain.StatusDelivered: 2,
	domain.StatusOpened:    3,
	domain.StatusClicked:   4,
	domain.StatusReplied:   5,
	domain.StatusBounced:   5,
	domain.StatusFailed:    5,
}

// NextStatus returns the status a record should hold after event arrives
// while in current. It is pure: no I/O, no clock, no side effects.
//
// Policy: last writer wins on status upgrade. Terminal statuses (failed,
// bounced, replied) absorb all further events; everything else moves
// forward monotonically. No event is ever rejected: an event that cannot
// upgrade the status simply leaves it unchanged, and callers still record
// its engagement evidence.
func NextStatus(current domain.DeliveryStatus, event Event) domain.DeliveryStatus {
	if current.Terminal() {
		return current
	}

	switch event {
	case EventSendSucceeded:
		return upgrade(current, domain.StatusSent)
	case EventSendFailed:
		// A late failure report is trusted only before engagement
		// evidence exists. Once a record is delivered, opened, or
		// clicked, the failure is stale and the status stands.
		if current == domain.StatusNotSent || current == domain.StatusSent {
			return domain.StatusFailed
		}
		return current
	case EventDelivered:
		return upgrade(current, domain.StatusDelivered)
	case EventBounced:
		return domain.StatusBounced
	case EventOpened:
		return upgrade(current, domain.StatusOpened)
	case EventClicked:
		return upgrade(current, domain.StatusClicked)
	case EventReplied:
		return domain.StatusReplied
	}
	return current
}

func upgrade(current, candidate domain.DeliveryStatus) domain.DeliveryStatus {
	if statusRank[candidate] > statusRank[current] {
		return candidate
	}
	return current
}

// ApplyEvent mutates rec in place to reflect event occurring at ts: the
// status moves per NextStatus and the corresponding timestamp fields are
// set. First-occurrence timestamps (sent_at, opened_at, clicked_at, ...)
// are set exactly once; click_count and last_clicked_at update on every
// click, even on a terminal record.
func ApplyEvent(rec *domain.DeliveryRecord, event Event, ts time.Time) {
	rec.Status = NextStatus(rec.Status, event)

	switch event {
	case EventSendSucceeded, EventSendFailed:
		if rec.SentAt == nil && event == EventSendSucceeded {
			t := ts
			rec.SentAt = &t
		}
	case EventDelivered:
		if rec.DeliveredAt == nil {
			t := ts
			rec.DeliveredAt = &t
		}
	case EventBounced:
		if rec.BouncedAt == nil {
			t := ts
			rec.BouncedAt = &t
		}
	case EventOpened:
		if rec.OpenedAt == nil {
			t := ts
			rec.OpenedAt = &t
		}
	case EventClicked:
		if rec.ClickedAt == nil {
			t := ts
			rec.ClickedAt = &t
		}
		t := ts
		rec.LastClickedAt = &t
		rec.ClickCount++
	case EventReplied:
		rec.IsReplied = true
	}
	rec.UpdatedAt = ts
}
