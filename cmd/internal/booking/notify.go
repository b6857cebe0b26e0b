package booking

import (
	"context"

	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/domain/entity"
)

type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventSeriesConfirmed  EventType = "series.confirmed"
	EventApprovalChanged  EventType = "account.approval_changed"
)

// Event is handed to the Notifier after a state change has been committed.
type Event struct {
	Type          EventType            `json:"type"`
	UserID        int                  `json:"user_id"`
	BookingIDs    []int                `json:"booking_ids,omitempty"`
	Date          string               `json:"date,omitempty"`
	Slot          string               `json:"slot,omitempty"`
	GroupID       string               `json:"recurring_group_id,omitempty"`
	ApprovalState entity.ApprovalState `json:"approval_state,omitempty"`
	Remaining     int                  `json:"remaining_credits"`
	OccurredAt    int64                `json:"occurred_at"`
}

// Notifier is a fire-and-forget side channel. Its errors are logged and
// never undo a committed change.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

func emit(ctx context.Context, n Notifier, event Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil {
		log.Warnf("failed to deliver %s notification for user %d: %v", event.Type, event.UserID, err)
	}
}
