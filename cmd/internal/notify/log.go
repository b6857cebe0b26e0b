package notify

import (
	"context"

	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/booking"
)

// LogNotifier writes events to the application log. It is the sink used when
// no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event booking.Event) error {
	log.Infof("event %s user=%d bookings=%v date=%s slot=%s group=%s remaining=%d",
		event.Type, event.UserID, event.BookingIDs, event.Date, event.Slot, event.GroupID, event.Remaining)
	return nil
}
