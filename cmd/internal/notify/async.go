package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/booking"
)

// Async hands events to another Notifier on a background goroutine so a slow
// or unreachable sink never holds up the request that committed the change.
// At most maxInFlight deliveries run at once; beyond that events are dropped
// with an error the engine logs.
type Async struct {
	next    booking.Notifier
	timeout time.Duration
	slots   chan struct{}
	wg      sync.WaitGroup
}

func NewAsync(next booking.Notifier, maxInFlight int, timeout time.Duration) *Async {
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, timeout: timeout, slots: make(chan struct{}, maxInFlight)}
}

// Notify returns as soon as the delivery is scheduled. The delivery keeps the
// request's values but not its cancellation.
func (a *Async) Notify(ctx context.Context, event booking.Event) error {
	select {
	case a.slots <- struct{}{}:
	default:
		return fmt.Errorf("notify: %d deliveries in flight, dropping %s", cap(a.slots), event.Type)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.slots }()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(dctx, event); err != nil {
			log.Warnf("failed to deliver %s notification for user %d: %v", event.Type, event.UserID, err)
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}
