package booking

import (
	"context"
	"fmt"
)

// Availability answers which slots of a day are taken.
type Availability struct {
	repo  Repository
	slots *SlotSet
}

func NewAvailability(repo Repository, slots *SlotSet) *Availability {
	return &Availability{repo: repo, slots: slots}
}

// BookedSlots returns the slots holding a confirmed booking on date.
func (a *Availability) BookedSlots(ctx context.Context, date string) (map[string]bool, error) {
	return a.bookedSlots(ctx, a.repo, date)
}

// bookedSlots reads through repo; pass the transaction-bound one when the
// answer guards a write.
func (a *Availability) bookedSlots(ctx context.Context, repo Repository, date string) (map[string]bool, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	taken, err := repo.ConfirmedSlots(ctx, date)
	if err != nil {
		return nil, err
	}
	booked := make(map[string]bool, len(taken))
	for _, slot := range taken {
		booked[slot] = true
	}
	return booked, nil
}

// FreeSlots returns the configured slots of date without a confirmed booking,
// in slot order.
func (a *Availability) FreeSlots(ctx context.Context, date string) ([]string, error) {
	booked, err := a.BookedSlots(ctx, date)
	if err != nil {
		return nil, err
	}
	free := make([]string, 0, len(a.slots.labels))
	for _, label := range a.slots.labels {
		if !booked[label] {
			free = append(free, label)
		}
	}
	return free, nil
}

func (a *Availability) ensureFree(ctx context.Context, repo Repository, date, slot string) error {
	booked, err := a.bookedSlots(ctx, repo, date)
	if err != nil {
		return err
	}
	if booked[slot] {
		return fmt.Errorf("%w: %s at %s", ErrSlotUnavailable, date, slot)
	}
	return nil
}
