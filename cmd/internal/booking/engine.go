// Package booking is the scheduling and session-credit engine: it decides
// whether a reservation may be made, commits single bookings and weekly
// series, and keeps every user's credit balance in step with the bookings
// they hold.
package booking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"selfbooking/cmd/internal/domain/entity"
)

var tracer = otel.Tracer("selfbooking/booking")

const DefaultMaxOccurrences = 52

type Config struct {
	Slots          []string
	OpenWeekdays   []time.Weekday
	Location       *time.Location
	Validator      Validator
	Notifier       Notifier
	DefaultGrant   int
	MaxOccurrences int
	Now            func() time.Time
}

// Engine wires the calendar, availability, ledger and approval gate around
// one repository.
type Engine struct {
	repo           Repository
	slots          *SlotSet
	location       *time.Location
	calendar       *Calendar
	availability   *Availability
	ledger         *Ledger
	gate           *Gate
	validator      Validator
	notifier       Notifier
	maxOccurrences int
	now            func() time.Time
}

func New(repo Repository, cfg Config) (*Engine, error) {
	if len(cfg.Slots) == 0 {
		cfg.Slots = DefaultSlots()
	}
	slots, err := NewSlotSet(cfg.Slots)
	if err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Validator == nil {
		cfg.Validator = Rules{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = DefaultMaxOccurrences
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ledger := NewLedger(repo, cfg.Now)
	return &Engine{
		repo:           repo,
		slots:          slots,
		location:       cfg.Location,
		calendar:       NewCalendar(repo, cfg.OpenWeekdays, cfg.Location, cfg.Now),
		availability:   NewAvailability(repo, slots),
		ledger:         ledger,
		gate:           NewGate(repo, ledger, cfg.Notifier, cfg.DefaultGrant, cfg.Now),
		validator:      cfg.Validator,
		notifier:       cfg.Notifier,
		maxOccurrences: cfg.MaxOccurrences,
		now:            cfg.Now,
	}, nil
}

func (e *Engine) Calendar() *Calendar         { return e.calendar }
func (e *Engine) Availability() *Availability { return e.availability }
func (e *Engine) Ledger() *Ledger             { return e.ledger }
func (e *Engine) Gate() *Gate                 { return e.gate }
func (e *Engine) Slots() *SlotSet             { return e.slots }

// bookingTransitions lists every legal booking status change.
var bookingTransitions = map[entity.BookingStatus][]entity.BookingStatus{
	entity.BookingConfirmed: {entity.BookingCancelled},
}

func canMove(from, to entity.BookingStatus) bool {
	return slices.Contains(bookingTransitions[from], to)
}

// parseSlot validates a (date, slot) pair and returns the slot start.
func (e *Engine) parseSlot(date, slot string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if !e.slots.Valid(slot) {
		return time.Time{}, invalidInput("unknown slot %q", slot)
	}
	return e.slots.Start(day, slot, e.location), nil
}

func (e *Engine) stamp() int64 {
	return e.now().UnixMilli()
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
}
