package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"selfbooking/cmd/internal/domain/entity"
)

// DateLayout is the only accepted calendar day format.
const DateLayout = "2006-01-02"

// SlotLayout is the wall-clock format of slot labels, e.g. "10:00 AM".
const SlotLayout = "3:04 PM"

// DefaultSlots are the hourly slots offered when none are configured.
func DefaultSlots() []string {
	return []string{
		"9:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
		"1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM",
	}
}

// DefaultOpenWeekdays is Monday through Friday.
func DefaultOpenWeekdays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, invalidInput("malformed date %q", s)
	}
	return d, nil
}

// SlotSet is the closed, ordered set of bookable slot labels.
type SlotSet struct {
	labels []string
	offset map[string]time.Duration
}

func NewSlotSet(labels []string) (*SlotSet, error) {
	if len(labels) == 0 {
		return nil, invalidInput("at least one slot is required")
	}
	s := &SlotSet{offset: make(map[string]time.Duration, len(labels))}
	for _, label := range labels {
		t, err := time.Parse(SlotLayout, label)
		if err != nil {
			return nil, invalidInput("malformed slot label %q", label)
		}
		if _, dup := s.offset[label]; dup {
			return nil, invalidInput("duplicate slot label %q", label)
		}
		s.offset[label] = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
		s.labels = append(s.labels, label)
	}
	return s, nil
}

func (s *SlotSet) Valid(label string) bool {
	_, ok := s.offset[label]
	return ok
}

func (s *SlotSet) Labels() []string {
	return append([]string(nil), s.labels...)
}

// Start returns the wall-clock instant a slot begins on day in loc.
func (s *SlotSet) Start(day time.Time, label string, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(s.offset[label])
}

// Calendar decides whether a day can take bookings at all.
type Calendar struct {
	repo     Repository
	open     map[time.Weekday]bool
	location *time.Location
	now      func() time.Time
}

func NewCalendar(repo Repository, openDays []time.Weekday, loc *time.Location, now func() time.Time) *Calendar {
	if len(openDays) == 0 {
		openDays = DefaultOpenWeekdays()
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	open := make(map[time.Weekday]bool, len(openDays))
	for _, d := range openDays {
		open[d] = true
	}
	return &Calendar{repo: repo, open: open, location: loc, now: now}
}

// Today is the current calendar day in the configured location.
func (c *Calendar) Today() string {
	return c.now().In(c.location).Format(DateLayout)
}

// IsBookable reports whether date is open for bookings. Only malformed input
// or storage failures are returned as errors.
func (c *Calendar) IsBookable(ctx context.Context, date string) (bool, error) {
	err := c.Check(ctx, date)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDateNotBookable), errors.Is(err, ErrBlackoutConflict):
		return false, nil
	default:
		return false, err
	}
}

// Check is IsBookable with the reason attached.
func (c *Calendar) Check(ctx context.Context, date string) error {
	return c.check(ctx, c.repo, date)
}

// check reads blackouts through repo so it can run inside a transaction.
func (c *Calendar) check(ctx context.Context, repo Repository, date string) error {
	day, err := ParseDate(date)
	if err != nil {
		return err
	}
	if date < c.Today() {
		return fmt.Errorf("%w: %s", ErrDateInPast, date)
	}
	if !c.open[day.Weekday()] {
		return fmt.Errorf("%w: %s is a %s", ErrDayClosed, date, day.Weekday())
	}
	periods, err := repo.BlackoutsBetween(ctx, date, date)
	if err != nil {
		return err
	}
	if p := firstCovering(periods, date); p != nil {
		return &BlackoutError{Date: date, PeriodID: p.ID, Reason: p.Reason}
	}
	return nil
}

// BookableDays lists the open days of month (YYYY-MM).
func (c *Calendar) BookableDays(ctx context.Context, month string) ([]string, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, invalidInput("malformed month %q", month)
	}
	last := first.AddDate(0, 1, -1)
	periods, err := c.repo.BlackoutsBetween(ctx, first.Format(DateLayout), last.Format(DateLayout))
	if err != nil {
		return nil, err
	}

	today := c.Today()
	days := make([]string, 0, 31)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		date := d.Format(DateLayout)
		if date < today || !c.open[d.Weekday()] || firstCovering(periods, date) != nil {
			continue
		}
		days = append(days, date)
	}
	return days, nil
}

func firstCovering(periods []*entity.BlackoutPeriod, date string) *entity.BlackoutPeriod {
	for _, p := range periods {
		if p.Covers(date) {
			return p
		}
	}
	return nil
}
