package testfixtures

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/config"
	"selfbooking/cmd/internal/domain/entity"
	"selfbooking/cmd/internal/domain/sqlite"
	"selfbooking/cmd/internal/domain/sqlite/repository"
)

// Harness is a migrated SQLite database in a temporary directory with the
// repositories built on top of it.
type Harness struct {
	DB        *gorm.DB
	Bookings  *repository.DefaultBookingRepository
	Users     *repository.DefaultUserRepository
	Blackouts *repository.DefaultBlackoutRepository
}

func NewHarness(tb testing.TB) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "selfbooking.db")
	db, err := sqlite.Init(config.Database{Driver: "sqlite", DSN: path, MaxOpenConns: 1})
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &Harness{
		DB:        db,
		Bookings:  repository.NewBookingRepository(db),
		Users:     repository.NewUserRepository(db),
		Blackouts: repository.NewBlackoutRepository(db),
	}
}

var userCounter uint64

// UserOption adjusts a user before it is stored.
type UserOption func(*entity.User)

// Approved makes the user approved with grant sessions and a full balance.
func Approved(grant int) UserOption {
	return func(u *entity.User) {
		u.ApprovalState = entity.ApprovalApproved
		u.SessionsGranted = grant
		u.RemainingCredits = grant
	}
}

// Pending leaves the user pending with grant sessions pre-allocated.
func Pending(grant int) UserOption {
	return func(u *entity.User) {
		u.ApprovalState = entity.ApprovalPending
		u.SessionsGranted = grant
		u.RemainingCredits = 0
	}
}

func Admin() UserOption {
	return func(u *entity.User) { u.IsAdmin = true }
}

// SeedUser stores a user with a unique subject and email.
func (h *Harness) SeedUser(tb testing.TB, opts ...UserOption) *entity.User {
	tb.Helper()

	n := atomic.AddUint64(&userCounter, 1)
	now := ReferenceTime().UnixMilli()
	u := &entity.User{
		SubUUID:       fmt.Sprintf("sub-%04d", n),
		Username:      fmt.Sprintf("user%04d", n),
		Email:         fmt.Sprintf("user%04d@example.com", n),
		EmailVerified: true,
		ApprovalState: entity.ApprovalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := h.DB.Create(u).Error; err != nil {
		tb.Fatalf("failed to seed user: %v", err)
	}
	return u
}

// SeedBlackout stores a blackout period.
func (h *Harness) SeedBlackout(tb testing.TB, start, end, reason string) *entity.BlackoutPeriod {
	tb.Helper()

	p := &entity.BlackoutPeriod{StartDate: start, EndDate: end, Reason: reason, CreatedAt: ReferenceTime().UnixMilli()}
	if err := h.Blackouts.Create(p); err != nil {
		tb.Fatalf("failed to seed blackout: %v", err)
	}
	return p
}

// User reloads a user straight from the database.
func (h *Harness) User(tb testing.TB, id int) *entity.User {
	tb.Helper()

	u, err := h.Bookings.FindUser(context.Background(), id)
	if err != nil || u == nil {
		tb.Fatalf("failed to load user %d: %v", id, err)
	}
	return u
}

// Recorder is a Notifier that keeps every event. Set Fail to make it error.
type Recorder struct {
	mu     sync.Mutex
	events []booking.Event
	Fail   error
}

func (r *Recorder) Notify(_ context.Context, event booking.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Fail
}

func (r *Recorder) Events() []booking.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]booking.Event(nil), r.events...)
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []booking.EventType {
	events := r.Events()
	types := make([]booking.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
