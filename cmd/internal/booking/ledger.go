package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/domain/entity"
)

// Ledger owns every user's session credits. Each write re-reads the user row
// through the repository it is given and commits with a compare-and-swap, so
// callers run it inside the same transaction as the booking change it pays
// for.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

func NewLedger(repo Repository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, now: now}
}

// LedgerReport is the outcome of Verify.
type LedgerReport struct {
	UserID            int
	ApprovalState     entity.ApprovalState
	Credits           Credits
	ConfirmedBookings int
}

// Balance returns the current credit fields of a user.
func (l *Ledger) Balance(ctx context.Context, userID int) (Credits, error) {
	u, err := l.load(ctx, l.repo, userID)
	if err != nil {
		return Credits{}, err
	}
	return CreditsOf(u), nil
}

// CheckCredit is the advisory check made before a commit; Debit repeats it.
func (l *Ledger) CheckCredit(ctx context.Context, userID, amount int) error {
	u, err := l.load(ctx, l.repo, userID)
	if err != nil {
		return err
	}
	return checkCredit(u, amount)
}

func checkCredit(u *entity.User, amount int) error {
	if u.RemainingCredits < amount {
		return &InsufficientCreditsError{UserID: u.ID, Available: u.RemainingCredits, Requested: amount}
	}
	return nil
}

// Debit consumes amount credits.
func (l *Ledger) Debit(ctx context.Context, tx Repository, userID, amount int) error {
	if amount <= 0 {
		return invalidInput("debit amount must be positive, got %d", amount)
	}
	u, err := l.load(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !u.IsApproved() {
		return fmt.Errorf("%w: user %d is %s", ErrNotApproved, u.ID, u.ApprovalState)
	}
	if err := checkCredit(u, amount); err != nil {
		return err
	}
	next := CreditsOf(u)
	next.Remaining -= amount
	next.Consumed += amount
	return l.swap(ctx, tx, u, next)
}

// Refund returns amount credits. Remaining never exceeds the grant, and an
// account that is not approved only has its consumption reduced.
func (l *Ledger) Refund(ctx context.Context, tx Repository, userID, amount int) error {
	if amount <= 0 {
		return invalidInput("refund amount must be positive, got %d", amount)
	}
	u, err := l.load(ctx, tx, userID)
	if err != nil {
		return err
	}
	if u.ConsumedCredits < amount {
		return l.corrupted(u, fmt.Sprintf("refund of %d exceeds consumed credits", amount))
	}
	next := CreditsOf(u)
	next.Consumed -= amount
	next.Remaining = usable(u.ApprovalState, next.Granted, next.Consumed)
	return l.swap(ctx, tx, u, next)
}

// SetGrant is the administrative grant change.
func (l *Ledger) SetGrant(ctx context.Context, userID, grant int) (*entity.User, error) {
	var updated *entity.User
	err := l.repo.Transaction(ctx, func(tx Repository) error {
		u, err := l.find(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := l.setGrant(ctx, tx, u, grant); err != nil {
			return err
		}
		updated, err = l.find(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// setGrant recomputes remaining from the confirmed booking count. This is the
// one place a balance is clamped. It does not validate the current row, so it
// also serves to rebuild one.
func (l *Ledger) setGrant(ctx context.Context, tx Repository, u *entity.User, grant int) error {
	if grant < 0 {
		return invalidInput("sessions granted must not be negative, got %d", grant)
	}
	consumed, err := tx.CountConfirmed(ctx, u.ID)
	if err != nil {
		return err
	}
	next := Credits{Granted: grant, Consumed: consumed, Remaining: usable(u.ApprovalState, grant, consumed)}
	return l.swap(ctx, tx, u, next)
}

// Verify cross-checks a user's credit row against its confirmed bookings.
func (l *Ledger) Verify(ctx context.Context, userID int) (*LedgerReport, error) {
	u, err := l.find(ctx, l.repo, userID)
	if err != nil {
		return nil, err
	}
	confirmed, err := l.repo.CountConfirmed(ctx, userID)
	if err != nil {
		return nil, err
	}
	report := &LedgerReport{
		UserID:            u.ID,
		ApprovalState:     u.ApprovalState,
		Credits:           CreditsOf(u),
		ConfirmedBookings: confirmed,
	}
	if err := l.validate(u); err != nil {
		return report, err
	}
	if confirmed != u.ConsumedCredits {
		return report, l.corrupted(u, fmt.Sprintf("%d confirmed bookings but %d consumed credits", confirmed, u.ConsumedCredits))
	}
	return report, nil
}

func (l *Ledger) find(ctx context.Context, repo Repository, userID int) (*entity.User, error) {
	u, err := repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return u, nil
}

// load is find plus the invariant check every debit and refund starts with.
func (l *Ledger) load(ctx context.Context, repo Repository, userID int) (*entity.User, error) {
	u, err := l.find(ctx, repo, userID)
	if err != nil {
		return nil, err
	}
	if err := l.validate(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (l *Ledger) validate(u *entity.User) error {
	switch {
	case u.RemainingCredits < 0:
		return l.corrupted(u, "negative remaining credits")
	case u.ConsumedCredits < 0:
		return l.corrupted(u, "negative consumed credits")
	case u.RemainingCredits > u.SessionsGranted:
		return l.corrupted(u, "remaining credits exceed sessions granted")
	case u.RemainingCredits != usable(u.ApprovalState, u.SessionsGranted, u.ConsumedCredits):
		return l.corrupted(u, "remaining credits disagree with grant and consumption")
	}
	return nil
}

func (l *Ledger) corrupted(u *entity.User, detail string) error {
	err := &LedgerCorruptionError{UserID: u.ID, Credits: CreditsOf(u), Detail: detail}
	log.Errorf("ledger invariant violated: %v", err)
	return err
}

func (l *Ledger) swap(ctx context.Context, tx Repository, prev *entity.User, next Credits) error {
	ok, err := tx.SwapCredits(ctx, prev, next, l.now().UnixMilli())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: credits of user %d changed concurrently", ErrConflict, prev.ID)
	}
	prev.SessionsGranted, prev.RemainingCredits, prev.ConsumedCredits = next.Granted, next.Remaining, next.Consumed
	return nil
}

// usable is the balance an account may spend: nothing unless approved, and
// never below zero when the grant was cut under current consumption.
func usable(state entity.ApprovalState, granted, consumed int) int {
	if state != entity.ApprovalApproved {
		return 0
	}
	return max(0, granted-consumed)
}
