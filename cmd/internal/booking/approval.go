package booking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"selfbooking/cmd/internal/domain/entity"
)

// approvalTransitions is the complete set of legal approval moves. A rejected
// account only comes back through an explicit reopen to pending.
var approvalTransitions = map[entity.ApprovalState][]entity.ApprovalState{
	entity.ApprovalPending:  {entity.ApprovalApproved, entity.ApprovalRejected},
	entity.ApprovalApproved: {entity.ApprovalPending},
	entity.ApprovalRejected: {entity.ApprovalPending},
}

// CanTransition reports whether from -> to is in the approval table.
func CanTransition(from, to entity.ApprovalState) bool {
	return slices.Contains(approvalTransitions[from], to)
}

// Gate is the account-level switch in front of every booking operation.
type Gate struct {
	repo         Repository
	ledger       *Ledger
	notifier     Notifier
	defaultGrant int
	now          func() time.Time
}

func NewGate(repo Repository, ledger *Ledger, notifier Notifier, defaultGrant int, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{repo: repo, ledger: ledger, notifier: notifier, defaultGrant: defaultGrant, now: now}
}

// Require loads the user and fails unless it is approved.
func (g *Gate) Require(ctx context.Context, userID int) (*entity.User, error) {
	return g.require(ctx, g.repo, userID)
}

func (g *Gate) require(ctx context.Context, repo Repository, userID int) (*entity.User, error) {
	u, err := repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if !u.IsApproved() {
		return nil, fmt.Errorf("%w: user %d is %s", ErrNotApproved, u.ID, u.ApprovalState)
	}
	return u, nil
}

// Approve opens the account and grants sessions. A nil grant keeps the
// sessions already allocated to the user, falling back to the configured
// default when none were.
func (g *Gate) Approve(ctx context.Context, userID int, grant *int) (*entity.User, error) {
	return g.transition(ctx, userID, "", entity.ApprovalApproved, grant)
}

func (g *Gate) Reject(ctx context.Context, userID int) (*entity.User, error) {
	return g.transition(ctx, userID, "", entity.ApprovalRejected, nil)
}

// Revoke moves an approved account back to pending. Confirmed bookings stay
// honoured; only the remaining balance is withdrawn.
// Any other current state is an invalid transition.
func (g *Gate) Revoke(ctx context.Context, userID int) (*entity.User, error) {
	return g.transition(ctx, userID, entity.ApprovalApproved, entity.ApprovalPending, nil)
}

// Reopen moves a rejected account back to pending. Any other current state
// is an invalid transition.
func (g *Gate) Reopen(ctx context.Context, userID int) (*entity.User, error) {
	return g.transition(ctx, userID, entity.ApprovalRejected, entity.ApprovalPending, nil)
}

// Transition applies one move from the approval table, whatever the current
// state, and rebalances the ledger in the same transaction.
func (g *Gate) Transition(ctx context.Context, userID int, to entity.ApprovalState, grant *int) (*entity.User, error) {
	return g.transition(ctx, userID, "", to, grant)
}

// transition requires the account to be in from when from is set.
func (g *Gate) transition(ctx context.Context, userID int, from, to entity.ApprovalState, grant *int) (*entity.User, error) {
	if !to.Valid() {
		return nil, invalidInput("unknown approval state %q", to)
	}
	if grant != nil && *grant < 0 {
		return nil, invalidInput("sessions granted must not be negative, got %d", *grant)
	}

	var updated *entity.User
	err := g.repo.Transaction(ctx, func(tx Repository) error {
		u, err := g.ledger.find(ctx, tx, userID)
		if err != nil {
			return err
		}
		current := u.ApprovalState
		if from != "" && current != from {
			return fmt.Errorf("%w: user %d is %s, not %s", ErrInvalidTransition, u.ID, current, from)
		}
		if !CanTransition(current, to) {
			return fmt.Errorf("%w: approval %s -> %s", ErrInvalidTransition, current, to)
		}

		ok, err := tx.SwapApproval(ctx, u.ID, current, to, g.now().UnixMilli())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: approval of user %d changed concurrently", ErrConflict, u.ID)
		}
		u.ApprovalState = to

		sessions := u.SessionsGranted
		if to == entity.ApprovalApproved {
			switch {
			case grant != nil:
				sessions = *grant
			case sessions == 0:
				sessions = g.defaultGrant
			}
		}
		if err := g.ledger.setGrant(ctx, tx, u, sessions); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	emit(ctx, g.notifier, Event{
		Type:          EventApprovalChanged,
		UserID:        updated.ID,
		ApprovalState: updated.ApprovalState,
		Remaining:     updated.RemainingCredits,
		OccurredAt:    g.now().UnixMilli(),
	})
	return updated, nil
}
