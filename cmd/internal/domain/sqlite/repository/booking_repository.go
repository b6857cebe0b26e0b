package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/domain/entity"
)

// DefaultBookingRepository is the gorm implementation of booking.Repository.
type DefaultBookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *DefaultBookingRepository {
	return &DefaultBookingRepository{db: db}
}

func (b *DefaultBookingRepository) Transaction(ctx context.Context, fn func(tx booking.Repository) error) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DefaultBookingRepository{db: tx})
	})
	return translate(err)
}

func (b *DefaultBookingRepository) FindUser(ctx context.Context, id int) (*entity.User, error) {
	var user entity.User
	err := b.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (b *DefaultBookingRepository) SwapCredits(ctx context.Context, prev *entity.User, next booking.Credits, now int64) (bool, error) {
	res := b.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", prev.ID).
		Where("approval_state = ?", prev.ApprovalState).
		Where("sessions_granted = ?", prev.SessionsGranted).
		Where("remaining_credits = ?", prev.RemainingCredits).
		Where("consumed_credits = ?", prev.ConsumedCredits).
		Updates(map[string]any{
			"sessions_granted":  next.Granted,
			"remaining_credits": next.Remaining,
			"consumed_credits":  next.Consumed,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (b *DefaultBookingRepository) SwapApproval(ctx context.Context, userID int, from, to entity.ApprovalState, now int64) (bool, error) {
	res := b.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ? AND approval_state = ?", userID, from).
		Updates(map[string]any{"approval_state": to, "updated_at": now})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (b *DefaultBookingRepository) FindBooking(ctx context.Context, id int) (*entity.Booking, error) {
	var bk entity.Booking
	err := b.db.WithContext(ctx).First(&bk, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &bk, nil
}

func (b *DefaultBookingRepository) FindBookingsByUser(ctx context.Context, userID int) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	err := b.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date asc, id asc").
		Find(&bookings).Error
	return bookings, translate(err)
}

func (b *DefaultBookingRepository) FindAllBookings(ctx context.Context) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	err := b.db.WithContext(ctx).Order("date asc, id asc").Find(&bookings).Error
	return bookings, translate(err)
}

func (b *DefaultBookingRepository) FindSeries(ctx context.Context, groupID string) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	err := b.db.WithContext(ctx).
		Where("recurring_group_id = ?", groupID).
		Order("series_index asc").
		Find(&bookings).Error
	return bookings, translate(err)
}

func (b *DefaultBookingRepository) ConfirmedSlots(ctx context.Context, date string) ([]string, error) {
	var slots []string
	err := b.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("date = ? AND status = ?", date, entity.BookingConfirmed).
		Pluck("slot", &slots).Error
	return slots, translate(err)
}

func (b *DefaultBookingRepository) CountConfirmed(ctx context.Context, userID int) (int, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("user_id = ? AND status = ?", userID, entity.BookingConfirmed).
		Count(&count).Error
	return int(count), translate(err)
}

func (b *DefaultBookingRepository) InsertBookings(ctx context.Context, bookings []*entity.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	err := b.db.WithContext(ctx).Omit(clause.Associations).Create(&bookings).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s at %s", booking.ErrSlotUnavailable, bookings[0].Date, bookings[0].Slot)
	}
	return translate(err)
}

func (b *DefaultBookingRepository) CancelBooking(ctx context.Context, id int, now int64) (bool, error) {
	res := b.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("id = ? AND status = ?", id, entity.BookingConfirmed).
		Updates(map[string]any{
			"status":     entity.BookingCancelled,
			"active_key": nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (b *DefaultBookingRepository) BlackoutsBetween(ctx context.Context, from, to string) ([]*entity.BlackoutPeriod, error) {
	var periods []*entity.BlackoutPeriod
	err := b.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", to, from).
		Order("start_date asc").
		Find(&periods).Error
	return periods, translate(err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

// translate maps lock contention to booking.ErrConflict so callers retry it.
// Errors that already carry a booking sentinel pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "Lock wait timeout") {
		return fmt.Errorf("%w: %v", booking.ErrConflict, err)
	}
	return err
}
