package entity

// BookingStatus is the lifecycle state of a single booking. A booking that
// fails validation is never persisted, so there is no pending status.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Consumes reports whether a booking in this status holds one credit.
func (s BookingStatus) Consumes() bool {
	return s == BookingConfirmed
}

type Booking struct {
	ID     int           `gorm:"primaryKey"`
	UserID int           `gorm:"not null;index"` // References: users(id)
	Date   string        `gorm:"size:10;not null;index"`
	Slot   string        `gorm:"size:16;not null"`
	Status BookingStatus `gorm:"size:16;not null;index"`

	// ActiveKey is "date|slot" while the booking is confirmed and NULL once
	// cancelled. Its unique index is what keeps a slot exclusive.
	ActiveKey *string `gorm:"size:32;uniqueIndex"`

	RecurringGroupID *string `gorm:"size:36;index"`
	SeriesIndex      *int
	SeriesLength     *int

	CreatedAt int64 `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt int64 `gorm:"not null;autoUpdateTime:milli"`

	// Relations
	Owner User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// SlotKey builds the exclusivity key for a confirmed booking.
func SlotKey(date, slot string) string {
	return date + "|" + slot
}

// InSeries reports whether the booking was created as part of a recurring series.
func (b *Booking) InSeries() bool {
	return b.RecurringGroupID != nil
}
