package entity

// ApprovalState is the account-level switch that gates every booking operation.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// Valid reports whether s is one of the known approval states.
func (s ApprovalState) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

type User struct {
	ID            int    `gorm:"primaryKey"`
	SubUUID       string `gorm:"uniqueIndex;not null"` // Identity provider subject
	Username      string `gorm:"not null"`
	Email         string `gorm:"uniqueIndex;not null"`
	EmailVerified bool   `gorm:"not null"`
	IsAdmin       bool   `gorm:"not null"`
	Label         string

	ApprovalState    ApprovalState `gorm:"size:16;not null;default:pending"`
	SessionsGranted  int           `gorm:"not null;default:0"`
	RemainingCredits int           `gorm:"not null;default:0"`
	ConsumedCredits  int           `gorm:"not null;default:0"`

	CreatedAt int64 `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt int64 `gorm:"not null;autoUpdateTime:milli"`
}

// IsApproved reports whether the account may book.
func (u *User) IsApproved() bool {
	return u.ApprovalState == ApprovalApproved
}
