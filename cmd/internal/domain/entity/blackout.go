package entity

// BlackoutPeriod closes every day from StartDate to EndDate, both inclusive.
// Periods may overlap; membership in any of them blocks a date.
type BlackoutPeriod struct {
	ID        int    `gorm:"primaryKey"`
	StartDate string `gorm:"size:10;not null;index"`
	EndDate   string `gorm:"size:10;not null;index"`
	Reason    string
	CreatedAt int64 `gorm:"not null;autoCreateTime:milli"`
}

// Covers reports whether date (YYYY-MM-DD) falls inside the period. ISO dates
// compare correctly as strings.
func (p *BlackoutPeriod) Covers(date string) bool {
	return p.StartDate <= date && date <= p.EndDate
}
