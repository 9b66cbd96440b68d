package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an app user. Passwords are stored as bcrypt hashes only.
//
// The checkin aggregate lives on the user row: TotalCheckinDays equals the number
// of checkin rows until a penalty has ever been applied, after which it is the
// penalized score and is authoritative. LastCalcDate is the reconciliation cursor
// advanced by the daily penalty sweep.
type User struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Username     string  `gorm:"size:64;not null" json:"username"`
	Email        string  `gorm:"size:255" json:"email"`
	PasswordHash string  `gorm:"size:255" json:"-"`
	Provider     string  `gorm:"size:32" json:"provider"`
	ProviderID   string  `gorm:"size:255" json:"provider_id"`
	Nickname     string  `gorm:"size:64" json:"nickname"`
	AvatarURL    string  `gorm:"size:512" json:"avatar_url"`
	QuitDate     *string `gorm:"size:10" json:"quit_date"`
	PricePerCig  float64 `gorm:"default:0" json:"price_per_cig"`
	CigsPerDay   int     `gorm:"default:0" json:"cigs_per_day"`

	// Checkin aggregate, dates as YYYY-MM-DD.
	TotalCheckinDays int     `gorm:"default:0" json:"total_checkin_days"`
	FailureCount     int     `gorm:"default:0" json:"failure_count"`
	LastCheckinDate  *string `gorm:"size:10" json:"last_checkin_date"`
	LastCalcDate     *string `gorm:"size:10" json:"last_calc_date"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Comments  []Comment      `json:"-"`
	Posts     []Post         `json:"-"`
	Checkins  []Checkin      `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
