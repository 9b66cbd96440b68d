package models

import (
	"strings"
	"time"
)

// Checkin is one daily checkin record. At most one row exists per (user, day);
// resubmitting the same day overwrites mood/note/images via upsert, the day value
// itself never changes once created. Days are stored as YYYY-MM-DD strings so
// ordering and set membership work without timezone arithmetic.
type Checkin struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_checkins_user_day" json:"user_id"`
	CheckinDate string    `gorm:"size:10;not null;uniqueIndex:idx_checkins_user_day" json:"checkin_date"`
	Mood        string    `gorm:"size:32" json:"mood"`
	Note        string    `gorm:"type:text" json:"note"`
	ImageURLs   string    `gorm:"type:text" json:"-"` // comma separated public URLs
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ImageURLList splits the stored comma separated URLs, dropping empties.
func (c *Checkin) ImageURLList() []string {
	if strings.TrimSpace(c.ImageURLs) == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(c.ImageURLs, ",") {
		if p := strings.TrimSpace(part); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// JoinImageURLs builds the stored representation from a list of URLs.
func JoinImageURLs(urls []string) string {
	var valid []string
	for _, u := range urls {
		if t := strings.TrimSpace(u); t != "" {
			valid = append(valid, t)
		}
	}
	return strings.Join(valid, ",")
}
