package models

import "time"

// Reply permission levels gated by the user's checkin rank.
const (
	ReplyPermissionAll     = "all"
	ReplyPermissionGold    = "gold1+"   // total_checkin_days >= 21
	ReplyPermissionDiamond = "diamond+" // total_checkin_days >= 45
)

// Post represents a community post created by a user.
type Post struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	ReplyPermission string    `gorm:"size:16;default:'all'" json:"reply_permission"`
	Attachments     string    `gorm:"type:text" json:"attachments"` // JSON array of attachment URLs
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	User            User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments        []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments"`
}
