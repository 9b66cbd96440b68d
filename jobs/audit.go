package jobs

import (
	"gorm.io/gorm"

	"github.com/quitking/quitking/models"
)

// DriftRecord flags a user whose aggregate cannot be explained by the checkin log.
// The aggregate may legitimately be below the row count after penalties, but it can
// never exceed it; such users need operator review and are never auto-corrected.
type DriftRecord struct {
	UserID           uint `json:"user_id"`
	TotalCheckinDays int  `json:"total_checkin_days"`
	CheckinCount     int  `json:"checkin_count"`
}

// AuditAggregateDrift compares every user's cached aggregate against the checkin
// log and returns the users whose total exceeds their row count.
func AuditAggregateDrift(db *gorm.DB) ([]DriftRecord, error) {
	var users []models.User
	if err := db.Select("id", "total_checkin_days").Find(&users).Error; err != nil {
		return nil, err
	}

	var drifted []DriftRecord
	for _, u := range users {
		var count int64
		if err := db.Model(&models.Checkin{}).Where("user_id = ?", u.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if u.TotalCheckinDays > int(count) {
			drifted = append(drifted, DriftRecord{
				UserID:           u.ID,
				TotalCheckinDays: u.TotalCheckinDays,
				CheckinCount:     int(count),
			})
		}
	}
	return drifted, nil
}
