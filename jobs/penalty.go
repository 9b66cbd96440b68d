package jobs

import (
	"time"

	"gorm.io/gorm"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/services"
	"github.com/quitking/quitking/utils"
)

// SweepStats summarizes one penalty sweep run.
type SweepStats struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Penalized int `json:"penalized"`
	Failed    int `json:"failed"`
}

// RunPenaltySweep reconciles every user whose cursor has not reached yesterday.
// Each user is handled in its own transaction; a failing user is logged and left
// for the next run (the cursor stays put), so partial completion is safe. The
// checkin days are re-read inside the transaction so a checkin for yesterday
// racing the sweep lands on one side or the other without double-penalizing.
func RunPenaltySweep(db *gorm.DB, now time.Time) SweepStats {
	yesterday := services.FormatDay(now.AddDate(0, 0, -1))

	var stats SweepStats
	var userIDs []uint
	err := db.Model(&models.User{}).
		Where("last_calc_date IS NULL OR last_calc_date < ?", yesterday).
		Pluck("id", &userIDs).Error
	if err != nil {
		logf("penalty sweep: selecting users failed: %v", err)
		return stats
	}
	stats.Scanned = len(userIDs)

	for _, id := range userIDs {
		penalized, err := reconcileUser(db, id, yesterday)
		if err != nil {
			stats.Failed++
			logf("penalty sweep: user %d failed: %v", id, err)
			continue
		}
		stats.Processed++
		if penalized {
			stats.Penalized++
		}
	}

	logf("penalty sweep for %s done: scanned=%d processed=%d penalized=%d failed=%d",
		yesterday, stats.Scanned, stats.Processed, stats.Penalized, stats.Failed)
	return stats
}

// reconcileUser advances one user's cursor to yesterday, applying the tiered
// penalty when a trailing gap is found.
func reconcileUser(db *gorm.DB, userID uint, yesterday string) (penalized bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		// Idempotency guard against re-entrant triggers: a cursor already at (or
		// past) yesterday means this user is done for this run.
		if user.LastCalcDate != nil && *user.LastCalcDate >= yesterday {
			return nil
		}

		var days []string
		if err := tx.Model(&models.Checkin{}).
			Where("user_id = ?", userID).
			Pluck("checkin_date", &days).Error; err != nil {
			return err
		}
		daySet := make(map[string]struct{}, len(days))
		for _, d := range days {
			daySet[d] = struct{}{}
		}

		last := ""
		if user.LastCheckinDate != nil {
			last = *user.LastCheckinDate
		}

		missed := services.MissedDays(daySet, last, yesterday)
		if missed == 0 {
			return tx.Model(&models.User{}).Where("id = ?", userID).
				Update("last_calc_date", yesterday).Error
		}

		// The penalty is applied to the fresh row count, not the possibly stale
		// aggregate.
		res := services.ApplyPenalty(len(days), missed)
		penalized = true
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"total_checkin_days": res.NewTotalDays,
			"failure_count":      gorm.Expr("failure_count + ?", res.FailureIncrement),
			"last_calc_date":     yesterday,
		}).Error
	})
	if err != nil {
		return false, err
	}
	if penalized {
		utils.CacheDelete(utils.CheckinStatsCacheKey(userID))
	}
	return penalized, nil
}

// StartDailyPenaltyJob launches a goroutine that runs the sweep once per day at
// the configured local hour.
func StartDailyPenaltyJob(db *gorm.DB) {
	cfg := config.Get()
	loc := time.Local
	if cfg.PenaltyTimezone != "" {
		if l, err := time.LoadLocation(cfg.PenaltyTimezone); err == nil {
			loc = l
		} else {
			logf("penalty job: invalid timezone %q, using local: %v", cfg.PenaltyTimezone, err)
		}
	}

	go func() {
		for {
			now := time.Now().In(loc)
			next := time.Date(now.Year(), now.Month(), now.Day(), cfg.PenaltyHour, 0, 0, 0, loc)
			if !next.After(now) {
				next = next.AddDate(0, 0, 1)
			}
			time.Sleep(time.Until(next))
			RunPenaltySweep(db, time.Now().In(loc))
		}
	}()
	logf("penalty job scheduled daily at %02d:00 (%s)", cfg.PenaltyHour, loc)
}

func logf(format string, args ...interface{}) {
	if utils.Sugar != nil {
		utils.Sugar.Infof(format, args...)
	}
}
