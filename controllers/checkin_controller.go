package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/services"
	"github.com/quitking/quitking/utils"
)

// CheckinController handles the daily checkin write path and aggregate reads.
type CheckinController struct {
	db *gorm.DB
}

// NewCheckinController creates a new controller instance.
func NewCheckinController(db *gorm.DB) *CheckinController {
	return &CheckinController{db: db}
}

type checkinRequest struct {
	Date      string   `json:"date"`
	Mood      string   `json:"mood"`
	Note      string   `json:"note"`
	ImageURLs []string `json:"image_urls"`
}

type checkinItem struct {
	CheckinDate string    `json:"checkin_date"`
	Mood        string    `json:"mood"`
	Note        string    `json:"note"`
	ImageURLs   []string  `json:"image_urls"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCheckin upserts a checkin for the target day and recomputes the user's
// aggregate from a fresh count inside the same transaction. The target day is
// restricted to the fixed 3-day backfill window ending today; resubmitting an
// existing day only overwrites mood/note/images.
func (c *CheckinController) CreateCheckin(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req checkinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request body")
		return
	}

	today := services.FormatDay(time.Now())
	day := req.Date
	if day == "" {
		day = today
	}
	if err := services.ValidateBackfillDay(day, today); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	var totalDays int64
	err := c.db.Transaction(func(tx *gorm.DB) error {
		record := models.Checkin{
			UserID:      userID,
			CheckinDate: day,
			Mood:        req.Mood,
			Note:        req.Note,
			ImageURLs:   models.JoinImageURLs(req.ImageURLs),
		}
		// Concurrent submissions for the same (user, day) serialize on the unique
		// index; last writer wins on mood/note/images.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "checkin_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"mood", "note", "image_urls", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return err
		}

		// The aggregate is recomputed from the log, never incremented.
		if err := tx.Model(&models.Checkin{}).Where("user_id = ?", userID).Count(&totalDays).Error; err != nil {
			return err
		}
		var latest string
		if err := tx.Model(&models.Checkin{}).Where("user_id = ?", userID).
			Select("MAX(checkin_date)").Scan(&latest).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"total_checkin_days": totalDays,
			"last_checkin_date":  latest,
		}).Error
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", services.ErrStoreUnavailable, err)
		utils.Sugar.Errorf("checkin write failed for user %d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to record checkin, retry later")
		return
	}

	utils.CacheDelete(utils.CheckinStatsCacheKey(userID))

	utils.Success(ctx, gin.H{
		"checkin_date":       day,
		"total_checkin_days": totalDays,
	})
}

// ListCheckins returns the user's most recent checkins, newest first.
func (c *CheckinController) ListCheckins(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	days := 7
	if v := ctx.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	if days < 1 {
		days = 1
	}
	if days > 30 {
		days = 30
	}

	var records []models.Checkin
	if err := c.db.Where("user_id = ?", userID).
		Order("checkin_date DESC").Limit(days).Find(&records).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load checkins")
		return
	}

	items := make([]checkinItem, 0, len(records))
	for i := range records {
		items = append(items, checkinItem{
			CheckinDate: records[i].CheckinDate,
			Mood:        records[i].Mood,
			Note:        records[i].Note,
			ImageURLs:   records[i].ImageURLList(),
			CreatedAt:   records[i].CreatedAt,
		})
	}
	utils.Success(ctx, items)
}

// Stats returns the user's checkin aggregate, consumed by the client rank display
// and the reply permission gate.
func (c *CheckinController) Stats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	cacheKey := utils.CheckinStatsCacheKey(userID)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var user models.User
	if err := c.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load user")
		return
	}

	payload := gin.H{
		"total_checkin_days": user.TotalCheckinDays,
		"failure_count":      user.FailureCount,
		"last_checkin_date":  user.LastCheckinDate,
		"last_calc_date":     user.LastCalcDate,
	}
	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Minute)
	utils.Success(ctx, payload)
}
