package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/services"
	"github.com/quitking/quitking/utils"
)

// StatsController serves public community statistics for the home page.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new controller instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

type leaderboardEntry struct {
	Username         string `json:"username"`
	Nickname         string `json:"nickname"`
	TotalCheckinDays int    `json:"total_checkin_days"`
}

// GetStats returns community counters and the streak leaderboard, cached briefly
// since it backs the landing page.
func (s *StatsController) GetStats(ctx *gin.Context) {
	const cacheKey = "cache:stats:community"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var userCount int64
	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load stats")
		return
	}

	today := services.FormatDay(time.Now())
	var checkinsToday int64
	if err := s.db.Model(&models.Checkin{}).Where("checkin_date = ?", today).Count(&checkinsToday).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load stats")
		return
	}

	var top []leaderboardEntry
	if err := s.db.Model(&models.User{}).
		Select("username", "nickname", "total_checkin_days").
		Order("total_checkin_days DESC").Limit(10).Scan(&top).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to load leaderboard")
		return
	}

	payload := gin.H{
		"user_count":     userCount,
		"checkins_today": checkinsToday,
		"leaderboard":    top,
	}
	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 5*time.Minute)
	utils.Success(ctx, payload)
}
