package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/middleware"
	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/services"
	"github.com/quitking/quitking/utils"
)

func newTestEnv(t *testing.T) (*gorm.DB, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.SetForTest(config.AppConfig{JWTSecret: "test-secret", LogLevel: "error"})
	require.NoError(t, utils.InitLogger(config.Get()))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Checkin{}, &models.Post{}, &models.Comment{}))

	user := &models.User{Username: "quitter", Provider: "local"}
	require.NoError(t, db.Create(user).Error)
	return db, user
}

// asUser injects an authenticated identity, bypassing JWT parsing.
func asUser(id uint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(middleware.ContextUserIDKey, id)
		ctx.Set(middleware.ContextUsernameKey, "quitter")
		ctx.Next()
	}
}

func checkinRouter(db *gorm.DB, userID uint) *gin.Engine {
	c := NewCheckinController(db)
	r := gin.New()
	r.Use(asUser(userID))
	r.POST("/checkins", c.CreateCheckin)
	r.GET("/checkins", c.ListCheckins)
	r.GET("/checkins/stats", c.Stats)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, utils.JSONResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestCreateCheckinDefaultsToToday(t *testing.T) {
	db, user := newTestEnv(t)
	r := checkinRouter(db, user.ID)

	w, resp := doJSON(t, r, http.MethodPost, "/checkins", gin.H{"mood": "good"})
	require.Equal(t, http.StatusOK, w.Code)

	data := resp.Data.(map[string]interface{})
	today := services.FormatDay(time.Now())
	assert.Equal(t, today, data["checkin_date"])
	assert.EqualValues(t, 1, data["total_checkin_days"])

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, 1, got.TotalCheckinDays)
	require.NotNil(t, got.LastCheckinDate)
	assert.Equal(t, today, *got.LastCheckinDate)
}

func TestCreateCheckinUpsertsSameDay(t *testing.T) {
	db, user := newTestEnv(t)
	r := checkinRouter(db, user.ID)

	w, _ := doJSON(t, r, http.MethodPost, "/checkins", gin.H{"mood": "rough", "note": "craving"})
	require.Equal(t, http.StatusOK, w.Code)
	w, resp := doJSON(t, r, http.MethodPost, "/checkins", gin.H{"mood": "better"})
	require.Equal(t, http.StatusOK, w.Code)

	// The resubmission overwrote the row instead of creating a duplicate.
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["total_checkin_days"])

	var rows []models.Checkin
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "better", rows[0].Mood)
}

func TestCreateCheckinBackfillWindow(t *testing.T) {
	db, user := newTestEnv(t)
	r := checkinRouter(db, user.ID)

	now := time.Now()
	twoDaysAgo := services.FormatDay(now.AddDate(0, 0, -2))
	fourDaysAgo := services.FormatDay(now.AddDate(0, 0, -4))

	w, resp := doJSON(t, r, http.MethodPost, "/checkins", gin.H{"date": twoDaysAgo})
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, r, http.MethodPost, "/checkins", gin.H{"date": fourDaysAgo})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40022, resp.Code)

	var count int64
	require.NoError(t, db.Model(&models.Checkin{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateCheckinRecountsAcrossBackfill(t *testing.T) {
	db, user := newTestEnv(t)
	r := checkinRouter(db, user.ID)

	now := time.Now()
	today := services.FormatDay(now)
	yesterday := services.FormatDay(now.AddDate(0, 0, -1))
	dayBefore := services.FormatDay(now.AddDate(0, 0, -2))

	// Backfill oldest first, then newer days; the aggregate is a recount, and
	// last_checkin_date tracks the maximum day, not the latest submission.
	for _, day := range []string{dayBefore, today, yesterday} {
		w, _ := doJSON(t, r, http.MethodPost, "/checkins", gin.H{"date": day})
		require.Equal(t, http.StatusOK, w.Code)
	}

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, 3, got.TotalCheckinDays)
	require.NotNil(t, got.LastCheckinDate)
	assert.Equal(t, today, *got.LastCheckinDate)
}

func TestListCheckins(t *testing.T) {
	db, user := newTestEnv(t)
	r := checkinRouter(db, user.ID)

	now := time.Now()
	for i := 0; i < 3; i++ {
		day := services.FormatDay(now.AddDate(0, 0, -i))
		require.NoError(t, db.Create(&models.Checkin{
			UserID: user.ID, CheckinDate: day, ImageURLs: "/static/a.png, /static/b.png",
		}).Error)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkins?days=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int           `json:"code"`
		Data []checkinItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, services.FormatDay(now), resp.Data[0].CheckinDate)
	assert.Equal(t, []string{"/static/a.png", "/static/b.png"}, resp.Data[0].ImageURLs)
}

func TestStatsReflectsAggregate(t *testing.T) {
	db, user := newTestEnv(t)
	r := checkinRouter(db, user.ID)

	last := "2024-06-10"
	calc := "2024-06-12"
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"total_checkin_days": 42,
		"failure_count":      2,
		"last_checkin_date":  last,
		"last_calc_date":     calc,
	}).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkins/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 42, data["total_checkin_days"])
	assert.EqualValues(t, 2, data["failure_count"])
	assert.Equal(t, last, data["last_checkin_date"])
	assert.Equal(t, calc, data["last_calc_date"])
}
