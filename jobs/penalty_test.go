package jobs

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	config.SetForTest(config.AppConfig{JWTSecret: "test-secret", LogLevel: "error"})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Checkin{}))
	return db
}

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, db *gorm.DB, lastCheckin *string, checkinDays ...string) *models.User {
	t.Helper()
	user := &models.User{
		Username:         "smoker",
		Provider:         "local",
		TotalCheckinDays: len(checkinDays),
		LastCheckinDate:  lastCheckin,
	}
	require.NoError(t, db.Create(user).Error)
	for _, day := range checkinDays {
		require.NoError(t, db.Create(&models.Checkin{UserID: user.ID, CheckinDate: day}).Error)
	}
	return user
}

func reload(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

func mustDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSweepNoGapAdvancesCursorOnly(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, strPtr("2024-06-12"), "2024-06-10", "2024-06-11", "2024-06-12")

	stats := RunPenaltySweep(db, mustDay("2024-06-13"))
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Penalized)

	got := reload(t, db, u.ID)
	assert.Equal(t, 3, got.TotalCheckinDays)
	assert.Equal(t, 0, got.FailureCount)
	require.NotNil(t, got.LastCalcDate)
	assert.Equal(t, "2024-06-12", *got.LastCalcDate)
}

func TestSweepAppliesTieredPenalty(t *testing.T) {
	// Last checkin on the 10th, reconciling for the 12th: the 11th and 12th are
	// missed, so the two-day tier (-21, floored at 0) applies to the row count.
	db := newTestDB(t)
	u := seedUser(t, db, strPtr("2024-06-10"), "2024-06-08", "2024-06-09", "2024-06-10")

	stats := RunPenaltySweep(db, mustDay("2024-06-13"))
	assert.Equal(t, 1, stats.Penalized)

	got := reload(t, db, u.ID)
	assert.Equal(t, 0, got.TotalCheckinDays)
	assert.Equal(t, 0, got.FailureCount)
	require.NotNil(t, got.LastCalcDate)
	assert.Equal(t, "2024-06-12", *got.LastCalcDate)
}

func TestSweepRelapseCountsOneFailure(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, strPtr("2024-06-08"), "2024-06-06", "2024-06-07", "2024-06-08")

	RunPenaltySweep(db, mustDay("2024-06-13")) // four missed days

	got := reload(t, db, u.ID)
	assert.Equal(t, 0, got.TotalCheckinDays)
	assert.Equal(t, 1, got.FailureCount)
}

func TestSweepIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, strPtr("2024-06-08"), "2024-06-06", "2024-06-07", "2024-06-08")

	now := mustDay("2024-06-13")
	RunPenaltySweep(db, now)
	first := reload(t, db, u.ID)

	// Re-running for the same yesterday must not double-penalize.
	stats := RunPenaltySweep(db, now)
	assert.Equal(t, 0, stats.Scanned)

	second := reload(t, db, u.ID)
	assert.Equal(t, first.TotalCheckinDays, second.TotalCheckinDays)
	assert.Equal(t, first.FailureCount, second.FailureCount)
	assert.Equal(t, *first.LastCalcDate, *second.LastCalcDate)
}

func TestSweepSkipsUsersWhoNeverCheckedIn(t *testing.T) {
	// The gap scanner short-circuits on a null last checkin, so such users only
	// get their cursor advanced and are never penalized.
	db := newTestDB(t)
	u := seedUser(t, db, nil)

	stats := RunPenaltySweep(db, mustDay("2024-06-13"))
	assert.Equal(t, 0, stats.Penalized)

	got := reload(t, db, u.ID)
	assert.Equal(t, 0, got.TotalCheckinDays)
	assert.Equal(t, 0, got.FailureCount)
	require.NotNil(t, got.LastCalcDate)
	assert.Equal(t, "2024-06-12", *got.LastCalcDate)
}

func TestSweepResetOnIntermediateCheckin(t *testing.T) {
	// A checkin made inside the scanned window via backfill resets the trailing
	// gap; one trailing missed day costs 7 off the row count.
	db := newTestDB(t)
	u := seedUser(t, db, strPtr("2024-06-09"),
		"2024-06-01", "2024-06-02", "2024-06-03", "2024-06-04", "2024-06-05",
		"2024-06-06", "2024-06-07", "2024-06-08", "2024-06-09", "2024-06-11")

	RunPenaltySweep(db, mustDay("2024-06-13")) // 10th reset by 11th, 12th missed

	got := reload(t, db, u.ID)
	assert.Equal(t, 3, got.TotalCheckinDays) // 10 rows - 7
	assert.Equal(t, 0, got.FailureCount)
}

func TestSweepHandlesManyUsersIndependently(t *testing.T) {
	db := newTestDB(t)
	current := seedUser(t, db, strPtr("2024-06-12"), "2024-06-11", "2024-06-12")

	lapsed := &models.User{Username: "lapsed", Provider: "local", LastCheckinDate: strPtr("2024-06-08"), TotalCheckinDays: 1}
	require.NoError(t, db.Create(lapsed).Error)
	require.NoError(t, db.Create(&models.Checkin{UserID: lapsed.ID, CheckinDate: "2024-06-08"}).Error)

	stats := RunPenaltySweep(db, mustDay("2024-06-13"))
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Penalized)

	assert.Equal(t, 2, reload(t, db, current.ID).TotalCheckinDays)
	assert.Equal(t, 1, reload(t, db, lapsed.ID).FailureCount)
}

func TestAuditAggregateDrift(t *testing.T) {
	db := newTestDB(t)
	healthy := seedUser(t, db, strPtr("2024-06-12"), "2024-06-11", "2024-06-12")

	// Simulate an admin deleting a checkin without resyncing.
	drifter := &models.User{Username: "drifter", Provider: "local", TotalCheckinDays: 5}
	require.NoError(t, db.Create(drifter).Error)
	require.NoError(t, db.Create(&models.Checkin{UserID: drifter.ID, CheckinDate: "2024-06-12"}).Error)

	drifted, err := AuditAggregateDrift(db)
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	assert.Equal(t, drifter.ID, drifted[0].UserID)
	assert.Equal(t, 5, drifted[0].TotalCheckinDays)
	assert.Equal(t, 1, drifted[0].CheckinCount)

	_ = healthy
}
