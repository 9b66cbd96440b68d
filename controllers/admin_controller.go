package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quitking/quitking/jobs"
	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/utils"
)

// AdminController exposes the operator surface: CRUD over users, posts, comments
// and checkins, plus the explicit aggregate resync and the drift audit. Checkin
// deletion deliberately does not recompute aggregates; operators resync afterwards.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates a new controller instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// ListUsers returns paginated users with their aggregates.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to count users")
		return
	}
	var users []models.User
	if err := a.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load users")
		return
	}

	utils.Success(ctx, gin.H{
		"items": users,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// DeleteUser soft-deletes a user account.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	if err := a.db.Delete(&models.User{}, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to delete user")
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// DeletePost removes any post regardless of author.
func (a *AdminController) DeletePost(ctx *gin.Context) {
	var post models.Post
	if err := a.db.First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	if err := a.db.Select("Comments").Delete(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to delete post")
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// DeleteComment removes any comment regardless of author.
func (a *AdminController) DeleteComment(ctx *gin.Context) {
	if err := a.db.Delete(&models.Comment{}, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// DeleteCheckin removes one checkin row. Aggregates are NOT recomputed here; call
// ResyncUser afterwards to realign the user's totals with the log.
func (a *AdminController) DeleteCheckin(ctx *gin.Context) {
	var checkin models.Checkin
	if err := a.db.First(&checkin, ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "checkin not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to load checkin")
		return
	}
	if err := a.db.Delete(&checkin).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to delete checkin")
		return
	}
	utils.Success(ctx, gin.H{
		"message": "deleted; run resync to realign the user's aggregate",
		"user_id": checkin.UserID,
	})
}

// ResyncUser recomputes total_checkin_days and last_checkin_date from the checkin
// log. Penalty history is not replayed: the resynced total equals the row count.
func (a *AdminController) ResyncUser(ctx *gin.Context) {
	id := ctx.Param("id")
	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Checkin{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"total_checkin_days": count,
			"last_checkin_date":  nil,
		}
		if count > 0 {
			var latest string
			if err := tx.Model(&models.Checkin{}).Where("user_id = ?", user.ID).
				Select("MAX(checkin_date)").Scan(&latest).Error; err != nil {
				return err
			}
			updates["last_checkin_date"] = latest
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to resync user")
		return
	}

	utils.CacheDelete(utils.CheckinStatsCacheKey(user.ID))

	var fresh models.User
	if err := a.db.First(&fresh, user.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to reload user")
		return
	}
	utils.Success(ctx, gin.H{
		"total_checkin_days": fresh.TotalCheckinDays,
		"last_checkin_date":  fresh.LastCheckinDate,
	})
}

// AuditDrift lists users whose aggregate exceeds their checkin log count. The
// audit only reports; nothing is corrected automatically.
func (a *AdminController) AuditDrift(ctx *gin.Context) {
	drifted, err := jobs.AuditAggregateDrift(a.db)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50048, "audit failed")
		return
	}
	utils.Success(ctx, gin.H{"drifted": drifted, "count": len(drifted)})
}

// RunPenaltySweep triggers the daily reconciliation out of schedule. Safe to call
// repeatedly: the per-user cursor makes re-runs no-ops.
func (a *AdminController) RunPenaltySweep(ctx *gin.Context) {
	stats := jobs.RunPenaltySweep(a.db, time.Now())
	utils.Success(ctx, stats)
}
