package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/services"
	"github.com/quitking/quitking/utils"
)

// PostController handles community posts, comments and image uploads.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new controller instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

type postRequest struct {
	Title           string `json:"title" binding:"required"`
	Content         string `json:"content" binding:"required"`
	ReplyPermission string `json:"reply_permission"`
	Attachments     string `json:"attachments"`
}

// CreatePost creates a community post after moderation and sanitization.
func (p *PostController) CreatePost(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "title and content are required")
		return
	}

	perm := req.ReplyPermission
	if perm == "" {
		perm = models.ReplyPermissionAll
	}
	if perm != models.ReplyPermissionAll && perm != models.ReplyPermissionGold && perm != models.ReplyPermissionDiamond {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid reply_permission")
		return
	}

	cfg := config.Get()
	if res := services.ModerateText(req.Title+" "+req.Content, cfg.BlockedKeywords); !res.Passed {
		utils.Error(ctx, http.StatusBadRequest, 40032, res.Reason)
		return
	}

	post := models.Post{
		UserID:          userID,
		Title:           utils.Sanitize(strings.TrimSpace(req.Title)),
		Content:         utils.Sanitize(req.Content),
		ReplyPermission: perm,
		Attachments:     req.Attachments,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create post")
		return
	}
	utils.Success(ctx, post)
}

// ListPosts returns paginated posts, newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := p.db.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to count posts")
		return
	}

	var posts []models.Post
	if err := p.db.Preload("User").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load posts")
		return
	}

	utils.Success(ctx, gin.H{
		"items": posts,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// GetPost returns one post with its comments.
func (p *PostController) GetPost(ctx *gin.Context) {
	id := ctx.Param("id")
	var post models.Post
	if err := p.db.Preload("User").Preload("Comments").Preload("Comments.User").
		First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to load post")
		return
	}
	utils.Success(ctx, post)
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateComment adds a reply to a post, enforcing the post's rank gate: gold1+
// requires 21 accumulated checkin days, diamond+ requires 45. The gate reads the
// penalized aggregate, so relapses lock users out of gated threads again.
func (p *PostController) CreateComment(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to load post")
		return
	}

	if allowed, reason := p.checkReplyPermission(&post, userID); !allowed {
		utils.Error(ctx, http.StatusForbidden, 40330, reason)
		return
	}

	var req commentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "content is required")
		return
	}

	cfg := config.Get()
	if res := services.ModerateText(req.Content, cfg.BlockedKeywords); !res.Passed {
		utils.Error(ctx, http.StatusBadRequest, 40032, res.Reason)
		return
	}

	comment := models.Comment{
		PostID:  post.ID,
		UserID:  userID,
		Content: utils.Sanitize(req.Content),
	}
	if err := p.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to create comment")
		return
	}
	utils.Success(ctx, comment)
}

func (p *PostController) checkReplyPermission(post *models.Post, userID uint) (bool, string) {
	required := 0
	switch post.ReplyPermission {
	case "", models.ReplyPermissionAll:
		return true, ""
	case models.ReplyPermissionGold:
		required = 21
	case models.ReplyPermissionDiamond:
		required = 45
	default:
		return false, "reply permission misconfigured"
	}

	var user models.User
	if err := p.db.Select("total_checkin_days").First(&user, userID).Error; err != nil {
		return false, "user not found"
	}
	if user.TotalCheckinDays >= required {
		return true, ""
	}
	return false, fmt.Sprintf("replying requires %d accumulated checkin days", required)
}

// DeletePost removes a post; only the author may delete through this endpoint.
func (p *PostController) DeletePost(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40331, "not the author")
		return
	}

	if err := p.db.Select("Comments").Delete(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to delete post")
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// DeleteComment removes a comment; only the author may delete through this endpoint.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var comment models.Comment
	if err := p.db.First(&comment, ctx.Param("commentId")).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40431, "comment not found")
		return
	}
	if comment.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40331, "not the author")
		return
	}

	if err := p.db.Delete(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// UploadImage stores a checkin or post image under static/uploads and records it
// for TTL cleanup. Returns the public URL to embed in image_urls.
func (p *PostController) UploadImage(ctx *gin.Context) {
	if _, ok := getUserID(ctx); !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40034, "missing file field")
		return
	}
	const maxSize = 10 << 20
	if fileHeader.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40035, "file size exceeds 10MB")
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		utils.Error(ctx, http.StatusBadRequest, 40036, "unsupported file type")
		return
	}

	now := time.Now()
	dir := filepath.Join("static", "uploads", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50037, "failed to prepare storage")
		return
	}

	safeName := uuid.NewString() + ext
	dstPath := filepath.Join(dir, safeName)

	src, err := fileHeader.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40037, "failed to read upload")
		return
	}
	defer src.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50038, "failed to store file")
		return
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusInternalServerError, 50038, "failed to store file")
		return
	}
	_ = out.Close()

	relURL := "/" + filepath.ToSlash(dstPath)
	cfg := config.Get()
	expireAt := now.Add(time.Duration(cfg.UploadsTTLMinutes) * time.Minute)
	absPath, _ := filepath.Abs(dstPath)
	if err := p.db.Create(&models.UploadedFile{FilePath: absPath, URL: relURL, ExpireAt: expireAt}).Error; err != nil {
		utils.Sugar.Warnf("failed to record uploaded file %s: %v", relURL, err)
	}

	utils.Success(ctx, gin.H{"url": relURL})
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
