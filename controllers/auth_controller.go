package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/middleware"
	"github.com/quitking/quitking/models"
	"github.com/quitking/quitking/services"
	"github.com/quitking/quitking/utils"
)

const tokenDuration = 7 * 24 * time.Hour

// AuthController handles authentication including local and third-party providers.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new controller instance.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a local account and returns a JWT.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "username and password are required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-64 letters, digits or underscores")
		return
	}
	if len(req.Password) < 8 {
		utils.Error(ctx, http.StatusBadRequest, 40003, "password must be at least 8 characters")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already taken")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to check username")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Provider:     "local",
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to create user")
		return
	}

	a.respondWithToken(ctx, &user)
}

// Login authenticates a local account.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "username and password are required")
		return
	}

	var user models.User
	if err := a.db.Where("username = ? AND provider = ?", strings.TrimSpace(req.Username), "local").First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid credentials")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid credentials")
		return
	}

	a.respondWithToken(ctx, &user)
}

// Logout revokes the presented token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		token := strings.TrimSpace(parts[1])
		if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
			utils.BlacklistToken(token, claims.ExpiresAt.Time)
		}
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	utils.Success(ctx, user)
}

type profileRequest struct {
	Nickname    *string  `json:"nickname"`
	AvatarURL   *string  `json:"avatar_url"`
	QuitDate    *string  `json:"quit_date"`
	PricePerCig *float64 `json:"price_per_cig"`
	CigsPerDay  *int     `json:"cigs_per_day"`
}

// UpdateProfile updates whitelisted profile fields only.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request body")
		return
	}

	updates := map[string]interface{}{}
	if req.Nickname != nil {
		updates["nickname"] = utils.Sanitize(strings.TrimSpace(*req.Nickname))
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if req.QuitDate != nil {
		if _, err := time.Parse(services.DayLayout, *req.QuitDate); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40006, "quit_date must be YYYY-MM-DD")
			return
		}
		updates["quit_date"] = *req.QuitDate
	}
	if req.PricePerCig != nil {
		updates["price_per_cig"] = *req.PricePerCig
	}
	if req.CigsPerDay != nil {
		updates["cigs_per_day"] = *req.CigsPerDay
	}
	if len(updates) == 0 {
		utils.Success(ctx, gin.H{"message": "nothing to update"})
		return
	}

	if err := a.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to update profile")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to reload user")
		return
	}
	utils.Success(ctx, user)
}

// OAuthRedirect sends the client to the provider's consent page.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := ctx.Param("provider")
	conf, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, err.Error())
		return
	}
	state := fmt.Sprintf("%d", time.Now().UnixNano())
	ctx.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// OAuthCallback exchanges the authorization code and signs the user in,
// creating the account on first login.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	conf, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, err.Error())
		return
	}
	code := ctx.Query("code")
	if code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40008, "missing authorization code")
		return
	}

	token, err := conf.Exchange(ctx.Request.Context(), code)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "code exchange failed")
		return
	}

	info, err := fetchOAuthUser(ctx.Request.Context(), provider, conf, token)
	if err != nil {
		utils.Sugar.Warnf("oauth userinfo fetch failed: %v", err)
		utils.Error(ctx, http.StatusBadGateway, 50201, "failed to fetch user info")
		return
	}

	user, err := a.findOrCreateOAuthUser(provider, info)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to create user")
		return
	}

	a.respondWithToken(ctx, user)
}

func (a *AuthController) respondWithToken(ctx *gin.Context, user *models.User) {
	token, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

type oauthUser struct {
	ID        string
	Login     string
	Email     string
	AvatarURL string
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	redirect := cfg.OAuthRedirectBase + "/api/v1/auth/oauth/" + provider + "/callback"
	switch provider {
	case "github":
		if cfg.GitHubClientID == "" {
			return nil, errors.New("github login not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirect,
			Scopes:       []string{"read:user", "user:email"},
		}, nil
	case "google":
		if cfg.GoogleClientID == "" {
			return nil, errors.New("google login not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirect,
			Scopes:       []string{"openid", "email", "profile"},
		}, nil
	default:
		return nil, errors.New("unsupported oauth provider")
	}
}

func fetchOAuthUser(ctx context.Context, provider string, conf *oauth2.Config, token *oauth2.Token) (*oauthUser, error) {
	client := conf.Client(ctx, token)
	var url string
	switch provider {
	case "github":
		url = "https://api.github.com/user"
	case "google":
		url = "https://www.googleapis.com/oauth2/v2/userinfo"
	default:
		return nil, errors.New("unsupported oauth provider")
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	switch provider {
	case "github":
		var data struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, err
		}
		return &oauthUser{
			ID:        fmt.Sprintf("%d", data.ID),
			Login:     data.Login,
			Email:     data.Email,
			AvatarURL: data.AvatarURL,
		}, nil
	default:
		var data struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, err
		}
		return &oauthUser{
			ID:        data.ID,
			Login:     data.Name,
			Email:     data.Email,
			AvatarURL: data.Picture,
		}, nil
	}
}

func (a *AuthController) findOrCreateOAuthUser(provider string, info *oauthUser) (*models.User, error) {
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, info.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username := sanitizeUsername(info.Login)
	if username == "" {
		username = provider + "_" + info.ID
	}
	// Avoid collisions with existing usernames
	base := username
	for i := 1; ; i++ {
		var count int64
		if err := a.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			break
		}
		username = fmt.Sprintf("%s_%d", base, i)
	}

	user = models.User{
		Username:   username,
		Email:      info.Email,
		Provider:   provider,
		ProviderID: info.ID,
		AvatarURL:  info.AvatarURL,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(input) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}
