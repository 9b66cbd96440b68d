package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quitking/quitking/config"
	"github.com/quitking/quitking/utils"
)

// AdminRequired allows only usernames listed in AdminUsernames. Must run after
// AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		unameVal, exists := ctx.Get(ContextUsernameKey)
		uname, _ := unameVal.(string)
		if !exists || uname == "" {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin access required")
			ctx.Abort()
			return
		}

		cfg := config.Get()
		for _, u := range cfg.AdminUsernames {
			if strings.EqualFold(strings.TrimSpace(u), uname) {
				ctx.Next()
				return
			}
		}

		utils.Error(ctx, http.StatusForbidden, 40302, "admin access required")
		ctx.Abort()
	}
}
