package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"account-api/internal/domain/repository"
	"account-api/pkg/helpers"
	"account-api/pkg/response"
)

// CtxUserIDKey is the gin context key under which the authenticated user id
// is stored.
const CtxUserIDKey = "userID"

// tokenFromRequest pulls the access token from the Authorization header,
// falling back to the access_token cookie set at login.
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if tok, err := c.Cookie("access_token"); err == nil {
		return tok
	}
	return ""
}

// Auth validates the access token and resolves it to an existing account
// before any protected handler runs. A missing, invalid or expired token —
// or a token whose user no longer exists — terminates the request with 401.
func Auth(repo repository.UserRepository, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}

		u, err := repo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || u == nil {
			response.AbortError(c, http.StatusUnauthorized, "account no longer exists", nil)
			return
		}

		c.Set(CtxUserIDKey, u.ID)
		c.Next()
	}
}
