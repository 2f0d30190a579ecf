package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
)

const userContextKey = "auth.current_user"

// Authenticator resolves a bearer access token to an account.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.User, error)
}

// RequireAuth rejects requests without a valid bearer access token and
// stores the resolved account on the request context.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(raw), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_token",
				"error_description": "bearer token required",
			})
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(raw[len("bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_token",
				"error_description": "token is expired or invalid",
			})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireAdmin gates a route group to admin accounts. Must run after
// RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "admin privileges required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the account RequireAuth attached to the request.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}
