package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/models"
	"github.com/kuliahku/kuliahku-api/pkg/config"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
	"github.com/kuliahku/kuliahku-api/pkg/response"
)

// ContextUserKey holds the resolved identity in the gin context.
const ContextUserKey = "currentUser"

// Cookie names of the dual-token scheme.
const (
	CookieSession  = "auth_token"
	CookieRemember = "remember_token"
)

// AuthResolver is the slice of the auth service the middleware needs.
type AuthResolver interface {
	ResolveIdentity(ctx context.Context, sessionToken, rememberToken string) (*models.Identity, bool, error)
	IssueSessionToken(userID, email, name string) (string, error)
	SessionExpiry() time.Duration
}

// Auth resolves the caller from the session cookie, the Authorization header
// or the remember cookie, in that order. A remember-token hit issues a fresh
// session cookie (sliding renewal). Unauthenticated requests are aborted
// with 401.
func Auth(auth AuthResolver, cookies config.CookieConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sessionToken := sessionTokenFromRequest(c)
		rememberToken, _ := c.Cookie(CookieRemember)

		identity, renew, err := auth.ResolveIdentity(c.Request.Context(), sessionToken, rememberToken)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		if renew {
			fresh, err := auth.IssueSessionToken(identity.UserID, identity.Email, identity.Name)
			if err != nil {
				logger.Warn("failed to renew session token", zap.Error(err), zap.String("user_id", identity.UserID))
			} else {
				SetSessionCookie(c, fresh, cookies, int(auth.SessionExpiry().Seconds()))
			}
		}

		c.Set(ContextUserKey, identity)
		c.Next()
	}
}

// SetSessionCookie writes the HTTP-only session cookie.
func SetSessionCookie(c *gin.Context, token string, cookies config.CookieConfig, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieSession, token, maxAge, "/", cookies.Domain, cookies.Secure, true)
}

// SetRememberCookie writes the HTTP-only remember cookie.
func SetRememberCookie(c *gin.Context, token string, cookies config.CookieConfig, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieRemember, token, maxAge, "/", cookies.Domain, cookies.Secure, true)
}

// ClearAuthCookies expires both auth cookies.
func ClearAuthCookies(c *gin.Context, cookies config.CookieConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieSession, "", -1, "/", cookies.Domain, cookies.Secure, true)
	c.SetCookie(CookieRemember, "", -1, "/", cookies.Domain, cookies.Secure, true)
}

func sessionTokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(CookieSession); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// IdentityFromContext extracts the resolved identity set by Auth.
func IdentityFromContext(c *gin.Context) (*models.Identity, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*models.Identity)
	return identity, ok
}
