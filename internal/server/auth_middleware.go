package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mixmaster/backend/internal/security"
	sessiondomain "mixmaster/backend/internal/session/domain"
	userdomain "mixmaster/backend/internal/user/domain"
)

const (
	bearerPrefix = "bearer "
	// RefreshTokenHeader carries the refresh token on protected requests when
	// the client does not use the refresh_token cookie.
	RefreshTokenHeader = "X-Refresh-Token"
	// RefreshTokenCookie is the cookie fallback for the refresh token.
	RefreshTokenCookie = "refresh_token"

	currentUserKey = "auth.user"
)

// UserResolver resolves users for the middleware's access-token path.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// SessionRegistry is the middleware's view of the session store: a refresh
// token is only honored while its hash is registered, and an unregistered one
// wipes the user's sessions.
type SessionRegistry interface {
	GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	DeleteAllByUser(ctx context.Context, userID string) error
}

// RequireAuth gates protected routes.
//
// Per request: a valid access token resolves the user and proceeds (404 when
// the user row is gone). An invalid or missing access token falls back to the
// refresh token; when that verifies and is still registered, the middleware
// answers 200 with a fresh access token in the Authorization response header
// and `token: true` in the body, without running the protected handler — the
// client retries with the new token. Everything else fails closed with 401.
func RequireAuth(tokens *security.TokenProvider, users UserResolver, sessions SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractBearer(c.GetHeader("Authorization"))
		refreshToken := extractRefreshToken(c)

		if accessToken == "" && refreshToken == "" {
			respondError(c, http.StatusUnauthorized, "missing authorization")
			return
		}

		if accessToken != "" {
			userID, err := tokens.ValidateAccess(accessToken)
			if err == nil {
				user, err := users.GetByID(c.Request.Context(), userID)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "internal server error")
					return
				}
				if user == nil {
					respondError(c, http.StatusNotFound, "user not found")
					return
				}
				c.Set(currentUserKey, user)
				c.Next()
				return
			}
			// expired or invalid; fall through to the refresh path
		}

		if refreshToken == "" {
			respondError(c, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		userID, err := tokens.ValidateRefresh(refreshToken)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sess, err := sessions.GetByRefreshTokenHash(c.Request.Context(), security.HashRefreshToken(refreshToken))
		if err != nil {
			respondError(c, http.StatusInternalServerError, "internal server error")
			return
		}
		if sess == nil || sess.UserID != userID {
			// Signature-valid but unregistered: treated as replay of a rotated
			// or revoked token. Wipe the user's sessions before rejecting.
			_ = sessions.DeleteAllByUser(c.Request.Context(), userID)
			sessionRevocationsTotal.WithLabelValues("replay").Inc()
			respondError(c, http.StatusUnauthorized, "refresh token revoked")
			return
		}

		newAccess, _, err := tokens.IssueAccess(userID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "internal server error")
			return
		}
		tokenRefreshesTotal.Inc()
		c.Header("Authorization", "Bearer "+newAccess)
		c.AbortWithStatusJSON(http.StatusOK, gin.H{
			"success": true,
			"token":   true,
			"message": "token refreshed, retry request",
		})
	}
}

// CurrentUser returns the user attached by RequireAuth.
func CurrentUser(c *gin.Context) (*userdomain.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*userdomain.User)
	return user, ok
}

// extractBearer returns the Bearer token from an Authorization header value,
// or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// extractRefreshToken reads the refresh token from the X-Refresh-Token header,
// falling back to the refresh_token cookie.
func extractRefreshToken(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(RefreshTokenHeader)); v != "" {
		return v
	}
	if v, err := c.Cookie(RefreshTokenCookie); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}
