package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mixmaster/backend/internal/auth/service"
)

// UserHandler serves the access-gated /user endpoints. All of them run behind
// RequireAuth, so the current user is always attached.
type UserHandler struct {
	auth *service.AuthService
}

func NewUserHandler(auth *service.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// Me handles GET /user/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing authorization")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"user": user.Redacted()})
}

// Sessions handles GET /user/sessions: the caller's active device sessions.
// Token hashes stay server-side.
func (h *UserHandler) Sessions(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing authorization")
		return
	}
	list, err := h.auth.Sessions(c.Request.Context(), user.ID)
	if err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	type sessionView struct {
		DeviceID   string `json:"deviceId"`
		DeviceName string `json:"deviceName"`
		DeviceType string `json:"deviceType"`
		CreatedAt  string `json:"createdAt"`
	}
	views := make([]sessionView, 0, len(list))
	for _, s := range list {
		views = append(views, sessionView{
			DeviceID:   s.DeviceID,
			DeviceName: s.DeviceName,
			DeviceType: s.DeviceType,
			CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	respondOK(c, http.StatusOK, gin.H{"sessions": views})
}

// Disconnect handles GET /user/disconnect/:deviceId: revoke one device session.
func (h *UserHandler) Disconnect(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing authorization")
		return
	}
	deviceID := c.Param("deviceId")
	if err := h.auth.Disconnect(c.Request.Context(), user.ID, deviceID); err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	sessionRevocationsTotal.WithLabelValues("disconnect").Inc()
	respondOK(c, http.StatusOK, gin.H{"message": "device disconnected"})
}

// DisconnectAll handles GET /user/disconnect: revoke every session.
func (h *UserHandler) DisconnectAll(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing authorization")
		return
	}
	if err := h.auth.DisconnectAll(c.Request.Context(), user.ID); err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	sessionRevocationsTotal.WithLabelValues("disconnect").Inc()
	respondOK(c, http.StatusOK, gin.H{"message": "all devices disconnected"})
}

// Delete handles DELETE /user: remove the account and every session.
func (h *UserHandler) Delete(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing authorization")
		return
	}
	if err := h.auth.DeleteAccount(c.Request.Context(), user.ID); err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	clearRefreshCookie(c)
	respondOK(c, http.StatusOK, gin.H{"message": "account deleted"})
}
