package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mixmaster/backend/internal/auth/service"
)

// AuthHandler serves the /user auth endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	uploadDir string
	log       *zap.Logger
}

// NewAuthHandler returns an AuthHandler. uploadDir receives registration
// pictures; empty disables uploads. log may be nil.
func NewAuthHandler(auth *service.AuthService, uploadDir string, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, uploadDir: uploadDir, log: log}
}

type registerRequest struct {
	Email    string `form:"email" json:"email"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type deviceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type loginRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Device   deviceRequest `json:"device"`
}

type googleLoginRequest struct {
	Code   string        `json:"code"`
	Device deviceRequest `json:"device"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// Register handles POST /user/register: JSON or multipart form, with an
// optional picture file in the multipart case.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	picture, err := h.savePicture(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "could not store picture")
		return
	}

	res, err := h.auth.Register(c.Request.Context(), req.Email, req.Username, req.Password, picture)
	if err != nil {
		// Don't leave an orphaned upload behind a failed registration.
		if picture != "" {
			if rmErr := os.Remove(picture); rmErr != nil {
				h.log.Warn("orphaned upload not removed", zap.String("path", picture), zap.Error(rmErr))
			}
		}
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{
		"message": "verification code sent",
		"sent":    res.Sent,
		"user":    res.User.Redacted(),
	})
}

// Verify handles POST /user/verify.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code); err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "email verified"})
}

// Resend handles POST /user/resend.
func (h *AuthHandler) Resend(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	sent, err := h.auth.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "verification code sent", "sent": sent})
}

// Login handles POST /user/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, service.Device{
		ID:   req.Device.ID,
		Name: req.Device.Name,
		Type: req.Device.Type,
	})
	if err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	h.respondTokens(c, res)
}

// GoogleLogin handles POST /user/google.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.GoogleLogin(c.Request.Context(), req.Code, service.Device{
		ID:   req.Device.ID,
		Name: req.Device.Name,
		Type: req.Device.Type,
	})
	if err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	h.respondTokens(c, res)
}

// Refresh handles POST /user/refresh. The refresh token rides in the
// Authorization header as a Bearer value.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := extractBearer(c.GetHeader("Authorization"))
	if refreshToken == "" {
		respondError(c, http.StatusUnauthorized, "missing refresh token")
		return
	}
	res, err := h.auth.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	setRefreshCookie(c, res.RefreshToken)
	respondOK(c, http.StatusOK, gin.H{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

// Logout handles POST /user/logout. The refresh token rides in the
// Authorization header as a Bearer value.
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken := extractBearer(c.GetHeader("Authorization"))
	if refreshToken == "" {
		respondError(c, http.StatusUnauthorized, "missing refresh token")
		return
	}
	if err := h.auth.Logout(c.Request.Context(), refreshToken); err != nil {
		status, msg := statusFor(err)
		respondError(c, status, msg)
		return
	}
	sessionRevocationsTotal.WithLabelValues("logout").Inc()
	clearRefreshCookie(c)
	respondOK(c, http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) respondTokens(c *gin.Context, res *service.AuthResult) {
	setRefreshCookie(c, res.RefreshToken)
	respondOK(c, http.StatusOK, gin.H{
		"user":         res.User.Redacted(),
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

// savePicture stores an uploaded "picture" multipart file under uploadDir and
// returns its path. Returns "" when no file was sent or uploads are disabled.
func (h *AuthHandler) savePicture(c *gin.Context) (string, error) {
	if h.uploadDir == "" {
		return "", nil
	}
	file, err := c.FormFile("picture")
	if err != nil {
		return "", nil // no picture attached
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(h.uploadDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func setRefreshCookie(c *gin.Context, token string) {
	c.SetCookie(RefreshTokenCookie, token, 0, "/", "", false, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", false, true)
}
