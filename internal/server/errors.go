package server

import (
	"errors"
	"net/http"

	"mixmaster/backend/internal/auth/service"
	"mixmaster/backend/internal/verification"
)

// statusFor maps service-layer sentinel errors to HTTP statuses.
// Unknown errors are server errors; their detail stays out of the response.
func statusFor(err error) (int, string) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}
	switch {
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrNotVerified):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrAlreadyVerified):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrRefreshTokenReuse):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrGoogleAuthFailed):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrDeviceNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, verification.ErrCodeNotFound):
		return http.StatusBadRequest, "verification code expired or not found"
	case errors.Is(err, verification.ErrCodeMismatch):
		return http.StatusBadRequest, "incorrect verification code"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
