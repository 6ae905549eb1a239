package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewRateLimiter_DisabledConfigurations(t *testing.T) {
	assert.Nil(t, NewRateLimiter(nil, 10, time.Minute, nil), "nil client disables limiting")
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *RateLimiter
	assert.True(t, l.Allow(context.Background(), "any-key"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", l.LimitByIP(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
