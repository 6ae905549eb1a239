// Package server is the HTTP surface: gin router, auth middleware, and the
// /user handlers. Responses use a uniform {success, message?, ...} envelope.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mixmaster/backend/internal/auth/service"
	"mixmaster/backend/internal/security"
)

// Pinger reports backend liveness for /healthz (satisfied by *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the router wires together.
type Deps struct {
	Auth     *service.AuthService
	Tokens   *security.TokenProvider
	Users    UserResolver
	Sessions SessionRegistry
	// Limiter guards the credential endpoints (login, google, register,
	// resend). Nil disables limiting.
	Limiter *RateLimiter
	// DB is pinged by /healthz. Nil skips the ping.
	DB Pinger
	// UploadDir receives registration pictures. Empty disables uploads.
	UploadDir string
	Log       *zap.Logger
	// Production switches gin to release mode and drops debug output.
	Production bool
}

// New builds the gin engine with all routes and middleware attached.
func New(deps Deps) *gin.Engine {
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(Recovery(log), RequestLogger(log), Metrics(), ClientIP())

	r.GET("/healthz", healthz(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := NewAuthHandler(deps.Auth, deps.UploadDir, log)
	userHandler := NewUserHandler(deps.Auth)
	requireAuth := RequireAuth(deps.Tokens, deps.Users, deps.Sessions)
	limit := deps.Limiter.LimitByIP()

	user := r.Group("/user")
	{
		user.POST("/register", limit, authHandler.Register)
		user.POST("/verify", authHandler.Verify)
		user.POST("/resend", limit, authHandler.Resend)
		user.POST("/login", limit, authHandler.Login)
		user.POST("/google", limit, authHandler.GoogleLogin)
		user.POST("/refresh", authHandler.Refresh)
		user.POST("/logout", authHandler.Logout)

		user.GET("/me", requireAuth, userHandler.Me)
		user.GET("/sessions", requireAuth, userHandler.Sessions)
		user.GET("/disconnect/:deviceId", requireAuth, userHandler.Disconnect)
		user.GET("/disconnect", requireAuth, userHandler.DisconnectAll)
		user.DELETE("", requireAuth, userHandler.Delete)
	}

	return r
}

func healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				respondError(c, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		respondOK(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
