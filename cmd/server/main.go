// Server runs the Mix Master auth HTTP API.
// Requires DATABASE_URL, ACCESS_TOKEN_SECRET, and REFRESH_TOKEN_SECRET.
// Redis, SMTP, Google OAuth, and Kafka are optional; unset sections disable
// the corresponding feature.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"mixmaster/backend/internal/auth/service"
	"mixmaster/backend/internal/config"
	"mixmaster/backend/internal/db"
	"mixmaster/backend/internal/events"
	"mixmaster/backend/internal/googleauth"
	"mixmaster/backend/internal/mailer"
	"mixmaster/backend/internal/security"
	"mixmaster/backend/internal/server"
	sessionrepo "mixmaster/backend/internal/session/repository"
	userrepo "mixmaster/backend/internal/user/repository"
	"mixmaster/backend/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	tokens, err := security.NewTokenProvider(
		[]byte(cfg.AccessTokenSecret), []byte(cfg.RefreshTokenSecret), cfg.AccessTTL())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)

	var redisClient *redis.Client
	codes := verification.Store(verification.NewMemoryStore())
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		codes = verification.NewRedisStore(redisClient)
	}

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	var google googleauth.Verifier
	if cfg.GoogleClientID != "" {
		google = googleauth.NewOAuthVerifier(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	var emitter events.Emitter
	kafkaEmitter, err := events.NewKafkaEmitter(cfg.KafkaBrokersList(), cfg.KafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaEmitter != nil {
		emitter = kafkaEmitter
		defer kafkaEmitter.Close()
	}

	auth := service.NewAuthService(users, sessions, hasher, tokens, codes, mail, google, emitter, cfg.CodeTTL())

	router := server.New(server.Deps{
		Auth:       auth,
		Tokens:     tokens,
		Users:      users,
		Sessions:   sessions,
		Limiter:    server.NewRateLimiter(redisClient, cfg.LoginRateLimit, cfg.RateWindow(), logger),
		DB:         database,
		UploadDir:  cfg.UploadDir,
		Log:        logger,
		Production: cfg.Env == "production",
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	if emitter != nil {
		// Give in-flight async emits time to land before the writer closes.
		time.Sleep(events.ShutdownDrainDuration)
	}
	logger.Info("http server stopped")
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
