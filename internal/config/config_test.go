package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	os.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.AccessTokenTTL != "1h" {
		t.Errorf("AccessTokenTTL = %q, want %q", cfg.AccessTokenTTL, "1h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.VerificationCodeTTL != "10m" {
		t.Errorf("VerificationCodeTTL = %q, want %q", cfg.VerificationCodeTTL, "10m")
	}
	if cfg.KafkaTopic != "mixmaster-auth-events" {
		t.Errorf("KafkaTopic = %q, want default", cfg.KafkaTopic)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("ACCESS_TOKEN_TTL", "30m")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", cfg.AccessTTL())
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("expected error when token secrets are unset")
	}
}

func TestLoad_EqualSecretsRejected(t *testing.T) {
	os.Clearenv()
	os.Setenv("ACCESS_TOKEN_SECRET", "same")
	os.Setenv("REFRESH_TOKEN_SECRET", "same")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when access and refresh secrets are equal")
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range BCRYPT_COST")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		want    int
	}{
		{"empty", "", 0},
		{"single", "localhost:9092", 1},
		{"multiple with spaces", "a:9092, b:9092 ,c:9092", 3},
		{"trailing comma", "a:9092,", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{KafkaBrokers: tt.brokers}
			if got := len(cfg.KafkaBrokersList()); got != tt.want {
				t.Errorf("KafkaBrokersList() len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{AccessTokenTTL: "bogus", VerificationCodeTTL: "", LoginRateWindow: "-5s"}
	if cfg.AccessTTL() != time.Hour {
		t.Errorf("AccessTTL fallback = %v, want 1h", cfg.AccessTTL())
	}
	if cfg.CodeTTL() != 10*time.Minute {
		t.Errorf("CodeTTL fallback = %v, want 10m", cfg.CodeTTL())
	}
	if cfg.RateWindow() != time.Minute {
		t.Errorf("RateWindow fallback = %v, want 1m", cfg.RateWindow())
	}
}
