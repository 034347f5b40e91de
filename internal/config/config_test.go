package config

import (
	"errors"
	"testing"
	"time"
)

func TestConfigFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := ConfigFromEnv(); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("LOGIN_TOKEN_TTL", "")
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("ALLOW_ADMIN_SIGNUP", "")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.TokenTTL != 15*time.Minute || cfg.LoginTokenTTL != 30*time.Minute {
		t.Fatalf("unexpected ttls: %v / %v", cfg.TokenTTL, cfg.LoginTokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Fatalf("unexpected cost %d", cfg.BcryptCost)
	}
	if string(cfg.JWTSecret) != "s3cret" {
		t.Fatalf("secret not loaded")
	}
	if cfg.AdminSignup {
		t.Fatalf("admin signup should be off by default")
	}
}

func TestConfigFromEnv_ClampsBcryptCost(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BCRYPT_COST", "99")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("expected default cost, got %d", cfg.BcryptCost)
	}
}
