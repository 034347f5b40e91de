package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Addr          string
	JWTSecret     []byte
	TokenTTL      time.Duration
	LoginTokenTTL time.Duration
	BcryptCost    int
	CookieSecure  bool
	// AdminSignup allows role=admin on the public signup route.
	AdminSignup   bool
	Admin         AdminConfig
}

// AdminConfig is the account cmd/bootstrap seeds.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

var ErrMissingSecret = errors.New("JWT_SECRET is not set")

// ConfigFromEnv reads app config from environment variables. The signing
// secret has no default.
func ConfigFromEnv() (Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, ErrMissingSecret
	}
	cost := getEnvAsInt("BCRYPT_COST", 12)
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Config{
		Addr:          getEnv("HTTP_ADDR", "0.0.0.0:8431"),
		JWTSecret:     []byte(secret),
		TokenTTL:      getEnvAsDuration("TOKEN_TTL", 15*time.Minute),
		LoginTokenTTL: getEnvAsDuration("LOGIN_TOKEN_TTL", 30*time.Minute),
		BcryptCost:    cost,
		CookieSecure:  os.Getenv("COOKIE_SECURE") == "1",
		AdminSignup:   os.Getenv("ALLOW_ADMIN_SIGNUP") == "1",
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Email:    getEnv("ADMIN_EMAIL", "admin@localhost"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
