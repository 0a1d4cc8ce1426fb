package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"RelayMessenger/internal/auth"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	Addr       string
	DBDSN      string
	LogLevel   string
	SessionTTL time.Duration

	PasswordAlgo     string
	PBKDF2Iterations int

	LoginRatePerMin int
	CORSOrigins     []string
	AutoMigrate     bool

	FCMProjectID   string
	FCMCredentials string

	AdminUsernames []string
	CookieSecret   string
}

// Load reads .env from the working directory, if present, then the process
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := loadDotEnvFile(".env", os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf(".env: %w", err)
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV"),
		Addr:           getenv("APP_ADDR"),
		DBDSN:          getenv("APP_DB_DSN"),
		LogLevel:       getenv("APP_LOG_LEVEL"),
		PasswordAlgo:   strings.TrimSpace(strings.ToLower(getenv("APP_PASSWORD_ALGO"))),
		FCMProjectID:   strings.TrimSpace(getenv("APP_FCM_PROJECT_ID")),
		FCMCredentials: strings.TrimSpace(getenv("APP_FCM_CREDENTIALS")),
		CORSOrigins:    parseCSV(getenv("APP_CORS_ORIGINS")),
		AdminUsernames: parseCSV(getenv("APP_ADMIN_USERNAMES")),
		CookieSecret:   getenv("APP_COOKIE_SECRET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:5000"
	}
	if cfg.PasswordAlgo == "" {
		cfg.PasswordAlgo = auth.AlgoPBKDF2SHA256
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if ttlRaw := getenv("APP_SESSION_TTL"); ttlRaw != "" {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_SESSION_TTL: %w", err)
		}
		if ttl < 0 {
			return Config{}, errors.New("APP_SESSION_TTL: must be >= 0")
		}
		cfg.SessionTTL = ttl
	}

	var err error
	if cfg.PBKDF2Iterations, err = intFromEnv(getenv, "APP_PBKDF2_ITERATIONS", auth.DefaultPBKDF2Iterations); err != nil {
		return Config{}, err
	}
	if _, err := auth.NewHasher(cfg.PasswordAlgo, cfg.PBKDF2Iterations); err != nil {
		return Config{}, fmt.Errorf("APP_PASSWORD_ALGO/APP_PBKDF2_ITERATIONS: %w", err)
	}

	if cfg.LoginRatePerMin, err = intFromEnv(getenv, "APP_LOGIN_RATE_PER_MIN", 20); err != nil {
		return Config{}, err
	}
	if cfg.LoginRatePerMin == 0 {
		return Config{}, errors.New("APP_LOGIN_RATE_PER_MIN: must not be 0 (use a negative value to disable)")
	}

	cfg.AutoMigrate = true
	if raw := strings.TrimSpace(getenv("APP_AUTO_MIGRATE")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = v
	}

	if cfg.IsProd() && cfg.DBDSN == "" {
		return Config{}, errors.New("APP_DB_DSN: required in prod")
	}
	if cfg.IsProd() && len(cfg.AdminUsernames) > 0 && len(cfg.CookieSecret) < 32 {
		return Config{}, errors.New("APP_COOKIE_SECRET: at least 32 bytes required in prod when APP_ADMIN_USERNAMES is set")
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// Hasher builds the password hasher; LoadFromEnv has already validated the inputs.
func (c Config) Hasher() (auth.Hasher, error) {
	return auth.NewHasher(c.PasswordAlgo, c.PBKDF2Iterations)
}

func (c Config) PushEnabled() bool { return c.FCMCredentials != "" }

func (c Config) AdminEnabled() bool { return len(c.AdminUsernames) > 0 }

// CookieSecure is true outside dev so admin cookies only travel over TLS.
func (c Config) CookieSecure() bool { return c.Env != "dev" }

// loadDotEnvFile copies variables from path into the environment without
// overriding anything already set. Empty values are skipped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for k, v := range values {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func intFromEnv(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
