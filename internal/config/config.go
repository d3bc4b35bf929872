package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	BlobBasePath string // slide images

	AuthSecret      string
	StudentTokenTTL time.Duration
	AdminTokenTTL   time.Duration

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// RedisURL switches keyed locks to Redis; empty keeps them in-process.
	RedisURL string
	LockTTL  time.Duration

	LogLevel  string
	LogFormat string // text|json

	// TimeLimitGrace is tolerated on top of a course time limit before the
	// credited time is capped.
	TimeLimitGrace time.Duration
}

// CORSOrigins returns the origin list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("BLOB_BASE_PATH", "./data")
	v.SetDefault("AUTH_HMAC_SECRET", "supersecret-dev-key")
	v.SetDefault("STUDENT_TOKEN_TTL", "12h")
	v.SetDefault("ADMIN_TOKEN_TTL", "8h")
	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji")
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://training.example.com")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOCK_TTL", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TIME_LIMIT_GRACE", "30s")
}

// Load reads .env (if present), an optional config.yaml and the environment,
// in increasing order of precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if f := os.Getenv("CONFIG_FILE"); f != "" {
		v.SetConfigFile(f)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOnline && mode != ModeOffline {
		return Config{}, fmt.Errorf("config: unsupported MODE %q", mode)
	}
	cfg := Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		DBDriver:           v.GetString("DB_DRIVER"),
		DBDSN:              v.GetString("DB_DSN"),
		BlobBasePath:       v.GetString("BLOB_BASE_PATH"),
		AuthSecret:         v.GetString("AUTH_HMAC_SECRET"),
		StudentTokenTTL:    v.GetDuration("STUDENT_TOKEN_TTL"),
		AdminTokenTTL:      v.GetDuration("ADMIN_TOKEN_TTL"),
		AdminUser:          v.GetString("ADMIN_USER"),
		AdminPassHash:      v.GetString("ADMIN_PASS_HASH"),
		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),
		RedisURL:           v.GetString("REDIS_URL"),
		LockTTL:            v.GetDuration("LOCK_TTL"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		TimeLimitGrace:     v.GetDuration("TIME_LIMIT_GRACE"),
	}
	if strings.TrimSpace(cfg.AuthSecret) == "" {
		return Config{}, errors.New("config: AUTH_HMAC_SECRET must not be empty")
	}
	if cfg.StudentTokenTTL <= 0 || cfg.AdminTokenTTL <= 0 {
		return Config{}, errors.New("config: token TTLs must be positive")
	}
	return cfg, nil
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
