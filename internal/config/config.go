package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// devSecretKey signs session tokens when ENV=development and no SECRET_KEY is set.
const devSecretKey = "emr_secret_key_change_in_production"

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema            string        `mapstructure:"DB_SCHEMA"`
	AutoMigrate         bool          `mapstructure:"AUTO_MIGRATE"`
	MigrationsDir       string        `mapstructure:"MIGRATIONS_DIR"`
	SecretKey           string        `mapstructure:"SECRET_KEY"`
	SessionTimeoutHours int           `mapstructure:"SESSION_TIMEOUT_HOURS"`
	AuthUsername        string        `mapstructure:"AUTH_USERNAME"`
	AuthPassword        string        `mapstructure:"AUTH_PASSWORD"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	UploadDir           string        `mapstructure:"UPLOAD_DIR"`
	MaxUploadMB         int           `mapstructure:"MAX_UPLOAD_MB"`
	XRayModelURL        string        `mapstructure:"XRAY_MODEL_URL"`
	LLMBaseURL          string        `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey           string        `mapstructure:"LLM_API_KEY"`
	LLMModel            string        `mapstructure:"LLM_MODEL"`
	WhisperURL          string        `mapstructure:"WHISPER_URL"`
	STTModel            string        `mapstructure:"STT_MODEL"`
	ExternalTimeout     time.Duration `mapstructure:"EXTERNAL_TIMEOUT"`
	VoiceHeartbeat      time.Duration `mapstructure:"VOICE_HEARTBEAT"`
	VoiceSessionMaxAge  time.Duration `mapstructure:"VOICE_SESSION_MAX_AGE"`
	LogFormat           string        `mapstructure:"LOG_FORMAT"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	MetricsEnabled      bool          `mapstructure:"METRICS_ENABLED"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("SESSION_TIMEOUT_HOURS", 8)
	v.SetDefault("AUTH_USERNAME", "admin")
	v.SetDefault("AUTH_PASSWORD", "admin")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_MB", 25)
	v.SetDefault("LLM_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("LLM_MODEL", "gpt-4o")
	v.SetDefault("STT_MODEL", "whisper-1")
	v.SetDefault("EXTERNAL_TIMEOUT", "120s")
	v.SetDefault("VOICE_HEARTBEAT", "15s")
	v.SetDefault("VOICE_SESSION_MAX_AGE", "4h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
		"AUTO_MIGRATE", "MIGRATIONS_DIR", "SECRET_KEY", "SESSION_TIMEOUT_HOURS",
		"AUTH_USERNAME", "AUTH_PASSWORD", "REDIS_URL", "CORS_ORIGINS", "UPLOAD_DIR",
		"MAX_UPLOAD_MB", "XRAY_MODEL_URL", "LLM_BASE_URL", "LLM_MODEL",
		"WHISPER_URL", "STT_MODEL", "EXTERNAL_TIMEOUT", "VOICE_HEARTBEAT",
		"VOICE_SESSION_MAX_AGE", "LOG_FORMAT", "LOG_LEVEL", "METRICS_ENABLED",
	} {
		v.BindEnv(key)
	}
	// The OpenAI client convention is honoured as a fallback for the key.
	v.BindEnv("LLM_API_KEY", "LLM_API_KEY", "OPENAI_API_KEY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SecretKey == "" && cfg.IsDev() {
		cfg.SecretKey = devSecretKey
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "console"
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SessionTTL is the fixed lifetime of a login session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTimeoutHours) * time.Hour
}

// MaxUploadBytes is the request body ceiling for upload endpoints.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// Validate checks that the configuration is safe to run. Outside development a
// real SECRET_KEY is required so session cookies cannot be forged with the
// well-known default.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && c.SecretKey == devSecretKey {
		return fmt.Errorf("SECRET_KEY must be changed from the development default in ENV=%q", c.Env)
	}
	if c.SessionTimeoutHours <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT_HOURS must be positive, got %d", c.SessionTimeoutHours)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	switch c.LogFormat {
	case "console", "json", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"console\", \"json\", or \"ecs\", got %q", c.LogFormat)
	}
	return nil
}
