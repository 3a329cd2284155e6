package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Email     EmailConfig
	Challenge ChallengeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode: "single", "sentinel" or "cluster". Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs: list of host:port addresses, used by all modes. For "single",
	// the first entry wins when non-empty.
	Addrs []string `mapstructure:"addrs"`

	// Addr: alternative single-mode address, kept for compatibility.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Redis master name (sentinel mode only).
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: reconnect attempts (-1 means unlimited). Default 0.
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: minimum backoff between attempts, milliseconds.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: maximum backoff between attempts, milliseconds.
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// EmailConfig holds notifier settings. With Enabled=false the service runs
// with a noop sender (useful for local development).
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	ResetBaseURL string `mapstructure:"reset_base_url"`
}

// ChallengeConfig holds per-purpose windows for the challenge subsystem.
type ChallengeConfig struct {
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
	OtpTTL        time.Duration `mapstructure:"otp_ttl"`
	ResendWindow  time.Duration `mapstructure:"resend_window"`
	ResendLimit   int           `mapstructure:"resend_limit"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from the given file, with explicit env overrides.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // fresh instance, no global viper state

	// Bind environment variables explicitly.
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("email.reset_base_url", "EMAIL_RESET_BASE_URL")

	vip.BindEnv("challenge.reset_token_ttl", "CHALLENGE_RESET_TOKEN_TTL")
	vip.BindEnv("challenge.otp_ttl", "CHALLENGE_OTP_TTL")
	vip.BindEnv("challenge.resend_window", "CHALLENGE_RESEND_WINDOW")
	vip.BindEnv("challenge.resend_limit", "CHALLENGE_RESEND_LIMIT")
	vip.BindEnv("challenge.purge_interval", "CHALLENGE_PURGE_INTERVAL")

	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, using environment variables/defaults.", configPath)
			} else {
				log.Printf("Warning: failed to read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Challenge window defaults.
	if cfg.Challenge.ResetTokenTTL <= 0 {
		cfg.Challenge.ResetTokenTTL = 30 * time.Minute
	}
	if cfg.Challenge.OtpTTL <= 0 {
		cfg.Challenge.OtpTTL = 5 * time.Minute
	}
	if cfg.Challenge.ResendWindow <= 0 {
		cfg.Challenge.ResendWindow = time.Minute
	}
	if cfg.Challenge.ResendLimit <= 0 {
		cfg.Challenge.ResendLimit = 1
	}
	if cfg.Challenge.PurgeInterval <= 0 {
		cfg.Challenge.PurgeInterval = time.Hour
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("Reset Token TTL: %s", cfg.Challenge.ResetTokenTTL)
		log.Printf("OTP TTL: %s", cfg.Challenge.OtpTTL)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("----------------------------")
	}

	// Required settings.
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Email.Enabled && (cfg.Email.ResendAPIKey == "" || cfg.Email.From == "" || cfg.Email.ResetBaseURL == "") {
		return nil, fmt.Errorf("email configuration (resend_api_key, from, reset_base_url) is incomplete (check RESEND_API_KEY, EMAIL_FROM, EMAIL_RESET_BASE_URL env vars)")
	}
	ginMode := vip.GetString("GIN_MODE")
	if ginMode != "debug" {
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
	}

	return &cfg, nil
}
