// Package config handles application configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_FILE or the --config flag)
//  3. environment variables, including a .env file loaded by godotenv
//
// The YAML file is meant for settings that rarely change per deployment;
// secrets belong in the environment.
package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Embeds the zoneinfo database so TIMEZONE works in minimal containers.
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port int    `yaml:"port"`
	Env  string `yaml:"env"`

	// Storage
	Store    string `yaml:"store"`     // sqlite or bolt
	DBPath   string `yaml:"db_path"`   // sqlite file, or ":memory:"
	BoltPath string `yaml:"bolt_path"` // bbolt file

	// Authentication
	JWTSecret      string        `yaml:"jwt_secret"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	AdminUsernames []string      `yaml:"admin_usernames"`
	LoginRate      float64       `yaml:"login_rate"`  // requests per second per IP
	LoginBurst     int           `yaml:"login_burst"` // bucket size per IP
	GitHub         GitHubConfig  `yaml:"github"`

	// Timezone names the location that decides what "today" is.
	Timezone string `yaml:"timezone"`

	// Reminders; an empty schedule disables the sweep.
	ReminderSchedule string `yaml:"reminder_schedule"`
	ReminderDays     int    `yaml:"reminder_days"`

	// Logging
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, text

	// EphemeralSecret is set when no JWT_SECRET was configured outside
	// production and a random one was generated. Sessions do not survive a restart.
	EphemeralSecret bool `yaml:"-"`
}

// GitHubConfig enables "Sign in with GitHub" when both ID and secret are set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Store backends
const (
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

const minSecretLength = 16

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:         8080,
		Env:          EnvDevelopment,
		Store:        StoreSQLite,
		DBPath:       "data/foodtrack.db",
		BoltPath:     "data/foodtrack.bolt",
		SessionTTL:   24 * time.Hour,
		BcryptCost:   12,
		LoginRate:    1,
		LoginBurst:   5,
		Timezone:     "UTC",
		ReminderDays: 3,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load reads configuration. configFile may be empty, in which case
// CONFIG_FILE is consulted; if neither is set no file is read.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := Defaults()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := loadFile(configFile, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)

	if cfg.JWTSecret == "" && cfg.Env != EnvProduction {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.EphemeralSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadFile overlays the YAML file onto cfg. Unknown keys are an error so a
// typo does not silently fall back to a default.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)

	cfg.Store = strings.ToLower(getEnv("STORE", cfg.Store))
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.BoltPath = getEnv("BOLT_PATH", cfg.BoltPath)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", cfg.BcryptCost)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure || cfg.Env == EnvProduction)
	if admins := os.Getenv("ADMIN_USERNAMES"); admins != "" {
		cfg.AdminUsernames = splitList(admins)
	}
	cfg.LoginRate = getEnvFloat("LOGIN_RATE", cfg.LoginRate)
	cfg.LoginBurst = getEnvInt("LOGIN_BURST", cfg.LoginBurst)

	cfg.GitHub.ClientID = getEnv("GITHUB_CLIENT_ID", cfg.GitHub.ClientID)
	cfg.GitHub.ClientSecret = getEnv("GITHUB_CLIENT_SECRET", cfg.GitHub.ClientSecret)
	cfg.GitHub.CallbackURL = getEnv("GITHUB_CALLBACK_URL", cfg.GitHub.CallbackURL)
	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)

	cfg.ReminderSchedule = getEnv("REMINDER_SCHEDULE", cfg.ReminderSchedule)
	cfg.ReminderDays = getEnvInt("REMINDER_DAYS", cfg.ReminderDays)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
}

// Validate checks that all required configuration is present and valid.
// Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of: development, staging, production; got %q", c.Env))
	}

	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required when STORE=sqlite"))
		}
	case StoreBolt:
		if c.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required when STORE=bolt"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE must be one of: sqlite, bolt; got %q", c.Store))
	}

	switch {
	case c.JWTSecret == "" && c.Env == EnvProduction:
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	case c.JWTSecret != "" && len(c.JWTSecret) < minSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}

	// bcrypt.MinCost is 4; above 14 a single login takes seconds.
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}

	if c.LoginRate <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE must be positive, got %v", c.LoginRate))
	}
	if c.LoginBurst < 1 {
		errs = append(errs, fmt.Errorf("LOGIN_BURST must be at least 1, got %d", c.LoginBurst))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}

	if c.ReminderSchedule != "" {
		if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
			errs = append(errs, fmt.Errorf("REMINDER_SCHEDULE %q: %w", c.ReminderSchedule, err))
		}
	}
	if c.ReminderDays < 0 || c.ReminderDays > 30 {
		errs = append(errs, fmt.Errorf("REMINDER_DAYS must be between 0 and 30, got %d", c.ReminderDays))
	}

	if (c.GitHub.ClientID == "") != (c.GitHub.ClientSecret == "") {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %q", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of: json, text; got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Location returns the timezone that decides "today". Validate has already
// checked that it loads, so UTC is only a fallback for hand-built configs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GitHubEnabled reports whether GitHub login routes should be registered.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// IsAdminUsername reports whether username is listed in ADMIN_USERNAMES.
func (c *Config) IsAdminUsername(username string) bool {
	for _, name := range c.AdminUsernames {
		if strings.EqualFold(name, username) {
			return true
		}
	}
	return false
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv reads an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
