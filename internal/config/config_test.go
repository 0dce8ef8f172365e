package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "ENV", "STORE", "DB_PATH", "BOLT_PATH", "JWT_SECRET", "SESSION_TTL",
	"BCRYPT_COST", "COOKIE_SECURE", "ADMIN_USERNAMES", "LOGIN_RATE", "LOGIN_BURST",
	"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL", "TIMEZONE",
	"REMINDER_SCHEDULE", "REMINDER_DAYS", "LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
}

// clearEnv blanks every variable Load reads. t.Setenv restores the original
// values when the test ends; an empty value counts as unset for getEnv.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %q, want %q", cfg.Env, EnvDevelopment)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreSQLite)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %s, want 24h", cfg.SessionTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should default to false in development")
	}
	if !cfg.EphemeralSecret || len(cfg.JWTSecret) < minSecretLength {
		t.Errorf("expected a generated secret in development, got %q (ephemeral=%v)", cfg.JWTSecret, cfg.EphemeralSecret)
	}
	if cfg.GitHubEnabled() {
		t.Error("GitHub should be disabled without credentials")
	}
	if got := cfg.GitHub.CallbackURL; got != "http://localhost:8080/auth/github/callback" {
		t.Errorf("CallbackURL = %q", got)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("ENV", "production")
	t.Setenv("STORE", "BOLT")
	t.Setenv("BOLT_PATH", "/data/test.bolt")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ADMIN_USERNAMES", " alice , Bob ,,")
	t.Setenv("LOGIN_RATE", "0.5")
	t.Setenv("TIMEZONE", "Asia/Dhaka")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Store != StoreBolt {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreBolt)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %s, want 2h", cfg.SessionTTL)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true in production")
	}
	if cfg.EphemeralSecret {
		t.Error("EphemeralSecret should be false when JWT_SECRET is set")
	}
	if cfg.LoginRate != 0.5 {
		t.Errorf("LoginRate = %v, want 0.5", cfg.LoginRate)
	}
	if len(cfg.AdminUsernames) != 2 || !cfg.IsAdminUsername("BOB") || cfg.IsAdminUsername("carol") {
		t.Errorf("AdminUsernames = %q", cfg.AdminUsernames)
	}
	if cfg.Location().String() != "Asia/Dhaka" {
		t.Errorf("Location() = %v, want Asia/Dhaka", cfg.Location())
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "foodtrack.yaml")
	yaml := `
port: 9090
store: bolt
bolt_path: /var/lib/foodtrack.bolt
session_ttl: 12h
reminder_schedule: "0 8 * * *"
reminder_days: 5
github:
  client_id: id
  client_secret: secret
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	// Environment wins over the file.
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070 (env overrides file)", cfg.Port)
	}
	if cfg.Store != StoreBolt || cfg.BoltPath != "/var/lib/foodtrack.bolt" {
		t.Errorf("Store/BoltPath = %q/%q", cfg.Store, cfg.BoltPath)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %s, want 12h", cfg.SessionTTL)
	}
	if cfg.ReminderSchedule != "0 8 * * *" || cfg.ReminderDays != 5 {
		t.Errorf("reminder = %q/%d", cfg.ReminderSchedule, cfg.ReminderDays)
	}
	if !cfg.GitHubEnabled() {
		t.Error("GitHub should be enabled from the file")
	}
}

func TestLoad_YAMLUnknownKey(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("prot: 9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := Defaults()
		c.JWTSecret = "0123456789abcdef"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid development config", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"unknown env", func(c *Config) { c.Env = "qa" }, "ENV"},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "STORE"},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }, "DB_PATH"},
		{"bolt without path", func(c *Config) { c.Store = StoreBolt; c.BoltPath = "" }, "BOLT_PATH"},
		{"production without secret", func(c *Config) { c.Env = EnvProduction; c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 16"},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 3 }, "BCRYPT_COST"},
		{"bcrypt cost too high", func(c *Config) { c.BcryptCost = 15 }, "BCRYPT_COST"},
		{"zero login rate", func(c *Config) { c.LoginRate = 0 }, "LOGIN_RATE"},
		{"zero burst", func(c *Config) { c.LoginBurst = 0 }, "LOGIN_BURST"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "TIMEZONE"},
		{"bad reminder schedule", func(c *Config) { c.ReminderSchedule = "every day" }, "REMINDER_SCHEDULE"},
		{"daily reminder schedule", func(c *Config) { c.ReminderSchedule = "0 8 * * *" }, ""},
		{"reminder days too large", func(c *Config) { c.ReminderDays = 31 }, "REMINDER_DAYS"},
		{"half github config", func(c *Config) { c.GitHub.ClientID = "id" }, "GITHUB_CLIENT_ID"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Port = 0
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
