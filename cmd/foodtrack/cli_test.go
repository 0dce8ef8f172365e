package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodtrack/internal/config"
	"github.com/sakif/foodtrack/internal/logger"
	"github.com/sakif/foodtrack/internal/server"
	"github.com/sakif/foodtrack/internal/service"
	"github.com/sakif/foodtrack/internal/storage"
)

// envKeys are cleared so the developer's environment cannot leak in.
var envKeys = []string{
	"CONFIG_FILE", "PORT", "ENV", "STORE", "DB_PATH", "BOLT_PATH", "JWT_SECRET",
	"SESSION_TTL", "BCRYPT_COST", "COOKIE_SECURE", "ADMIN_USERNAMES", "LOGIN_RATE",
	"LOGIN_BURST", "TIMEZONE", "REMINDER_SCHEDULE", "REMINDER_DAYS",
	"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL",
	"LOG_LEVEL", "LOG_FORMAT",
}

// writeConfig points the CLI at a fresh bolt file and seeds one user.
func writeConfig(t *testing.T) string {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "foodtrack.yaml")
	yaml := "store: bolt\n" +
		"bolt_path: " + filepath.Join(dir, "data", "foodtrack.bolt") + "\n" +
		"jwt_secret: cli-test-secret-0123456789\n" +
		"bcrypt_cost: 4\n" +
		"log_level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	store, err := storage.Open(cfg, logger.Discard())
	require.NoError(t, err)
	services, err := server.NewServices(cfg, store, logger.Discard())
	require.NoError(t, err)

	ctx := context.Background()
	result, err := services.Auth.Register(ctx, service.RegisterInput{
		Username: "alice", Email: "alice@example.com",
		Password: "secret123", ConfirmPassword: "secret123",
	})
	require.NoError(t, err)
	_, err = services.Cycles.Load(ctx, result.User.ID)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	return path
}

// run executes the CLI like main does and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{}
	root := newRootCmd(c)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	require.NoError(t, c.close())
	return out.String(), err
}

func TestUsersList(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "alice@example.com")
}

func TestRestart(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "restart", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "alice restarted at cycle #1")

	_, err = run(t, "--config", cfg, "restart", "--user", "nobody")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	cfg := writeConfig(t)
	target := filepath.Join(t.TempDir(), "report.pdf")

	out, err := run(t, "--config", cfg, "export", "--user", "alice", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote cycle #1 for alice")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestExport_RequiresUser(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "--config", cfg, "export")
	assert.Error(t, err)
}

func TestRemind(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "remind")
	require.NoError(t, err)
	assert.Contains(t, out, "users: 1")
}

func TestBadConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "users", "list")
	assert.Error(t, err)
}
