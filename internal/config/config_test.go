package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, GetConfigPath(dir))
	assert.Equal(t, dir, cfg.Dir())

	assert.Equal(t, filepath.Join(dir, "autoapply.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "screenshots"), cfg.ScreenshotDir)
	assert.True(t, cfg.ForwardingEnabled)
	assert.Equal(t, "apply.autoapply.dev", cfg.ForwardingDomain)
	assert.Equal(t, 90*24*time.Hour, cfg.AliasTTL())
	assert.True(t, cfg.BrowserHeadless)
	assert.Equal(t, 60*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Zero(t, cfg.CaptchaWait)
	assert.Equal(t, 10, cfg.MaxFormSteps)
	assert.Equal(t, time.Second, cfg.HumanDelayMin)
	assert.Equal(t, 3*time.Second, cfg.HumanDelayMax)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, ":8089", cfg.WebhookAddr)
	assert.Equal(t, "@hourly", cfg.SweepSchedule)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.NoError(t, cfg.Validate())

	info, err := os.Stat(GetConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOAPPLY_SMTP_PASSWORD", "hunter2")
	t.Setenv("AUTOAPPLY_WORKERS", "5")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.SMTPPassword)
	assert.Equal(t, 5, cfg.Workers)

	// Writing a key never persists environment values.
	require.NoError(t, Set(dir, "smtp_host", "smtp.example.com"))
	raw, err := os.ReadFile(GetConfigPath(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
}

func TestSet(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Set(dir, "max_form_steps", "4"))
	require.NoError(t, Set(dir, "CAPTCHA_WAIT", "2m"))
	require.NoError(t, Set(dir, "browser_headless", "false"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxFormSteps)
	assert.Equal(t, 2*time.Minute, cfg.CaptchaWait)
	assert.False(t, cfg.BrowserHeadless)

	assert.ErrorContains(t, Set(dir, "openai_key", "x"), "unknown config key")
	assert.Error(t, Set(dir, "workers", "many"))
	assert.Error(t, Set(dir, "idle_timeout", "soon"))
}

func TestValidate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	cfg.Workers = 0
	cfg.HumanDelayMin = 5 * time.Second
	cfg.ForwardingDomain = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "workers")
	assert.ErrorContains(t, err, "human_delay_min")
	assert.ErrorContains(t, err, "forwarding_domain")
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "forwarding_domain")
	assert.Contains(t, keys, "smtp_password")
	assert.Contains(t, keys, "max_form_steps")
	assert.IsIncreasing(t, keys)
}
