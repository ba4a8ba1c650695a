package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	dirName   = ".autoapply"
	fileName  = "config.yaml"
	envPrefix = "AUTOAPPLY"
)

// Config holds the application configuration
type Config struct {
	DatabasePath   string `mapstructure:"database_path"`
	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`

	// Forwarding aliases
	ForwardingEnabled bool   `mapstructure:"forwarding_enabled"`
	ForwardingDomain  string `mapstructure:"forwarding_domain"`
	AliasTTLDays      int    `mapstructure:"alias_ttl_days"`

	// Browser automation
	BrowserHeadless   bool          `mapstructure:"browser_headless"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	UploadTimeout     time.Duration `mapstructure:"upload_timeout"`
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	CaptchaWait       time.Duration `mapstructure:"captcha_wait"`
	MaxFormSteps      int           `mapstructure:"max_form_steps"`
	HumanDelayMin     time.Duration `mapstructure:"human_delay_min"`
	HumanDelayMax     time.Duration `mapstructure:"human_delay_max"`
	Workers           int           `mapstructure:"workers"`

	// Webhook server
	WebhookAddr   string `mapstructure:"webhook_addr"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SweepSchedule string `mapstructure:"sweep_schedule"`

	// Outbound mail (keep this file secure!)
	SMTPHost       string `mapstructure:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUsername   string `mapstructure:"smtp_username"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	SMTPFrom       string `mapstructure:"smtp_from"`
	SMTPMaxRetries int    `mapstructure:"smtp_max_retries"`

	dir string
}

// Dir returns the directory the config was loaded from.
func (c *Config) Dir() string { return c.dir }

// AliasTTL returns the alias lifetime.
func (c *Config) AliasTTL() time.Duration {
	return time.Duration(c.AliasTTLDays) * 24 * time.Hour
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxFormSteps < 1 {
		errs = append(errs, fmt.Errorf("max_form_steps must be at least 1, got %d", c.MaxFormSteps))
	}
	if c.HumanDelayMin < 0 || c.HumanDelayMax < c.HumanDelayMin {
		errs = append(errs, fmt.Errorf("human_delay_min (%s) must be between 0 and human_delay_max (%s)", c.HumanDelayMin, c.HumanDelayMax))
	}
	if c.ForwardingEnabled && c.ForwardingDomain == "" {
		errs = append(errs, errors.New("forwarding_domain is required when forwarding is enabled"))
	}
	if c.AliasTTLDays < 1 {
		errs = append(errs, fmt.Errorf("alias_ttl_days must be at least 1, got %d", c.AliasTTLDays))
	}
	return errors.Join(errs...)
}

// DefaultDir returns ~/.autoapply.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, dirName), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("database_path", filepath.Join(dir, "autoapply.db"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("forwarding_enabled", true)
	v.SetDefault("forwarding_domain", "apply.autoapply.dev")
	v.SetDefault("alias_ttl_days", 90)
	v.SetDefault("browser_headless", true)
	v.SetDefault("screenshot_dir", filepath.Join(dir, "screenshots"))
	v.SetDefault("navigation_timeout", "60s")
	v.SetDefault("idle_timeout", "10s")
	v.SetDefault("upload_timeout", "30s")
	v.SetDefault("attempt_timeout", "10m")
	v.SetDefault("captcha_wait", "0s")
	v.SetDefault("max_form_steps", 10)
	v.SetDefault("human_delay_min", "1s")
	v.SetDefault("human_delay_max", "3s")
	v.SetDefault("workers", 2)
	v.SetDefault("webhook_addr", ":8089")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("sweep_schedule", "@hourly")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from", "")
	v.SetDefault("smtp_max_retries", 3)
}

func newViper(dir string, env bool) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, fileName))
	v.SetConfigType("yaml")
	if env {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	setDefaults(v, dir)
	return v
}

// Load reads dir/config.yaml, creating it with defaults first if needed.
// An empty dir means DefaultDir. AUTOAPPLY_* environment variables
// override file values.
func Load(dir string) (*Config, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := filepath.Join(dir, fileName)
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfig(configFile); err != nil {
			return nil, err
		}
	}

	v := newViper(dir, true)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.dir = dir
	cfg.DatabasePath = expandHome(cfg.DatabasePath)
	cfg.ScreenshotDir = expandHome(cfg.ScreenshotDir)
	return cfg, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// createDefaultConfig creates a default config file
func createDefaultConfig(path string) error {
	defaultConfig := `# Autoapply Configuration
log_level: info

# Forwarding aliases: replies to {user}.{job}.{yyyymmdd}@{domain} are tracked and relayed
forwarding_enabled: true
forwarding_domain: apply.autoapply.dev
alias_ttl_days: 90

# Browser automation
browser_headless: true
navigation_timeout: 60s
max_form_steps: 10
workers: 2

# Webhook server
webhook_addr: ":8089"
sweep_schedule: "@hourly"

# Outbound mail (keep this file secure, or set AUTOAPPLY_SMTP_PASSWORD in .env)
smtp_host: ""
smtp_port: 587
smtp_username: ""
smtp_from: ""
`
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}

// Keys lists every known configuration key.
func Keys() []string {
	v := viper.New()
	setDefaults(v, "")
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Set updates a configuration value in dir/config.yaml
func Set(dir, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !known(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return err
		}
		dir = d
	}
	if _, err := Load(dir); err != nil {
		return err
	}

	// Environment overrides must not end up in the file.
	v := newViper(dir, false)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	v.Set(key, value)

	// Reject values that would not load back.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return v.WriteConfig()
}

func known(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// GetConfigPath returns the path to the config file in dir
func GetConfigPath(dir string) string {
	if dir == "" {
		dir, _ = DefaultDir()
	}
	return filepath.Join(dir, fileName)
}
