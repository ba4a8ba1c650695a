package cmd

import (
	"fmt"
	"strings"

	"github.com/khrees2412/autoapply/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
}

var showConfigCmd = &cobra.Command{
	Use:         "show",
	Short:       "Display current configuration",
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Configuration"))
		fmt.Printf("%s %s\n", labelStyle.Render("Config File:"), config.GetConfigPath(cfg.Dir()))
		fmt.Printf("%s %s\n", labelStyle.Render("Database:"), cfg.DatabasePath)
		fmt.Printf("%s %s\n", labelStyle.Render("Log Level:"), cfg.LogLevel)

		fmt.Printf("\n%s\n", labelStyle.Render("Forwarding"))
		fmt.Printf("  Enabled: %v\n", cfg.ForwardingEnabled)
		fmt.Printf("  Domain: %s\n", cfg.ForwardingDomain)
		fmt.Printf("  Alias TTL: %d days\n", cfg.AliasTTLDays)

		fmt.Printf("\n%s\n", labelStyle.Render("Browser"))
		fmt.Printf("  Headless: %v\n", cfg.BrowserHeadless)
		fmt.Printf("  Screenshots: %s\n", cfg.ScreenshotDir)
		fmt.Printf("  Navigation Timeout: %s\n", cfg.NavigationTimeout)
		fmt.Printf("  Idle Timeout: %s\n", cfg.IdleTimeout)
		fmt.Printf("  Upload Timeout: %s\n", cfg.UploadTimeout)
		if cfg.AttemptTimeout > 0 {
			fmt.Printf("  Attempt Timeout: %s\n", cfg.AttemptTimeout)
		}
		fmt.Printf("  Captcha Wait: %s\n", cfg.CaptchaWait)
		fmt.Printf("  Max Form Steps: %d\n", cfg.MaxFormSteps)
		fmt.Printf("  Human Delay: %s-%s\n", cfg.HumanDelayMin, cfg.HumanDelayMax)
		fmt.Printf("  Workers: %d\n", cfg.Workers)

		fmt.Printf("\n%s\n", labelStyle.Render("Webhook"))
		fmt.Printf("  Address: %s\n", cfg.WebhookAddr)
		fmt.Printf("  Secret: %s\n", configured(cfg.WebhookSecret))
		fmt.Printf("  Sweep Schedule: %s\n", cfg.SweepSchedule)

		fmt.Printf("\n%s\n", labelStyle.Render("Mail"))
		if cfg.SMTPHost == "" {
			fmt.Println("  SMTP: ✗ Not configured (emails are only logged)")
		} else {
			fmt.Printf("  SMTP: %s:%d\n", cfg.SMTPHost, cfg.SMTPPort)
			fmt.Printf("  Username: %s\n", cfg.SMTPUsername)
			fmt.Printf("  Password: %s\n", configured(cfg.SMTPPassword))
			fmt.Printf("  From: %s\n", cfg.SMTPFrom)
			fmt.Printf("  Retries: %d\n", cfg.SMTPMaxRetries)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("\n%s %v\n", errorStyle.Render("Invalid:"), err)
		}
		return nil
	},
}

func configured(secret string) string {
	if secret != "" {
		return "✓ Configured"
	}
	return "✗ Not configured"
}

var setConfigCmd = &cobra.Command{
	Use:   "set",
	Short: "Update a configuration value",
	Example: `  autoapply config set --key forwarding_domain --value apply.example.com
  autoapply config set --key workers --value 4
  autoapply config set --key navigation_timeout --value 90s
  autoapply config set --key smtp_host --value smtp.example.com`,
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		value, _ := cmd.Flags().GetString("value")

		if key == "" {
			return fmt.Errorf("--key is required. Valid keys: %s", strings.Join(config.Keys(), ", "))
		}
		if err := config.Set(configDir, key, value); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}

		// Reload so bad combinations show up now rather than on the next run
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Configuration updated: %s\n", key)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("%s %v\n", warnStyle.Render("warning:"), err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)

	// Flags for set command
	setConfigCmd.Flags().String("key", "", "Configuration key")
	setConfigCmd.Flags().String("value", "", "Configuration value")
}
