package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/khrees2412/autoapply/internal/app"
	"github.com/spf13/cobra"
)

// skipApp marks commands that run without opening the database.
const skipApp = "skip_app"

var (
	configDir string
	opened    *app.App
)

var rootCmd = &cobra.Command{
	Use:   "autoapply",
	Short: "Automated job applications with reply tracking",
	Long: `Autoapply fills and submits job applications in a headless browser.
Each application gets a forwarding alias so replies from the employer are
classified, recorded against the application and relayed to you.`,
	Version:       "0.2.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipApp] == "true" {
			return nil
		}
		// Flags below only exist on some commands; absent ones read as zero.
		workers, _ := cmd.Flags().GetInt("workers")
		noForwarding, _ := cmd.Flags().GetBool("no-forwarding")

		// Initialize app with all dependencies
		application, err := app.NewApp(cmd.Context(), app.Options{
			ConfigDir:         configDir,
			Workers:           workers,
			DisableForwarding: noForwarding,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store app in command context
		opened = application
		cmd.SetContext(app.WithApp(cmd.Context(), application))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	// Cleanup: close app resources
	if opened != nil {
		opened.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		stop()
		os.Exit(1)
	}
}

// appFrom returns the App opened for cmd.
func appFrom(cmd *cobra.Command) (*app.App, error) {
	return app.FromContext(cmd.Context())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default ~/.autoapply)")
}
