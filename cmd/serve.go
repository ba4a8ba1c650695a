package cmd

import (
	"fmt"

	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/scheduler"
	"github.com/khrees2412/autoapply/internal/webhook"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inbound email webhook server",
	Long: `Serve POST /webhooks/email-received for your mail provider, plus /health
and /metrics, and expire old forwarding aliases on the configured schedule.`,
	Example: `  autoapply serve
  autoapply serve --addr :9000 --sweep "@every 30m"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.Config.WebhookAddr
		}
		schedule, _ := cmd.Flags().GetString("sweep")
		if schedule == "" {
			schedule = a.Config.SweepSchedule
		}

		sched := scheduler.New(a.Forwarding, a.Metrics, a.Log.With(logger.String("component", "scheduler")))
		if err := sched.Start(schedule); err != nil {
			return err
		}
		defer sched.Stop()

		srv := webhook.NewServer(webhook.Config{
			Addr:   addr,
			Secret: a.Config.WebhookSecret,
			Debug:  a.Config.LogDevelopment,
		}, a.Forwarding, a.Store, a.Metrics, a.Log.With(logger.String("component", "webhook")))

		fmt.Println(titleStyle.Render("Webhook server"))
		printField("Listening:", addr)
		printField("Alias domain:", a.Forwarding.Domain())
		printField("Next sweep:", sched.Next().Local().Format("Jan 2 15:04"))
		if a.Config.WebhookSecret == "" {
			fmt.Println(warnStyle.Render("No webhook_secret configured; the endpoint accepts unauthenticated posts"))
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			// Expire anything that lapsed while the server was down. Failures
			// are logged by the scheduler and retried on the next tick.
			sched.Sweep(ctx)
			return nil
		})
		g.Go(func() error {
			return srv.Run(ctx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: webhook_addr)")
	serveCmd.Flags().String("sweep", "", "Alias expiry cron schedule (default: sweep_schedule)")
}
