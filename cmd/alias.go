package cmd

import (
	"fmt"
	"time"

	"github.com/khrees2412/autoapply/internal/app"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/spf13/cobra"
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage forwarding aliases",
	Long:  "Forwarding aliases are per-application addresses that relay employer replies to you",
}

var generateAliasCmd = &cobra.Command{
	Use:   "generate <user-id> <job-id> <real-email>",
	Short: "Generate a forwarding alias",
	Args:  cobra.ExactArgs(3),
	Example: `  autoapply alias generate u1 acme-analyst ada@example.com
  autoapply alias generate u1 acme-analyst ada@example.com --register`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		register, _ := cmd.Flags().GetBool("register")

		alias, err := a.Forwarding.Generate(args[0], args[1], args[2], "")
		if err != nil {
			return err
		}
		if register {
			if err := a.Forwarding.Register(cmd.Context(), alias); err != nil {
				return fmt.Errorf("failed to register alias: %w", err)
			}
		}

		fmt.Println(alias.Address)
		printField("Forwards to:", alias.RealEmail)
		printField("Expires:", alias.ExpiresAt.Local().Format(time.DateOnly))
		if register {
			fmt.Println(successStyle.Render("✓ Registered"))
		}
		return nil
	},
}

var parseAliasCmd = &cobra.Command{
	Use:   "parse <address>",
	Short: "Decode a forwarding alias",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		parsed, err := a.Forwarding.Parse(args[0])
		if err != nil {
			return err
		}
		printField("User ID:", parsed.UserID)
		printField("Job ID:", parsed.JobID)
		printField("Date:", parsed.Timestamp.Format(time.DateOnly))
		printField("Domain:", parsed.Domain)

		alias, err := a.Forwarding.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if alias == nil {
			fmt.Println(warnStyle.Render("Not registered"))
			return nil
		}
		fmt.Printf("%s %s\n", labelStyle.Render("Status:"), statusStyle(string(alias.Status)).Render(string(alias.Status)))
		printField("Forwards to:", alias.RealEmail)
		printField("Replies:", fmt.Sprint(alias.EmailsReceived))
		return nil
	},
}

var listAliasCmd = &cobra.Command{
	Use:   "list",
	Short: "List forwarding aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")
		status, _ := cmd.Flags().GetString("status")

		aliases, err := a.Store.ListAliases(cmd.Context(), userID, models.AliasStatus(status))
		if err != nil {
			return fmt.Errorf("failed to list aliases: %w", err)
		}
		if len(aliases) == 0 {
			fmt.Println("No forwarding aliases.")
			return nil
		}

		fmt.Println(titleStyle.Render("Forwarding Aliases"))
		for _, al := range aliases {
			fmt.Printf("  • %s %s\n", al.Address, statusStyle(string(al.Status)).Render(string(al.Status)))
			fmt.Printf("    %s %s | %s %d | %s %s\n",
				labelStyle.Render("To:"), al.RealEmail,
				labelStyle.Render("Replies:"), al.EmailsReceived,
				labelStyle.Render("Expires:"), al.ExpiresAt.Local().Format(time.DateOnly))
		}
		return nil
	},
}

var disableAliasCmd = &cobra.Command{
	Use:   "disable <address>",
	Short: "Stop relaying mail sent to an alias",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		if err := a.Store.SetAliasStatus(cmd.Context(), args[0], models.AliasDisabled); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Alias disabled"))
		return nil
	},
}

var sweepAliasCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire aliases past their lifetime",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		n, err := a.Forwarding.ExpireStale(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		a.Metrics.AliasesExpired.Add(float64(n))
		fmt.Printf("✓ Expired %d alias(es)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aliasCmd)
	aliasCmd.AddCommand(generateAliasCmd)
	aliasCmd.AddCommand(parseAliasCmd)
	aliasCmd.AddCommand(listAliasCmd)
	aliasCmd.AddCommand(disableAliasCmd)
	aliasCmd.AddCommand(sweepAliasCmd)

	generateAliasCmd.Flags().Bool("register", false, "Store the alias so replies are relayed")
	listAliasCmd.Flags().String("user", "", "Only list aliases for this user id")
	listAliasCmd.Flags().String("status", "", "Only list aliases with this status (active, expired, disabled)")
	listAliasCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		switch s, _ := cmd.Flags().GetString("status"); models.AliasStatus(s) {
		case "", models.AliasActive, models.AliasExpired, models.AliasDisabled:
			return nil
		default:
			return fmt.Errorf("%w: unknown alias status %q", app.ErrInvalidArgument, s)
		}
	}
}
