package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/khrees2412/autoapply/internal/app"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse applications interactively",
	Long:  "Step through stored applications, their email history and forwarding aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		return runTUI(cmd.Context(), a, bufio.NewReader(cmd.InOrStdin()))
	},
}

func runTUI(ctx context.Context, a *app.App, reader *bufio.Reader) error {
	for {
		records, err := a.Store.ListApplications(ctx, "", "")
		if err != nil {
			return fmt.Errorf("failed to fetch applications: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No applications yet. Apply to a job with 'autoapply apply <url>'")
			return nil
		}

		// Display application list
		fmt.Println(titleStyle.Render("Application Browser"))
		fmt.Println("Press 'q' to quit, or enter an application number to view details")
		fmt.Println()

		for i, rec := range records {
			fmt.Printf("%d. %s/%s %s\n", i+1, rec.UserID, rec.JobID, statusStyle(rec.Status).Render(rec.Status))
		}

		fmt.Print("\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "q" || input == "Q" || (err != nil && input == "") {
			return nil
		}

		n, convErr := strconv.Atoi(input)
		if convErr != nil || n < 1 || n > len(records) {
			fmt.Println("Invalid selection")
			continue
		}

		if done := displayApplication(ctx, a, records[n-1], reader); done {
			return nil
		}
	}
}

// displayApplication shows one record until the user goes back. It reports
// whether input ran out.
func displayApplication(ctx context.Context, a *app.App, rec *models.ApplicationRecord, reader *bufio.Reader) bool {
	for {
		fmt.Println("\n" + strings.Repeat("=", 60))
		renderRecord(rec)

		var alias *models.ForwardingAlias
		if rec.ConfirmationEmail != "" {
			alias, _ = a.Forwarding.Lookup(ctx, rec.ConfirmationEmail)
		}
		if alias != nil {
			fmt.Printf("%s %s (%d replies)\n", labelStyle.Render("Alias Status:"),
				statusStyle(string(alias.Status)).Render(string(alias.Status)), alias.EmailsReceived)
		}

		fmt.Println("\nOptions:")
		fmt.Println("  [h] Show email history")
		if alias != nil && alias.Status == models.AliasActive {
			fmt.Println("  [d] Disable forwarding alias")
		}
		fmt.Println("  [b] Back to list")
		fmt.Print("\n> ")

		choice, err := reader.ReadString('\n')
		choice = strings.TrimSpace(strings.ToLower(choice))
		if err != nil && choice == "" {
			return true
		}

		switch choice {
		case "h":
			history, err := a.Store.EmailHistory(ctx, rec.UserID, rec.JobID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			renderHistory(history)
		case "d":
			if alias == nil || alias.Status != models.AliasActive {
				fmt.Println("Invalid choice")
				continue
			}
			if err := a.Store.SetAliasStatus(ctx, alias.Address, models.AliasDisabled); err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Println("✓ Alias disabled")
			}
		case "b":
			return false
		default:
			fmt.Println("Invalid choice")
		}
	}
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
