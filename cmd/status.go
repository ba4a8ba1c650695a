package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/autoapply/internal/app"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View application records",
	Long:  "List stored application records, newest first, optionally filtered by status",
	Example: `  autoapply status
  autoapply status --filter interview --user u1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		filterStatus, _ := cmd.Flags().GetString("filter")
		userID, _ := cmd.Flags().GetString("user")

		records, err := a.Store.ListApplications(cmd.Context(), userID, filterStatus)
		if err != nil {
			return fmt.Errorf("failed to fetch applications: %w", err)
		}

		if len(records) == 0 {
			if filterStatus != "" {
				fmt.Printf("No applications with status '%s'\n", filterStatus)
				return nil
			}
			fmt.Println("No applications yet. Apply to a job with 'autoapply apply <url>'")
			return nil
		}

		fmt.Println(titleStyle.Render("Your Applications"))
		for _, rec := range records {
			fmt.Printf("  • %s/%s %s\n", rec.UserID, rec.JobID, statusStyle(rec.Status).Render(rec.Status))
			fmt.Printf("    %s %s | %s %s\n",
				labelStyle.Render("ATS:"), rec.ATSType,
				labelStyle.Render("Updated:"), rec.UpdatedAt.Local().Format(time.DateTime))
			fmt.Printf("    %s %s\n", labelStyle.Render("URL:"), rec.JobURL)
		}

		fmt.Printf("\n%s %d\n", labelStyle.Render("Total Applications:"), len(records))
		return nil
	},
}

var showStatusCmd = &cobra.Command{
	Use:     "show <user-id> <job-id>",
	Short:   "Show one application and its email history",
	Args:    cobra.ExactArgs(2),
	Example: `  autoapply status show u1 acme-analyst`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		rec, err := a.Store.GetApplication(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to fetch application: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("application %s/%s: %w", args[0], args[1], app.ErrNotFound)
		}

		renderRecord(rec)

		history, err := a.Store.EmailHistory(ctx, rec.UserID, rec.JobID)
		if err != nil {
			return fmt.Errorf("failed to fetch email history: %w", err)
		}
		renderHistory(history)
		return nil
	},
}

func renderRecord(rec *models.ApplicationRecord) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Application %s/%s", rec.UserID, rec.JobID)))
	fmt.Printf("%s %s\n", labelStyle.Render("Status:"), statusStyle(rec.Status).Render(rec.Status))
	printField("ID:", rec.ID)
	printField("URL:", rec.JobURL)
	printField("ATS:", string(rec.ATSType))
	if rec.SubmittedAt != nil {
		printField("Submitted:", rec.SubmittedAt.Local().Format(time.DateTime))
	}
	printField("Confirmation:", rec.ConfirmationNumber)
	printField("Reply-to alias:", rec.ConfirmationEmail)
	if len(rec.StepsCompleted) > 0 {
		printField("Steps:", strings.Join(rec.StepsCompleted, ", "))
	}
	for _, e := range rec.Errors {
		fmt.Printf("%s %s\n", errorStyle.Render("Error:"), e)
	}
	for _, p := range rec.ScreenshotPaths {
		printField("Screenshot:", p)
	}
}

func renderHistory(history []models.EmailHistoryEntry) {
	if len(history) == 0 {
		fmt.Println("\nNo replies received yet.")
		return
	}
	fmt.Printf("\n%s\n", labelStyle.Render("Email History"))
	for _, h := range history {
		fmt.Printf("  %s %s %s\n",
			h.ReceivedAt.Local().Format("Jan 2 15:04"),
			statusStyle(string(h.DetectedStatus)).Render(fmt.Sprintf("[%s]", h.DetectedStatus)),
			h.Subject)
		fmt.Printf("    from %s", h.From)
		if h.ConfirmationNumber != "" {
			fmt.Printf(" | ref %s", h.ConfirmationNumber)
		}
		fmt.Println()
	}
}

func validRecordStatus(s string) bool {
	switch s {
	case "", string(models.StatusSuccess), string(models.StatusFailed), string(models.StatusCaptchaRequired),
		string(models.StatusLoginRequired), string(models.StatusAlreadyApplied), string(models.StatusTimeout),
		string(models.StatusUnknownError), string(models.DetectedOffer), string(models.DetectedInterview),
		string(models.DetectedRejected), string(models.DetectedConfirmed), string(models.DetectedPending):
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(showStatusCmd)

	statusCmd.Flags().String("filter", "", "Only show records with this status")
	statusCmd.Flags().String("user", "", "Only show records for this user id")
	statusCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f, _ := cmd.Flags().GetString("filter"); !validRecordStatus(f) {
			return fmt.Errorf("%w: unknown status %q", app.ErrInvalidArgument, f)
		}
		return nil
	}
}
