package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/khrees2412/autoapply/internal/profile"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// statusStyle colours an attempt or record status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(models.StatusSuccess), string(models.DetectedOffer), string(models.DetectedInterview), string(models.DetectedConfirmed):
		return successStyle
	case string(models.StatusCaptchaRequired), string(models.StatusLoginRequired), string(models.StatusAlreadyApplied), string(models.StatusPending):
		return warnStyle
	case string(models.StatusFailed), string(models.StatusTimeout), string(models.StatusUnknownError), string(models.DetectedRejected):
		return errorStyle
	}
	return valueStyle
}

func printField(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%s %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Validate and view candidate profiles",
	Long:  "Candidate profiles are YAML files holding the applicant data used to fill forms",
}

var validateProfileCmd = &cobra.Command{
	Use:         "validate <file>",
	Short:       "Check a profile file",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := profile.Load(args[0]); err != nil {
			var ve *profile.ValidationError
			if errors.As(err, &ve) {
				fmt.Println(errorStyle.Render("✗ Profile is invalid"))
				for _, p := range ve.Problems {
					fmt.Printf("  • %s\n", p)
				}
				return fmt.Errorf("%d problem(s) in %s", len(ve.Problems), args[0])
			}
			return err
		}
		fmt.Println(successStyle.Render("✓ Profile is valid"))
		return nil
	},
}

var showProfileCmd = &cobra.Command{
	Use:         "show <file>",
	Short:       "Display a profile file",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Candidate Profile"))
		printField("User ID:", p.UserID)
		printField("Name:", p.FullName())
		printField("Email:", p.Email)
		printField("Phone:", p.Phone)
		printField("Location:", p.Location)
		printField("LinkedIn:", p.LinkedInURL)
		printField("Portfolio:", p.PortfolioURL)
		if p.ExperienceYears > 0 {
			printField("Experience:", fmt.Sprintf("%d years", p.ExperienceYears))
		}
		printField("Work Authorized:", p.WorkAuthorized)
		printField("Availability:", p.Availability)
		printField("Salary:", p.SalaryExpectation)
		if p.CoverLetter != "" || p.CoverLetterPath != "" {
			printField("Cover Letter:", "✓ Provided")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(validateProfileCmd)
	profileCmd.AddCommand(showProfileCmd)
}
