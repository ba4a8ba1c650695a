package cmd

import (
	"fmt"
	"strings"

	"github.com/khrees2412/autoapply/internal/applicator"
	"github.com/khrees2412/autoapply/internal/profile"
	"github.com/khrees2412/autoapply/internal/worker"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <url>",
	Short: "Apply to a single job posting",
	Long: `Open the posting in a headless browser, fill and submit the application.
Greenhouse and generic forms are filled in place; postings that ask for an
email get a prepared message sent through the configured mailer.`,
	Args: cobra.ExactArgs(1),
	Example: `  autoapply apply https://boards.greenhouse.io/acme/jobs/123 --profile me.yaml --resume cv.pdf
  autoapply apply https://acme.example/jobs/analyst --profile me.yaml --resume cv.pdf --job-id acme-analyst`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		profilePath, _ := cmd.Flags().GetString("profile")
		resumePath, _ := cmd.Flags().GetString("resume")
		coverLetterPath, _ := cmd.Flags().GetString("cover-letter-file")
		jobID, _ := cmd.Flags().GetString("job-id")

		p, err := profile.Load(profilePath)
		if err != nil {
			return err
		}
		if coverLetterPath != "" {
			p.CoverLetterPath = coverLetterPath
		}
		if jobID != "" {
			p.JobID = jobID
		}

		fmt.Println(titleStyle.Render("Applying"))
		printField("URL:", args[0])
		printField("Candidate:", fmt.Sprintf("%s <%s>", p.FullName(), p.Email))
		fmt.Println("\n⏳ Starting browser automation...")

		out := a.Runner.RunOne(cmd.Context(), worker.Job{URL: args[0], Profile: p, ResumePath: resumePath})
		renderOutcome(out)
		if out.Attempt.Status != models.StatusSuccess {
			return fmt.Errorf("application ended with status %s", out.Attempt.Status)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <jobs.yaml>",
	Short: "Apply to every posting in a batch file",
	Args:  cobra.ExactArgs(1),
	Example: `  autoapply batch jobs.yaml
  autoapply batch jobs.yaml --workers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		b, err := profile.LoadBatch(args[0])
		if err != nil {
			return err
		}
		base, err := profile.Load(b.Profile)
		if err != nil {
			return err
		}

		jobs := make([]worker.Job, 0, len(b.Jobs))
		for _, j := range b.Jobs {
			p, resume := b.ForJob(base, j)
			jobs = append(jobs, worker.Job{URL: j.URL, Profile: p, ResumePath: resume})
		}

		runner := a.Runner
		if w, _ := cmd.Flags().GetInt("workers"); w == 0 && b.Workers > 0 {
			runner = worker.NewRunner(a.Engine, a.Log,
				worker.WithStore(a.Store),
				worker.WithSender(a.Mailer),
				worker.WithMetrics(a.Metrics),
				worker.WithWorkers(b.Workers),
			)
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Applying to %d jobs with %d workers", len(jobs), runner.Workers())))
		outcomes, err := runner.Run(cmd.Context(), jobs)
		for _, out := range outcomes {
			renderOutcome(out)
		}
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n", labelStyle.Render("Summary"))
		summary := worker.Summary(outcomes)
		for _, status := range []models.Status{
			models.StatusSuccess, models.StatusFailed, models.StatusCaptchaRequired,
			models.StatusLoginRequired, models.StatusAlreadyApplied, models.StatusTimeout,
			models.StatusUnknownError,
		} {
			if n := summary[status]; n > 0 {
				fmt.Printf("  %s: %d\n", statusStyle(string(status)).Render(string(status)), n)
			}
		}
		return nil
	},
}

func renderOutcome(out worker.Outcome) {
	att := out.Attempt
	if att == nil {
		return
	}
	fmt.Printf("\n%s %s\n", statusStyle(string(att.Status)).Render(strings.ToUpper(string(att.Status))), att.JobURL)
	printField("  Job:", fmt.Sprintf("%s/%s", out.Job.Profile.UserID, out.Job.Profile.JobID))
	printField("  ATS:", string(att.ATSType))
	printField("  Confirmation:", att.ConfirmationNumber)
	printField("  Reply-to alias:", att.ConfirmationEmail)
	if len(att.StepsCompleted) > 0 {
		printField("  Steps:", strings.Join(att.StepsCompleted, ", "))
	}
	if ea, ok := att.Metadata[applicator.MetaEmailApplication].(applicator.EmailApplication); ok {
		sent := "✗ Not sent"
		if out.Dispatched {
			sent = "✓ Sent"
		}
		printField("  Email to:", fmt.Sprintf("%s (%s)", ea.To, sent))
	}
	for _, e := range att.Errors {
		fmt.Printf("  %s %s\n", errorStyle.Render("error:"), e)
	}
	for _, w := range append(append([]string{}, att.Warnings...), out.Warnings...) {
		fmt.Printf("  %s %s\n", warnStyle.Render("warning:"), w)
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(batchCmd)

	applyCmd.Flags().String("profile", "", "Candidate profile YAML file")
	applyCmd.Flags().String("resume", "", "Resume file to upload (pdf, doc, docx)")
	applyCmd.Flags().String("cover-letter-file", "", "Cover letter file to upload")
	applyCmd.Flags().String("job-id", "", "Job identifier (default: derived from the URL)")
	applyCmd.Flags().Bool("no-forwarding", false, "Do not issue a forwarding alias")
	_ = applyCmd.MarkFlagRequired("profile")
	_ = applyCmd.MarkFlagRequired("resume")

	batchCmd.Flags().Int("workers", 0, "Concurrent attempts (default: batch file or config)")
	batchCmd.Flags().Bool("no-forwarding", false, "Do not issue forwarding aliases")
}
