package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/khrees2412/autoapply/internal/applicator"
	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/fields"
	"github.com/khrees2412/autoapply/internal/profile"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Dry run: report what autoapply sees on a posting",
	Long: `Fetch the posting over plain HTTP and report the detected ATS, challenge
widgets, resolvable form fields and submit controls. Nothing is submitted.
With --profile the basic fields are filled in the local snapshot to show
which ones would be covered.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profilePath, _ := cmd.Flags().GetString("profile")
		asJSON, _ := cmd.Flags().GetBool("json")

		fetch := browser.HTTPFetcher(&http.Client{Timeout: 30 * time.Second})
		markup, err := fetch(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", args[0], err)
		}
		page, err := browser.NewStaticPage(args[0], markup)
		if err != nil {
			return err
		}
		defer page.Close()

		rep := applicator.Inspect(ctx, page, args[0])

		var fill map[fields.FieldType]fields.Outcome
		if profilePath != "" {
			p, err := profile.Load(profilePath)
			if err != nil {
				return err
			}
			r := fields.NewResolver(page, nil)
			fill = r.FillAllBasicFields(ctx, p)
			rep.Required = r.CheckAllRequiredFieldsFilled(ctx)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				applicator.Report
				Fill map[fields.FieldType]fields.Outcome `json:"fill,omitempty"`
			}{rep, fill})
		}

		fmt.Println(titleStyle.Render("Inspection"))
		printField("URL:", rep.URL)
		printField("Title:", rep.Title)
		printField("ATS:", string(rep.ATSType))
		if applicator.CanAutoApply(rep.ATSType) {
			printField("Auto-apply:", "✓ Supported")
		}
		if rep.Challenge.Detected {
			fmt.Printf("%s %s\n", labelStyle.Render("Challenge:"), warnStyle.Render(string(rep.Challenge.Type)))
		}
		printField("Email to:", rep.Recipient)
		if rep.LoginWall {
			fmt.Println(warnStyle.Render("Login required before applying"))
		}
		if rep.AlreadyFiled {
			fmt.Println(warnStyle.Render("Page reports an existing application"))
		}

		fmt.Printf("\n%s\n", labelStyle.Render("Fields"))
		all := append(append([]fields.FieldType{}, fields.BasicFields...),
			fields.Resume, fields.CoverLetterFile, fields.CoverLetterText, fields.AdditionalInfo)
		for _, f := range all {
			sel, ok := rep.Fields[f]
			switch {
			case !ok:
				fmt.Printf("  ✗ %s\n", f)
			case fill != nil && fill[f] != "":
				fmt.Printf("  ✓ %s %s (%s)\n", f, valueStyle.Render(sel), fill[f])
			default:
				fmt.Printf("  ✓ %s %s\n", f, valueStyle.Render(sel))
			}
		}

		fmt.Printf("\n%s\n", labelStyle.Render("Controls"))
		fmt.Printf("  Submit: %v\n", rep.SubmitFound)
		fmt.Printf("  Next:   %v\n", rep.NextFound)
		fmt.Printf("  Required fields: %d", rep.Required.TotalRequired)
		if len(rep.Required.EmptyFields) > 0 {
			fmt.Printf(" (empty: %v)", rep.Required.EmptyFields)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("profile", "", "Candidate profile to trial-fill the snapshot with")
	inspectCmd.Flags().Bool("json", false, "Print the report as JSON")
}
