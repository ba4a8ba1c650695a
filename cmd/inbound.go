package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/khrees2412/autoapply/internal/classifier"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/spf13/cobra"
)

var inboundCmd = &cobra.Command{
	Use:   "inbound",
	Short: "Process replies sent to forwarding aliases",
	Long:  "Run the inbound pipeline offline, the same one the webhook server uses",
}

var processInboundCmd = &cobra.Command{
	Use:   "process",
	Short: "Classify, record and relay one inbound email",
	Example: `  autoapply inbound process --to u1.acme.20261016@apply.autoapply.dev \
    --from recruiting@acme.example --subject "Interview invitation" --body-file reply.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		in, err := inboundFromFlags(cmd)
		if err != nil {
			return err
		}

		res := a.Forwarding.ProcessIncomingEmail(cmd.Context(), in)
		a.Metrics.ObserveInbound(string(res.DetectedStatus), res.Success, res.Forwarded)

		if res.Classification != nil {
			renderClassification(*res.Classification)
		}
		if res.StatusUpdate {
			fmt.Println(successStyle.Render("✓ Application record updated"))
		}
		if res.Forwarded {
			fmt.Println(successStyle.Render("✓ Relayed to candidate"))
		}
		if res.Error != "" {
			fmt.Printf("%s %s\n", warnStyle.Render("warning:"), res.Error)
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	},
}

var classifyInboundCmd = &cobra.Command{
	Use:         "classify",
	Short:       "Classify an email without recording or relaying it",
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := inboundFromFlags(cmd)
		if err != nil {
			return err
		}
		renderClassification(classifier.Parse(in.From, in.Subject, in.Body, in.HTMLBody))
		return nil
	},
}

func inboundFromFlags(cmd *cobra.Command) (models.InboundEmail, error) {
	var in models.InboundEmail
	in.To, _ = cmd.Flags().GetString("to")
	in.From, _ = cmd.Flags().GetString("from")
	in.Subject, _ = cmd.Flags().GetString("subject")

	bodyFile, _ := cmd.Flags().GetString("body-file")
	htmlFile, _ := cmd.Flags().GetString("html-file")
	var err error
	if in.Body, err = readInput(bodyFile); err != nil {
		return in, fmt.Errorf("failed to read body: %w", err)
	}
	if in.HTMLBody, err = readInput(htmlFile); err != nil {
		return in, fmt.Errorf("failed to read html body: %w", err)
	}
	return in, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func renderClassification(c models.EmailClassification) {
	fmt.Println(titleStyle.Render("Classification"))
	fmt.Printf("%s %s\n", labelStyle.Render("Detected:"), statusStyle(string(c.DetectedStatus)).Render(string(c.DetectedStatus)))
	printField("Reference:", c.ConfirmationNumber)
	printField("Company:", c.CompanyName)
	printField("Automated:", fmt.Sprint(c.IsAutomated))
}

func init() {
	rootCmd.AddCommand(inboundCmd)
	inboundCmd.AddCommand(processInboundCmd)
	inboundCmd.AddCommand(classifyInboundCmd)

	for _, c := range []*cobra.Command{processInboundCmd, classifyInboundCmd} {
		c.Flags().String("from", "", "Sender address")
		c.Flags().String("subject", "", "Subject line")
		c.Flags().String("body-file", "", "Plain text body file ('-' for stdin)")
		c.Flags().String("html-file", "", "HTML body file ('-' for stdin)")
		_ = c.MarkFlagRequired("from")
	}
	processInboundCmd.Flags().String("to", "", "Forwarding alias the email was sent to")
	_ = processInboundCmd.MarkFlagRequired("to")
}
