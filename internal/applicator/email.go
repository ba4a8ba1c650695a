package applicator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/khrees2412/autoapply/pkg/models"
)

var (
	mailtoPattern = regexp.MustCompile(`mailto:([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	emailPattern  = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)

	emailIndicators = []string{
		"mailto:",
		"apply by email",
		"apply via email",
		"email your resume",
		"email your cv",
		"send your resume to",
		"send resume to",
		"submit your resume to",
	}
	excludedRecipients = []string{"noreply", "no-reply", "donotreply"}
)

const emailTemplate = `Dear Hiring Manager,

I am writing to express my strong interest in the %[1]s position at %[2]s.

With my background and experience, I believe I would be an excellent fit for this role. I have attached my resume for your review, which provides detailed information about my qualifications and accomplishments.

I am excited about the opportunity to contribute to %[2]s and would welcome the chance to discuss how my skills align with your needs.

Thank you for considering my application. I look forward to hearing from you.

Best regards,
%[3]s
`

// EmailApplication is a prepared application waiting for an outbound sender.
type EmailApplication struct {
	To         string `json:"to"`
	ReplyTo    string `json:"reply_to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
}

// EmailStrategy handles postings that ask for applications by email. It
// only prepares the message; sending happens elsewhere.
type EmailStrategy struct{}

// NewEmail returns the email strategy.
func NewEmail() *EmailStrategy { return &EmailStrategy{} }

func (s *EmailStrategy) Type() models.ATSType { return models.ATSEmail }

// DetectATSType scans the raw markup for mailto links and email wording.
func (s *EmailStrategy) DetectATSType(ctx context.Context, env *Env) models.ATSType {
	markup, err := env.Page.Content(ctx)
	if err != nil {
		return models.ATSGeneric
	}
	if containsAny(strings.ToLower(markup), emailIndicators...) {
		return models.ATSEmail
	}
	return models.ATSGeneric
}

// FillForm finds the recipient and composes the message.
func (s *EmailStrategy) FillForm(ctx context.Context, env *Env, p models.CandidateProfile, resumePath string) FillResult {
	res := newFillResult()

	markup, err := env.Page.Content(ctx)
	if err != nil {
		res.fail("read page: %v", err)
		return res
	}
	text, _ := env.Page.Text(ctx)

	to := ExtractRecipient(markup, text)
	if to == "" {
		res.fail("no recipient email address found on page")
		return res
	}

	msg := EmailApplication{
		To:         to,
		ReplyTo:    p.Email,
		Subject:    Subject(p),
		Body:       Body(p),
		Attachment: resumePath,
	}
	res.Metadata[MetaEmailApplication] = msg
	res.Metadata[MetaRecipientEmail] = msg.To
	res.Metadata[MetaForwardingEmail] = msg.ReplyTo
	res.Metadata[MetaEmailSubject] = msg.Subject
	res.Metadata[MetaJobID] = p.JobID
	res.Metadata[MetaJobURL] = env.JobURL
	if resumePath != "" {
		res.Metadata[MetaResumePath] = resumePath
	}
	res.step("email_prepared")
	return res
}

// SubmitApplication only marks the step; the message is sent out of band.
func (s *EmailStrategy) SubmitApplication(ctx context.Context, env *Env) SubmitResult {
	return SubmitResult{Submitted: true, Steps: []string{"email_submission_prepared"}}
}

// ExtractRecipient prefers a mailto link in markup and falls back to the
// first plausible address in visible text.
func ExtractRecipient(markup, text string) string {
	for _, m := range mailtoPattern.FindAllStringSubmatch(markup, -1) {
		if !excludedRecipient(m[1]) {
			return m[1]
		}
	}
	for _, addr := range emailPattern.FindAllString(text, -1) {
		if !excludedRecipient(addr) {
			return addr
		}
	}
	return ""
}

func excludedRecipient(addr string) bool {
	return containsAny(strings.ToLower(addr), excludedRecipients...)
}

// Subject is "Application for {title} - {name}".
func Subject(p models.CandidateProfile) string {
	return fmt.Sprintf("Application for %s - %s", or(p.JobTitle, "Position"), p.FullName())
}

// Body returns the cover letter when present, else the default letter.
func Body(p models.CandidateProfile) string {
	if strings.TrimSpace(p.CoverLetter) != "" {
		return p.CoverLetter
	}
	return fmt.Sprintf(emailTemplate, or(p.JobTitle, "the position"), or(p.CompanyName, "your company"), p.FullName())
}
