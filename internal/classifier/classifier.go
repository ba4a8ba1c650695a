// Package classifier infers an application's status from a reply email.
package classifier

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/confirmation"
	"github.com/khrees2412/autoapply/pkg/models"
	"golang.org/x/net/publicsuffix"
)

type category struct {
	status   models.DetectedStatus
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Categories are evaluated in this fixed order and the first matching one
// wins, so an offer that mentions an interview is still an offer.
var categories = []category{
	{models.DetectedOffer, compile(
		`job offer`,
		`offer.*employment`,
		`pleased to offer`,
		`extend.*offer`,
		`offer letter`,
	)},
	{models.DetectedInterview, compile(
		`interview`,
		`schedule.*call`,
		`would like to (speak|talk|meet) with you`,
		`next steps.*conversation`,
		`phone\s+screen`,
	)},
	{models.DetectedRejected, compile(
		`unfortunately`,
		`not\s+(be\s+)?moving forward`,
		`not\s+(been\s+|be\s+)?selected`,
		`decided to (pursue|move forward with) other candidates`,
		`regret to inform`,
		`application\s+(has\s+been\s+)?declined`,
	)},
	{models.DetectedConfirmed, compile(
		`application\s+(has\s+been\s+)?received`,
		`thank you for (your )?applying`,
		`we.*received your application`,
		`application\s+(has\s+been\s+)?submitted`,
		`confirmation\s+(number|code)`,
	)},
	{models.DetectedPending, compile(
		`under review`,
		`reviewing your application`,
		`currently reviewing`,
		`will be in touch`,
	)},
}

var (
	automatedSenders = []string{
		"noreply", "no-reply", "donotreply", "automated", "auto-reply", "system@", "notifications@",
	}
	automatedSignatures = []string{
		"this is an automated message",
		"do not reply to this email",
		"this mailbox is not monitored",
	}
	personalProviders = []string{
		"gmail", "googlemail", "yahoo", "outlook", "hotmail", "live", "icloud", "me", "aol", "protonmail", "proton",
	}
)

// Parse classifies one inbound email. When the plain body is empty the
// HTML body is reduced to text and used instead.
func Parse(from, subject, body, htmlBody string) models.EmailClassification {
	if strings.TrimSpace(body) == "" && htmlBody != "" {
		body = HTMLToText(htmlBody)
	}
	return models.EmailClassification{
		DetectedStatus:     DetectStatus(subject + " " + body),
		ConfirmationNumber: confirmation.Extract(body),
		IsAutomated:        IsAutomated(from, body),
		CompanyName:        CompanyName(from),
	}
}

// DetectStatus returns the highest priority category matching text.
func DetectStatus(text string) models.DetectedStatus {
	lower := strings.ToLower(text)
	for _, c := range categories {
		for _, re := range c.patterns {
			if re.MatchString(lower) {
				return c.status
			}
		}
	}
	return models.DetectedNone
}

// IsAutomated reports whether the message came from a system sender.
func IsAutomated(from, body string) bool {
	lf := strings.ToLower(from)
	for _, ind := range automatedSenders {
		if strings.Contains(lf, ind) {
			return true
		}
	}
	lb := strings.ToLower(body)
	for _, sig := range automatedSignatures {
		if strings.Contains(lb, sig) {
			return true
		}
	}
	return false
}

// CompanyName guesses the employer from the sender's registrable domain.
// Personal mail providers yield "".
func CompanyName(from string) string {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	_, domain, ok := strings.Cut(addr, "@")
	if !ok || domain == "" {
		return ""
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		domain = etld1
	}
	label, _, _ := strings.Cut(domain, ".")
	for _, p := range personalProviders {
		if label == p {
			return ""
		}
	}
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// HTMLToText extracts readable text from an HTML email body.
func HTMLToText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	doc.Find("br").ReplaceWithHtml("\n")
	return browser.RenderedText(doc.Selection)
}
