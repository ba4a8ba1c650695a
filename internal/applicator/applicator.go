package applicator

import (
	"context"
	"strings"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/challenge"
	"github.com/khrees2412/autoapply/internal/fields"
	"github.com/khrees2412/autoapply/pkg/models"
)

// CanAutoApply reports whether a dedicated strategy exists for ats. Lever,
// Workday, Taleo and iCIMS pages still go through the generic form filler.
func CanAutoApply(ats models.ATSType) bool {
	switch ats {
	case models.ATSGreenhouse, models.ATSEmail, models.ATSGeneric:
		return true
	}
	return false
}

// Report is a dry-run look at a job page: nothing is filled or clicked.
type Report struct {
	URL          string                      `json:"url"`
	Title        string                      `json:"title"`
	ATSType      models.ATSType              `json:"ats_type"`
	Challenge    challenge.Result            `json:"challenge"`
	Fields       map[fields.FieldType]string `json:"fields"`
	Required     fields.RequiredCheck        `json:"required"`
	Recipient    string                      `json:"recipient,omitempty"`
	SubmitFound  bool                        `json:"submit_found"`
	NextFound    bool                        `json:"next_found"`
	LoginWall    bool                        `json:"login_wall"`
	AlreadyFiled bool                        `json:"already_applied"`
}

// Inspect classifies page and reports which selectors resolve on it.
func Inspect(ctx context.Context, page browser.Page, jobURL string) Report {
	env := NewEnv(page, jobURL, Options{}, nil)
	rep := Report{URL: jobURL, Fields: map[fields.FieldType]string{}}
	rep.Title, _ = page.Title(ctx)

	_, rep.ATSType = classify(ctx, env, []Strategy{NewGreenhouse(), NewEmail()}, NewGenericForm())
	rep.Challenge = env.Challenge.Detect(ctx)

	all := append(append([]fields.FieldType{}, fields.BasicFields...),
		fields.Resume, fields.CoverLetterFile, fields.CoverLetterText, fields.AdditionalInfo)
	for _, f := range all {
		if el, loc := env.Fields.Locate(ctx, f); el != nil {
			rep.Fields[f] = loc.String()
		}
	}
	rep.Required = env.Fields.CheckAllRequiredFieldsFilled(ctx)

	if rep.ATSType == models.ATSEmail {
		markup, _ := page.Content(ctx)
		text, _ := page.Text(ctx)
		rep.Recipient = ExtractRecipient(markup, text)
	}
	if el, _, _ := browser.FirstVisibleOf(ctx, page, submitLocators); el != nil {
		rep.SubmitFound = true
	}
	if el, _, _ := browser.FirstVisibleOf(ctx, page, nextLocators); el != nil {
		rep.NextFound = true
	}

	text, _ := page.Text(ctx)
	lower := strings.ToLower(text)
	rep.AlreadyFiled = containsAny(lower, alreadyAppliedPhrases...)
	rep.LoginWall = loginWall(ctx, page, lower)
	return rep
}
