package applicator

import (
	"context"
	"fmt"
	"strings"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/fields"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/pkg/models"
)

var (
	greenhouseURLHints = []string{"greenhouse.io", "boards.greenhouse", "gh_jid="}
	greenhouseMarkers  = []string{
		"#application_form",
		`[data-source="greenhouse"]`,
		".greenhouse-application",
		"#grnhse_app",
	}

	nextLocators = []browser.Locator{
		browser.WithText("button", "Next"),
		browser.WithText("button", "Continue"),
		browser.CSS(`input[value="Next"]`),
		browser.CSS(`input[value="Continue"]`),
	}

	submitLocators = []browser.Locator{
		browser.CSS(`button[type="submit"]`),
		browser.CSS(`input[type="submit"]`),
		browser.WithText("button", "Submit Application"),
		browser.WithText("button", "Send Application"),
		browser.WithText("button", "Submit"),
		browser.WithText("button", "Apply"),
		browser.WithText("a", "Submit"),
	}

	consentKeywords     = []string{"agree", "terms", "consent", "privacy", "acknowledge", "accept"}
	declineKeywords     = []string{"prefer not", "decline"}
	basicControlHints   = []string{"first", "last", "name", "email", "phone", "mobile", "linkedin", "portfolio", "website", "github", "location", "city", "resume", "cover"}
	questionInputsQuery = `input[type="text"], input:not([type]), textarea`
)

// FormStrategy fills single or multi-step HTML application forms. The
// Greenhouse variant claims pages by URL and DOM markers; the generic one
// never claims a page and serves as the fallback.
type FormStrategy struct {
	ats        models.ATSType
	urlHints   []string
	domMarkers []string
}

// NewGreenhouse returns the Greenhouse form strategy.
func NewGreenhouse() *FormStrategy {
	return &FormStrategy{ats: models.ATSGreenhouse, urlHints: greenhouseURLHints, domMarkers: greenhouseMarkers}
}

// NewGenericForm returns the fallback form strategy.
func NewGenericForm() *FormStrategy {
	return &FormStrategy{ats: models.ATSGeneric}
}

func (s *FormStrategy) Type() models.ATSType { return s.ats }

// DetectATSType checks the URL first and the DOM second.
func (s *FormStrategy) DetectATSType(ctx context.Context, env *Env) models.ATSType {
	if len(s.urlHints) == 0 && len(s.domMarkers) == 0 {
		return models.ATSGeneric
	}
	url, err := env.Page.URL(ctx)
	if err != nil || url == "" {
		url = env.JobURL
	}
	url = strings.ToLower(url)
	for _, hint := range s.urlHints {
		if strings.Contains(url, hint) {
			return s.ats
		}
	}
	for _, marker := range s.domMarkers {
		if browser.Exists(ctx, env.Page, marker) {
			return s.ats
		}
	}
	return models.ATSGeneric
}

// FillForm checks for a challenge, then fills identity fields, documents,
// screening questions, demographics and consent in that order, walking
// Next/Continue steps up to the configured limit.
func (s *FormStrategy) FillForm(ctx context.Context, env *Env, p models.CandidateProfile, resumePath string) FillResult {
	res := newFillResult()

	if ch := env.Challenge.Detect(ctx); ch.Detected {
		if env.Opts.CaptchaWait > 0 && env.Challenge.WaitForManualSolve(ctx, env.Opts.CaptchaWait) {
			res.step("challenge_solved_manually")
		} else {
			res.Metadata[MetaCaptchaType] = string(ch.Type)
			if ch.Sitekey != "" {
				res.Metadata[MetaCaptchaSitekey] = ch.Sitekey
			}
			res.fail("%s challenge detected", ch.Type)
			res.Outcome = models.StatusCaptchaRequired
			return res
		}
	}

	s.fillBasics(ctx, env, p, &res)

	if resumePath != "" {
		out := env.Uploads.UploadResume(ctx, resumePath)
		switch {
		case out.Err != nil:
			res.warn("resume upload failed: %v", out.Err)
		case !out.Verified:
			res.step("uploaded_resume")
			res.warn("resume upload not confirmed by the page")
		default:
			res.step("uploaded_resume")
		}
	}
	if p.CoverLetterPath != "" {
		out := env.Uploads.UploadCoverLetter(ctx, p.CoverLetterPath)
		if out.Err != nil {
			res.warn("cover letter upload failed: %v", out.Err)
		} else {
			res.step("uploaded_cover_letter")
		}
	}
	if p.CoverLetter != "" && env.Fields.FindAndFill(ctx, fields.CoverLetterText, p.CoverLetter, false) {
		res.step("filled_cover_letter")
	}
	if p.AdditionalInfo != "" && env.Fields.FindAndFill(ctx, fields.AdditionalInfo, p.AdditionalInfo, false) {
		res.step("filled_additional_info")
	}

	s.fillQuestions(ctx, env, p, &res)

	if err := env.HumanDelay(ctx); err != nil {
		res.fail("interrupted: %v", err)
		return res
	}

	s.walkSteps(ctx, env, p, &res)

	check := env.Fields.CheckAllRequiredFieldsFilled(ctx)
	res.Metadata[MetaRequiredEmpty] = check.EmptyFields
	if !check.AllFilled {
		res.warn("%d of %d required fields left empty: %s",
			len(check.EmptyFields), check.TotalRequired, strings.Join(check.EmptyFields, ", "))
	}
	return res
}

// fillPage handles everything on a step revealed by Next.
func (s *FormStrategy) fillPage(ctx context.Context, env *Env, p models.CandidateProfile, res *FillResult) {
	s.fillBasics(ctx, env, p, res)
	s.fillQuestions(ctx, env, p, res)
}

func (s *FormStrategy) fillBasics(ctx context.Context, env *Env, p models.CandidateProfile, res *FillResult) {
	filled := 0
	for field, outcome := range env.Fields.FillAllBasicFields(ctx, p) {
		switch outcome {
		case fields.Filled:
			filled++
		case fields.NotFound:
			if field == fields.FirstName || field == fields.LastName || field == fields.Email {
				res.warn("required field %s not found", field)
			}
		}
	}
	if filled > 0 {
		res.step(fmt.Sprintf("filled_basic_fields_%d", filled))
	}
}

// fillQuestions answers screening questions, then demographics and consent.
func (s *FormStrategy) fillQuestions(ctx context.Context, env *Env, p models.CandidateProfile, res *FillResult) {
	if n := answerQuestions(ctx, env, p); n > 0 {
		res.step(fmt.Sprintf("answered_questions_%d", n))
	}
	if n := declineDemographics(ctx, env); n > 0 {
		res.step("handled_demographics")
	}
	if n := acceptAgreements(ctx, env); n > 0 {
		res.step("accepted_agreements")
	}
}

func (s *FormStrategy) walkSteps(ctx context.Context, env *Env, p models.CandidateProfile, res *FillResult) {
	limit := env.Opts.MaxFormSteps
	if limit <= 0 {
		limit = DefaultMaxFormSteps
	}
	for step := 1; ; step++ {
		next, loc, _ := browser.FirstVisibleOf(ctx, env.Page, nextLocators)
		if next == nil {
			return
		}
		if step > limit {
			res.warn("stopped after %d form steps", limit)
			return
		}
		env.Screenshot(ctx, fmt.Sprintf("before_step_%d", step))
		if err := next.Click(ctx); err != nil {
			res.warn("could not advance form at step %d: %v", step, err)
			return
		}
		env.Log.Debug("Advanced form", logger.Int("step", step), logger.String("control", loc.String()))
		env.waitIdle(ctx)
		if err := env.HumanDelay(ctx); err != nil {
			res.fail("interrupted: %v", err)
			return
		}
		env.Screenshot(ctx, fmt.Sprintf("after_step_%d", step))
		res.step(fmt.Sprintf("completed_step_%d", step))
		s.fillPage(ctx, env, p, res)
	}
}

// SubmitApplication clicks the highest ranked visible submit control.
func (s *FormStrategy) SubmitApplication(ctx context.Context, env *Env) SubmitResult {
	el, loc, err := browser.FirstVisibleOf(ctx, env.Page, submitLocators)
	if err != nil || el == nil {
		return SubmitResult{Err: "submit button not found"}
	}
	if err := el.Click(ctx); err != nil {
		return SubmitResult{Err: fmt.Sprintf("submit click failed: %v", err)}
	}
	env.Log.Debug("Clicked submit", logger.String("control", loc.String()))
	env.waitIdle(ctx)
	if err := env.HumanDelay(ctx); err != nil {
		return SubmitResult{Err: fmt.Sprintf("interrupted: %v", err)}
	}
	return SubmitResult{Submitted: true, Verify: true, Steps: []string{"clicked_submit"}}
}

// answerQuestions fills empty visible text inputs and textareas that are
// not identity fields, and picks the first real option of unset selects.
func answerQuestions(ctx context.Context, env *Env, p models.CandidateProfile) int {
	answered := 0
	inputs, _ := env.Page.QueryAll(ctx, questionInputsQuery)
	for _, el := range inputs {
		if !usable(ctx, el) || isBasicControl(ctx, el) {
			continue
		}
		if v, _ := el.Value(ctx); strings.TrimSpace(v) != "" {
			continue
		}
		label := questionLabel(ctx, el)
		if label == "" {
			continue
		}
		if err := el.Fill(ctx, Answer(label, p)); err != nil {
			env.Log.Debug("Answer failed", logger.String("question", label), logger.Error(err))
			continue
		}
		answered++
	}

	selects, _ := env.Page.QueryAll(ctx, "select")
	for _, el := range selects {
		if !usable(ctx, el) || isBasicControl(ctx, el) {
			continue
		}
		opts, err := el.Options(ctx)
		if err != nil || len(opts) < 2 || declineIndex(opts) >= 0 {
			continue
		}
		if idx, _ := el.SelectedIndex(ctx); idx > 0 {
			continue
		}
		if err := el.SelectIndex(ctx, 1); err == nil {
			answered++
		}
	}
	return answered
}

// declineDemographics picks "prefer not to answer" style choices.
func declineDemographics(ctx context.Context, env *Env) int {
	handled := 0
	choices, _ := env.Page.QueryAll(ctx, `input[type="radio"], input[type="checkbox"]`)
	for _, el := range choices {
		if !usable(ctx, el) {
			continue
		}
		value, _ := el.Attr(ctx, "value")
		label, _ := el.LabelText(ctx)
		if !containsAny(strings.ToLower(value+" "+label), declineKeywords...) {
			continue
		}
		if checked, _ := el.Checked(ctx); checked {
			continue
		}
		if err := el.Check(ctx); err == nil {
			handled++
		}
	}

	selects, _ := env.Page.QueryAll(ctx, "select")
	for _, el := range selects {
		if !usable(ctx, el) {
			continue
		}
		opts, err := el.Options(ctx)
		if err != nil {
			continue
		}
		i := declineIndex(opts)
		if i < 0 {
			continue
		}
		if cur, _ := el.SelectedIndex(ctx); cur > 0 {
			continue
		}
		if err := el.SelectIndex(ctx, i); err == nil {
			handled++
		}
	}
	return handled
}

// acceptAgreements ticks unchecked consent boxes.
func acceptAgreements(ctx context.Context, env *Env) int {
	accepted := 0
	boxes, _ := env.Page.QueryAll(ctx, `input[type="checkbox"]`)
	for _, el := range boxes {
		if !usable(ctx, el) {
			continue
		}
		if checked, _ := el.Checked(ctx); checked {
			continue
		}
		text := strings.ToLower(questionLabel(ctx, el))
		if !containsAny(text, consentKeywords...) {
			continue
		}
		if err := el.Check(ctx); err == nil {
			accepted++
		}
	}
	return accepted
}

func declineIndex(opts []string) int {
	for i, o := range opts {
		if containsAny(strings.ToLower(o), declineKeywords...) {
			return i
		}
	}
	return -1
}

func usable(ctx context.Context, el browser.Element) bool {
	visible, err := el.Visible(ctx)
	return err == nil && visible
}

func isBasicControl(ctx context.Context, el browser.Element) bool {
	name, _ := el.Attr(ctx, "name")
	id, _ := el.Attr(ctx, "id")
	key := strings.ToLower(name + " " + id)
	if strings.TrimSpace(key) == "" {
		return false
	}
	return containsAny(key, basicControlHints...)
}

// questionLabel reads the label, then aria-label, then placeholder.
func questionLabel(ctx context.Context, el browser.Element) string {
	if l, _ := el.LabelText(ctx); strings.TrimSpace(l) != "" {
		return strings.TrimSpace(l)
	}
	for _, a := range []string{"aria-label", "placeholder"} {
		if v, _ := el.Attr(ctx, a); strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
