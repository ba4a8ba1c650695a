package applicator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/confirmation"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/pkg/models"
)

// Metadata keys written on an attempt.
const (
	MetaEmailApplication = "email_application"
	MetaRecipientEmail   = "recipient_email"
	MetaForwardingEmail  = "forwarding_email"
	MetaEmailSubject     = "email_subject"
	MetaJobID            = "job_id"
	MetaJobURL           = "job_url"
	MetaResumePath       = "resume_path"
	MetaCaptchaType      = "captcha_type"
	MetaCaptchaSitekey   = "captcha_sitekey"
	MetaRequiredEmpty    = "required_fields_empty"
	MetaForwardingAlias  = "forwarding_alias"
	MetaForwardingDomain = "email_forwarding_domain"
	MetaHeadless         = "browser_headless"
)

var (
	// ErrAttemptInFlight is recorded when the same user and job are already
	// being applied to.
	ErrAttemptInFlight = errors.New("an application for this job is already in progress")

	alreadyAppliedPhrases = []string{
		"already applied",
		"application on file",
		"previously applied",
		"you have already submitted",
	}
	loginWallPhrases = []string{
		"sign in to apply",
		"log in to apply",
		"login to apply",
		"create an account to apply",
	}
	successPhrases = []string{
		"thank you",
		"application submitted",
		"application received",
		"received your application",
		"successfully submitted",
		"success",
		"we'll be in touch",
		"confirmation number",
	}
)

// AliasIssuer hands out forwarding aliases and records the ones used.
type AliasIssuer interface {
	Generate(userID, jobID, realEmail, applicationID string) (models.ForwardingAlias, error)
	Register(ctx context.Context, alias models.ForwardingAlias) error
}

// Engine runs application attempts. It is safe for concurrent use; each
// attempt gets its own browser session.
type Engine struct {
	launcher   browser.Launcher
	strategies []Strategy
	fallback   Strategy
	aliases    AliasIssuer
	opts       Options
	log        logger.Logger
	now        func() time.Time
	newID      func() string

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEngine wires an engine. aliases may be nil to disable forwarding.
func NewEngine(launcher browser.Launcher, aliases AliasIssuer, opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		launcher:   launcher,
		strategies: []Strategy{NewGreenhouse(), NewEmail()},
		fallback:   NewGenericForm(),
		aliases:    aliases,
		opts:       opts,
		log:        log,
		now:        time.Now,
		newID:      uuid.NewString,
		inflight:   make(map[string]struct{}),
	}
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Options returns the engine's options.
func (e *Engine) Options() Options { return e.opts }

// Apply runs one attempt to a terminal status. It never returns a
// non-terminal attempt, whatever happens inside.
func (e *Engine) Apply(ctx context.Context, jobURL string, profile models.CandidateProfile, resumePath string) (attempt *models.ApplicationAttempt) {
	attempt = models.NewAttempt(e.newID(), jobURL, e.now())
	attempt.SetMeta(MetaHeadless, e.opts.Headless)
	if e.opts.ForwardingEnabled && e.opts.ForwardingDomain != "" {
		attempt.SetMeta(MetaForwardingDomain, e.opts.ForwardingDomain)
	}
	log := e.log.With(
		logger.String("attempt_id", attempt.ID),
		logger.String("job_url", jobURL),
		logger.String("user_id", profile.UserID),
	)

	key := profile.UserID + "|" + profile.JobID
	if !e.claim(key) {
		attempt.AddError(ErrAttemptInFlight.Error())
		attempt.Finalize(models.StatusFailed, e.now())
		log.Warn("Skipped duplicate attempt")
		return attempt
	}
	defer e.release(key)

	if e.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.AttemptTimeout)
		defer cancel()
	}

	r := &run{engine: e, attempt: attempt, log: log}
	defer r.close()
	defer func() {
		if rec := recover(); rec != nil {
			r.finish(ctx, models.StatusUnknownError, fmt.Sprintf("unexpected failure: %v", rec))
		}
	}()

	status, err := r.execute(ctx, jobURL, profile, resumePath)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		r.finish(ctx, models.StatusTimeout, err.Error())
	case err != nil:
		r.finish(ctx, models.StatusUnknownError, err.Error())
	default:
		r.finish(ctx, status, "")
	}
	return attempt
}

func (e *Engine) claim(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[key]; busy {
		return false
	}
	e.inflight[key] = struct{}{}
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
}

func (e *Engine) classify(ctx context.Context, env *Env) (Strategy, models.ATSType) {
	return classify(ctx, env, e.strategies, e.fallback)
}

// classify asks each strategy in order and falls back to the generic form.
func classify(ctx context.Context, env *Env, strategies []Strategy, fallback Strategy) (Strategy, models.ATSType) {
	for _, s := range strategies {
		if t := s.DetectATSType(ctx, env); t != models.ATSGeneric {
			return s, t
		}
	}
	return fallback, models.ATSGeneric
}

// run is the state of one attempt.
type run struct {
	engine  *Engine
	attempt *models.ApplicationAttempt
	log     logger.Logger
	session browser.Session
	env     *Env
}

func (r *run) advance(p models.Phase) {
	if err := r.attempt.Advance(p); err != nil {
		r.log.Debug("Phase change rejected", logger.Error(err))
	}
}

func (r *run) execute(ctx context.Context, jobURL string, profile models.CandidateProfile, resumePath string) (models.Status, error) {
	e, a := r.engine, r.attempt

	r.advance(models.PhaseBrowsing)
	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	r.session = session
	r.env = NewEnv(session, jobURL, e.opts, r.log)
	r.env.attemptDir = a.ID
	r.env.stamp = e.now
	r.env.onShot = a.AddScreenshot

	navCtx := ctx
	if e.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, e.opts.NavigationTimeout)
		defer cancel()
	}
	if err := session.Navigate(navCtx, jobURL); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.AddError(fmt.Sprintf("navigation timed out after %s", e.opts.NavigationTimeout))
			return models.StatusTimeout, nil
		}
		a.AddError(fmt.Sprintf("navigation failed: %v", err))
		return models.StatusFailed, nil
	}
	if err := r.env.HumanDelay(ctx); err != nil {
		return "", err
	}
	r.env.Screenshot(ctx, "initial_page")
	a.AddStep("navigated_to_job")

	r.advance(models.PhaseClassifying)
	strategy, ats := e.classify(ctx, r.env)
	a.ATSType = ats
	a.AddStep("detected_ats_" + string(ats))
	r.log.Info("Classified job page", logger.String("ats", string(ats)))

	r.advance(models.PhaseDuplicateCheck)
	text, err := session.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	lower := strings.ToLower(text)
	if containsAny(lower, alreadyAppliedPhrases...) {
		a.AddStep("already_applied_detected")
		return models.StatusAlreadyApplied, nil
	}
	if loginWall(ctx, session, lower) {
		a.AddError("job page requires signing in")
		return models.StatusLoginRequired, nil
	}

	var alias *models.ForwardingAlias
	if e.opts.ForwardingEnabled && e.aliases != nil {
		generated, err := e.aliases.Generate(profile.UserID, profile.JobID, profile.Email, a.ID)
		if err != nil {
			a.AddWarning(fmt.Sprintf("forwarding alias unavailable, using real email: %v", err))
		} else {
			alias = &generated
			profile.Email = generated.Address
			a.ConfirmationEmail = generated.Address
			a.SetMeta(MetaForwardingAlias, generated.Address)
			a.AddStep("forwarding_alias_generated")
		}
	}

	r.advance(models.PhaseFilling)
	fill := strategy.FillForm(ctx, r.env, profile, resumePath)
	a.Merge(fill.Steps, fill.Errors, fill.Warnings)
	for k, v := range fill.Metadata {
		a.SetMeta(k, v)
	}
	if fill.Outcome != "" {
		return fill.Outcome, nil
	}
	if !fill.OK {
		return models.StatusFailed, ctx.Err()
	}

	r.advance(models.PhaseSubmitting)
	sub := strategy.SubmitApplication(ctx, r.env)
	if !sub.Submitted {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a.AddError(sub.Err)
		return models.StatusFailed, nil
	}
	for _, s := range sub.Steps {
		a.AddStep(s)
	}
	submittedAt := e.now()
	a.SubmittedAt = &submittedAt

	r.advance(models.PhaseVerifying)
	if sub.Verify {
		r.env.Screenshot(ctx, "after_submit")
		after, err := session.Text(ctx)
		if err != nil {
			return "", fmt.Errorf("read page text: %w", err)
		}
		if !containsAny(strings.ToLower(after), successPhrases...) {
			a.AddError("no success confirmation found after submit")
			return models.StatusFailed, nil
		}
		if n := confirmation.Extract(after); n != "" {
			a.ConfirmationNumber = n
		}
		a.AddStep("submission_verified")
	}

	if alias != nil {
		alias.ApplicationID = a.ID
		if err := e.aliases.Register(ctx, *alias); err != nil {
			r.log.Warn("Alias not persisted", logger.String("alias", alias.Address), logger.Error(err))
			a.AddWarning(fmt.Sprintf("forwarding alias not recorded: %v", err))
		}
	}
	return models.StatusSuccess, nil
}

// loginWall reports pages gating the form behind an account.
func loginWall(ctx context.Context, page browser.Page, lowerText string) bool {
	if containsAny(lowerText, loginWallPhrases...) {
		return true
	}
	pw, _ := browser.FirstVisible(ctx, page, browser.CSS(`input[type="password"]`))
	if pw == nil {
		return false
	}
	file, _ := browser.FirstVisible(ctx, page, browser.CSS(`input[type="file"]`))
	return file == nil
}

// finish records msg, takes the last screenshot and finalizes once.
func (r *run) finish(ctx context.Context, status models.Status, msg string) {
	a := r.attempt
	if a.Final() {
		return
	}
	if msg != "" {
		a.AddError(msg)
	}
	if r.env != nil {
		shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if status == models.StatusUnknownError {
			r.env.Screenshot(shotCtx, "error")
		}
		r.env.Screenshot(shotCtx, "final")
		cancel()
	}
	a.Finalize(status, r.engine.now())

	fields := []logger.Field{
		logger.String("status", string(a.Status)),
		logger.String("ats", string(a.ATSType)),
		logger.Int("steps", len(a.StepsCompleted)),
		logger.Int("errors", len(a.Errors)),
	}
	if a.Status == models.StatusSuccess {
		r.log.Info("Application finished", fields...)
	} else {
		r.log.Warn("Application finished", fields...)
	}
}

func (r *run) close() {
	if r.session == nil {
		return
	}
	if err := r.session.Close(); err != nil {
		r.log.Warn("Browser session close failed", logger.Error(err))
	}
}
