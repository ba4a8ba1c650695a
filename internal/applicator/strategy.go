// Package applicator drives job applications through ATS-specific strategies.
package applicator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/challenge"
	"github.com/khrees2412/autoapply/internal/fields"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/upload"
	"github.com/khrees2412/autoapply/pkg/models"
)

// DefaultMaxFormSteps bounds Next/Continue navigation on multi-step forms.
const DefaultMaxFormSteps = 10

// Options tunes one engine. Zero durations disable the matching wait.
type Options struct {
	NavigationTimeout time.Duration
	IdleTimeout       time.Duration
	UploadTimeout     time.Duration
	AttemptTimeout    time.Duration
	// CaptchaWait > 0 waits that long for a person to clear a challenge.
	CaptchaWait   time.Duration
	MaxFormSteps  int
	HumanDelayMin time.Duration
	HumanDelayMax time.Duration
	ScreenshotDir string

	ForwardingEnabled bool
	ForwardingDomain  string
	Headless          bool
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 60 * time.Second,
		IdleTimeout:       10 * time.Second,
		UploadTimeout:     upload.DefaultTimeout,
		AttemptTimeout:    10 * time.Minute,
		MaxFormSteps:      DefaultMaxFormSteps,
		HumanDelayMin:     time.Second,
		HumanDelayMax:     3 * time.Second,
		ForwardingEnabled: true,
		Headless:          true,
	}
}

// FillResult is what a strategy reports back from FillForm.
type FillResult struct {
	OK       bool
	Steps    []string
	Errors   []string
	Warnings []string
	// Outcome, when set, ends the attempt with that status.
	Outcome  models.Status
	Metadata map[string]any
}

func newFillResult() FillResult {
	return FillResult{OK: true, Metadata: map[string]any{}}
}

func (r *FillResult) step(s string) { r.Steps = append(r.Steps, s) }

func (r *FillResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *FillResult) fail(format string, args ...any) {
	r.OK = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// SubmitResult is what a strategy reports back from SubmitApplication.
type SubmitResult struct {
	Submitted bool
	// Verify asks the engine to scan the resulting page for success text.
	Verify bool
	Steps  []string
	Err    string
}

// Strategy is one ATS variant.
type Strategy interface {
	Type() models.ATSType
	// DetectATSType returns Type() when the page belongs to this variant,
	// otherwise ATSGeneric.
	DetectATSType(ctx context.Context, env *Env) models.ATSType
	FillForm(ctx context.Context, env *Env, profile models.CandidateProfile, resumePath string) FillResult
	SubmitApplication(ctx context.Context, env *Env) SubmitResult
}

// Env bundles the per-attempt tools a strategy works with. It is owned by
// one attempt and never shared.
type Env struct {
	Page      browser.Page
	Fields    *fields.Resolver
	Uploads   *upload.Handler
	Challenge *challenge.Detector
	Log       logger.Logger
	Opts      Options
	JobURL    string

	rng        *rand.Rand
	onShot     func(path string)
	stamp      func() time.Time
	attemptDir string
}

// NewEnv builds the tools for page.
func NewEnv(page browser.Page, jobURL string, opts Options, log logger.Logger) *Env {
	if log == nil {
		log = logger.NewNop()
	}
	uploads := upload.NewHandler(page, log)
	if opts.UploadTimeout > 0 {
		uploads.WithTimeout(opts.UploadTimeout)
	}
	return &Env{
		Page:      page,
		Fields:    fields.NewResolver(page, log),
		Uploads:   uploads,
		Challenge: challenge.NewDetector(page, log),
		Log:       log,
		Opts:      opts,
		JobURL:    jobURL,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		stamp:     time.Now,
	}
}

// HumanDelay sleeps a random duration within the configured bounds.
func (e *Env) HumanDelay(ctx context.Context) error {
	lo, hi := e.Opts.HumanDelayMin, e.Opts.HumanDelayMax
	if hi <= 0 {
		return nil
	}
	d := lo
	if hi > lo {
		d += time.Duration(e.rng.Int64N(int64(hi - lo)))
	}
	return browser.Sleep(ctx, d)
}

// Screenshot captures a named checkpoint. Failures only log.
func (e *Env) Screenshot(ctx context.Context, name string) {
	if e.Opts.ScreenshotDir == "" {
		return
	}
	dir := e.Opts.ScreenshotDir
	if e.attemptDir != "" {
		dir = filepath.Join(dir, e.attemptDir)
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot_%s_%s.png", name, e.stamp().Format("20060102_150405")))
	if err := e.Page.Screenshot(ctx, path); err != nil {
		e.Log.Warn("Screenshot failed", logger.String("name", name), logger.Error(err))
		return
	}
	if e.onShot != nil {
		e.onShot(path)
	}
}

func (e *Env) waitIdle(ctx context.Context) {
	if e.Opts.IdleTimeout <= 0 {
		return
	}
	if err := e.Page.WaitIdle(ctx, e.Opts.IdleTimeout); err != nil {
		e.Log.Debug("Page did not settle", logger.Error(err))
	}
}
