// Package challenge detects bot challenges on the current page. It never
// attempts to solve them.
package challenge

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/logger"
)

// Type names the challenge mechanism.
type Type string

const (
	RecaptchaV2         Type = "recaptcha_v2"
	RecaptchaV3         Type = "recaptcha_v3"
	HCaptcha            Type = "hcaptcha"
	CloudflareTurnstile Type = "cloudflare_turnstile"
	None                Type = "none"
	Unknown             Type = "unknown"
)

// DefaultPollInterval is how often WaitForManualSolve re-checks the page.
const DefaultPollInterval = 2 * time.Second

// Result is the outcome of one detection pass.
type Result struct {
	Detected bool   `json:"detected"`
	Type     Type   `json:"type"`
	Sitekey  string `json:"sitekey,omitempty"`
}

var sitekeyRe = regexp.MustCompile(`data-sitekey="([^"]+)"`)

// Detector inspects a page for challenge widgets.
type Detector struct {
	page         browser.Page
	log          logger.Logger
	pollInterval time.Duration
}

// NewDetector returns a Detector bound to page.
func NewDetector(page browser.Page, log logger.Logger) *Detector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Detector{page: page, log: log, pollInterval: DefaultPollInterval}
}

// WithPollInterval overrides the manual-solve polling cadence.
func (d *Detector) WithPollInterval(interval time.Duration) *Detector {
	d.pollInterval = interval
	return d
}

// Detect checks, in order, for reCAPTCHA v2, reCAPTCHA v3, hCaptcha and
// Cloudflare Turnstile.
func (d *Detector) Detect(ctx context.Context) Result {
	res, err := d.detect(ctx)
	if err != nil {
		d.log.Warn("Challenge detection failed", logger.Error(err))
		return Result{Type: Unknown}
	}
	if res.Detected {
		d.log.Info("Challenge detected", logger.String("type", string(res.Type)))
	}
	return res
}

func (d *Detector) detect(ctx context.Context) (Result, error) {
	if d.any(ctx, `iframe[src*="recaptcha"]`, ".g-recaptcha") {
		return Result{Detected: true, Type: RecaptchaV2, Sitekey: d.sitekey(ctx, ".g-recaptcha")}, nil
	}

	if d.recaptchaV3(ctx) {
		return Result{Detected: true, Type: RecaptchaV3, Sitekey: d.sitekey(ctx, "")}, nil
	}

	if d.any(ctx, `iframe[src*="hcaptcha"]`, ".h-captcha") {
		return Result{Detected: true, Type: HCaptcha, Sitekey: d.sitekey(ctx, ".h-captcha")}, nil
	}

	title, err := d.page.Title(ctx)
	if err != nil {
		return Result{}, err
	}
	lt := strings.ToLower(title)
	if strings.Contains(lt, "cloudflare") || strings.Contains(lt, "just a moment") {
		return Result{Detected: true, Type: CloudflareTurnstile}, nil
	}

	if browser.Exists(ctx, d.page, "[data-sitekey]") {
		content, err := d.page.Content(ctx)
		if err != nil {
			return Result{}, err
		}
		if strings.Contains(strings.ToLower(content), "turnstile") {
			return Result{Detected: true, Type: CloudflareTurnstile, Sitekey: d.sitekey(ctx, ".cf-turnstile")}, nil
		}
	}

	return Result{Type: None}, nil
}

func (d *Detector) any(ctx context.Context, selectors ...string) bool {
	for _, s := range selectors {
		if browser.Exists(ctx, d.page, s) {
			return true
		}
	}
	return false
}

// recaptchaV3 has no widget; it shows as an execute-capable global or the badge.
func (d *Detector) recaptchaV3(ctx context.Context) bool {
	var hasExecute bool
	err := d.page.Evaluate(ctx, `typeof grecaptcha !== 'undefined' && typeof grecaptcha.execute === 'function'`, &hasExecute)
	if err == nil && hasExecute {
		return true
	}
	return browser.Exists(ctx, d.page, ".grecaptcha-badge")
}

// sitekey reads data-sitekey from container, else scans the raw markup.
func (d *Detector) sitekey(ctx context.Context, container string) string {
	if container != "" {
		els, err := d.page.QueryAll(ctx, container)
		if err == nil && len(els) > 0 {
			if key, err := els[0].Attr(ctx, "data-sitekey"); err == nil && key != "" {
				return key
			}
		}
	}
	content, err := d.page.Content(ctx)
	if err != nil {
		return ""
	}
	if m := sitekeyRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// WaitForManualSolve polls Detect until the challenge clears or timeout
// elapses. It returns true once the page is clear. A pass that could not
// inspect the page does not count as clear.
func (d *Detector) WaitForManualSolve(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	d.log.Info("Waiting for manual challenge solve", logger.Duration("timeout", timeout))
	for {
		if res := d.Detect(ctx); !res.Detected && res.Type != Unknown {
			d.log.Info("Challenge cleared")
			return true
		}
		if !time.Now().Add(d.pollInterval).Before(deadline) {
			d.log.Warn("Challenge still present after wait", logger.Duration("timeout", timeout))
			return false
		}
		if err := browser.Sleep(ctx, d.pollInterval); err != nil {
			return false
		}
	}
}
