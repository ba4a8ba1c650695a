// Package upload validates and attaches resume and cover letter files.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/logger"
)

const (
	// MaxFileSize is the largest attachment accepted.
	MaxFileSize = 5 << 20
	// DefaultTimeout bounds the wait for an upload completion indicator.
	DefaultTimeout = 30 * time.Second
)

// AllowedExtensions are the attachment formats forms commonly accept.
var AllowedExtensions = []string{".pdf", ".docx", ".doc", ".txt"}

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNoFileInput       = errors.New("no file input found")
)

var (
	resumeHints = []string{"resume", "cv"}
	coverHints  = []string{"cover", "letter"}

	successTextRe = regexp.MustCompile(`(?i)(upload(ed)?\s+(complete|successful|success)|successfully\s+uploaded|file\s+uploaded)`)
	progressDone  = []string{`.progress-bar[style*="100%"]`, `[role="progressbar"][aria-valuenow="100"]`}
)

// Validate checks existence, extension and size without touching any page.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, ErrFileNotFound)
	}

	ext := strings.ToLower(filepath.Ext(path))
	allowed := false
	for _, a := range AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	if info.Size() > MaxFileSize {
		return fmt.Errorf("%s is %.1fMB, limit %dMB: %w", filepath.Base(path), float64(info.Size())/(1<<20), MaxFileSize>>20, ErrFileTooLarge)
	}
	return nil
}

// Outcome describes one upload.
type Outcome struct {
	Uploaded bool
	// Verified is false when no completion indicator appeared and success
	// was assumed.
	Verified bool
	Err      error
}

// Handler attaches files through the page's file inputs.
type Handler struct {
	page         browser.Page
	log          logger.Logger
	timeout      time.Duration
	pollInterval time.Duration
}

// NewHandler returns a Handler bound to page.
func NewHandler(page browser.Page, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{page: page, log: log, timeout: DefaultTimeout, pollInterval: 500 * time.Millisecond}
}

// WithTimeout overrides the completion wait.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	h.timeout = d
	if d < h.pollInterval {
		h.pollInterval = d
	}
	return h
}

func (h *Handler) UploadResume(ctx context.Context, path string) Outcome {
	return h.upload(ctx, path, "resume", resumeHints)
}

func (h *Handler) UploadCoverLetter(ctx context.Context, path string) Outcome {
	return h.upload(ctx, path, "cover_letter", coverHints)
}

func (h *Handler) upload(ctx context.Context, path, kind string, hints []string) Outcome {
	log := h.log.With(logger.String("kind", kind), logger.String("file", filepath.Base(path)))
	if err := Validate(path); err != nil {
		log.Warn("Attachment rejected", logger.Error(err))
		return Outcome{Err: err}
	}

	input := h.findInput(ctx, hints)
	if input == nil {
		log.Warn("No file input found")
		return Outcome{Err: ErrNoFileInput}
	}
	if err := input.SetFiles(ctx, path); err != nil {
		log.Warn("Setting file failed", logger.Error(err))
		return Outcome{Err: fmt.Errorf("set %s file: %w", kind, err)}
	}

	if h.waitForCompletion(ctx, filepath.Base(path)) {
		log.Info("Upload confirmed")
		return Outcome{Uploaded: true, Verified: true}
	}
	return assumeUploaded(log)
}

// assumeUploaded is the fallback when a form shows no completion signal.
func assumeUploaded(log logger.Logger) Outcome {
	log.Warn("No upload completion indicator, assuming success")
	return Outcome{Uploaded: true, Verified: false}
}

// findInput prefers inputs whose name, id or aria-label carries a hint,
// then falls back to the first empty file input that is visible or sits
// in a visible container.
func (h *Handler) findInput(ctx context.Context, hints []string) browser.Element {
	for _, hint := range hints {
		for _, a := range []string{"name", "id", "aria-label"} {
			els, err := browser.Find(ctx, h.page, browser.AttrContains(`input[type="file"]`, a, hint))
			if err == nil && len(els) > 0 {
				return els[0]
			}
		}
	}

	els, err := h.page.QueryAll(ctx, `input[type="file"]`)
	if err != nil {
		return nil
	}
	for _, el := range els {
		if v, _ := el.Value(ctx); v != "" {
			continue
		}
		if vis, _ := el.Visible(ctx); vis {
			return el
		}
		if pv, _ := el.ParentVisible(ctx); pv {
			return el
		}
	}
	return nil
}

func (h *Handler) waitForCompletion(ctx context.Context, filename string) bool {
	deadline := time.Now().Add(h.timeout)
	for {
		if h.completed(ctx, filename) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if err := browser.Sleep(ctx, h.pollInterval); err != nil {
			return false
		}
	}
}

func (h *Handler) completed(ctx context.Context, filename string) bool {
	text, err := h.page.Text(ctx)
	if err == nil {
		if strings.Contains(text, filename) || successTextRe.MatchString(text) {
			return true
		}
	}
	for _, sel := range progressDone {
		if browser.Exists(ctx, h.page, sel) {
			return true
		}
	}
	return false
}
