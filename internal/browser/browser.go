// Package browser defines the page automation capability the apply engine
// drives, with a chromedp implementation for live runs and a goquery
// implementation for static snapshots.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnsupported is returned by drivers that cannot perform an operation.
	ErrUnsupported = errors.New("browser: operation not supported")
	// ErrStaleElement means the element left the document.
	ErrStaleElement = errors.New("browser: stale element")
	// ErrIdleTimeout means the page did not settle in time.
	ErrIdleTimeout = errors.New("browser: timed out waiting for idle")
)

// Element is a handle to one node of the current document.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	// ParentVisible reports whether the closest ancestor is rendered.
	ParentVisible(ctx context.Context) (bool, error)
	Attr(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	// LabelText returns the text of the label associated with a form control.
	LabelText(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	Checked(ctx context.Context) (bool, error)
	Check(ctx context.Context) error
	Options(ctx context.Context) ([]string, error)
	SelectedIndex(ctx context.Context) (int, error)
	SelectIndex(ctx context.Context, i int) error
	SetFiles(ctx context.Context, paths ...string) error
}

// Page is the browsing capability for a single tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Content returns the raw markup of the document.
	Content(ctx context.Context) (string, error)
	// Text returns the rendered text of the body.
	Text(ctx context.Context) (string, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Evaluate(ctx context.Context, expression string, res any) error
	WaitIdle(ctx context.Context, timeout time.Duration) error
	Screenshot(ctx context.Context, path string) error
}

// Session is a page owned by exactly one attempt. Close releases it.
type Session interface {
	Page
	Close() error
}

// Launcher opens browsing sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Locator is one selector strategy: a CSS query optionally narrowed by
// case-insensitive attribute, text or label matching done client side.
type Locator struct {
	CSS string
	// Attr and Contains narrow CSS matches to elements whose attribute
	// contains every substring.
	Attr     string
	Contains []string
	// Text narrows matches to elements whose text (or value attribute) contains it.
	Text string
	// Label resolves controls through <label for=...> elements containing it.
	Label string
}

func (l Locator) String() string {
	var b strings.Builder
	b.WriteString(l.CSS)
	if l.Label != "" {
		fmt.Fprintf(&b, "label(%q)", l.Label)
	}
	if l.Attr != "" {
		fmt.Fprintf(&b, "[%s~%q]", l.Attr, strings.Join(l.Contains, "+"))
	}
	if l.Text != "" {
		fmt.Fprintf(&b, ":text(%q)", l.Text)
	}
	return b.String()
}

// CSS is a Locator for a plain selector.
func CSS(selector string) Locator { return Locator{CSS: selector} }

// AttrContains is a Locator narrowing selector to elements whose attr
// contains all of substrs.
func AttrContains(selector, attr string, substrs ...string) Locator {
	return Locator{CSS: selector, Attr: attr, Contains: substrs}
}

// WithText is a Locator narrowing selector by text substring.
func WithText(selector, text string) Locator {
	return Locator{CSS: selector, Text: text}
}

// ByLabel is a Locator resolving controls through their label text.
func ByLabel(text string) Locator { return Locator{Label: text} }

// Find resolves a locator to all matching elements in document order.
func Find(ctx context.Context, page Page, loc Locator) ([]Element, error) {
	if loc.Label != "" {
		return findByLabel(ctx, page, loc.Label)
	}
	els, err := page.QueryAll(ctx, loc.CSS)
	if err != nil {
		return nil, err
	}
	if loc.Attr == "" && loc.Text == "" {
		return els, nil
	}
	out := els[:0]
	for _, el := range els {
		ok, err := matches(ctx, el, loc)
		if err != nil {
			continue
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}

func matches(ctx context.Context, el Element, loc Locator) (bool, error) {
	if loc.Attr != "" {
		v, err := el.Attr(ctx, loc.Attr)
		if err != nil {
			return false, err
		}
		for _, sub := range loc.Contains {
			if !containsFold(v, sub) {
				return false, nil
			}
		}
	}
	if loc.Text != "" {
		t, err := ElementText(ctx, el)
		if err != nil {
			return false, err
		}
		if !containsFold(t, loc.Text) {
			return false, nil
		}
	}
	return true, nil
}

func findByLabel(ctx context.Context, page Page, text string) ([]Element, error) {
	labels, err := page.QueryAll(ctx, "label")
	if err != nil {
		return nil, err
	}
	var out []Element
	for _, l := range labels {
		t, err := l.Text(ctx)
		if err != nil || !containsFold(t, text) {
			continue
		}
		id, err := l.Attr(ctx, "for")
		if err != nil || id == "" {
			continue
		}
		targets, err := page.QueryAll(ctx, fmt.Sprintf(`[id=%q]`, id))
		if err != nil {
			continue
		}
		out = append(out, targets...)
	}
	return out, nil
}

// FirstVisible returns the first visible element a locator resolves to,
// or nil when there is none.
func FirstVisible(ctx context.Context, page Page, loc Locator) (Element, error) {
	els, err := Find(ctx, page, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if v, err := el.Visible(ctx); err == nil && v {
			return el, nil
		}
	}
	return nil, nil
}

// FirstVisibleOf tries locators in order and returns the first hit.
func FirstVisibleOf(ctx context.Context, page Page, locs []Locator) (Element, Locator, error) {
	for _, loc := range locs {
		el, err := FirstVisible(ctx, page, loc)
		if err != nil {
			continue
		}
		if el != nil {
			return el, loc, nil
		}
	}
	return nil, Locator{}, nil
}

// Exists reports whether selector matches anything, visible or not.
func Exists(ctx context.Context, page Page, selector string) bool {
	els, err := page.QueryAll(ctx, selector)
	return err == nil && len(els) > 0
}

// ElementText returns an element's text, falling back to its value
// attribute for input buttons.
func ElementText(ctx context.Context, el Element) (string, error) {
	t, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(t) != "" {
		return t, nil
	}
	return el.Attr(ctx, "value")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
