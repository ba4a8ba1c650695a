package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/khrees2412/autoapply/internal/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeOptions configures the chromedp launcher.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	Logger   logger.Logger
}

// ChromeLauncher starts one headless Chrome per session.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher returns a Launcher backed by chromedp.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &ChromeLauncher{opts: opts}
}

// Launch starts a browser whose lifetime is bound to the returned session.
// The session outlives ctx only until Close is called.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(l.opts.UserAgent),
	)
	if l.opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(l.opts.ExecPath))
	}

	log := l.opts.Logger
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), flags...)
	bctx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...any) {
		msg := fmt.Sprintf(format, v...)
		if strings.Contains(msg, "could not unmarshal event") ||
			strings.Contains(msg, "unknown PrivateNetworkRequestPolicy") ||
			strings.Contains(msg, "unknown ClientNavigationReason") {
			return
		}
		log.Debug("chromedp", logger.String("message", msg))
	}))

	page := &ChromePage{
		bctx: bctx,
		release: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	// The first run allocates the browser and must use the tab context
	// itself, not a derived one, or the process dies with the derived context.
	if err := chromedp.Run(bctx); err != nil {
		page.release()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return page, nil
}

// ChromePage drives a single Chrome tab.
type ChromePage struct {
	bctx    context.Context
	release func()
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.bctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *ChromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *ChromePage) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *ChromePage) Text(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

// QueryAll tags each match with a data attribute so later element
// operations can address it without holding protocol node ids.
func (p *ChromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	expr := fmt.Sprintf(`(() => {
		window.__aaSeq = window.__aaSeq || 0;
		return Array.from(document.querySelectorAll(%s)).map(el => {
			if (!el.dataset.aaRef) { el.dataset.aaRef = String(++window.__aaSeq); }
			return el.dataset.aaRef;
		});
	})()`, jsString(selector))
	var refs []string
	if err := p.run(ctx, chromedp.Evaluate(expr, &refs)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]Element, 0, len(refs))
	for _, ref := range refs {
		els = append(els, &chromeElement{page: p, sel: fmt.Sprintf(`[data-aa-ref="%s"]`, ref)})
	}
	return els, nil
}

func (p *ChromePage) Evaluate(ctx context.Context, expression string, res any) error {
	return p.run(ctx, chromedp.Evaluate(expression, res))
}

// WaitIdle polls until the document finished loading, then lets pending
// requests settle briefly.
func (p *ChromePage) WaitIdle(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var state string
		if err := p.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err == nil && state == "complete" {
			return Sleep(ctx, 500*time.Millisecond)
		}
		if time.Now().After(deadline) {
			return ErrIdleTimeout
		}
		if err := Sleep(ctx, 250*time.Millisecond); err != nil {
			return err
		}
	}
}

func (p *ChromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close shuts down the tab and its browser process.
func (p *ChromePage) Close() error {
	if p.release != nil {
		p.release()
		p.release = nil
	}
	return nil
}

type chromeElement struct {
	page *ChromePage
	sel  string
}

const visibleJS = `const vis = (n) => {
	const st = window.getComputedStyle(n);
	if (st.display === 'none' || st.visibility === 'hidden') { return false; }
	const r = n.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
};`

// eval runs body with el bound to the element; body must return a value.
func (e *chromeElement) eval(ctx context.Context, body string, res any) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { throw new Error("stale element"); }
		%s
		%s
	})()`, jsString(e.sel), visibleJS, body)
	if err := e.page.run(ctx, chromedp.Evaluate(expr, res)); err != nil {
		if strings.Contains(err.Error(), "stale element") {
			return ErrStaleElement
		}
		return err
	}
	return nil
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var ok bool
	err := e.eval(ctx, `return vis(el);`, &ok)
	return ok, err
}

func (e *chromeElement) ParentVisible(ctx context.Context) (bool, error) {
	var ok bool
	err := e.eval(ctx, `return !!el.parentElement && vis(el.parentElement);`, &ok)
	return ok, err
}

func (e *chromeElement) Attr(ctx context.Context, name string) (string, error) {
	var v string
	err := e.eval(ctx, fmt.Sprintf(`return el.getAttribute(%s) || "";`, jsString(name)), &v)
	return v, err
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var v string
	err := e.eval(ctx, `return (el.innerText || el.textContent || "").trim();`, &v)
	return v, err
}

func (e *chromeElement) LabelText(ctx context.Context) (string, error) {
	var v string
	err := e.eval(ctx, `let l = null;
		if (el.id) { l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]'); }
		if (!l) { l = el.closest('label'); }
		return l ? (l.innerText || l.textContent || "").trim() : "";`, &v)
	return v, err
}

func (e *chromeElement) Value(ctx context.Context) (string, error) {
	var v string
	err := e.eval(ctx, `return el.value == null ? "" : String(el.value);`, &v)
	return v, err
}

// Fill sets the value through the native setter so framework-managed
// inputs observe the change.
func (e *chromeElement) Fill(ctx context.Context, value string) error {
	var ok bool
	return e.eval(ctx, fmt.Sprintf(`el.focus();
		const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
			: el instanceof HTMLSelectElement ? HTMLSelectElement.prototype
			: HTMLInputElement.prototype;
		Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, %s);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.blur();
		return true;`, jsString(value)), &ok)
}

func (e *chromeElement) Click(ctx context.Context) error {
	clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.page.run(clickCtx, chromedp.Click(e.sel, chromedp.ByQuery)); err == nil {
		return nil
	}
	var ok bool
	return e.eval(ctx, `el.scrollIntoView({ block: 'center' }); el.click(); return true;`, &ok)
}

func (e *chromeElement) Checked(ctx context.Context) (bool, error) {
	var ok bool
	err := e.eval(ctx, `return !!el.checked;`, &ok)
	return ok, err
}

func (e *chromeElement) Check(ctx context.Context) error {
	var ok bool
	return e.eval(ctx, `if (!el.checked) { el.click(); } return !!el.checked;`, &ok)
}

func (e *chromeElement) Options(ctx context.Context) ([]string, error) {
	var opts []string
	err := e.eval(ctx, `return Array.from(el.options || []).map(o => (o.text || "").trim());`, &opts)
	return opts, err
}

func (e *chromeElement) SelectedIndex(ctx context.Context) (int, error) {
	var idx int
	err := e.eval(ctx, `return typeof el.selectedIndex === 'number' ? el.selectedIndex : -1;`, &idx)
	return idx, err
}

func (e *chromeElement) SelectIndex(ctx context.Context, i int) error {
	var ok bool
	return e.eval(ctx, fmt.Sprintf(`if (!el.options || %[1]d >= el.options.length) { return false; }
		el.selectedIndex = %[1]d;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;`, i), &ok)
}

func (e *chromeElement) SetFiles(ctx context.Context, paths ...string) error {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		abs = append(abs, a)
	}
	return e.page.run(ctx, chromedp.SetUploadFiles(e.sel, abs, chromedp.ByQuery))
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
