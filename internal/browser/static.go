package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher loads the markup behind a URL.
type Fetcher func(ctx context.Context, url string) (string, error)

// ClickRule replaces the document when an element matching Selector is clicked.
type ClickRule struct {
	Selector string
	HTML     string
	URL      string
}

// StaticPage is a Page over a parsed HTML document. Scripts never run:
// form interaction mutates the parsed tree and clicks follow ClickRules.
type StaticPage struct {
	mu      sync.Mutex
	url     string
	doc     *goquery.Document
	fetch   Fetcher
	rules   []ClickRule
	clicks  []string
	uploads map[string][]string
	closed  bool
}

// StaticOption configures a StaticPage.
type StaticOption func(*StaticPage)

// WithFetcher sets how Navigate loads documents.
func WithFetcher(f Fetcher) StaticOption {
	return func(p *StaticPage) { p.fetch = f }
}

// WithClickRules registers document transitions triggered by clicks.
func WithClickRules(rules ...ClickRule) StaticOption {
	return func(p *StaticPage) { p.rules = append(p.rules, rules...) }
}

// NewStaticPage parses markup as the current document at url.
func NewStaticPage(url, markup string, opts ...StaticOption) (*StaticPage, error) {
	p := &StaticPage{uploads: make(map[string][]string)}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.load(url, markup); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *StaticPage) load(url, markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	p.url = url
	p.doc = doc
	return nil
}

func (p *StaticPage) document() *goquery.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	if p.fetch == nil {
		return fmt.Errorf("navigate %s: %w", url, ErrUnsupported)
	}
	markup, err := p.fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(url, markup)
}

func (p *StaticPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *StaticPage) Title(ctx context.Context) (string, error) {
	return strings.TrimSpace(p.document().Find("title").First().Text()), nil
}

func (p *StaticPage) Content(ctx context.Context) (string, error) {
	return p.document().Html()
}

func (p *StaticPage) Text(ctx context.Context) (string, error) {
	return RenderedText(p.document().Selection), nil
}

// RenderedText approximates innerText of the body: scripts, styles and
// hidden subtrees are dropped and whitespace is collapsed.
func RenderedText(s *goquery.Selection) string {
	body := s.Find("body")
	if body.Length() == 0 {
		body = s
	}
	body = body.Clone()
	body.Find("script,style,noscript,template,head").Remove()
	body.Find("*").Each(func(_ int, el *goquery.Selection) {
		if hiddenNode(el) {
			el.Remove()
		}
	})
	return strings.Join(strings.Fields(body.Text()), " ")
}

func (p *StaticPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	doc := p.document()
	found := doc.Find(selector)
	els := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		els = append(els, &staticElement{page: p, sel: s})
	})
	return els, nil
}

func (p *StaticPage) Evaluate(ctx context.Context, expression string, res any) error {
	return ErrUnsupported
}

func (p *StaticPage) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return ctx.Err()
}

// Screenshot writes the current markup to path.
func (p *StaticPage) Screenshot(ctx context.Context, path string) error {
	markup, err := p.Content(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, []byte(markup), 0o644)
}

func (p *StaticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *StaticPage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clicks lists a description of every clicked element in order.
func (p *StaticPage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Uploads returns files set on file inputs keyed by the input's name or id.
func (p *StaticPage) Uploads() map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]string, len(p.uploads))
	for k, v := range p.uploads {
		out[k] = v
	}
	return out
}

func (p *StaticPage) click(s *goquery.Selection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, describe(s))
	for _, r := range p.rules {
		if !s.Is(r.Selector) {
			continue
		}
		url := r.URL
		if url == "" {
			url = p.url
		}
		return p.load(url, r.HTML)
	}
	return nil
}

func describe(s *goquery.Selection) string {
	name := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok {
		return name + "#" + id
	}
	if n, ok := s.Attr("name"); ok {
		return name + "[name=" + n + "]"
	}
	return name + ":" + strings.Join(strings.Fields(s.Text()), " ")
}

func hiddenNode(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "hidden") {
		return true
	}
	style := strings.ToLower(strings.ReplaceAll(s.AttrOr("style", ""), " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func visibleNode(s *goquery.Selection) bool {
	if hiddenNode(s) {
		return false
	}
	hidden := false
	s.Parents().EachWithBreak(func(_ int, parent *goquery.Selection) bool {
		hidden = hiddenNode(parent)
		return !hidden
	})
	return !hidden
}

type staticElement struct {
	page *StaticPage
	sel  *goquery.Selection
}

var errNotFormControl = errors.New("browser: element is not a form control")

func (e *staticElement) tag() string { return goquery.NodeName(e.sel) }

func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	return visibleNode(e.sel), nil
}

func (e *staticElement) ParentVisible(ctx context.Context) (bool, error) {
	parent := e.sel.Parent()
	if parent.Length() == 0 {
		return false, nil
	}
	return visibleNode(parent), nil
}

func (e *staticElement) Attr(ctx context.Context, name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	return strings.Join(strings.Fields(e.sel.Text()), " "), nil
}

func (e *staticElement) LabelText(ctx context.Context) (string, error) {
	if id := e.sel.AttrOr("id", ""); id != "" {
		label := e.page.document().Find(fmt.Sprintf(`label[for=%q]`, id)).First()
		if label.Length() > 0 {
			return strings.Join(strings.Fields(label.Text()), " "), nil
		}
	}
	if label := e.sel.Closest("label"); label.Length() > 0 {
		return strings.Join(strings.Fields(label.Text()), " "), nil
	}
	return "", nil
}

func (e *staticElement) Value(ctx context.Context) (string, error) {
	switch e.tag() {
	case "textarea":
		return e.sel.Text(), nil
	case "select":
		opt := e.selectedOption()
		if opt.Length() == 0 {
			return "", nil
		}
		if v, ok := opt.Attr("value"); ok {
			return v, nil
		}
		return strings.TrimSpace(opt.Text()), nil
	}
	return e.sel.AttrOr("value", ""), nil
}

func (e *staticElement) selectedOption() *goquery.Selection {
	opts := e.sel.Find("option")
	if sel := opts.Filter("[selected]"); sel.Length() > 0 {
		return sel.First()
	}
	return opts.First()
}

func (e *staticElement) Fill(ctx context.Context, value string) error {
	switch e.tag() {
	case "input":
		e.sel.SetAttr("value", value)
	case "textarea":
		e.sel.SetText(value)
	case "select":
		matched := false
		e.sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			opt.RemoveAttr("selected")
			if !matched && (opt.AttrOr("value", "") == value || strings.TrimSpace(opt.Text()) == value) {
				opt.SetAttr("selected", "selected")
				matched = true
			}
		})
	default:
		return errNotFormControl
	}
	return nil
}

func (e *staticElement) Click(ctx context.Context) error {
	if e.tag() == "input" {
		switch strings.ToLower(e.sel.AttrOr("type", "")) {
		case "checkbox", "radio":
			return e.Check(ctx)
		}
	}
	return e.page.click(e.sel)
}

func (e *staticElement) Checked(ctx context.Context) (bool, error) {
	_, ok := e.sel.Attr("checked")
	return ok, nil
}

func (e *staticElement) Check(ctx context.Context) error {
	if strings.EqualFold(e.sel.AttrOr("type", ""), "radio") {
		if name := e.sel.AttrOr("name", ""); name != "" {
			e.page.document().Find(fmt.Sprintf(`input[type="radio"][name=%q]`, name)).RemoveAttr("checked")
		}
	}
	e.sel.SetAttr("checked", "checked")
	return nil
}

func (e *staticElement) Options(ctx context.Context) ([]string, error) {
	if e.tag() != "select" {
		return nil, errNotFormControl
	}
	var out []string
	e.sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		out = append(out, strings.TrimSpace(opt.Text()))
	})
	return out, nil
}

func (e *staticElement) SelectedIndex(ctx context.Context) (int, error) {
	if e.tag() != "select" {
		return -1, errNotFormControl
	}
	opts := e.sel.Find("option")
	if opts.Length() == 0 {
		return -1, nil
	}
	idx := 0
	opts.EachWithBreak(func(i int, opt *goquery.Selection) bool {
		if _, ok := opt.Attr("selected"); ok {
			idx = i
			return false
		}
		return true
	})
	return idx, nil
}

func (e *staticElement) SelectIndex(ctx context.Context, i int) error {
	if e.tag() != "select" {
		return errNotFormControl
	}
	opts := e.sel.Find("option")
	if i < 0 || i >= opts.Length() {
		return fmt.Errorf("option index %d out of range", i)
	}
	opts.RemoveAttr("selected")
	opts.Eq(i).SetAttr("selected", "selected")
	return nil
}

func (e *staticElement) SetFiles(ctx context.Context, paths ...string) error {
	if e.tag() != "input" || !strings.EqualFold(e.sel.AttrOr("type", ""), "file") {
		return errNotFormControl
	}
	key := e.sel.AttrOr("name", e.sel.AttrOr("id", "file"))
	e.page.mu.Lock()
	e.page.uploads[key] = append([]string(nil), paths...)
	e.page.mu.Unlock()
	if len(paths) > 0 {
		e.sel.SetAttr("value", `C:\fakepath\`+filepath.Base(paths[0]))
	}
	return nil
}
