package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formHTML = `<html><head><title>Apply</title><script>var x = "hidden script";</script></head>
<body>
  <h1>Senior Engineer</h1>
  <form id="application_form">
    <label for="first_name">First Name</label>
    <input id="first_name" name="job_application[first_name]" required>
    <div style="display: none"><input id="ghost" name="ghost" required></div>
    <input type="hidden" name="token" value="abc">
    <textarea name="cover_letter_text"></textarea>
    <select id="source" name="source">
      <option value="">Please select</option>
      <option value="web">Web</option>
      <option value="referral">Referral</option>
    </select>
    <label><input type="checkbox" name="terms"> I agree to the terms</label>
    <div class="upload"><input type="file" name="resume" style="display:none"></div>
    <button type="submit">Submit Application</button>
    <input type="submit" value="Send">
  </form>
  <p hidden>secret</p>
</body></html>`

func newFormPage(t *testing.T, opts ...StaticOption) *StaticPage {
	t.Helper()
	p, err := NewStaticPage("https://boards.greenhouse.io/acme/jobs/1", formHTML, opts...)
	require.NoError(t, err)
	return p
}

func TestStaticPageText(t *testing.T) {
	ctx := context.Background()
	p := newFormPage(t)

	text, err := p.Text(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "Senior Engineer")
	assert.Contains(t, text, "I agree to the terms")
	assert.NotContains(t, text, "hidden script")
	assert.NotContains(t, text, "secret")

	title, err := p.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Apply", title)
}

func TestStaticVisibility(t *testing.T) {
	ctx := context.Background()
	p := newFormPage(t)

	tests := []struct {
		selector string
		visible  bool
	}{
		{"#first_name", true},
		{"#ghost", false},
		{`input[name="token"]`, false},
		{`input[type="file"]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			els, err := p.QueryAll(ctx, tt.selector)
			require.NoError(t, err)
			require.Len(t, els, 1)
			v, err := els[0].Visible(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.visible, v)
		})
	}

	file, err := FirstVisible(ctx, p, CSS(`input[type="file"]`))
	require.NoError(t, err)
	assert.Nil(t, file)

	els, _ := p.QueryAll(ctx, `input[type="file"]`)
	pv, err := els[0].ParentVisible(ctx)
	require.NoError(t, err)
	assert.True(t, pv)
}

func TestStaticFormControls(t *testing.T) {
	ctx := context.Background()
	p := newFormPage(t)

	first, err := FirstVisible(ctx, p, ByLabel("first name"))
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NoError(t, first.Fill(ctx, "Ada"))
	v, _ := first.Value(ctx)
	assert.Equal(t, "Ada", v)

	area, _ := FirstVisible(ctx, p, CSS("textarea"))
	require.NoError(t, area.Fill(ctx, "Hello"))
	v, _ = area.Value(ctx)
	assert.Equal(t, "Hello", v)

	sel, _ := FirstVisible(ctx, p, CSS("select"))
	v, _ = sel.Value(ctx)
	assert.Equal(t, "", v)
	idx, _ := sel.SelectedIndex(ctx)
	assert.Equal(t, 0, idx)
	require.NoError(t, sel.SelectIndex(ctx, 1))
	v, _ = sel.Value(ctx)
	assert.Equal(t, "web", v)
	opts, _ := sel.Options(ctx)
	assert.Equal(t, []string{"Please select", "Web", "Referral"}, opts)

	box, _ := FirstVisible(ctx, p, CSS(`input[type="checkbox"]`))
	label, _ := box.LabelText(ctx)
	assert.Equal(t, "I agree to the terms", label)
	checked, _ := box.Checked(ctx)
	assert.False(t, checked)
	require.NoError(t, box.Click(ctx))
	checked, _ = box.Checked(ctx)
	assert.True(t, checked)

	els, _ := p.QueryAll(ctx, `input[type="file"]`)
	require.NoError(t, els[0].SetFiles(ctx, "/tmp/resume.pdf"))
	assert.Equal(t, []string{"/tmp/resume.pdf"}, p.Uploads()["resume"])
}

func TestLocatorTextAndAttr(t *testing.T) {
	ctx := context.Background()
	p := newFormPage(t)

	el, err := FirstVisible(ctx, p, WithText("button", "submit"))
	require.NoError(t, err)
	require.NotNil(t, el)

	el, err = FirstVisible(ctx, p, WithText("input", "send"))
	require.NoError(t, err)
	require.NotNil(t, el, "input buttons match on value")

	el, err = FirstVisible(ctx, p, AttrContains("input", "name", "FIRST_NAME"))
	require.NoError(t, err)
	require.NotNil(t, el)

	el, err = FirstVisible(ctx, p, WithText("button", "Next"))
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestStaticClickRules(t *testing.T) {
	ctx := context.Background()
	p := newFormPage(t, WithClickRules(ClickRule{
		Selector: `button[type="submit"]`,
		HTML:     `<html><body><h2>Thank you for applying!</h2></body></html>`,
	}))

	btn, _ := FirstVisible(ctx, p, CSS(`button[type="submit"]`))
	require.NoError(t, btn.Click(ctx))

	text, _ := p.Text(ctx)
	assert.Equal(t, "Thank you for applying!", text)
	assert.Equal(t, []string{"button:Submit Application"}, p.Clicks())
}

func TestStaticScreenshotAndEvaluate(t *testing.T) {
	ctx := context.Background()
	p := newFormPage(t)

	path := filepath.Join(t.TempDir(), "shots", "page.png")
	require.NoError(t, p.Screenshot(ctx, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "application_form")

	var out bool
	assert.ErrorIs(t, p.Evaluate(ctx, "true", &out), ErrUnsupported)
}

func TestHTTPFetcherLauncher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(formHTML))
	}))
	defer srv.Close()

	ctx := context.Background()
	l := NewFetchLauncher(HTTPFetcher(srv.Client()))
	s, err := l.Launch(ctx)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/jobs/1"))
	assert.True(t, Exists(ctx, s, "#application_form"))
	u, _ := s.URL(ctx)
	assert.Equal(t, srv.URL+"/jobs/1", u)

	assert.Error(t, s.Navigate(ctx, srv.URL+"/missing"))
}

func TestFixtureLauncherUnknownURL(t *testing.T) {
	l := FixtureLauncher(map[string]string{"https://a.example/job": "<html></html>"})
	s, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Error(t, s.Navigate(context.Background(), "https://b.example/job"))
	require.NoError(t, s.Close())
	assert.True(t, l.Sessions()[0].Closed())
}
