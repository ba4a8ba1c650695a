package fields

import (
	"context"
	"testing"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolver(t *testing.T, markup string) (*Resolver, *browser.StaticPage) {
	t.Helper()
	p, err := browser.NewStaticPage("https://example.com/apply", markup)
	require.NoError(t, err)
	return NewResolver(p, nil), p
}

func value(t *testing.T, p *browser.StaticPage, selector string) string {
	t.Helper()
	els, err := p.QueryAll(context.Background(), selector)
	require.NoError(t, err)
	require.NotEmpty(t, els, selector)
	v, err := els[0].Value(context.Background())
	require.NoError(t, err)
	return v
}

func TestFindAndFillPrefersVisible(t *testing.T) {
	r, p := resolver(t, `<html><body>
		<input name="first_name_hidden" style="display:none">
		<input placeholder="First Name" id="fn">
	</body></html>`)

	ok := r.FindAndFill(context.Background(), FirstName, "Ada", true)
	assert.True(t, ok)
	assert.Equal(t, "Ada", value(t, p, "#fn"))
	assert.Equal(t, "", value(t, p, `input[name="first_name_hidden"]`))
}

func TestFindAndFillByLabel(t *testing.T) {
	r, p := resolver(t, `<html><body>
		<label for="q1">Last Name *</label><input id="q1">
	</body></html>`)

	assert.True(t, r.FindAndFill(context.Background(), LastName, "Lovelace", true))
	assert.Equal(t, "Lovelace", value(t, p, "#q1"))
}

func TestFindAndFillMissing(t *testing.T) {
	r, _ := resolver(t, `<html><body><input name="unrelated"></body></html>`)
	assert.False(t, r.FindAndFill(context.Background(), Email, "ada@example.com", true))
	assert.False(t, r.FindAndFill(context.Background(), Portfolio, "https://ada.dev", false))
}

func TestFillAllBasicFields(t *testing.T) {
	r, p := resolver(t, `<html><body><form>
		<input name="job_application[first_name]">
		<input name="job_application[last_name]">
		<input type="email" name="job_application[email]">
		<input type="tel" name="job_application[phone]">
		<input name="job_application[location]">
	</form></body></html>`)

	profile := models.CandidateProfile{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		Phone:       "+1 555 0100",
		LinkedInURL: "https://linkedin.com/in/ada",
	}
	got := r.FillAllBasicFields(context.Background(), profile)

	assert.Equal(t, map[FieldType]Outcome{
		FirstName: Filled,
		LastName:  Filled,
		FullName:  NotFound,
		Email:     Filled,
		Phone:     Filled,
		LinkedIn:  NotFound,
		Portfolio: SkippedEmpty,
		Location:  SkippedEmpty,
	}, got)
	assert.Equal(t, "ada@example.com", value(t, p, `input[type="email"]`))
	assert.Equal(t, "+1 555 0100", value(t, p, `input[type="tel"]`))
}

func TestCheckAllRequiredFieldsFilled(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		filled bool
		empty  []string
		total  int
	}{
		{
			name:   "hidden required input is ignored",
			markup: `<input name="ghost" required style="display:none"><input name="email" required value="a@b.co">`,
			filled: true,
			empty:  []string{},
			total:  1,
		},
		{
			name:   "visible empty required input fails",
			markup: `<input name="email" required>`,
			filled: false,
			empty:  []string{"email"},
			total:  1,
		},
		{
			name: "select uses selected value",
			markup: `<select name="country" required><option value="">Choose</option><option value="us">US</option></select>
				<select name="size" required><option value="">Choose</option><option value="m" selected>M</option></select>`,
			filled: false,
			empty:  []string{"country"},
			total:  2,
		},
		{
			name:   "unchecked required checkbox and aria-required textarea",
			markup: `<input type="checkbox" name="terms" required><textarea id="why" aria-required="true"></textarea>`,
			filled: false,
			empty:  []string{"terms", "why"},
			total:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := resolver(t, "<html><body><form>"+tt.markup+"</form></body></html>")
			res := r.CheckAllRequiredFieldsFilled(context.Background())
			assert.Equal(t, tt.filled, res.AllFilled)
			assert.Equal(t, tt.empty, res.EmptyFields)
			assert.Equal(t, tt.total, res.TotalRequired)
		})
	}
}

func TestLocateDoesNotFill(t *testing.T) {
	r, p := resolver(t, `<html><body><textarea name="cover_letter"></textarea></body></html>`)
	el, loc := r.Locate(context.Background(), CoverLetterText)
	require.NotNil(t, el)
	assert.Equal(t, "textarea", loc.CSS)
	assert.Equal(t, "", value(t, p, "textarea"))
}
