// Package fields maps semantic form fields to page elements through
// ranked selector strategies.
package fields

import (
	"context"
	"strings"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/pkg/models"
)

// FieldType is a semantic form field.
type FieldType string

const (
	FirstName       FieldType = "first_name"
	LastName        FieldType = "last_name"
	FullName        FieldType = "full_name"
	Email           FieldType = "email"
	Phone           FieldType = "phone"
	LinkedIn        FieldType = "linkedin"
	Portfolio       FieldType = "portfolio"
	Location        FieldType = "location"
	Resume          FieldType = "resume"
	CoverLetterFile FieldType = "cover_letter_file"
	CoverLetterText FieldType = "cover_letter_text"
	AdditionalInfo  FieldType = "additional_info"
)

// Outcome is the per-field result of FillAllBasicFields.
type Outcome string

const (
	Filled       Outcome = "filled"
	NotFound     Outcome = "not_found"
	SkippedEmpty Outcome = "skipped_empty"
)

// BasicFields are the identity and contact fields filled on every form, in order.
var BasicFields = []FieldType{FirstName, LastName, FullName, Email, Phone, LinkedIn, Portfolio, Location}

var requiredBasic = map[FieldType]bool{FirstName: true, LastName: true, Email: true}

func attr(sel, name string, substrs ...string) browser.Locator {
	return browser.AttrContains(sel, name, substrs...)
}

// Selectors lists the strategies per field, most specific first.
var Selectors = map[FieldType][]browser.Locator{
	FirstName: {
		attr("input", "name", "first", "name"),
		attr("input", "id", "first", "name"),
		attr("input", "placeholder", "first name"),
		attr("input", "aria-label", "first name"),
		browser.ByLabel("First Name"),
		browser.CSS(`input[name="fname"]`),
		browser.CSS(`input[name="firstName"]`),
	},
	LastName: {
		attr("input", "name", "last", "name"),
		attr("input", "id", "last", "name"),
		attr("input", "placeholder", "last name"),
		attr("input", "aria-label", "last name"),
		browser.ByLabel("Last Name"),
		browser.CSS(`input[name="lname"]`),
		browser.CSS(`input[name="lastName"]`),
	},
	FullName: {
		attr("input", "name", "full", "name"),
		browser.CSS(`input[name="name"]`),
		attr("input", "placeholder", "full name"),
		attr("input", "placeholder", "your name"),
	},
	Email: {
		browser.CSS(`input[type="email"]`),
		attr("input", "name", "email"),
		attr("input", "id", "email"),
		attr("input", "placeholder", "email"),
		attr("input", "aria-label", "email"),
	},
	Phone: {
		browser.CSS(`input[type="tel"]`),
		attr("input", "name", "phone"),
		attr("input", "name", "mobile"),
		attr("input", "id", "phone"),
		attr("input", "placeholder", "phone"),
		attr("input", "aria-label", "phone"),
	},
	LinkedIn: {
		attr("input", "name", "linkedin"),
		attr("input", "id", "linkedin"),
		attr("input", "placeholder", "linkedin"),
		attr("input", "placeholder", "profile url"),
	},
	Portfolio: {
		attr("input", "name", "portfolio"),
		attr("input", "name", "website"),
		attr("input", "name", "github"),
		attr("input", "placeholder", "portfolio"),
		attr("input", "placeholder", "personal website"),
	},
	Location: {
		attr("input", "name", "location"),
		attr("input", "name", "city"),
		attr("input", "id", "location"),
		attr("input", "placeholder", "location"),
		attr("input", "placeholder", "city"),
	},
	Resume: {
		attr(`input[type="file"]`, "name", "resume"),
		attr(`input[type="file"]`, "name", "cv"),
		attr(`input[type="file"]`, "id", "resume"),
		browser.CSS(`input[type="file"]`),
	},
	CoverLetterFile: {
		attr(`input[type="file"]`, "name", "cover"),
		attr(`input[type="file"]`, "name", "letter"),
	},
	CoverLetterText: {
		attr("textarea", "name", "cover"),
		attr("textarea", "name", "letter"),
		attr("textarea", "placeholder", "cover letter"),
	},
	AdditionalInfo: {
		attr("textarea", "name", "additional"),
		attr("textarea", "name", "info"),
		attr("textarea", "name", "message"),
		attr("textarea", "name", "comments"),
	},
}

const requiredSelector = `input[required], textarea[required], select[required], [aria-required="true"]`

// RequiredCheck reports visible required controls left empty.
type RequiredCheck struct {
	AllFilled     bool     `json:"all_filled"`
	EmptyFields   []string `json:"empty_fields"`
	TotalRequired int      `json:"total_required"`
}

// Resolver finds and fills fields on one page.
type Resolver struct {
	page browser.Page
	log  logger.Logger
}

// NewResolver returns a Resolver bound to page.
func NewResolver(page browser.Page, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{page: page, log: log}
}

// Locate returns the first visible element any strategy for field resolves
// to, without touching it.
func (r *Resolver) Locate(ctx context.Context, field FieldType) (browser.Element, browser.Locator) {
	el, loc, _ := browser.FirstVisibleOf(ctx, r.page, Selectors[field])
	return el, loc
}

// FindAndFill fills the first visible match for field and verifies the
// value reads back unchanged. Misses are logged, never returned as errors.
func (r *Resolver) FindAndFill(ctx context.Context, field FieldType, value string, required bool) bool {
	for _, loc := range Selectors[field] {
		el, err := browser.FirstVisible(ctx, r.page, loc)
		if err != nil || el == nil {
			continue
		}
		if err := el.Fill(ctx, ""); err != nil {
			r.log.Debug("Clear failed", logger.String("field", string(field)), logger.Error(err))
			continue
		}
		if err := el.Fill(ctx, value); err != nil {
			r.log.Debug("Fill failed", logger.String("field", string(field)), logger.Error(err))
			continue
		}
		got, err := el.Value(ctx)
		if err != nil || got != value {
			r.log.Debug("Fill did not stick",
				logger.String("field", string(field)),
				logger.String("selector", loc.String()))
			continue
		}
		r.log.Debug("Filled field", logger.String("field", string(field)), logger.String("selector", loc.String()))
		return true
	}

	if required {
		r.log.Warn("Required field not found", logger.String("field", string(field)))
	} else {
		r.log.Debug("Optional field not found", logger.String("field", string(field)))
	}
	return false
}

// FillAllBasicFields fills every basic field the profile has a value for.
func (r *Resolver) FillAllBasicFields(ctx context.Context, p models.CandidateProfile) map[FieldType]Outcome {
	values := map[FieldType]string{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName(),
		Email:     p.Email,
		Phone:     p.Phone,
		LinkedIn:  p.LinkedInURL,
		Portfolio: p.PortfolioURL,
		Location:  p.Location,
	}

	results := make(map[FieldType]Outcome, len(BasicFields))
	for _, f := range BasicFields {
		v := strings.TrimSpace(values[f])
		if v == "" {
			results[f] = SkippedEmpty
			continue
		}
		if r.FindAndFill(ctx, f, v, requiredBasic[f]) {
			results[f] = Filled
		} else {
			results[f] = NotFound
		}
	}
	return results
}

// CheckAllRequiredFieldsFilled inspects every visible control marked
// required. Hidden controls never count against the form.
func (r *Resolver) CheckAllRequiredFieldsFilled(ctx context.Context) RequiredCheck {
	res := RequiredCheck{EmptyFields: []string{}}
	els, err := r.page.QueryAll(ctx, requiredSelector)
	if err != nil {
		r.log.Warn("Required field scan failed", logger.Error(err))
		return res
	}

	for _, el := range els {
		if v, err := el.Visible(ctx); err != nil || !v {
			continue
		}
		typ, _ := el.Attr(ctx, "type")
		switch strings.ToLower(typ) {
		case "hidden", "submit", "button":
			continue
		}
		res.TotalRequired++

		var empty bool
		switch strings.ToLower(typ) {
		case "checkbox", "radio":
			checked, err := el.Checked(ctx)
			empty = err != nil || !checked
		default:
			val, err := el.Value(ctx)
			empty = err != nil || strings.TrimSpace(val) == ""
		}
		if empty {
			res.EmptyFields = append(res.EmptyFields, controlName(ctx, el))
		}
	}

	res.AllFilled = len(res.EmptyFields) == 0
	if !res.AllFilled {
		r.log.Warn("Required fields left empty", logger.Any("fields", res.EmptyFields))
	}
	return res
}

func controlName(ctx context.Context, el browser.Element) string {
	for _, a := range []string{"name", "id", "aria-label", "placeholder"} {
		if v, err := el.Attr(ctx, a); err == nil && v != "" {
			return v
		}
	}
	return "unnamed"
}
