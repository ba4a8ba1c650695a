package applicator

import (
	"context"
	"strings"
	"testing"

	"github.com/khrees2412/autoapply/internal/browser"
	"github.com/khrees2412/autoapply/internal/challenge"
	"github.com/khrees2412/autoapply/internal/fields"
	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAutoApply(t *testing.T) {
	tests := []struct {
		name     string
		ats      models.ATSType
		expected bool
	}{
		{"Greenhouse supported", models.ATSGreenhouse, true},
		{"Email supported", models.ATSEmail, true},
		{"Generic supported", models.ATSGeneric, true},
		{"Lever reserved", models.ATSLever, false},
		{"Workday reserved", models.ATSWorkday, false},
		{"Unknown", models.ATSType("bamboohr"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanAutoApply(tt.ats))
		})
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	page, err := browser.NewStaticPage(greenhouseURL, greenhouseHTML)
	require.NoError(t, err)

	rep := Inspect(ctx, page, greenhouseURL)

	assert.Equal(t, models.ATSGreenhouse, rep.ATSType)
	assert.Equal(t, "Job Application for Backend Engineer at Acme", rep.Title)
	assert.False(t, rep.Challenge.Detected)
	assert.Contains(t, rep.Fields, fields.FirstName)
	assert.Contains(t, rep.Fields, fields.Email)
	assert.Contains(t, rep.Fields, fields.Resume)
	assert.NotContains(t, rep.Fields, fields.LinkedIn)
	assert.True(t, rep.SubmitFound)
	assert.False(t, rep.NextFound)
	assert.False(t, rep.Required.AllFilled)
	assert.Equal(t, 3, rep.Required.TotalRequired)
	assert.Empty(t, page.Clicks())
}

func TestInspectEmailPage(t *testing.T) {
	ctx := context.Background()
	markup := `<html><head><title>Careers</title></head><body>
<p>Email your resume to hiring@globex.com</p>
<div class="g-recaptcha" data-sitekey="6LcX"></div></body></html>`
	page, err := browser.NewStaticPage("https://globex.com/careers", markup)
	require.NoError(t, err)

	rep := Inspect(ctx, page, "https://globex.com/careers")

	assert.Equal(t, models.ATSEmail, rep.ATSType)
	assert.Equal(t, "hiring@globex.com", rep.Recipient)
	assert.Equal(t, challenge.RecaptchaV2, rep.Challenge.Type)
	assert.Equal(t, "6LcX", rep.Challenge.Sitekey)
}

func TestAnswer(t *testing.T) {
	p := models.CandidateProfile{CompanyName: "Initech", JobTitle: "SRE", ExperienceYears: 7}

	tests := []struct {
		question string
		want     string
	}{
		{"When can you start?", defaultAvailability},
		{"Desired start date", defaultAvailability},
		{"What are your compensation expectations?", defaultSalary},
		{"Will you now or in the future require visa sponsorship?", defaultAuthorized},
		{"Why do you want to work here?", "I am excited about the opportunity at Initech because my skills and experience align well with SRE. I am particularly interested in contributing to your team's success."},
		{"How much experience do you have with Go?", "I have 7 years of relevant experience in this field."},
		{"Anything else we should know?", defaultAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, Answer(tt.question, p))
		})
	}

	custom := models.CandidateProfile{Availability: "Immediately", SalaryExpectation: "$150k", WorkAuthorized: "No"}
	assert.Equal(t, "Immediately", Answer("Availability", custom))
	assert.Equal(t, "$150k", Answer("Salary", custom))
	assert.Equal(t, "No", Answer("Are you authorized to work in the US?", custom))
	assert.Contains(t, Answer("Why this role?", custom), "opportunity at the company")
	assert.Equal(t, "I have 3 years of relevant experience in this field.", Answer("Years of experience", custom))
}

func TestExtractRecipient(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		text   string
		want   string
	}{
		{"mailto wins", `<a href="mailto:jobs@example.com?subject=Hi">apply</a>`, "write to other@example.com", "jobs@example.com"},
		{"text fallback", `<p>x</p>`, "Send your CV to careers@acme.io today", "careers@acme.io"},
		{"noreply skipped", `<p>x</p>`, "noreply@acme.io or talent@acme.io", "talent@acme.io"},
		{"noreply mailto skipped", `<a href="mailto:no-reply@acme.io">x</a>`, "", ""},
		{"nothing", `<p>x</p>`, "apply on our site", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRecipient(tt.markup, tt.text))
		})
	}
}

func TestSubjectAndBody(t *testing.T) {
	p := models.CandidateProfile{FirstName: "Ada", LastName: "Lovelace", JobTitle: "Analyst", CompanyName: "Babbage & Co"}

	assert.Equal(t, "Application for Analyst - Ada Lovelace", Subject(p))
	body := Body(p)
	assert.True(t, strings.HasPrefix(body, "Dear Hiring Manager,"))
	assert.Contains(t, body, "the Analyst position at Babbage & Co.")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "Ada Lovelace"))

	p.CoverLetter = "My own letter"
	assert.Equal(t, "My own letter", Body(p))
	assert.Equal(t, "Application for Position - Ada", Subject(models.CandidateProfile{FirstName: "Ada"}))
}
