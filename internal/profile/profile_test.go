package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/autoapply/pkg/models"
)

const adaYAML = `user_id: u1
first_name: Ada
last_name: Lovelace
email: ada@example.com
phone: "+44 20 7946 0000"
linkedin_url: https://linkedin.com/in/ada
location: London
salary_expectation: "120k"
experience_years: 7
`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, t.TempDir(), "ada.yaml", adaYAML)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Equal(t, "+44 20 7946 0000", p.Phone)
	assert.Equal(t, 7, p.ExperienceYears)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(write(t, dir, "bad.yaml", "first_name: [oops"))
	assert.ErrorContains(t, err, "parse profile")

	_, err = Load(write(t, dir, "invalid.yaml", "user_id: u.1\nfirst_name: Ada\nemail: not-an-email\n"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Problems, "CandidateProfile.UserID: failed excludesall=.@")
	assert.Contains(t, ve.Problems, "CandidateProfile.LastName: failed required")
	assert.Contains(t, ve.Problems, "CandidateProfile.Email: failed email")
}

func TestValidate(t *testing.T) {
	p := models.CandidateProfile{UserID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	assert.NoError(t, Validate(p))

	p.ExperienceYears = -1
	assert.Error(t, Validate(p))

	p.ExperienceYears = 0
	p.PortfolioURL = "not a url"
	assert.Error(t, Validate(p))
}

func TestLoadBatch(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "jobs.yaml", `profile: ada.yaml
resume: cv/ada.pdf
workers: 3
jobs:
  - url: https://boards.greenhouse.io/acme/jobs/1
    job_id: acme1
    job_title: Analyst
    company_name: Acme
  - url: https://globex.example/careers
    resume: /abs/other.pdf
    cover_letter_path: letters/globex.txt
`)

	b, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ada.yaml"), b.Profile)
	assert.Equal(t, filepath.Join(dir, "cv", "ada.pdf"), b.Resume)
	assert.Equal(t, 3, b.Workers)
	require.Len(t, b.Jobs, 2)
	assert.Equal(t, "/abs/other.pdf", b.Jobs[1].Resume)

	base := models.CandidateProfile{UserID: "u1", JobTitle: "Engineer", CompanyName: "Initech"}
	p, resume := b.ForJob(base, b.Jobs[0])
	assert.Equal(t, "acme1", p.JobID)
	assert.Equal(t, "Analyst", p.JobTitle)
	assert.Equal(t, "Acme", p.CompanyName)
	assert.Equal(t, b.Resume, resume)
	assert.Equal(t, "Engineer", base.JobTitle, "base profile is not modified")

	p, resume = b.ForJob(base, b.Jobs[1])
	assert.Empty(t, p.JobID)
	assert.Equal(t, "Initech", p.CompanyName)
	assert.Equal(t, filepath.Join(dir, "letters", "globex.txt"), p.CoverLetterPath)
	assert.Equal(t, "/abs/other.pdf", resume)
}

func TestLoadBatchValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBatch(write(t, dir, "empty.yaml", "profile: p.yaml\nresume: r.pdf\njobs: []\n"))
	assert.ErrorContains(t, err, "Batch.Jobs: failed min=1")

	_, err = LoadBatch(write(t, dir, "badurl.yaml", "profile: p.yaml\nresume: r.pdf\njobs:\n  - url: nope\n"))
	assert.ErrorContains(t, err, "Batch.Jobs[0].URL: failed url")

	_, err = LoadBatch(write(t, dir, "noprofile.yaml", "resume: r.pdf\njobs:\n  - url: https://x.example\n"))
	assert.ErrorContains(t, err, "Batch.Profile: failed required")
}
