// Package profile loads candidate profiles and batch job files from YAML
// and validates them.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/khrees2412/autoapply/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists every failed field of a profile or batch file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func describe(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	problems := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		problems = append(problems, msg)
	}
	return &ValidationError{Problems: problems}
}

// Validate checks a candidate profile.
func Validate(p models.CandidateProfile) error {
	if err := validate.Struct(p); err != nil {
		return describe(err)
	}
	return nil
}

// Load reads and validates a profile file.
func Load(path string) (models.CandidateProfile, error) {
	var p models.CandidateProfile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := Validate(p); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// BatchJob is one posting in a batch file. Empty fields fall back to the
// batch profile.
type BatchJob struct {
	URL             string `yaml:"url" validate:"required,url"`
	JobID           string `yaml:"job_id" validate:"omitempty,excludesall=.@"`
	JobTitle        string `yaml:"job_title"`
	CompanyName     string `yaml:"company_name"`
	CoverLetter     string `yaml:"cover_letter"`
	CoverLetterPath string `yaml:"cover_letter_path"`
	Resume          string `yaml:"resume"`
}

// Batch is a set of postings applied to with one profile.
type Batch struct {
	Profile string     `yaml:"profile" validate:"required"`
	Resume  string     `yaml:"resume" validate:"required"`
	Workers int        `yaml:"workers" validate:"gte=0,lte=16"`
	Jobs    []BatchJob `yaml:"jobs" validate:"required,min=1,dive"`

	dir string
}

// LoadBatch reads a batch file. Relative paths inside it resolve against
// the file's directory.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	if err := validate.Struct(b); err != nil {
		return nil, fmt.Errorf("batch %s: %w", path, describe(err))
	}
	b.dir = filepath.Dir(path)
	b.Profile = b.resolve(b.Profile)
	b.Resume = b.resolve(b.Resume)
	for i := range b.Jobs {
		b.Jobs[i].Resume = b.resolve(b.Jobs[i].Resume)
		b.Jobs[i].CoverLetterPath = b.resolve(b.Jobs[i].CoverLetterPath)
	}
	return &b, nil
}

func (b *Batch) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || b.dir == "" {
		return p
	}
	return filepath.Join(b.dir, p)
}

// ForJob returns base with the job's overrides applied, and the resume to use.
func (b *Batch) ForJob(base models.CandidateProfile, j BatchJob) (models.CandidateProfile, string) {
	p := base
	if j.JobID != "" {
		p.JobID = j.JobID
	}
	if j.JobTitle != "" {
		p.JobTitle = j.JobTitle
	}
	if j.CompanyName != "" {
		p.CompanyName = j.CompanyName
	}
	if j.CoverLetter != "" {
		p.CoverLetter = j.CoverLetter
	}
	if j.CoverLetterPath != "" {
		p.CoverLetterPath = j.CoverLetterPath
	}
	resume := b.Resume
	if j.Resume != "" {
		resume = j.Resume
	}
	return p, resume
}
