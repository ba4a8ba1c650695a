package applicator

import (
	"fmt"
	"strings"

	"github.com/khrees2412/autoapply/pkg/models"
)

const (
	defaultAvailability = "2 weeks notice"
	defaultSalary       = "Negotiable based on total compensation package"
	defaultAuthorized   = "Yes"
	defaultYears        = 3
	defaultAnswer       = "I believe my background makes me a strong candidate for this position and I am excited about the opportunity to contribute to your team."
)

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Answer picks a reply to a free-text screening question from its label.
func Answer(question string, p models.CandidateProfile) string {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, "when can you start", "start date", "availability"):
		return or(p.Availability, defaultAvailability)
	case containsAny(q, "salary", "compensation", "expected pay"):
		return or(p.SalaryExpectation, defaultSalary)
	case containsAny(q, "sponsor", "visa", "work authorization", "authorized to work"):
		return or(p.WorkAuthorized, defaultAuthorized)
	case containsAny(q, "why", "interested", "motivates you"):
		return fmt.Sprintf("I am excited about the opportunity at %s because my skills and experience align well with %s. I am particularly interested in contributing to your team's success.",
			or(p.CompanyName, "the company"), or(p.JobTitle, "this role"))
	case strings.Contains(q, "experience"):
		years := p.ExperienceYears
		if years <= 0 {
			years = defaultYears
		}
		return fmt.Sprintf("I have %d years of relevant experience in this field.", years)
	default:
		return defaultAnswer
	}
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
