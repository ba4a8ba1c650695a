package classifier

import (
	"testing"

	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		subject string
		body    string
		html    string
		want    models.EmailClassification
	}{
		{
			name:    "interview outranks rejection wording",
			from:    "recruiting@acmecorp.com",
			subject: "Interview scheduled",
			body:    "Unfortunately we also had other news",
			want: models.EmailClassification{
				DetectedStatus: models.DetectedInterview,
				CompanyName:    "Acmecorp",
			},
		},
		{
			name:    "confirmation with number from a person",
			from:    "jobs@acmecorp.com",
			subject: "Thank you for applying to Acme Corp",
			body:    "We have received your application. Confirmation number: AC-2024-881",
			want: models.EmailClassification{
				DetectedStatus:     models.DetectedConfirmed,
				ConfirmationNumber: "AC-2024-881",
				IsAutomated:        false,
				CompanyName:        "Acmecorp",
			},
		},
		{
			name:    "automated greenhouse receipt",
			from:    "noreply@boards.greenhouse.io",
			subject: "Application Received",
			body:    "This is an automated message. Do not reply.",
			want: models.EmailClassification{
				DetectedStatus: models.DetectedConfirmed,
				IsAutomated:    true,
				CompanyName:    "Greenhouse",
			},
		},
		{
			name:    "offer beats everything",
			from:    "Jane Doe <jane@initech.co.uk>",
			subject: "Next steps",
			body:    "We are pleased to offer you the role. Your interview feedback was great.",
			want: models.EmailClassification{
				DetectedStatus: models.DetectedOffer,
				CompanyName:    "Initech",
			},
		},
		{
			name:    "rejection",
			from:    "careers@globex.com",
			subject: "Your application",
			body:    "We regret to inform you that we will not be moving forward.",
			want: models.EmailClassification{
				DetectedStatus: models.DetectedRejected,
				CompanyName:    "Globex",
			},
		},
		{
			name:    "pending from html body",
			from:    "talent@hooli.com",
			subject: "Update",
			html:    "<html><body><p>Your application is <b>under review</b>.<br>We will be in touch.</p></body></html>",
			want: models.EmailClassification{
				DetectedStatus: models.DetectedPending,
				CompanyName:    "Hooli",
			},
		},
		{
			name:    "personal sender and no status",
			from:    "friend@gmail.com",
			subject: "Lunch?",
			body:    "Are you free on Friday",
			want:    models.EmailClassification{DetectedStatus: models.DetectedNone},
		},
		{
			name:    "mailbox signature marks automation",
			from:    "hr@umbrella.com",
			subject: "Application update",
			body:    "Your application has been submitted. This mailbox is not monitored.",
			want: models.EmailClassification{
				DetectedStatus: models.DetectedConfirmed,
				IsAutomated:    true,
				CompanyName:    "Umbrella",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.from, tt.subject, tt.body, tt.html))
		})
	}
}

func TestRejectionMentioningInterviewStaysInterview(t *testing.T) {
	// Fixed priority order: any interview wording wins over rejection wording.
	got := DetectStatus("We are not proceeding to the interview stage")
	assert.Equal(t, models.DetectedInterview, got)
}

func TestCompanyName(t *testing.T) {
	assert.Equal(t, "", CompanyName("no-at-sign"))
	assert.Equal(t, "", CompanyName("someone@outlook.com"))
	assert.Equal(t, "Stripe", CompanyName("Stripe Recruiting <jobs@mail.stripe.com>"))
}
