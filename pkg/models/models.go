package models

import "time"

// ATSType identifies the applicant tracking system behind a posting
type ATSType string

const (
	ATSGreenhouse ATSType = "greenhouse"
	ATSLever      ATSType = "lever"
	ATSWorkday    ATSType = "workday"
	ATSTaleo      ATSType = "taleo"
	ATSICIMS      ATSType = "icims"
	ATSEmail      ATSType = "email"
	ATSGeneric    ATSType = "generic"
)

// Status is the outcome of an application attempt
type Status string

const (
	StatusPending         Status = "pending" // non-terminal, attempt still running
	StatusSuccess         Status = "success"
	StatusFailed          Status = "failed"
	StatusCaptchaRequired Status = "captcha_required"
	StatusLoginRequired   Status = "login_required"
	StatusAlreadyApplied  Status = "already_applied"
	StatusTimeout         Status = "timeout"
	StatusUnknownError    Status = "unknown_error"
)

// IsTerminal reports whether no further transition may follow s
func (s Status) IsTerminal() bool {
	return s != StatusPending && s != ""
}

// CandidateProfile is the applicant data used to fill forms.
// It is supplied by the caller and treated as read-only.
type CandidateProfile struct {
	UserID            string `json:"user_id" yaml:"user_id" validate:"required,excludesall=.@"`
	JobID             string `json:"job_id" yaml:"job_id" validate:"omitempty,excludesall=.@"`
	FirstName         string `json:"first_name" yaml:"first_name" validate:"required"`
	LastName          string `json:"last_name" yaml:"last_name" validate:"required"`
	Email             string `json:"email" yaml:"email" validate:"required,email"`
	Phone             string `json:"phone" yaml:"phone"`
	LinkedInURL       string `json:"linkedin_url" yaml:"linkedin_url" validate:"omitempty,url"`
	PortfolioURL      string `json:"portfolio_url" yaml:"portfolio_url" validate:"omitempty,url"`
	Location          string `json:"location" yaml:"location"`
	JobTitle          string `json:"job_title" yaml:"job_title"`
	CompanyName       string `json:"company_name" yaml:"company_name"`
	CoverLetter       string `json:"cover_letter" yaml:"cover_letter"`
	CoverLetterPath   string `json:"cover_letter_path" yaml:"cover_letter_path"`
	SalaryExpectation string `json:"salary_expectation" yaml:"salary_expectation"`
	WorkAuthorized    string `json:"work_authorized" yaml:"work_authorized"`
	Availability      string `json:"availability" yaml:"availability"`
	ExperienceYears   int    `json:"experience_years" yaml:"experience_years" validate:"gte=0"`
	AdditionalInfo    string `json:"additional_info" yaml:"additional_info"`
}

// FullName joins first and last name
func (p CandidateProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// AliasStatus is the lifecycle state of a forwarding alias
type AliasStatus string

const (
	AliasActive   AliasStatus = "active"
	AliasExpired  AliasStatus = "expired"
	AliasDisabled AliasStatus = "disabled"
)

// ForwardingAlias is a per-application address that relays replies to the candidate
type ForwardingAlias struct {
	Address        string      `json:"address"`
	UserID         string      `json:"user_id"`
	JobID          string      `json:"job_id"`
	Day            string      `json:"day"` // yyyymmdd segment of the address
	RealEmail      string      `json:"real_email"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Status         AliasStatus `json:"status"`
	ApplicationID  string      `json:"application_id,omitempty"`
	EmailsReceived int         `json:"emails_received"`
	LastEmailAt    *time.Time  `json:"last_email_at,omitempty"`
}

// DetectedStatus is the application state inferred from an inbound email
type DetectedStatus string

const (
	DetectedOffer     DetectedStatus = "offer"
	DetectedInterview DetectedStatus = "interview"
	DetectedRejected  DetectedStatus = "rejected"
	DetectedConfirmed DetectedStatus = "confirmed"
	DetectedPending   DetectedStatus = "pending"
	DetectedNone      DetectedStatus = "none"
)

// EmailClassification is computed per inbound message and never stored as-is
type EmailClassification struct {
	DetectedStatus     DetectedStatus `json:"detected_status"`
	ConfirmationNumber string         `json:"confirmation_number,omitempty"`
	IsAutomated        bool           `json:"is_automated"`
	CompanyName        string         `json:"company_name,omitempty"`
}

// InboundEmail is a message delivered to a forwarding address
type InboundEmail struct {
	To       string `json:"to" binding:"required"`
	From     string `json:"from" binding:"required"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	HTMLBody string `json:"html_body"`
}

// ApplicationRecord is the persisted view of an application keyed by (user, job)
type ApplicationRecord struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	JobID              string     `json:"job_id"`
	JobURL             string     `json:"job_url"`
	ATSType            ATSType    `json:"ats_type"`
	Status             string     `json:"status"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ConfirmationNumber string     `json:"confirmation_number,omitempty"`
	ConfirmationEmail  string     `json:"confirmation_email,omitempty"`
	StepsCompleted     []string   `json:"steps_completed"`
	Errors             []string   `json:"errors"`
	ScreenshotPaths    []string   `json:"screenshot_paths"`
	LastEmailAt        *time.Time `json:"last_email_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// EmailHistoryEntry is one classified reply appended to an application record
type EmailHistoryEntry struct {
	ID                 int64          `json:"id"`
	UserID             string         `json:"user_id"`
	JobID              string         `json:"job_id"`
	From               string         `json:"from"`
	Subject            string         `json:"subject"`
	DetectedStatus     DetectedStatus `json:"detected_status"`
	ConfirmationNumber string         `json:"confirmation_number,omitempty"`
	ReceivedAt         time.Time      `json:"received_at"`
}

// StatusUpdate is what an inbound email contributes to an application record
type StatusUpdate struct {
	UserID             string
	JobID              string
	From               string
	Subject            string
	DetectedStatus     DetectedStatus
	ConfirmationNumber string
	ReceivedAt         time.Time
}
