package models

import (
	"fmt"
	"time"
)

// Phase is a state of the per-attempt state machine
type Phase int

const (
	PhaseInit Phase = iota
	PhaseBrowsing
	PhaseClassifying
	PhaseDuplicateCheck
	PhaseFilling
	PhaseSubmitting
	PhaseVerifying
	PhaseTerminal
)

var phaseNames = [...]string{
	"init", "browsing", "classifying", "duplicate_check",
	"filling", "submitting", "verifying", "terminal",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ApplicationAttempt records one run of the apply state machine.
// Once finalized, every mutator is a no-op.
type ApplicationAttempt struct {
	ID                 string         `json:"id"`
	JobURL             string         `json:"job_url"`
	ATSType            ATSType        `json:"ats_type"`
	Status             Status         `json:"status"`
	Phase              Phase          `json:"-"`
	StepsCompleted     []string       `json:"steps_completed"`
	Errors             []string       `json:"errors"`
	Warnings           []string       `json:"warnings"`
	Screenshots        []string       `json:"screenshots"`
	StartedAt          time.Time      `json:"started_at"`
	SubmittedAt        *time.Time     `json:"submitted_at,omitempty"`
	FinishedAt         *time.Time     `json:"finished_at,omitempty"`
	ConfirmationNumber string         `json:"confirmation_number,omitempty"`
	ConfirmationEmail  string         `json:"confirmation_email,omitempty"`
	Metadata           map[string]any `json:"metadata"`
}

// NewAttempt starts an attempt in the init phase
func NewAttempt(id, jobURL string, now time.Time) *ApplicationAttempt {
	return &ApplicationAttempt{
		ID:             id,
		JobURL:         jobURL,
		ATSType:        ATSGeneric,
		Status:         StatusPending,
		Phase:          PhaseInit,
		StepsCompleted: []string{},
		Errors:         []string{},
		Warnings:       []string{},
		Screenshots:    []string{},
		StartedAt:      now,
		Metadata:       map[string]any{},
	}
}

// Final reports whether the attempt reached a terminal status
func (a *ApplicationAttempt) Final() bool {
	return a.Status.IsTerminal()
}

// Advance moves the attempt forward. Phases only move forward.
func (a *ApplicationAttempt) Advance(p Phase) error {
	if a.Final() {
		return fmt.Errorf("attempt already finalized as %s", a.Status)
	}
	if p <= a.Phase || p == PhaseTerminal {
		return fmt.Errorf("invalid transition %s -> %s", a.Phase, p)
	}
	a.Phase = p
	return nil
}

func (a *ApplicationAttempt) AddStep(step string) {
	if !a.Final() {
		a.StepsCompleted = append(a.StepsCompleted, step)
	}
}

func (a *ApplicationAttempt) AddError(msg string) {
	if !a.Final() {
		a.Errors = append(a.Errors, msg)
	}
}

func (a *ApplicationAttempt) AddWarning(msg string) {
	if !a.Final() {
		a.Warnings = append(a.Warnings, msg)
	}
}

func (a *ApplicationAttempt) AddScreenshot(path string) {
	if !a.Final() && path != "" {
		a.Screenshots = append(a.Screenshots, path)
	}
}

func (a *ApplicationAttempt) SetMeta(key string, value any) {
	if !a.Final() {
		a.Metadata[key] = value
	}
}

// Merge appends the steps, errors and warnings produced by a strategy
func (a *ApplicationAttempt) Merge(steps, errs, warnings []string) {
	for _, s := range steps {
		a.AddStep(s)
	}
	for _, e := range errs {
		a.AddError(e)
	}
	for _, w := range warnings {
		a.AddWarning(w)
	}
}

// Finalize sets the terminal status. Only the first call has any effect.
func (a *ApplicationAttempt) Finalize(status Status, now time.Time) bool {
	if a.Final() || !status.IsTerminal() {
		return false
	}
	a.Status = status
	a.Phase = PhaseTerminal
	a.FinishedAt = &now
	a.Metadata["total_steps"] = len(a.StepsCompleted)
	a.Metadata["total_errors"] = len(a.Errors)
	a.Metadata["total_warnings"] = len(a.Warnings)
	return true
}
