// Package worker runs application attempts with bounded concurrency and
// handles everything that happens after an attempt finishes: persistence,
// dispatch of prepared email applications and metrics.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/khrees2412/autoapply/internal/applicator"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/mailer"
	"github.com/khrees2412/autoapply/internal/metrics"
	"github.com/khrees2412/autoapply/pkg/models"
)

const DefaultWorkers = 2

// ErrNoJobs is returned by Run when given nothing to do.
var ErrNoJobs = errors.New("no jobs to run")

// Applier runs one attempt to a terminal status.
type Applier interface {
	Apply(ctx context.Context, jobURL string, profile models.CandidateProfile, resumePath string) *models.ApplicationAttempt
}

// Store persists finished attempts.
type Store interface {
	SaveAttempt(ctx context.Context, userID, jobID string, attempt *models.ApplicationAttempt) error
}

// Job is one posting to apply to.
type Job struct {
	URL        string
	Profile    models.CandidateProfile
	ResumePath string
}

// Outcome is what happened to one Job.
type Outcome struct {
	Job        Job
	Attempt    *models.ApplicationAttempt
	Persisted  bool
	Dispatched bool
	Warnings   []string
}

// Runner fans attempts out over a fixed number of workers.
type Runner struct {
	applier Applier
	store   Store
	sender  mailer.Sender
	metrics *metrics.Metrics
	log     logger.Logger
	workers int
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists every finished attempt.
func WithStore(s Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithSender dispatches prepared email applications.
func WithSender(s mailer.Sender) Option {
	return func(r *Runner) { r.sender = s }
}

// WithMetrics records attempt outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithWorkers sets the concurrency limit.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRunner returns a Runner around applier.
func NewRunner(applier Applier, log logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runner{applier: applier, log: log, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Workers returns the concurrency limit.
func (r *Runner) Workers() int { return r.workers }

// DeriveJobID returns a stable short id for a posting URL.
func DeriveJobID(jobURL string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(jobURL)))
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

// Run applies to every job, at most Workers at a time. Outcomes are
// returned in input order. Individual failures never stop the batch.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	outcomes := make([]Outcome, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = r.RunOne(gCtx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	r.log.Info("Batch finished", logger.Int("jobs", len(jobs)), logger.Int("workers", r.workers))
	return outcomes, ctx.Err()
}

// RunOne runs a single attempt and its follow-up work.
func (r *Runner) RunOne(ctx context.Context, job Job) Outcome {
	if job.Profile.JobID == "" {
		job.Profile.JobID = DeriveJobID(job.URL)
	}
	log := r.log.With(
		logger.String("user_id", job.Profile.UserID),
		logger.String("job_id", job.Profile.JobID),
	)

	if r.metrics != nil {
		r.metrics.AttemptsRunning.Inc()
	}
	started := time.Now()
	attempt := r.applier.Apply(ctx, job.URL, job.Profile, job.ResumePath)
	if r.metrics != nil {
		r.metrics.AttemptsRunning.Dec()
		r.metrics.ObserveAttempt(string(attempt.ATSType), string(attempt.Status), time.Since(started))
	}

	out := Outcome{Job: job, Attempt: attempt}

	if attempt.Status == models.StatusSuccess && attempt.ATSType == models.ATSEmail {
		if err := r.dispatch(ctx, attempt); err != nil {
			log.Warn("Email application not sent", logger.Error(err))
			out.Warnings = append(out.Warnings, fmt.Sprintf("email not sent: %v", err))
		} else {
			out.Dispatched = true
		}
	}

	if r.store != nil {
		// Persistence uses its own deadline so a cancelled batch still records results.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := r.store.SaveAttempt(saveCtx, job.Profile.UserID, job.Profile.JobID, attempt)
		cancel()
		if err != nil {
			log.Warn("Continuing without persistence", logger.Error(err))
			out.Warnings = append(out.Warnings, fmt.Sprintf("attempt not persisted: %v", err))
			if r.metrics != nil {
				r.metrics.PersistFailures.Inc()
			}
		} else {
			out.Persisted = true
		}
	}
	return out
}

func (r *Runner) dispatch(ctx context.Context, attempt *models.ApplicationAttempt) error {
	if r.sender == nil {
		return errors.New("no mailer configured")
	}
	app, ok := attempt.Metadata[applicator.MetaEmailApplication].(applicator.EmailApplication)
	if !ok {
		return errors.New("attempt carries no prepared email")
	}
	msg := mailer.Message{
		To:       app.To,
		ReplyTo:  app.ReplyTo,
		Subject:  app.Subject,
		TextBody: app.Body,
	}
	if app.Attachment != "" {
		msg.Attachments = []string{app.Attachment}
	}
	err := r.sender.Send(ctx, msg)
	if r.metrics != nil {
		result := "sent"
		if err != nil {
			result = "failed"
		}
		r.metrics.EmailsDispatched.WithLabelValues(result).Inc()
	}
	return err
}

// Summary counts outcomes by terminal status.
func Summary(outcomes []Outcome) map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, o := range outcomes {
		if o.Attempt != nil {
			counts[o.Attempt.Status]++
		}
	}
	return counts
}
