// Package forwarding issues per-application email aliases and turns replies
// sent to them into application status updates.
package forwarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/mailer"
	"github.com/khrees2412/autoapply/pkg/models"
)

const (
	DefaultDomain = "apply.autoapply.dev"
	DefaultTTL    = 90 * 24 * time.Hour

	dayLayout = "20060102"
)

var (
	ErrInvalidID      = errors.New("ids must be non-empty and contain no '.', '@' or whitespace")
	ErrInvalidAddress = errors.New("invalid forwarding address")
	ErrAliasInactive  = errors.New("forwarding address is not active")
)

// AliasStore persists aliases. GetAlias returns nil, nil for unknown addresses.
type AliasStore interface {
	SaveAlias(ctx context.Context, alias models.ForwardingAlias) error
	GetAlias(ctx context.Context, address string) (*models.ForwardingAlias, error)
	RecordAliasEmail(ctx context.Context, address string, at time.Time) error
	ExpireAliases(ctx context.Context, now time.Time) (int64, error)
}

// ApplicationStore receives status changes detected in replies.
type ApplicationStore interface {
	UpdateApplicationStatus(ctx context.Context, update models.StatusUpdate) error
}

// Config configures a Service.
type Config struct {
	Domain string
	TTL    time.Duration
}

// Service generates, parses and resolves forwarding aliases and processes
// mail delivered to them.
type Service struct {
	domain  string
	ttl     time.Duration
	aliases AliasStore
	apps    ApplicationStore
	sender  mailer.Sender
	log     logger.Logger
	now     func() time.Time
}

// NewService wires a Service. apps and sender may be nil; the matching
// step is then skipped.
func NewService(cfg Config, aliases AliasStore, apps ApplicationStore, sender mailer.Sender, log logger.Logger) *Service {
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		domain:  strings.ToLower(cfg.Domain),
		ttl:     cfg.TTL,
		aliases: aliases,
		apps:    apps,
		sender:  sender,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Domain returns the forwarding domain.
func (s *Service) Domain() string { return s.domain }

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ".@ \t\r\n")
}

// Generate builds the alias {user}.{job}.{yyyymmdd}@{domain}. It is a pure
// function of its inputs and the current UTC day.
func (s *Service) Generate(userID, jobID, realEmail, applicationID string) (models.ForwardingAlias, error) {
	if !validID(userID) || !validID(jobID) {
		return models.ForwardingAlias{}, fmt.Errorf("%w: user %q job %q", ErrInvalidID, userID, jobID)
	}
	now := s.now().UTC()
	day := now.Format(dayLayout)
	return models.ForwardingAlias{
		Address:       fmt.Sprintf("%s.%s.%s@%s", userID, jobID, day, s.domain),
		UserID:        userID,
		JobID:         jobID,
		Day:           day,
		RealEmail:     realEmail,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		Status:        models.AliasActive,
		ApplicationID: applicationID,
	}, nil
}

// Parsed is the decoded form of an alias address.
type Parsed struct {
	UserID    string
	JobID     string
	Day       string
	Timestamp time.Time // midnight UTC of Day
	Domain    string
}

// Address is the canonical alias address: local part as sent, domain
// lower-cased. Stored aliases are keyed by this form.
func (p Parsed) Address() string {
	return p.UserID + "." + p.JobID + "." + p.Day + "@" + p.Domain
}

// Parse splits an alias into its parts. Only addresses on the service's
// domain with exactly three dot-separated local segments are accepted.
func (s *Service) Parse(address string) (Parsed, error) {
	address = strings.TrimSpace(address)
	local, domain, ok := strings.Cut(address, "@")
	if !ok || strings.Contains(domain, "@") {
		return Parsed{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if !strings.EqualFold(domain, s.domain) {
		return Parsed{}, fmt.Errorf("%w: unexpected domain %q", ErrInvalidAddress, domain)
	}
	parts := strings.Split(local, ".")
	if len(parts) != 3 || !validID(parts[0]) || !validID(parts[1]) {
		return Parsed{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	ts, err := time.Parse(dayLayout, parts[2])
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: bad date segment %q", ErrInvalidAddress, parts[2])
	}
	return Parsed{
		UserID:    parts[0],
		JobID:     parts[1],
		Day:       parts[2],
		Timestamp: ts,
		Domain:    strings.ToLower(domain),
	}, nil
}

// Register stores an alias once the application using it is submitted.
func (s *Service) Register(ctx context.Context, alias models.ForwardingAlias) error {
	if s.aliases == nil {
		return nil
	}
	if err := s.aliases.SaveAlias(ctx, alias); err != nil {
		return fmt.Errorf("register alias: %w", err)
	}
	s.log.Info("Registered forwarding alias",
		logger.String("alias", alias.Address),
		logger.String("application_id", alias.ApplicationID))
	return nil
}

// Lookup returns the stored alias for address, or nil when unknown.
func (s *Service) Lookup(ctx context.Context, address string) (*models.ForwardingAlias, error) {
	if s.aliases == nil {
		return nil, nil
	}
	key := strings.TrimSpace(address)
	if p, err := s.Parse(key); err == nil {
		key = p.Address()
	}
	return s.aliases.GetAlias(ctx, key)
}

// ExpireStale marks every active alias past its expiry as expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	if s.aliases == nil {
		return 0, nil
	}
	n, err := s.aliases.ExpireAliases(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire aliases: %w", err)
	}
	if n > 0 {
		s.log.Info("Expired forwarding aliases", logger.Int64("count", n))
	}
	return n, nil
}
