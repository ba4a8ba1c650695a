package forwarding

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/khrees2412/autoapply/internal/classifier"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/mailer"
	"github.com/khrees2412/autoapply/pkg/models"
)

const (
	SubjectPrefix = "[Application Update] "

	errRealEmailMissing = "real email address not found"
)

// Result is the outcome of processing one inbound message. Failures are
// reported through Success and Error rather than returned.
type Result struct {
	Success        bool                        `json:"success"`
	Forwarded      bool                        `json:"forwarded"`
	StatusUpdate   bool                        `json:"status_update"`
	DetectedStatus models.DetectedStatus       `json:"detected_status,omitempty"`
	Classification *models.EmailClassification `json:"classification,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

func failed(err error) Result {
	return Result{Error: err.Error()}
}

// ProcessIncomingEmail correlates a message sent to an alias with its
// application, records any detected status change and relays the message
// to the candidate's real address.
func (s *Service) ProcessIncomingEmail(ctx context.Context, in models.InboundEmail) Result {
	log := s.log.With(logger.String("alias", in.To), logger.String("from", in.From))
	log.Info("Processing inbound email")

	parsed, err := s.Parse(in.To)
	if err != nil {
		log.Warn("Rejected inbound email", logger.Error(err))
		return failed(err)
	}

	alias, err := s.Lookup(ctx, parsed.Address())
	if err != nil {
		log.Warn("Alias lookup failed, continuing without it", logger.Error(err))
		alias = nil
	}
	if alias != nil && alias.Status != models.AliasActive {
		log.Warn("Inbound email for inactive alias", logger.String("status", string(alias.Status)))
		return failed(fmt.Errorf("%w: forwarding address is %s", ErrAliasInactive, alias.Status))
	}
	if alias == nil {
		log.Warn("Alias record not found, processing best-effort")
	}

	c := classifier.Parse(in.From, in.Subject, in.Body, in.HTMLBody)
	res := Result{
		Success:        true,
		DetectedStatus: c.DetectedStatus,
		Classification: &c,
	}

	if c.DetectedStatus != models.DetectedNone && s.apps != nil {
		update := models.StatusUpdate{
			UserID:             parsed.UserID,
			JobID:              parsed.JobID,
			From:               in.From,
			Subject:            in.Subject,
			DetectedStatus:     c.DetectedStatus,
			ConfirmationNumber: c.ConfirmationNumber,
			ReceivedAt:         s.now().UTC(),
		}
		if err := s.apps.UpdateApplicationStatus(ctx, update); err != nil {
			log.Error("Application status update failed", logger.Error(err))
		} else {
			res.StatusUpdate = true
			log.Info("Application status updated",
				logger.String("user_id", parsed.UserID),
				logger.String("job_id", parsed.JobID),
				logger.String("status", string(c.DetectedStatus)))
		}
	}

	if alias != nil && s.aliases != nil {
		if err := s.aliases.RecordAliasEmail(ctx, alias.Address, s.now().UTC()); err != nil {
			log.Warn("Alias stats update failed", logger.Error(err))
		}
	}

	if alias == nil || alias.RealEmail == "" {
		res.Error = errRealEmailMissing
		return res
	}
	res.Forwarded = s.relay(ctx, alias.RealEmail, in, c.DetectedStatus)
	return res
}

// Relay builds the message delivered to the candidate.
func Relay(realEmail string, in models.InboundEmail, status models.DetectedStatus) mailer.Message {
	label := string(status)
	if label == "" {
		label = "unknown"
	}
	var text strings.Builder
	text.WriteString("--------------------------------------------------\n")
	text.WriteString("Forwarded application email\n")
	fmt.Fprintf(&text, "From: %s\n", in.From)
	fmt.Fprintf(&text, "Status: %s\n", label)
	text.WriteString("--------------------------------------------------\n\n")
	text.WriteString(in.Body)

	msg := mailer.Message{
		To:       realEmail,
		ReplyTo:  in.From,
		Subject:  SubjectPrefix + in.Subject,
		TextBody: text.String(),
	}
	if in.HTMLBody != "" {
		msg.HTMLBody = fmt.Sprintf(`<div style="background:#f3f4f6;padding:15px;border-left:4px solid #2563eb;margin-bottom:20px;">
<h3 style="margin:0 0 10px 0;">Forwarded application email</h3>
<p style="margin:5px 0;"><strong>From:</strong> %s</p>
<p style="margin:5px 0;"><strong>Status:</strong> %s</p>
</div>
`, html.EscapeString(in.From), html.EscapeString(label)) + in.HTMLBody
	}
	return msg
}

func (s *Service) relay(ctx context.Context, realEmail string, in models.InboundEmail, status models.DetectedStatus) bool {
	if s.sender == nil {
		return false
	}
	if err := s.sender.Send(ctx, Relay(realEmail, in, status)); err != nil {
		s.log.Error("Relay to candidate failed", logger.String("to", realEmail), logger.Error(err))
		return false
	}
	s.log.Info("Relayed inbound email", logger.String("to", realEmail))
	return true
}
