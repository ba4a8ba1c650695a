package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type flakySender struct {
	failures int
	err      error
	calls    int
	sent     []Message
}

func (f *flakySender) Send(ctx context.Context, msg Message) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func instantRetry(next Sender, retries uint64) *RetrySender {
	s := NewRetrySender(next, retries, nil)
	s.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{TextBody: "hi"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{To: "a@b.co"}.Validate(), ErrInvalidMessage)
	assert.NoError(t, Message{To: "a@b.co", HTMLBody: "<p>hi</p>"}.Validate())
}

func TestRetrySender(t *testing.T) {
	msg := Message{To: "jobs@example.com", Subject: "Application", TextBody: "hello"}

	t.Run("recovers from transient failures", func(t *testing.T) {
		next := &flakySender{failures: 2, err: errors.New("connection reset")}
		require.NoError(t, instantRetry(next, 3).Send(context.Background(), msg))
		assert.Equal(t, 3, next.calls)
		assert.Len(t, next.sent, 1)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		next := &flakySender{failures: 10, err: errors.New("connection refused")}
		err := instantRetry(next, 2).Send(context.Background(), msg)
		assert.EqualError(t, err, "connection refused")
		assert.Equal(t, 3, next.calls)
	})

	t.Run("invalid messages are not retried", func(t *testing.T) {
		next := &flakySender{failures: 10, err: ErrInvalidMessage}
		err := instantRetry(next, 5).Send(context.Background(), msg)
		assert.ErrorIs(t, err, ErrInvalidMessage)
		assert.Equal(t, 1, next.calls)
	})
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(logger.FromZap(zap.New(core)))

	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.co", Subject: "Hi", TextBody: "x", Attachments: []string{"/tmp/r.pdf"}}))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "a@b.co", fields["to"])
	assert.EqualValues(t, 1, fields["attachments"])

	assert.Error(t, s.Send(context.Background(), Message{}))
}

func TestSMTPSenderBuild(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "Autoapply <bot@autoapply.dev>"}, nil)

	m := s.Build(Message{
		To:       "jobs@example.com",
		ReplyTo:  "u1.j1.20261016@apply.autoapply.dev",
		Subject:  "Application for Analyst - Ada Lovelace",
		TextBody: "Dear Hiring Manager",
		HTMLBody: "<p>Dear Hiring Manager</p>",
	})

	assert.Equal(t, []string{"jobs@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"u1.j1.20261016@apply.autoapply.dev"}, m.GetHeader("Reply-To"))
	assert.Equal(t, []string{"Application for Analyst - Ada Lovelace"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"Autoapply <bot@autoapply.dev>"}, m.GetHeader("From"))
}

func TestSMTPSenderRejectsBeforeDialing(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}, nil)
	assert.ErrorIs(t, s.Send(context.Background(), Message{Subject: "x"}), ErrInvalidMessage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@b.co", TextBody: "x"}), context.Canceled)
}
