package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/autoapply/internal/database"
	"github.com/khrees2412/autoapply/internal/forwarding"
	"github.com/khrees2412/autoapply/internal/mailer"
	"github.com/khrees2412/autoapply/internal/metrics"
	"github.com/khrees2412/autoapply/pkg/models"
)

type downDB struct{}

func (downDB) Ping(ctx context.Context) error { return errors.New("database is closed") }

type panickyProcessor struct{}

func (panickyProcessor) ProcessIncomingEmail(ctx context.Context, in models.InboundEmail) forwarding.Result {
	panic("boom")
}

type recordingSender struct{ sent []mailer.Message }

func (r *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type fixture struct {
	server *Server
	store  *database.Store
	fwd    *forwarding.Service
	sender *recordingSender
	m      *metrics.Metrics
}

func setup(t *testing.T, secret string) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := database.Open(filepath.Join(t.TempDir(), "webhook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sender := &recordingSender{}
	fwd := forwarding.NewService(forwarding.Config{Domain: "apply.test"}, store, store, sender, nil)
	m := metrics.New()
	return fixture{
		server: NewServer(Config{Secret: secret}, fwd, store, m, nil),
		store:  store,
		fwd:    fwd,
		sender: sender,
		m:      m,
	}
}

func post(t *testing.T, h http.Handler, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email-received", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestEmailReceived(t *testing.T) {
	f := setup(t, "")
	ctx := context.Background()

	alias, err := f.fwd.Generate("u1", "j1", "ada@example.com", "attempt-1")
	require.NoError(t, err)
	require.NoError(t, f.fwd.Register(ctx, alias))

	w := post(t, f.server.Router(), map[string]string{
		"to":      alias.Address,
		"from":    "recruiting@acme.com",
		"subject": "Interview invitation",
		"body":    "We would like to schedule a call with you next week.",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res forwarding.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.True(t, res.Forwarded)
	assert.True(t, res.StatusUpdate)
	assert.Equal(t, models.DetectedInterview, res.DetectedStatus)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "[Application Update] Interview invitation", f.sender.sent[0].Subject)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.InboundTotal.WithLabelValues("interview", "forwarded")))

	rec, err := f.store.GetApplication(ctx, "u1", "j1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, string(models.DetectedInterview), rec.Status)
}

func TestEmailReceivedRejects(t *testing.T) {
	f := setup(t, "")

	t.Run("missing fields", func(t *testing.T) {
		w := post(t, f.server.Router(), map[string]string{"subject": "hi"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/email-received", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.server.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unparseable alias", func(t *testing.T) {
		w := post(t, f.server.Router(), map[string]string{"to": "hello@apply.test", "from": "x@y.com"}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var res forwarding.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "invalid forwarding address")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.m.InboundTotal.WithLabelValues("none", "rejected")))
	})
}

func TestEmailReceivedSecret(t *testing.T) {
	f := setup(t, "s3cret")
	body := map[string]string{"to": "u1.j1.20261016@apply.test", "from": "hr@acme.com", "subject": "Hello"}

	w := post(t, f.server.Router(), body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, f.server.Router(), body, map[string]string{SecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, f.server.Router(), body, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	f := setup(t, "")
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	gin.SetMode(gin.TestMode)
	degraded := NewServer(Config{}, f.fwd, downDB{}, nil, nil)
	w = httptest.NewRecorder()
	degraded.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database is closed")
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t, "")
	f.m.ObserveAttempt("greenhouse", "success", time.Second)

	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `autoapply_attempts_total{ats="greenhouse",status="success"} 1`)

	// Without metrics the route is not registered.
	bare := NewServer(Config{}, f.fwd, nil, nil, nil)
	w = httptest.NewRecorder()
	bare.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{}, panickyProcessor{}, nil, nil, nil)
	w := post(t, s.Router(), map[string]string{"to": "a@b.c", "from": "d@e.f"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRunShutsDown(t *testing.T) {
	f := setup(t, "")
	s := NewServer(Config{Addr: "127.0.0.1:0"}, f.fwd, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
