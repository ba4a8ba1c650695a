package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/autoapply/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens a migrated database in a temp directory
func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func finishedAttempt(id string, status models.Status, at time.Time) *models.ApplicationAttempt {
	a := models.NewAttempt(id, "https://boards.greenhouse.io/acme/jobs/1", at)
	a.ATSType = models.ATSGreenhouse
	a.AddStep("navigated_to_job")
	a.AddStep("clicked_submit")
	a.AddScreenshot("/tmp/shot.png")
	if status == models.StatusSuccess {
		a.SubmittedAt = &at
		a.ConfirmationNumber = "GH-1"
	} else {
		a.AddError("submit button not found")
	}
	a.Finalize(status, at)
	return a
}

func TestMigrationsAreIdempotent(t *testing.T) {
	store := createTestStore(t)
	require.NoError(t, RunMigrations(store.db))
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewWrapsMigratedConnection(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	store := New(db)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAttempt(ctx, "u1", "j1", finishedAttempt("a1", models.StatusSuccess, at)))
	rec, err := store.GetApplication(ctx, "u1", "j1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a1", rec.ID)
}

func TestSaveAttempt(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveAttempt(ctx, "u1", "j1", finishedAttempt("a1", models.StatusFailed, at)))
	rec, err := store.GetApplication(ctx, "u1", "j1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a1", rec.ID)
	assert.Equal(t, string(models.StatusFailed), rec.Status)
	assert.Equal(t, models.ATSGreenhouse, rec.ATSType)
	assert.Equal(t, []string{"navigated_to_job", "clicked_submit"}, rec.StepsCompleted)
	assert.Equal(t, []string{"submit button not found"}, rec.Errors)
	assert.Equal(t, []string{"/tmp/shot.png"}, rec.ScreenshotPaths)
	assert.Nil(t, rec.SubmittedAt)

	// A retry replaces the record for the same user and job.
	require.NoError(t, store.SaveAttempt(ctx, "u1", "j1", finishedAttempt("a2", models.StatusSuccess, at)))
	rec, err = store.GetApplication(ctx, "u1", "j1")
	require.NoError(t, err)
	assert.Equal(t, "a2", rec.ID)
	assert.Equal(t, string(models.StatusSuccess), rec.Status)
	assert.Equal(t, "GH-1", rec.ConfirmationNumber)
	require.NotNil(t, rec.SubmittedAt)
	assert.True(t, at.Equal(*rec.SubmittedAt))

	missing, err := store.GetApplication(ctx, "u1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListApplications(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	at := time.Now()

	require.NoError(t, store.SaveAttempt(ctx, "u1", "j1", finishedAttempt("a1", models.StatusSuccess, at)))
	require.NoError(t, store.SaveAttempt(ctx, "u1", "j2", finishedAttempt("a2", models.StatusFailed, at)))
	require.NoError(t, store.SaveAttempt(ctx, "u2", "j1", finishedAttempt("a3", models.StatusSuccess, at)))

	all, err := store.ListApplications(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := store.ListApplications(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	won, err := store.ListApplications(ctx, "", string(models.StatusSuccess))
	require.NoError(t, err)
	assert.Len(t, won, 2)
}

func TestUpdateApplicationStatus(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAttempt(ctx, "u1", "j1", finishedAttempt("a1", models.StatusSuccess, at)))

	require.NoError(t, store.UpdateApplicationStatus(ctx, models.StatusUpdate{
		UserID: "u1", JobID: "j1", From: "jobs@acme.com", Subject: "Interview",
		DetectedStatus: models.DetectedInterview, ReceivedAt: at.Add(time.Hour),
	}))
	rec, err := store.GetApplication(ctx, "u1", "j1")
	require.NoError(t, err)
	assert.Equal(t, string(models.DetectedInterview), rec.Status)
	assert.Equal(t, "GH-1", rec.ConfirmationNumber, "empty update keeps the stored number")
	require.NotNil(t, rec.LastEmailAt)

	// Unknown applications get a record so the reply is not lost.
	require.NoError(t, store.UpdateApplicationStatus(ctx, models.StatusUpdate{
		UserID: "u9", JobID: "j9", From: "hr@globex.com", Subject: "Received",
		DetectedStatus: models.DetectedConfirmed, ConfirmationNumber: "GX-7", ReceivedAt: at,
	}))
	stub, err := store.GetApplication(ctx, "u9", "j9")
	require.NoError(t, err)
	require.NotNil(t, stub)
	assert.Equal(t, "GX-7", stub.ConfirmationNumber)
	assert.NotEmpty(t, stub.ID)

	history, err := store.EmailHistory(ctx, "u1", "j1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "jobs@acme.com", history[0].From)
	assert.Equal(t, models.DetectedInterview, history[0].DetectedStatus)
}

func testAlias(userID, jobID string, created time.Time) models.ForwardingAlias {
	day := created.Format("20060102")
	return models.ForwardingAlias{
		Address:   userID + "." + jobID + "." + day + "@apply.test",
		UserID:    userID,
		JobID:     jobID,
		Day:       day,
		RealEmail: "ada@example.com",
		CreatedAt: created,
		ExpiresAt: created.Add(90 * 24 * time.Hour),
		Status:    models.AliasActive,
	}
}

func TestAliases(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	created := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	a := testAlias("u1", "j1", created)

	require.NoError(t, store.SaveAlias(ctx, a))
	a.ApplicationID = "attempt-1"
	require.NoError(t, store.SaveAlias(ctx, a), "re-registering the same address is allowed")

	got, err := store.GetAlias(ctx, a.Address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "attempt-1", got.ApplicationID)
	assert.Equal(t, models.AliasActive, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.LastEmailAt)

	unknown, err := store.GetAlias(ctx, "nobody.none.20260101@apply.test")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	received := created.Add(48 * time.Hour)
	require.NoError(t, store.RecordAliasEmail(ctx, a.Address, received))
	require.NoError(t, store.RecordAliasEmail(ctx, a.Address, received))
	got, err = store.GetAlias(ctx, a.Address)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EmailsReceived)
	require.NotNil(t, got.LastEmailAt)
	assert.True(t, received.Equal(*got.LastEmailAt))

	require.NoError(t, store.SetAliasStatus(ctx, a.Address, models.AliasDisabled))
	assert.Error(t, store.SetAliasStatus(ctx, "missing@apply.test", models.AliasDisabled))
	disabled, err := store.ListAliases(ctx, "u1", models.AliasDisabled)
	require.NoError(t, err)
	assert.Len(t, disabled, 1)
}

func TestExpireAliases(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	old := testAlias("u1", "j1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	fresh := testAlias("u1", "j2", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveAlias(ctx, old))
	require.NoError(t, store.SaveAlias(ctx, fresh))

	n, err := store.ExpireAliases(ctx, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetAlias(ctx, old.Address)
	require.NoError(t, err)
	assert.Equal(t, models.AliasExpired, got.Status)

	got, err = store.GetAlias(ctx, fresh.Address)
	require.NoError(t, err)
	assert.Equal(t, models.AliasActive, got.Status)

	n, err = store.ExpireAliases(ctx, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	at := time.Now()

	require.NoError(t, store.SaveAttempt(ctx, "u1", "j1", finishedAttempt("a1", models.StatusSuccess, at)))
	require.NoError(t, store.SaveAttempt(ctx, "u1", "j2", finishedAttempt("a2", models.StatusFailed, at)))
	require.NoError(t, store.SaveAttempt(ctx, "u1", "j3", finishedAttempt("a3", models.StatusSuccess, at)))
	require.NoError(t, store.SaveAttempt(ctx, "u2", "j1", finishedAttempt("a4", models.StatusFailed, at)))
	a := testAlias("u1", "j1", at)
	require.NoError(t, store.SaveAlias(ctx, a))
	require.NoError(t, store.RecordAliasEmail(ctx, a.Address, at))

	st, err := store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByStatus["success"])
	assert.Equal(t, 3, st.ByATS["greenhouse"])
	assert.Equal(t, 1, st.ActiveAliases)
	assert.Equal(t, 1, st.EmailsReceived)
	assert.InDelta(t, 2.0/3.0, st.SuccessRate(), 0.001)

	everyone, err := store.GetStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, everyone.Total)
	assert.Zero(t, Stats{}.SuccessRate())
}
