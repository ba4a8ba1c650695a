package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/khrees2412/autoapply/pkg/models"
)

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Application operations

// SaveAttempt writes the outcome of an attempt as the record for
// (userID, jobID), replacing any earlier attempt for the same pair.
func (s *Store) SaveAttempt(ctx context.Context, userID, jobID string, a *models.ApplicationAttempt) error {
	now := time.Now().UTC()
	query := `INSERT INTO applications (id, user_id, job_id, job_url, ats_type, status, submitted_at,
			  confirmation_number, confirmation_email, steps_completed, errors, screenshot_paths,
			  created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(user_id, job_id) DO UPDATE SET
			  id=excluded.id, job_url=excluded.job_url, ats_type=excluded.ats_type, status=excluded.status,
			  submitted_at=excluded.submitted_at, confirmation_number=excluded.confirmation_number,
			  confirmation_email=excluded.confirmation_email, steps_completed=excluded.steps_completed,
			  errors=excluded.errors, screenshot_paths=excluded.screenshot_paths, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, a.ID, userID, jobID, a.JobURL, string(a.ATSType), string(a.Status),
		nullTime(a.SubmittedAt), a.ConfirmationNumber, a.ConfirmationEmail,
		encodeList(a.StepsCompleted), encodeList(a.Errors), encodeList(a.Screenshots), now, now)
	if err != nil {
		return fmt.Errorf("save application %s/%s: %w", userID, jobID, err)
	}
	return nil
}

const applicationColumns = `id, user_id, job_id, job_url, ats_type, status, submitted_at, confirmation_number,
			  confirmation_email, steps_completed, errors, screenshot_paths, last_email_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*models.ApplicationRecord, error) {
	rec := &models.ApplicationRecord{}
	var ats, steps, errs, shots string
	var submittedAt, lastEmailAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.JobID, &rec.JobURL, &ats, &rec.Status, &submittedAt,
		&rec.ConfirmationNumber, &rec.ConfirmationEmail, &steps, &errs, &shots, &lastEmailAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.ATSType = models.ATSType(ats)
	rec.SubmittedAt = timePtr(submittedAt)
	rec.LastEmailAt = timePtr(lastEmailAt)
	rec.StepsCompleted = decodeList(steps)
	rec.Errors = decodeList(errs)
	rec.ScreenshotPaths = decodeList(shots)
	return rec, nil
}

// GetApplication returns nil, nil when there is no record.
func (s *Store) GetApplication(ctx context.Context, userID, jobID string) (*models.ApplicationRecord, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id=? AND job_id=?`
	rec, err := scanApplication(s.db.QueryRowContext(ctx, query, userID, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListApplications lists records newest first. Empty filters match all.
func (s *Store) ListApplications(ctx context.Context, userID, status string) ([]*models.ApplicationRecord, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications
			  WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
			  ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*models.ApplicationRecord{}
	for rows.Next() {
		rec, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateApplicationStatus applies a status detected from an inbound email
// and appends it to the email history, creating the record if the
// application was never stored.
func (s *Store) UpdateApplicationStatus(ctx context.Context, u models.StatusUpdate) error {
	received := u.ReceivedAt.UTC()
	if u.ReceivedAt.IsZero() {
		received = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert := `INSERT INTO applications (id, user_id, job_id, status, confirmation_number, last_email_at, created_at, updated_at)
			   VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			   ON CONFLICT(user_id, job_id) DO UPDATE SET
			   status=excluded.status,
			   confirmation_number=CASE WHEN excluded.confirmation_number != '' THEN excluded.confirmation_number ELSE applications.confirmation_number END,
			   last_email_at=excluded.last_email_at, updated_at=excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, uuid.NewString(), u.UserID, u.JobID, string(u.DetectedStatus),
		u.ConfirmationNumber, received, received, received); err != nil {
		return fmt.Errorf("update application %s/%s: %w", u.UserID, u.JobID, err)
	}

	history := `INSERT INTO email_history (user_id, job_id, from_address, subject, detected_status, confirmation_number, received_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, history, u.UserID, u.JobID, u.From, u.Subject,
		string(u.DetectedStatus), u.ConfirmationNumber, received); err != nil {
		return fmt.Errorf("append email history: %w", err)
	}
	return tx.Commit()
}

// EmailHistory returns the classified replies for an application, oldest first.
func (s *Store) EmailHistory(ctx context.Context, userID, jobID string) ([]models.EmailHistoryEntry, error) {
	query := `SELECT id, user_id, job_id, from_address, subject, detected_status, confirmation_number, received_at
			  FROM email_history WHERE user_id=? AND job_id=? ORDER BY received_at, id`
	rows, err := s.db.QueryContext(ctx, query, userID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.EmailHistoryEntry{}
	for rows.Next() {
		var e models.EmailHistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.UserID, &e.JobID, &e.From, &e.Subject, &status,
			&e.ConfirmationNumber, &e.ReceivedAt); err != nil {
			return nil, err
		}
		e.DetectedStatus = models.DetectedStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forwarding alias operations

// SaveAlias inserts an alias. Re-registering the same address refreshes
// its owner email, application link and expiry.
func (s *Store) SaveAlias(ctx context.Context, a models.ForwardingAlias) error {
	status := a.Status
	if status == "" {
		status = models.AliasActive
	}
	query := `INSERT INTO forwarding_aliases (address, user_id, job_id, day, real_email, application_id, status,
			  emails_received, last_email_at, created_at, expires_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(address) DO UPDATE SET
			  real_email=excluded.real_email, application_id=excluded.application_id,
			  status=excluded.status, expires_at=excluded.expires_at`
	_, err := s.db.ExecContext(ctx, query, a.Address, a.UserID, a.JobID, a.Day, a.RealEmail, a.ApplicationID,
		string(status), a.EmailsReceived, nullTime(a.LastEmailAt), a.CreatedAt.UTC(), a.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save alias %s: %w", a.Address, err)
	}
	return nil
}

const aliasColumns = `address, user_id, job_id, day, real_email, application_id, status, emails_received,
			  last_email_at, created_at, expires_at`

func scanAlias(row scanner) (*models.ForwardingAlias, error) {
	a := &models.ForwardingAlias{}
	var status string
	var lastEmailAt sql.NullTime
	err := row.Scan(&a.Address, &a.UserID, &a.JobID, &a.Day, &a.RealEmail, &a.ApplicationID, &status,
		&a.EmailsReceived, &lastEmailAt, &a.CreatedAt, &a.ExpiresAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.AliasStatus(status)
	a.LastEmailAt = timePtr(lastEmailAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.ExpiresAt = a.ExpiresAt.UTC()
	return a, nil
}

// GetAlias returns nil, nil when the address is unknown.
func (s *Store) GetAlias(ctx context.Context, address string) (*models.ForwardingAlias, error) {
	query := `SELECT ` + aliasColumns + ` FROM forwarding_aliases WHERE address=?`
	a, err := scanAlias(s.db.QueryRowContext(ctx, query, address))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAliases lists aliases newest first. Empty filters match all.
func (s *Store) ListAliases(ctx context.Context, userID string, status models.AliasStatus) ([]models.ForwardingAlias, error) {
	query := `SELECT ` + aliasColumns + ` FROM forwarding_aliases
			  WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
			  ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, string(status), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := []models.ForwardingAlias{}
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		aliases = append(aliases, *a)
	}
	return aliases, rows.Err()
}

// RecordAliasEmail bumps the received counter.
func (s *Store) RecordAliasEmail(ctx context.Context, address string, at time.Time) error {
	query := `UPDATE forwarding_aliases SET emails_received = emails_received + 1, last_email_at=? WHERE address=?`
	_, err := s.db.ExecContext(ctx, query, at.UTC(), address)
	return err
}

// SetAliasStatus changes an alias' status.
func (s *Store) SetAliasStatus(ctx context.Context, address string, status models.AliasStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE forwarding_aliases SET status=? WHERE address=?`, string(status), address)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alias %s not found", address)
	}
	return nil
}

// ExpireAliases marks active aliases past their expiry as expired.
func (s *Store) ExpireAliases(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE forwarding_aliases SET status=? WHERE status=? AND expires_at <= ?`
	res, err := s.db.ExecContext(ctx, query, string(models.AliasExpired), string(models.AliasActive), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats summarizes stored applications and aliases.
type Stats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByATS          map[string]int `json:"by_ats"`
	ActiveAliases  int            `json:"active_aliases"`
	EmailsReceived int            `json:"emails_received"`
}

// SuccessRate is the share of records with status success.
func (st Stats) SuccessRate() float64 {
	if st.Total == 0 {
		return 0
	}
	return float64(st.ByStatus[string(models.StatusSuccess)]) / float64(st.Total)
}

// GetStats aggregates records for userID, or everyone when it is empty.
func (s *Store) GetStats(ctx context.Context, userID string) (Stats, error) {
	st := Stats{ByStatus: map[string]int{}, ByATS: map[string]int{}}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"status", st.ByStatus},
		{"ats_type", st.ByATS},
	}
	for _, g := range groups {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM applications WHERE (? = '' OR user_id = ?) GROUP BY %s`, g.column, g.column)
		rows, err := s.db.QueryContext(ctx, query, userID, userID)
		if err != nil {
			return st, err
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return st, err
			}
			g.into[key] = n
			if g.column == "status" {
				st.Total += n
			}
		}
		rows.Close()
	}

	query := `SELECT COALESCE(SUM(CASE WHEN status=? THEN 1 ELSE 0 END), 0), COALESCE(SUM(emails_received), 0)
			  FROM forwarding_aliases WHERE (? = '' OR user_id = ?)`
	err := s.db.QueryRowContext(ctx, query, string(models.AliasActive), userID, userID).
		Scan(&st.ActiveAliases, &st.EmailsReceived)
	return st, err
}
