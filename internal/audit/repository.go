package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("audit repo: run not found")

// Repository persists runs to the statement_runs table.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a run ledger repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Start inserts a running row for runID.
func (r *Repository) Start(ctx context.Context, runID string, startedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if runID == "" {
		return errors.New("audit repo: empty run id")
	}
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO statement_runs (id, status, started_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`, runID, StatusRunning, startedAt)
	return err
}

// Finish stores the outcome of a run.
func (r *Repository) Finish(ctx context.Context, run Run) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE statement_runs
SET status = $2, finished_at = $3, records = $4, statements = $5, archives = $6,
	recipients = $7, email_sent = $8, warnings = $9, error = $10
WHERE id = $1`, run.ID, run.Status, run.FinishedAt, run.Records, run.Statements, run.Archives,
		run.Recipients, run.EmailSent, run.Warnings, run.Error)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Get loads a run by id.
func (r *Repository) Get(ctx context.Context, runID string) (Run, error) {
	if r == nil || r.db == nil {
		return Run{}, errors.New("audit repo: nil db")
	}
	var (
		run      Run
		finished sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, status, started_at, finished_at, records, statements, archives, recipients,
	email_sent, warnings, error
FROM statement_runs
WHERE id = $1`, runID).Scan(&run.ID, &run.Status, &run.StartedAt, &finished, &run.Records,
		&run.Statements, &run.Archives, &run.Recipients, &run.EmailSent, &run.Warnings, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, nil
}
