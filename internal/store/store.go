package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Store is the local SQLite ledger of long-running backend jobs.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates) the ledger at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			meeting_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMP,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_meeting ON jobs(meeting_id);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Job is one ledger entry.
type Job struct {
	ID         int64      `json:"id"`
	MeetingID  string     `json:"meeting_id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration is the run time of a finished job, zero otherwise.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// BeginJob records a running job and returns its id.
func (s *Store) BeginJob(ctx context.Context, meetingID, kind string) (int64, error) {
	ts := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO jobs(meeting_id, kind, status, created_at, started_at) VALUES(?,?,?,?,?)`,
		meetingID, kind, StatusRunning, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishJob marks a job succeeded, or failed when jobErr is non-nil.
func (s *Store) FinishJob(ctx context.Context, id int64, jobErr error) error {
	status := StatusSucceeded
	var msg *string
	if jobErr != nil {
		status = StatusFailed
		m := jobErr.Error()
		msg = &m
	}
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status=?, error=?, finished_at=? WHERE id=?`,
		status, msg, s.now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AbandonRunning marks every running job abandoned and returns how many were.
// The backend resets its counters at start-up, so such jobs can never finish.
func (s *Store) AbandonRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status=?, finished_at=? WHERE status=?`,
		StatusAbandoned, s.now().UTC(), StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetJob returns one job.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, meeting_id, kind, status, error, created_at, started_at, finished_at FROM jobs WHERE id=?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// ListJobs returns the most recent jobs first. limit <= 0 means all.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	q := `SELECT id, meeting_id, kind, status, error, created_at, started_at, finished_at FROM jobs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// ListJobsForMeeting returns a meeting's jobs, oldest first.
func (s *Store) ListJobsForMeeting(ctx context.Context, meetingID string) ([]Job, error) {
	return s.query(ctx, `SELECT id, meeting_id, kind, status, error, created_at, started_at, finished_at FROM jobs WHERE meeting_id=? ORDER BY id ASC`, meetingID)
}

// CountRunning returns the number of running jobs per meeting.
func (s *Store) CountRunning(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT meeting_id, COUNT(*) FROM jobs WHERE status=? GROUP BY meeting_id`, StatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// Health checks the database connection.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*Job, error) {
	var j Job
	var jobErr sql.NullString
	var started, finished sql.NullTime
	if err := sc.Scan(&j.ID, &j.MeetingID, &j.Kind, &j.Status, &jobErr, &j.CreatedAt, &started, &finished); err != nil {
		return nil, err
	}
	if jobErr.Valid {
		j.Error = &jobErr.String
	}
	if started.Valid {
		j.StartedAt = &started.Time
	}
	if finished.Valid {
		j.FinishedAt = &finished.Time
	}
	return &j, nil
}
