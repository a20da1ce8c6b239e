package buildqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"edlstream/internal/config"
)

// DBFileName is the job database file created under the configured log
// directory.
const DBFileName = "buildqueue.db"

// Store manages build job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the build job database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, DBFileName))
}

// OpenPath opens the job database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection, not just the one a plain Exec happens to run on.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnqueueRequest describes a job to insert.
type EnqueueRequest struct {
	Kind       Kind
	EDLHash    string
	EditID     string
	CutsJSON   string
	OutputPath string
}

// Enqueue inserts a new pending job. When a pending or building job for the
// same kind and subject already exists, that job is returned instead so
// duplicate requests coalesce.
func (s *Store) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	if existing, err := s.findActiveDuplicate(ctx, req); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO build_jobs (
            job_key, kind, edl_hash, edit_id, cuts_json, output_path,
            status, error_message, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		req.Kind,
		nullableString(req.EDLHash),
		nullableString(req.EditID),
		req.CutsJSON,
		nullableString(req.OutputPath),
		StatusPending,
		nil,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *Store) findActiveDuplicate(ctx context.Context, req EnqueueRequest) (*Job, error) {
	var (
		row *sql.Row
	)
	switch {
	case req.EDLHash != "":
		row = s.db.QueryRowContext(
			ctx,
			`SELECT `+jobColumns+` FROM build_jobs
             WHERE kind = ? AND edl_hash = ? AND status IN (?, ?)
             ORDER BY id LIMIT 1`,
			req.Kind, req.EDLHash, StatusPending, StatusBuilding,
		)
	case req.EditID != "":
		row = s.db.QueryRowContext(
			ctx,
			`SELECT `+jobColumns+` FROM build_jobs
             WHERE kind = ? AND edit_id = ? AND status IN (?, ?)
             ORDER BY id LIMIT 1`,
			req.Kind, req.EditID, StatusPending, StatusBuilding,
		)
	default:
		return nil, nil
	}

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicate job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM build_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByKey fetches a job by its external key.
func (s *Store) GetByKey(ctx context.Context, key string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM build_jobs WHERE job_key = ?`, key)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by key: %w", err)
	}
	return job, nil
}

// ClaimNextPending atomically moves the oldest pending job to building and
// returns it. Returns nil when the queue is empty.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE build_jobs
         SET status = ?, attempts = attempts + 1, started_at = ?, updated_at = ?
         WHERE id = (
             SELECT id FROM build_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1
         )
         RETURNING `+jobColumns,
		StatusBuilding, now, now, StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return job, nil
}

// MarkReady records a successful terminal state.
func (s *Store) MarkReady(ctx context.Context, id int64, outputPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE build_jobs
         SET status = ?, output_path = ?, error_message = NULL, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusReady, nullableString(outputPath), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job ready: %w", err)
	}
	return nil
}

// MarkFailed records a failed terminal state with a diagnostic.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE build_jobs
         SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(message), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set, or all jobs when no status is
// provided, oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM build_jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RetryFailed moves failed jobs back to pending. With no ids, every failed
// job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE build_jobs
             SET status = ?, error_message = NULL, started_at = NULL, finished_at = NULL, updated_at = ?
             WHERE status = ?`,
			StatusPending, now, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE build_jobs
        SET status = ?, error_message = NULL, started_at = NULL, finished_at = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckBuilding returns jobs left in building by a dead process to
// pending so a restarted daemon picks them up again.
func (s *Store) ResetStuckBuilding(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE build_jobs
         SET status = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusBuilding,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailBuilding marks in-flight jobs failed with the given reason. Used at
// daemon shutdown so nothing is silently abandoned mid-build.
func (s *Store) FailBuilding(ctx context.Context, reason string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE build_jobs
         SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed, reason, now, now, StatusBuilding,
	)
	if err != nil {
		return 0, fmt.Errorf("fail building jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal removes jobs in terminal states.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM build_jobs WHERE status IN (?, ?)`,
		StatusReady, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM build_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusBuilding:
			health.Building += count
		case StatusReady:
			health.Ready += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, job_key, kind, edl_hash, edit_id, cuts_json, output_path, status, error_message, attempts, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		edlHash      sql.NullString
		editID       sql.NullString
		outputPath   sql.NullString
		errorMessage sql.NullString
		createdAt    string
		updatedAt    string
		startedAt    sql.NullString
		finishedAt   sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.JobKey,
		&job.Kind,
		&edlHash,
		&editID,
		&job.CutsJSON,
		&outputPath,
		&job.Status,
		&errorMessage,
		&job.Attempts,
		&createdAt,
		&updatedAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}

	job.EDLHash = edlHash.String
	job.EditID = editID.String
	job.OutputPath = outputPath.String
	job.ErrorMessage = errorMessage.String

	var err error
	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		parsed, err := parseTimestamp(startedAt.String)
		if err != nil {
			return nil, err
		}
		job.StartedAt = &parsed
	}
	if finishedAt.Valid {
		parsed, err := parseTimestamp(finishedAt.String)
		if err != nil {
			return nil, err
		}
		job.FinishedAt = &parsed
	}
	return &job, nil
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
