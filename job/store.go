package job

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmark/joblane/errors"
)

// Store is the record-store surface the lifecycle controller consumes.
// It assumes single-row read-after-write consistency; there are no
// multi-row transactions.
type Store interface {
	// GetJob retrieves the freshest copy of a row. ErrJobNotFound if absent.
	GetJob(ctx context.Context, id string) (*Job, error)
	// UpdateJob persists a mutated row. The row's claim token is used as an
	// optimistic-concurrency guard: ErrStaleJob if another writer updated
	// the row since it was read.
	UpdateJob(ctx context.Context, job *Job) error
	// CreateJobWithGeneratedID persists a new row, assigning its identity.
	CreateJobWithGeneratedID(ctx context.Context, job *Job) (string, error)
	// CountJobsByParentAndStatus counts lineage siblings in a given status.
	CountJobsByParentAndStatus(ctx context.Context, parentJobID string, status Status) (int64, error)
	// GetRuntimeData fetches an externally-stored execution context.
	// Returns nil with no error when the id has no stored payload.
	GetRuntimeData(ctx context.Context, id string) ([]byte, error)
}

// SQLiteStore persists job rows in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a job store backed by the given database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetJob retrieves a job row by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns() + ` FROM jobs WHERE id = ?`

	var j Job
	args := &jobScanArgs{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(jobScanTargets(&j, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrJobNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}
	if err := applyJobScanArgs(&j, args); err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJob persists an existing row. The UPDATE carries the claim token
// the caller read and bumps it, so a concurrent writer's stale update
// affects zero rows and surfaces as ErrStaleJob.
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *Job) error {
	legacyJSON, err := MarshalLegacyRecurrence(job.LegacyRecurrence)
	if err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET parent_job_id = ?,
		    previous_job_id = ?,
		    service_name = ?,
		    run_time = ?,
		    temp_expr_id = ?,
		    legacy_recurrence = ?,
		    max_recurrence_count = ?,
		    current_recurrence_count = ?,
		    max_retry = ?,
		    current_retry_count = ?,
		    run_by_instance_id = ?,
		    started_at = ?,
		    cancelled_at = ?,
		    finished_at = ?,
		    status = ?,
		    result = ?,
		    runtime_data_id = ?,
		    run_as = ?,
		    claim_token = claim_token + 1,
		    updated_at = ?
		WHERE id = ? AND claim_token = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		nullString(job.ParentJobID),
		nullString(job.PreviousJobID),
		nullString(job.ServiceName),
		job.RunTime,
		nullString(job.TempExprID),
		nullString(legacyJSON),
		job.MaxRecurrenceCount,
		job.CurrentRecurrenceCount,
		job.MaxRetry,
		nullInt64(job.CurrentRetryCount),
		nullString(job.RunByInstanceID),
		nullTime(job.StartedAt),
		nullTime(job.CancelledAt),
		nullTime(job.FinishedAt),
		job.Status,
		nullString(job.Result),
		nullString(job.RuntimeDataID),
		nullString(job.RunAs),
		time.Now(),
		job.ID,
		job.ClaimToken,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", job.ID)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(ErrStaleJob, "job %s (token %d)", job.ID, job.ClaimToken)
	}

	job.ClaimToken++
	return nil
}

// CreateJobWithGeneratedID inserts a new row, generating its identity.
func (s *SQLiteStore) CreateJobWithGeneratedID(ctx context.Context, job *Job) (string, error) {
	legacyJSON, err := MarshalLegacyRecurrence(job.LegacyRecurrence)
	if err != nil {
		return "", err
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.ClaimToken = 0

	query := `
		INSERT INTO jobs (
			id, parent_job_id, previous_job_id, service_name, run_time,
			temp_expr_id, legacy_recurrence, max_recurrence_count, current_recurrence_count,
			max_retry, current_retry_count, run_by_instance_id,
			started_at, cancelled_at, finished_at, status, result,
			runtime_data_id, run_as, claim_token, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		nullString(job.ParentJobID),
		nullString(job.PreviousJobID),
		nullString(job.ServiceName),
		job.RunTime,
		nullString(job.TempExprID),
		nullString(legacyJSON),
		job.MaxRecurrenceCount,
		job.CurrentRecurrenceCount,
		job.MaxRetry,
		nullInt64(job.CurrentRetryCount),
		nullString(job.RunByInstanceID),
		nullTime(job.StartedAt),
		nullTime(job.CancelledAt),
		nullTime(job.FinishedAt),
		job.Status,
		nullString(job.Result),
		nullString(job.RuntimeDataID),
		nullString(job.RunAs),
		job.ClaimToken,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create job %s", job.ID)
	}

	return job.ID, nil
}

// CountJobsByParentAndStatus counts rows sharing a lineage root in a status.
func (s *SQLiteStore) CountJobsByParentAndStatus(ctx context.Context, parentJobID string, status Status) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE parent_job_id = ? AND status = ?`,
		parentJobID, status,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count jobs for parent %s", parentJobID)
	}
	return count, nil
}

// ListJobsByParent returns a lineage's rows ordered by run time.
func (s *SQLiteStore) ListJobsByParent(ctx context.Context, parentJobID string) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns() + ` FROM jobs
		WHERE parent_job_id = ? OR id = ?
		ORDER BY run_time ASC`

	rows, err := s.db.QueryContext(ctx, query, parentJobID, parentJobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list jobs for parent %s", parentJobID)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		args := &jobScanArgs{}
		if err := rows.Scan(jobScanTargets(&j, args)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		if err := applyJobScanArgs(&j, args); err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}

// GetRuntimeData fetches a stored execution context payload.
func (s *SQLiteStore) GetRuntimeData(ctx context.Context, id string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM runtime_data WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get runtime data %s", id)
	}
	return []byte(data), nil
}

// PutRuntimeData stores an execution context payload, generating an id
// when none is given.
func (s *SQLiteStore) PutRuntimeData(ctx context.Context, id string, data []byte) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runtime_data (id, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		id, string(data), time.Now(),
	)
	if err != nil {
		return "", errors.Wrapf(err, "failed to store runtime data %s", id)
	}
	return id, nil
}
