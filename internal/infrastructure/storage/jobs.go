package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/recipetube/backend/internal/domain"
)

// BatchJobRepository stores background jobs
type BatchJobRepository struct {
	db *DB
}

// NewBatchJobRepository creates a batch job repository
func NewBatchJobRepository(db *DB) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

const jobColumns = `id, job_type, status, started_at, completed_at, error, metadata, created_at`

func scanJob(row interface{ Scan(...any) error }) (*domain.BatchJob, error) {
	var (
		job                  domain.BatchJob
		jobType, status      string
		startedAt, completed sql.NullInt64
		metadata             string
		createdAt            int64
	)
	err := row.Scan(&job.ID, &jobType, &status, &startedAt, &completed, &job.Error, &metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch job: %w", err)
	}
	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.StartedAt = nullMillis(startedAt)
	job.CompletedAt = nullMillis(completed)
	job.CreatedAt = fromMillis(createdAt)
	job.Metadata = map[string]any{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &job.Metadata); err != nil {
			return nil, fmt.Errorf("decode job metadata: %w", err)
		}
	}
	return &job, nil
}

// Create stores a new job
func (r *BatchJobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	metadata := job.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode job metadata: %w", err)
	}

	var startedAt, completedAt sql.NullInt64
	if job.StartedAt != nil {
		startedAt = sql.NullInt64{Int64: toMillis(*job.StartedAt), Valid: true}
	}
	if job.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toMillis(*job.CompletedAt), Valid: true}
	}

	_, err = r.db.exec(ctx,
		`INSERT INTO batch_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Type), string(job.Status), startedAt, completedAt, job.Error, string(raw), toMillis(job.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create batch job: %w", err)
	}
	return nil
}

// Get loads a job
func (r *BatchJobRepository) Get(ctx context.Context, id string) (*domain.BatchJob, error) {
	return scanJob(r.db.queryRow(ctx, `SELECT `+jobColumns+` FROM batch_jobs WHERE id = ?`, id))
}

// ListPending returns up to limit pending jobs, oldest first
func (r *BatchJobRepository) ListPending(ctx context.Context, limit int) ([]domain.BatchJob, error) {
	rows, err := r.db.query(ctx,
		`SELECT `+jobColumns+` FROM batch_jobs WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(domain.JobPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.BatchJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// UpdateStatus moves a job to status. Running stamps started_at, the
// terminal states stamp completed_at and record errMsg.
func (r *BatchJobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string, now time.Time) error {
	var (
		res sql.Result
		err error
	)
	switch status {
	case domain.JobRunning:
		res, err = r.db.exec(ctx, `UPDATE batch_jobs SET status = ?, started_at = ? WHERE id = ?`,
			string(status), toMillis(now), id)
	case domain.JobCompleted, domain.JobFailed:
		res, err = r.db.exec(ctx, `UPDATE batch_jobs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
			string(status), toMillis(now), errMsg, id)
	default:
		res, err = r.db.exec(ctx, `UPDATE batch_jobs SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteFinishedBefore removes completed and failed jobs created before cutoff
func (r *BatchJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.exec(ctx,
		`DELETE FROM batch_jobs WHERE status IN (?, ?) AND created_at < ?`,
		string(domain.JobCompleted), string(domain.JobFailed), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return affected(res), nil
}
