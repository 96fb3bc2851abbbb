package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// RetryStore persists retryable jobs to the job_retries table in the
// cache database so pending retries survive a restart.
type RetryStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRetryStore creates a retry store on the given cache database.
func NewRetryStore(db *sql.DB, log zerolog.Logger) *RetryStore {
	return &RetryStore{
		db:  db,
		log: log.With().Str("repo", "job_retries").Logger(),
	}
}

// Save upserts a job's retry state. The payload map is msgpack-encoded.
func (s *RetryStore) Save(ctx context.Context, job *Job) error {
	payload, err := msgpack.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_retries (id, job_type, payload, retries, max_retries, available_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			retries = excluded.retries,
			available_at = excluded.available_at`,
		job.ID, string(job.Type), payload, job.Retries, job.MaxRetries,
		job.AvailableAt.UTC().Format("2006-01-02 15:04:05"),
		job.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to save job retry: %w", err)
	}
	return nil
}

// Delete removes a persisted retry, typically after the job succeeded or
// exhausted its attempts.
func (s *RetryStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM job_retries WHERE id = ?", jobID); err != nil {
		return fmt.Errorf("failed to delete job retry: %w", err)
	}
	return nil
}

// LoadAll returns every persisted retry, oldest first. Used at startup to
// requeue work that was pending when the process stopped.
func (s *RetryStore) LoadAll(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_type, payload, retries, max_retries, available_at, created_at
		FROM job_retries ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load job retries: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			job         Job
			jobType     string
			payload     []byte
			availableAt string
			createdAt   string
		)
		if err := rows.Scan(&job.ID, &jobType, &payload, &job.Retries, &job.MaxRetries, &availableAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job retry: %w", err)
		}
		job.Type = JobType(jobType)
		job.Priority = PriorityHigh

		if err := msgpack.Unmarshal(payload, &job.Payload); err != nil {
			// A corrupt payload is unrecoverable; drop the row and move on.
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("dropping job retry with undecodable payload")
			_ = s.deleteQuiet(ctx, job.ID)
			continue
		}

		job.AvailableAt = parseRetryTime(availableAt)
		job.CreatedAt = parseRetryTime(createdAt)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// Count returns the number of persisted retries.
func (s *RetryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_retries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count job retries: %w", err)
	}
	return n, nil
}

func (s *RetryStore) deleteQuiet(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM job_retries WHERE id = ?", jobID)
	return err
}

func parseRetryTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
