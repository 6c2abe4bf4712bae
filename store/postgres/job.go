package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/huddlehq/huddle"
	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/job"
)

// CreateJob persists a new job record.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO huddle_jobs (
			id, type, owner_id, input, state, result, last_error,
			retries, max_retries,
			started_at, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13
		)`,
		j.ID.String(), j.Type, j.OwnerID, []byte(j.Input), string(j.State),
		[]byte(j.Result), j.LastError,
		j.Retries, j.MaxRetries,
		j.StartedAt, j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return huddle.ErrJobAlreadyExists
		}
		return fmt.Errorf("huddle/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, type, owner_id, input, state, result, last_error,
			retries, max_retries,
			started_at, completed_at, created_at, updated_at
		FROM huddle_jobs
		WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, huddle.ErrJobNotFound
		}
		return nil, fmt.Errorf("huddle/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE huddle_jobs SET
			type = $2, owner_id = $3, input = $4, state = $5,
			result = $6, last_error = $7, retries = $8, max_retries = $9,
			started_at = $10, completed_at = $11,
			updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.Type, j.OwnerID, []byte(j.Input), string(j.State),
		[]byte(j.Result), j.LastError, j.Retries, j.MaxRetries,
		j.StartedAt, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("huddle/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return huddle.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM huddle_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("huddle/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return huddle.ErrJobNotFound
	}
	return nil
}

// ListJobsByState returns jobs matching the given state, newest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	query := `
		SELECT
			id, type, owner_id, input, state, result, last_error,
			retries, max_retries,
			started_at, completed_at, created_at, updated_at
		FROM huddle_jobs
		WHERE state = $1`
	args := []interface{}{string(state)}
	argIdx := 2

	if opts.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, opts.OwnerID)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("huddle/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM huddle_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}
	if opts.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, opts.OwnerID)
	}

	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("huddle/postgres: count jobs: %w", err)
	}
	return count, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j        job.Job
		idStr    string
		stateStr string
		input    []byte
		result   []byte
	)
	err := row.Scan(
		&idStr, &j.Type, &j.OwnerID, &input, &stateStr, &result, &j.LastError,
		&j.Retries, &j.MaxRetries,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.State = job.State(stateStr)
	if len(input) > 0 {
		j.Input = input
	}
	if len(result) > 0 {
		j.Result = result
	}

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("huddle/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("huddle/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("huddle/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
