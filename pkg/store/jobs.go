// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/pkg/model"
)

// CreateJob inserts a new running Job for an input path. It fails with
// classerr.KindDuplicateRunningJob if another running job already
// exists for that path, per the unique running-job-per-path invariant.
func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, input_path, fingerprint, total_rows, batch_size,
			last_committed_batch, processed_rows, failed_rows, status, started_at,
			accumulated_cost, accumulated_millis, error_summary)
		VALUES (?, ?, ?, ?, ?, -1, 0, 0, ?, ?, 0, 0, '')`,
		job.ID, job.InputPath, job.Fingerprint, job.TotalRows, job.BatchSize,
		model.JobRunning, job.StartedAt)
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return classerr.Wrap(classerr.KindDuplicateRunningJob, "a running job already exists for this input path", err)
		}
		return classerr.Wrap(classerr.KindStoreError, "failed to create job", err)
	}
	job.Status = model.JobRunning
	job.LastCommittedBatch = -1
	return nil
}

// FindRunningJob returns the running job for an input path, if any.
func (s *Store) FindRunningJob(ctx context.Context, inputPath string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input_path, fingerprint, total_rows, batch_size, last_committed_batch,
			processed_rows, failed_rows, status, started_at, completed_at,
			accumulated_cost, accumulated_millis, error_summary
		FROM jobs WHERE input_path = ? AND status = ?`, inputPath, model.JobRunning)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to look up running job", err)
	}
	return job, nil
}

func scanJob(row *sql.Row) (*model.Job, error) {
	var j model.Job
	var completedAt sql.NullTime
	err := row.Scan(&j.ID, &j.InputPath, &j.Fingerprint, &j.TotalRows, &j.BatchSize,
		&j.LastCommittedBatch, &j.ProcessedRows, &j.FailedRows, &j.Status, &j.StartedAt,
		&completedAt, &j.AccumulatedCost, &j.AccumulatedMillis, &j.ErrorSummary)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

// AcquireLock takes the job lock for an input path. It returns false,
// nil if another holder already owns the lock (caller should fail fast
// with classerr.KindLockContention).
func (s *Store) AcquireLock(ctx context.Context, path, jobID, holder string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classerr.Wrap(classerr.KindStoreError, "failed to begin lock transaction", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT job_id FROM job_locks WHERE input_path = ?`, path).Scan(&existing)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return false, classerr.Wrap(classerr.KindStoreError, "failed to check existing lock", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO job_locks (input_path, job_id, holder, acquired_at) VALUES (?, ?, ?, ?)`,
		path, jobID, holder, time.Now()); err != nil {
		return false, classerr.Wrap(classerr.KindStoreError, "failed to insert lock", err)
	}
	if err := tx.Commit(); err != nil {
		return false, classerr.Wrap(classerr.KindStoreError, "failed to commit lock", err)
	}
	return true, nil
}

// ReleaseLock drops the job lock for an input path. Releasing an
// already-released lock is not an error.
func (s *Store) ReleaseLock(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM job_locks WHERE input_path = ?`, path); err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to release lock", err)
	}
	return nil
}

// GetResumePoint returns the first source row index not known to be
// committed for jobID.
func (s *Store) GetResumePoint(ctx context.Context, jobID string) (int, error) {
	var lastCommitted, batchSize int
	err := s.db.QueryRowContext(ctx, `SELECT last_committed_batch, batch_size FROM jobs WHERE id = ?`, jobID).
		Scan(&lastCommitted, &batchSize)
	if err != nil {
		return 0, classerr.Wrap(classerr.KindStoreError, "failed to read resume point", err)
	}
	return (lastCommitted + 1) * batchSize, nil
}

// RecordBatch commits a batch of LeadResults and advances the job's
// watermark in a single transaction. Partial visibility is forbidden:
// either every result is inserted and the watermark advances, or
// nothing changes.
func (s *Store) RecordBatch(ctx context.Context, jobID string, batchIndex int, results []model.LeadResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to begin batch transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lead_results (job_id, source_row_index, entity_name, director_name,
			registered_address, city, province, category, confidence, method,
			elapsed_millis, provider_id, cost, retry_count, error_kind, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, source_row_index) DO UPDATE SET
			category=excluded.category, confidence=excluded.confidence, method=excluded.method,
			elapsed_millis=excluded.elapsed_millis, provider_id=excluded.provider_id,
			cost=excluded.cost, retry_count=excluded.retry_count,
			error_kind=excluded.error_kind, error_message=excluded.error_message`)
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to prepare lead insert", err)
	}
	defer stmt.Close()

	var batchCost float64
	var batchMillis int64
	failedInBatch := 0
	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, jobID, r.SourceRowIndex, r.EntityName, r.DirectorName,
			r.RegisteredAddress, r.City, r.Province, string(r.Category), r.Confidence, string(r.Method),
			r.ElapsedMillis, r.ProviderID, r.Cost, r.RetryCount, r.ErrorKind, r.ErrorMessage, r.CreatedAt); err != nil {
			return classerr.Wrap(classerr.KindStoreError, "failed to insert lead result", err)
		}
		batchCost += r.Cost
		batchMillis += r.ElapsedMillis
		if r.Failed() {
			failedInBatch++
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET last_committed_batch = ?, processed_rows = processed_rows + ?,
			failed_rows = failed_rows + ?, accumulated_cost = accumulated_cost + ?,
			accumulated_millis = accumulated_millis + ?
		WHERE id = ?`,
		batchIndex, len(results), failedInBatch, batchCost, batchMillis, jobID); err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to advance watermark", err)
	}

	if err := tx.Commit(); err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to commit batch", err)
	}
	return nil
}

// ValidateJob recomputes the count of LeadResult rows for jobID and
// compares it against the job's planned total row count.
func (s *Store) ValidateJob(ctx context.Context, jobID string) (bool, error) {
	var total, resultCount int
	if err := s.db.QueryRowContext(ctx, `SELECT total_rows FROM jobs WHERE id = ?`, jobID).Scan(&total); err != nil {
		return false, classerr.Wrap(classerr.KindStoreError, "failed to read job total rows", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lead_results WHERE job_id = ?`, jobID).Scan(&resultCount); err != nil {
		return false, classerr.Wrap(classerr.KindStoreError, "failed to count lead results", err)
	}
	return resultCount == total, nil
}

// SetJobStatus transitions a job to a terminal status.
func (s *Store) SetJobStatus(ctx context.Context, jobID string, status model.JobStatus, errorSummary string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = ?, error_summary = ? WHERE id = ?`,
		status, time.Now(), errorSummary, jobID)
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to set job status", err)
	}
	return nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input_path, fingerprint, total_rows, batch_size, last_committed_batch,
			processed_rows, failed_rows, status, started_at, completed_at,
			accumulated_cost, accumulated_millis, error_summary
		FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to load job", err)
	}
	return job, nil
}

func isUniqueConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
