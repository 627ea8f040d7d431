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

// Package job is the job engine (C10): it locks, plans, executes,
// checkpoints and completes one classification run against one input
// source, driving the cascade (C7) over batches produced by the
// streaming row reader (C9) and committing them transactionally to the
// store (C1).
package job

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/internal/logging"
	"github.com/originate-data/dirclass/internal/metrics"
	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/provider"
	"github.com/originate-data/dirclass/pkg/tabular"
)

// Classifier is the subset of the cascade the job engine drives.
type Classifier interface {
	Classify(ctx context.Context, directorName string, leadCtx provider.Context) model.CascadeResult
}

// Store is the subset of pkg/store's Store the job engine needs.
type Store interface {
	CreateJob(ctx context.Context, j *model.Job) error
	FindRunningJob(ctx context.Context, inputPath string) (*model.Job, error)
	AcquireLock(ctx context.Context, path, jobID, holder string) (bool, error)
	ReleaseLock(ctx context.Context, path string) error
	GetResumePoint(ctx context.Context, jobID string) (int, error)
	RecordBatch(ctx context.Context, jobID string, batchIndex int, results []model.LeadResult) error
	ValidateJob(ctx context.Context, jobID string) (bool, error)
	SetJobStatus(ctx context.Context, jobID string, status model.JobStatus, errorSummary string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
}

// ExitCode mirrors the process exit codes named in the external
// interface contract.
type ExitCode int

const (
	ExitCompleted      ExitCode = 0
	ExitFailed         ExitCode = 1
	ExitLockContention ExitCode = 2
	ExitSourceChanged  ExitCode = 3
)

// Result summarizes one Run invocation.
type Result struct {
	Job      *model.Job
	ExitCode ExitCode
}

// Engine orchestrates one run of the pipeline against one input path.
type Engine struct {
	store         Store
	classifier    Classifier
	batchSize     int
	maxConcurrent int
	holder        string
}

// New builds an Engine. holder identifies this process for the job
// lock (hostname:pid is a reasonable choice; callers decide).
func New(store Store, classifier Classifier, batchSize, maxConcurrent int, holder string) *Engine {
	return &Engine{store: store, classifier: classifier, batchSize: batchSize, maxConcurrent: maxConcurrent, holder: holder}
}

// Run executes (or resumes) a classification job against inputPath,
// honoring cooperative cancellation via ctx.
func (e *Engine) Run(ctx context.Context, inputPath string) (Result, error) {
	fingerprint, err := Fingerprint(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("compute fingerprint: %w", err)
	}

	j, err := e.startOrResume(ctx, inputPath, fingerprint)
	if err != nil {
		if classerr.Is(err, classerr.KindSourceChanged) {
			return Result{ExitCode: ExitSourceChanged}, err
		}
		return Result{}, err
	}

	logger := logging.ForJob(j.ID)

	ok, err := e.store.AcquireLock(ctx, inputPath, j.ID, e.holder)
	if err != nil {
		return Result{Job: j}, fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return Result{Job: j, ExitCode: ExitLockContention}, classerr.New(classerr.KindLockContention, "another holder owns the job lock for this input path")
	}
	defer func() {
		if err := e.store.ReleaseLock(context.Background(), inputPath); err != nil {
			logger.Warn("job engine: failed to release lock", "input_path", inputPath, "error", err)
		}
	}()

	cancelled, err := e.execute(ctx, j, inputPath)
	if err != nil {
		_ = e.store.SetJobStatus(context.Background(), j.ID, model.JobFailed, err.Error())
		return Result{Job: j, ExitCode: ExitFailed}, err
	}
	if cancelled {
		_ = e.store.SetJobStatus(context.Background(), j.ID, model.JobCancelled, "cancelled by signal")
		return Result{Job: j, ExitCode: ExitFailed}, ctx.Err()
	}

	valid, err := e.store.ValidateJob(context.Background(), j.ID)
	if err != nil {
		return Result{Job: j, ExitCode: ExitFailed}, fmt.Errorf("validate job: %w", err)
	}
	if !valid {
		summary := "committed lead-result count does not match the planned total row count"
		_ = e.store.SetJobStatus(context.Background(), j.ID, model.JobFailed, summary)
		return Result{Job: j, ExitCode: ExitFailed}, classerr.New(classerr.KindStoreError, summary)
	}

	if err := e.store.SetJobStatus(context.Background(), j.ID, model.JobCompleted, ""); err != nil {
		return Result{Job: j, ExitCode: ExitFailed}, fmt.Errorf("mark job completed: %w", err)
	}
	return Result{Job: j, ExitCode: ExitCompleted}, nil
}

func (e *Engine) startOrResume(ctx context.Context, inputPath, fingerprint string) (*model.Job, error) {
	existing, err := e.store.FindRunningJob(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("look up running job: %w", err)
	}
	if existing != nil {
		if existing.Fingerprint != fingerprint {
			return nil, classerr.New(classerr.KindSourceChanged, "input source changed since the running job for this path started")
		}
		return existing, nil
	}

	total, err := tabular.CountDataRows(inputPath)
	if err != nil {
		return nil, fmt.Errorf("count input rows: %w", err)
	}

	j := &model.Job{
		ID:          uuid.New().String(),
		InputPath:   inputPath,
		Fingerprint: fingerprint,
		TotalRows:   total,
		BatchSize:   e.batchSize,
		StartedAt:   time.Now(),
	}
	if err := e.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

// execute drives batches from the resume point to end of source,
// returning cancelled=true if ctx was cancelled before completion.
func (e *Engine) execute(ctx context.Context, j *model.Job, inputPath string) (cancelled bool, err error) {
	resumeRow, err := e.store.GetResumePoint(ctx, j.ID)
	if err != nil {
		return false, fmt.Errorf("get resume point: %w", err)
	}

	reader, err := tabular.Open(inputPath, resumeRow)
	if err != nil {
		return false, fmt.Errorf("open input source: %w", err)
	}
	defer reader.Close()

	batchIndex := (resumeRow / j.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		default:
		}

		batch, err := reader.NextBatch(j.BatchSize)
		if err != nil {
			return false, fmt.Errorf("read batch %d: %w", batchIndex, err)
		}
		if len(batch) == 0 {
			break
		}

		results, err := e.classifyBatch(ctx, j.ID, batch)
		if err != nil {
			return false, err
		}

		if ctx.Err() != nil {
			return true, nil
		}

		if err := e.store.RecordBatch(ctx, j.ID, batchIndex, results); err != nil {
			return false, fmt.Errorf("record batch %d: %w", batchIndex, err)
		}
		metrics.RecordBatchCommitted()

		failed := 0
		for _, r := range results {
			if r.Failed() {
				failed++
			}
		}
		logging.ForBatch(j.ID, batchIndex).Info("job engine: batch committed",
			"rows", len(results), "failed", failed)

		batchIndex++
	}

	return false, nil
}

// classifyBatch runs up to maxConcurrent cascade classifications
// concurrently over one batch. A single lead's failure never aborts
// the batch: it is recorded as a failed LeadResult instead.
func (e *Engine) classifyBatch(ctx context.Context, jobID string, batch []tabular.Row) ([]model.LeadResult, error) {
	results := make([]model.LeadResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i, row := range batch {
		i, row := i, row
		g.Go(func() error {
			results[i] = e.classifyOne(gctx, jobID, row)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) classifyOne(ctx context.Context, jobID string, row tabular.Row) model.LeadResult {
	start := time.Now()
	lead := row.Lead

	result := model.LeadResult{
		JobID:             jobID,
		SourceRowIndex:    row.SourceRowIndex,
		EntityName:        lead.EntityName,
		DirectorName:      lead.DirectorName,
		RegisteredAddress: lead.RegisteredAddress,
		City:              lead.City,
		Province:          lead.Province,
		CreatedAt:         time.Now(),
	}

	if lead.DirectorName == "" {
		result.ErrorKind = string(classerr.KindLeadValidation)
		result.ErrorMessage = "director name is required for classification"
		result.Category = model.Unclassified
		result.Method = model.MethodNone
		metrics.RecordRowProcessed(result.Failed(), time.Since(start))
		return result
	}

	leadCtx := provider.Context{
		EntityName:        lead.EntityName,
		RegisteredAddress: lead.RegisteredAddress,
		City:              lead.City,
		Province:          lead.Province,
	}

	cascadeResult := e.classifier.Classify(ctx, lead.DirectorName, leadCtx)
	result.Category = cascadeResult.Category
	result.Confidence = cascadeResult.Confidence
	result.Method = cascadeResult.Method
	result.ProviderID = cascadeResult.ProviderID
	result.Cost = cascadeResult.Cost
	result.ErrorKind = cascadeResult.ErrorKind
	result.ErrorMessage = cascadeResult.ErrorMessage
	result.ElapsedMillis = time.Since(start).Milliseconds()
	metrics.RecordRowProcessed(result.Failed(), time.Since(start))
	return result
}
