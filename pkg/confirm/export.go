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

package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/tabular"
)

// sourceColumns names the original-row columns the store retains per
// LeadResult (the classification-relevant subset, not every column of
// the original source — the store's schema is bounded to what the
// cascade and export actually need).
var sourceColumns = []string{"entity_name", "director_name", "registered_address", "city", "province"}

// Store is the subset of pkg/store's Store the export step reads and
// writes (seeding the unconfirmed Confirmation row each exported lead
// will later be matched against on ingest).
type Store interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListLeadResults(ctx context.Context, jobID string) ([]model.LeadResult, error)
	ListCanonicalCategories(ctx context.Context) ([]model.CanonicalCategory, error)
	GetConfirmation(ctx context.Context, fingerprint string, rowIndex int) (*model.Confirmation, error)
	UpsertConfirmation(ctx context.Context, c *model.Confirmation) error
}

// Export writes the enriched export artifact for jobID to outputPath,
// seeding an unconfirmed Confirmation row per lead so the ingest step
// can match human confirmations back by (fingerprint, row index).
func Export(ctx context.Context, store Store, jobID, outputPath string) error {
	j, err := store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if j == nil {
		return fmt.Errorf("job %s not found", jobID)
	}

	results, err := store.ListLeadResults(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list lead results: %w", err)
	}

	categories, err := store.ListCanonicalCategories(ctx)
	if err != nil {
		return fmt.Errorf("list canonical categories: %w", err)
	}
	displayNames := make([]string, len(categories))
	for i, c := range categories {
		displayNames[i] = c.DisplayName
	}

	w, err := tabular.NewWriter(sourceColumns, displayNames)
	if err != nil {
		return fmt.Errorf("create export writer: %w", err)
	}
	defer w.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range results {
		spatial := SpatialContext(r.City, r.Province)
		notes := ""
		if r.Failed() {
			notes = fmt.Sprintf("%s: %s", r.ErrorKind, r.ErrorMessage)
		}

		row := tabular.EnrichedRow{
			SourceCells: []string{r.EntityName, r.DirectorName, r.RegisteredAddress, r.City, r.Province},
			Category:    string(r.Category),
			Confidence:  r.Confidence,
			Method:      string(r.Method),
			Spatial:     spatial,
			Notes:       notes,
			SourceRow:   r.SourceRowIndex,
			JobID:       jobID,
			ProcessedAt: now,
		}
		if err := w.WriteRow(row); err != nil {
			return fmt.Errorf("write row %d: %w", r.SourceRowIndex, err)
		}

		// Re-exporting a job must never clobber a confirmation a human
		// reviewer already supplied, so only seed rows not seen before.
		existing, err := store.GetConfirmation(ctx, j.Fingerprint, r.SourceRowIndex)
		if err != nil {
			return fmt.Errorf("check existing confirmation for row %d: %w", r.SourceRowIndex, err)
		}
		if existing == nil {
			confirmation := model.Confirmation{
				SourceFingerprint:   j.Fingerprint,
				SourceRowIndex:      r.SourceRowIndex,
				EntityName:          r.EntityName,
				DirectorName:        r.DirectorName,
				RegisteredAddress:   r.RegisteredAddress,
				City:                r.City,
				Province:            r.Province,
				SpatialContextHash:  SpatialContextHash(spatial),
				PredictedCategory:   r.Category,
				PredictedConfidence: r.Confidence,
				PredictedMethod:     r.Method,
			}
			if err := store.UpsertConfirmation(ctx, &confirmation); err != nil {
				return fmt.Errorf("seed confirmation for row %d: %w", r.SourceRowIndex, err)
			}
		}
	}

	if err := w.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	return nil
}
