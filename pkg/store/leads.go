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

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/pkg/model"
)

// ListLeadResults returns every committed LeadResult for a job, in
// source-row order, for the Confirmation Pipeline's export step.
func (s *Store) ListLeadResults(ctx context.Context, jobID string) ([]model.LeadResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, source_row_index, entity_name, director_name, registered_address,
			city, province, category, confidence, method, elapsed_millis, provider_id,
			cost, retry_count, error_kind, error_message, created_at
		FROM lead_results WHERE job_id = ? ORDER BY source_row_index`, jobID)
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to list lead results", err)
	}
	defer rows.Close()

	var out []model.LeadResult
	for rows.Next() {
		var r model.LeadResult
		if err := rows.Scan(&r.JobID, &r.SourceRowIndex, &r.EntityName, &r.DirectorName, &r.RegisteredAddress,
			&r.City, &r.Province, &r.Category, &r.Confidence, &r.Method, &r.ElapsedMillis, &r.ProviderID,
			&r.Cost, &r.RetryCount, &r.ErrorKind, &r.ErrorMessage, &r.CreatedAt); err != nil {
			return nil, classerr.Wrap(classerr.KindStoreError, "failed to scan lead result", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to iterate lead results", err)
	}
	return out, nil
}
