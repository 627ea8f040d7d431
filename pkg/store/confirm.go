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

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/pkg/model"
)

// SeedCanonicalCategories loads the closed set of demographic category
// codes the confirmation pipeline validates against. Safe to call
// repeatedly; existing rows are left untouched.
func (s *Store) SeedCanonicalCategories(ctx context.Context, categories []model.CanonicalCategory) error {
	for _, c := range categories {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO canonical_categories (code, display_name, sort_order) VALUES (?, ?, ?)
			ON CONFLICT(code) DO NOTHING`, string(c.Code), c.DisplayName, c.SortOrder); err != nil {
			return classerr.Wrap(classerr.KindStoreError, "failed to seed canonical category", err)
		}
	}
	return nil
}

// ListCanonicalCategories returns the closed category set, ordered for
// display (data-validation dropdowns, confirmation sheets).
func (s *Store) ListCanonicalCategories(ctx context.Context) ([]model.CanonicalCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, display_name, sort_order FROM canonical_categories ORDER BY sort_order`)
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to list canonical categories", err)
	}
	defer rows.Close()

	var out []model.CanonicalCategory
	for rows.Next() {
		var c model.CanonicalCategory
		if err := rows.Scan(&c.Code, &c.DisplayName, &c.SortOrder); err != nil {
			return nil, classerr.Wrap(classerr.KindStoreError, "failed to scan canonical category", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IsCanonicalCategory reports whether code is a member of the closed
// category set, the guard a re-ingested confirmation sheet must pass.
func (s *Store) IsCanonicalCategory(ctx context.Context, code model.Category) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM canonical_categories WHERE code = ?`, string(code)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classerr.Wrap(classerr.KindStoreError, "failed to check canonical category", err)
	}
	return true, nil
}

// UpsertConfirmation records a predicted row for later human
// confirmation, or updates it once a confirmer has reviewed it.
func (s *Store) UpsertConfirmation(ctx context.Context, c *model.Confirmation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO confirmations (source_fingerprint, source_row_index, entity_name, director_name,
			registered_address, city, province, spatial_context_hash, predicted_category,
			predicted_confidence, predicted_method, confirmed_category, confirmer_id, confirmed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_fingerprint, source_row_index) DO UPDATE SET
			confirmed_category = excluded.confirmed_category, confirmer_id = excluded.confirmer_id,
			confirmed_at = excluded.confirmed_at, notes = excluded.notes`,
		c.SourceFingerprint, c.SourceRowIndex, c.EntityName, c.DirectorName, c.RegisteredAddress,
		c.City, c.Province, c.SpatialContextHash, string(c.PredictedCategory), c.PredictedConfidence,
		string(c.PredictedMethod), string(c.ConfirmedCategory), c.ConfirmerID, c.ConfirmedAt, c.Notes)
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to upsert confirmation", err)
	}
	return nil
}

// GetConfirmation looks up a single confirmation row by source
// fingerprint and row index.
func (s *Store) GetConfirmation(ctx context.Context, fingerprint string, rowIndex int) (*model.Confirmation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source_fingerprint, source_row_index, entity_name, director_name, registered_address,
			city, province, spatial_context_hash, predicted_category, predicted_confidence,
			predicted_method, confirmed_category, confirmer_id, confirmed_at, notes
		FROM confirmations WHERE source_fingerprint = ? AND source_row_index = ?`, fingerprint, rowIndex)

	var c model.Confirmation
	var confirmedAt sql.NullTime
	err := row.Scan(&c.SourceFingerprint, &c.SourceRowIndex, &c.EntityName, &c.DirectorName,
		&c.RegisteredAddress, &c.City, &c.Province, &c.SpatialContextHash, &c.PredictedCategory,
		&c.PredictedConfidence, &c.PredictedMethod, &c.ConfirmedCategory, &c.ConfirmerID, &confirmedAt, &c.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to read confirmation", err)
	}
	if confirmedAt.Valid {
		c.ConfirmedAt = &confirmedAt.Time
	}
	return &c, nil
}

// ListUnconfirmed returns rows awaiting human confirmation for a
// source fingerprint, the read side of the enriched export.
func (s *Store) ListUnconfirmed(ctx context.Context, fingerprint string) ([]model.Confirmation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_fingerprint, source_row_index, entity_name, director_name, registered_address,
			city, province, spatial_context_hash, predicted_category, predicted_confidence,
			predicted_method, confirmed_category, confirmer_id, confirmed_at, notes
		FROM confirmations WHERE source_fingerprint = ? AND confirmed_category = ''
		ORDER BY source_row_index`, fingerprint)
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to list unconfirmed rows", err)
	}
	defer rows.Close()

	var out []model.Confirmation
	for rows.Next() {
		var c model.Confirmation
		var confirmedAt sql.NullTime
		if err := rows.Scan(&c.SourceFingerprint, &c.SourceRowIndex, &c.EntityName, &c.DirectorName,
			&c.RegisteredAddress, &c.City, &c.Province, &c.SpatialContextHash, &c.PredictedCategory,
			&c.PredictedConfidence, &c.PredictedMethod, &c.ConfirmedCategory, &c.ConfirmerID, &confirmedAt, &c.Notes); err != nil {
			return nil, classerr.Wrap(classerr.KindStoreError, "failed to scan confirmation", err)
		}
		if confirmedAt.Valid {
			c.ConfirmedAt = &confirmedAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
