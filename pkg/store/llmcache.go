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
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/pkg/model"
)

// UpsertLLMClassification persists the LLM's answer for a normalized
// name. Idempotent by normalized name: two concurrent probes for the
// same name both racing to L4 end up with one row, not two.
func (s *Store) UpsertLLMClassification(ctx context.Context, rec *model.LLMClassification) error {
	markers := strings.Join(rec.LinguisticMarkers, ",")
	features, err := json.Marshal(rec.StructuralFeatures)
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to encode structural features", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO llm_classifications (normalized_name, category, confidence, provider_id, cost,
			elapsed_millis, soundex, metaphone, double_metaphone_primary, double_metaphone_secondary,
			nysiis, linguistic_markers, structural_features, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_name) DO UPDATE SET
			category=excluded.category, confidence=excluded.confidence, provider_id=excluded.provider_id,
			cost=excluded.cost, elapsed_millis=excluded.elapsed_millis,
			soundex=excluded.soundex, metaphone=excluded.metaphone,
			double_metaphone_primary=excluded.double_metaphone_primary,
			double_metaphone_secondary=excluded.double_metaphone_secondary, nysiis=excluded.nysiis,
			linguistic_markers=excluded.linguistic_markers, structural_features=excluded.structural_features,
			session_id=excluded.session_id`,
		rec.NormalizedName, string(rec.Category), rec.Confidence, rec.ProviderID, rec.Cost,
		rec.ElapsedMillis, rec.PhoneticCodes.Soundex, rec.PhoneticCodes.Metaphone,
		rec.PhoneticCodes.DoubleMetaphonePrimary, rec.PhoneticCodes.DoubleMetaphoneSecondary,
		rec.PhoneticCodes.NYSIIS, markers, string(features), rec.SessionID, time.Now())
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to upsert llm classification", err)
	}
	return s.bumpPhoneticFamily(ctx, rec)
}

// GetLLMClassification returns the cached LLM answer for a normalized
// name, the L0 cascade layer's backing read.
func (s *Store) GetLLMClassification(ctx context.Context, normalizedName string) (*model.LLMClassification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT normalized_name, category, confidence, provider_id, cost, elapsed_millis,
			soundex, metaphone, double_metaphone_primary, double_metaphone_secondary, nysiis,
			linguistic_markers, structural_features, session_id, created_at
		FROM llm_classifications WHERE normalized_name = ?`, normalizedName)

	var rec model.LLMClassification
	var markers, features string
	err := row.Scan(&rec.NormalizedName, &rec.Category, &rec.Confidence, &rec.ProviderID, &rec.Cost,
		&rec.ElapsedMillis, &rec.PhoneticCodes.Soundex, &rec.PhoneticCodes.Metaphone,
		&rec.PhoneticCodes.DoubleMetaphonePrimary, &rec.PhoneticCodes.DoubleMetaphoneSecondary,
		&rec.PhoneticCodes.NYSIIS, &markers, &features, &rec.SessionID, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to read llm classification", err)
	}
	if markers != "" {
		rec.LinguisticMarkers = strings.Split(markers, ",")
	}
	if features != "" {
		if err := json.Unmarshal([]byte(features), &rec.StructuralFeatures); err != nil {
			return nil, classerr.Wrap(classerr.KindStoreError, "failed to decode structural features", err)
		}
	}
	return &rec, nil
}

// bumpPhoneticFamily folds a new LLMClassification into the phonetic
// family keyed by its five-code tuple: majority category, confidence
// as the share of evidence agreeing with the majority, and an
// incremented evidence count.
func (s *Store) bumpPhoneticFamily(ctx context.Context, rec *model.LLMClassification) error {
	key := phoneticFamilyKey(rec.PhoneticCodes)
	if key == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to begin phonetic family transaction", err)
	}
	defer tx.Rollback()

	var category string
	var confidence float64
	var evidence int
	err = tx.QueryRowContext(ctx, `SELECT category, confidence, evidence_count FROM phonetic_families WHERE codes_key = ?`, key).
		Scan(&category, &confidence, &evidence)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO phonetic_families (codes_key, category, confidence, evidence_count) VALUES (?, ?, 1.0, 1)`,
			key, string(rec.Category)); err != nil {
			return classerr.Wrap(classerr.KindStoreError, "failed to insert phonetic family", err)
		}
	case err != nil:
		return classerr.Wrap(classerr.KindStoreError, "failed to read phonetic family", err)
	default:
		newEvidence := evidence + 1
		agreeing := confidence * float64(evidence)
		newCategory := category
		if string(rec.Category) == category {
			agreeing++
		} else if agreeing < float64(newEvidence)/2 {
			// the new category has overtaken the old majority
			newCategory = string(rec.Category)
			agreeing = float64(newEvidence) - agreeing
		}
		newConfidence := agreeing / float64(newEvidence)
		if _, err := tx.ExecContext(ctx, `UPDATE phonetic_families SET category = ?, confidence = ?, evidence_count = ? WHERE codes_key = ?`,
			newCategory, newConfidence, newEvidence, key); err != nil {
			return classerr.Wrap(classerr.KindStoreError, "failed to update phonetic family", err)
		}
	}

	return tx.Commit()
}

func phoneticFamilyKey(codes model.PhoneticCodes) string {
	t := codes.Tuple()
	if t[0] == "" && t[1] == "" && t[2] == "" && t[3] == "" && t[4] == "" {
		return ""
	}
	return strings.Join(t[:], "|")
}

// LookupPhoneticFamily returns the majority category for a tuple of
// phonetic codes, if any evidence has accumulated for it.
func (s *Store) LookupPhoneticFamily(ctx context.Context, codes model.PhoneticCodes) (*model.PhoneticFamily, error) {
	key := phoneticFamilyKey(codes)
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT codes_key, category, confidence, evidence_count FROM phonetic_families WHERE codes_key = ?`, key)
	var fam model.PhoneticFamily
	err := row.Scan(&fam.CodesKey, &fam.Category, &fam.Confidence, &fam.EvidenceCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to look up phonetic family", err)
	}
	return &fam, nil
}
