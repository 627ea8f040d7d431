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

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/pkg/model"
)

// UpsertLearnedPattern inserts a pattern derived from a high-confidence
// LLM result, or folds new usage into an existing one with the same
// kind, value and category.
func (s *Store) UpsertLearnedPattern(ctx context.Context, p *model.LearnedPattern) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learned_patterns (pattern_kind, pattern_value, category, derived_confidence,
			usage_count, success_count, created_from_session, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(pattern_kind, pattern_value, category) DO UPDATE SET
			derived_confidence = (excluded.derived_confidence + learned_patterns.derived_confidence) / 2,
			usage_count = learned_patterns.usage_count + excluded.usage_count,
			success_count = learned_patterns.success_count + excluded.success_count`,
		string(p.Kind), p.Value, string(p.Category), p.DerivedConfidence,
		max(p.UsageCount, 1), p.SuccessCount, p.CreatedFromSession, time.Now())
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to upsert learned pattern", err)
	}
	return nil
}

// RecordPatternOutcome increments usage and, if the pattern's
// prediction was confirmed correct, success counts for the active
// pattern with the given kind, value and category. Used by the confirmation
// feedback loop.
func (s *Store) RecordPatternOutcome(ctx context.Context, kind model.PatternKind, value string, category model.Category, correct bool) error {
	successDelta := 0
	if correct {
		successDelta = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE learned_patterns SET usage_count = usage_count + 1, success_count = success_count + ?
		WHERE pattern_kind = ? AND pattern_value = ? AND category = ? AND active = 1`,
		successDelta, string(kind), value, string(category))
	if err != nil {
		return classerr.Wrap(classerr.KindStoreError, "failed to record pattern outcome", err)
	}
	return nil
}

func scanLearnedPattern(row *sql.Row) (*model.LearnedPattern, error) {
	var p model.LearnedPattern
	var active int
	err := row.Scan(&p.ID, &p.Kind, &p.Value, &p.Category, &p.DerivedConfidence,
		&p.UsageCount, &p.SuccessCount, &p.CreatedFromSession, &active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Active = active != 0
	return &p, nil
}

const learnedPatternColumns = `id, pattern_kind, pattern_value, category, derived_confidence,
	usage_count, success_count, created_from_session, active, created_at`

// LookupPattern returns the best active pattern matching kind and
// value, preferring the one with the highest effective confidence when
// more than one category claims the same token.
func (s *Store) LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+learnedPatternColumns+`
		FROM learned_patterns WHERE pattern_kind = ? AND pattern_value = ? AND active = 1`,
		string(kind), value)
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to look up learned pattern", err)
	}
	defer rows.Close()

	var best *model.LearnedPattern
	for rows.Next() {
		var p model.LearnedPattern
		var active int
		if err := rows.Scan(&p.ID, &p.Kind, &p.Value, &p.Category, &p.DerivedConfidence,
			&p.UsageCount, &p.SuccessCount, &p.CreatedFromSession, &active, &p.CreatedAt); err != nil {
			return nil, classerr.Wrap(classerr.KindStoreError, "failed to scan learned pattern", err)
		}
		p.Active = active != 0
		if best == nil || p.EffectiveConfidence() > best.EffectiveConfidence() {
			candidate := p
			best = &candidate
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to iterate learned patterns", err)
	}
	return best, nil
}

// LookupToken implements ruledict.LearnedTokenLookup: the rule
// dictionary falls back to learned exact-token patterns when a name
// token isn't in the curated dictionary.
func (s *Store) LookupToken(ctx context.Context, token string) (model.Category, float64, bool) {
	p, err := s.LookupPattern(ctx, model.PatternPrefix, token)
	if err != nil || p == nil {
		return "", 0, false
	}
	conf := p.EffectiveConfidence()
	if conf < 0.6 {
		return "", 0, false
	}
	return p.Category, conf, true
}

// GetLearnedPattern loads a single pattern by id, mainly for tests and
// confirmation-feedback bookkeeping.
func (s *Store) GetLearnedPattern(ctx context.Context, id int64) (*model.LearnedPattern, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+learnedPatternColumns+` FROM learned_patterns WHERE id = ?`, id)
	p, err := scanLearnedPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classerr.Wrap(classerr.KindStoreError, "failed to load learned pattern", err)
	}
	return p, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
