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

	"github.com/originate-data/dirclass/pkg/learn"
	"github.com/originate-data/dirclass/pkg/learned"
	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/phonetic"
)

// FeedbackStore is the subset of pkg/store's Store the feedback step
// needs: lookup by (kind, value) to find the patterns a name would have
// matched, and the outcome recorder that updates their success counts.
type FeedbackStore interface {
	LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error)
	RecordPatternOutcome(ctx context.Context, kind model.PatternKind, value string, category model.Category, correct bool) error
}

// ApplyFeedback locates every LearnedPattern a director name would have
// matched during classification — the same candidate set the Learning
// Extractor derives patterns into — and records whether that pattern's
// category call agreed with the human-confirmed category. Patterns
// never seen for this name are left untouched; RecordPatternOutcome is
// a no-op for a (kind, value) the store has no row for.
func ApplyFeedback(ctx context.Context, store FeedbackStore, c model.Confirmation) error {
	if c.ConfirmedCategory == "" || c.DirectorName == "" {
		return nil
	}

	normalized := phonetic.Normalize(c.DirectorName)
	features := learned.ExtractFeatures(normalized)
	markers := learn.ExtractMarkers(normalized)

	candidates := []struct {
		kind  model.PatternKind
		value string
	}{
		{model.PatternContains, normalized},
		{model.PatternPrefix, features.Prefix3},
		{model.PatternPrefix, features.Prefix2},
		{model.PatternSuffix, features.Suffix3},
		{model.PatternSuffix, features.Suffix2},
	}
	for _, marker := range markers {
		candidates = append(candidates, struct {
			kind  model.PatternKind
			value string
		}{model.PatternStructuralFeature, marker})
	}

	for _, cand := range candidates {
		if cand.value == "" {
			continue
		}
		existing, err := store.LookupPattern(ctx, cand.kind, cand.value)
		if err != nil {
			return err
		}
		if existing == nil {
			continue
		}
		correct := existing.Category == c.ConfirmedCategory
		if err := store.RecordPatternOutcome(ctx, cand.kind, cand.value, existing.Category, correct); err != nil {
			return err
		}
	}
	return nil
}
