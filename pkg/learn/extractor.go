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

// Package learn is the Learning Extractor (C8): it turns high-confidence
// LLM results into LearnedPatterns the cascade's learned-pattern layer
// (C4) can consult on future lookups, without ever blocking the
// cascade's own return path.
package learn

import (
	"context"

	"github.com/originate-data/dirclass/internal/logging"
	"github.com/originate-data/dirclass/pkg/learned"
	"github.com/originate-data/dirclass/pkg/model"
)

// DerivedConfidenceDiscount scales an LLM's confidence down when it
// becomes a derived pattern's confidence: a pattern is a weaker signal
// than the specific classification it was drawn from.
const DerivedConfidenceDiscount = 0.9

// MarkerCooccurrenceThreshold is the effective confidence at which an
// existing pattern for the same marker under a different category makes
// the extractor skip the marker pattern. It also scales a persisted
// marker pattern's derived confidence.
const MarkerCooccurrenceThreshold = 0.75

// PatternStore is the subset of pkg/store's Store the extractor writes
// to.
type PatternStore interface {
	UpsertLearnedPattern(ctx context.Context, p *model.LearnedPattern) error
	LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error)
}

// Extractor implements cascade.Extractor: on a confident LLM result it
// derives and persists candidate LearnedPatterns.
type Extractor struct {
	store     PatternStore
	sessionID string
}

// New builds an Extractor that attributes every pattern it derives to
// sessionID (for provenance; CreatedFromSession on LearnedPattern).
func New(store PatternStore, sessionID string) *Extractor {
	return &Extractor{store: store, sessionID: sessionID}
}

// Extract derives and persists LearnedPatterns from one high-confidence
// LLMClassification. It never panics and never returns an error: a
// malformed or low-signal input simply yields fewer (or zero) derived
// patterns. The cascade invokes this asynchronously, so a slow or
// failing extraction never delays a classification result.
func (e *Extractor) Extract(ctx context.Context, rec model.LLMClassification) {
	if rec.NormalizedName == "" || rec.Category == "" {
		return
	}

	features := learned.ExtractFeatures(rec.NormalizedName)
	markers := ExtractMarkers(rec.NormalizedName)
	discounted := rec.Confidence * DerivedConfidenceDiscount

	candidates := e.candidates(ctx, rec, features, markers, discounted)
	for _, p := range candidates {
		if err := e.store.UpsertLearnedPattern(ctx, &p); err != nil {
			logging.GetLogger().Warn("learning extractor: failed to persist pattern",
				"kind", p.Kind, "value", p.Value, "category", p.Category, "error", err)
		}
	}
}

func (e *Extractor) candidates(ctx context.Context, rec model.LLMClassification, features learned.StructuralFeatures, markers []string, confidence float64) []model.LearnedPattern {
	var out []model.LearnedPattern

	out = append(out, model.LearnedPattern{
		Kind:               model.PatternContains,
		Value:              rec.NormalizedName,
		Category:           rec.Category,
		DerivedConfidence:  confidence,
		UsageCount:         1,
		SuccessCount:       0,
		CreatedFromSession: e.sessionID,
		Active:             true,
	})

	// The phonetic-family tuple itself is persisted separately, in the
	// dedicated phonetic_families table, as a side effect of the store's
	// LLMClassification upsert — not duplicated here as a LearnedPattern.

	for _, affix := range []struct {
		kind  model.PatternKind
		value string
	}{
		{model.PatternPrefix, features.Prefix3},
		{model.PatternPrefix, features.Prefix2},
		{model.PatternSuffix, features.Suffix3},
		{model.PatternSuffix, features.Suffix2},
	} {
		if affix.value == "" {
			continue
		}
		out = append(out, model.LearnedPattern{
			Kind:               affix.kind,
			Value:              affix.value,
			Category:           rec.Category,
			DerivedConfidence:  confidence,
			UsageCount:         1,
			CreatedFromSession: e.sessionID,
			Active:             true,
		})
	}

	for _, marker := range markers {
		if existing, err := e.store.LookupPattern(ctx, model.PatternStructuralFeature, marker); err == nil && existing != nil {
			// The store already has store-wide evidence for this marker
			// against a different category at or above the
			// co-occurrence threshold: don't add a conflicting pattern.
			if existing.Category != rec.Category && existing.EffectiveConfidence() >= MarkerCooccurrenceThreshold {
				continue
			}
		}
		out = append(out, model.LearnedPattern{
			Kind:               model.PatternStructuralFeature,
			Value:              marker,
			Category:           rec.Category,
			DerivedConfidence:  confidence * MarkerCooccurrenceThreshold,
			UsageCount:         1,
			CreatedFromSession: e.sessionID,
			Active:             true,
		})
	}

	return out
}
