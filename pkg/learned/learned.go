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

package learned

import (
	"context"

	"github.com/originate-data/dirclass/pkg/model"
)

// MinConfidence is the acceptance floor for a learned-pattern lookup
// (cascade layer L3).
const MinConfidence = 0.6

// PatternStore is the subset of pkg/store's Store this package needs.
// Kept as a narrow interface so learned can be tested against a fake
// without importing the store package (and its cgo sqlite driver).
type PatternStore interface {
	LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error)
	LookupPhoneticFamily(ctx context.Context, codes model.PhoneticCodes) (*model.PhoneticFamily, error)
	RecordPatternOutcome(ctx context.Context, kind model.PatternKind, value string, category model.Category, correct bool) error
}

// Probe is the shape-derived description of a name being classified.
type Probe struct {
	NormalizedName string
	Codes          model.PhoneticCodes
	Features       StructuralFeatures
}

// Match is a confident hit from Lookup.
type Match struct {
	Category     model.Category
	Confidence   float64
	PatternKind  model.PatternKind
	PatternValue string
}

// Lookup probes the learned-pattern store in the fixed order: exact
// normalized name, phonetic family, prefix/suffix, structural feature.
// The first confident hit wins; misses along the way are not errors.
func Lookup(ctx context.Context, store PatternStore, probe Probe) (Match, bool, error) {
	if m, ok, err := lookupExact(ctx, store, probe); ok || err != nil {
		return m, ok, err
	}
	if m, ok, err := lookupPhoneticFamily(ctx, store, probe); ok || err != nil {
		return m, ok, err
	}
	if m, ok, err := lookupAffix(ctx, store, probe); ok || err != nil {
		return m, ok, err
	}
	return lookupStructuralFeature(ctx, store, probe)
}

func lookupExact(ctx context.Context, store PatternStore, probe Probe) (Match, bool, error) {
	p, err := store.LookupPattern(ctx, model.PatternContains, probe.NormalizedName)
	if err != nil {
		return Match{}, false, err
	}
	return accept(ctx, store, p, model.PatternContains, probe.NormalizedName)
}

func lookupPhoneticFamily(ctx context.Context, store PatternStore, probe Probe) (Match, bool, error) {
	fam, err := store.LookupPhoneticFamily(ctx, probe.Codes)
	if err != nil {
		return Match{}, false, err
	}
	if fam == nil || fam.Confidence < MinConfidence {
		return Match{}, false, nil
	}
	return Match{Category: fam.Category, Confidence: fam.Confidence, PatternKind: model.PatternPhoneticCodeFamily, PatternValue: fam.CodesKey}, true, nil
}

func lookupAffix(ctx context.Context, store PatternStore, probe Probe) (Match, bool, error) {
	for _, pair := range []struct {
		kind  model.PatternKind
		value string
	}{
		{model.PatternPrefix, probe.Features.Prefix3},
		{model.PatternPrefix, probe.Features.Prefix2},
		{model.PatternSuffix, probe.Features.Suffix3},
		{model.PatternSuffix, probe.Features.Suffix2},
	} {
		if pair.value == "" {
			continue
		}
		p, err := store.LookupPattern(ctx, pair.kind, pair.value)
		if err != nil {
			return Match{}, false, err
		}
		if m, ok, _ := accept(ctx, store, p, pair.kind, pair.value); ok {
			return m, true, nil
		}
	}
	return Match{}, false, nil
}

func lookupStructuralFeature(ctx context.Context, store PatternStore, probe Probe) (Match, bool, error) {
	for key, v := range probe.Features.ToMap() {
		if v <= 0 {
			continue
		}
		p, err := store.LookupPattern(ctx, model.PatternStructuralFeature, key)
		if err != nil {
			return Match{}, false, err
		}
		if m, ok, _ := accept(ctx, store, p, model.PatternStructuralFeature, key); ok {
			return m, true, nil
		}
	}
	return Match{}, false, nil
}

// accept checks a candidate pattern against the acceptance floor and,
// on a confident hit, bumps its usage count. Success count only moves
// later, when a confirmation agrees with the prediction.
func accept(ctx context.Context, store PatternStore, p *model.LearnedPattern, kind model.PatternKind, value string) (Match, bool, error) {
	if p == nil {
		return Match{}, false, nil
	}
	conf := p.EffectiveConfidence()
	if conf < MinConfidence {
		return Match{}, false, nil
	}
	if err := store.RecordPatternOutcome(ctx, kind, value, p.Category, false); err != nil {
		return Match{}, false, err
	}
	return Match{Category: p.Category, Confidence: conf, PatternKind: kind, PatternValue: value}, true, nil
}
