package learn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originate-data/dirclass/pkg/model"
)

type fakePatternStore struct {
	upserted []model.LearnedPattern
	existing map[string]*model.LearnedPattern
}

func newFakePatternStore() *fakePatternStore {
	return &fakePatternStore{existing: map[string]*model.LearnedPattern{}}
}

func (f *fakePatternStore) UpsertLearnedPattern(ctx context.Context, p *model.LearnedPattern) error {
	f.upserted = append(f.upserted, *p)
	return nil
}

func (f *fakePatternStore) LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error) {
	return f.existing[string(kind)+"|"+value], nil
}

func TestExtractPersistsContainsAndAffixPatterns(t *testing.T) {
	store := newFakePatternStore()
	e := New(store, "session-1")

	e.Extract(context.Background(), model.LLMClassification{
		NormalizedName: "bongani dlamini",
		Category:       "african",
		Confidence:     0.9,
	})

	var kinds []model.PatternKind
	for _, p := range store.upserted {
		kinds = append(kinds, p.Kind)
		assert.Equal(t, model.Category("african"), p.Category)
		assert.Equal(t, 1, p.UsageCount)
		assert.Equal(t, "session-1", p.CreatedFromSession)
	}
	assert.Contains(t, kinds, model.PatternContains)
	assert.Contains(t, kinds, model.PatternPrefix)
	assert.Contains(t, kinds, model.PatternSuffix)
}

func TestExtractDiscountsDerivedConfidenceFromLLMConfidence(t *testing.T) {
	store := newFakePatternStore()
	e := New(store, "session-1")

	e.Extract(context.Background(), model.LLMClassification{
		NormalizedName: "bongani dlamini",
		Category:       "african",
		Confidence:     0.9,
	})

	require.NotEmpty(t, store.upserted)
	for _, p := range store.upserted {
		if p.Kind == model.PatternContains {
			assert.InDelta(t, 0.81, p.DerivedConfidence, 0.001)
		}
	}
}

func TestExtractSkipsEmptyNameOrCategory(t *testing.T) {
	store := newFakePatternStore()
	e := New(store, "session-1")

	e.Extract(context.Background(), model.LLMClassification{NormalizedName: "", Category: "african", Confidence: 0.9})
	e.Extract(context.Background(), model.LLMClassification{NormalizedName: "bongani", Category: "", Confidence: 0.9})

	assert.Empty(t, store.upserted)
}

func TestExtractSkipsMarkerPatternThatConflictsWithEstablishedCategory(t *testing.T) {
	store := newFakePatternStore()
	store.existing[string(model.PatternStructuralFeature)+"|morphological-prefix-van"] = &model.LearnedPattern{
		Category: "white", DerivedConfidence: 0.9, UsageCount: 20, SuccessCount: 19,
	}
	e := New(store, "session-1")

	e.Extract(context.Background(), model.LLMClassification{
		NormalizedName: "van der merwe",
		Category:       "african",
		Confidence:     0.9,
	})

	for _, p := range store.upserted {
		if p.Kind == model.PatternStructuralFeature {
			t.Fatalf("expected no conflicting marker pattern to be persisted, got %+v", p)
		}
	}
}

func TestExtractMarkersFindsMorphologicalPrefix(t *testing.T) {
	markers := ExtractMarkers("van der merwe")
	assert.Contains(t, markers, "morphological-prefix-van")
}

func TestExtractMarkersReturnsEmptyForNoMatches(t *testing.T) {
	markers := ExtractMarkers("zzyzx")
	assert.Empty(t, markers)
}
