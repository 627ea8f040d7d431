package ruledict

import (
	"context"
	"testing"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(learned LearnedTokenLookup) *Resolver {
	dict := NewDictionary(Seed())
	return NewResolver(dict, learned)
}

func TestResolveAgreeingCompoundName(t *testing.T) {
	r := newTestResolver(nil)

	category, confidence, matched := r.Resolve(context.Background(), "Thabo Mthembu")

	require.True(t, matched)
	assert.Equal(t, model.Category("african"), category)
	assert.GreaterOrEqual(t, confidence, 0.9)
}

func TestResolveSurnameDominatesOnDisagreement(t *testing.T) {
	r := newTestResolver(nil)

	category, confidence, matched := r.Resolve(context.Background(), "Thabo Pillay")

	require.True(t, matched)
	assert.Equal(t, model.Category("indian"), category)
	assert.Less(t, confidence, 0.95)
}

func TestResolveMissReturnsFalse(t *testing.T) {
	r := newTestResolver(nil)

	_, _, matched := r.Resolve(context.Background(), "Zzyzx Qvorp")

	assert.False(t, matched)
}

type stubLearned struct {
	category   model.Category
	confidence float64
	ok         bool
}

func (s stubLearned) LookupToken(ctx context.Context, token string) (model.Category, float64, bool) {
	return s.category, s.confidence, s.ok
}

func TestResolveConsultsLearnedPatternsAfterDictionaryMiss(t *testing.T) {
	r := newTestResolver(stubLearned{category: "african", confidence: 0.7, ok: true})

	category, confidence, matched := r.Resolve(context.Background(), "Unknowntoken")

	require.True(t, matched)
	assert.Equal(t, model.Category("african"), category)
	assert.Equal(t, 0.7, confidence)
}

func TestTokenizeSplitsOnHyphenAndSpace(t *testing.T) {
	assert.Equal(t, []string{"anne", "marie", "van", "wyk"}, Tokenize("Anne-Marie van Wyk"))
}
