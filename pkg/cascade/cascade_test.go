package cascade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originate-data/dirclass/pkg/learn"
	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/provider"
	"github.com/originate-data/dirclass/pkg/ratelimit"
	"github.com/originate-data/dirclass/pkg/ruledict"
)

type fakeCacheStore struct {
	records map[string]*model.LLMClassification
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{records: map[string]*model.LLMClassification{}}
}

func (f *fakeCacheStore) GetLLMClassification(ctx context.Context, normalizedName string) (*model.LLMClassification, error) {
	return f.records[normalizedName], nil
}

func (f *fakeCacheStore) UpsertLLMClassification(ctx context.Context, rec *model.LLMClassification) error {
	f.records[rec.NormalizedName] = rec
	return nil
}

type fakePatternStore struct{}

func (fakePatternStore) LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error) {
	return nil, nil
}
func (fakePatternStore) LookupPhoneticFamily(ctx context.Context, codes model.PhoneticCodes) (*model.PhoneticFamily, error) {
	return nil, nil
}
func (fakePatternStore) RecordPatternOutcome(ctx context.Context, kind model.PatternKind, value string, category model.Category, correct bool) error {
	return nil
}

func newTestCascade(t *testing.T, store Store, providers map[provider.ID]provider.Classifier) *Cascade {
	t.Helper()
	dict := ruledict.NewDictionary(ruledict.Seed())
	resolver := ruledict.NewResolver(dict, nil)
	gov := ratelimit.New(map[string]ratelimit.Config{
		string(provider.ProviderA): {RequestsPerMinute: 60},
		string(provider.ProviderB): {RequestsPerMinute: 60},
	})
	return New(store, resolver, dict, fakePatternStore{}, providers, gov, nil, nil, DefaultThresholds(), 2*time.Second)
}

func TestClassifyHitsRuleDictionaryForKnownCompoundName(t *testing.T) {
	c := newTestCascade(t, newFakeCacheStore(), nil)

	result := c.Classify(context.Background(), "Thabo Mthembu", provider.Context{})

	assert.Equal(t, model.Category("african"), result.Category)
	assert.Equal(t, model.MethodRule, result.Method)
}

func TestClassifyHitsExactCacheBeforeRuleDictionary(t *testing.T) {
	store := newFakeCacheStore()
	store.records["thabo mthembu"] = &model.LLMClassification{NormalizedName: "thabo mthembu", Category: "white", Confidence: 0.95}

	c := newTestCascade(t, store, nil)
	result := c.Classify(context.Background(), "Thabo Mthembu", provider.Context{})

	assert.Equal(t, model.Category("white"), result.Category)
	assert.Equal(t, model.MethodExactCache, result.Method)
}

func TestClassifyFallsBackToPhoneticConsensusForMisspelling(t *testing.T) {
	c := newTestCascade(t, newFakeCacheStore(), nil)

	result := c.Classify(context.Background(), "Bonganni", provider.Context{})

	assert.Equal(t, model.Category("african"), result.Category)
	assert.Equal(t, model.MethodPhonetic, result.Method)
}

func TestClassifyReturnsUnclassifiedWithNoProvidersAndNoMatch(t *testing.T) {
	c := newTestCascade(t, newFakeCacheStore(), nil)

	result := c.Classify(context.Background(), "Zzyzx Qvorp", provider.Context{})

	assert.Equal(t, model.Unclassified, result.Category)
	assert.Equal(t, model.MethodNone, result.Method)
	assert.Equal(t, 0.0, result.Confidence)
}

type stubProvider struct {
	id       provider.ID
	category model.Category
	conf     float64
	err      error
}

func (s stubProvider) ID() provider.ID { return s.id }
func (s stubProvider) Classify(ctx context.Context, name string, lead provider.Context) (provider.Classification, error) {
	if s.err != nil {
		return provider.Classification{}, s.err
	}
	return provider.Classification{Category: s.category, Confidence: s.conf, ProviderID: s.id, CostEstimate: 0.001}, nil
}

func TestClassifyFallsThroughToLLMAndCachesResult(t *testing.T) {
	store := newFakeCacheStore()
	providers := map[provider.ID]provider.Classifier{
		provider.ProviderA: stubProvider{id: provider.ProviderA, category: "african", conf: 0.88},
	}
	c := newTestCascade(t, store, providers)

	result := c.Classify(context.Background(), "Zzyzx Qvorp", provider.Context{})

	require.Equal(t, model.Category("african"), result.Category)
	assert.Equal(t, model.MethodLLM, result.Method)

	cached, err := store.GetLLMClassification(context.Background(), "zzyzx qvorp")
	require.NoError(t, err)
	require.NotNil(t, cached)
}

func TestClassifyRespectsCostCeiling(t *testing.T) {
	store := newFakeCacheStore()
	providers := map[provider.ID]provider.Classifier{
		provider.ProviderA: stubProvider{id: provider.ProviderA, category: "african", conf: 0.88},
	}
	c := newTestCascade(t, store, providers)
	c.ledger = &fakeLedger{ceiling: 0.0001, spent: 0.0001}

	result := c.Classify(context.Background(), "Zzyzx Qvorp", provider.Context{})

	assert.Equal(t, model.Unclassified, result.Category)
}

type fakeLedger struct {
	ceiling, spent float64
}

func (f *fakeLedger) Spent() float64    { return f.spent }
func (f *fakeLedger) Add(amount float64) { f.spent += amount }
func (f *fakeLedger) Ceiling() float64  { return f.ceiling }

// fakeLearningStore backs both the cascade's learnedStore read path and a
// real *learn.Extractor's write path with one shared map, so a test can
// round-trip a pattern the extractor derives back through the cascade's
// own L3 lookup.
type fakeLearningStore struct {
	mu       sync.Mutex
	patterns map[string]*model.LearnedPattern
}

func newFakeLearningStore() *fakeLearningStore {
	return &fakeLearningStore{patterns: map[string]*model.LearnedPattern{}}
}

func patternKey(kind model.PatternKind, value string) string {
	return string(kind) + "|" + value
}

func (f *fakeLearningStore) UpsertLearnedPattern(ctx context.Context, p *model.LearnedPattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns[patternKey(p.Kind, p.Value)] = p
	return nil
}

func (f *fakeLearningStore) LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patterns[patternKey(kind, value)], nil
}

func (f *fakeLearningStore) LookupPhoneticFamily(ctx context.Context, codes model.PhoneticCodes) (*model.PhoneticFamily, error) {
	return nil, nil
}

func (f *fakeLearningStore) RecordPatternOutcome(ctx context.Context, kind model.PatternKind, value string, category model.Category, correct bool) error {
	return nil
}

func (f *fakeLearningStore) patternsByKind(kind model.PatternKind) []*model.LearnedPattern {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.LearnedPattern
	for _, p := range f.patterns {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func newLearningTestCascade(store Store, learningStore *fakeLearningStore, extractor Extractor, providers map[provider.ID]provider.Classifier) *Cascade {
	dict := ruledict.NewDictionary(ruledict.Seed())
	resolver := ruledict.NewResolver(dict, nil)
	gov := ratelimit.New(map[string]ratelimit.Config{
		string(provider.ProviderA): {RequestsPerMinute: 60},
		string(provider.ProviderB): {RequestsPerMinute: 60},
	})
	return New(store, resolver, dict, learningStore, providers, gov, extractor, nil, DefaultThresholds(), 2*time.Second)
}

// TestClassifyFallsThroughToLLMAndDerivesLearnedPatterns exercises the
// "rules, phonetic and learned patterns all miss a compound name" path:
// "Lucky Mabena" isn't in the seeded rule dictionary (and so isn't in the
// phonetic index either, which is built from the same seed), so it falls
// through to the LLM, and a confident result there hands off to the
// learning extractor.
func TestClassifyFallsThroughToLLMAndDerivesLearnedPatterns(t *testing.T) {
	cacheStore := newFakeCacheStore()
	learningStore := newFakeLearningStore()
	extractor := learn.New(learningStore, "test-session")
	providers := map[provider.ID]provider.Classifier{
		provider.ProviderA: stubProvider{id: provider.ProviderA, category: "african", conf: 0.92},
	}
	c := newLearningTestCascade(cacheStore, learningStore, extractor, providers)

	result := c.Classify(context.Background(), "Lucky Mabena", provider.Context{})

	require.Equal(t, model.Category("african"), result.Category)
	assert.Equal(t, model.MethodLLM, result.Method)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
	assert.Greater(t, result.Cost, 0.0)

	require.Eventually(t, func() bool {
		p, _ := learningStore.LookupPattern(context.Background(), model.PatternContains, "lucky mabena")
		return p != nil
	}, time.Second, 10*time.Millisecond, "learning extractor never persisted the full-name pattern")

	exact, err := learningStore.LookupPattern(context.Background(), model.PatternContains, "lucky mabena")
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.Equal(t, model.Category("african"), exact.Category)
	assert.InDelta(t, 0.828, exact.DerivedConfidence, 0.01)

	var affixes []*model.LearnedPattern
	affixes = append(affixes, learningStore.patternsByKind(model.PatternPrefix)...)
	affixes = append(affixes, learningStore.patternsByKind(model.PatternSuffix)...)
	require.NotEmpty(t, affixes, "expected at least one prefix/suffix pattern derived from the LLM hit")
	for _, p := range affixes {
		assert.Equal(t, model.Category("african"), p.Category)
		assert.InDelta(t, 0.828, p.DerivedConfidence, 0.01)
	}
}

// TestClassifyResolvesFromLearnedPatternOnceLLMCacheIsEmpty replays the
// learning payoff: the same name is classified again in a fresh cascade
// with no exact-cache hit and no providers configured, and resolves at L3
// from the pattern the previous LLM hit derived, at zero cost.
func TestClassifyResolvesFromLearnedPatternOnceLLMCacheIsEmpty(t *testing.T) {
	learningStore := newFakeLearningStore()
	require.NoError(t, learningStore.UpsertLearnedPattern(context.Background(), &model.LearnedPattern{
		Kind:              model.PatternContains,
		Value:             "lucky mabena",
		Category:          "african",
		DerivedConfidence: 0.828,
		Active:            true,
	}))

	c := newLearningTestCascade(newFakeCacheStore(), learningStore, nil, nil)

	result := c.Classify(context.Background(), "Lucky Mabena", provider.Context{})

	assert.Equal(t, model.Category("african"), result.Category)
	assert.Equal(t, model.MethodLearned, result.Method)
	assert.GreaterOrEqual(t, result.Confidence, 0.6)
	assert.Equal(t, 0.0, result.Cost)
}
