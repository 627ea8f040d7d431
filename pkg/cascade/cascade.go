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

// Package cascade is the classification cascade (C7): it orders the
// exact-cache, rule-dictionary, phonetic-consensus, learned-pattern
// and LLM layers, returning the first result that clears its
// threshold.
package cascade

import (
	"context"
	"time"

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/internal/logging"
	"github.com/originate-data/dirclass/internal/metrics"
	"github.com/originate-data/dirclass/pkg/learned"
	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/phonetic"
	"github.com/originate-data/dirclass/pkg/provider"
	"github.com/originate-data/dirclass/pkg/ratelimit"
	"github.com/originate-data/dirclass/pkg/ruledict"
)

// Thresholds holds the per-layer acceptance floors, all configurable
// with conservative defaults.
type Thresholds struct {
	ExactCacheMin   float64
	RuleMin         float64
	PhoneticSimilarityMin float64
	LearnedMin      float64
	LLMMin          float64
}

// DefaultThresholds matches the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExactCacheMin:         0.80,
		RuleMin:               0.80,
		PhoneticSimilarityMin: 0.85,
		LearnedMin:            0.60,
		LLMMin:                0.70,
	}
}

// Store is the subset of pkg/store's Store the cascade reads and
// writes directly (the L0 cache and phonetic-family evidence).
type Store interface {
	GetLLMClassification(ctx context.Context, normalizedName string) (*model.LLMClassification, error)
	UpsertLLMClassification(ctx context.Context, rec *model.LLMClassification) error
}

// Extractor is the learning hand-off invoked asynchronously after a
// confident L4 success (C8).
type Extractor interface {
	Extract(ctx context.Context, rec model.LLMClassification)
}

// CostLedger tracks LLM spend for the session so the cascade can stop
// calling L4 once a configured ceiling is reached.
type CostLedger interface {
	Spent() float64
	Add(amount float64)
	Ceiling() float64
}

// Cascade wires every layer together.
type Cascade struct {
	store      Store
	resolver   *ruledict.Resolver
	dict       *ruledict.Dictionary
	index      *phoneticIndex
	learnedStore learned.PatternStore
	providers  map[provider.ID]provider.Classifier
	governor   *ratelimit.Governor
	extractor  Extractor
	ledger     CostLedger
	thresholds Thresholds
	requestTimeout time.Duration
}

// New builds a Cascade. providers may be a partial set (even empty):
// per spec, absence of credentials just disables L4.
func New(
	store Store,
	resolver *ruledict.Resolver,
	dict *ruledict.Dictionary,
	learnedStore learned.PatternStore,
	providers map[provider.ID]provider.Classifier,
	governor *ratelimit.Governor,
	extractor Extractor,
	ledger CostLedger,
	thresholds Thresholds,
	requestTimeout time.Duration,
) *Cascade {
	return &Cascade{
		store:          store,
		resolver:       resolver,
		dict:           dict,
		index:          newPhoneticIndex(dict),
		learnedStore:   learnedStore,
		providers:      providers,
		governor:       governor,
		extractor:      extractor,
		ledger:         ledger,
		thresholds:     thresholds,
		requestTimeout: requestTimeout,
	}
}

// Classify runs the ordered five-layer cascade for one lead. It never
// returns an error: Unclassified with method=none and confidence=0 is a
// valid outcome, and an infrastructure failure inside a layer (e.g. the
// store can't be read) degrades that layer to a miss.
func (c *Cascade) Classify(ctx context.Context, directorName string, leadCtx provider.Context) model.CascadeResult {
	normalized := phonetic.Normalize(directorName)
	if normalized == "" {
		return model.CascadeResult{Category: model.Unclassified, Method: model.MethodNone}
	}

	if r, ok := c.tryExactCache(ctx, normalized); ok {
		return c.logResult(r)
	}
	if r, ok := c.tryRuleDictionary(ctx, directorName); ok {
		return c.logResult(r)
	}
	if r, ok := c.tryPhoneticConsensus(normalized); ok {
		return c.logResult(r)
	}
	if r, ok := c.tryLearnedPatterns(ctx, normalized); ok {
		return c.logResult(r)
	}
	if r, ok := c.tryLLM(ctx, directorName, normalized, leadCtx); ok {
		return c.logResult(r)
	}

	return c.logResult(model.CascadeResult{Category: model.Unclassified, Method: model.MethodNone})
}

func (c *Cascade) logResult(r model.CascadeResult) model.CascadeResult {
	metrics.RecordCascadeLayer(string(r.Method))
	logging.GetLogger().Log(context.Background(), logging.LevelForCascadeLayer(r.Method),
		"cascade: classification resolved", "method", r.Method, "category", r.Category, "confidence", r.Confidence)
	return r
}

func (c *Cascade) tryExactCache(ctx context.Context, normalized string) (model.CascadeResult, bool) {
	rec, err := c.store.GetLLMClassification(ctx, normalized)
	if err != nil || rec == nil {
		return model.CascadeResult{}, false
	}
	if rec.Confidence < c.thresholds.ExactCacheMin {
		return model.CascadeResult{}, false
	}
	return model.CascadeResult{
		Category:   rec.Category,
		Confidence: rec.Confidence,
		Method:     model.MethodExactCache,
		ProviderID: rec.ProviderID,
	}, true
}

func (c *Cascade) tryRuleDictionary(ctx context.Context, directorName string) (model.CascadeResult, bool) {
	category, confidence, matched := c.resolver.Resolve(ctx, directorName)
	if !matched || confidence < c.thresholds.RuleMin {
		return model.CascadeResult{}, false
	}
	return model.CascadeResult{Category: category, Confidence: confidence, Method: model.MethodRule}, true
}

func (c *Cascade) tryPhoneticConsensus(normalized string) (model.CascadeResult, bool) {
	category, confidence, matched := c.index.consensus(normalized, c.thresholds.PhoneticSimilarityMin)
	if !matched {
		return model.CascadeResult{}, false
	}
	return model.CascadeResult{Category: category, Confidence: confidence, Method: model.MethodPhonetic}, true
}

func (c *Cascade) tryLearnedPatterns(ctx context.Context, normalized string) (model.CascadeResult, bool) {
	codes := phonetic.Codes(normalized)
	probe := learned.Probe{NormalizedName: normalized, Codes: codes, Features: learned.ExtractFeatures(normalized)}
	m, ok, err := learned.Lookup(ctx, c.learnedStore, probe)
	if err != nil || !ok || m.Confidence < c.thresholds.LearnedMin {
		return model.CascadeResult{}, false
	}
	return model.CascadeResult{Category: m.Category, Confidence: m.Confidence, Method: model.MethodLearned}, true
}

func (c *Cascade) tryLLM(ctx context.Context, directorName, normalized string, leadCtx provider.Context) (model.CascadeResult, bool) {
	if len(c.providers) == 0 {
		return model.CascadeResult{}, false
	}
	if c.ledger != nil && c.ledger.Ceiling() > 0 && c.ledger.Spent() >= c.ledger.Ceiling() {
		return model.CascadeResult{}, false
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.requestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	for attempt := 0; attempt < 2; attempt++ {
		id, wait, ready := c.governor.ChooseProvider()
		if id == "" {
			return model.CascadeResult{}, false
		}
		if !ready {
			metrics.RecordRateLimitWait(id)
			if err := ratelimit.Wait(reqCtx, wait); err != nil {
				return model.CascadeResult{}, false
			}
		}
		if ok, waitAfterAcquire := c.governor.Acquire(id); !ok {
			metrics.RecordRateLimitWait(id)
			if err := ratelimit.Wait(reqCtx, waitAfterAcquire); err != nil {
				return model.CascadeResult{}, false
			}
		}

		clf, ok := c.providers[provider.ID(id)]
		if !ok {
			continue
		}

		result, err := clf.Classify(reqCtx, directorName, leadCtx)
		if err != nil {
			c.reportFailure(id, err)
			metrics.RecordLLMCall(id, "error")
			continue
		}

		metrics.RecordLLMCall(id, "success")
		c.governor.Report(id, ratelimit.OutcomeSuccess)
		if c.ledger != nil {
			c.ledger.Add(result.CostEstimate)
		}
		if result.Confidence < c.thresholds.LLMMin {
			return model.CascadeResult{}, false
		}

		rec := model.LLMClassification{
			NormalizedName: normalized,
			Category:       result.Category,
			Confidence:     result.Confidence,
			ProviderID:     string(result.ProviderID),
			Cost:           result.CostEstimate,
			ElapsedMillis:  result.LatencyMillis,
			PhoneticCodes:  phonetic.Codes(normalized),
			StructuralFeatures: learned.ExtractFeatures(normalized).ToMap(),
			CreatedAt:      time.Now(),
		}
		_ = c.store.UpsertLLMClassification(ctx, &rec)
		if c.extractor != nil && result.Confidence >= 0.80 {
			go c.extractor.Extract(context.Background(), rec)
		}

		return model.CascadeResult{
			Category:      result.Category,
			Confidence:    result.Confidence,
			Method:        model.MethodLLM,
			ElapsedMillis: result.LatencyMillis,
			ProviderID:    string(result.ProviderID),
			Cost:          result.CostEstimate,
		}, true
	}

	return model.CascadeResult{}, false
}

func (c *Cascade) reportFailure(providerID string, err error) {
	outcome := ratelimit.OutcomeTransientFailure
	switch {
	case classerr.Is(err, classerr.KindRateLimited):
		outcome = ratelimit.OutcomeRateLimited
	case classerr.Is(err, classerr.KindQuotaExhausted):
		outcome = ratelimit.OutcomeQuotaExhausted
	}
	c.governor.Report(providerID, outcome)
}
