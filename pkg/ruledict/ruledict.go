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

// Package ruledict is the curated name-token to category mapping (L1)
// and the compound-name resolver built on top of it.
package ruledict

import (
	"context"
	"strings"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/phonetic"
)

// Entry is one curated dictionary row.
type Entry struct {
	Category       model.Category
	OriginLanguage string
	Confidence     float64 // in [0.85, 1.0]
}

// Dictionary is a static, curated token-to-category mapping, keyed by
// normalized token (lowercased first name or surname).
type Dictionary struct {
	entries map[string]Entry
}

// NewDictionary builds a Dictionary from a token-to-entry map. Callers
// own the map; NewDictionary copies it.
func NewDictionary(entries map[string]Entry) *Dictionary {
	d := &Dictionary{entries: make(map[string]Entry, len(entries))}
	for token, entry := range entries {
		d.entries[strings.ToLower(token)] = entry
	}
	return d
}

// Lookup returns the curated entry for a single normalized token.
func (d *Dictionary) Lookup(token string) (Entry, bool) {
	e, ok := d.entries[strings.ToLower(token)]
	return e, ok
}

// Tokens returns every token the curated dictionary recognizes, used by
// the cascade's phonetic-consensus layer as its candidate set.
func (d *Dictionary) Tokens() []string {
	tokens := make([]string, 0, len(d.entries))
	for token := range d.entries {
		tokens = append(tokens, token)
	}
	return tokens
}

// CategoryOf returns the category a known token maps to, used when the
// phonetic layer needs to report which candidate a probe matched.
func (d *Dictionary) CategoryOf(token string) (model.Category, bool) {
	e, ok := d.Lookup(token)
	if !ok {
		return "", false
	}
	return e.Category, true
}

// LearnedTokenLookup is the subset of the learned-pattern store the
// resolver consults for a single token after the curated map misses.
// C4 implements this.
type LearnedTokenLookup interface {
	LookupToken(ctx context.Context, token string) (model.Category, float64, bool)
}

// Resolver resolves full (possibly compound) names against the curated
// dictionary, falling back to the learned-pattern store per token.
type Resolver struct {
	dict    *Dictionary
	learned LearnedTokenLookup
}

// NewResolver builds a Resolver. learned may be nil, in which case
// unresolved tokens are simply misses.
func NewResolver(dict *Dictionary, learned LearnedTokenLookup) *Resolver {
	return &Resolver{dict: dict, learned: learned}
}

// Dictionary returns the underlying curated dictionary, e.g. for the
// phonetic-consensus layer's candidate set.
func (r *Resolver) Dictionary() *Dictionary {
	return r.dict
}

// Tokenize splits a name on whitespace and hyphens, the same boundary
// rule the phonetic engine's normalization preserves.
func Tokenize(name string) []string {
	normalized := phonetic.Normalize(name)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '-'
	})
	return fields
}

// tokenClass is one token's classification outcome.
type tokenClass struct {
	token      string
	category   model.Category
	confidence float64
	matched    bool
}

// Resolve classifies a full name using per-token dictionary lookups:
//  1. tokenize on whitespace/hyphen
//  2. classify each token independently
//  3. if every classified token agrees, return that category at the
//     minimum of their confidences
//  4. if tokens disagree, the trailing token wins (surname-dominates)
//     with its confidence scaled by 0.9
//  5. if no token classifies, return a miss
func (r *Resolver) Resolve(ctx context.Context, name string) (model.Category, float64, bool) {
	tokens := Tokenize(name)
	if len(tokens) == 0 {
		return "", 0, false
	}

	classes := make([]tokenClass, 0, len(tokens))
	for _, tok := range tokens {
		if entry, ok := r.dict.Lookup(tok); ok {
			classes = append(classes, tokenClass{token: tok, category: entry.Category, confidence: entry.Confidence, matched: true})
			continue
		}
		if r.learned != nil {
			if cat, conf, ok := r.learned.LookupToken(ctx, tok); ok {
				classes = append(classes, tokenClass{token: tok, category: cat, confidence: conf, matched: true})
				continue
			}
		}
		classes = append(classes, tokenClass{token: tok})
	}

	matched := make([]tokenClass, 0, len(classes))
	for _, c := range classes {
		if c.matched {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return "", 0, false
	}

	agree := true
	for _, c := range matched[1:] {
		if c.category != matched[0].category {
			agree = false
			break
		}
	}

	if agree {
		minConf := matched[0].confidence
		for _, c := range matched[1:] {
			if c.confidence < minConf {
				minConf = c.confidence
			}
		}
		return matched[0].category, minConf, true
	}

	trailing := matched[len(matched)-1]
	return trailing.category, trailing.confidence * 0.9, true
}
