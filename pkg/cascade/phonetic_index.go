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

package cascade

import (
	"strings"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/phonetic"
	"github.com/originate-data/dirclass/pkg/ruledict"
)

type indexedToken struct {
	token    string
	codes    model.PhoneticCodes
	category model.Category
}

// phoneticIndex precomputes phonetic codes for every token in the
// curated rule dictionary so L2 can probe a new name against known
// names without recomputing the dictionary's codes on every call.
type phoneticIndex struct {
	entries []indexedToken
}

func newPhoneticIndex(dict *ruledict.Dictionary) *phoneticIndex {
	idx := &phoneticIndex{}
	if dict == nil {
		return idx
	}
	for _, token := range dict.Tokens() {
		entry, ok := dict.Lookup(token)
		if !ok {
			continue
		}
		idx.entries = append(idx.entries, indexedToken{
			token:    token,
			codes:    phonetic.Codes(token),
			category: entry.Category,
		})
	}
	return idx
}

// consensus resolves a full (possibly multi-token) normalized probe
// name against the phonetic index, one token at a time, then applies
// the same compound-name combination rule as the rule dictionary:
// agreement wins at the minimum confidence, disagreement defers to
// the trailing (surname) token at a 0.9 discount.
func (idx *phoneticIndex) consensus(normalizedProbe string, similarityThreshold float64) (model.Category, float64, bool) {
	tokens := strings.FieldsFunc(normalizedProbe, func(r rune) bool { return r == ' ' || r == '-' })
	if len(tokens) == 0 {
		return "", 0, false
	}

	type tokenMatch struct {
		category   model.Category
		confidence float64
	}
	matches := make([]tokenMatch, 0, len(tokens))
	for _, tok := range tokens {
		if m, ok := idx.matchToken(tok, similarityThreshold); ok {
			matches = append(matches, tokenMatch{m.category, m.confidence})
		}
	}
	if len(matches) == 0 {
		return "", 0, false
	}

	allAgree := true
	minConf := matches[0].confidence
	for _, m := range matches[1:] {
		if m.category != matches[0].category {
			allAgree = false
		}
		if m.confidence < minConf {
			minConf = m.confidence
		}
	}
	if allAgree {
		return matches[0].category, minConf, true
	}

	last := matches[len(matches)-1]
	return last.category, last.confidence * 0.9, true
}

type tokenConsensus struct {
	category   model.Category
	confidence float64
}

func (idx *phoneticIndex) matchToken(token string, similarityThreshold float64) (tokenConsensus, bool) {
	probeCodes := phonetic.Codes(token)

	var best phonetic.MatchResult
	var bestCategory model.Category
	found := false
	for _, entry := range idx.entries {
		result := phonetic.Consensus(probeCodes, token, entry.codes, entry.token, similarityThreshold)
		if !result.Matched {
			continue
		}
		if !found || result.Confidence > best.Confidence {
			best = result
			bestCategory = entry.category
			found = true
		}
	}
	if !found {
		return tokenConsensus{}, false
	}
	return tokenConsensus{category: bestCategory, confidence: best.Confidence}, true
}
