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

// Package learned is the learned-pattern store (C4): lookup of
// prefix/suffix, phonetic-family, and structural-feature patterns
// derived from prior high-confidence LLM results.
package learned

import (
	"strings"
	"unicode"
)

// StructuralFeatures are the derived shape properties of a normalized
// name used both to persist structural-feature patterns and to probe
// against them.
type StructuralFeatures struct {
	TokenCount              int
	AvgTokenLength          float64
	HasHyphen               bool
	VowelRatio              float64
	LeadingConsonantCluster bool
	Prefix2, Prefix3        string
	Suffix2, Suffix3        string
}

// ToMap renders the numeric/boolean features as the flat float map
// persisted alongside an LLMClassification row. Prefix/suffix strings
// are not included; they're stored as their own LearnedPattern rows.
func (f StructuralFeatures) ToMap() map[string]float64 {
	m := map[string]float64{
		"token_count":      float64(f.TokenCount),
		"avg_token_length": f.AvgTokenLength,
		"vowel_ratio":      f.VowelRatio,
	}
	if f.HasHyphen {
		m["has_hyphen"] = 1
	}
	if f.LeadingConsonantCluster {
		m["leading_consonant_cluster"] = 1
	}
	return m
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// ExtractFeatures computes StructuralFeatures for an already-normalized
// name (see pkg/phonetic.Normalize).
func ExtractFeatures(normalized string) StructuralFeatures {
	tokens := strings.Fields(normalized)
	letters := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, normalized)
	runes := []rune(letters)

	var totalLen int
	for _, t := range tokens {
		totalLen += len([]rune(t))
	}
	var avg float64
	if len(tokens) > 0 {
		avg = float64(totalLen) / float64(len(tokens))
	}

	var vowels int
	for _, r := range runes {
		if isVowel(r) {
			vowels++
		}
	}
	var vowelRatio float64
	if len(runes) > 0 {
		vowelRatio = float64(vowels) / float64(len(runes))
	}

	leadingCluster := len(runes) >= 2 && !isVowel(runes[0]) && !isVowel(runes[1])

	return StructuralFeatures{
		TokenCount:              len(tokens),
		AvgTokenLength:          avg,
		HasHyphen:               strings.Contains(normalized, "-"),
		VowelRatio:              vowelRatio,
		LeadingConsonantCluster: leadingCluster,
		Prefix2:                 ngram(runes, 2, false),
		Prefix3:                 ngram(runes, 3, false),
		Suffix2:                 ngram(runes, 2, true),
		Suffix3:                 ngram(runes, 3, true),
	}
}

func ngram(runes []rune, n int, suffix bool) string {
	if len(runes) < n {
		return ""
	}
	if suffix {
		return string(runes[len(runes)-n:])
	}
	return string(runes[:n])
}
