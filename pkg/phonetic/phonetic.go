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

// Package phonetic computes deterministic phonetic codes for names
// (Soundex, Metaphone, a simplified Double Metaphone, NYSIIS) and
// Jaro-Winkler string similarity, then combines them into a consensus
// match rule for candidate names. Every function here is pure and
// stateless, safe to call concurrently from many cascade workers.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/originate-data/dirclass/pkg/model"
)

// Normalize lowercases a name, folds common diacritics, and collapses
// internal whitespace. Hyphens are retained so compound-name analysis
// in the rule dictionary can still split on them.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = foldDiacritics(name)
	fields := strings.Fields(name)
	return strings.Join(fields, " ")
}

var diacriticFolds = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ý': 'y',
}

func foldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := diacriticFolds[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Codes computes the full set of phonetic encodings for a name. Only
// letters contribute; whitespace, hyphens, and punctuation are
// stripped before encoding each algorithm runs.
func Codes(name string) model.PhoneticCodes {
	letters := lettersOnly(Normalize(name))
	primary, secondary := doubleMetaphone(letters)
	return model.PhoneticCodes{
		Soundex:                  soundex(letters),
		Metaphone:                metaphone(letters),
		DoubleMetaphonePrimary:   primary,
		DoubleMetaphoneSecondary: secondary,
		NYSIIS:                   nysiis(letters),
	}
}

func lettersOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// Similarity returns the Jaro-Winkler similarity of two names in
// [0, 1], computed on their normalized forms.
func Similarity(a, b string) float64 {
	return jaroWinkler(Normalize(a), Normalize(b))
}

// MatchResult is the outcome of comparing a probe name's phonetic
// codes and normalized form against a single candidate.
type MatchResult struct {
	Matched        bool
	AgreeingCodes  int
	Similarity     float64
	Confidence     float64
}

// Consensus applies the phonetic consensus rule: a candidate is
// accepted if at least 2 of the 5 phonetic codes agree and the string
// similarity clears threshold, or if any single code agrees and
// similarity clears the stricter single-code threshold. Confidence is
// linear in the number of agreeing codes across a 0.70-0.95 band.
func Consensus(probeCodes model.PhoneticCodes, probeNormalized string, candidateCodes model.PhoneticCodes, candidateNormalized string, threshold float64) MatchResult {
	agreeing := countAgreeing(probeCodes, candidateCodes)
	sim := jaroWinkler(probeNormalized, candidateNormalized)

	const singleCodeThreshold = 0.93
	matched := (agreeing >= 2 && sim >= threshold) || (agreeing >= 1 && sim >= singleCodeThreshold)
	if !matched {
		return MatchResult{AgreeingCodes: agreeing, Similarity: sim}
	}

	// Linear in agreeing codes over [1,5] mapped to [0.70, 0.95].
	band := 0.70 + (0.95-0.70)*float64(agreeing-1)/4.0
	if band > 0.95 {
		band = 0.95
	}
	return MatchResult{Matched: true, AgreeingCodes: agreeing, Similarity: sim, Confidence: band}
}

func countAgreeing(a, b model.PhoneticCodes) int {
	at, bt := a.Tuple(), b.Tuple()
	n := 0
	for i := range at {
		if at[i] != "" && at[i] == bt[i] {
			n++
		}
	}
	return n
}
