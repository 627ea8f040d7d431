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

// Package confirm is the Confirmation Pipeline (C11): it exports an
// enriched artifact for human review, ingests confirmations back, and
// feeds confirmed outcomes into the learned-pattern store's success
// counts.
package confirm

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// provinceAliases canonicalizes common spellings and abbreviations for
// South African provinces to a single display form. This is a static,
// in-module gazetteer: no external geocoding call is made.
var provinceAliases = map[string]string{
	"gauteng":          "gauteng",
	"kwazulu-natal":    "kwazulu-natal",
	"kwazulu natal":    "kwazulu-natal",
	"kzn":              "kwazulu-natal",
	"western cape":     "western cape",
	"eastern cape":     "eastern cape",
	"free state":       "free state",
	"limpopo":          "limpopo",
	"mpumalanga":       "mpumalanga",
	"north west":       "north west",
	"northern cape":    "northern cape",
}

// CanonicalProvince looks up the canonical display form for a
// free-text province value, returning the trimmed lowercase input
// unchanged if it isn't in the gazetteer.
func CanonicalProvince(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := provinceAliases[key]; ok {
		return canon
	}
	return key
}

// SpatialContext builds the canonical city/province string used for a
// Confirmation's spatial-context fields.
func SpatialContext(city, province string) string {
	c := strings.ToLower(strings.TrimSpace(city))
	p := CanonicalProvince(province)
	if c == "" && p == "" {
		return ""
	}
	return c + "|" + p
}

// SpatialContextHash hashes a spatial-context string with FNV-1a so the
// Confirmation row carries a compact, fixed-width value instead of
// repeating the raw string per row.
func SpatialContextHash(spatialContext string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(spatialContext))
	return strconv.FormatUint(h.Sum64(), 16)
}
