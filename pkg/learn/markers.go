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

package learn

import "strings"

// markerProbe is one entry in the static digraph/trigraph marker
// table: a substring probe and the marker name it emits when found.
type markerProbe struct {
	substr string
	marker string
}

// markerTable is the deterministic, documented set of linguistic
// markers the extractor looks for. It is intentionally small and
// coarse: these are signals for pattern derivation, not a
// classification on their own.
var markerTable = []markerProbe{
	{"thw", "click-digraph-thw"},
	{"dlw", "click-digraph-dlw"},
	{"hl", "lateral-fricative-hl"},
	{"ngw", "nasal-cluster-ngw"},
	{"tsh", "affricate-tsh"},
	{"mpu", "nasal-prefix-mpu"},
	{"nku", "nasal-prefix-nku"},
	{"van ", "morphological-prefix-van"},
	{"von ", "morphological-prefix-von"},
	{"mc", "morphological-prefix-mc"},
	{"mac", "morphological-prefix-mac"},
	{"singh", "morphological-suffix-singh"},
	{"naidoo", "morphological-suffix-naidoo"},
	{"ema", "morphological-suffix-ema"},
}

// ExtractMarkers scans normalized for every probe in the marker table
// and returns the distinct marker names found, in table order.
func ExtractMarkers(normalized string) []string {
	var markers []string
	for _, p := range markerTable {
		if strings.Contains(normalized, p.substr) {
			markers = append(markers, p.marker)
		}
	}
	return markers
}
