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

package ruledict

import "github.com/originate-data/dirclass/pkg/model"

// Seed is a small curated starter dictionary and the one the CLI
// builds its rule dictionary from; no loader for a larger curated map
// exists in this module. It deliberately omits names
// used as the cascade's LLM-fallback and learned-pattern test fixtures
// ("Lucky Mabena"), since those scenarios require the rule dictionary
// to miss.
func Seed() map[string]Entry {
	return map[string]Entry{
		"thabo":    {Category: "african", OriginLanguage: "nguni", Confidence: 0.92},
		"mthembu":  {Category: "african", OriginLanguage: "zulu", Confidence: 0.95},
		"bongani":  {Category: "african", OriginLanguage: "zulu", Confidence: 0.93},
		"sipho":    {Category: "african", OriginLanguage: "zulu", Confidence: 0.92},
		"nomvula":  {Category: "african", OriginLanguage: "xhosa", Confidence: 0.9},
		"henrietta": {Category: "white", OriginLanguage: "afrikaans", Confidence: 0.88},
		"johannes": {Category: "white", OriginLanguage: "afrikaans", Confidence: 0.87},
		"vanwyk":   {Category: "white", OriginLanguage: "afrikaans", Confidence: 0.92},
		"botha":    {Category: "white", OriginLanguage: "afrikaans", Confidence: 0.93},
		"pillay":   {Category: "indian", OriginLanguage: "tamil", Confidence: 0.94},
		"naidoo":   {Category: "indian", OriginLanguage: "tamil", Confidence: 0.95},
		"govender": {Category: "indian", OriginLanguage: "telugu", Confidence: 0.94},
		"adams":    {Category: "coloured", OriginLanguage: "english-surname", Confidence: 0.85},
		"jacobs":   {Category: "coloured", OriginLanguage: "english-surname", Confidence: 0.85},
	}
}

// SeedCanonicalCategories returns the closed set of demographic
// category codes the confirmation pipeline accepts.
func SeedCanonicalCategories() []model.CanonicalCategory {
	return []model.CanonicalCategory{
		{Code: "african", DisplayName: "African", SortOrder: 1},
		{Code: "white", DisplayName: "White", SortOrder: 2},
		{Code: "coloured", DisplayName: "Coloured", SortOrder: 3},
		{Code: "indian", DisplayName: "Indian", SortOrder: 4},
		{Code: model.Unclassified, DisplayName: "Unclassified", SortOrder: 5},
	}
}
