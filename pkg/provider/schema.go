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

package provider

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// classificationPayload is the shape every provider is asked to
// return. The enum on Category is written out in the struct tag and
// lists the closed category set, so the schema sent to a provider
// admits no category outside it.
type classificationPayload struct {
	Category   string  `json:"category" jsonschema:"enum=african,enum=white,enum=coloured,enum=indian,enum=unclassified"`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence in [0,1] that the category is correct."`
	Reasoning  string  `json:"reasoning,omitempty" jsonschema_description:"One sentence justification."`
}

// classificationSchemaJSON is computed once at package init and reused
// across requests; reflection is not free and the schema never
// changes at runtime.
var classificationSchemaJSON string

func init() {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(&classificationPayload{})
	schema.Title = "DirectorClassification"
	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("provider: failed to build classification schema: %v", err))
	}
	classificationSchemaJSON = string(b)
}

// ClassificationSchemaJSON returns the JSON Schema document sent as
// the structured-output contract on every classify request.
func ClassificationSchemaJSON() string {
	return classificationSchemaJSON
}

func parseClassificationPayload(raw string) (classificationPayload, error) {
	var payload classificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return classificationPayload{}, fmt.Errorf("invalid structured output: %w", err)
	}
	valid := false
	for _, c := range CanonicalCategories {
		if payload.Category == c {
			valid = true
			break
		}
	}
	if !valid {
		return classificationPayload{}, fmt.Errorf("category %q is not in the canonical set", payload.Category)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return classificationPayload{}, fmt.Errorf("confidence %v out of range [0,1]", payload.Confidence)
	}
	return payload, nil
}
