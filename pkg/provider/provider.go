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

// Package provider is the LLM classification adapter (C5): uniform
// Classify contract over raw HTTP calls to a configured provider,
// parsing a fixed structured-output schema and mapping transport and
// schema failures onto classerr's semantic kinds.
package provider

import (
	"context"

	"github.com/originate-data/dirclass/pkg/model"
)

// ID names one of the two supported providers.
type ID string

const (
	ProviderA ID = "provider-a"
	ProviderB ID = "provider-b"
)

// Context carries the supporting fields the cascade has gathered for a
// lead so the prompt can ask for a name classified in its full spatial
// and organizational context, not in isolation.
type Context struct {
	EntityName        string
	RegisteredAddress string
	City              string
	Province          string
}

// Classification is a successful provider response.
type Classification struct {
	Category      model.Category
	Confidence    float64
	RawResponse   string
	CostEstimate  float64
	LatencyMillis int64
	ProviderID    ID
}

// Classifier is satisfied by every provider adapter.
type Classifier interface {
	ID() ID
	Classify(ctx context.Context, name string, lead Context) (Classification, error)
}

// CanonicalCategories is the closed set every structured-output schema
// constrains the model to. Kept here rather than imported from
// pkg/ruledict to avoid a dependency from the provider layer onto the
// rule dictionary.
var CanonicalCategories = []string{"african", "white", "coloured", "indian", "unclassified"}
