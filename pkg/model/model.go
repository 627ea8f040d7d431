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

// Package model holds the data model shared by every component of the
// classification pipeline: jobs, lead results, the LLM cache, learned
// patterns, and confirmations.
package model

import "time"

// Category is a demographic classification category code. The set of
// valid values is closed and lives in CanonicalCategory rows.
type Category string

// Unclassified is the sentinel category for a lead no cascade layer
// could classify.
const Unclassified Category = "unclassified"

// Method names the cascade layer that produced a classification.
type Method string

const (
	MethodExactCache Method = "exact-cache"
	MethodRule       Method = "rule"
	MethodPhonetic   Method = "phonetic"
	MethodLearned    Method = "learned"
	MethodLLM        Method = "llm"
	MethodNone       Method = "none"
)

// JobStatus is a Job's lifecycle state.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job tracks one run of the classification pipeline against one input
// source. At most one Job with status Running may exist per input path.
type Job struct {
	ID                 string
	InputPath          string
	Fingerprint        string
	TotalRows          int
	BatchSize          int
	LastCommittedBatch int // -1 until the first batch commits
	ProcessedRows      int
	FailedRows         int
	Status             JobStatus
	StartedAt          time.Time
	CompletedAt        *time.Time
	AccumulatedCost    float64
	AccumulatedMillis  int64
	ErrorSummary       string
}

// ResumeRow is the first row index not known to be committed.
func (j *Job) ResumeRow() int {
	return (j.LastCommittedBatch + 1) * j.BatchSize
}

// LeadInput is the subset of source-row fields the cascade needs plus
// the fields retained for confirmation traceability.
type LeadInput struct {
	SourceRowIndex    int
	EntityName        string
	DirectorName      string
	RegisteredAddress string
	City              string
	Province          string
}

// LeadResult is the classification outcome for one (job, source row).
type LeadResult struct {
	JobID             string
	SourceRowIndex    int
	EntityName        string
	DirectorName      string
	RegisteredAddress string
	City              string
	Province          string
	Category          Category
	Confidence        float64
	Method            Method
	ElapsedMillis     int64
	ProviderID        string
	Cost              float64
	RetryCount        int
	ErrorKind         string
	ErrorMessage      string
	CreatedAt         time.Time
}

// Failed reports whether this result represents a per-lead failure
// rather than a classification (including Unclassified, which is a
// valid non-error outcome).
func (r *LeadResult) Failed() bool {
	return r.ErrorKind != ""
}

// LLMClassification caches the LLM's answer for one normalized name so
// repeat probes (including conservative-resume re-execution) never pay
// provider cost twice for the same name.
type LLMClassification struct {
	NormalizedName      string
	Category            Category
	Confidence          float64
	ProviderID          string
	Cost                float64
	ElapsedMillis       int64
	PhoneticCodes       PhoneticCodes
	LinguisticMarkers   []string
	StructuralFeatures  map[string]float64
	SessionID           string
	CreatedAt           time.Time
}

// PatternKind names the category of a LearnedPattern.
type PatternKind string

const (
	PatternPrefix               PatternKind = "prefix"
	PatternSuffix               PatternKind = "suffix"
	PatternContains             PatternKind = "contains"
	PatternPhoneticCodeFamily   PatternKind = "phonetic-code-family"
	PatternStructuralFeature    PatternKind = "structural-feature"
)

// LearnedPattern is a rule the Learning Extractor derived from a
// high-confidence LLM result.
type LearnedPattern struct {
	ID                 int64
	Kind               PatternKind
	Value              string
	Category           Category
	DerivedConfidence  float64
	UsageCount         int
	SuccessCount       int
	CreatedFromSession string
	Active             bool
	CreatedAt          time.Time
}

// EffectiveConfidence blends the derived confidence with the observed
// confirmation success rate as a shrinkage estimate: with little usage
// the derived confidence dominates, and as usage accumulates the
// observed success rate takes over.
func (p *LearnedPattern) EffectiveConfidence() float64 {
	if p.UsageCount <= 0 {
		return p.DerivedConfidence
	}
	const priorWeight = 5.0
	observed := float64(p.SuccessCount) / float64(p.UsageCount)
	weight := float64(p.UsageCount) / (float64(p.UsageCount) + priorWeight)
	return p.DerivedConfidence*(1-weight) + observed*weight
}

// PhoneticFamily is the majority-vote category for a tuple of phonetic
// codes, built incrementally as LLMClassifications accumulate.
type PhoneticFamily struct {
	CodesKey        string
	Category        Category
	Confidence      float64
	EvidenceCount   int
}

// Confirmation is a human-supplied canonical category attached to a
// specific source row.
type Confirmation struct {
	SourceFingerprint  string
	SourceRowIndex     int
	EntityName         string
	DirectorName       string
	RegisteredAddress  string
	City               string
	Province           string
	SpatialContextHash string
	PredictedCategory  Category
	PredictedConfidence float64
	PredictedMethod    Method
	ConfirmedCategory  Category // empty until confirmed
	ConfirmerID        string
	ConfirmedAt        *time.Time
	Notes              string
}

// CanonicalCategory is one entry in the closed set of demographic
// category codes accepted in confirmations.
type CanonicalCategory struct {
	Code        Category
	DisplayName string
	SortOrder   int
}

// PhoneticCodes is the output of the phonetic engine for one name.
type PhoneticCodes struct {
	Soundex               string
	Metaphone             string
	DoubleMetaphonePrimary   string
	DoubleMetaphoneSecondary string
	NYSIIS                string
}

// Tuple returns the five codes in a fixed order, suitable as a
// phonetic-family key.
func (c PhoneticCodes) Tuple() [5]string {
	return [5]string{c.Soundex, c.Metaphone, c.DoubleMetaphonePrimary, c.DoubleMetaphoneSecondary, c.NYSIIS}
}

// CascadeResult is what the classification cascade returns for one
// probe name.
type CascadeResult struct {
	Category      Category
	Confidence    float64
	Method        Method
	ElapsedMillis int64
	ProviderID    string
	Cost          float64
	ErrorKind     string
	ErrorMessage  string
}
