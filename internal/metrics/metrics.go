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

// Package metrics exposes Prometheus counters and histograms for the
// classification pipeline: which cascade layer resolved each lead,
// provider call outcomes, and batch/job throughput. Every recorder is
// safe to call from concurrent workers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dirclass"

var (
	registry = prometheus.NewRegistry()

	cascadeLayerHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "layer_hits_total",
			Help:      "Leads resolved by each cascade layer.",
		},
		[]string{"method"},
	)

	llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "LLM classification requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	rateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "waits_total",
			Help:      "Times a provider call was delayed by the rate-limit governor.",
		},
		[]string{"provider"},
	)

	rowsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "rows_processed_total",
			Help:      "Leads classified, labeled by outcome (ok or failed).",
		},
		[]string{"outcome"},
	)

	rowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "row_duration_seconds",
			Help:      "Time to classify a single lead end to end.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12), // 1ms to ~70min
		},
	)

	batchesCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "batches_committed_total",
			Help:      "Batches committed to the persistent store.",
		},
	)
)

func init() {
	registry.MustRegister(cascadeLayerHits, llmCalls, rateLimitWaits, rowsProcessed, rowDuration, batchesCommitted)
}

// RecordCascadeLayer records which layer resolved a classification.
func RecordCascadeLayer(method string) {
	cascadeLayerHits.WithLabelValues(method).Inc()
}

// RecordLLMCall records the outcome of one provider request.
func RecordLLMCall(providerID, outcome string) {
	llmCalls.WithLabelValues(providerID, outcome).Inc()
}

// RecordRateLimitWait records that a provider call had to wait for the
// governor before it could proceed.
func RecordRateLimitWait(providerID string) {
	rateLimitWaits.WithLabelValues(providerID).Inc()
}

// RecordRowProcessed records one lead's classification outcome and
// wall-clock duration.
func RecordRowProcessed(failed bool, duration time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	rowsProcessed.WithLabelValues(outcome).Inc()
	rowDuration.Observe(duration.Seconds())
}

// RecordBatchCommitted records one successfully committed batch.
func RecordBatchCommitted() {
	batchesCommitted.Inc()
}

// Handler serves the registered metrics in the Prometheus exposition
// format, for an operator who wants to scrape a long-running job.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
