// Copyright 2026 The Call-me-maybe Authors
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

package callmemaybe

import (
	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineRunOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "pipeline",
			Name:      "run_ops_total",
			Help:      "The total number of pipeline runs by outcome and failing stage.",
		},
		[]string{"outcome", "stage"},
	)
	tokenGenerationOps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "pipeline",
			Name:      "token_generation_ops_total",
			Help:      "The total number of tokens generated.",
		},
	)
	stopReasonOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "pipeline",
			Name:      "stop_reason_ops_total",
			Help:      "The total number of decodes by stop reason.",
		},
		[]string{"reason"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process a request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits.",
		},
		[]string{"type"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses.",
		},
		[]string{"type"},
	)

	// Queue metrics
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "queue_depth",
			Help:      "Number of requests currently waiting in queue.",
		},
	)

	queueActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "queue_active_requests",
			Help:      "Number of requests currently being processed.",
		},
	)

	queueRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "queue_rejected_total",
			Help:      "Total number of requests rejected due to full queue.",
		},
	)

	queueTimedOutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "queue_timed_out_total",
			Help:      "Total number of requests that timed out while waiting in queue.",
		},
	)

	queueWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "callmemaybe",
			Subsystem: "server",
			Name:      "queue_wait_duration_seconds",
			Help:      "Time spent waiting in queue before processing.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(pipelineRunOps)
	prometheus.MustRegister(tokenGenerationOps)
	prometheus.MustRegister(stopReasonOps)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(queueActiveRequests)
	prometheus.MustRegister(queueRejectedTotal)
	prometheus.MustRegister(queueTimedOutTotal)
	prometheus.MustRegister(queueWaitDuration)
}

// RecordPipelineRun records the outcome of one pipeline run. A non-nil err
// counts as an error outcome with no stage.
func RecordPipelineRun(res *pipeline.Result, err error) {
	switch {
	case err != nil:
		pipelineRunOps.WithLabelValues("error", "").Inc()
		return
	case res.Success:
		pipelineRunOps.WithLabelValues("success", "").Inc()
	default:
		pipelineRunOps.WithLabelValues("failure", string(res.Stage)).Inc()
	}
	if res.StopReason != "" {
		stopReasonOps.WithLabelValues(string(res.StopReason)).Inc()
		tokenGenerationOps.Add(float64(res.GeneratedTokens))
	}
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(endpoint, status string, seconds float64) {
	requestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter
func RecordCacheHit(cacheType string) {
	cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache miss counter
func RecordCacheMiss(cacheType string) {
	cacheMisses.WithLabelValues(cacheType).Inc()
}

// UpdateQueueMetrics updates all queue-related metrics from QueueStats
func UpdateQueueMetrics(stats QueueStats) {
	queueDepth.Set(float64(stats.CurrentQueued))
	queueActiveRequests.Set(float64(stats.CurrentActive))
}

// RecordQueueRejection increments the rejected counter
func RecordQueueRejection() {
	queueRejectedTotal.Inc()
}

// RecordQueueTimeout increments the timeout counter
func RecordQueueTimeout() {
	queueTimedOutTotal.Inc()
}

// RecordQueueWaitTime records how long a request waited in queue
func RecordQueueWaitTime(seconds float64) {
	queueWaitDuration.Observe(seconds)
}
