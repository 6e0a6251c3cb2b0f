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
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic/encoder"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is returned when no slot is free and the wait queue is full.
	ErrQueueFull = errors.New("request queue is full")
	// ErrRequestTimeout is returned when a request waited too long for a slot.
	ErrRequestTimeout = errors.New("request timed out waiting in queue")
)

// RequestQueueConfig configures a RequestQueue.
type RequestQueueConfig struct {
	// MaxConcurrentRequests bounds in-flight requests; zero is unlimited.
	MaxConcurrentRequests int
	// MaxQueueSize bounds waiting requests; zero is unlimited.
	MaxQueueSize int
	// RequestTimeout bounds the wait for a slot; zero waits until the
	// request context ends.
	RequestTimeout time.Duration
}

// QueueStats is a snapshot of queue activity.
type QueueStats struct {
	CurrentActive  int64  `json:"current_active"`
	CurrentQueued  int64  `json:"current_queued"`
	TotalProcessed uint64 `json:"total_processed"`
	TotalRejected  uint64 `json:"total_rejected"`
	TotalTimedOut  uint64 `json:"total_timed_out"`
}

// RequestQueue applies backpressure to pipeline runs: at most
// MaxConcurrentRequests run at once and at most MaxQueueSize wait.
type RequestQueue struct {
	sem      *semaphore.Weighted
	maxQueue int64
	timeout  time.Duration
	logger   *zap.Logger

	active    atomic.Int64
	queued    atomic.Int64
	processed atomic.Uint64
	rejected  atomic.Uint64
	timedOut  atomic.Uint64
}

// NewRequestQueue creates a RequestQueue.
func NewRequestQueue(config RequestQueueConfig, logger *zap.Logger) *RequestQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &RequestQueue{
		maxQueue: int64(config.MaxQueueSize),
		timeout:  config.RequestTimeout,
		logger:   logger,
	}
	if config.MaxConcurrentRequests > 0 {
		q.sem = semaphore.NewWeighted(int64(config.MaxConcurrentRequests))
	}
	return q
}

// Acquire waits for a slot. The returned release func must be called once
// the request is done; calling it more than once is harmless.
func (q *RequestQueue) Acquire(ctx context.Context) (func(), error) {
	if q.sem == nil || q.sem.TryAcquire(1) {
		return q.admit(), nil
	}

	if n := q.queued.Add(1); q.maxQueue > 0 && n > q.maxQueue {
		q.queued.Add(-1)
		q.rejected.Add(1)
		q.logger.Debug("Rejecting request, queue full", zap.Int64("max_queue_size", q.maxQueue))
		return nil, ErrQueueFull
	}
	defer q.queued.Add(-1)

	waitCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := q.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		q.timedOut.Add(1)
		return nil, ErrRequestTimeout
	}
	RecordQueueWaitTime(time.Since(start).Seconds())
	return q.admit(), nil
}

func (q *RequestQueue) admit() func() {
	q.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			q.active.Add(-1)
			q.processed.Add(1)
			if q.sem != nil {
				q.sem.Release(1)
			}
		})
	}
}

// Stats returns a snapshot of queue activity.
func (q *RequestQueue) Stats() QueueStats {
	return QueueStats{
		CurrentActive:  q.active.Load(),
		CurrentQueued:  q.queued.Load(),
		TotalProcessed: q.processed.Load(),
		TotalRejected:  q.rejected.Load(),
		TotalTimedOut:  q.timedOut.Load(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// WriteQueueFullResponse answers 503 with a Retry-After hint.
func WriteQueueFullResponse(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = encoder.NewStreamEncoder(w).Encode(errorResponse{Error: ErrQueueFull.Error()})
}

// WriteTimeoutResponse answers 504 for a request that timed out in queue.
func WriteTimeoutResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusGatewayTimeout)
	_ = encoder.NewStreamEncoder(w).Encode(errorResponse{Error: ErrRequestTimeout.Error()})
}
