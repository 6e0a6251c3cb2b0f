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
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Runner runs one question through the function-calling pipeline.
type Runner interface {
	Run(ctx context.Context, question string) (*pipeline.Result, error)
}

// CachedPipeline memoizes pipeline results. Decoding is greedy, so the
// same question always yields the same result for a fixed model, registry
// and vocabulary. Errors are never cached. Cached results are shared and
// must be treated as read-only.
type CachedPipeline struct {
	runner  Runner
	cache   *ttlcache.Cache[string, *pipeline.Result]
	sfGroup *singleflight.Group
	logger  *zap.Logger
	cancel  context.CancelFunc

	// Metrics
	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

// NewCachedPipeline wraps runner with a result cache. A ttl of zero
// disables caching; concurrent identical questions are still coalesced.
func NewCachedPipeline(runner Runner, ttl time.Duration, capacity uint64, logger *zap.Logger) *CachedPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	cp := &CachedPipeline{
		runner:  runner,
		sfGroup: &singleflight.Group{},
		logger:  logger,
	}
	if ttl > 0 {
		opts := []ttlcache.Option[string, *pipeline.Result]{
			ttlcache.WithTTL[string, *pipeline.Result](ttl),
		}
		if capacity > 0 {
			opts = append(opts, ttlcache.WithCapacity[string, *pipeline.Result](capacity))
		}
		cp.cache = ttlcache.New(opts...)
		go cp.cache.Start()

		ctx, cancel := context.WithCancel(context.Background())
		cp.cancel = cancel
		go cp.logStats(ctx)
	}
	return cp
}

// Run returns the cached result for question, running the pipeline on a
// miss.
func (c *CachedPipeline) Run(ctx context.Context, question string) (*pipeline.Result, error) {
	key := cacheKey(question)

	if c.cache != nil {
		if item := c.cache.Get(key); item != nil {
			c.hits.Add(1)
			RecordCacheHit("result")
			c.logger.Debug("Result cache hit", zap.String("question", truncateString(question, 50)))
			return item.Value(), nil
		}
	}

	// Use singleflight to deduplicate concurrent identical requests
	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		c.misses.Add(1)
		RecordCacheMiss("result")

		start := time.Now()
		res, err := c.runner.Run(ctx, question)
		RecordPipelineRun(res, err)
		if err != nil {
			return nil, err
		}

		if c.cache != nil {
			c.cache.Set(key, res, ttlcache.DefaultTTL)
		}
		c.logger.Debug("Result computed",
			zap.Bool("success", res.Success),
			zap.String("stage", string(res.Stage)),
			zap.Duration("duration", time.Since(start)))
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.sfHits.Add(1)
		c.logger.Debug("Singleflight hit for pipeline run")
	}
	return result.(*pipeline.Result), nil
}

// cacheKey hashes the question verbatim; whitespace is significant because
// the question is embedded in the prompt unchanged.
func cacheKey(question string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(question))
	return string(buf[:])
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
	Items            int    `json:"items"`
}

// Stats returns cache statistics.
func (c *CachedPipeline) Stats() CacheStats {
	stats := CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		SingleflightHits: c.sfHits.Load(),
	}
	if c.cache != nil {
		stats.Items = c.cache.Len()
	}
	return stats
}

// Close stops the cache.
func (c *CachedPipeline) Close() {
	if c.cache == nil {
		return
	}
	c.cancel()
	c.cache.Stop()
}

// logStats logs cache statistics periodically
func (c *CachedPipeline) logStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics := c.cache.Metrics()
			if metrics.Hits > 0 || metrics.Misses > 0 {
				total := metrics.Hits + metrics.Misses
				hitRate := float64(metrics.Hits) / float64(total) * 100
				c.logger.Info("Result cache stats",
					zap.Uint64("hits", metrics.Hits),
					zap.Uint64("misses", metrics.Misses),
					zap.Float64("hit_rate_pct", hitRate),
					zap.Int("items", c.cache.Len()))
			}
		}
	}
}

// truncateString returns the first n bytes of s, or s if len(s) <= n
func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
