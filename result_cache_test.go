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
	"sync/atomic"
	"testing"
	"time"

	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// countingRunner answers every question successfully unless err is set.
type countingRunner struct {
	calls atomic.Int64
	err   error
}

func (r *countingRunner) Run(_ context.Context, question string) (*pipeline.Result, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Result{Success: true, Prompt: question, FnName: "fn_echo"}, nil
}

func TestCachedPipeline_Hit(t *testing.T) {
	runner := &countingRunner{}
	cp := NewCachedPipeline(runner, time.Minute, 10, zaptest.NewLogger(t))
	defer cp.Close()

	first, err := cp.Run(context.Background(), "echo hi")
	require.NoError(t, err)
	second, err := cp.Run(context.Background(), "echo hi")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), runner.calls.Load())

	stats := cp.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Items)
}

func TestCachedPipeline_KeysAreVerbatim(t *testing.T) {
	runner := &countingRunner{}
	cp := NewCachedPipeline(runner, time.Minute, 10, zaptest.NewLogger(t))
	defer cp.Close()

	for _, q := range []string{"echo hi", "echo hi ", "Echo hi"} {
		res, err := cp.Run(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, q, res.Prompt)
	}
	assert.Equal(t, int64(3), runner.calls.Load())
}

func TestCachedPipeline_ErrorsAreNotCached(t *testing.T) {
	runner := &countingRunner{err: errors.New("model unavailable")}
	cp := NewCachedPipeline(runner, time.Minute, 10, zaptest.NewLogger(t))
	defer cp.Close()

	for range 2 {
		_, err := cp.Run(context.Background(), "echo hi")
		require.EqualError(t, err, "model unavailable")
	}
	assert.Equal(t, int64(2), runner.calls.Load())
	assert.Zero(t, cp.Stats().Items)
}

func TestCachedPipeline_Disabled(t *testing.T) {
	runner := &countingRunner{}
	cp := NewCachedPipeline(runner, 0, 10, zaptest.NewLogger(t))
	defer cp.Close()

	for range 2 {
		res, err := cp.Run(context.Background(), "echo hi")
		require.NoError(t, err)
		assert.True(t, res.Success)
	}
	assert.Equal(t, int64(2), runner.calls.Load())
	assert.Zero(t, cp.Stats().Items)
	assert.Zero(t, cp.Stats().Hits)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abc...", truncateString("abcdef", 3))
}
