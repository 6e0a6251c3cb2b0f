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
	"testing"
	"time"

	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/model"
	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		c := Config{}.withDefaults()

		assert.Equal(t, DefaultApiUrl, c.ApiUrl)
		assert.Equal(t, model.DefaultBaseURL, c.ModelUrl)
		assert.Equal(t, model.DefaultTimeout, c.ModelTimeout)
		assert.Equal(t, decoding.DefaultMaxNewTokens, c.MaxNewTokens)
		assert.Equal(t, uint64(DefaultCacheCapacity), c.CacheCapacity)
		assert.Zero(t, c.CacheTTL)
		assert.Zero(t, c.MaxConcurrentRequests)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		c := Config{
			ApiUrl:        "http://0.0.0.0:9000",
			ModelUrl:      "http://model:8080/v1",
			ModelTimeout:  time.Second,
			MaxNewTokens:  16,
			CacheTTL:      time.Hour,
			CacheCapacity: 10,
		}.withDefaults()

		assert.Equal(t, "http://0.0.0.0:9000", c.ApiUrl)
		assert.Equal(t, "http://model:8080/v1", c.ModelUrl)
		assert.Equal(t, time.Second, c.ModelTimeout)
		assert.Equal(t, 16, c.MaxNewTokens)
		assert.Equal(t, time.Hour, c.CacheTTL)
		assert.Equal(t, uint64(10), c.CacheCapacity)
	})

	t.Run("negative values", func(t *testing.T) {
		c := Config{MaxNewTokens: -1, CacheTTL: -time.Second}.withDefaults()

		assert.Equal(t, decoding.DefaultMaxNewTokens, c.MaxNewTokens)
		assert.Zero(t, c.CacheTTL)
	})
}
