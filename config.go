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
	"time"

	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/model"
)

const (
	// DefaultApiUrl is the default listen address of the API server
	DefaultApiUrl = "http://localhost:11600"

	// DefaultCacheTTL is the default lifetime of a cached result
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCapacity bounds the number of cached results
	DefaultCacheCapacity = 4096
)

// Config configures a call-me-maybe node.
type Config struct {
	// ApiUrl is the address the API server listens on.
	ApiUrl string `json:"api_url,omitempty"`

	// FunctionsPath is the JSON file of function definitions.
	FunctionsPath string `json:"functions_path,omitempty"`

	// VocabularyPath is a local vocab.json or tokenizer.json. When empty
	// the vocabulary is fetched from the model server.
	VocabularyPath string `json:"vocabulary_path,omitempty"`

	// ModelUrl is the base URL of the scoring model server.
	ModelUrl string `json:"model_url,omitempty"`

	// ModelTimeout bounds a single scoring request.
	ModelTimeout time.Duration `json:"model_timeout,omitempty"`

	// ExamplesPath is a JSON file of worked examples shown in the prompt.
	// When empty an example is synthesized from the first function.
	ExamplesPath string `json:"examples_path,omitempty"`

	// ByteLevel forces the GPT-2 byte-level text convention on or off; nil
	// detects it from the table.
	ByteLevel *bool `json:"byte_level,omitempty"`

	// UnkToken and EosToken override special token detection.
	UnkToken string `json:"unk_token,omitempty"`
	EosToken string `json:"eos_token,omitempty"`

	// MaxNewTokens bounds generation per question. Unset or non-positive
	// values use decoding.DefaultMaxNewTokens.
	MaxNewTokens int `json:"max_new_tokens,omitempty"`

	// StopOnObject ends generation once a complete JSON object is produced.
	StopOnObject bool `json:"stop_on_object,omitempty"`

	// TokenBudget logs a warning when a prompt is estimated to exceed it.
	TokenBudget int `json:"token_budget,omitempty"`

	// CacheTTL is how long results are cached; zero disables the cache.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// CacheCapacity bounds the number of cached results.
	CacheCapacity uint64 `json:"cache_capacity,omitempty"`

	// MaxConcurrentRequests bounds in-flight pipeline runs; zero is unlimited.
	MaxConcurrentRequests int `json:"max_concurrent_requests,omitempty"`

	// MaxQueueSize bounds requests waiting for a slot; zero is unlimited.
	MaxQueueSize int `json:"max_queue_size,omitempty"`

	// RequestTimeout bounds the time a request may wait in the queue.
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.ApiUrl == "" {
		c.ApiUrl = DefaultApiUrl
	}
	if c.ModelUrl == "" {
		c.ModelUrl = model.DefaultBaseURL
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = model.DefaultTimeout
	}
	if c.MaxNewTokens <= 0 {
		c.MaxNewTokens = decoding.DefaultMaxNewTokens
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	return c
}
