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

// Package model is an HTTP client for a remote scoring model. The server
// returns one next-token score per vocabulary entry for a sequence of
// token ids, and serves the vocabulary the ids refer to.
package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bchene/Call-me-maybe/lib/vocab"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the default model server URL
	DefaultBaseURL = "http://localhost:11500/v1"

	// DefaultTimeout is the default HTTP timeout for a scoring request
	DefaultTimeout = 30 * time.Second
)

// Client scores token sequences against a remote model.
type Client struct {
	baseURL    string
	vocabPath  string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the model server base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout for each request
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithVocabularyPath makes the client report a local vocabulary file
// instead of the server's vocab.json.
func WithVocabularyPath(path string) ClientOption {
	return func(c *Client) {
		c.vocabPath = path
	}
}

// NewClient creates a new model client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c
}

type scoresRequest struct {
	TokenIDs []int `json:"token_ids"`
}

type scoresResponse struct {
	Scores []float32 `json:"scores"`
}

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("model server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("model server returned status %d: %s", e.StatusCode, e.Body)
}

// ScoresFor returns the next-token scores for ids.
func (c *Client) ScoresFor(ctx context.Context, ids []int) ([]float32, error) {
	body, err := sonic.Marshal(scoresRequest{TokenIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := c.baseURL + "/scores"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting scores: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out scoresResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding scores: %w", err)
	}

	c.logger.Debug("Scored sequence",
		zap.Int("tokens", len(ids)),
		zap.Int("scores", len(out.Scores)),
		zap.Duration("took", time.Since(start)))
	return out.Scores, nil
}

// VocabularySource returns where the model's vocabulary lives: the local
// path when one was configured, else the server's vocab.json URL.
func (c *Client) VocabularySource() string {
	if c.vocabPath != "" {
		return c.vocabPath
	}
	return c.baseURL + "/vocab.json"
}

// FetchVocabulary loads the vocabulary from VocabularySource.
func (c *Client) FetchVocabulary(ctx context.Context, opts ...vocab.Option) (*vocab.Vocabulary, error) {
	if c.vocabPath != "" {
		return vocab.LoadFile(c.vocabPath, opts...)
	}

	url := c.VocabularySource()
	c.logger.Debug("Fetching vocabulary", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching vocabulary: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	v, err := vocab.Load(resp.Body, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary from %s: %w", url, err)
	}
	return v, nil
}
