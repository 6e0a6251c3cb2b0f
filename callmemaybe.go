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

// Package callmemaybe serves constrained function calling over a
// token-level scoring model: a question goes in, a validated function call
// (or the stage it failed at) comes out.
package callmemaybe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/model"
	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/bchene/Call-me-maybe/lib/prompt"
	"github.com/bchene/Call-me-maybe/lib/tokenizer"
	"github.com/bchene/Call-me-maybe/lib/vocab"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout is the default time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// Node owns the loaded registry, vocabulary and pipeline shared by every
// request.
type Node struct {
	logger *zap.Logger
	config Config

	registry *functions.Registry
	vocab    *vocab.Vocabulary
	pipeline *pipeline.Pipeline

	// Request queue for backpressure control
	requestQueue *RequestQueue

	// Cache for deterministic pipeline results
	cache *CachedPipeline
}

// NewNode loads functions and the vocabulary and wires the pipeline
// against the remote model described by config.
func NewNode(ctx context.Context, zl *zap.Logger, config Config) (*Node, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	config = config.withDefaults()

	var registry *functions.Registry
	if err := pipeline.LogErrors(zl, "load functions", func() (err error) {
		registry, err = functions.LoadFile(config.FunctionsPath)
		return err
	}); err != nil {
		return nil, &pipeline.ConfigurationError{Err: err}
	}
	zl.Info("Loaded function definitions",
		zap.String("path", config.FunctionsPath),
		zap.Strings("functions", registry.Names()))

	var examples []prompt.Example
	if config.ExamplesPath != "" {
		if err := pipeline.LogErrors(zl, "load examples", func() (err error) {
			examples, err = prompt.LoadExamplesFile(config.ExamplesPath)
			return err
		}); err != nil {
			return nil, &pipeline.ConfigurationError{Err: err}
		}
		zl.Info("Loaded prompt examples",
			zap.String("path", config.ExamplesPath),
			zap.Int("examples", len(examples)))
	}

	client := model.NewClient(
		model.WithBaseURL(config.ModelUrl),
		model.WithTimeout(config.ModelTimeout),
		model.WithVocabularyPath(config.VocabularyPath),
		model.WithLogger(zl.Named("model")),
	)
	var v *vocab.Vocabulary
	if err := pipeline.LogErrors(zl, "load vocabulary", func() (err error) {
		v, err = client.FetchVocabulary(ctx, vocabOptions(config)...)
		return err
	}); err != nil {
		return nil, &pipeline.ConfigurationError{Err: err}
	}
	zl.Info("Loaded vocabulary",
		zap.String("source", client.VocabularySource()),
		zap.Int("size", v.Size()),
		zap.Bool("byte_level", v.ByteLevel()))

	return newNode(zl, config, registry, v, client, examples)
}

// NewNodeWith wires a Node from already loaded parts. The prompt example is
// synthesized from the first function.
func NewNodeWith(zl *zap.Logger, config Config, registry *functions.Registry, v *vocab.Vocabulary, scorer decoding.Scorer) (*Node, error) {
	return newNode(zl, config, registry, v, scorer, nil)
}

func newNode(zl *zap.Logger, config Config, registry *functions.Registry, v *vocab.Vocabulary, scorer decoding.Scorer, examples []prompt.Example) (*Node, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	config = config.withDefaults()

	p, err := pipeline.New(registry, v, scorer, pipeline.Config{
		Decoding: decoding.Config{
			MaxNewTokens: config.MaxNewTokens,
			StopOnObject: config.StopOnObject,
		},
		Examples:     examples,
		TokenCounter: tokenizer.Default(),
		TokenBudget:  config.TokenBudget,
	}, zl.Named("pipeline"))
	if err != nil {
		return nil, err
	}

	return &Node{
		logger:   zl,
		config:   config,
		registry: registry,
		vocab:    v,
		pipeline: p,
		requestQueue: NewRequestQueue(RequestQueueConfig{
			MaxConcurrentRequests: config.MaxConcurrentRequests,
			MaxQueueSize:          config.MaxQueueSize,
			RequestTimeout:        config.RequestTimeout,
		}, zl.Named("queue")),
		cache: NewCachedPipeline(p, config.CacheTTL, config.CacheCapacity, zl.Named("result-cache")),
	}, nil
}

func vocabOptions(config Config) []vocab.Option {
	var opts []vocab.Option
	if config.UnkToken != "" {
		opts = append(opts, vocab.WithUnkToken(config.UnkToken))
	}
	if config.EosToken != "" {
		opts = append(opts, vocab.WithEOSToken(config.EosToken))
	}
	if config.ByteLevel != nil {
		opts = append(opts, vocab.WithByteLevel(*config.ByteLevel))
	}
	return opts
}

// Registry returns the loaded function registry.
func (n *Node) Registry() *functions.Registry { return n.registry }

// Call runs question through the cached pipeline.
func (n *Node) Call(ctx context.Context, question string) (*pipeline.Result, error) {
	return n.cache.Run(ctx, question)
}

// Close releases the node's background resources.
func (n *Node) Close() {
	n.cache.Close()
}

// Handler returns the root HTTP handler: health endpoints, /metrics and
// the /api routes.
func (n *Node) Handler() http.Handler {
	rootMux := http.NewServeMux()

	// Health endpoints (outside /api prefix for k8s compatibility)
	rootMux.HandleFunc("GET /healthz", n.handleHealthz)
	rootMux.HandleFunc("GET /readyz", n.handleReadyz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/api/", NewAPI(n.logger, n))

	return corsMiddleware(rootMux)
}

// corsMiddleware adds permissive CORS headers for the API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RunServer serves the API until ctx is cancelled. If readyC is non-nil,
// it is closed once the server is accepting requests.
func RunServer(ctx context.Context, zl *zap.Logger, config Config, readyC chan struct{}) error {
	zl = zl.Named("callmemaybe")
	config = config.withDefaults()
	zl.Info("Starting call-me-maybe node", zap.Any("config", config))

	u, err := url.Parse(config.ApiUrl)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", config.ApiUrl, err)
	}

	node, err := NewNode(ctx, zl, config)
	if err != nil {
		return err
	}
	defer node.Close()

	srv := &http.Server{
		Addr:              u.Host,
		Handler:           node.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("API server starting", zap.String("address", config.ApiUrl))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Signal readiness after server starts
	if readyC != nil {
		close(readyC)
	}

	// Wait for context cancellation or server error
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
		zl.Info("Shutdown signal received, starting graceful shutdown...")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections
	srv.SetKeepAlivesEnabled(false)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Graceful shutdown failed, forcing close",
			zap.Error(err),
			zap.Duration("timeout", DefaultShutdownTimeout))
		_ = srv.Close()
	} else {
		zl.Info("Graceful shutdown completed successfully")
	}

	zl.Info("HTTP server stopped")
	return nil
}
