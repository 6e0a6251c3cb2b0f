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
package cmd

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/antflydb/antfly-go/libaf/healthserver"
	callmemaybe "github.com/bchene/Call-me-maybe"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the callmemaybe server",
	Long: `Start the callmemaybe API server.

The server loads the function definitions and vocabulary once and answers
POST /api/call requests against the configured scoring model.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Run command flags
	flags := runCmd.Flags()
	flags.String("api-url", callmemaybe.DefaultApiUrl, "API listen address")
	flags.Int("health-port", 4200, "health/metrics server port")
	flags.Duration("cache-ttl", callmemaybe.DefaultCacheTTL, "lifetime of cached results (0 disables the cache)")
	flags.Uint64("cache-capacity", callmemaybe.DefaultCacheCapacity, "maximum number of cached results")
	flags.Int("max-concurrent-requests", 0, "maximum pipeline runs in flight (0 is unlimited)")
	flags.Int("max-queue-size", 0, "maximum requests waiting for a slot (0 is unlimited)")
	flags.Duration("request-timeout", 0, "maximum time a request waits for a slot (0 waits for the client)")
	mustBindPFlag("api_url", flags.Lookup("api-url"))
	mustBindPFlag("health_port", flags.Lookup("health-port"))
	mustBindPFlag("cache_ttl", flags.Lookup("cache-ttl"))
	mustBindPFlag("cache_capacity", flags.Lookup("cache-capacity"))
	mustBindPFlag("max_concurrent_requests", flags.Lookup("max-concurrent-requests"))
	mustBindPFlag("max_queue_size", flags.Lookup("max-queue-size"))
	mustBindPFlag("request_timeout", flags.Lookup("request-timeout"))
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	// Track readiness state
	ready := &atomic.Bool{}
	ready.Store(false)
	readyC := make(chan struct{})

	// Start health server with readiness checker
	healthserver.Start(logger, viper.GetInt("health_port"), ready.Load)

	// Wait for ready signal in background
	go func() {
		select {
		case <-readyC:
			ready.Store(true)
			logger.Info("callmemaybe is ready")
		case <-ctx.Done():
		}
	}()

	return callmemaybe.RunServer(ctx, logger, loadConfig(), readyC)
}
