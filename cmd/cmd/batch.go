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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer a file of questions",
	Long: `Run every question of an input file through the pipeline and write the
results, in input order, to an output file.

The input is a JSON array of objects with a "prompt" field:

  [{"prompt": "What is the sum of 2 and 3?"}, {"prompt": "Greet shrek"}]

Examples:
  callmemaybe batch -i data/input/function_calling_tests.json -o data/output/function_calls.json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("input", "i", "data/input/function_calling_tests.json", "Questions file")
	batchCmd.Flags().StringP("output", "o", "data/output/function_calls.json", "Results file")
	batchCmd.Flags().IntP("concurrency", "c", 4, "Questions answered in parallel")
}

// batchQuestion is one entry of the batch input file.
type batchQuestion struct {
	Prompt string `json:"prompt"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	questions, err := readBatch(input)
	if err != nil {
		return err
	}

	node, err := newNode(ctx, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	logger.Info("Answering questions",
		zap.String("input", input),
		zap.Int("questions", len(questions)),
		zap.Int("concurrency", concurrency))

	start := time.Now()
	results := make([]*pipeline.Result, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, q := range questions {
		g.Go(func() error {
			return pipeline.LogErrors(logger, fmt.Sprintf("question %d", i), func() error {
				res, err := node.Call(gctx, q.Prompt)
				if err != nil {
					return fmt.Errorf("question %d: %w", i, err)
				}
				results[i] = res
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}

	if err := writeBatch(output, results); err != nil {
		return err
	}
	logger.Info("Batch complete",
		zap.String("output", output),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func readBatch(path string) ([]batchQuestion, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a flag
	if err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	var questions []batchQuestion
	if err := sonic.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parsing questions %s: %w", path, err)
	}
	return questions, nil
}

func writeBatch(path string, results []*pipeline.Result) error {
	data, err := sonic.ConfigDefault.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
