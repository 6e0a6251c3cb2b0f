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
	"os/signal"
	"strings"
	"syscall"

	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question with a function call",
	Long: `Run one question through the pipeline and print the result as JSON.

Examples:
  # Ask with the default functions file
  callmemaybe ask "What is the sum of 2 and 3?"

  # Exit non-zero when no valid call was produced
  callmemaybe ask --strict "Reverse the string 'hello'"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Bool("strict", false, "Exit with an error when the question fails")
}

func runAsk(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	node, err := newNode(ctx, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	question := strings.Join(args, " ")
	var res *pipeline.Result
	err = pipeline.LogErrors(logger, "ask", func() (err error) {
		res, err = node.Call(ctx, question)
		return err
	})
	if err != nil {
		return fmt.Errorf("answering %q: %w", question, err)
	}

	out, err := sonic.ConfigDefault.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if strict && !res.Success {
		logger.Debug("Question failed", zap.String("stage", string(res.Stage)), zap.String("reason", res.Reason))
		return fmt.Errorf("%s failed: %s", res.Stage, res.Reason)
	}
	return nil
}
