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
	"strings"

	"github.com/antflydb/antfly-go/libaf/logging"
	callmemaybe "github.com/bchene/Call-me-maybe"
	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set by main from the release ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "callmemaybe",
	Short: "Turn questions into validated function calls",
	Long: `callmemaybe prompts a token-level scoring model with a set of function
definitions, greedily decodes its answer and parses and validates the
resulting function call.

Configuration is read from flags, from CALLMEMAYBE_* environment variables
(e.g. CALLMEMAYBE_MODEL_URL) and from an optional config file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		callmemaybe.Version = Version
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./callmemaybe.yaml)")

	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-style", "terminal", "log style (terminal, json, logfmt, noop)")
	mustBindPFlag("log.level", flags.Lookup("log-level"))
	mustBindPFlag("log.style", flags.Lookup("log-style"))

	// Pipeline flags
	flags.StringP("functions", "f", "functions_definition.json", "function definitions file")
	flags.String("examples", "", "JSON file of worked examples for the prompt (default: synthesized)")
	flags.String("vocab", "", "local vocab.json or tokenizer.json (default: fetched from the model server)")
	flags.String("model-url", model.DefaultBaseURL, "scoring model server base URL")
	flags.Duration("model-timeout", model.DefaultTimeout, "timeout for a single scoring request")
	flags.String("unk-token", "", "unknown token (default: detected from the vocabulary)")
	flags.String("eos-token", "", "end-of-sequence token (default: detected from the vocabulary)")
	flags.Bool("byte-level", false, "treat the vocabulary as GPT-2 byte-level (default: detected)")
	flags.Int("max-new-tokens", decoding.DefaultMaxNewTokens, "maximum number of generated tokens per question")
	flags.Bool("stop-on-object", true, "stop generating once a complete JSON object was produced")
	flags.Int("token-budget", 0, "warn when a prompt is estimated to exceed this many tokens (0 disables)")
	mustBindPFlag("functions_path", flags.Lookup("functions"))
	mustBindPFlag("examples_path", flags.Lookup("examples"))
	mustBindPFlag("vocabulary_path", flags.Lookup("vocab"))
	mustBindPFlag("model_url", flags.Lookup("model-url"))
	mustBindPFlag("model_timeout", flags.Lookup("model-timeout"))
	mustBindPFlag("unk_token", flags.Lookup("unk-token"))
	mustBindPFlag("eos_token", flags.Lookup("eos-token"))
	mustBindPFlag("byte_level", flags.Lookup("byte-level"))
	mustBindPFlag("max_new_tokens", flags.Lookup("max-new-tokens"))
	mustBindPFlag("stop_on_object", flags.Lookup("stop-on-object"))
	mustBindPFlag("token_budget", flags.Lookup("token-budget"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("callmemaybe")
	}

	viper.SetEnvPrefix("CALLMEMAYBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %q: %v", key, err))
	}
}

// newLogger creates the logger configured by log.level and log.style.
func newLogger() *zap.Logger {
	return logging.NewLogger(&logging.Config{
		Level: logging.Level(viper.GetString("log.level")),
		Style: logging.Style(viper.GetString("log.style")),
	})
}

// loadConfig builds the node configuration from viper.
func loadConfig() callmemaybe.Config {
	config := callmemaybe.Config{
		ApiUrl:                viper.GetString("api_url"),
		FunctionsPath:         viper.GetString("functions_path"),
		ExamplesPath:          viper.GetString("examples_path"),
		VocabularyPath:        viper.GetString("vocabulary_path"),
		ModelUrl:              viper.GetString("model_url"),
		ModelTimeout:          viper.GetDuration("model_timeout"),
		UnkToken:              viper.GetString("unk_token"),
		EosToken:              viper.GetString("eos_token"),
		MaxNewTokens:          viper.GetInt("max_new_tokens"),
		StopOnObject:          viper.GetBool("stop_on_object"),
		TokenBudget:           viper.GetInt("token_budget"),
		CacheTTL:              viper.GetDuration("cache_ttl"),
		CacheCapacity:         viper.GetUint64("cache_capacity"),
		MaxConcurrentRequests: viper.GetInt("max_concurrent_requests"),
		MaxQueueSize:          viper.GetInt("max_queue_size"),
		RequestTimeout:        viper.GetDuration("request_timeout"),
	}
	if viper.IsSet("byte_level") {
		byteLevel := viper.GetBool("byte_level")
		config.ByteLevel = &byteLevel
	}
	return config
}

// newNode loads the configured functions and vocabulary.
func newNode(ctx context.Context, logger *zap.Logger) (*callmemaybe.Node, error) {
	return callmemaybe.NewNode(ctx, logger, loadConfig())
}

// loadFunctions reads only the function definitions file.
func loadFunctions() (*functions.Registry, error) {
	return functions.LoadFile(viper.GetString("functions_path"))
}
