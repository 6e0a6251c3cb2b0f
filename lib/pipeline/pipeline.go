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

// Package pipeline turns a question into a validated function call:
// prompt, greedy decode, parse, validate. Expected failures (an empty
// question, unparseable output, an invalid call) come back as a failed
// Result tagged with the stage; only configuration problems and model
// errors are returned as errors.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/parsing"
	"github.com/bchene/Call-me-maybe/lib/prompt"
	"github.com/bchene/Call-me-maybe/lib/tokenizer"
	"github.com/bchene/Call-me-maybe/lib/validation"
	"github.com/bchene/Call-me-maybe/lib/vocab"
	"go.uber.org/zap"
)

// Config configures a Pipeline.
type Config struct {
	Decoding decoding.Config
	// Examples replace the worked example synthesized from the first
	// registered function.
	Examples []prompt.Example
	// TokenCounter estimates prompt size for TokenBudget warnings.
	TokenCounter tokenizer.Counter
	TokenBudget  int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{Decoding: decoding.DefaultConfig()}
}

// Pipeline runs questions through the function-calling stages. The
// registry and vocabulary are shared read-only, so one Pipeline may serve
// concurrent runs when its model does.
type Pipeline struct {
	registry  *functions.Registry
	builder   *prompt.Builder
	decoder   *decoding.Decoder
	parser    *parsing.Parser
	validator *validation.Validator
	logger    *zap.Logger
}

// New wires a Pipeline. Missing collaborators and an empty registry are
// reported as a *ConfigurationError.
func New(registry *functions.Registry, v *vocab.Vocabulary, model decoding.Scorer, config Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case registry.Len() == 0:
		return nil, &ConfigurationError{Err: prompt.ErrNoFunctions}
	case v == nil:
		return nil, configError("vocabulary is required")
	case model == nil:
		return nil, configError("model is required")
	}
	for i, e := range config.Examples {
		if _, ok := registry.Get(e.FnName); !ok {
			return nil, configError("example %d calls unknown function %q", i, e.FnName)
		}
	}

	opts := []prompt.Option{prompt.WithLogger(logger.Named("prompt"))}
	if len(config.Examples) > 0 {
		opts = append(opts, prompt.WithExamples(config.Examples...))
	}
	if config.TokenCounter != nil {
		opts = append(opts, prompt.WithTokenCounter(config.TokenCounter))
	}
	if config.TokenBudget > 0 {
		opts = append(opts, prompt.WithTokenBudget(config.TokenBudget))
	}

	return &Pipeline{
		registry:  registry,
		builder:   prompt.New(registry, opts...),
		decoder:   decoding.New(v, model, config.Decoding, logger.Named("decoder")),
		parser:    parsing.New(logger.Named("parser")),
		validator: validation.New(registry),
		logger:    logger,
	}, nil
}

// Registry returns the function registry.
func (p *Pipeline) Registry() *functions.Registry { return p.registry }

// Run processes one question. A nil error always comes with a Result.
func (p *Pipeline) Run(ctx context.Context, question string) (*Result, error) {
	text, err := p.builder.Build(question)
	switch {
	case errors.Is(err, prompt.ErrEmptyQuestion):
		return p.fail(failure(question, StagePrompt, err.Error())), nil
	case errors.Is(err, prompt.ErrNoFunctions):
		return nil, &ConfigurationError{Err: err}
	case err != nil:
		return nil, err
	}
	p.logger.Debug("Built prompt",
		zap.Int("prompt_bytes", len(text)),
		zap.Int("estimated_tokens", p.builder.EstimateTokens(text)))

	out, err := p.decoder.Decode(ctx, text)
	if err != nil {
		var lookupErr *vocab.LookupError
		if errors.As(err, &lookupErr) {
			return nil, &ConfigurationError{Err: err}
		}
		return nil, err
	}
	p.logger.Debug("Generated output",
		zap.String("text", out.Text),
		zap.String("stop_reason", string(out.StopReason)),
		zap.Int("generated_tokens", len(out.TokenIDs)))
	if strings.TrimSpace(out.Text) == "" {
		return p.fail(failure(question, StageGeneration, "model produced no output").withDecode(out)), nil
	}

	parsed := p.parser.Parse(question, out.Text)
	if !parsed.OK() {
		res := failure(question, StageParsing, parsed.Failure.Detail).withDecode(out)
		res.ParseFailure = parsed.Failure.Kind
		return p.fail(res), nil
	}

	if outcome := p.validator.Validate(parsed.Call); !outcome.Valid {
		return p.fail(failure(question, StageValidation, outcome.Error).withDecode(out)), nil
	}

	res := &Result{
		Success: true,
		Prompt:  question,
		FnName:  parsed.Call.FnName,
		Args:    p.coerce(parsed.Call),
	}
	return res.withDecode(out), nil
}

func (p *Pipeline) fail(res *Result) *Result {
	fields := []zap.Field{
		zap.String("stage", string(res.Stage)),
		zap.String("reason", res.Reason),
	}
	if res.ParseFailure != "" {
		fields = append(fields, zap.String("parse_failure", string(res.ParseFailure)))
	}
	p.logger.Info("Function call failed", fields...)
	return res
}

// coerce converts declared arguments to their declared types. Values that
// cannot be converted are kept as parsed; undeclared arguments pass through.
func (p *Pipeline) coerce(call *functions.FunctionCallResult) map[string]functions.Value {
	def, _ := p.registry.Get(call.FnName)
	args := make(map[string]functions.Value, len(call.Args))
	for name, v := range call.Args {
		typ, declared := def.ArgType(name)
		if !declared {
			args[name] = v
			continue
		}
		coerced, ok := functions.Coerce(v, typ)
		if !ok {
			p.logger.Debug("Keeping argument as parsed",
				zap.String("function", call.FnName),
				zap.String("argument", name),
				zap.String("declared", string(typ)),
				zap.Stringer("kind", v.Kind()))
		}
		args[name] = coerced
	}
	return args
}
