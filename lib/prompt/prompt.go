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

// Package prompt renders the instruction prompt that teaches a model the
// JSON function-call contract.
//
// Format:
//
//	<preamble>
//	Available functions:
//	- name(arg: type, ...) -> type: description
//	Example:
//	Question: <example question>
//	Answer: {"fn_name": "...", "args": {...}}
//	Question: <question>
//	Answer:
package prompt

import (
	"errors"
	"strings"

	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/tokenizer"
	"go.uber.org/zap"
)

var (
	// ErrNoFunctions is returned when the registry holds no functions.
	ErrNoFunctions = errors.New("no functions registered")
	// ErrEmptyQuestion is returned for an empty or blank question.
	ErrEmptyQuestion = errors.New("question is empty")
)

const preamble = `You are an assistant that converts a user question into a function call.
Respond with a single JSON object containing the function name and its arguments, in exactly this form:
{"fn_name": "<function name>", "args": {"<argument name>": <value>}}
Use only the functions listed below and give every argument they declare.
Output the JSON object and nothing else.
`

// Builder renders prompts for one registry. It is immutable and safe for
// concurrent use.
type Builder struct {
	registry *functions.Registry
	examples []Example
	counter  tokenizer.Counter
	budget   int
	logger   *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithExamples replaces the synthesized worked example.
func WithExamples(examples ...Example) Option {
	return func(b *Builder) {
		b.examples = append([]Example(nil), examples...)
	}
}

// WithTokenCounter sets the counter used by EstimateTokens.
func WithTokenCounter(c tokenizer.Counter) Option {
	return func(b *Builder) {
		b.counter = c
	}
}

// WithTokenBudget logs a warning when a built prompt is estimated to exceed
// n tokens. The prompt is never truncated.
func WithTokenBudget(n int) Option {
	return func(b *Builder) {
		b.budget = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// New creates a Builder over registry.
func New(registry *functions.Registry, opts ...Option) *Builder {
	b := &Builder{registry: registry}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.counter == nil {
		b.counter = tokenizer.CharEstimate{}
	}
	if len(b.examples) == 0 && registry.Len() > 0 {
		b.examples = []Example{SynthesizeExample(registry.Definitions()[0])}
	}
	return b
}

// Build renders the prompt for question. The question appears verbatim;
// nothing is truncated.
func (b *Builder) Build(question string) (string, error) {
	if b.registry.Len() == 0 {
		return "", ErrNoFunctions
	}
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\nAvailable functions:\n")
	for _, def := range b.registry.Definitions() {
		sb.WriteString("- ")
		sb.WriteString(def.Signature())
		if def.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(def.Description)
		}
		sb.WriteString("\n")
	}

	if len(b.examples) == 1 {
		sb.WriteString("\nExample:\n")
	} else {
		sb.WriteString("\nExamples:\n")
	}
	for _, ex := range b.examples {
		sb.WriteString("Question: ")
		sb.WriteString(ex.Question)
		sb.WriteString("\nAnswer: ")
		sb.WriteString(ex.Answer())
		sb.WriteString("\n\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")

	prompt := sb.String()
	if b.budget > 0 {
		if n := b.EstimateTokens(prompt); n > b.budget {
			b.logger.Warn("Prompt exceeds token budget",
				zap.Int("estimated_tokens", n),
				zap.Int("budget", b.budget))
		}
	}
	return prompt, nil
}

// EstimateTokens returns an approximate token count for prompt.
func (b *Builder) EstimateTokens(prompt string) int {
	return b.counter.CountTokens(prompt)
}
