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

// Package decoding implements greedy autoregressive decoding as an explicit
// state machine. A State is created by Start and advanced one token at a
// time by Step until one of the stop conditions holds:
//
//  1. the selected token is the end-of-sequence token (StopEOS)
//  2. the step count reaches Config.MaxNewTokens (StopMaxLength)
//  3. with Config.StopOnObject, the generated text holds a complete
//     top-level JSON object (StopObjectComplete)
//
// Conditions are checked after every step in that order.
package decoding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bchene/Call-me-maybe/lib/parsing"
	"github.com/bchene/Call-me-maybe/lib/vocab"
	"go.uber.org/zap"
)

// ErrScoreLength is returned when the model's score vector does not have
// one entry per vocabulary token.
var ErrScoreLength = errors.New("score vector length does not match vocabulary size")

// DefaultMaxNewTokens bounds generation when no limit is configured.
const DefaultMaxNewTokens = 128

// Scorer produces next-token scores, one per vocabulary id, for ids.
type Scorer interface {
	ScoresFor(ctx context.Context, ids []int) ([]float32, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, ids []int) ([]float32, error)

// ScoresFor calls f.
func (f ScorerFunc) ScoresFor(ctx context.Context, ids []int) ([]float32, error) {
	return f(ctx, ids)
}

// StopReason records why decoding terminated.
type StopReason string

const (
	StopNone           StopReason = ""
	StopEOS            StopReason = "eos"
	StopMaxLength      StopReason = "max_length"
	StopObjectComplete StopReason = "object_complete"
)

// Config controls decoding.
type Config struct {
	// MaxNewTokens bounds the number of generated tokens. Zero terminates
	// decoding before the model is called.
	MaxNewTokens int
	// StopOnObject ends decoding once a complete JSON object was generated.
	StopOnObject bool
}

// DefaultConfig returns the default decoding configuration.
func DefaultConfig() Config {
	return Config{MaxNewTokens: DefaultMaxNewTokens}
}

// State is the decode state of one generation. TokenIDs holds the prompt
// ids followed by the generated ids and only ever grows.
type State struct {
	TokenIDs   []int
	PromptLen  int
	Steps      int
	StopReason StopReason

	object *parsing.ObjectScanner
	// fed is the generated text given to object; objectBase is where the
	// current scanner started in it.
	fed        []byte
	objectBase int
}

// Done reports whether a stop condition has been reached.
func (s *State) Done() bool { return s.StopReason != StopNone }

// GeneratedIDs returns the ids generated so far.
func (s *State) GeneratedIDs() []int { return s.TokenIDs[s.PromptLen:] }

// Output is the result of a complete decode.
type Output struct {
	// Text is the detokenized generated text, without the EOS token.
	Text       string
	TokenIDs   []int
	Steps      int
	StopReason StopReason
}

// Decoder runs greedy decoding against a Scorer. It holds no per-decode
// state and is safe for concurrent use when its Scorer is.
type Decoder struct {
	vocab  *vocab.Vocabulary
	scorer Scorer
	config Config
	logger *zap.Logger
}

// New creates a Decoder. Negative MaxNewTokens is treated as zero.
func New(v *vocab.Vocabulary, scorer Scorer, config Config, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxNewTokens < 0 {
		config.MaxNewTokens = 0
	}
	return &Decoder{
		vocab:  v,
		scorer: scorer,
		config: config,
		logger: logger,
	}
}

// Config returns the decoder configuration.
func (d *Decoder) Config() Config { return d.config }

// Start encodes prompt into the initial state. It fails, before any model
// call, when the prompt holds text the vocabulary cannot encode.
func (d *Decoder) Start(prompt string) (*State, error) {
	ids, err := d.vocab.EncodeText(prompt)
	if err != nil {
		return nil, fmt.Errorf("encoding prompt: %w", err)
	}
	s := &State{
		TokenIDs:  make([]int, len(ids), len(ids)+d.config.MaxNewTokens),
		PromptLen: len(ids),
	}
	copy(s.TokenIDs, ids)
	if d.config.StopOnObject {
		s.object = parsing.NewObjectScanner()
	}
	if d.config.MaxNewTokens == 0 {
		s.StopReason = StopMaxLength
	}
	return s, nil
}

// Step generates one token. It is a no-op on a finished state. Errors from
// the Scorer are returned unmodified and leave the state unchanged.
func (d *Decoder) Step(ctx context.Context, s *State) error {
	if s.Done() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	scores, err := d.scorer.ScoresFor(ctx, s.TokenIDs)
	if err != nil {
		return err
	}
	if len(scores) != d.vocab.Size() {
		return fmt.Errorf("%w: got %d scores for %d tokens", ErrScoreLength, len(scores), d.vocab.Size())
	}

	next := Argmax(scores)
	s.TokenIDs = append(s.TokenIDs, next)
	s.Steps++

	d.logger.Debug("Decode step",
		zap.Int("step", s.Steps),
		zap.Int("token_id", next),
		zap.Float32("score", scores[next]))

	if eos, ok := d.vocab.EOSTokenID(); ok && next == eos {
		s.StopReason = StopEOS
		return nil
	}
	if s.Steps >= d.config.MaxNewTokens {
		s.StopReason = StopMaxLength
		return nil
	}
	if s.object != nil {
		token, err := d.vocab.DecodeIDs([]int{next})
		if err != nil {
			return err
		}
		if objectComplete(s, token) {
			s.StopReason = StopObjectComplete
		}
	}
	return nil
}

// objectComplete feeds token to the object scanner and reports whether the
// generated text holds a complete object that decodes as JSON. A balanced
// candidate that does not decode, such as braces in prose, is skipped and
// scanning resumes after its opening brace.
func objectComplete(s *State, token string) bool {
	s.fed = append(s.fed, token...)
	complete := s.object.Feed(token)
	for complete {
		start, end, _ := s.object.Span()
		if parsing.IsObject(string(s.fed[s.objectBase+start : s.objectBase+end])) {
			return true
		}
		s.objectBase += start + 1
		s.object = parsing.NewObjectScanner()
		complete = s.object.Feed(string(s.fed[s.objectBase:]))
	}
	return false
}

// Text renders the generated ids of s, leaving out a trailing EOS token.
func (d *Decoder) Text(s *State) (string, error) {
	ids := s.GeneratedIDs()
	if s.StopReason == StopEOS && len(ids) > 0 {
		ids = ids[:len(ids)-1]
	}
	return d.vocab.DecodeIDs(ids)
}

// Decode runs a full generation for prompt. Context cancellation is checked
// between steps.
func (d *Decoder) Decode(ctx context.Context, prompt string) (*Output, error) {
	s, err := d.Start(prompt)
	if err != nil {
		return nil, err
	}
	for !s.Done() {
		if err := d.Step(ctx, s); err != nil {
			return nil, err
		}
	}

	text, err := d.Text(s)
	if err != nil {
		return nil, fmt.Errorf("decoding generated tokens: %w", err)
	}
	generated := append([]int(nil), s.GeneratedIDs()...)
	d.logger.Debug("Decode finished",
		zap.Int("prompt_tokens", s.PromptLen),
		zap.Int("generated_tokens", len(generated)),
		zap.String("stop_reason", string(s.StopReason)))

	return &Output{
		Text:       text,
		TokenIDs:   generated,
		Steps:      s.Steps,
		StopReason: s.StopReason,
	}, nil
}

// Argmax returns the index of the highest score. Ties resolve to the lowest
// index and NaN scores never win unless every score is NaN, in which case
// 0 is returned. Argmax panics on an empty slice.
func Argmax(scores []float32) int {
	best := -1
	for i, s := range scores {
		if math.IsNaN(float64(s)) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		if len(scores) == 0 {
			panic("decoding: Argmax of empty scores")
		}
		return 0
	}
	return best
}
