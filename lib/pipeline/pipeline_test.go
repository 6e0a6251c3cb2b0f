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

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/parsing"
	"github.com/bchene/Call-me-maybe/lib/prompt"
	"github.com/bchene/Call-me-maybe/lib/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// charVocab holds <unk>, </s>, newline and printable ASCII, one char per
// token.
func charVocab(t *testing.T, opts ...vocab.Option) *vocab.Vocabulary {
	t.Helper()
	table := map[string]int{"<unk>": 0, "</s>": 1, "\n": 2}
	for c := ' '; c <= '~'; c++ {
		table[string(c)] = len(table)
	}
	v, err := vocab.New(table, opts...)
	require.NoError(t, err)
	return v
}

// scriptModel replays a fixed answer, then emits </s>.
type scriptModel struct {
	size   int
	script []int
	base   int
	calls  int
}

func newScriptModel(t *testing.T, v *vocab.Vocabulary, answer string) *scriptModel {
	t.Helper()
	ids, err := v.EncodeText(answer)
	require.NoError(t, err)
	return &scriptModel{size: v.Size(), script: ids}
}

func (m *scriptModel) ScoresFor(_ context.Context, ids []int) ([]float32, error) {
	if m.calls == 0 {
		m.base = len(ids)
	}
	m.calls++
	scores := make([]float32, m.size)
	next := 1
	if i := len(ids) - m.base; i < len(m.script) {
		next = m.script[i]
	}
	scores[next] = 10
	return scores, nil
}

func registry(t *testing.T) *functions.Registry {
	t.Helper()
	reg, err := functions.NewRegistry(
		functions.MustFunctionDefinition("fn_add_numbers", functions.TypeFloat,
			functions.Arg{Name: "a", Type: functions.TypeFloat},
			functions.Arg{Name: "b", Type: functions.TypeFloat},
		),
		functions.MustFunctionDefinition("fn_greet", functions.TypeString,
			functions.Arg{Name: "name", Type: functions.TypeString},
		),
	)
	require.NoError(t, err)
	return reg
}

func newPipeline(t *testing.T, model decoding.Scorer, v *vocab.Vocabulary) *Pipeline {
	t.Helper()
	p, err := New(registry(t), v, model, DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func TestRun_Success(t *testing.T) {
	v := charVocab(t)
	model := newScriptModel(t, v, ` {"fn_name": "fn_add_numbers", "args": {"a": 2, "b": 3.5}}`)
	p := newPipeline(t, model, v)

	res, err := p.Run(context.Background(), "What is the sum of 2 and 3.5?")
	require.NoError(t, err)
	require.True(t, res.Success, "%s: %s", res.Stage, res.Reason)

	assert.Equal(t, "fn_add_numbers", res.FnName)
	assert.Equal(t, "What is the sum of 2 and 3.5?", res.Prompt)
	assert.Equal(t, decoding.StopEOS, res.StopReason)
	assert.Empty(t, res.Stage)
	assert.Empty(t, res.Reason)

	// the int literal is coerced to the declared float type
	a, ok := res.Args["a"].AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 2.0, a, 1e-9)
	b, ok := res.Args["b"].AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 3.5, b, 1e-9)

	call := res.Call()
	require.NotNil(t, call)
	assert.Equal(t, "fn_add_numbers", call.FnName)
}

func TestRun_StopsOnObject(t *testing.T) {
	v := charVocab(t)
	model := newScriptModel(t, v, `{"fn_name": "fn_greet", "args": {"name": "shrek"}} and more text`)
	cfg := DefaultConfig()
	cfg.Decoding.StopOnObject = true
	p, err := New(registry(t), v, model, cfg, nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "Greet shrek")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, decoding.StopObjectComplete, res.StopReason)
	assert.Equal(t, `{"fn_name": "fn_greet", "args": {"name": "shrek"}}`, res.RawText)
}

func TestRun_Deterministic(t *testing.T) {
	v := charVocab(t)
	successor := decoding.ScorerFunc(func(_ context.Context, ids []int) ([]float32, error) {
		scores := make([]float32, v.Size())
		scores[(ids[len(ids)-1]+1)%v.Size()] = 10
		return scores, nil
	})
	cfg := DefaultConfig()
	cfg.Decoding.MaxNewTokens = 40
	p, err := New(registry(t), v, successor, cfg, nil)
	require.NoError(t, err)

	first, err := p.Run(context.Background(), "What is 2 + 3?")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), "What is 2 + 3?")
	require.NoError(t, err)

	assert.NotEmpty(t, first.RawText)
	assert.Equal(t, first.RawText, second.RawText)
	assert.Equal(t, first, second)
}

func TestRun_Failures(t *testing.T) {
	v := charVocab(t)

	tests := []struct {
		name         string
		answer       string
		question     string
		wantStage    Stage
		wantReason   string
		wantParseErr parsing.ReasonKind
	}{
		{
			name:      "empty question",
			answer:    `{"fn_name": "fn_greet", "args": {"name": "x"}}`,
			question:  "   ",
			wantStage: StagePrompt,
		},
		{
			name:       "no output",
			answer:     "",
			question:   "Greet john",
			wantStage:  StageGeneration,
			wantReason: "no output",
		},
		{
			name:         "prose",
			answer:       "I am not sure what you mean.",
			question:     "Greet john",
			wantStage:    StageParsing,
			wantParseErr: parsing.ReasonNoObject,
		},
		{
			name:         "malformed",
			answer:       `{"fn_name": "fn_greet", "args": {"name": jo`,
			question:     "Greet john",
			wantStage:    StageParsing,
			wantParseErr: parsing.ReasonInvalidJSON,
		},
		{
			name:       "unknown function",
			answer:     `{"fn_name": "fn_reverse", "args": {"s": "abc"}}`,
			question:   "Reverse abc",
			wantStage:  StageValidation,
			wantReason: "fn_reverse",
		},
		{
			name:       "missing argument",
			answer:     `{"fn_name": "fn_add_numbers", "args": {"a": 2.0}}`,
			question:   "What is 2 + 3?",
			wantStage:  StageValidation,
			wantReason: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newScriptModel(t, v, tt.answer)
			p := newPipeline(t, model, v)

			res, err := p.Run(context.Background(), tt.question)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Nil(t, res.Call())
			assert.Equal(t, tt.wantStage, res.Stage)
			assert.NotEmpty(t, res.Reason)
			assert.Contains(t, res.Reason, tt.wantReason)
			assert.NotContains(t, res.Reason, "\n")
			assert.NotContains(t, res.Reason, "Syntax error")
			assert.Equal(t, tt.wantParseErr, res.ParseFailure)
			assert.Empty(t, res.FnName)

			if tt.wantStage == StagePrompt {
				assert.Zero(t, model.calls)
			}
		})
	}
}

func TestRun_RecoversTruncatedOutput(t *testing.T) {
	v := charVocab(t)
	answer := `{"fn_name": "fn_greet", "args": {"name": "shrek"}}`
	model := newScriptModel(t, v, answer)
	cfg := DefaultConfig()
	cfg.Decoding.MaxNewTokens = len(answer) - 1
	p, err := New(registry(t), v, model, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "Greet shrek")
	require.NoError(t, err)
	require.True(t, res.Success, "%s: %s", res.Stage, res.Reason)
	assert.Equal(t, decoding.StopMaxLength, res.StopReason)
	assert.Equal(t, answer[:len(answer)-1], res.RawText)
	name, ok := res.Args["name"].AsString()
	require.True(t, ok)
	assert.Equal(t, "shrek", name)
}

func TestRun_MaxLengthZero(t *testing.T) {
	v := charVocab(t)
	model := newScriptModel(t, v, `{"fn_name": "fn_greet", "args": {"name": "x"}}`)
	cfg := DefaultConfig()
	cfg.Decoding.MaxNewTokens = 0
	p, err := New(registry(t), v, model, cfg, nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), "Greet x")
	require.NoError(t, err)
	assert.Equal(t, StageGeneration, res.Stage)
	assert.Equal(t, decoding.StopMaxLength, res.StopReason)
	assert.Zero(t, model.calls)
}

func TestRun_ModelErrorIsReturnedUnmodified(t *testing.T) {
	v := charVocab(t)
	modelErr := errors.New("connection refused")
	p := newPipeline(t, decoding.ScorerFunc(func(context.Context, []int) ([]float32, error) {
		return nil, modelErr
	}), v)

	res, err := p.Run(context.Background(), "Greet john")
	assert.Nil(t, res)
	assert.Same(t, modelErr, err)
	assert.False(t, IsConfigurationError(err))
}

func TestConfigurationErrors(t *testing.T) {
	v := charVocab(t)
	model := newScriptModel(t, v, "")

	t.Run("empty registry", func(t *testing.T) {
		empty, err := functions.NewRegistry()
		require.NoError(t, err)
		_, err = New(empty, v, model, DefaultConfig(), nil)
		require.True(t, IsConfigurationError(err))
		require.ErrorIs(t, err, prompt.ErrNoFunctions)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := New(registry(t), nil, model, DefaultConfig(), nil)
		assert.True(t, IsConfigurationError(err))
		_, err = New(registry(t), v, nil, DefaultConfig(), nil)
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("example calls an unknown function", func(t *testing.T) {
		config := DefaultConfig()
		config.Examples = []prompt.Example{
			prompt.NewExample("Greet shrek", "fn_greet", "name", "shrek"),
			prompt.NewExample("Say hi", "fn_say_hi"),
		}
		_, err := New(registry(t), v, model, config, nil)
		require.True(t, IsConfigurationError(err))
		assert.Contains(t, err.Error(), `example 1 calls unknown function "fn_say_hi"`)
	})

	t.Run("prompt not encodable", func(t *testing.T) {
		strict := charVocab(t, vocab.WithUnkToken(""))
		model := newScriptModel(t, strict, "")
		p := newPipeline(t, model, strict)

		res, err := p.Run(context.Background(), "Quelle est la somme de 2 et 3 ?  é")
		assert.Nil(t, res)
		require.True(t, IsConfigurationError(err))
		var lookupErr *vocab.LookupError
		require.ErrorAs(t, err, &lookupErr)
		assert.Equal(t, "é", lookupErr.Token)
		assert.Zero(t, model.calls)
	})
}

func TestLogErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)

	want := errors.New("Test error")
	err := LogErrors(logger, "failing_function", func() error { return want })
	assert.Same(t, want, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "failing_function", fields["operation"])
	assert.Equal(t, "Test error", fields["error"])

	require.NoError(t, LogErrors(logger, "ok", func() error { return nil }))
	assert.Len(t, logs.All(), 1)
}
