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

// Package parsing extracts a function call from free-form model output.
// Parsing never fails with an error: malformed output resolves to a Result
// carrying a Failure that names what went wrong.
package parsing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bytedance/sonic/decoder"
	"go.uber.org/zap"
)

// ReasonKind classifies a parse failure.
type ReasonKind string

const (
	ReasonNoObject      ReasonKind = "no_object"
	ReasonInvalidJSON   ReasonKind = "invalid_json"
	ReasonMissingName   ReasonKind = "missing_name"
	ReasonInvalidArgs   ReasonKind = "invalid_args"
	ReasonInvalidResult ReasonKind = "invalid_result"
)

var (
	nameKeys = []string{"fn_name", "name", "function"}
	argsKeys = []string{"args", "arguments", "parameters"}
)

// Failure explains why no call could be extracted.
type Failure struct {
	Kind   ReasonKind
	Detail string
}

func (f *Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Result is either a parsed call or a failure, never both.
type Result struct {
	Call    *functions.FunctionCallResult
	Failure *Failure
	// Recovered is set when the output ended inside the object and the
	// call was decoded after closing it.
	Recovered bool
}

// OK reports whether a call was extracted.
func (r Result) OK() bool { return r.Call != nil }

func failed(kind ReasonKind, format string, args ...any) Result {
	return Result{Failure: &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}}
}

// Parser extracts function calls. The zero value is not usable; use New.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser. A nil logger disables logging.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse extracts the call the model made in text. prompt is the original
// question carried into the result.
//
// The object starts at the first '{'. When that candidate does not decode,
// the search resumes at the next '{', so stray braces in surrounding prose
// are skipped. A candidate cut off before its closing braces is repaired
// by closing what is still open.
func (p *Parser) Parse(prompt, text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Recovered from panic while parsing model output", zap.Any("panic", r))
			res = failed(ReasonInvalidResult, "model output could not be parsed")
		}
	}()

	var (
		obj       map[string]any
		recovered bool
		first     *Result
	)
	for from := 0; from < len(text); {
		idx := strings.IndexByte(text[from:], '{')
		if idx < 0 {
			break
		}
		candidate, repaired, attempt := objectCandidate(text[from+idx:])
		if attempt.Failure == nil {
			var err error
			if obj, err = decodeObject(candidate); err == nil {
				recovered = repaired
				break
			}
			p.logger.Debug("Invalid JSON in model output",
				zap.String("candidate", candidate),
				zap.Bool("repaired", repaired),
				zap.Error(err))
			attempt = failed(ReasonInvalidJSON, "model output is not valid JSON")
		}
		if first == nil {
			first = &attempt
		}
		from += idx + 1
	}
	if obj == nil {
		if first == nil {
			return failed(ReasonNoObject, "no JSON object found in model output")
		}
		return *first
	}

	name, res, ok := functionName(obj)
	if !ok {
		return res
	}
	args, res, ok := arguments(obj)
	if !ok {
		return res
	}

	call, err := functions.NewFunctionCallResult(prompt, name, args)
	if err != nil {
		return failed(ReasonInvalidResult, "%v", err)
	}
	return Result{Call: call, Recovered: recovered}
}

// objectCandidate returns the object text starting at the '{' that opens
// text, repairing it when the input ends before the object closes.
func objectCandidate(text string) (candidate string, repaired bool, res Result) {
	scanner := NewObjectScanner()
	scanner.Feed(text)
	if start, end, ok := scanner.Span(); ok {
		return text[start:end], false, Result{}
	}
	candidate, ok := scanner.Repair(text)
	if !ok {
		return "", false, failed(ReasonInvalidJSON, "model output is not valid JSON")
	}
	return candidate, true, Result{}
}

// IsObject reports whether s decodes as a single JSON object.
func IsObject(s string) bool {
	_, err := decodeObject(s)
	return err == nil
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	dec := decoder.NewDecoder(s)
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return obj, nil
}

func functionName(obj map[string]any) (string, Result, bool) {
	for _, key := range nameKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		name, isString := raw.(string)
		if !isString || strings.TrimSpace(name) == "" {
			return "", failed(ReasonMissingName, "field %q must be a non-empty string", key), false
		}
		return strings.TrimSpace(name), Result{}, true
	}
	return "", failed(ReasonMissingName, "no function name field (want one of %s)", strings.Join(nameKeys, ", ")), false
}

func arguments(obj map[string]any) (map[string]functions.Value, Result, bool) {
	for _, key := range argsKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case map[string]any:
			return toValues(v), Result{}, true
		case string:
			// some models emit the arguments as a JSON-encoded string
			nested, err := decodeObject(v)
			if err != nil {
				return nil, failed(ReasonInvalidArgs, "field %q holds a string that is not a JSON object", key), false
			}
			return toValues(nested), Result{}, true
		default:
			return nil, failed(ReasonInvalidArgs, "field %q must be an object, got %s", key, jsonKind(raw)), false
		}
	}
	// leave the missing field to FunctionCallResult construction
	return nil, Result{}, true
}

func toValues(m map[string]any) map[string]functions.Value {
	out := make(map[string]functions.Value, len(m))
	for k, v := range m {
		out[k] = functions.ValueOf(v)
	}
	return out
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
