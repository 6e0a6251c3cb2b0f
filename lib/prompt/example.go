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

package prompt

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bytedance/sonic"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"
)

// Example pairs a sample question with the call it should produce.
type Example struct {
	Question string                                          `json:"question"`
	FnName   string                                          `json:"fn_name"`
	Args     *orderedmap.OrderedMap[string, functions.Value] `json:"args"`
}

// NewExample builds an example; args are given as alternating name, value
// pairs in the order they should be rendered.
func NewExample(question, fnName string, args ...any) Example {
	m := orderedmap.New[string, functions.Value](len(args) / 2)
	for i := 0; i+1 < len(args); i += 2 {
		name, _ := args[i].(string)
		m.Set(name, functions.ValueOf(args[i+1]))
	}
	return Example{Question: question, FnName: fnName, Args: m}
}

// Answer renders the expected JSON answer with arguments in example order.
func (e Example) Answer() string {
	var sb strings.Builder
	sb.WriteString(`{"fn_name": `)
	sb.WriteString(quote(e.FnName))
	sb.WriteString(`, "args": {`)
	if e.Args != nil {
		i := 0
		for pair := e.Args.Oldest(); pair != nil; pair = pair.Next() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quote(pair.Key))
			sb.WriteString(": ")
			if data, err := pair.Value.MarshalJSON(); err == nil {
				sb.Write(data)
			} else {
				sb.WriteString("null")
			}
			i++
		}
	}
	sb.WriteString("}}")
	return sb.String()
}

// LoadExamplesFile reads worked examples from a JSON array of
// {"question", "fn_name", "args"} objects.
func LoadExamplesFile(path string) ([]Example, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("opening examples: %w", err)
	}
	defer func() { _ = f.Close() }()

	examples, err := LoadExamples(f)
	if err != nil {
		return nil, fmt.Errorf("loading examples %s: %w", path, err)
	}
	return examples, nil
}

// LoadExamples reads worked examples from r. Argument order in the file is
// the order they are rendered in.
func LoadExamples(r io.Reader) ([]Example, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading examples: %w", err)
	}

	var examples []Example
	if err := sonic.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("parsing examples: %w", err)
	}

	var errs error
	for i := range examples {
		e := &examples[i]
		if strings.TrimSpace(e.Question) == "" {
			errs = multierr.Append(errs, fmt.Errorf("example %d: question is empty", i))
		}
		if strings.TrimSpace(e.FnName) == "" {
			errs = multierr.Append(errs, fmt.Errorf("example %d: fn_name is empty", i))
		}
		if e.Args == nil {
			e.Args = orderedmap.New[string, functions.Value]()
		}
	}
	if errs != nil {
		return nil, errs
	}
	return examples, nil
}

// SynthesizeExample builds an example call of def with placeholder values.
func SynthesizeExample(def *functions.FunctionDefinition) Example {
	args := orderedmap.New[string, functions.Value]()
	parts := make([]string, 0, len(def.ArgNames()))
	for i, name := range def.ArgNames() {
		typ, _ := def.ArgType(name)
		v := sampleValue(typ, i)
		args.Set(name, v)
		parts = append(parts, fmt.Sprintf("%s = %s", name, v))
	}

	question := fmt.Sprintf("Call %s", def.Name)
	if len(parts) > 0 {
		question += " with " + strings.Join(parts, ", ")
	}
	return Example{Question: question, FnName: def.Name, Args: args}
}

func sampleValue(t functions.TypeName, i int) functions.Value {
	switch t {
	case functions.TypeInt:
		return functions.Int(int64(i + 2))
	case functions.TypeString:
		return functions.String(fmt.Sprintf("example %d", i+1))
	case functions.TypeBool:
		return functions.Bool(i%2 == 0)
	default:
		return functions.Float(float64(i + 2))
	}
}

func quote(s string) string {
	out, err := sonic.MarshalString(s)
	if err != nil {
		return `""`
	}
	return out
}
