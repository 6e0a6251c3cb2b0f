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

package functions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNumbers(t *testing.T) *FunctionDefinition {
	t.Helper()
	def, err := NewFunctionDefinition("fn_add_numbers", TypeFloat,
		Arg{Name: "a", Type: TypeFloat},
		Arg{Name: "b", Type: TypeFloat},
	)
	require.NoError(t, err)
	return def
}

func TestFunctionDefinition(t *testing.T) {
	def := addNumbers(t)
	assert.Equal(t, []string{"a", "b"}, def.ArgNames())
	assert.Equal(t, "fn_add_numbers(a: float, b: float) -> float", def.Signature())

	typ, ok := def.ArgType("b")
	require.True(t, ok)
	assert.Equal(t, TypeFloat, typ)
	_, ok = def.ArgType("c")
	assert.False(t, ok)

	t.Run("invalid", func(t *testing.T) {
		_, err := NewFunctionDefinition("", TypeFloat)
		require.Error(t, err)

		_, err = NewFunctionDefinition("f", TypeFloat, Arg{Name: "a", Type: "complex"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "complex")

		_, err = NewFunctionDefinition("f", TypeFloat, Arg{Name: "a", Type: TypeInt}, Arg{Name: "a", Type: TypeInt})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "twice")
	})

	t.Run("no args", func(t *testing.T) {
		def := &FunctionDefinition{Name: "fn_ping"}
		require.NoError(t, def.Validate())
		assert.Empty(t, def.ArgNames())
		assert.Equal(t, "fn_ping()", def.Signature())
	})
}

func TestParseTypeName(t *testing.T) {
	tests := map[string]TypeName{
		"float":   TypeFloat,
		"number":  TypeFloat,
		"Integer": TypeInt,
		"str":     TypeString,
		"boolean": TypeBool,
	}
	for in, want := range tests {
		got, err := ParseTypeName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTypeName("list")
	require.Error(t, err)
}

func TestNewFunctionCallResult(t *testing.T) {
	result, err := NewFunctionCallResult("Test", "fn_add_numbers", map[string]Value{"a": Float(2), "b": Float(3)})
	require.NoError(t, err)
	assert.Equal(t, "fn_add_numbers", result.FnName)
	a, ok := result.Args["a"].AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 2.0, a, 1e-9)
	assert.Equal(t, []string{"a", "b"}, result.ArgNames())

	_, err = NewFunctionCallResult("", "test", map[string]Value{})
	require.Error(t, err)
	assert.True(t, IsMissingField(err))
	assert.Contains(t, err.Error(), "prompt")

	_, err = NewFunctionCallResult("Test", "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "args")

	empty, err := NewFunctionCallResult("Test", "fn_ping", map[string]Value{})
	require.NoError(t, err)
	assert.Empty(t, empty.Args)
}

func TestRegistry(t *testing.T) {
	greet := MustFunctionDefinition("fn_greet", TypeString, Arg{Name: "name", Type: TypeString})
	reg, err := NewRegistry(addNumbers(t), greet)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"fn_add_numbers", "fn_greet"}, reg.Names())
	def, ok := reg.Get("fn_greet")
	require.True(t, ok)
	assert.Same(t, greet, def)
	_, ok = reg.Get("fn_missing")
	assert.False(t, ok)

	t.Run("aggregates errors", func(t *testing.T) {
		_, err := NewRegistry(greet, greet, &FunctionDefinition{}, nil)
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "more than once")
		assert.Contains(t, msg, "name is empty")
		assert.Contains(t, msg, "nil")
	})
}

func TestValue(t *testing.T) {
	t.Run("json literals keep their kind", func(t *testing.T) {
		var args map[string]Value
		require.NoError(t, sonic.Unmarshal([]byte(`{"i": 2, "f": 2.5, "s": "x", "b": true, "n": null, "l": [1]}`), &args))
		assert.Equal(t, KindInt, args["i"].Kind())
		assert.Equal(t, KindFloat, args["f"].Kind())
		assert.Equal(t, KindString, args["s"].Kind())
		assert.Equal(t, KindBool, args["b"].Kind())
		assert.Equal(t, KindUnknown, args["n"].Kind())
		assert.Equal(t, KindUnknown, args["l"].Kind())
	})

	t.Run("marshal", func(t *testing.T) {
		out, err := sonic.Marshal(map[string]Value{"f": Float(2), "i": Int(2), "s": String("hi")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"f": 2.0, "i": 2, "s": "hi"}`, string(out))
		assert.Contains(t, string(out), "2.0")
	})
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		to   TypeName
		want Value
		ok   bool
	}{
		{name: "int to float", in: Int(2), to: TypeFloat, want: Float(2), ok: true},
		{name: "string to float", in: String(" 3.5 "), to: TypeFloat, want: Float(3.5), ok: true},
		{name: "integral float to int", in: Float(4), to: TypeInt, want: Int(4), ok: true},
		{name: "fractional float to int", in: Float(4.5), to: TypeInt, want: Float(4.5), ok: false},
		{name: "number to string", in: Int(7), to: TypeString, want: String("7"), ok: true},
		{name: "string to bool", in: String("true"), to: TypeBool, want: Bool(true), ok: true},
		{name: "garbage to bool", in: String("maybe"), to: TypeBool, want: String("maybe"), ok: false},
		{name: "unknown stays", in: Unknown(nil), to: TypeFloat, want: Unknown(nil), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Coerce(tt.in, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("parameters layout", func(t *testing.T) {
		data := `[
			{
				"name": "fn_add_numbers",
				"description": "Add two numbers together and return their sum.",
				"parameters": {"a": {"type": "number"}, "b": {"type": "number"}},
				"returns": {"type": "number"}
			},
			{
				"name": "fn_greet",
				"parameters": {"name": {"type": "string"}},
				"returns": {"type": "string"}
			}
		]`
		reg, err := Load(strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, []string{"fn_add_numbers", "fn_greet"}, reg.Names())

		def, _ := reg.Get("fn_add_numbers")
		assert.Equal(t, []string{"a", "b"}, def.ArgNames())
		assert.Equal(t, TypeFloat, def.ReturnType)
		assert.Equal(t, "Add two numbers together and return their sum.", def.Description)
	})

	t.Run("args_names layout keeps declared order", func(t *testing.T) {
		data := `[{"fn_name": "fn_div", "args_names": ["y", "x"], "args_types": {"x": "int", "y": "int"}, "return_type": "float"}]`
		reg, err := Load(strings.NewReader(data))
		require.NoError(t, err)
		def, ok := reg.Get("fn_div")
		require.True(t, ok)
		assert.Equal(t, []string{"y", "x"}, def.ArgNames())
	})

	t.Run("args object order", func(t *testing.T) {
		data := `[{"name": "f", "args": {"z": "bool", "a": "str"}, "return_type": "bool"}]`
		reg, err := Load(strings.NewReader(data))
		require.NoError(t, err)
		def, _ := reg.Get("f")
		assert.Equal(t, []string{"z", "a"}, def.ArgNames())
		typ, _ := def.ArgType("a")
		assert.Equal(t, TypeString, typ)
	})

	t.Run("reports every invalid entry", func(t *testing.T) {
		data := `[
			{"name": "f", "args": {"a": "tensor"}},
			{"name": "", "args": {}},
			{"name": "g", "args_names": ["a"]}
		]`
		_, err := Load(strings.NewReader(data))
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "entry 0")
		assert.Contains(t, msg, "entry 1")
		assert.Contains(t, msg, "entry 2")
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"name": "f"}`))
		require.Error(t, err)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "functions_definition.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"name": "fn_ping"}]`), 0o600))
		reg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, reg.Len())
	})
}
