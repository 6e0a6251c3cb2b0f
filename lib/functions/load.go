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
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"
)

// typeSpec accepts a type either as a bare name ("float") or as a schema
// fragment ({"type": "number"}).
type typeSpec string

func (t *typeSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Type string `json:"type"`
		}
		if err := sonic.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = typeSpec(obj.Type)
		return nil
	}
	var s string
	if err := sonic.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = typeSpec(s)
	return nil
}

// definitionFile is one entry of a functions definition file. Both the
// name/parameters/returns layout and the fn_name/args_names/args_types
// layout are accepted.
type definitionFile struct {
	Name        string `json:"name"`
	FnName      string `json:"fn_name"`
	Description string `json:"description"`

	Args       *orderedmap.OrderedMap[string, typeSpec] `json:"args"`
	Parameters *orderedmap.OrderedMap[string, typeSpec] `json:"parameters"`
	ArgsNames  []string                                 `json:"args_names"`
	ArgsTypes  *orderedmap.OrderedMap[string, typeSpec] `json:"args_types"`

	ReturnType typeSpec  `json:"return_type"`
	Returns    *typeSpec `json:"returns"`
}

// LoadFile reads a registry from a JSON array of function definitions.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("opening function definitions: %w", err)
	}
	defer func() { _ = f.Close() }()

	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading function definitions %s: %w", path, err)
	}
	return reg, nil
}

// Load reads a registry from r. Every invalid entry is reported, not just
// the first.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading function definitions: %w", err)
	}

	var entries []definitionFile
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing function definitions: %w", err)
	}

	defs := make([]*FunctionDefinition, 0, len(entries))
	var errs error
	for i := range entries {
		def, err := entries[i].toDefinition()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		defs = append(defs, def)
	}
	if errs != nil {
		return nil, errs
	}
	return NewRegistry(defs...)
}

func (e *definitionFile) toDefinition() (*FunctionDefinition, error) {
	name := e.Name
	if name == "" {
		name = e.FnName
	}

	var (
		args []Arg
		err  error
	)
	switch {
	case e.Args != nil:
		args, err = orderedArgs(name, e.Args)
	case e.Parameters != nil:
		args, err = orderedArgs(name, e.Parameters)
	case e.ArgsTypes != nil:
		args, err = namedArgs(name, e.ArgsNames, e.ArgsTypes)
	case len(e.ArgsNames) > 0:
		err = fmt.Errorf("function %q: args_names given without args_types", name)
	}
	if err != nil {
		return nil, err
	}
	return e.build(name, args)
}

func (e *definitionFile) build(name string, args []Arg) (*FunctionDefinition, error) {
	ret := e.ReturnType
	if e.Returns != nil {
		ret = *e.Returns
	}
	var returnType TypeName
	if ret != "" {
		t, err := ParseTypeName(string(ret))
		if err != nil {
			return nil, fmt.Errorf("function %q return type: %w", name, err)
		}
		returnType = t
	}

	def, err := NewFunctionDefinition(name, returnType, args...)
	if err != nil {
		return nil, err
	}
	def.Description = e.Description
	return def, nil
}

func orderedArgs(fn string, m *orderedmap.OrderedMap[string, typeSpec]) ([]Arg, error) {
	args := make([]Arg, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		t, err := ParseTypeName(string(pair.Value))
		if err != nil {
			return nil, fmt.Errorf("function %q argument %q: %w", fn, pair.Key, err)
		}
		args = append(args, Arg{Name: pair.Key, Type: t})
	}
	return args, nil
}

// namedArgs orders args_types by args_names when given, else by key order.
func namedArgs(fn string, names []string, types *orderedmap.OrderedMap[string, typeSpec]) ([]Arg, error) {
	if len(names) == 0 {
		return orderedArgs(fn, types)
	}
	args := make([]Arg, 0, len(names))
	for _, argName := range names {
		spec, ok := types.Get(argName)
		if !ok {
			return nil, fmt.Errorf("function %q: argument %q has no declared type", fn, argName)
		}
		t, err := ParseTypeName(string(spec))
		if err != nil {
			return nil, fmt.Errorf("function %q argument %q: %w", fn, argName, err)
		}
		args = append(args, Arg{Name: argName, Type: t})
	}
	return args, nil
}
