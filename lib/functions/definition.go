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

// Package functions holds the function signatures a model may call, the
// tagged argument values it produces and the call result shared by the
// parsing, validation and pipeline stages.
package functions

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TypeName is one of the primitive argument types a function may declare.
type TypeName string

const (
	TypeFloat  TypeName = "float"
	TypeInt    TypeName = "int"
	TypeString TypeName = "string"
	TypeBool   TypeName = "bool"
)

// ParseTypeName normalizes a declared type name, accepting the common JSON
// schema spellings as aliases.
func ParseTypeName(s string) (TypeName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "number", "double":
		return TypeFloat, nil
	case "int", "integer":
		return TypeInt, nil
	case "string", "str":
		return TypeString, nil
	case "bool", "boolean":
		return TypeBool, nil
	default:
		return "", fmt.Errorf("unsupported type %q (want float, int, string or bool)", s)
	}
}

// Arg is a declared argument, used to build definitions in order.
type Arg struct {
	Name string
	Type TypeName
}

// FunctionDefinition describes a function the model is allowed to call.
// Definitions are read-only once registered.
type FunctionDefinition struct {
	Name        string
	Description string
	// Args maps argument names to declared types in declaration order.
	Args       *orderedmap.OrderedMap[string, TypeName]
	ReturnType TypeName
}

// NewFunctionDefinition builds and validates a definition.
func NewFunctionDefinition(name string, returnType TypeName, args ...Arg) (*FunctionDefinition, error) {
	def := &FunctionDefinition{
		Name:       name,
		Args:       orderedmap.New[string, TypeName](len(args)),
		ReturnType: returnType,
	}
	for _, a := range args {
		if _, present := def.Args.Set(a.Name, a.Type); present {
			return nil, fmt.Errorf("function %q declares argument %q twice", name, a.Name)
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// MustFunctionDefinition is like NewFunctionDefinition but panics on error.
// Intended for static tables and tests.
func MustFunctionDefinition(name string, returnType TypeName, args ...Arg) *FunctionDefinition {
	def, err := NewFunctionDefinition(name, returnType, args...)
	if err != nil {
		panic(err)
	}
	return def
}

// Validate checks the definition invariants.
func (d *FunctionDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("function name is empty")
	}
	for pair := d.args().Oldest(); pair != nil; pair = pair.Next() {
		if strings.TrimSpace(pair.Key) == "" {
			return fmt.Errorf("function %q has an argument with an empty name", d.Name)
		}
		if _, err := ParseTypeName(string(pair.Value)); err != nil {
			return fmt.Errorf("function %q argument %q: %w", d.Name, pair.Key, err)
		}
	}
	if d.ReturnType != "" {
		if _, err := ParseTypeName(string(d.ReturnType)); err != nil {
			return fmt.Errorf("function %q return type: %w", d.Name, err)
		}
	}
	return nil
}

// ArgNames returns the declared argument names in declaration order.
func (d *FunctionDefinition) ArgNames() []string {
	args := d.args()
	names := make([]string, 0, args.Len())
	for pair := args.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ArgType returns the declared type of an argument.
func (d *FunctionDefinition) ArgType(name string) (TypeName, bool) {
	return d.args().Get(name)
}

// Signature renders the definition as name(a: float, b: float) -> float.
func (d *FunctionDefinition) Signature() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	sb.WriteString("(")
	i := 0
	for pair := d.args().Oldest(); pair != nil; pair = pair.Next() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pair.Key)
		sb.WriteString(": ")
		sb.WriteString(string(pair.Value))
		i++
	}
	sb.WriteString(")")
	if d.ReturnType != "" {
		sb.WriteString(" -> ")
		sb.WriteString(string(d.ReturnType))
	}
	return sb.String()
}

func (d *FunctionDefinition) args() *orderedmap.OrderedMap[string, TypeName] {
	if d.Args == nil {
		return orderedmap.New[string, TypeName]()
	}
	return d.Args
}
