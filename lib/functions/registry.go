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
	"fmt"

	"go.uber.org/multierr"
)

// Registry is the read-only set of functions a model may call, keyed by name
// and kept in load order. It is safe for concurrent use because it is never
// mutated after NewRegistry returns.
type Registry struct {
	defs  map[string]*FunctionDefinition
	order []string
}

// NewRegistry validates every definition and rejects duplicate names. All
// problems are reported together.
func NewRegistry(defs ...*FunctionDefinition) (*Registry, error) {
	r := &Registry{
		defs:  make(map[string]*FunctionDefinition, len(defs)),
		order: make([]string, 0, len(defs)),
	}

	var errs error
	for i, def := range defs {
		if def == nil {
			errs = multierr.Append(errs, fmt.Errorf("definition %d is nil", i))
			continue
		}
		if err := def.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("definition %d: %w", i, err))
			continue
		}
		if _, ok := r.defs[def.Name]; ok {
			errs = multierr.Append(errs, fmt.Errorf("function %q is defined more than once", def.Name))
			continue
		}
		r.defs[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*FunctionDefinition, bool) {
	if r == nil {
		return nil, false
	}
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered names in load order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Definitions returns the registered definitions in load order.
func (r *Registry) Definitions() []*FunctionDefinition {
	if r == nil {
		return nil
	}
	defs := make([]*FunctionDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	return defs
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
