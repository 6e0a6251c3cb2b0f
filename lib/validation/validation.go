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

// Package validation checks a parsed function call against the registry.
package validation

import (
	"fmt"

	"github.com/bchene/Call-me-maybe/lib/functions"
)

// Outcome is the verdict on one call. Error is empty iff Valid.
type Outcome struct {
	Valid bool
	Error string
}

func valid() Outcome { return Outcome{Valid: true} }

func invalid(format string, args ...any) Outcome {
	return Outcome{Error: fmt.Sprintf(format, args...)}
}

// Validator checks that a call names a registered function and supplies
// every declared argument. Undeclared arguments are ignored and values are
// not type-checked. Validate is pure, so a Validator is safe for concurrent
// use.
type Validator struct {
	registry *functions.Registry
}

// New creates a Validator over registry.
func New(registry *functions.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate returns the outcome for result. The first missing argument in
// declaration order is reported.
func (v *Validator) Validate(result *functions.FunctionCallResult) Outcome {
	if result == nil {
		return invalid("no function call to validate")
	}
	def, ok := v.registry.Get(result.FnName)
	if !ok {
		return invalid("unknown function %q", result.FnName)
	}
	for _, name := range def.ArgNames() {
		if _, ok := result.Args[name]; !ok {
			return invalid("function %q is missing required argument %q", def.Name, name)
		}
	}
	return valid()
}
