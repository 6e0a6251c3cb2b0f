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
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FunctionCallResult is the call the model claims to make. Every field is
// required; Args may be empty but not nil.
type FunctionCallResult struct {
	Prompt string           `json:"prompt"`
	FnName string           `json:"fn_name"`
	Args   map[string]Value `json:"args"`
}

// NewFunctionCallResult builds a result, failing when a required field is
// missing.
func NewFunctionCallResult(prompt, fnName string, args map[string]Value) (*FunctionCallResult, error) {
	var missing []string
	if prompt == "" {
		missing = append(missing, "prompt")
	}
	if strings.TrimSpace(fnName) == "" {
		missing = append(missing, "fn_name")
	}
	if args == nil {
		missing = append(missing, "args")
	}
	if len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}
	return &FunctionCallResult{Prompt: prompt, FnName: fnName, Args: args}, nil
}

// MissingFieldError reports required FunctionCallResult fields that were
// absent at construction.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("function call result is missing required field(s): %s", strings.Join(e.Fields, ", "))
}

// IsMissingField reports whether err is a *MissingFieldError.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// ArgNames returns the argument names in sorted order.
func (r *FunctionCallResult) ArgNames() []string {
	names := make([]string, 0, len(r.Args))
	for name := range r.Args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
