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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindUnknown Kind = iota
	KindFloat
	KindInt
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is an argument value as produced by the model: one of float, int,
// string, bool, or unknown for anything else (null, arrays, objects).
type Value struct {
	kind Kind
	f    float64
	i    int64
	s    string
	b    bool
	raw  any
}

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Unknown(raw any) Value { return Value{kind: KindUnknown, raw: raw} }

func (v Value) Kind() Kind { return v.kind }

// ValueOf converts a decoded JSON value. Numbers decoded as json.Number keep
// the int/float distinction of their literal.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := t.Int64(); err == nil {
				return Int(i)
			}
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return Unknown(s)
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case Value:
		return t
	default:
		return Unknown(x)
	}
}

// AsFloat returns the value when it holds a float.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsInt returns the value when it holds an int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the value when it holds a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBool returns the value when it holds a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the held value as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindString:
		return v.s
	case KindBool:
		return v.b
	default:
		return v.raw
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return fmt.Sprintf("%v", v.raw)
	}
}

// MarshalJSON encodes the held value. Integral floats keep a decimal point
// so that 2.0 does not read back as an int.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) && math.Abs(v.f) < 1e15 {
		return []byte(strconv.FormatFloat(v.f, 'f', 1, 64)), nil
	}
	return sonic.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON literal into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	dec := decoder.NewDecoder(string(data))
	dec.UseNumber()
	if err := dec.Decode(&x); err != nil {
		return err
	}
	*v = ValueOf(x)
	return nil
}

// Coerce converts v to the declared type t. It reports false, and returns
// v unchanged, when no faithful conversion exists.
func Coerce(v Value, t TypeName) (Value, bool) {
	switch t {
	case TypeFloat:
		switch v.kind {
		case KindFloat:
			return v, true
		case KindInt:
			return Float(float64(v.i)), true
		case KindString:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
				return Float(f), true
			}
		}
	case TypeInt:
		switch v.kind {
		case KindInt:
			return v, true
		case KindFloat:
			if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
				return Int(int64(v.f)), true
			}
		case KindString:
			if i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64); err == nil {
				return Int(i), true
			}
		}
	case TypeString:
		switch v.kind {
		case KindString:
			return v, true
		case KindFloat, KindInt, KindBool:
			s := v.String()
			return String(s), true
		}
	case TypeBool:
		switch v.kind {
		case KindBool:
			return v, true
		case KindString:
			if b, err := strconv.ParseBool(strings.TrimSpace(v.s)); err == nil {
				return Bool(b), true
			}
		}
	}
	return v, false
}
