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

package parsing

import "strings"

// ObjectScanner tracks the first top-level JSON object in a stream of text.
// Braces inside string literals are ignored. Feed may be called with
// arbitrary chunks; offsets are relative to the concatenated input.
type ObjectScanner struct {
	pos      int
	start    int
	end      int
	inString bool
	escaped  bool
	// closers holds the delimiters still open, innermost last.
	closers []byte
}

// NewObjectScanner returns a scanner that has seen no input.
func NewObjectScanner() *ObjectScanner {
	return &ObjectScanner{start: -1, end: -1}
}

// Feed consumes chunk and reports whether the object is complete.
func (s *ObjectScanner) Feed(chunk string) bool {
	for i := 0; i < len(chunk); i++ {
		if s.end >= 0 {
			return true
		}
		c := chunk[i]
		offset := s.pos + i
		if s.start < 0 {
			if c == '{' {
				s.start = offset
				s.closers = append(s.closers, '}')
			}
			continue
		}
		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}
		switch c {
		case '"':
			s.inString = true
		case '{':
			s.closers = append(s.closers, '}')
		case '[':
			s.closers = append(s.closers, ']')
		case '}', ']':
			s.closers = s.closers[:len(s.closers)-1]
			if len(s.closers) == 0 {
				s.end = offset + 1
			}
		}
	}
	s.pos += len(chunk)
	return s.end >= 0
}

// Started reports whether an opening brace has been seen.
func (s *ObjectScanner) Started() bool { return s.start >= 0 }

// Complete reports whether the first object has been closed.
func (s *ObjectScanner) Complete() bool { return s.end >= 0 }

// Span returns the byte range of the balanced object.
func (s *ObjectScanner) Span() (start, end int, ok bool) {
	if s.end < 0 {
		return s.start, -1, false
	}
	return s.start, s.end, true
}

// Repair closes an object whose input ended early. text must be the input
// fed so far. An open string is terminated, a dangling comma dropped and
// every open bracket closed in order. ok is false when no object was
// started or the object is already complete.
func (s *ObjectScanner) Repair(text string) (repaired string, ok bool) {
	if s.start < 0 || s.end >= 0 || s.start >= len(text) {
		return "", false
	}
	var sb strings.Builder
	tail := text[s.start:]
	if s.inString {
		sb.WriteString(tail)
		if s.escaped {
			sb.WriteByte('\\')
		}
		sb.WriteByte('"')
	} else {
		sb.WriteString(strings.TrimRight(strings.TrimRight(tail, " \t\r\n"), ","))
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		sb.WriteByte(s.closers[i])
	}
	return sb.String(), true
}
