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

package vocab

import "strings"

// GPT-2 byte-level alphabet: every byte maps to a printable rune so that
// tokens never contain raw whitespace or control bytes.
var (
	byteToRune [256]rune
	runeToByte = make(map[rune]byte, 256)
)

func init() {
	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}
	n := 0
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !printable(b) {
			r = rune(256 + n)
			n++
		}
		byteToRune[b] = r
		runeToByte[r] = byte(b)
	}
}

func toByteLevel(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) * 2)
	for i := 0; i < len(text); i++ {
		sb.WriteRune(byteToRune[text[i]])
	}
	return sb.String()
}

func fromByteLevel(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if b, ok := runeToByte[r]; ok {
			sb.WriteByte(b)
		} else {
			sb.WriteRune(r)
		}
	}
	return strings.ToValidUTF8(sb.String(), "\uFFFD")
}

// EncodeText splits text into token ids by greedy longest match against the
// table. Runes that start no known token resolve to the unknown id, or fail
// with a *LookupError when no unknown token is configured.
func (v *Vocabulary) EncodeText(text string) ([]int, error) {
	if text == "" {
		return []int{}, nil
	}
	s := text
	if v.byteLevel {
		s = toByteLevel(text)
	}

	// rune start offsets, plus the end of the string
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))
	runes := len(offsets) - 1

	ids := make([]int, 0, runes/2+1)
	for i := 0; i < runes; {
		matched := false
		for l := min(v.maxTokenLen, runes-i); l > 0; l-- {
			if id, ok := v.tokenToID[s[offsets[i]:offsets[i+l]]]; ok {
				ids = append(ids, id)
				i += l
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if v.unkID < 0 {
			return nil, &LookupError{Token: s[offsets[i]:offsets[i+1]]}
		}
		ids = append(ids, v.unkID)
		i++
	}
	return ids, nil
}

// DecodeIDs renders ids back to text following the table's joining
// convention.
func (v *Vocabulary) DecodeIDs(ids []int) (string, error) {
	var sb strings.Builder
	for _, id := range ids {
		token, err := v.DecodeID(id)
		if err != nil {
			return "", err
		}
		sb.WriteString(token)
	}
	if v.byteLevel {
		return fromByteLevel(sb.String()), nil
	}
	return sb.String(), nil
}
