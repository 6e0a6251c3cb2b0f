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

// Package vocab provides the token table used to encode prompts and decode
// generated token ids.
//
// A Vocabulary is built once from a token -> id table and is immutable
// afterwards, so a single instance can be shared by any number of
// concurrent pipeline runs.
package vocab

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Candidate spellings used when the special tokens are not set explicitly.
var (
	unkCandidates = []string{"<unk>", "[UNK]", "<|unk|>"}
	eosCandidates = []string{"<|endoftext|>", "<|im_end|>", "</s>", "<eos>", "[EOS]", "<|eot_id|>"}
)

// LookupError is returned when a token or an id is not part of the table.
type LookupError struct {
	Token string
	ID    int
	byID  bool
}

func (e *LookupError) Error() string {
	if e.byID {
		return fmt.Sprintf("token id %d is not in the vocabulary", e.ID)
	}
	return fmt.Sprintf("token %q is not in the vocabulary", e.Token)
}

// Vocabulary is a bidirectional mapping between tokens and contiguous ids.
type Vocabulary struct {
	tokenToID map[string]int
	idToToken []string

	// -1 when not configured
	unkID int
	eosID int

	byteLevel bool

	// longest token, in runes
	maxTokenLen int
}

// Option configures a Vocabulary.
type Option func(*options)

type options struct {
	unkToken     *string
	eosToken     *string
	byteLevel    *bool
	noAutoDetect bool
}

// WithUnkToken designates the unknown token. An empty string disables the
// unknown fallback entirely.
func WithUnkToken(token string) Option {
	return func(o *options) {
		o.unkToken = &token
	}
}

// WithEOSToken designates the end-of-sequence token. An empty string
// disables EOS detection.
func WithEOSToken(token string) Option {
	return func(o *options) {
		o.eosToken = &token
	}
}

// WithByteLevel forces the GPT-2 byte-level text convention on or off.
// By default it is enabled when the table contains Ġ-prefixed tokens.
func WithByteLevel(enabled bool) Option {
	return func(o *options) {
		o.byteLevel = &enabled
	}
}

// WithoutSpecialTokenDetection disables guessing special tokens from the
// table contents; only explicitly configured tokens are used.
func WithoutSpecialTokenDetection() Option {
	return func(o *options) {
		o.noAutoDetect = true
	}
}

// New builds a Vocabulary from a token -> id table. Ids must be unique and
// cover 0..len(table)-1 without gaps.
func New(table map[string]int, opts ...Option) (*Vocabulary, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("vocabulary table is empty")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	v := &Vocabulary{
		tokenToID: make(map[string]int, len(table)),
		idToToken: make([]string, len(table)),
		unkID:     -1,
		eosID:     -1,
	}

	seen := make([]bool, len(table))
	hasByteMarkers := false
	for token, id := range table {
		if id < 0 || id >= len(table) {
			return nil, fmt.Errorf("token %q has id %d outside the contiguous range [0, %d)", token, id, len(table))
		}
		if seen[id] {
			return nil, fmt.Errorf("id %d is assigned to more than one token (%q and %q)", id, v.idToToken[id], token)
		}
		seen[id] = true
		v.tokenToID[token] = id
		v.idToToken[id] = token

		if n := utf8.RuneCountInString(token); n > v.maxTokenLen {
			v.maxTokenLen = n
		}
		if !hasByteMarkers && strings.HasPrefix(token, "Ġ") {
			hasByteMarkers = true
		}
	}

	if o.byteLevel != nil {
		v.byteLevel = *o.byteLevel
	} else {
		v.byteLevel = hasByteMarkers
	}

	var err error
	if v.unkID, err = v.resolveSpecial("unknown", o.unkToken, unkCandidates, o.noAutoDetect); err != nil {
		return nil, err
	}
	if v.eosID, err = v.resolveSpecial("end-of-sequence", o.eosToken, eosCandidates, o.noAutoDetect); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *Vocabulary) resolveSpecial(kind string, explicit *string, candidates []string, noAutoDetect bool) (int, error) {
	if explicit != nil {
		if *explicit == "" {
			return -1, nil
		}
		id, ok := v.tokenToID[*explicit]
		if !ok {
			return -1, fmt.Errorf("%s token %q is not in the vocabulary", kind, *explicit)
		}
		return id, nil
	}
	if noAutoDetect {
		return -1, nil
	}
	for _, c := range candidates {
		if id, ok := v.tokenToID[c]; ok {
			return id, nil
		}
	}
	return -1, nil
}

// EncodeToken returns the id of token. Tokens outside the table resolve to
// the unknown id when one is configured.
func (v *Vocabulary) EncodeToken(token string) (int, error) {
	if id, ok := v.tokenToID[token]; ok {
		return id, nil
	}
	if v.unkID >= 0 {
		return v.unkID, nil
	}
	return 0, &LookupError{Token: token}
}

// DecodeID returns the token for id.
func (v *Vocabulary) DecodeID(id int) (string, error) {
	if id < 0 || id >= len(v.idToToken) {
		return "", &LookupError{ID: id, byID: true}
	}
	return v.idToToken[id], nil
}

// UnkTokenID returns the unknown token id, or false when none is configured.
func (v *Vocabulary) UnkTokenID() (int, bool) {
	return v.unkID, v.unkID >= 0
}

// EOSTokenID returns the end-of-sequence token id, or false when none is
// configured.
func (v *Vocabulary) EOSTokenID() (int, bool) {
	return v.eosID, v.eosID >= 0
}

// Size returns the number of entries in the table.
func (v *Vocabulary) Size() int {
	return len(v.idToToken)
}

// ByteLevel reports whether tokens use the GPT-2 byte-level convention.
func (v *Vocabulary) ByteLevel() bool {
	return v.byteLevel
}
