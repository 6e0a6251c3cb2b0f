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

// Package tokenizer estimates how many tokens a prompt occupies. The counts
// are advisory: they drive context-budget warnings and metrics, never the
// decode loop itself, which always tokenizes through the model vocabulary.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter reports an approximate token count for text.
type Counter interface {
	// CountTokens returns the number of tokens in the text.
	CountTokens(text string) int
}

// BPETokenizer uses OpenAI's tiktoken BPE tokenization.
type BPETokenizer struct {
	tiktoken *tiktoken.Tiktoken
}

func init() {
	// Set the offline loader for tiktoken to avoid network requests
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// NewBPETokenizer creates a BPE tokenizer using tiktoken-go with embedded
// dictionaries. An empty encoding selects cl100k_base.
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}

	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %q: %w", encoding, err)
	}

	return &BPETokenizer{tiktoken: tk}, nil
}

// CountTokens returns the number of tokens in the text.
func (t *BPETokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.tiktoken.Encode(text, nil, nil))
}

// CharEstimate approximates one token per four bytes of text. It is the
// fallback when no BPE encoding is available.
type CharEstimate struct{}

// CountTokens returns the number of tokens in the text.
func (CharEstimate) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Default returns a cl100k_base counter, or CharEstimate when the encoding
// cannot be loaded.
func Default() Counter {
	tk, err := NewBPETokenizer("")
	if err != nil {
		return CharEstimate{}
	}
	return tk
}
