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

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
)

// huggingFaceTokenizer is the subset of tokenizer.json needed to build a table.
type huggingFaceTokenizer struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// LoadFile reads a vocabulary from a vocab.json (token -> id object) or a
// HuggingFace tokenizer.json file.
func LoadFile(path string, opts ...Option) (*Vocabulary, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer func() { _ = f.Close() }()

	v, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Load reads a vocabulary table from r. See LoadFile for accepted formats.
func Load(r io.Reader, opts ...Option) (*Vocabulary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}

	table, err := parseTable(data)
	if err != nil {
		return nil, err
	}
	return New(table, opts...)
}

func parseTable(data []byte) (map[string]int, error) {
	var hf huggingFaceTokenizer
	if err := sonic.Unmarshal(data, &hf); err == nil && len(hf.Model.Vocab) > 0 {
		table := hf.Model.Vocab
		for _, added := range hf.AddedTokens {
			table[added.Content] = added.ID
		}
		return table, nil
	}

	var table map[string]int
	if err := sonic.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing vocabulary table: %w", err)
	}
	return table, nil
}
