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

package pipeline

import (
	"github.com/bchene/Call-me-maybe/lib/decoding"
	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/parsing"
)

// Stage names the pipeline stage a failure originated in.
type Stage string

const (
	StagePrompt     Stage = "prompt"
	StageGeneration Stage = "generation"
	StageParsing    Stage = "parsing"
	StageValidation Stage = "validation"
)

// Result is the tagged outcome of one run: either a validated call
// (Success) or the stage and reason it failed at.
type Result struct {
	Success bool   `json:"success"`
	Prompt  string `json:"prompt"`

	FnName string                     `json:"fn_name,omitempty"`
	Args   map[string]functions.Value `json:"args,omitempty"`

	Stage  Stage  `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
	// ParseFailure is set for parsing-stage failures.
	ParseFailure parsing.ReasonKind `json:"parse_failure,omitempty"`

	// Decode diagnostics, present once generation has run.
	StopReason      decoding.StopReason `json:"stop_reason,omitempty"`
	GeneratedTokens int                 `json:"generated_tokens,omitempty"`
	RawText         string              `json:"raw_text,omitempty"`
}

// Call returns the validated call, or nil for a failure.
func (r *Result) Call() *functions.FunctionCallResult {
	if !r.Success {
		return nil
	}
	return &functions.FunctionCallResult{Prompt: r.Prompt, FnName: r.FnName, Args: r.Args}
}

func failure(question string, stage Stage, reason string) *Result {
	return &Result{Prompt: question, Stage: stage, Reason: reason}
}

func (r *Result) withDecode(out *decoding.Output) *Result {
	r.StopReason = out.StopReason
	r.GeneratedTokens = len(out.TokenIDs)
	r.RawText = out.Text
	return r
}
