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

// Command callmemaybe turns natural-language questions into validated
// function calls using a token-level scoring model.
//
// Usage:
//
//	callmemaybe run                          # Start the API server
//	callmemaybe ask "What is 2 plus 3?"      # Answer a single question
//	callmemaybe batch -i questions.json      # Answer a file of questions
//	callmemaybe functions                    # List the callable functions
package main

import (
	"github.com/bchene/Call-me-maybe/cmd/cmd"
)

// https://goreleaser.com/cookbooks/using-main.version/
//
// main.version: Current Git tag (the v prefix is stripped) or the name of the snapshot, if you're using the --snapshot flag
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
