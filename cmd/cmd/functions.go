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
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the callable functions",
	Long: `List the function definitions the model may call.

Examples:
  callmemaybe functions
  callmemaybe functions -f data/input/functions_definition.json`,
	RunE: runFunctions,
}

func init() {
	rootCmd.AddCommand(functionsCmd)
}

func runFunctions(cmd *cobra.Command, args []string) error {
	registry, err := loadFunctions()
	if err != nil {
		return err
	}

	if registry.Len() == 0 {
		fmt.Println("No functions defined.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSIGNATURE\tDESCRIPTION")
	for _, def := range registry.Definitions() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.Signature(), def.Description)
	}
	return w.Flush()
}
