package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// addJSONFlag registers --json with a description of what gets printed.
func addJSONFlag(cmd *cobra.Command, target *bool, what string) {
	cmd.Flags().BoolVar(target, "json", false, "Print "+what+" as JSON")
}

// writeJSON prints v indented. HTML escaping is off so queries such as
// "salt & pepper" round-trip readably.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
