package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate CONFIG",
	Short: "Check a dashboard layout without starting it",
	Long: `Parse a layout file and build-check every module in it: unknown modules,
missing or mistyped options and ragged rows are reported.

Examples:
  mldash validate examples/dashboard.yaml
  mldash validate examples/dashboard.toml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadLayout(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %q, %dx%d grid, redraw every %s\n", args[0], doc.Title, doc.Height(), doc.Width(), doc.MaxLatency)
		for _, spec := range doc.Panels() {
			fmt.Fprintf(out, "  [%d,%d] %s\n", spec.Row, spec.Col, spec.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
