package main

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/mldash/pkg/panels"
	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the dashboard modules and their options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := panels.Default()
		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			d, _ := reg.Lookup(name)
			fmt.Fprintf(out, "%s\n", d.Name)
			if d.Description != "" {
				fmt.Fprintf(out, "  %s\n", d.Description)
			}
			if len(d.Capabilities) > 0 {
				caps := make([]string, 0, len(d.Capabilities))
				for _, c := range d.Capabilities {
					caps = append(caps, string(c))
				}
				fmt.Fprintf(out, "  receives: %s\n", strings.Join(caps, ", "))
			}
			for _, line := range d.Schema.Describe() {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
