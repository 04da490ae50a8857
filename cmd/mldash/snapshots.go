package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/go-go-golems/mldash/pkg/state"
	"github.com/spf13/cobra"
)

var snapshotsDir string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List models saved from the controls panel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		paths, err := state.List(snapshotsDir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no snapshots under %s\n", filepath.Join(snapshotsDir, state.SnapshotDirName))
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tEPOCH\tSAVED\tMETRICS")
		for _, p := range paths {
			s, err := state.Load(p)
			if err != nil {
				logger.Warn().Err(err).Str("path", p).Msg("skipping snapshot")
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", filepath.Base(p), s.Epoch, s.CreatedAt.Local().Format("2006-01-02 15:04"), formatMetrics(s.Metrics))
		}
		return tw.Flush()
	},
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.4f", k, m[k]))
	}
	return strings.Join(parts, " ")
}

func init() {
	snapshotsCmd.Flags().StringVar(&snapshotsDir, "save-dir", ".", "directory given to demo --save-dir")
	rootCmd.AddCommand(snapshotsCmd)
}
