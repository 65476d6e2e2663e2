// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bpowers/cdb"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Describe a file's layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := cdb.Open(args[0], cdb.WithTableLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			_ = table.Close()
		}()
		return printStats(cmd.OutOrStdout(), table.Stats())
	},
}

func printStats(w io.Writer, s cdb.Stats) error {
	_, err := fmt.Fprintf(w, `records:      %d
buckets:      %d
slots:        %d
max probe:    %d
records size: %d
file size:    %d
`, s.Records, s.Buckets, s.Slots, s.MaxProbe, s.RecordsSize, s.FileSize)
	return err
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
