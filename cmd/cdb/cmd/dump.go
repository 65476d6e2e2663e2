// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bpowers/cdb"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print every record",
	Long: `Print every record, in the order they were added, in the format
read by "cdb make --format cdbmake".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := cdb.Open(args[0], cdb.WithTableLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			_ = table.Close()
		}()
		return dump(cmd.OutOrStdout(), table)
	},
}

func dump(out io.Writer, table *cdb.Table) error {
	w := bufio.NewWriter(out)
	it := table.Iter()
	for r, ok := it.Next(); ok; r, ok = it.Next() {
		if _, err := fmt.Fprintf(w, "+%d,%d:%s->%s\n", len(r.Key), len(r.Value), r.Key, r.Value); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("it.Next: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
