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

var (
	getAll        bool
	getSignExtend bool
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <file> <key>",
	Short: "Get the value for a key",
	Long: `Print the value stored under a key.  A key stored more than once
prints the value stored first, or every value with --all.

Example:
  cdb get words.cdb susan`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []cdb.TableOption{cdb.WithTableLogger(logger)}
		if getSignExtend {
			opts = append(opts, cdb.WithTableHashFunc(cdb.HashSignExtended))
		}
		table, err := cdb.Open(args[0], opts...)
		if err != nil {
			return err
		}
		defer func() {
			_ = table.Close()
		}()
		return get(cmd.OutOrStdout(), table, []byte(args[1]), getAll)
	},
}

func get(w io.Writer, table *cdb.Table, key []byte, all bool) error {
	var values [][]byte
	if all {
		values = table.GetAll(key)
	} else {
		v, ok, err := table.Lookup(key)
		if err != nil {
			return err
		}
		if ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("key %q not found", key)
	}
	for _, v := range values {
		if _, err := fmt.Fprintf(w, "%s\n", v); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	getCmd.Flags().BoolVar(&getAll, "all", false, "Print every value stored under the key")
	getCmd.Flags().BoolVar(&getSignExtend, "sign-extend", false, "Hash keys with sign-extended bytes")
	rootCmd.AddCommand(getCmd)
}
