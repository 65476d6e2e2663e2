// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bpowers/cdb"
)

const verifyBatchSize = 4096

var (
	verifyJobs       int
	verifySignExtend bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check that every record can be looked up",
	Long: `Walk every record and check that looking up its key finds it.  Keys
are checked in parallel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []cdb.TableOption{cdb.WithTableLogger(logger)}
		if verifySignExtend {
			opts = append(opts, cdb.WithTableHashFunc(cdb.HashSignExtended))
		}
		table, err := cdb.Open(args[0], opts...)
		if err != nil {
			return err
		}
		defer func() {
			_ = table.Close()
		}()
		n, err := verify(cmd.Context(), table, verifyJobs)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d records\n", n)
		return err
	},
}

// verify checks that every record is reachable through the hash index,
// and that the index holds no other records.  It returns the number of
// records checked.
func verify(ctx context.Context, table *cdb.Table, jobs int) (int, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	n := 0
	batch := make([]cdb.Record, 0, verifyBatchSize)
	flush := func() {
		records := batch
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, r := range records {
				if err := verifyRecord(table, r); err != nil {
					return err
				}
			}
			return nil
		})
		batch = make([]cdb.Record, 0, verifyBatchSize)
	}

	it := table.Iter()
	for r, ok := it.Next(); ok; r, ok = it.Next() {
		n++
		batch = append(batch, r)
		if len(batch) == verifyBatchSize {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("record %d: %w", n, err)
	}

	logger.Debug("verified records", "records", n, "jobs", jobs)
	if indexed := table.Len(); indexed != n {
		return 0, fmt.Errorf("index holds %d records, file holds %d: %w", indexed, n, cdb.ErrCorrupt)
	}
	return n, nil
}

func verifyRecord(table *cdb.Table, r cdb.Record) error {
	if _, _, err := table.Lookup(r.Key); err != nil {
		return fmt.Errorf("key %q: %w", r.Key, err)
	}
	for _, v := range table.GetAll(r.Key) {
		if bytes.Equal(v, r.Value) {
			return nil
		}
	}
	return fmt.Errorf("key %q: record not reachable through the index: %w", r.Key, cdb.ErrCorrupt)
}

func init() {
	verifyCmd.Flags().IntVarP(&verifyJobs, "jobs", "j", 0, "Number of parallel workers (default GOMAXPROCS)")
	verifyCmd.Flags().BoolVar(&verifySignExtend, "sign-extend", false, "Hash keys with sign-extended bytes")
	rootCmd.AddCommand(verifyCmd)
}
