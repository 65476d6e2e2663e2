// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/bpowers/cdb"
)

const (
	formatLines    = "lines"
	formatCdbmake  = "cdbmake"
	maxLineLength  = 64 * 1024 * 1024
	maxLengthDigit = 10
)

type makeOptions struct {
	format           string
	sep              string
	lowMem           bool
	rejectDuplicates bool
	signExtend       bool
}

var makeOpts makeOptions

// makeCmd represents the make command
var makeCmd = &cobra.Command{
	Use:   "make <out.cdb> [input]",
	Short: "Build a cdb file",
	Long: `Build a cdb file from key/value pairs read from input (or stdin).

Input is either one "key<sep>value" pair per line (--format lines), or
records in the format read and written by cdbmake and cdbdump
(--format cdbmake):

  +3,5:one->Hello
  +3,7:two->Goodbye

Example:
  cdb gen --count 1000 | cdb make words.cdb`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 2 {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() {
				_ = f.Close()
			}()
			in = f
		}
		n, err := makeTable(args[0], in, makeOpts)
		if err != nil {
			return err
		}
		logger.Debug("wrote records", "path", args[0], "records", n)
		return nil
	},
}

func (o makeOptions) builderOptions() []cdb.BuilderOption {
	opts := []cdb.BuilderOption{cdb.WithBuilderLogger(logger)}
	if o.lowMem {
		opts = append(opts, cdb.WithBuildType(cdb.SlowLowMem))
	}
	if o.rejectDuplicates {
		opts = append(opts, cdb.WithRejectDuplicates())
	}
	if o.signExtend {
		opts = append(opts, cdb.WithHashFunc(cdb.HashSignExtended))
	}
	return opts
}

// makeTable builds the file at path from in, returning the number of
// records written.  Nothing is written to path if in is malformed.
func makeTable(path string, in io.Reader, opts makeOptions) (int, error) {
	var read func(*bufio.Reader, func(k, v []byte) error) error
	switch opts.format {
	case formatLines:
		if opts.sep == "" {
			return 0, errors.New("--sep must not be empty")
		}
		sep := []byte(opts.sep)
		read = func(r *bufio.Reader, put func(k, v []byte) error) error {
			return readLines(r, sep, put)
		}
	case formatCdbmake:
		read = readCdbmake
	default:
		return 0, fmt.Errorf("unknown --format %q (want %q or %q)", opts.format, formatLines, formatCdbmake)
	}

	b, err := cdb.NewBuilder(path, opts.builderOptions()...)
	if err != nil {
		return 0, fmt.Errorf("cdb.NewBuilder: %w", err)
	}
	n := 0
	err = read(bufio.NewReaderSize(in, 1024*1024), func(k, v []byte) error {
		if err := b.Put(k, v); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		// leave whatever is at path alone
		_ = b.Discard()
		return 0, err
	}
	if _, err := b.Build(); err != nil {
		return 0, fmt.Errorf("Build: %w", err)
	}
	return n, nil
}

func readLines(r *bufio.Reader, sep []byte, put func(k, v []byte) error) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		k, v, ok := bytes.Cut(line, sep)
		if !ok {
			return fmt.Errorf("line %d: missing separator %q", lineNo, sep)
		}
		if err := put(k, v); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return s.Err()
}

// readCdbmake reads "+klen,dlen:key->data\n" records until a blank line
// or EOF.
func readCdbmake(r *bufio.Reader, put func(k, v []byte) error) error {
	var key, data []byte
	for n := 1; ; n++ {
		c, err := r.ReadByte()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if c == '\n' {
			return nil
		}
		if c != '+' {
			return fmt.Errorf("record %d: expected '+', got %q", n, c)
		}
		klen, err := readLength(r, ',')
		if err != nil {
			return fmt.Errorf("record %d: key length: %w", n, err)
		}
		dlen, err := readLength(r, ':')
		if err != nil {
			return fmt.Errorf("record %d: data length: %w", n, err)
		}
		key = grow(key, klen)
		if _, err := io.ReadFull(r, key); err != nil {
			return fmt.Errorf("record %d: key: %w", n, err)
		}
		if err := expect(r, "->"); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		data = grow(data, dlen)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("record %d: data: %w", n, err)
		}
		if err := expect(r, "\n"); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if err := put(key, data); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}
}

func readLength(r *bufio.Reader, term byte) (int, error) {
	n := 0
	for digits := 0; ; digits++ {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c == term && digits > 0 {
			return n, nil
		}
		if c < '0' || c > '9' || digits == maxLengthDigit {
			return 0, fmt.Errorf("bad length byte %q", c)
		}
		n = n*10 + int(c-'0')
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("length %d: %w", n, cdb.ErrSizeLimit)
		}
	}
}

func expect(r *bufio.Reader, s string) error {
	for i := 0; i < len(s); i++ {
		c, err := r.ReadByte()
		if err != nil {
			return err
		}
		if c != s[i] {
			return fmt.Errorf("expected %q, got %q", s[i], c)
		}
	}
	return nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

func init() {
	makeCmd.Flags().StringVar(&makeOpts.format, "format", formatLines, `Input format: "lines" or "cdbmake"`)
	makeCmd.Flags().StringVar(&makeOpts.sep, "sep", ":", "Key/value separator for --format lines")
	makeCmd.Flags().BoolVar(&makeOpts.lowMem, "low-mem", false, "Build the index with per-bucket counts only, re-reading keys from disk")
	makeCmd.Flags().BoolVar(&makeOpts.rejectDuplicates, "reject-duplicates", false, "Fail if a key appears more than once")
	makeCmd.Flags().BoolVar(&makeOpts.signExtend, "sign-extend", false, "Hash keys with sign-extended bytes")
	rootCmd.AddCommand(makeCmd)
}
