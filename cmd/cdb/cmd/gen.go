// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cmd

import (
	"bufio"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"

	"github.com/spf13/cobra"
)

const (
	genPrefix    = "pref_"
	genSuffixLen = 16
	genHMACKey   = "d259c7f656caf7f1"
)

var (
	genCount int
	genSeed  int64
)

// genCmd represents the gen command
var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate random key:value lines",
	Long: `Print random "key:value" lines, suitable for "cdb make".  Keys are
hex HMAC-SHA256 digests of their values.

Example:
  cdb gen --count 1000000 | cdb make large.cdb`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := genSeed
		if seed == 0 {
			seed = randomSeed()
		}
		return gen(cmd.OutOrStdout(), genCount, seed)
	},
}

func randomSeed() int64 {
	var seedBytes [8]byte
	_, _ = crand.Read(seedBytes[:])
	return int64(binary.LittleEndian.Uint64(seedBytes[:]))
}

func gen(out io.Writer, n int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	h := hmac.New(sha256.New, []byte(genHMACKey))
	w := bufio.NewWriter(out)

	for i := 0; i < n; i++ {
		var buf [genSuffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		value := fmt.Sprintf("%s%x", genPrefix, buf)
		h.Reset()
		h.Write([]byte(value))
		key := hex.EncodeToString(h.Sum(nil))

		if _, err := fmt.Fprintf(w, "%s:%s\n", key, value); err != nil {
			return err
		}
	}
	return w.Flush()
}

func init() {
	genCmd.Flags().IntVarP(&genCount, "count", "n", 1000000, "Number of pairs to generate")
	genCmd.Flags().Int64Var(&genSeed, "seed", 0, "Random seed (0 picks one at random)")
	rootCmd.AddCommand(genCmd)
}
