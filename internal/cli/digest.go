// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-webcrypto.
//
// go-webcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.


package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

const (
	optionNameBase64 = "base64"
	optionNameLength = "length"
)

func (c *command) initDigestCmd() {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Hash data; the digest is printed as hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := types.ParseAlgorithmName(c.config.GetString(optionNameAlgorithm))
			if err != nil {
				return err
			}
			data, err := c.readInput(cmd)
			if err != nil {
				return err
			}
			crypto, err := c.scratchCrypto()
			if err != nil {
				return err
			}
			digest, err := crypto.Subtle().Digest(cmd.Context(), types.Algorithm{Name: name}, data)
			err = errors.Join(err, crypto.Close())
			if err != nil {
				return fmt.Errorf("failed to digest: %w", err)
			}
			return c.printer(cmd).PrintBytes("digest", digest, c.config.GetBool(optionNameBase64))
		},
	}
	addInputFlags(cmd)
	cmd.Flags().StringP(optionNameAlgorithm, "a", string(types.AlgorithmSHA1), "digest algorithm")
	cmd.Flags().Bool(optionNameBase64, false, "print base64 instead of hex")
	c.root.AddCommand(cmd)
}

func (c *command) initRandomCmd() {
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print random bytes from the key store's generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := c.config.GetInt(optionNameLength)
			if n < 0 || n > webcrypto.MaxRandomValues {
				return fmt.Errorf("%w: length must be between 0 and %d", webcrypto.ErrQuotaExceeded, webcrypto.MaxRandomValues)
			}
			return c.withKeyStore(func(ks keyStore) error {
				b, err := ks.Random(cmd.Context(), n)
				if err != nil {
					return err
				}
				return c.printer(cmd).PrintBytes("random", b, c.config.GetBool(optionNameBase64))
			})
		},
	}
	cmd.Flags().IntP(optionNameLength, "n", 32, "number of bytes")
	cmd.Flags().Bool(optionNameBase64, false, "print base64 instead of hex")
	c.root.AddCommand(cmd)
}
