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
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

const (
	optionNameAlgorithm = "algorithm"
	optionNameFormat    = "format"
	optionNameSignature = "signature"
)

// ErrVerificationFailed makes key verify exit non-zero on a bad signature.
var ErrVerificationFailed = errors.New("signature verification failed")

func (c *command) initKeyCmd() {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage and use stored keys",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a key pair and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := types.ParseAlgorithmName(c.config.GetString(optionNameAlgorithm))
			if err != nil {
				return err
			}
			alg, err := keyAlgorithm(name)
			if err != nil {
				return err
			}
			return c.withKeyStore(func(ks keyStore) error {
				id, err := ks.Generate(cmd.Context(), alg)
				if err != nil {
					return fmt.Errorf("failed to generate key: %w", err)
				}
				return c.printer(cmd).PrintKey(id, alg.Name)
			})
		},
	}
	generate.Flags().StringP(optionNameAlgorithm, "a", string(types.AlgorithmECDSA), "key algorithm (ECDSA, Ed25519)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored key ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withKeyStore(func(ks keyStore) error {
				ids, err := ks.List(cmd.Context())
				if err != nil {
					return err
				}
				return c.printer(cmd).PrintKeyList(ids)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withKeyStore(func(ks keyStore) error {
				if err := ks.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return c.printer(cmd).PrintSuccess(fmt.Sprintf("Deleted key %s", args[0]))
			})
		},
	}

	sign := &cobra.Command{
		Use:   "sign <id>",
		Short: "Sign data; the signature is printed as base64",
		Long: `Sign data with a stored key. ECDSA keys sign with SHA-256 and produce
the 64 byte r||s form; Ed25519 keys sign the data itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.readInput(cmd)
			if err != nil {
				return err
			}
			return c.withKeyStore(func(ks keyStore) error {
				signature, err := ks.Sign(cmd.Context(), args[0], data)
				if err != nil {
					return fmt.Errorf("failed to sign: %w", err)
				}
				return c.printer(cmd).PrintSignature(signature)
			})
		},
	}
	addInputFlags(sign)

	verify := &cobra.Command{
		Use:   "verify <id>",
		Short: "Verify a base64 signature over data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.config.GetString(optionNameSignature)))
			if err != nil {
				return fmt.Errorf("invalid signature encoding: %w", err)
			}
			data, err := c.readInput(cmd)
			if err != nil {
				return err
			}
			return c.withKeyStore(func(ks keyStore) error {
				valid, err := ks.Verify(cmd.Context(), args[0], signature, data)
				if err != nil {
					return fmt.Errorf("failed to verify: %w", err)
				}
				if err := c.printer(cmd).PrintVerification(valid); err != nil {
					return err
				}
				if !valid {
					return ErrVerificationFailed
				}
				return nil
			})
		},
	}
	addInputFlags(verify)
	verify.Flags().StringP(optionNameSignature, "s", "", "base64 signature")
	_ = verify.MarkFlagRequired(optionNameSignature)

	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Export the public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := types.ParseKeyFormat(c.config.GetString(optionNameFormat))
			if err != nil {
				return err
			}
			return c.withKeyStore(func(ks keyStore) error {
				data, err := ks.Export(cmd.Context(), args[0], format)
				if err != nil {
					return fmt.Errorf("failed to export key: %w", err)
				}
				return c.printer(cmd).PrintKeyData(format, data)
			})
		},
	}
	export.Flags().StringP(optionNameFormat, "f", string(types.FormatSPKI), "key format (spki, raw, jwk)")

	imp := &cobra.Command{
		Use:   "import",
		Short: "Import a key and print its id",
		Long: `Import a key. spki input may be PEM or DER, raw input may be base64,
and jwk input is JSON. The local store only keeps private keys, so it
accepts private JWKs; a remote custodian also holds public keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := types.ParseKeyFormat(c.config.GetString(optionNameFormat))
			if err != nil {
				return err
			}
			input, err := c.readInput(cmd)
			if err != nil {
				return err
			}
			format, data, name, err := decodeKeyData(format, input)
			if err != nil {
				return err
			}
			if flag := c.config.GetString(optionNameAlgorithm); flag != "" {
				if name, err = types.ParseAlgorithmName(flag); err != nil {
					return err
				}
			}
			if name == "" {
				return fmt.Errorf("%w: --algorithm is required for %s keys", types.ErrInvalidAlgorithm, format)
			}
			alg, err := keyAlgorithm(name)
			if err != nil {
				return err
			}
			return c.withKeyStore(func(ks keyStore) error {
				id, err := ks.Import(cmd.Context(), format, data, alg)
				if err != nil {
					return fmt.Errorf("failed to import key: %w", err)
				}
				return c.printer(cmd).PrintKey(id, alg.Name)
			})
		},
	}
	addInputFlags(imp)
	imp.Flags().StringP(optionNameFormat, "f", string(types.FormatJWK), "key format (spki, raw, jwk)")
	imp.Flags().StringP(optionNameAlgorithm, "a", "", "key algorithm; taken from the key data when possible")

	cmd.AddCommand(generate, list, del, sign, verify, export, imp)
	c.root.AddCommand(cmd)
}

// withKeyStore opens the key store for the duration of fn.
func (c *command) withKeyStore(fn func(ks keyStore) error) error {
	ks, err := c.openKeyStore()
	if err != nil {
		return err
	}
	return errors.Join(fn(ks), ks.Close())
}
