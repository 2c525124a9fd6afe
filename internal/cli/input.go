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
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

const (
	optionNameIn   = "in"
	optionNameData = "data"
)

// addInputFlags registers --in and --data on cmd.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String(optionNameIn, "", "input file, - for stdin")
	cmd.Flags().String(optionNameData, "", "input given inline")
}

// readInput returns --data when given, otherwise the --in file or stdin.
func (c *command) readInput(cmd *cobra.Command) ([]byte, error) {
	if cmd.Flags().Changed(optionNameData) {
		return []byte(c.config.GetString(optionNameData)), nil
	}
	return readFile(cmd, c.config.GetString(optionNameIn))
}

func readFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// decodeKeyData turns file contents into key data for format. spki takes
// PEM or DER and is handed on as raw, raw takes base64 text or bytes, jwk
// takes JSON. The returned algorithm is what the key data itself
// declares, if anything.
func decodeKeyData(format types.KeyFormat, input []byte) (types.KeyFormat, provider.KeyData, types.AlgorithmName, error) {
	switch format {
	case types.FormatSPKI:
		der := input
		if bytes.Contains(input, []byte("-----BEGIN")) {
			var err error
			if der, err = encoding.DecodePublicKeyPEM(input); err != nil {
				return "", nil, "", err
			}
		}
		k, err := spki.Parse(der)
		if err != nil {
			return "", nil, "", err
		}
		return types.FormatRaw, provider.Bytes(k.Public), k.Algorithm, nil
	case types.FormatRaw:
		trimmed := bytes.TrimSpace(input)
		if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
			return format, provider.Bytes(decoded), "", nil
		}
		return format, provider.Bytes(input), "", nil
	case types.FormatJWK:
		j, err := jwk.Unmarshal(input)
		if err != nil {
			return "", nil, "", err
		}
		k, err := j.ToKey()
		if err != nil {
			return "", nil, "", err
		}
		return format, provider.JWK(j), k.Algorithm, nil
	default:
		return "", nil, "", fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, format)
	}
}
