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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	jwtenc "github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwt"
)

const (
	optionNameKey      = "key"
	optionNameSubject  = "subject"
	optionNameIssuer   = "issuer"
	optionNameAudience = "audience"
	optionNameTTL      = "ttl"
	optionNameKID      = "kid"
)

// initTokenCmd adds the command that mints bearer tokens for the
// custodian server with a stored key.
func (c *command) initTokenCmd() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a JWT with a stored key",
		Long: `Sign a JWT with a stored key. ECDSA keys produce ES256 tokens and
Ed25519 keys EdDSA tokens. The kid header defaults to the RFC 7638
thumbprint of the public key. Tokens for the custodian server need a
subject and an expiry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := c.config.GetString(optionNameSubject)
			if subject == "" {
				return errors.New("--subject is required")
			}
			ttl := c.config.GetDuration(optionNameTTL)
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}

			now := time.Now()
			claims := jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				Issuer:    c.config.GetString(optionNameIssuer),
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			}
			if aud := c.config.GetStringSlice(optionNameAudience); len(aud) > 0 {
				claims.Audience = aud
			}

			ks, err := c.openLocalStore()
			if err != nil {
				return err
			}
			defer ks.Close()

			pair, release, err := ks.load(cmd.Context(), c.config.GetString(optionNameKey))
			if err != nil {
				return err
			}
			defer release()

			token, err := jwtenc.SignWithKID(cmd.Context(), ks.crypto.Subtle(), pair.Private, claims, c.config.GetString(optionNameKID))
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			return c.printer(cmd).PrintToken(token)
		},
	}
	cmd.Flags().StringP(optionNameKey, "k", "", "id of the signing key")
	cmd.Flags().String(optionNameSubject, "", "sub claim")
	cmd.Flags().String(optionNameIssuer, "", "iss claim")
	cmd.Flags().StringSlice(optionNameAudience, nil, "aud claim")
	cmd.Flags().Duration(optionNameTTL, time.Hour, "token lifetime")
	cmd.Flags().String(optionNameKID, "", "kid header")
	_ = cmd.MarkFlagRequired(optionNameKey)
	c.root.AddCommand(cmd)
}
