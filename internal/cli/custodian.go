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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-webcrypto/internal/server"
)

const optionNameListen = "listen"

func (c *command) initCustodianCmd() {
	cmd := &cobra.Command{
		Use:   "custodian",
		Short: "Run the key custodian server",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve a wallet over HTTP until interrupted",
		Long: `Serve a wallet over HTTP. Storage, bearer token authentication, rate
limiting, TLS and metrics come from the custodian section of the config
file and WEBCRYPTO_* variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen := c.config.GetString(optionNameListen); listen != "" {
				c.cfg.Custodian.Listen = listen
			}
			srv, err := server.New(c.cfg, c.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	serve.Flags().String(optionNameListen, "", "listen address, overrides the config file")

	cmd.AddCommand(serve)
	c.root.AddCommand(cmd)
}
