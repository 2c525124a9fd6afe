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


// Package cli implements the webcrypto command line tool.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-webcrypto/internal/config"
	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

const (
	optionNameConfig   = "config"
	optionNameOutput   = "output"
	optionNameVerbose  = "verbose"
	optionNameDataDir  = "data-dir"
	optionNamePassword = "password"
	optionNameRemote   = "remote"
	optionNameToken    = "token"

	envPrefix      = "webcrypto"
	defaultDataDir = ".webcrypto"
)

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfg     *config.Config
	logger  *logging.Logger
	homeDir string
}

// Option configures the command tree.
type Option func(*command)

// WithArgs replaces os.Args.
func WithArgs(args ...string) Option {
	return func(c *command) {
		c.root.SetArgs(args)
	}
}

// WithOutput redirects standard output.
func WithOutput(w io.Writer) Option {
	return func(c *command) {
		c.root.SetOut(w)
	}
}

// WithErrorOutput redirects standard error, including logs.
func WithErrorOutput(w io.Writer) Option {
	return func(c *command) {
		c.root.SetErr(w)
	}
}

// WithInput replaces standard input.
func WithInput(r io.Reader) Option {
	return func(c *command) {
		c.root.SetIn(r)
	}
}

// WithHomeDir sets the directory the default data directory lives in.
func WithHomeDir(dir string) Option {
	return func(c *command) {
		c.homeDir = dir
	}
}

func newCommand(opts ...Option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:   "webcrypto",
			Short: "Key generation, signing and certificate tool",
			Long: `webcrypto manages ECDSA P-256 and Ed25519 keys, signs and verifies
data, and parses, builds and validates X.509 certificate chains.

Keys are stored encrypted under the data directory, or held by a remote
custodian when --remote is set. The custodian server itself is started
with "webcrypto custodian serve".`,
			SilenceErrors: true,
			SilenceUsage:  true,
		},
	}
	c.root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return c.initConfig(cmd)
	}

	for _, o := range opts {
		o(c)
	}
	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()
	c.initKeyCmd()
	c.initDigestCmd()
	c.initRandomCmd()
	c.initTokenCmd()
	c.initCertCmd()
	c.initCustodianCmd()
	c.initVersionCmd()

	return c, nil
}

func (c *command) Execute() error {
	return c.root.Execute()
}

// Execute parses command line arguments and runs the selected command.
func Execute() error {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	flags := c.root.PersistentFlags()
	flags.String(optionNameConfig, "", "config file")
	flags.StringP(optionNameOutput, "o", string(OutputFormatText), "output format (text, json)")
	flags.BoolP(optionNameVerbose, "v", false, "debug logging")
	flags.String(optionNameDataDir, filepath.Join(c.homeDir, defaultDataDir), "key store directory")
	flags.String(optionNamePassword, "", "password encrypting stored keys")
	flags.String(optionNameRemote, "", "custodian URL; keys are held remotely when set")
	flags.String(optionNameToken, "", "bearer token for the custodian")
}

// initConfig layers flags and WEBCRYPTO_* variables over the config file.
func (c *command) initConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.config = v

	cfg, err := config.LoadOrDefault(v.GetString(optionNameConfig))
	if err != nil {
		return err
	}

	if cfg.Storage.Backend == config.StorageMemory || cmd.Flags().Changed(optionNameDataDir) {
		cfg.Storage = config.StorageConfig{Backend: config.StorageFile, Path: v.GetString(optionNameDataDir)}
	}
	if password := v.GetString(optionNamePassword); password != "" {
		cfg.Keystore.Password = password
	}
	if remote := v.GetString(optionNameRemote); remote != "" {
		cfg.Custodian.Remote.URL = remote
	}
	if token := v.GetString(optionNameToken); token != "" {
		cfg.Custodian.Remote.Token = token
	}
	if v.GetBool(optionNameVerbose) {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logging.NewLoggerWithOptions(logging.Options{
		Debug:  strings.EqualFold(cfg.Logging.Level, "debug"),
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

func (c *command) setHomeDir() error {
	if c.homeDir != "" {
		return nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = dir
	return nil
}

func (c *command) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(c.config.GetString(optionNameOutput), cmd.OutOrStdout())
}

// openKeyStore returns the remote custodian when one is configured and the
// local persistent store otherwise.
func (c *command) openKeyStore() (keyStore, error) {
	remote := c.cfg.Custodian.Remote
	if remote.URL == "" {
		return c.openLocalStore()
	}
	client, err := custodian.NewClient(&custodian.ClientConfig{
		BaseURL: remote.URL,
		Token:   remote.Token,
		Timeout: remote.Timeout,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("using remote custodian", "url", remote.URL)
	return &remoteStore{client: client}, nil
}

// openLocalStore opens the key store under the configured storage.
// Keys survive the process, so the software backend runs persistent.
func (c *command) openLocalStore() (*localStore, error) {
	if c.cfg.Custodian.Remote.URL != "" {
		return nil, ErrLocalOnly
	}
	store, err := c.cfg.Storage.Open()
	if err != nil {
		return nil, err
	}
	be, err := software.NewBackend(&software.Config{
		KeyStorage: store,
		Password:   []byte(c.cfg.Keystore.Password),
		Persistent: true,
		Logger:     c.logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	crypto, err := webcrypto.New(be, &webcrypto.Options{Logger: c.logger, BlockSize: c.cfg.Random.BlockSize})
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	return &localStore{crypto: crypto, storage: store}, nil
}

// scratchCrypto returns an in-memory Crypto for operations that need no
// stored keys.
func (c *command) scratchCrypto() (*webcrypto.Crypto, error) {
	be, err := software.NewBackend(&software.Config{KeyStorage: memory.New(), Logger: c.logger})
	if err != nil {
		return nil, err
	}
	crypto, err := webcrypto.New(be, &webcrypto.Options{Logger: c.logger})
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	return crypto, nil
}
