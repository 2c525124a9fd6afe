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
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-webcrypto/pkg/certificate"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
)

const (
	optionNameDNS      = "dns"
	optionNameCN       = "cn"
	optionNameDays     = "days"
	optionNameCA       = "ca"
	optionNameSave     = "save"
	optionNameLeaf     = "leaf"
	optionNamePool     = "pool"
	optionNameIssuerID = "issuer-key"
)

func (c *command) initCertCmd() {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Parse, build, validate and issue X.509 certificates",
	}

	parse := &cobra.Command{
		Use:   "parse <file>",
		Short: "Show the key and DNS names of a PEM, base64 or DER certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readFile(cmd, args[0])
			if err != nil {
				return err
			}
			return c.withCertificateService(func(svc *certificate.Service) error {
				data, err := svc.ParseCertificate(string(input))
				if err != nil {
					return err
				}
				return c.printer(cmd).PrintCertificateData(data)
			})
		},
	}

	validate := &cobra.Command{
		Use:   "validate <chain.pem>",
		Short: "Validate a leaf-first PEM chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := readCertificates(cmd, args[0])
			if err != nil {
				return err
			}
			return c.withCertificateService(func(svc *certificate.Service) error {
				if err := svc.ValidateCertificateChain(cmd.Context(), chain); err != nil {
					return err
				}
				return c.printer(cmd).PrintSuccess(fmt.Sprintf("Chain of %d certificates is valid", len(chain)))
			})
		},
	}

	build := &cobra.Command{
		Use:   "build",
		Short: "Order a leaf and a pool of certificates into a chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			leaves, err := readCertificates(cmd, c.config.GetString(optionNameLeaf))
			if err != nil {
				return err
			}
			pool, err := readCertificates(cmd, c.config.GetString(optionNamePool))
			if err != nil {
				return err
			}
			return c.withCertificateService(func(svc *certificate.Service) error {
				chain, err := svc.BuildChain(cmd.Context(), leaves[0], pool)
				if err != nil {
					return err
				}
				return c.printer(cmd).PrintCertificates(chain)
			})
		},
	}
	build.Flags().String(optionNameLeaf, "", "leaf certificate file")
	build.Flags().String(optionNamePool, "", "PEM bundle of candidate issuers")
	_ = build.MarkFlagRequired(optionNameLeaf)
	_ = build.MarkFlagRequired(optionNamePool)

	selfsign := &cobra.Command{
		Use:   "selfsign",
		Short: "Create a self-signed certificate for a stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocalCertificates(func(ks *localStore, svc *certificate.Service) error {
				pair, release, err := ks.load(cmd.Context(), c.config.GetString(optionNameKey))
				if err != nil {
					return err
				}
				defer release()

				cert, err := svc.CreateSelfSigned(cmd.Context(), pair.Private, c.template())
				if err != nil {
					return fmt.Errorf("failed to create certificate: %w", err)
				}
				return c.saveAndPrint(cmd, ks, cert)
			})
		},
	}
	c.addTemplateFlags(selfsign)
	selfsign.Flags().Bool(optionNameCA, false, "mark the certificate as a CA")

	issue := &cobra.Command{
		Use:   "issue <issuer.pem>",
		Short: "Issue a certificate for a stored key, signed by another stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parents, err := readCertificates(cmd, args[0])
			if err != nil {
				return err
			}
			return c.withLocalCertificates(func(ks *localStore, svc *certificate.Service) error {
				subject, releaseSubject, err := ks.load(cmd.Context(), c.config.GetString(optionNameKey))
				if err != nil {
					return err
				}
				defer releaseSubject()
				issuer, releaseIssuer, err := ks.load(cmd.Context(), c.config.GetString(optionNameIssuerID))
				if err != nil {
					return err
				}
				defer releaseIssuer()

				cert, err := svc.Issue(cmd.Context(), c.template(), parents[0], subject.Public, issuer.Private)
				if err != nil {
					return fmt.Errorf("failed to issue certificate: %w", err)
				}
				return c.saveAndPrint(cmd, ks, cert)
			})
		},
	}
	c.addTemplateFlags(issue)
	issue.Flags().Bool(optionNameCA, false, "mark the certificate as a CA")
	issue.Flags().String(optionNameIssuerID, "", "id of the issuer's stored key")
	_ = issue.MarkFlagRequired(optionNameIssuerID)

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved certificate ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := c.openLocalStore()
			if err != nil {
				return err
			}
			defer ks.Close()
			store, err := certificate.NewStore(ks.storage)
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			return c.printer(cmd).PrintList("certificates", ids)
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved certificate as PEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := c.openLocalStore()
			if err != nil {
				return err
			}
			defer ks.Close()
			store, err := certificate.NewStore(ks.storage)
			if err != nil {
				return err
			}
			cert, err := store.Certificate(args[0])
			if err != nil {
				return err
			}
			return c.printer(cmd).PrintCertificates([]*x509.Certificate{cert})
		},
	}

	cmd.AddCommand(parse, validate, build, selfsign, issue, list, show)
	c.root.AddCommand(cmd)
}

func (c *command) addTemplateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(optionNameKey, "k", "", "id of the certificate's key")
	cmd.Flags().String(optionNameCN, "", "subject common name; defaults to the first DNS name")
	cmd.Flags().StringSlice(optionNameDNS, nil, "DNS subject alternative names")
	cmd.Flags().Int(optionNameDays, 365, "validity in days")
	cmd.Flags().String(optionNameSave, "", "also save the certificate under this id")
	_ = cmd.MarkFlagRequired(optionNameKey)
}

// template builds the certificate template from the command flags.
func (c *command) template() *x509.Certificate {
	dnsNames := c.config.GetStringSlice(optionNameDNS)
	cn := c.config.GetString(optionNameCN)
	if cn == "" && len(dnsNames) > 0 {
		cn = dnsNames[0]
	}
	now := time.Now().Add(-time.Minute)
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn},
		DNSNames:              dnsNames,
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, c.config.GetInt(optionNameDays)),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	if c.config.GetBool(optionNameCA) {
		tmpl.IsCA = true
		tmpl.KeyUsage |= x509.KeyUsageCertSign
	}
	return tmpl
}

func (c *command) saveAndPrint(cmd *cobra.Command, ks *localStore, cert *x509.Certificate) error {
	if id := c.config.GetString(optionNameSave); id != "" {
		store, err := certificate.NewStore(ks.storage)
		if err != nil {
			return err
		}
		if err := store.SaveCertificate(id, cert); err != nil {
			return err
		}
		c.logger.Debug("certificate saved", "id", id)
	}
	return c.printer(cmd).PrintCertificates([]*x509.Certificate{cert})
}

// withCertificateService runs fn with a service over scratch keys. Parsing
// and chain checks only import public keys.
func (c *command) withCertificateService(fn func(svc *certificate.Service) error) error {
	crypto, err := c.scratchCrypto()
	if err != nil {
		return err
	}
	svc, err := certificate.NewService(crypto, c.logger)
	if err != nil {
		return errors.Join(err, crypto.Close())
	}
	return errors.Join(fn(svc), crypto.Close())
}

func (c *command) withLocalCertificates(fn func(ks *localStore, svc *certificate.Service) error) error {
	ks, err := c.openLocalStore()
	if err != nil {
		return err
	}
	svc, err := certificate.NewService(ks.crypto, c.logger)
	if err != nil {
		return errors.Join(err, ks.Close())
	}
	return errors.Join(fn(ks, svc), ks.Close())
}

func readCertificates(cmd *cobra.Command, path string) ([]*x509.Certificate, error) {
	data, err := readFile(cmd, path)
	if err != nil {
		return nil, err
	}
	return encoding.DecodeCertificatesPEM(data)
}
