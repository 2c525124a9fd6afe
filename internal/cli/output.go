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
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/jeremyhahn/go-webcrypto/pkg/certificate"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

func (p *Printer) check() error {
	switch p.format {
	case OutputFormatText, OutputFormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKey prints a generated or imported key id
func (p *Printer) PrintKey(id string, alg types.AlgorithmName) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{"id": id, "algorithm": alg})
	}
	fmt.Fprintln(p.writer, id)
	return nil
}

// PrintKeyList prints stored key ids
func (p *Printer) PrintKeyList(ids []string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		if ids == nil {
			ids = []string{}
		}
		return p.printJSON(map[string]any{"keys": ids})
	}
	if len(ids) == 0 {
		fmt.Fprintln(p.writer, "No keys found")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(p.writer, id)
	}
	return nil
}

// PrintSignature prints a signature as standard base64
func (p *Printer) PrintSignature(signature []byte) error {
	if err := p.check(); err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(signature)
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{"signature": encoded})
	}
	fmt.Fprintln(p.writer, encoded)
	return nil
}

// PrintVerification prints the outcome of a verification
func (p *Printer) PrintVerification(valid bool) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{"valid": valid})
	}
	if valid {
		fmt.Fprintln(p.writer, "Signature valid")
	} else {
		fmt.Fprintln(p.writer, "Signature invalid")
	}
	return nil
}

// PrintKeyData prints exported key data. In text form spki is PEM, raw
// is base64 and jwk is indented JSON.
func (p *Printer) PrintKeyData(format types.KeyFormat, data provider.KeyData) error {
	if err := p.check(); err != nil {
		return err
	}

	switch d := data.(type) {
	case provider.JSONWebKey:
		if p.format == OutputFormatJSON {
			return p.printJSON(map[string]any{"format": format, "key": d.JWK})
		}
		out, err := d.MarshalIndent("", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(p.writer, string(out))
		return nil
	case provider.Bytes:
		if p.format == OutputFormatJSON {
			return p.printJSON(map[string]any{"format": format, "key": base64.StdEncoding.EncodeToString(d)})
		}
		if format == types.FormatSPKI {
			out, err := encoding.EncodePublicKeyPEM(d)
			if err != nil {
				return err
			}
			_, err = p.writer.Write(out)
			return err
		}
		fmt.Fprintln(p.writer, base64.StdEncoding.EncodeToString(d))
		return nil
	default:
		return fmt.Errorf("%w: %T", types.ErrInvalidFormat, data)
	}
}

// PrintBytes prints data under name as hex, or base64 when asBase64 is set
func (p *Printer) PrintBytes(name string, data []byte, asBase64 bool) error {
	if err := p.check(); err != nil {
		return err
	}
	encoded := hex.EncodeToString(data)
	if asBase64 {
		encoded = base64.StdEncoding.EncodeToString(data)
	}
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{name: encoded})
	}
	fmt.Fprintln(p.writer, encoded)
	return nil
}

// PrintToken prints a compact JWS
func (p *Printer) PrintToken(token string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{"token": token})
	}
	fmt.Fprintln(p.writer, token)
	return nil
}

// PrintCertificateData prints what ParseCertificate extracted
func (p *Printer) PrintCertificateData(data *certificate.Data) error {
	if err := p.check(); err != nil {
		return err
	}
	cert := data.Certificate
	publicKey := base64.StdEncoding.EncodeToString(data.PublicKey)
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{
			"algorithm":  data.Algorithm,
			"public_key": publicKey,
			"dns_names":  data.DNSNames,
			"issuer":     data.Issuer,
			"subject":    cert.Subject.String(),
			"serial":     cert.SerialNumber.String(),
			"not_before": cert.NotBefore,
			"not_after":  cert.NotAfter,
		})
	}
	fmt.Fprintf(p.writer, "Subject:    %s\n", cert.Subject)
	fmt.Fprintf(p.writer, "Issuer:     %s\n", data.Issuer)
	fmt.Fprintf(p.writer, "DNS Names:  %s\n", strings.Join(data.DNSNames, ", "))
	fmt.Fprintf(p.writer, "Algorithm:  %s\n", data.Algorithm)
	fmt.Fprintf(p.writer, "Public Key: %s\n", publicKey)
	fmt.Fprintf(p.writer, "Serial:     %s\n", cert.SerialNumber)
	fmt.Fprintf(p.writer, "Valid:      %s to %s\n", cert.NotBefore.UTC().Format("2006-01-02"), cert.NotAfter.UTC().Format("2006-01-02"))
	return nil
}

// PrintCertificates prints certificates as a PEM bundle in order
func (p *Printer) PrintCertificates(certs []*x509.Certificate) error {
	if err := p.check(); err != nil {
		return err
	}
	bundle, err := encoding.EncodeCertificatesPEM(certs)
	if err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		subjects := make([]string, len(certs))
		for i, cert := range certs {
			subjects[i] = cert.Subject.String()
		}
		return p.printJSON(map[string]any{"subjects": subjects, "pem": string(bundle)})
	}
	_, err = p.writer.Write(bundle)
	return err
}

// PrintList prints names under a heading
func (p *Printer) PrintList(name string, items []string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		if items == nil {
			items = []string{}
		}
		return p.printJSON(map[string]any{name: items})
	}
	for _, item := range items {
		fmt.Fprintln(p.writer, item)
	}
	return nil
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{"success": true, "message": message})
	}
	fmt.Fprintln(p.writer, message)
	return nil
}

// PrintVersion prints build information
func (p *Printer) PrintVersion() error {
	if err := p.check(); err != nil {
		return err
	}
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]any{
			"version":    Version,
			"commit":     GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		})
	}
	fmt.Fprintf(p.writer, "webcrypto version %s\n", Version)
	fmt.Fprintf(p.writer, "Git commit: %s\n", GitCommit)
	fmt.Fprintf(p.writer, "Build date: %s\n", BuildDate)
	fmt.Fprintf(p.writer, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(p.writer, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}

func (p *Printer) printJSON(v any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
