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


package custodian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/correlation"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the custodian server, for example https://custodian:8443.
	BaseURL string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Zero means 30 seconds.
	Timeout time.Duration

	// Token is sent as a bearer token when set.
	Token string

	Logger *logging.Logger
}

// Client is a Capability backed by a remote Wallet.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     *logging.Logger
	closed     atomic.Bool
}

var (
	_ provider.Capability[string]           = (*Client)(nil)
	_ provider.ExtractableGenerator[string] = (*Client)(nil)
)

// NewClient returns a Client for config.BaseURL. No request is made until
// the first operation.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil || config.BaseURL == "" {
		return nil, ErrURLRequired
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", ErrURLRequired, config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: httpClient,
		token:      config.Token,
		logger:     logger.With("component", "custodian-client"),
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	if c.closed.Load() {
		return ErrClosed
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	correlation.SetHeader(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Debug("custodian request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"correlation_id", req.Header.Get(correlation.Header),
		"duration", time.Since(start))

	if resp.StatusCode >= 400 {
		remote := &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			remote.Code = errResp.Code
			remote.Message = errResp.Message
		}
		return remote
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func keyPath(id, suffix string) string {
	return PathKeys + "/" + url.PathEscape(id) + suffix
}

// Generate creates a non-extractable key on the server.
func (c *Client) Generate(ctx context.Context, alg types.Algorithm) (string, error) {
	return c.GenerateExtractable(ctx, alg, false)
}

// GenerateExtractable creates a key on the server, which records
// extractable and enforces it on export.
func (c *Client) GenerateExtractable(ctx context.Context, alg types.Algorithm, extractable bool) (string, error) {
	var resp KeyResponse
	req := &GenerateRequest{Algorithm: alg, Extractable: extractable}
	if err := c.doRequest(ctx, http.MethodPost, PathKeys, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) ImportKey(ctx context.Context, format types.KeyFormat, data provider.KeyData, alg types.Algorithm, extractable bool, usages types.KeyUsage) (string, error) {
	wire, err := NewKeyData(data)
	if err != nil {
		return "", err
	}
	req := &ImportRequest{
		Format:      format,
		Algorithm:   alg,
		Extractable: extractable,
		Usages:      usages.Strings(),
		Data:        wire,
	}
	var resp KeyResponse
	if err := c.doRequest(ctx, http.MethodPost, PathImport, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Sign(ctx context.Context, key provider.CallbackKey[string], message []byte, alg types.Algorithm) ([]byte, error) {
	var resp SignResponse
	req := &SignRequest{Algorithm: alg, Message: message}
	if err := c.doRequest(ctx, http.MethodPost, keyPath(key.Value, SuffixSign), req, &resp); err != nil {
		return nil, err
	}
	return resp.Signature, nil
}

func (c *Client) Verify(ctx context.Context, key provider.CallbackKey[string], alg types.Algorithm, message, signature []byte) (bool, error) {
	var resp VerifyResponse
	req := &VerifyRequest{Algorithm: alg, Message: message, Signature: signature}
	if err := c.doRequest(ctx, http.MethodPost, keyPath(key.Value, SuffixVerify), req, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// ExportKey sends the handle attributes along so the server exports the
// same role the caller holds. The server applies its own extractability.
func (c *Client) ExportKey(ctx context.Context, format types.KeyFormat, key provider.CallbackKey[string]) (provider.KeyData, error) {
	var resp ExportResponse
	req := &ExportRequest{Format: format, Attributes: NewAttributes(key.Attributes)}
	if err := c.doRequest(ctx, http.MethodPost, keyPath(key.Value, SuffixExport), req, &resp); err != nil {
		return nil, err
	}
	return resp.Data.KeyData()
}

// Random asks the server for n bytes.
func (c *Client) Random(ctx context.Context, n int) ([]byte, error) {
	var resp RandomResponse
	if err := c.doRequest(ctx, http.MethodPost, PathRandom, &RandomRequest{Length: n}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Bytes) != n {
		return nil, fmt.Errorf("custodian: random returned %d of %d bytes", len(resp.Bytes), n)
	}
	return resp.Bytes, nil
}

// Delete removes a key from the server.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, keyPath(id, ""), nil, nil)
}

// Keys lists the ids held by the server.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	var resp ListResponse
	if err := c.doRequest(ctx, http.MethodGet, PathKeys, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Close releases idle connections. Keys on the server are left in place.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}
