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


// Package health runs liveness and readiness checks for the custodian
// server. Readiness checks probe the wallet's backend.
package health

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/crypto/rand"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc performs a health check. A non-nil error marks the component
// unhealthy.
type CheckFunc func(ctx context.Context) error

// DefaultTimeout bounds every readiness check.
const DefaultTimeout = 2 * time.Second

// Checker runs named readiness checks. It is safe for concurrent use.
type Checker struct {
	mu      sync.RWMutex
	started time.Time
	ready   bool
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewChecker returns a checker that is not ready until MarkReady.
func NewChecker() *Checker {
	return &Checker{
		started: time.Now(),
		checks:  make(map[string]CheckFunc),
		timeout: DefaultTimeout,
	}
}

// Register adds or replaces a check.
func (c *Checker) Register(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// MarkReady flips readiness on or off. The server turns it off when it
// begins shutting down.
func (c *Checker) MarkReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// Live reports that the process is serving.
func (c *Checker) Live(context.Context) CheckResult {
	return CheckResult{
		Name:    "liveness",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("uptime %s", c.Uptime().Round(time.Second)),
	}
}

// Ready runs every check, ordered by name. Results are unhealthy while the
// checker is not marked ready.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	ready := c.ready
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	if !ready {
		return []CheckResult{{Name: "startup", Status: StatusUnhealthy, Message: "not ready"}}
	}

	slices.Sort(names)
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		results = append(results, c.run(ctx, name, checks[name]))
	}
	return results
}

func (c *Checker) run(ctx context.Context, name string, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := CheckResult{Name: name, Status: StatusHealthy, Latency: time.Since(start)}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			result.Status = StatusDegraded
		}
	}
	return result
}

// Uptime returns the time since NewChecker.
func (c *Checker) Uptime() time.Duration {
	return time.Since(c.started)
}

// AggregateStatus returns the worst status in results.
func AggregateStatus(results []CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// RandomCheck draws one block from source.
func RandomCheck(source rand.Source) CheckFunc {
	return func(ctx context.Context) error {
		_, err := source.Random(ctx, rand.DefaultBlockSize)
		return err
	}
}

const probeKey = "health/probe"

// StorageCheck probes store with a key that never exists. Only storage
// errors other than a miss fail the check.
func StorageCheck(store storage.Backend) CheckFunc {
	return func(context.Context) error {
		_, err := store.Exists(probeKey)
		return err
	}
}
