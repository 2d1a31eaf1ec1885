// Package handlers contains the readiness checks served by the ops HTTP server.
package handlers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// READINESS CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// CheckFunc probes a single dependency. A non-nil error marks it unready.
type CheckFunc func(ctx context.Context) error

// Pinger is satisfied by the postgres connection and the redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// ErrNotRunning is reported while the event router has not started consuming.
var ErrNotRunning = errors.New("not running")

// RunningCheck reports ready once running is closed.
func RunningCheck(running func() chan struct{}) CheckFunc {
	return func(ctx context.Context) error {
		select {
		case <-running():
			return nil
		default:
			return ErrNotRunning
		}
	}
}

// Status is the body of /readyz.
type Status struct {
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Ready    bool   `json:"ready"`
	Message  string `json:"message"`
	Duration string `json:"duration"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// Readiness runs every registered check concurrently, each bounded by its
// own timeout.
type Readiness struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	started time.Time
	version string
	timeout time.Duration
	now     func() time.Time
}

// NewReadiness creates an empty checker. Without checks it reports ready.
func NewReadiness(version string, timeout time.Duration) *Readiness {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Readiness{
		checks:  make(map[string]CheckFunc),
		started: time.Now(),
		version: version,
		timeout: timeout,
		now:     time.Now,
	}
}

// Add registers a named check, replacing any check with the same name.
func (r *Readiness) Add(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Uptime is the time since the checker was created.
func (r *Readiness) Uptime() time.Duration {
	return r.now().Sub(r.started)
}

// Version returns the build version reported by the checker.
func (r *Readiness) Version() string {
	return r.version
}

// Check probes all dependencies.
func (r *Readiness) Check(ctx context.Context) Status {
	r.mu.RLock()
	checks := make(map[string]CheckFunc, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	status := Status{
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    r.Uptime().Round(time.Second).String(),
		Version:   r.version,
		Timestamp: r.now().UTC(),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := r.run(ctx, check)
			mu.Lock()
			status.Checks[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	var failed []string
	for name, result := range status.Checks {
		if !result.Ready {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		slices.Sort(failed)
		status.Ready = false
		status.Message = "unready: " + strings.Join(failed, ", ")
	}
	return status
}

func (r *Readiness) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := CheckResult{
		Ready:    err == nil,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		result.Message = err.Error()
	}
	return result
}
