// Package supervisor builds the worker's suture supervision tree.
//
//	completion-core (root)
//	├── messaging: event router
//	├── maintenance: scheduler
//	└── ops: HTTP server
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds restart policy for every supervisor in the tree.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor and its layer children.
type Tree struct {
	root        *suture.Supervisor
	messaging   *suture.Supervisor
	maintenance *suture.Supervisor
	ops         *suture.Supervisor
}

// NewTree builds the tree. Supervisor events are logged through slog.
func NewTree(name string, logger *slog.Logger, config TreeConfig) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	handler := &sutureslog.Handler{Logger: logger.With("component", "supervisor")}
	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = handler.MustHook()

	t := &Tree{
		root:        suture.New(name, rootSpec),
		messaging:   suture.New("messaging", spec),
		maintenance: suture.New("maintenance", spec),
		ops:         suture.New("ops", spec),
	}
	t.root.Add(t.messaging)
	t.root.Add(t.maintenance)
	t.root.Add(t.ops)
	return t
}

// AddMessagingService adds a consumer-side service such as the event router.
func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddMaintenanceService adds a background job runner.
func (t *Tree) AddMaintenanceService(svc suture.Service) suture.ServiceToken {
	return t.maintenance.Add(svc)
}

// AddOpsService adds an operations endpoint.
func (t *Tree) AddOpsService(svc suture.Service) suture.ServiceToken {
	return t.ops.Add(svc)
}

// Serve blocks until ctx is cancelled or a service terminates the tree.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// UnstoppedServiceReport lists services that ignored shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
