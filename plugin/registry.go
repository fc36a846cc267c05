package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/receiver"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onTokenMinted      []OnTokenMinted
	onTransfer         []OnTransfer
	onApprovalChanged  []OnApprovalChanged
	onNotifyDispatched []OnNotifyDispatched
	onTransferResolved []OnTransferResolved
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets how long a single plugin call may run.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTokenMinted); ok {
		r.onTokenMinted = append(r.onTokenMinted, v)
	}
	if v, ok := p.(OnTransfer); ok {
		r.onTransfer = append(r.onTransfer, v)
	}
	if v, ok := p.(OnApprovalChanged); ok {
		r.onApprovalChanged = append(r.onApprovalChanged, v)
	}
	if v, ok := p.(OnNotifyDispatched); ok {
		r.onNotifyDispatched = append(r.onNotifyDispatched, v)
	}
	if v, ok := p.(OnTransferResolved); ok {
		r.onTransferResolved = append(r.onTransferResolved, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnTokenMinted)(nil)).Elem(), "OnTokenMinted")
	checkInterface(reflect.TypeOf((*OnTransfer)(nil)).Elem(), "OnTransfer")
	checkInterface(reflect.TypeOf((*OnApprovalChanged)(nil)).Elem(), "OnApprovalChanged")
	checkInterface(reflect.TypeOf((*OnNotifyDispatched)(nil)).Elem(), "OnNotifyDispatched")
	checkInterface(reflect.TypeOf((*OnTransferResolved)(nil)).Elem(), "OnTransferResolved")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, ledger)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTokenMinted emits a token minted event.
func (r *Registry) EmitTokenMinted(ctx context.Context, ev *event.Mint) {
	r.mu.RLock()
	plugins := r.onTokenMinted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTokenMinted(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnTokenMinted failed",
				"plugin", p.Name(),
				"token_id", ev.TokenID,
				"error", err,
			)
		}
	}
}

// EmitTransfer emits a transfer event.
func (r *Registry) EmitTransfer(ctx context.Context, ev *event.Transfer) {
	r.mu.RLock()
	plugins := r.onTransfer
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransfer(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnTransfer failed",
				"plugin", p.Name(),
				"token_id", ev.TokenID,
				"error", err,
			)
		}
	}
}

// EmitApprovalChanged emits an approval changed event.
func (r *Registry) EmitApprovalChanged(ctx context.Context, ev *event.Approval) {
	r.mu.RLock()
	plugins := r.onApprovalChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnApprovalChanged(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnApprovalChanged failed",
				"plugin", p.Name(),
				"token_id", ev.TokenID,
				"error", err,
			)
		}
	}
}

// EmitNotifyDispatched emits a notify dispatched event.
func (r *Registry) EmitNotifyDispatched(ctx context.Context, n *receiver.Notification) {
	r.mu.RLock()
	plugins := r.onNotifyDispatched
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnNotifyDispatched(ctx, n)
		}); err != nil {
			r.logger.Warn("plugin OnNotifyDispatched failed",
				"plugin", p.Name(),
				"transfer_id", n.TransferID,
				"error", err,
			)
		}
	}
}

// EmitTransferResolved emits a transfer resolved event.
func (r *Registry) EmitTransferResolved(ctx context.Context, res *event.Resolution) {
	r.mu.RLock()
	plugins := r.onTransferResolved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransferResolved(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnTransferResolved failed",
				"plugin", p.Name(),
				"transfer_id", res.PendingID,
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
