package extension

import (
	"time"

	"github.com/xraph/multitoken"
	"github.com/xraph/multitoken/plugin"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/store"
)

// Option configures the multitoken Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a multitoken.Option through to the underlying engine.
func WithLedgerOption(opt multitoken.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, multitoken.WithPlugin(p))
	}
}

// WithReceivers sets how receiving accounts are notified.
func WithReceivers(r receiver.Resolver) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, multitoken.WithReceivers(r))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents starting the ledger with the extension.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for ledger routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithOwner sets the account allowed to mint.
func WithOwner(owner string) Option {
	return func(e *Extension) { e.config.Owner = owner }
}

// WithApprovals enables the approval extension.
func WithApprovals() Option {
	return func(e *Extension) { e.config.EnableApprovals = true }
}

// WithMetadata enables the metadata extension.
func WithMetadata() Option {
	return func(e *Extension) { e.config.EnableMetadata = true }
}

// WithNotifyTimeout sets the receiver answer deadline.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.NotifyTimeout = d }
}

// WithPendingRetention sets how long settled transfers stay queryable.
func WithPendingRetention(d time.Duration) Option {
	return func(e *Extension) { e.config.PendingRetention = d }
}

// WithStoragePricePerByte sets the decimal price used for storage deposits.
func WithStoragePricePerByte(price string) Option {
	return func(e *Extension) { e.config.StoragePricePerByte = price }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
