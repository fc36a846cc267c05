package extension

import "time"

// Config holds the multitoken extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.multitoken" or "multitoken" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents starting the ledger (and migrating its store)
	// with the extension.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for ledger routes (default: "/multitoken").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Owner is the account allowed to mint. Required the first time the
	// ledger is started on an empty store.
	Owner string `json:"owner" mapstructure:"owner" yaml:"owner"`

	// EnableApprovals turns on the approval extension for new ledgers.
	EnableApprovals bool `json:"enable_approvals" mapstructure:"enable_approvals" yaml:"enable_approvals"`

	// EnableMetadata turns on the metadata extension for new ledgers.
	EnableMetadata bool `json:"enable_metadata" mapstructure:"enable_metadata" yaml:"enable_metadata"`

	// NotifyTimeout bounds how long a receiver may take to answer a
	// transfer-and-notify before it is reverted (default: 30s).
	NotifyTimeout time.Duration `json:"notify_timeout" mapstructure:"notify_timeout" yaml:"notify_timeout"`

	// PendingRetention is how long settled transfer-and-notify calls stay
	// queryable (default: 10m).
	PendingRetention time.Duration `json:"pending_retention" mapstructure:"pending_retention" yaml:"pending_retention"`

	// StoragePricePerByte prices storage costs on the storage route, as a
	// decimal string (default: "0").
	StoragePricePerByte string `json:"storage_price_per_byte" mapstructure:"storage_price_per_byte" yaml:"storage_price_per_byte"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:            "/multitoken",
		NotifyTimeout:       30 * time.Second,
		PendingRetention:    10 * time.Minute,
		StoragePricePerByte: "0",
	}
}
