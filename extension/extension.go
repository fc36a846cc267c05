// Package extension provides the Forge extension adapter for multitoken.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.multitoken" or
// "multitoken" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/multitoken"
	"github.com/xraph/multitoken/api"
	"github.com/xraph/multitoken/store"
	"github.com/xraph/multitoken/store/memory"
	"github.com/xraph/multitoken/token"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "multitoken"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Unified fungible and non-fungible token ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the multitoken ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *multitoken.Ledger
	store      store.Store
	ledgerOpts []multitoken.Option
	handler    http.Handler
}

// New creates a new multitoken Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *multitoken.Ledger { return e.engine }

// Handler returns the HTTP API mounted under the configured base path, or nil
// when routes are disabled. It is nil until Register is called.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = multitoken.New(e.store, e.buildLedgerOpts()...)

	if !e.config.DisableRoutes {
		h, err := e.buildHandler()
		if err != nil {
			return err
		}
		e.handler = h
	}

	return vessel.Provide(fapp.Container(), func() (*multitoken.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("multitoken: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("multitoken: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs multitoken.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []multitoken.Option {
	opts := make([]multitoken.Option, 0, len(e.ledgerOpts)+5)

	if e.config.Owner != "" {
		opts = append(opts, multitoken.WithOwner(token.AccountID(e.config.Owner)))
	}
	opts = append(opts,
		multitoken.WithApprovals(e.config.EnableApprovals),
		multitoken.WithMetadata(e.config.EnableMetadata),
		multitoken.WithNotifyTimeout(e.config.NotifyTimeout),
		multitoken.WithPendingRetention(e.config.PendingRetention),
	)

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

func (e *Extension) buildHandler() (http.Handler, error) {
	price, err := decimal.NewFromString(e.config.StoragePricePerByte)
	if err != nil {
		return nil, fmt.Errorf("multitoken: invalid storage_price_per_byte %q: %w", e.config.StoragePricePerByte, err)
	}

	routes := api.NewHandler(e.engine, price, nil).Routes()
	base := strings.TrimSuffix(e.config.BasePath, "/")
	if base == "" {
		return routes, nil
	}
	return http.StripPrefix(base, routes), nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("multitoken: configuration is required but not found in config files; " +
				"ensure 'extensions.multitoken' or 'multitoken' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("multitoken: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("owner", e.config.Owner),
		forge.F("enable_approvals", e.config.EnableApprovals),
		forge.F("enable_metadata", e.config.EnableMetadata),
		forge.F("notify_timeout", e.config.NotifyTimeout),
		forge.F("pending_retention", e.config.PendingRetention),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.multitoken" first (namespaced pattern).
	if cm.IsSet("extensions.multitoken") {
		if err := cm.Bind("extensions.multitoken", &cfg); err == nil {
			e.Logger().Debug("multitoken: loaded config from file",
				forge.F("key", "extensions.multitoken"),
			)
			return cfg, true
		}
		e.Logger().Warn("multitoken: failed to bind extensions.multitoken config",
			forge.F("error", "bind failed"),
		)
	}

	// Try top-level "multitoken" key.
	if cm.IsSet("multitoken") {
		if err := cm.Bind("multitoken", &cfg); err == nil {
			e.Logger().Debug("multitoken: loaded config from file",
				forge.F("key", "multitoken"),
			)
			return cfg, true
		}
		e.Logger().Warn("multitoken: failed to bind multitoken config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = defaults.NotifyTimeout
	}
	if cfg.PendingRetention == 0 {
		cfg.PendingRetention = defaults.PendingRetention
	}
	if cfg.StoragePricePerByte == "" {
		cfg.StoragePricePerByte = defaults.StoragePricePerByte
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableApprovals {
		yamlConfig.EnableApprovals = true
	}
	if programmaticConfig.EnableMetadata {
		yamlConfig.EnableMetadata = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Owner == "" && programmaticConfig.Owner != "" {
		yamlConfig.Owner = programmaticConfig.Owner
	}
	if yamlConfig.StoragePricePerByte == "" && programmaticConfig.StoragePricePerByte != "" {
		yamlConfig.StoragePricePerByte = programmaticConfig.StoragePricePerByte
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.NotifyTimeout == 0 && programmaticConfig.NotifyTimeout != 0 {
		yamlConfig.NotifyTimeout = programmaticConfig.NotifyTimeout
	}
	if yamlConfig.PendingRetention == 0 && programmaticConfig.PendingRetention != 0 {
		yamlConfig.PendingRetention = programmaticConfig.PendingRetention
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
