package multitoken

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/xraph/multitoken/plugin"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/store"
	"github.com/xraph/multitoken/token"
)

// Defaults for the transfer-and-notify protocol.
const (
	DefaultNotifyTimeout    = 30 * time.Second
	DefaultPendingRetention = 10 * time.Minute
)

// Ledger is the multi-token engine. All exported methods are safe for
// concurrent use; top-level calls are serialised on a single mutex and the
// only work done outside it is notifying receivers.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	owner   token.AccountID
	costs   token.StorageCosts
	started bool
	stopped bool

	// Extensions
	useApprovals bool
	useMetadata  bool
	approvals    approvalExtension
	metadata     metadataExtension

	// Transfer-and-notify
	receivers     receiver.Resolver
	notifyTimeout time.Duration
	retention     time.Duration
	sweepInterval time.Duration
	pending       *cache.Cache
	notifyCtx     context.Context
	cancelNotify  context.CancelFunc
	wg            sync.WaitGroup
}

// New creates a new Ledger instance. The ledger is unusable until Start.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		now:           time.Now,
		receivers:     receiver.NewDirectory(),
		notifyTimeout: DefaultNotifyTimeout,
		retention:     DefaultPendingRetention,
		sweepInterval: time.Minute,
	}

	for _, opt := range opts {
		opt(l)
	}

	// Expired entries are swept by the ledger between Start and Stop, not by
	// the cache's own janitor.
	l.pending = cache.New(l.retention, 0)
	l.pending.OnEvicted(l.evicted)
	l.setExtensions(l.useApprovals, l.useMetadata)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithOwner sets the account allowed to mint. It is required the first time a
// ledger is started and must match the stored owner afterwards.
func WithOwner(owner token.AccountID) Option {
	return func(l *Ledger) {
		l.owner = owner
	}
}

// WithApprovals enables the approval extension for non-fungible tokens.
func WithApprovals(enabled bool) Option {
	return func(l *Ledger) {
		l.useApprovals = enabled
	}
}

// WithMetadata enables the metadata extension.
func WithMetadata(enabled bool) Option {
	return func(l *Ledger) {
		l.useMetadata = enabled
	}
}

// WithReceivers sets how receiving accounts are notified by TransferCall.
func WithReceivers(r receiver.Resolver) Option {
	return func(l *Ledger) {
		l.receivers = r
	}
}

// WithNotifyTimeout bounds how long a receiver may take to answer before the
// transfer is reverted.
func WithNotifyTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.notifyTimeout = d
		}
	}
}

// WithPendingRetention sets how long a settled transfer-and-notify stays
// queryable through Pending.
func WithPendingRetention(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func (l *Ledger) setExtensions(approvals, metadata bool) {
	l.useApprovals, l.useMetadata = approvals, metadata
	l.approvals = newApprovalExtension(approvals)
	l.metadata = newMetadataExtension(metadata)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start migrates the store and loads the ledger header. On an empty store it
// measures storage costs and writes a new header.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.open(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("multitoken ledger started",
		"owner", l.owner,
		"approvals", l.useApprovals,
		"metadata", l.useMetadata,
		"ft_creation_bytes", l.costs.FTCreation,
		"ft_balance_row_bytes", l.costs.FTBalanceRow,
		"nft_full_row_bytes", l.costs.NFTFull,
	)

	return nil
}

func (l *Ledger) open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.stopped:
		return ErrStopped
	case l.started:
		return nil
	}

	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("multitoken: migrate: %w", err)
	}

	tx := state.Begin(l.store)
	defer tx.Discard()

	h, ok, err := tx.Header(ctx)
	if err != nil {
		return err
	}
	if ok {
		if err := l.adopt(h); err != nil {
			return err
		}
	} else {
		if err := l.initialize(ctx, tx); err != nil {
			return err
		}
	}

	l.notifyCtx, l.cancelNotify = context.WithCancel(context.Background())
	l.started = true

	l.wg.Add(1)
	go l.sweep(l.notifyCtx)
	return nil
}

// adopt loads a stored header. The stored owner and extensions win; a
// different configured owner is an error.
func (l *Ledger) adopt(h *state.Header) error {
	if h.Version > state.HeaderVersion {
		return fmt.Errorf("%w: layout version %d is newer than %d", ErrHeaderMismatch, h.Version, state.HeaderVersion)
	}
	if l.owner != "" && l.owner != h.Owner {
		return fmt.Errorf("%w: owner is %q, configured %q", ErrHeaderMismatch, h.Owner, l.owner)
	}
	if h.Approvals != l.useApprovals || h.Metadata != l.useMetadata {
		l.logger.Warn("extension settings differ from stored ledger, using stored settings",
			"approvals", h.Approvals,
			"metadata", h.Metadata,
		)
	}

	l.owner = h.Owner
	l.costs = h.Costs
	l.setExtensions(h.Approvals, h.Metadata)
	return nil
}

func (l *Ledger) initialize(ctx context.Context, tx *state.Tx) error {
	if err := l.owner.Validate(); err != nil {
		return ValidationError{Field: "owner", Message: err.Error()}
	}

	usage, err := tx.Usage(ctx)
	if err != nil {
		return err
	}
	if usage > 0 {
		return fmt.Errorf("%w: %d bytes in use", ErrLedgerNotEmpty, usage)
	}

	costs, err := measure(ctx, l.store, l.approvals, l.metadata)
	if err != nil {
		return err
	}

	err = tx.PutHeader(ctx, &state.Header{
		Version:   state.HeaderVersion,
		Owner:     l.owner,
		Costs:     costs,
		Approvals: l.useApprovals,
		Metadata:  l.useMetadata,
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	l.costs = costs
	return nil
}

// Stop settles every outstanding transfer-and-notify as failed, notifies
// plugins and closes the store.
func (l *Ledger) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	cancel := l.cancelNotify
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// ready reports whether the ledger accepts calls. Callers hold l.mu.
func (l *Ledger) ready() error {
	switch {
	case l.stopped:
		return ErrStopped
	case !l.started:
		return ErrNotStarted
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Owner returns the account allowed to mint.
func (l *Ledger) Owner() token.AccountID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// StorageCosts returns the byte costs measured when the ledger was created.
func (l *Ledger) StorageCosts() token.StorageCosts {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.costs
}

// ApprovalsEnabled reports whether the approval extension is active.
func (l *Ledger) ApprovalsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.useApprovals
}

// MetadataEnabled reports whether the metadata extension is active.
func (l *Ledger) MetadataEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.useMetadata
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry {
	return l.plugins
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store {
	return l.store
}
