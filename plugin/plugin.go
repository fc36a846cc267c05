// Package plugin provides an extensible plugin system for the multi-token
// ledger. Plugins hook into lifecycle and ledger events; every hook runs
// after the change it describes has been committed.
package plugin

import (
	"context"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/receiver"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTokenMinted is called when a token is created.
type OnTokenMinted interface {
	Plugin
	OnTokenMinted(ctx context.Context, ev *event.Mint) error
}

// OnTransfer is called once per token moved, including reverts.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, ev *event.Transfer) error
}

// OnApprovalChanged is called when an approval is granted or revoked.
type OnApprovalChanged interface {
	Plugin
	OnApprovalChanged(ctx context.Context, ev *event.Approval) error
}

// ──────────────────────────────────────────────────
// Transfer-and-notify hooks
// ──────────────────────────────────────────────────

// OnNotifyDispatched is called before the receiver is notified.
type OnNotifyDispatched interface {
	Plugin
	OnNotifyDispatched(ctx context.Context, n *receiver.Notification) error
}

// OnTransferResolved is called when a transfer-and-notify settles.
type OnTransferResolved interface {
	Plugin
	OnTransferResolved(ctx context.Context, res *event.Resolution) error
}
