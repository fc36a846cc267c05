// Package multitoken provides a unified ledger for fungible and non-fungible
// tokens in Go applications.
//
// Multitoken is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - One token ID namespace shared by fungible (balance based) and
//     non-fungible (ownership based) tokens
//   - Single and all-or-nothing batch transfers with owner and approval checks
//   - Transfer-and-notify: apply a transfer, tell the receiver, and return
//     whatever the receiver rejects
//   - Storage costs measured once by construction, priced with decimal deposits
//   - Optional approval and metadata extensions
//   - Pluggable storage (memory, LevelDB, PostgreSQL, SQLite, MongoDB)
//   - Lifecycle hooks for auditing and metrics
//
// # Quick Start
//
// Create a ledger with your preferred store:
//
//	import (
//	    "github.com/xraph/multitoken"
//	    "github.com/xraph/multitoken/store/memory"
//	)
//
//	l := multitoken.New(memory.New(),
//	    multitoken.WithOwner("treasury"),
//	    multitoken.WithApprovals(true),
//	)
//
//	// Start measures storage costs on a new store and loads them afterwards.
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Tokens are minted by the ledger owner. A fungible token has a supply split
// across holder rows; a non-fungible token has exactly one owner:
//
//	_, err := l.Mint(ctx, "treasury", multitoken.MintRequest{
//	    TokenID: "gold",
//	    Type:    multitoken.Fungible,
//	    Owner:   "alice",
//	    Amount:  100,
//	})
//
// Transfers move tokens between accounts. A batch either applies completely or
// not at all:
//
//	receipts, err := l.BatchTransfer(ctx, multitoken.BatchTransferRequest{
//	    Sender:   "alice",
//	    Receiver: "bob",
//	    TokenIDs: []multitoken.TokenID{"gold", "sword-1"},
//	    Amounts:  []multitoken.Amount{40, 1},
//	})
//
// An approved account may move a non-fungible token on the owner's behalf.
// Every successful transfer clears the token's approvals.
//
// # Transfer and Notify
//
// TransferCall applies the transfer immediately and notifies the receiver in
// the background. The receiver answers with a verdict naming what to refund:
//
//	dir := receiver.NewDirectory()
//	dir.Register("market", receiver.Func(func(ctx context.Context, n *receiver.Notification) (*receiver.Verdict, error) {
//	    return receiver.Accept(), nil
//	}))
//
//	p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{...})
//	res, err := p.Wait(ctx)
//
// If the receiver errors or does not answer in time, every token is returned.
// A non-fungible token is only returned if the receiver still owns it, and a
// fungible refund never exceeds the receiver's current balance.
//
// # Storage
//
// Available store implementations:
//
//   - store/memory: In-memory store for testing and development
//   - store/leveldb: Embedded LevelDB store
//   - store/postgres: PostgreSQL store for production
//   - store/sqlite: SQLite store for single-node deployments
//   - store/mongo: MongoDB store
//
// # Plugins
//
// Extend multitoken through lifecycle hooks:
//
//	type MyPlugin struct{}
//
//	func (p *MyPlugin) Name() string { return "my-plugin" }
//
//	func (p *MyPlugin) OnTransfer(ctx context.Context, ev *event.Transfer) error {
//	    // Custom logic here
//	    return nil
//	}
//
//	l := multitoken.New(store, multitoken.WithPlugin(&MyPlugin{}))
//
// Available hooks: OnInit, OnShutdown, OnTokenMinted, OnTransfer,
// OnApprovalChanged, OnNotifyDispatched and OnTransferResolved.
package multitoken
