// Package receiver defines how the ledger notifies the receiving account of a
// transfer-and-notify call and how the receiver answers.
//
// A receiver inspects the tokens it was sent and returns a Verdict listing,
// per token, how much it wants returned to the previous owner. Receivers are
// located through a Resolver, typically a Directory of in-process receivers
// or Webhook endpoints.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/multitoken/id"
	"github.com/xraph/multitoken/token"
)

// ErrMalformedVerdict is returned when a verdict's refund list does not line
// up with the tokens that were sent.
var ErrMalformedVerdict = errors.New("receiver: malformed verdict")

// Notification is delivered to the receiving account after the tokens have
// been moved to it.
type Notification struct {
	TransferID     id.TransferID     `json:"transfer_id"`
	Sender         token.AccountID   `json:"sender_id"`
	Receiver       token.AccountID   `json:"receiver_id"`
	PreviousOwners []token.AccountID `json:"previous_owner_ids"`
	TokenIDs       []token.ID        `json:"token_ids"`
	Amounts        []token.Amount    `json:"amounts"`
	Message        string            `json:"msg"`
}

// Verdict is a receiver's answer. Refunds is either empty, meaning keep
// everything, or holds one amount per token in notification order.
type Verdict struct {
	Refunds []token.Amount `json:"refunds"`
}

// Accept keeps every token.
func Accept() *Verdict { return &Verdict{} }

// Reject returns every token of n.
func Reject(n *Notification) *Verdict {
	return &Verdict{Refunds: append([]token.Amount(nil), n.Amounts...)}
}

// Refund returns the given amounts, one per token.
func Refund(amounts ...token.Amount) *Verdict {
	return &Verdict{Refunds: amounts}
}

// Check validates v against a notification carrying n tokens.
func (v *Verdict) Check(n int) error {
	if v == nil || len(v.Refunds) == 0 || len(v.Refunds) == n {
		return nil
	}
	return fmt.Errorf("%w: %d refunds for %d tokens", ErrMalformedVerdict, len(v.Refunds), n)
}

// RefundAt returns the refund requested for item i.
func (v *Verdict) RefundAt(i int) token.Amount {
	if v == nil || i >= len(v.Refunds) {
		return 0
	}
	return v.Refunds[i]
}

// Receiver handles transfer notifications.
type Receiver interface {
	OnTransfer(ctx context.Context, n *Notification) (*Verdict, error)
}

// Func adapts a function to Receiver.
type Func func(ctx context.Context, n *Notification) (*Verdict, error)

// OnTransfer implements Receiver.
func (f Func) OnTransfer(ctx context.Context, n *Notification) (*Verdict, error) {
	return f(ctx, n)
}

// Resolver locates the receiver of an account.
type Resolver interface {
	Lookup(account token.AccountID) (Receiver, bool)
}

// compile-time interface check
var _ Resolver = (*Directory)(nil)

// Directory is a concurrency-safe Resolver backed by a map.
type Directory struct {
	mu        sync.RWMutex
	receivers map[token.AccountID]Receiver
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{receivers: make(map[token.AccountID]Receiver)}
}

// Register binds r to account, replacing any previous binding.
func (d *Directory) Register(account token.AccountID, r Receiver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receivers[account] = r
}

// Unregister removes the binding of account.
func (d *Directory) Unregister(account token.AccountID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.receivers, account)
}

// Lookup implements Resolver.
func (d *Directory) Lookup(account token.AccountID) (Receiver, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.receivers[account]
	return r, ok
}
