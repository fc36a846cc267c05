package multitoken

import (
	"context"
	"fmt"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/id"
	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/token"
)

// approvalExtension is the optional approval registry for non-fungible
// tokens. It is chosen once when the ledger is built; the disabled variant
// behaves as a registry that never holds an approval.
type approvalExtension interface {
	enabled() bool
	lookup(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Approvals, bool, error)
	// clear drops every approval of tokenID and returns what was dropped.
	clear(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Approvals, error)
	grant(ctx context.Context, tx *state.Tx, tokenID token.ID, account token.AccountID) (token.ApprovalSeq, error)
	revoke(ctx context.Context, tx *state.Tx, tokenID token.ID, account token.AccountID) (bool, error)
	// view returns nil when disabled and a non-nil map otherwise.
	view(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Approvals, error)
}

func newApprovalExtension(enabled bool) approvalExtension {
	if enabled {
		return approvalRegistry{}
	}
	return noApprovals{}
}

type approvalRegistry struct{}

func (approvalRegistry) enabled() bool { return true }

func (approvalRegistry) lookup(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Approvals, bool, error) {
	return tx.Approvals(ctx, tokenID)
}

func (approvalRegistry) clear(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Approvals, error) {
	prev, ok, err := tx.Approvals(ctx, tokenID)
	if err != nil || !ok {
		return nil, err
	}
	if err := tx.DeleteApprovals(ctx, tokenID); err != nil {
		return nil, err
	}
	return prev, nil
}

func (approvalRegistry) grant(ctx context.Context, tx *state.Tx, tokenID token.ID, account token.AccountID) (token.ApprovalSeq, error) {
	seq, ok, err := tx.NextApprovalSeq(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	if !ok {
		seq = 1
	}

	approvals, _, err := tx.Approvals(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	if approvals == nil {
		approvals = make(token.Approvals, 1)
	}
	approvals[account] = seq

	if err := tx.PutApprovals(ctx, tokenID, approvals); err != nil {
		return 0, err
	}
	if err := tx.PutNextApprovalSeq(ctx, tokenID, seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

func (approvalRegistry) revoke(ctx context.Context, tx *state.Tx, tokenID token.ID, account token.AccountID) (bool, error) {
	approvals, ok, err := tx.Approvals(ctx, tokenID)
	if err != nil || !ok {
		return false, err
	}
	if _, ok := approvals[account]; !ok {
		return false, nil
	}
	delete(approvals, account)
	if len(approvals) == 0 {
		return true, tx.DeleteApprovals(ctx, tokenID)
	}
	return true, tx.PutApprovals(ctx, tokenID, approvals)
}

func (approvalRegistry) view(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Approvals, error) {
	approvals, ok, err := tx.Approvals(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return token.Approvals{}, nil
	}
	return approvals, nil
}

type noApprovals struct{}

func (noApprovals) enabled() bool { return false }

func (noApprovals) lookup(context.Context, *state.Tx, token.ID) (token.Approvals, bool, error) {
	return nil, false, nil
}

func (noApprovals) clear(context.Context, *state.Tx, token.ID) (token.Approvals, error) {
	return nil, nil
}

func (noApprovals) grant(context.Context, *state.Tx, token.ID, token.AccountID) (token.ApprovalSeq, error) {
	return 0, ErrApprovalsDisabled
}

func (noApprovals) revoke(context.Context, *state.Tx, token.ID, token.AccountID) (bool, error) {
	return false, ErrApprovalsDisabled
}

func (noApprovals) view(context.Context, *state.Tx, token.ID) (token.Approvals, error) {
	return nil, nil
}

// ──────────────────────────────────────────────────
// Approval management
// ──────────────────────────────────────────────────

// Approve lets account transfer a non-fungible token on behalf of its owner.
// Only the current owner may approve. Approving an account again replaces its
// sequence number; sequence numbers are never reused for a token.
func (l *Ledger) Approve(ctx context.Context, caller token.AccountID, tokenID token.ID, account token.AccountID) (token.ApprovalSeq, error) {
	if err := validate(tokenID, caller, account); err != nil {
		return 0, err
	}

	l.mu.Lock()
	ev, err := l.approve(ctx, caller, tokenID, account)
	l.mu.Unlock()
	if err != nil {
		return 0, err
	}

	l.plugins.EmitApprovalChanged(ctx, ev)
	return ev.Seq, nil
}

func (l *Ledger) approve(ctx context.Context, caller token.AccountID, tokenID token.ID, account token.AccountID) (*event.Approval, error) {
	tx, owner, err := l.beginApproval(ctx, caller, tokenID)
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	if account == owner {
		return nil, ErrSameAccount
	}
	seq, err := l.approvals.grant(ctx, tx, tokenID, account)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &event.Approval{
		ID:      id.NewApprovalEventID(),
		TokenID: tokenID,
		Owner:   owner,
		Account: account,
		Seq:     seq,
		At:      l.now(),
	}, nil
}

// Revoke removes the approval of account. Revoking an account that is not
// approved is a no-op.
func (l *Ledger) Revoke(ctx context.Context, caller token.AccountID, tokenID token.ID, account token.AccountID) error {
	if err := validate(tokenID, caller, account); err != nil {
		return err
	}

	l.mu.Lock()
	ev, err := l.revoke(ctx, caller, tokenID, account)
	l.mu.Unlock()
	if err != nil || ev == nil {
		return err
	}

	l.plugins.EmitApprovalChanged(ctx, ev)
	return nil
}

func (l *Ledger) revoke(ctx context.Context, caller token.AccountID, tokenID token.ID, account token.AccountID) (*event.Approval, error) {
	tx, owner, err := l.beginApproval(ctx, caller, tokenID)
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	removed, err := l.approvals.revoke(ctx, tx, tokenID, account)
	if err != nil || !removed {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &event.Approval{
		ID:      id.NewApprovalEventID(),
		TokenID: tokenID,
		Owner:   owner,
		Account: account,
		Revoked: true,
		At:      l.now(),
	}, nil
}

// RevokeAll removes every approval of a non-fungible token.
func (l *Ledger) RevokeAll(ctx context.Context, caller token.AccountID, tokenID token.ID) error {
	if err := validate(tokenID, caller); err != nil {
		return err
	}

	l.mu.Lock()
	ev, err := l.revokeAll(ctx, caller, tokenID)
	l.mu.Unlock()
	if err != nil || ev == nil {
		return err
	}

	l.plugins.EmitApprovalChanged(ctx, ev)
	return nil
}

func (l *Ledger) revokeAll(ctx context.Context, caller token.AccountID, tokenID token.ID) (*event.Approval, error) {
	tx, owner, err := l.beginApproval(ctx, caller, tokenID)
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	prev, err := l.approvals.clear(ctx, tx, tokenID)
	if err != nil || len(prev) == 0 {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &event.Approval{
		ID:      id.NewApprovalEventID(),
		TokenID: tokenID,
		Owner:   owner,
		Revoked: true,
		At:      l.now(),
	}, nil
}

// IsApproved reports whether account may transfer tokenID. When seq is given
// the recorded sequence number must match it.
func (l *Ledger) IsApproved(ctx context.Context, tokenID token.ID, account token.AccountID, seq *token.ApprovalSeq) (bool, error) {
	if err := validate(tokenID, account); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return false, err
	}

	tx := state.Begin(l.store)
	if _, err := l.nftOwner(ctx, tx, tokenID); err != nil {
		return false, err
	}
	approvals, ok, err := l.approvals.lookup(ctx, tx, tokenID)
	if err != nil || !ok {
		return false, err
	}
	actual, ok := approvals.Lookup(account)
	if !ok {
		return false, nil
	}
	return seq == nil || *seq == actual, nil
}

// beginApproval checks that the approval extension is on, that tokenID is a
// non-fungible token and that caller owns it. Callers hold l.mu.
func (l *Ledger) beginApproval(ctx context.Context, caller token.AccountID, tokenID token.ID) (*state.Tx, token.AccountID, error) {
	if err := l.ready(); err != nil {
		return nil, "", err
	}
	if !l.approvals.enabled() {
		return nil, "", ErrApprovalsDisabled
	}

	tx := state.Begin(l.store)
	owner, err := l.nftOwner(ctx, tx, tokenID)
	if err != nil {
		return nil, "", err
	}
	if caller != owner {
		return nil, "", fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, caller, tokenID)
	}
	return tx, owner, nil
}

// nftOwner returns the owner of a non-fungible token.
func (l *Ledger) nftOwner(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.AccountID, error) {
	typ, ok, err := tx.TokenType(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	if typ != token.NonFungible {
		return "", fmt.Errorf("%w: %s is %s", ErrNotNonFungible, tokenID, typ)
	}
	owner, ok, err := tx.Owner(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("multitoken: non-fungible token %s has no owner", tokenID)
	}
	return owner, nil
}
