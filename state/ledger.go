package state

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/multitoken/token"
)

// ──────────────────────────────────────────────────
// Token type index
// ──────────────────────────────────────────────────

// TokenType returns the type recorded for id.
func (t *Tx) TokenType(ctx context.Context, id token.ID) (token.Type, bool, error) {
	v, ok, err := t.get(ctx, tokenKey(prefixType, id))
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(v) != 1 || !token.Type(v[0]).Valid() {
		return 0, false, fmt.Errorf("state: corrupt type record for %q", id)
	}
	return token.Type(v[0]), true, nil
}

// PutTokenType records the type of id.
func (t *Tx) PutTokenType(ctx context.Context, id token.ID, typ token.Type) error {
	return t.put(ctx, tokenKey(prefixType, id), []byte{byte(typ)})
}

// DeleteTokenType removes the type record of id.
func (t *Tx) DeleteTokenType(ctx context.Context, id token.ID) error {
	return t.del(ctx, tokenKey(prefixType, id))
}

// ──────────────────────────────────────────────────
// Non-fungible sub-ledger
// ──────────────────────────────────────────────────

// Owner returns the current owner of a non-fungible token.
func (t *Tx) Owner(ctx context.Context, id token.ID) (token.AccountID, bool, error) {
	v, ok, err := t.get(ctx, tokenKey(prefixOwner, id))
	if err != nil || !ok {
		return "", ok, err
	}
	return token.AccountID(v), true, nil
}

// PutOwner sets the owner of a non-fungible token.
func (t *Tx) PutOwner(ctx context.Context, id token.ID, owner token.AccountID) error {
	return t.put(ctx, tokenKey(prefixOwner, id), []byte(owner))
}

// DeleteOwner removes the owner row of a non-fungible token.
func (t *Tx) DeleteOwner(ctx context.Context, id token.ID) error {
	return t.del(ctx, tokenKey(prefixOwner, id))
}

// ──────────────────────────────────────────────────
// Fungible sub-ledger
// ──────────────────────────────────────────────────

// Supply returns the total supply of a fungible token.
func (t *Tx) Supply(ctx context.Context, id token.ID) (token.Amount, bool, error) {
	return t.amount(ctx, tokenKey(prefixSupply, id))
}

// PutSupply sets the total supply of a fungible token.
func (t *Tx) PutSupply(ctx context.Context, id token.ID, supply token.Amount) error {
	return t.put(ctx, tokenKey(prefixSupply, id), encodeUint64(uint64(supply)))
}

// DeleteSupply removes the supply row of a fungible token.
func (t *Tx) DeleteSupply(ctx context.Context, id token.ID) error {
	return t.del(ctx, tokenKey(prefixSupply, id))
}

// Balance returns the holder row of account for a fungible token. The bool
// reports whether the row exists, which is distinct from a zero balance.
func (t *Tx) Balance(ctx context.Context, id token.ID, account token.AccountID) (token.Amount, bool, error) {
	return t.amount(ctx, balanceKey(id, account))
}

// PutBalance writes the holder row of account.
func (t *Tx) PutBalance(ctx context.Context, id token.ID, account token.AccountID, amount token.Amount) error {
	return t.put(ctx, balanceKey(id, account), encodeUint64(uint64(amount)))
}

// DeleteBalance removes the holder row of account.
func (t *Tx) DeleteBalance(ctx context.Context, id token.ID, account token.AccountID) error {
	return t.del(ctx, balanceKey(id, account))
}

// Holders returns every holder row of a fungible token ordered by account.
func (t *Tx) Holders(ctx context.Context, id token.ID) ([]token.Holder, error) {
	prefix := balancePrefix(id)
	var out []token.Holder
	err := t.scan(ctx, prefix, func(k, v []byte) error {
		n, err := decodeUint64(v)
		if err != nil {
			return err
		}
		out = append(out, token.Holder{
			Account: token.AccountID(k[len(prefix):]),
			Balance: token.Amount(n),
		})
		return nil
	})
	return out, err
}

func (t *Tx) amount(ctx context.Context, key []byte) (token.Amount, bool, error) {
	v, ok, err := t.get(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := decodeUint64(v)
	if err != nil {
		return 0, false, err
	}
	return token.Amount(n), true, nil
}

// ──────────────────────────────────────────────────
// Approval registry
// ──────────────────────────────────────────────────

// Approvals returns the approval map of a non-fungible token.
func (t *Tx) Approvals(ctx context.Context, id token.ID) (token.Approvals, bool, error) {
	v, ok, err := t.get(ctx, tokenKey(prefixApproval, id))
	if err != nil || !ok {
		return nil, ok, err
	}
	a, err := decodeApprovals(v)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// PutApprovals writes the approval map of a non-fungible token.
func (t *Tx) PutApprovals(ctx context.Context, id token.ID, a token.Approvals) error {
	v, err := encodeApprovals(a)
	if err != nil {
		return fmt.Errorf("state: encode approvals: %w", err)
	}
	return t.put(ctx, tokenKey(prefixApproval, id), v)
}

// DeleteApprovals removes the approval map of a non-fungible token.
func (t *Tx) DeleteApprovals(ctx context.Context, id token.ID) error {
	return t.del(ctx, tokenKey(prefixApproval, id))
}

// NextApprovalSeq returns the sequence the next approval of id will receive.
func (t *Tx) NextApprovalSeq(ctx context.Context, id token.ID) (token.ApprovalSeq, bool, error) {
	n, ok, err := t.amount(ctx, tokenKey(prefixNextSeq, id))
	return token.ApprovalSeq(n), ok, err
}

// PutNextApprovalSeq stores the next approval sequence of id.
func (t *Tx) PutNextApprovalSeq(ctx context.Context, id token.ID, seq token.ApprovalSeq) error {
	return t.put(ctx, tokenKey(prefixNextSeq, id), encodeUint64(uint64(seq)))
}

// DeleteNextApprovalSeq removes the next approval sequence of id.
func (t *Tx) DeleteNextApprovalSeq(ctx context.Context, id token.ID) error {
	return t.del(ctx, tokenKey(prefixNextSeq, id))
}

// ──────────────────────────────────────────────────
// Metadata
// ──────────────────────────────────────────────────

// Metadata returns the metadata of id.
func (t *Tx) Metadata(ctx context.Context, id token.ID) (*token.Metadata, bool, error) {
	v, ok, err := t.get(ctx, tokenKey(prefixMetadata, id))
	if err != nil || !ok {
		return nil, ok, err
	}
	md := new(token.Metadata)
	if err := bson.Unmarshal(v, md); err != nil {
		return nil, false, fmt.Errorf("state: decode metadata for %q: %w", id, err)
	}
	return md, true, nil
}

// PutMetadata writes the metadata of id.
func (t *Tx) PutMetadata(ctx context.Context, id token.ID, md *token.Metadata) error {
	v, err := bson.Marshal(md)
	if err != nil {
		return fmt.Errorf("state: encode metadata: %w", err)
	}
	return t.put(ctx, tokenKey(prefixMetadata, id), v)
}

// DeleteMetadata removes the metadata of id.
func (t *Tx) DeleteMetadata(ctx context.Context, id token.ID) error {
	return t.del(ctx, tokenKey(prefixMetadata, id))
}

// ──────────────────────────────────────────────────
// Header
// ──────────────────────────────────────────────────

// Header returns the ledger header.
func (t *Tx) Header(ctx context.Context) (*Header, bool, error) {
	v, ok, err := t.get(ctx, headerKey)
	if err != nil || !ok {
		return nil, ok, err
	}
	h := new(Header)
	if err := bson.Unmarshal(v, h); err != nil {
		return nil, false, fmt.Errorf("state: decode header: %w", err)
	}
	return h, true, nil
}

// PutHeader writes the ledger header.
func (t *Tx) PutHeader(ctx context.Context, h *Header) error {
	v, err := bson.Marshal(h)
	if err != nil {
		return fmt.Errorf("state: encode header: %w", err)
	}
	return t.put(ctx, headerKey, v)
}
