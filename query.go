package multitoken

import (
	"context"
	"fmt"

	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/token"
)

// BalanceOf returns account's balance of tokenID. For a non-fungible token it
// is 1 if account owns it and 0 otherwise. An account without a holder row
// has a zero balance.
func (l *Ledger) BalanceOf(ctx context.Context, account token.AccountID, tokenID token.ID) (token.Amount, error) {
	balances, err := l.BalanceOfBatch(ctx, account, []token.ID{tokenID})
	if err != nil {
		return 0, err
	}
	return balances[0], nil
}

// BalanceOfBatch returns account's balance of every token in tokenIDs.
func (l *Ledger) BalanceOfBatch(ctx context.Context, account token.AccountID, tokenIDs []token.ID) ([]token.Amount, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}

	out := make([]token.Amount, len(tokenIDs))
	err := l.read(func(tx *state.Tx) error {
		for i, tokenID := range tokenIDs {
			typ, err := l.typeOf(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			switch typ {
			case token.Fungible:
				out[i], _, err = tx.Balance(ctx, tokenID, account)
			case token.NonFungible:
				var owner token.AccountID
				owner, _, err = tx.Owner(ctx, tokenID)
				if owner == account {
					out[i] = 1
				}
			default:
				err = fmt.Errorf("multitoken: token %s has unknown type %d", tokenID, typ)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TotalSupply returns the outstanding units of tokenID. A non-fungible token
// always has a supply of 1.
func (l *Ledger) TotalSupply(ctx context.Context, tokenID token.ID) (token.Amount, error) {
	supplies, err := l.TotalSupplyBatch(ctx, []token.ID{tokenID})
	if err != nil {
		return 0, err
	}
	return supplies[0], nil
}

// TotalSupplyBatch returns the supply of every token in tokenIDs.
func (l *Ledger) TotalSupplyBatch(ctx context.Context, tokenIDs []token.ID) ([]token.Amount, error) {
	out := make([]token.Amount, len(tokenIDs))
	err := l.read(func(tx *state.Tx) error {
		for i, tokenID := range tokenIDs {
			typ, err := l.typeOf(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			switch typ {
			case token.Fungible:
				if out[i], _, err = tx.Supply(ctx, tokenID); err != nil {
					return err
				}
			case token.NonFungible:
				out[i] = 1
			default:
				return fmt.Errorf("multitoken: token %s has unknown type %d", tokenID, typ)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Token returns the read model of tokenID.
func (l *Ledger) Token(ctx context.Context, tokenID token.ID) (*token.View, error) {
	var view *token.View
	err := l.read(func(tx *state.Tx) error {
		var err error
		view, err = l.view(ctx, tx, tokenID)
		return err
	})
	return view, err
}

// Holders lists the holder rows of a fungible token ordered by account. A
// non-fungible token has its owner as the only holder.
func (l *Ledger) Holders(ctx context.Context, tokenID token.ID) ([]token.Holder, error) {
	var holders []token.Holder
	err := l.read(func(tx *state.Tx) error {
		typ, err := l.typeOf(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		switch typ {
		case token.Fungible:
			holders, err = tx.Holders(ctx, tokenID)
			return err
		case token.NonFungible:
			owner, _, err := tx.Owner(ctx, tokenID)
			holders = []token.Holder{{Account: owner, Balance: 1}}
			return err
		default:
			return fmt.Errorf("multitoken: token %s has unknown type %d", tokenID, typ)
		}
	})
	return holders, err
}

// read runs fn under the ledger lock on a read-only overlay.
func (l *Ledger) read(fn func(tx *state.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	tx := state.Begin(l.store)
	defer tx.Discard()
	return fn(tx)
}

// typeOf validates tokenID and returns its type.
func (l *Ledger) typeOf(ctx context.Context, tx *state.Tx, tokenID token.ID) (token.Type, error) {
	if err := lookupID(tokenID); err != nil {
		return 0, err
	}
	typ, ok, err := tx.TokenType(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	return typ, nil
}

// view builds the read model of tokenID from tx.
func (l *Ledger) view(ctx context.Context, tx *state.Tx, tokenID token.ID) (*token.View, error) {
	typ, err := l.typeOf(ctx, tx, tokenID)
	if err != nil {
		return nil, err
	}

	v := &token.View{ID: tokenID, Type: typ}
	switch typ {
	case token.Fungible:
		supply, _, err := tx.Supply(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		v.Supply = &supply
	case token.NonFungible:
		owner, _, err := tx.Owner(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		v.Owner = &owner
	default:
		return nil, fmt.Errorf("multitoken: token %s has unknown type %d", tokenID, typ)
	}

	if v.Approvals, err = l.approvals.view(ctx, tx, tokenID); err != nil {
		return nil, err
	}
	if v.Metadata, err = l.metadata.get(ctx, tx, tokenID); err != nil {
		return nil, err
	}
	return v, nil
}
