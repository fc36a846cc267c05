package multitoken

import (
	"context"
	"fmt"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/id"
	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/token"
)

// MintRequest creates a token line.
type MintRequest struct {
	TokenID token.ID        `json:"token_id"`
	Type    token.Type      `json:"token_type"`
	Owner   token.AccountID `json:"owner_id"`
	// Amount is the initial supply of a fungible token. Non-fungible tokens
	// are minted with amount 0 or 1.
	Amount   token.Amount    `json:"amount"`
	Metadata *token.Metadata `json:"metadata,omitempty"`
}

// Mint creates a token. Only the ledger owner may mint, and a token ID can be
// minted once.
func (l *Ledger) Mint(ctx context.Context, caller token.AccountID, req MintRequest) (*token.View, error) {
	if err := req.TokenID.Validate(); err != nil {
		return nil, err
	}
	if err := validateAccounts(caller, req.Owner); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, req.Type)
	}
	if req.Type == token.NonFungible && req.Amount > 1 {
		return nil, ValidationError{Field: "amount", Message: "non-fungible tokens are minted one at a time"}
	}

	l.mu.Lock()
	view, err := l.mintLocked(ctx, caller, req)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if req.Type == token.NonFungible {
		amount = 1
	}
	l.logger.Debug("token minted",
		"token_id", req.TokenID,
		"token_type", req.Type,
		"owner", req.Owner,
		"amount", amount,
	)
	l.plugins.EmitTokenMinted(ctx, &event.Mint{
		ID:      id.NewMintEventID(),
		TokenID: req.TokenID,
		Type:    req.Type,
		Owner:   req.Owner,
		Amount:  amount,
		At:      l.now(),
	})

	return view, nil
}

func (l *Ledger) mintLocked(ctx context.Context, caller token.AccountID, req MintRequest) (*token.View, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if caller != l.owner {
		return nil, fmt.Errorf("%w: %s", ErrNotLedgerOwner, caller)
	}

	tx := state.Begin(l.store)
	defer tx.Discard()

	if _, ok, err := tx.TokenType(ctx, req.TokenID); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, req.TokenID)
	}

	if err := tx.PutTokenType(ctx, req.TokenID, req.Type); err != nil {
		return nil, err
	}
	switch req.Type {
	case token.Fungible:
		if err := tx.PutSupply(ctx, req.TokenID, req.Amount); err != nil {
			return nil, err
		}
		if err := tx.PutBalance(ctx, req.TokenID, req.Owner, req.Amount); err != nil {
			return nil, err
		}
	case token.NonFungible:
		if err := tx.PutOwner(ctx, req.TokenID, req.Owner); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, req.Type)
	}
	if err := l.metadata.put(ctx, tx, req.TokenID, req.Metadata); err != nil {
		return nil, err
	}

	view, err := l.view(ctx, tx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return view, nil
}
