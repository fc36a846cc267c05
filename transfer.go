package multitoken

import (
	"context"
	"fmt"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/id"
	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/token"
)

// TransferRequest moves one token from Sender to Receiver.
type TransferRequest struct {
	Sender   token.AccountID `json:"sender_id"`
	Receiver token.AccountID `json:"receiver_id"`
	TokenID  token.ID        `json:"token_id"`
	// Amount is ignored for non-fungible tokens.
	Amount token.Amount `json:"amount"`
	// ApprovalSeq, when set, must match the sender's recorded approval.
	ApprovalSeq *token.ApprovalSeq `json:"approval_id,omitempty"`
	Memo        string             `json:"memo,omitempty"`
}

// BatchTransferRequest moves several tokens from Sender to Receiver. Either
// every item is applied or none is.
type BatchTransferRequest struct {
	Sender      token.AccountID    `json:"sender_id"`
	Receiver    token.AccountID    `json:"receiver_id"`
	TokenIDs    []token.ID         `json:"token_ids"`
	Amounts     []token.Amount     `json:"amounts"`
	ApprovalSeq *token.ApprovalSeq `json:"approval_id,omitempty"`
	Memo        string             `json:"memo,omitempty"`
}

func (r TransferRequest) batch() BatchTransferRequest {
	return BatchTransferRequest{
		Sender:      r.Sender,
		Receiver:    r.Receiver,
		TokenIDs:    []token.ID{r.TokenID},
		Amounts:     []token.Amount{r.Amount},
		ApprovalSeq: r.ApprovalSeq,
		Memo:        r.Memo,
	}
}

// Receipt describes one applied transfer and carries what is needed to undo
// it.
type Receipt struct {
	TokenID token.ID     `json:"token_id"`
	Type    token.Type   `json:"token_type"`
	Amount  token.Amount `json:"amount"`
	// PreviousOwner is the owner before the transfer. For fungible tokens it
	// is the sender.
	PreviousOwner     token.AccountID `json:"previous_owner_id"`
	PreviousApprovals token.Approvals `json:"previous_approvals,omitempty"`
}

// Transfer moves a single token.
func (l *Ledger) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	l.mu.Lock()
	receipts, err := l.applyLocked(ctx, req.batch(), false)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	l.emitTransfers(ctx, req.Sender, req.Receiver, req.Memo, id.Nil, receipts)
	return &receipts[0], nil
}

// BatchTransfer moves several tokens in one all-or-nothing step. A failing
// item aborts the whole batch and the error names its index.
func (l *Ledger) BatchTransfer(ctx context.Context, req BatchTransferRequest) ([]Receipt, error) {
	l.mu.Lock()
	receipts, err := l.applyLocked(ctx, req, true)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	l.emitTransfers(ctx, req.Sender, req.Receiver, req.Memo, id.Nil, receipts)
	return receipts, nil
}

// applyLocked validates and commits a batch. Callers hold l.mu.
func (l *Ledger) applyLocked(ctx context.Context, req BatchTransferRequest, batch bool) ([]Receipt, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if len(req.TokenIDs) != len(req.Amounts) {
		return nil, fmt.Errorf("%w: %d token ids, %d amounts", ErrLengthMismatch, len(req.TokenIDs), len(req.Amounts))
	}
	if len(req.TokenIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	tx := state.Begin(l.store)
	defer tx.Discard()

	receipts := make([]Receipt, 0, len(req.TokenIDs))
	for i, tokenID := range req.TokenIDs {
		r, err := l.transferOne(ctx, tx, req.Sender, req.Receiver, tokenID, req.Amounts[i], req.ApprovalSeq)
		if err != nil {
			if batch {
				return nil, fmt.Errorf("multitoken: batch item %d (%s): %w", i, tokenID, err)
			}
			return nil, err
		}
		receipts = append(receipts, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return receipts, nil
}

// transferOne authorizes and stages one transfer on tx.
func (l *Ledger) transferOne(
	ctx context.Context,
	tx *state.Tx,
	sender, receiver token.AccountID,
	tokenID token.ID,
	amount token.Amount,
	seq *token.ApprovalSeq,
) (Receipt, error) {
	typ, ok, err := tx.TokenType(ctx, tokenID)
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}
	if sender == receiver {
		return Receipt{}, ErrSameAccount
	}

	switch typ {
	case token.NonFungible:
		return l.transferNFT(ctx, tx, sender, receiver, tokenID, seq)
	case token.Fungible:
		return l.transferFT(ctx, tx, sender, receiver, tokenID, amount)
	default:
		return Receipt{}, fmt.Errorf("multitoken: token %s has unknown type %d", tokenID, typ)
	}
}

func (l *Ledger) transferNFT(
	ctx context.Context,
	tx *state.Tx,
	sender, receiver token.AccountID,
	tokenID token.ID,
	seq *token.ApprovalSeq,
) (Receipt, error) {
	owner, ok, err := tx.Owner(ctx, tokenID)
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		return Receipt{}, fmt.Errorf("multitoken: non-fungible token %s has no owner", tokenID)
	}
	if owner == receiver {
		return Receipt{}, fmt.Errorf("%w: %s already owns %s", ErrSameAccount, receiver, tokenID)
	}

	if sender != owner {
		approvals, ok, err := l.approvals.lookup(ctx, tx, tokenID)
		if err != nil {
			return Receipt{}, err
		}
		if !ok {
			return Receipt{}, fmt.Errorf("%w: %s is owned by %s", ErrUnauthorized, tokenID, owner)
		}
		actual, ok := approvals.Lookup(sender)
		if !ok {
			return Receipt{}, fmt.Errorf("%w: %s for %s", ErrSenderNotApproved, sender, tokenID)
		}
		if seq != nil && *seq != actual {
			return Receipt{}, fmt.Errorf("%w: actual %s, given %s", ErrApprovalMismatch, actual, *seq)
		}
	}

	prev, err := l.approvals.clear(ctx, tx, tokenID)
	if err != nil {
		return Receipt{}, err
	}
	if err := tx.PutOwner(ctx, tokenID, receiver); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		TokenID:           tokenID,
		Type:              token.NonFungible,
		Amount:            1,
		PreviousOwner:     owner,
		PreviousApprovals: prev,
	}, nil
}

func (l *Ledger) transferFT(
	ctx context.Context,
	tx *state.Tx,
	sender, receiver token.AccountID,
	tokenID token.ID,
	amount token.Amount,
) (Receipt, error) {
	balance, ok, err := tx.Balance(ctx, tokenID, sender)
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s holds no %s", ErrNotATokenHolder, sender, tokenID)
	}
	if amount > balance {
		return Receipt{}, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, balance, amount)
	}

	receipt := Receipt{
		TokenID:       tokenID,
		Type:          token.Fungible,
		Amount:        amount,
		PreviousOwner: sender,
	}
	if amount.IsZero() {
		return receipt, nil
	}
	if err := move(ctx, tx, tokenID, sender, receiver, amount); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// move debits from and credits to. The caller has checked that from holds at
// least amount.
func move(ctx context.Context, tx *state.Tx, tokenID token.ID, from, to token.AccountID, amount token.Amount) error {
	fromBalance, _, err := tx.Balance(ctx, tokenID, from)
	if err != nil {
		return err
	}
	toBalance, _, err := tx.Balance(ctx, tokenID, to)
	if err != nil {
		return err
	}
	credited, err := toBalance.Add(amount)
	if err != nil {
		return err
	}
	if err := tx.PutBalance(ctx, tokenID, from, fromBalance.Sub(amount)); err != nil {
		return err
	}
	return tx.PutBalance(ctx, tokenID, to, credited)
}

// emitTransfers reports committed movements to the log and to plugins.
func (l *Ledger) emitTransfers(
	ctx context.Context,
	sender, receiver token.AccountID,
	memo string,
	pendingID id.TransferID,
	receipts []Receipt,
) {
	for _, r := range receipts {
		ev := &event.Transfer{
			ID:        id.NewTransferEventID(),
			Kind:      event.KindTransfer,
			TokenID:   r.TokenID,
			TokenType: r.Type,
			From:      r.PreviousOwner,
			To:        receiver,
			Amount:    r.Amount,
			Memo:      memo,
			PendingID: pendingID,
			At:        l.now(),
		}
		if sender != r.PreviousOwner {
			ev.AuthorizedBy = sender
		}

		l.logger.Debug("transfer applied",
			"token_id", r.TokenID,
			"from", r.PreviousOwner,
			"to", receiver,
			"amount", r.Amount,
			"memo", memo,
		)
		l.plugins.EmitTransfer(ctx, ev)
	}
}

// validate checks a token ID and the accounts taking part in a call.
func validate(tokenID token.ID, accounts ...token.AccountID) error {
	if err := lookupID(tokenID); err != nil {
		return err
	}
	return validateAccounts(accounts...)
}

// lookupID rejects an identifier no minted token can carry. The error matches
// both ErrTokenNotFound and ErrInvalidTokenID.
func lookupID(tokenID token.ID) error {
	if err := tokenID.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenNotFound, err)
	}
	return nil
}

func validateAccounts(accounts ...token.AccountID) error {
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateBatch(req BatchTransferRequest) error {
	var errs MultiError
	errs.Add(req.Sender.Validate())
	errs.Add(req.Receiver.Validate())
	for i, tokenID := range req.TokenIDs {
		if err := lookupID(tokenID); err != nil {
			errs.Add(fmt.Errorf("token_ids[%d]: %w", i, err))
		}
	}
	return errs.ErrorOrNil()
}
