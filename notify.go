package multitoken

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/id"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/token"
)

// TransferState is the progress of a transfer-and-notify.
type TransferState int32

const (
	// StateApplied means the tokens have moved and the receiver has not been
	// contacted yet.
	StateApplied TransferState = iota
	// StateNotifying means the receiver is being notified.
	StateNotifying
	// StateResolved means the transfer stands.
	StateResolved
	// StateReverted means at least one token was returned.
	StateReverted
)

func (s TransferState) String() string {
	switch s {
	case StateApplied:
		return "applied"
	case StateNotifying:
		return "notifying"
	case StateResolved:
		return "resolved"
	case StateReverted:
		return "reverted"
	default:
		return fmt.Sprintf("TransferState(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TransferState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s is a final state.
func (s TransferState) Terminal() bool {
	return s == StateResolved || s == StateReverted
}

// TransferCallRequest is a single transfer followed by a notification to the
// receiver.
type TransferCallRequest struct {
	TransferRequest
	Message string `json:"msg"`
}

// BatchTransferCallRequest is a batch transfer followed by a notification to
// the receiver.
type BatchTransferCallRequest struct {
	BatchTransferRequest
	Message string `json:"msg"`
}

// Outcome is what came back from notifying a receiver. A non-nil Err means
// the notification failed and every token is returned.
type Outcome struct {
	Verdict *receiver.Verdict
	Err     error
}

// ResolveRequest carries everything needed to settle a transfer-and-notify
// whose notification was delivered by the host.
type ResolveRequest struct {
	Sender         token.AccountID   `json:"sender_id"`
	Receiver       token.AccountID   `json:"receiver_id"`
	TokenIDs       []token.ID        `json:"token_ids"`
	Amounts        []token.Amount    `json:"amounts"`
	PreviousOwners []token.AccountID `json:"previous_owner_ids"`
	Outcome        Outcome           `json:"-"`
}

// Resolution is the settled result of a transfer-and-notify.
type Resolution struct {
	PendingID   id.TransferID  `json:"pending_id,omitzero"`
	State       TransferState  `json:"state"`
	Transferred []token.Amount `json:"transferred"`
	Reverted    []token.Amount `json:"reverted"`
	Failure     string         `json:"failure,omitempty"`
	ResolvedAt  time.Time      `json:"resolved_at"`
}

// Pending tracks one transfer-and-notify from optimistic apply to resolution.
type Pending struct {
	ID        id.TransferID
	Sender    token.AccountID
	Receiver  token.AccountID
	Items     []Receipt
	Message   string
	CreatedAt time.Time

	state   atomic.Int32
	claimed atomic.Bool
	done    chan struct{}
	result  *Resolution
}

// State returns the current state.
func (p *Pending) State() TransferState {
	return TransferState(p.state.Load())
}

// Done is closed once the transfer is settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the resolution, or nil while the transfer is unsettled.
func (p *Pending) Result() *Resolution {
	select {
	case <-p.done:
		return p.result
	default:
		return nil
	}
}

// Wait blocks until the transfer is settled or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Resolution, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notification returns what the receiver is told.
func (p *Pending) Notification() *receiver.Notification {
	return &receiver.Notification{
		TransferID:     p.ID,
		Sender:         p.Sender,
		Receiver:       p.Receiver,
		PreviousOwners: lo.Map(p.Items, func(r Receipt, _ int) token.AccountID { return r.PreviousOwner }),
		TokenIDs:       lo.Map(p.Items, func(r Receipt, _ int) token.ID { return r.TokenID }),
		Amounts:        lo.Map(p.Items, func(r Receipt, _ int) token.Amount { return r.Amount }),
		Message:        p.Message,
	}
}

// claim grants the right to settle p. It succeeds once.
func (p *Pending) claim() bool {
	return p.claimed.CompareAndSwap(false, true)
}

func (p *Pending) finish(res *Resolution) {
	p.result = res
	p.state.Store(int32(res.State))
	close(p.done)
}

func (p *Pending) resolveRequest(out Outcome) ResolveRequest {
	n := p.Notification()
	return ResolveRequest{
		Sender:         n.Sender,
		Receiver:       n.Receiver,
		TokenIDs:       n.TokenIDs,
		Amounts:        n.Amounts,
		PreviousOwners: n.PreviousOwners,
		Outcome:        out,
	}
}

// ──────────────────────────────────────────────────
// Transfer-and-notify
// ──────────────────────────────────────────────────

// TransferCall applies a transfer, then notifies the receiver in the
// background. The receiver's verdict decides whether the token is returned.
func (l *Ledger) TransferCall(ctx context.Context, req TransferCallRequest) (*Pending, error) {
	return l.transferCall(ctx, req.batch(), req.Message, false)
}

// BatchTransferCall applies a batch transfer, then notifies the receiver in
// the background. Each token is settled independently.
func (l *Ledger) BatchTransferCall(ctx context.Context, req BatchTransferCallRequest) (*Pending, error) {
	return l.transferCall(ctx, req.BatchTransferRequest, req.Message, true)
}

func (l *Ledger) transferCall(ctx context.Context, req BatchTransferRequest, msg string, batch bool) (*Pending, error) {
	l.mu.Lock()
	receipts, err := l.applyLocked(ctx, req, batch)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	p := &Pending{
		ID:        id.NewTransferID(),
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Items:     receipts,
		Message:   msg,
		CreatedAt: l.now(),
		done:      make(chan struct{}),
	}
	// The entry outlives a stuck notification only by one more timeout.
	l.pending.Set(p.ID.String(), p, 2*l.notifyTimeout)
	l.wg.Add(1)
	notifyCtx := l.notifyCtx
	l.mu.Unlock()

	l.emitTransfers(ctx, req.Sender, req.Receiver, req.Memo, p.ID, receipts)
	go l.dispatch(notifyCtx, p)

	return p, nil
}

// Pending returns a transfer-and-notify that is in flight or was settled
// recently.
func (l *Ledger) Pending(transferID id.TransferID) (*Pending, error) {
	v, ok := l.pending.Get(transferID.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, transferID)
	}
	return v.(*Pending), nil //nolint:forcetypeassert // only *Pending is stored
}

func (l *Ledger) dispatch(parent context.Context, p *Pending) {
	defer l.wg.Done()

	p.state.CompareAndSwap(int32(StateApplied), int32(StateNotifying))

	ctx, cancel := context.WithTimeout(parent, l.notifyTimeout)
	defer cancel()

	n := p.Notification()
	l.plugins.EmitNotifyDispatched(ctx, n)
	out := l.notify(ctx, n)

	if !p.claim() {
		<-p.done
		return
	}
	l.settle(p, out)
}

// notify calls the receiver and waits for its verdict or ctx.
func (l *Ledger) notify(ctx context.Context, n *receiver.Notification) Outcome {
	r, ok := l.receivers.Lookup(n.Receiver)
	if !ok {
		return Outcome{Err: fmt.Errorf("%w: %s", ErrNoReceiver, n.Receiver)}
	}

	answer := make(chan Outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				answer <- Outcome{Err: fmt.Errorf("multitoken: receiver panicked: %v", rec)}
			}
		}()
		v, err := r.OnTransfer(ctx, n)
		answer <- Outcome{Verdict: v, Err: err}
	}()

	select {
	case out := <-answer:
		return out
	case <-ctx.Done():
		return Outcome{Err: ctx.Err()}
	}
}

// sweep removes expired pending transfers until ctx is done.
func (l *Ledger) sweep(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.pending.DeleteExpired()
		}
	}
}

// evicted settles a pending transfer whose cache entry expired before the
// notification finished.
func (l *Ledger) evicted(_ string, v interface{}) {
	p, ok := v.(*Pending)
	if !ok || !p.claim() {
		return
	}
	l.logger.Warn("pending transfer expired before resolution", "transfer_id", p.ID)
	l.settle(p, Outcome{Err: ErrPendingExpired})
}

// settle resolves a claimed pending transfer and keeps it queryable.
func (l *Ledger) settle(p *Pending, out Outcome) {
	ctx := context.Background()

	res, err := l.resolve(ctx, p.ID, p.CreatedAt, p.resolveRequest(out))
	if err != nil {
		l.logger.Error("failed to resolve transfer, transfer stands",
			"transfer_id", p.ID,
			"error", err,
		)
		res = &Resolution{
			PendingID:   p.ID,
			State:       StateResolved,
			Transferred: lo.Map(p.Items, func(r Receipt, _ int) token.Amount { return r.Amount }),
			Reverted:    make([]token.Amount, len(p.Items)),
			Failure:     err.Error(),
			ResolvedAt:  l.now(),
		}
	}

	l.pending.Set(p.ID.String(), p, l.retention)
	p.finish(res)
}

// ResolveTransfer settles a transfer-and-notify whose notification was
// carried by the host. Each token is reverted independently: a failed
// notification returns everything, otherwise the verdict's refund for the
// token, capped at the amount sent, is returned. A non-fungible token is only
// returned if the receiver still owns it; a fungible refund is limited to the
// receiver's current balance.
func (l *Ledger) ResolveTransfer(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	l.mu.Lock()
	err := l.ready()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.resolve(ctx, id.Nil, time.Time{}, req)
}

func (l *Ledger) resolve(ctx context.Context, pendingID id.TransferID, created time.Time, req ResolveRequest) (*Resolution, error) {
	n := len(req.TokenIDs)
	if len(req.Amounts) != n || len(req.PreviousOwners) != n {
		return nil, fmt.Errorf("%w: %d token ids, %d amounts, %d previous owners",
			ErrLengthMismatch, n, len(req.Amounts), len(req.PreviousOwners))
	}
	if n == 0 {
		return nil, ErrEmptyBatch
	}
	if err := validateResolve(req); err != nil {
		return nil, err
	}

	failure := req.Outcome.Err
	if failure == nil {
		failure = req.Outcome.Verdict.Check(n)
	}

	l.mu.Lock()
	reverted, types, err := l.revertLocked(ctx, req, failure)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		PendingID:   pendingID,
		State:       StateResolved,
		Transferred: make([]token.Amount, n),
		Reverted:    reverted,
		ResolvedAt:  l.now(),
	}
	if failure != nil {
		res.Failure = failure.Error()
	}
	for i := range req.Amounts {
		res.Transferred[i] = req.Amounts[i] - reverted[i]
		if reverted[i] > 0 {
			res.State = StateReverted
		}
	}

	l.emitResolution(ctx, req, res, types, created)
	return res, nil
}

// revertLocked returns tokens to their previous owners and commits. It
// reports, per item, the amount returned and the token's type. Callers hold
// l.mu.
func (l *Ledger) revertLocked(ctx context.Context, req ResolveRequest, failure error) ([]token.Amount, []token.Type, error) {
	reverted := make([]token.Amount, len(req.TokenIDs))
	types := make([]token.Type, len(req.TokenIDs))

	tx := state.Begin(l.store)
	defer tx.Discard()

	for i, tokenID := range req.TokenIDs {
		want := req.Amounts[i]
		if failure == nil {
			want = min(req.Outcome.Verdict.RefundAt(i), req.Amounts[i])
		}
		if want == 0 {
			continue
		}

		amount, typ, err := l.revertOne(ctx, tx, tokenID, req.Receiver, req.PreviousOwners[i], want)
		if err != nil {
			return nil, nil, fmt.Errorf("multitoken: revert item %d (%s): %w", i, tokenID, err)
		}
		reverted[i], types[i] = amount, typ
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return reverted, types, nil
}

func (l *Ledger) revertOne(
	ctx context.Context,
	tx *state.Tx,
	tokenID token.ID,
	receiverID, previousOwner token.AccountID,
	want token.Amount,
) (token.Amount, token.Type, error) {
	typ, ok, err := tx.TokenType(ctx, tokenID)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	}

	switch typ {
	case token.NonFungible:
		owner, _, err := tx.Owner(ctx, tokenID)
		if err != nil {
			return 0, typ, err
		}
		if owner != receiverID {
			l.logger.Info("revert skipped, token moved since transfer",
				"token_id", tokenID,
				"receiver", receiverID,
				"owner", owner,
			)
			return 0, typ, nil
		}
		// Approvals granted by the receiver do not survive the revert, and
		// the previous owner's are not restored.
		if _, err := l.approvals.clear(ctx, tx, tokenID); err != nil {
			return 0, typ, err
		}
		if err := tx.PutOwner(ctx, tokenID, previousOwner); err != nil {
			return 0, typ, err
		}
		return 1, typ, nil

	case token.Fungible:
		balance, _, err := tx.Balance(ctx, tokenID, receiverID)
		if err != nil {
			return 0, typ, err
		}
		amount := min(want, balance)
		if amount.IsZero() {
			l.logger.Info("revert skipped, receiver balance exhausted",
				"token_id", tokenID,
				"receiver", receiverID,
			)
			return 0, typ, nil
		}
		if err := move(ctx, tx, tokenID, receiverID, previousOwner, amount); err != nil {
			return 0, typ, err
		}
		return amount, typ, nil

	default:
		return 0, typ, fmt.Errorf("multitoken: token %s has unknown type %d", tokenID, typ)
	}
}

func (l *Ledger) emitResolution(ctx context.Context, req ResolveRequest, res *Resolution, types []token.Type, created time.Time) {
	for i, amount := range res.Reverted {
		if amount == 0 {
			continue
		}
		l.logger.Info("transfer reverted",
			"transfer_id", res.PendingID,
			"token_id", req.TokenIDs[i],
			"from", req.Receiver,
			"to", req.PreviousOwners[i],
			"amount", amount,
		)
		l.plugins.EmitTransfer(ctx, &event.Transfer{
			ID:        id.NewTransferEventID(),
			Kind:      event.KindRevert,
			TokenID:   req.TokenIDs[i],
			TokenType: types[i],
			From:      req.Receiver,
			To:        req.PreviousOwners[i],
			Amount:    amount,
			PendingID: res.PendingID,
			At:        res.ResolvedAt,
		})
	}

	ev := &event.Resolution{
		PendingID:   res.PendingID,
		Sender:      req.Sender,
		Receiver:    req.Receiver,
		TokenIDs:    req.TokenIDs,
		Transferred: res.Transferred,
		Reverted:    res.Reverted,
		Outcome:     event.OutcomeResolved,
		Failure:     res.Failure,
		At:          res.ResolvedAt,
	}
	if res.State == StateReverted {
		ev.Outcome = event.OutcomeReverted
	}
	if !created.IsZero() {
		ev.Latency = res.ResolvedAt.Sub(created)
	}
	if res.Failure != "" {
		l.logger.Warn("notification failed, tokens returned",
			"transfer_id", res.PendingID,
			"failure", res.Failure,
		)
	}
	l.plugins.EmitTransferResolved(ctx, ev)
}

func validateResolve(req ResolveRequest) error {
	var errs MultiError
	errs.Add(req.Sender.Validate())
	errs.Add(req.Receiver.Validate())
	for i := range req.TokenIDs {
		if err := lookupID(req.TokenIDs[i]); err != nil {
			errs.Add(fmt.Errorf("token_ids[%d]: %w", i, err))
		}
		if err := req.PreviousOwners[i].Validate(); err != nil {
			errs.Add(fmt.Errorf("previous_owner_ids[%d]: %w", i, err))
		}
	}
	return errs.ErrorOrNil()
}
