package multitoken_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/multitoken"
	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/store"
	"github.com/xraph/multitoken/store/memory"
	"github.com/xraph/multitoken/token"
)

const root = "root"

func newLedger(t *testing.T, opts ...multitoken.Option) (*multitoken.Ledger, *memory.Store) {
	t.Helper()

	s := memory.New()
	base := []multitoken.Option{
		multitoken.WithLogger(slog.New(slog.DiscardHandler)),
		multitoken.WithOwner(root),
		multitoken.WithApprovals(true),
		multitoken.WithMetadata(true),
	}
	l := multitoken.New(s, append(base, opts...)...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	return l, s
}

func mintFT(t *testing.T, l *multitoken.Ledger, tokenID token.ID, owner token.AccountID, amount token.Amount) {
	t.Helper()
	_, err := l.Mint(context.Background(), root, multitoken.MintRequest{
		TokenID: tokenID,
		Type:    multitoken.Fungible,
		Owner:   owner,
		Amount:  amount,
	})
	require.NoError(t, err)
}

func mintNFT(t *testing.T, l *multitoken.Ledger, tokenID token.ID, owner token.AccountID) {
	t.Helper()
	_, err := l.Mint(context.Background(), root, multitoken.MintRequest{
		TokenID: tokenID,
		Type:    multitoken.NonFungible,
		Owner:   owner,
	})
	require.NoError(t, err)
}

func balance(t *testing.T, l *multitoken.Ledger, account token.AccountID, tokenID token.ID) token.Amount {
	t.Helper()
	b, err := l.BalanceOf(context.Background(), account, tokenID)
	require.NoError(t, err)
	return b
}

func owner(t *testing.T, l *multitoken.Ledger, tokenID token.ID) token.AccountID {
	t.Helper()
	v, err := l.Token(context.Background(), tokenID)
	require.NoError(t, err)
	require.NotNil(t, v.Owner)
	return *v.Owner
}

// recorder collects transfer and resolution events.
type recorder struct {
	mu        sync.Mutex
	transfers []*event.Transfer
	resolved  []*event.Resolution
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnTransfer(_ context.Context, ev *event.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, ev)
	return nil
}

func (r *recorder) OnTransferResolved(_ context.Context, ev *event.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, ev)
	return nil
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, len(r.transfers))
	for i, ev := range r.transfers {
		out[i] = ev.Kind
	}
	return out
}

func wait(t *testing.T, p *multitoken.Pending) *multitoken.Resolution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	require.NoError(t, err)
	return res
}

// ──────────────────────────────────────────────────
// Lifecycle and storage costs
// ──────────────────────────────────────────────────

func TestStartMeasuresStorageCosts(t *testing.T) {
	l, s := newLedger(t)

	costs := l.StorageCosts()
	assert.Positive(t, costs.FTCreation)
	assert.Positive(t, costs.FTBalanceRow)
	assert.Positive(t, costs.NFTFull)

	// Only the header remains.
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, token.AccountID(root), l.Owner())
}

func TestStorageCostsGrowWithExtensions(t *testing.T) {
	bare, _ := newLedger(t, multitoken.WithApprovals(false), multitoken.WithMetadata(false))
	full, _ := newLedger(t)

	assert.Greater(t, full.StorageCosts().NFTFull, bare.StorageCosts().NFTFull)
	assert.Greater(t, full.StorageCosts().FTCreation, bare.StorageCosts().FTCreation)
	assert.Equal(t, full.StorageCosts().FTBalanceRow, bare.StorageCosts().FTBalanceRow)
}

func TestStartReloadsHeader(t *testing.T) {
	ctx := context.Background()
	first, s := newLedger(t)
	mintFT(t, first, "gold", "alice", 100)
	costs := first.StorageCosts()
	require.NoError(t, first.Stop())

	t.Run("adopts stored settings", func(t *testing.T) {
		l := multitoken.New(s, multitoken.WithLogger(slog.New(slog.DiscardHandler)))
		require.NoError(t, l.Start(ctx))

		assert.Equal(t, token.AccountID(root), l.Owner())
		assert.Equal(t, costs, l.StorageCosts())
		assert.True(t, l.ApprovalsEnabled())
		assert.True(t, l.MetadataEnabled())
		assert.Equal(t, token.Amount(100), balance(t, l, "alice", "gold"))
	})

	t.Run("rejects a different owner", func(t *testing.T) {
		l := multitoken.New(s, multitoken.WithOwner("mallory"))
		assert.ErrorIs(t, l.Start(ctx), multitoken.ErrHeaderMismatch)
	})
}

func TestStartRequiresOwnerAndEmptyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing owner", func(t *testing.T) {
		l := multitoken.New(memory.New())
		var ve multitoken.ValidationError
		require.ErrorAs(t, l.Start(ctx), &ve)
		assert.Equal(t, "owner", ve.Field)
	})

	t.Run("foreign records", func(t *testing.T) {
		s := memory.New()
		b := store.NewBatch()
		b.Put([]byte("foreign"), []byte("row"))
		require.NoError(t, s.Apply(ctx, b))

		l := multitoken.New(s, multitoken.WithOwner(root))
		assert.ErrorIs(t, l.Start(ctx), multitoken.ErrLedgerNotEmpty)
	})
}

func TestCallsRequireStartedLedger(t *testing.T) {
	ctx := context.Background()
	l := multitoken.New(memory.New(), multitoken.WithOwner(root))

	_, err := l.BalanceOf(ctx, "alice", "gold")
	assert.ErrorIs(t, err, multitoken.ErrNotStarted)

	require.NoError(t, l.Start(ctx))
	require.NoError(t, l.Stop())

	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "gold", Amount: 1})
	assert.ErrorIs(t, err, multitoken.ErrStopped)
}

// ──────────────────────────────────────────────────
// Mint and queries
// ──────────────────────────────────────────────────

func TestMint(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	view, err := l.Mint(ctx, root, multitoken.MintRequest{
		TokenID:  "gold",
		Type:     multitoken.Fungible,
		Owner:    "alice",
		Amount:   100,
		Metadata: &token.Metadata{Title: "Gold"},
	})
	require.NoError(t, err)
	require.NotNil(t, view.Supply)
	assert.Equal(t, token.Amount(100), *view.Supply)
	assert.Nil(t, view.Owner)
	assert.Equal(t, "Gold", view.Metadata.Title)

	view, err = l.Mint(ctx, root, multitoken.MintRequest{TokenID: "sword", Type: multitoken.NonFungible, Owner: "alice"})
	require.NoError(t, err)
	require.NotNil(t, view.Owner)
	assert.Equal(t, token.AccountID("alice"), *view.Owner)
	assert.Nil(t, view.Supply)
	assert.Empty(t, view.Approvals)
	assert.NotNil(t, view.Approvals)

	tests := []struct {
		name   string
		caller token.AccountID
		req    multitoken.MintRequest
		want   error
	}{
		{"not ledger owner", "alice", multitoken.MintRequest{TokenID: "x", Type: multitoken.Fungible, Owner: "alice"}, multitoken.ErrNotLedgerOwner},
		{"duplicate id", root, multitoken.MintRequest{TokenID: "gold", Type: multitoken.NonFungible, Owner: "bob"}, multitoken.ErrTokenExists},
		{"reserved id", root, multitoken.MintRequest{TokenID: token.ID(token.Reserved), Type: multitoken.Fungible, Owner: "bob"}, multitoken.ErrInvalidTokenID},
		{"unknown type", root, multitoken.MintRequest{TokenID: "x", Type: 9, Owner: "bob"}, multitoken.ErrInvalidType},
		{"empty owner", root, multitoken.MintRequest{TokenID: "x", Type: multitoken.Fungible}, multitoken.ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Mint(ctx, tt.caller, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("nft amount above one", func(t *testing.T) {
		_, err := l.Mint(ctx, root, multitoken.MintRequest{TokenID: "x", Type: multitoken.NonFungible, Owner: "bob", Amount: 2})
		var ve multitoken.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestMintMetadataDisabled(t *testing.T) {
	l, _ := newLedger(t, multitoken.WithMetadata(false))

	_, err := l.Mint(context.Background(), root, multitoken.MintRequest{
		TokenID:  "gold",
		Type:     multitoken.Fungible,
		Owner:    "alice",
		Amount:   1,
		Metadata: &token.Metadata{Title: "Gold"},
	})
	assert.ErrorIs(t, err, multitoken.ErrMetadataDisabled)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintFT(t, l, "gold", "alice", 100)
	mintNFT(t, l, "sword", "alice")

	balances, err := l.BalanceOfBatch(ctx, "alice", []token.ID{"gold", "sword"})
	require.NoError(t, err)
	assert.Equal(t, []token.Amount{100, 1}, balances)

	balances, err = l.BalanceOfBatch(ctx, "bob", []token.ID{"gold", "sword"})
	require.NoError(t, err)
	assert.Equal(t, []token.Amount{0, 0}, balances)

	supplies, err := l.TotalSupplyBatch(ctx, []token.ID{"gold", "sword"})
	require.NoError(t, err)
	assert.Equal(t, []token.Amount{100, 1}, supplies)

	holders, err := l.Holders(ctx, "sword")
	require.NoError(t, err)
	assert.Equal(t, []token.Holder{{Account: "alice", Balance: 1}}, holders)

	_, err = l.TotalSupply(ctx, "missing")
	assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)
	_, err = l.Token(ctx, "missing")
	assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

func TestFungibleRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintFT(t, l, "2", "A", 100)

	_, err := l.Transfer(ctx, multitoken.TransferRequest{Sender: "A", Receiver: "B", TokenID: "2", Amount: 40})
	require.NoError(t, err)
	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "B", Receiver: "A", TokenID: "2", Amount: 40})
	require.NoError(t, err)

	assert.Equal(t, token.Amount(100), balance(t, l, "A", "2"))
	assert.Equal(t, token.Amount(0), balance(t, l, "B", "2"))
	supply, err := l.TotalSupply(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, token.Amount(100), supply)
}

func TestNonFungibleRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintNFT(t, l, "1", "A")

	r, err := l.Transfer(ctx, multitoken.TransferRequest{Sender: "A", Receiver: "B", TokenID: "1"})
	require.NoError(t, err)
	assert.Equal(t, token.AccountID("A"), r.PreviousOwner)
	assert.Equal(t, token.Amount(1), r.Amount)

	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "B", Receiver: "A", TokenID: "1"})
	require.NoError(t, err)

	assert.Equal(t, token.AccountID("A"), owner(t, l, "1"))
}

func TestSupplyIsConserved(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintFT(t, l, "gold", "alice", 1000)

	moves := []multitoken.TransferRequest{
		{Sender: "alice", Receiver: "bob", TokenID: "gold", Amount: 300},
		{Sender: "bob", Receiver: "carol", TokenID: "gold", Amount: 120},
		{Sender: "carol", Receiver: "alice", TokenID: "gold", Amount: 20},
		{Sender: "alice", Receiver: "dave", TokenID: "gold", Amount: 0},
		{Sender: "bob", Receiver: "dave", TokenID: "gold", Amount: 180},
	}
	for _, m := range moves {
		_, err := l.Transfer(ctx, m)
		require.NoError(t, err)

		holders, err := l.Holders(ctx, "gold")
		require.NoError(t, err)
		var sum token.Amount
		for _, h := range holders {
			sum += h.Balance
		}
		assert.Equal(t, token.Amount(1000), sum)
	}
}

func TestSingleOwner(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintNFT(t, l, "sword", "alice")

	_, err := l.Transfer(ctx, multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "sword"})
	require.NoError(t, err)

	var total token.Amount
	for _, a := range []token.AccountID{"alice", "bob", "carol"} {
		total += balance(t, l, a, "sword")
	}
	assert.Equal(t, token.Amount(1), total)
	assert.Equal(t, token.Amount(1), balance(t, l, "bob", "sword"))
}

func TestZeroAmountTransferIsRecorded(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	l, _ := newLedger(t, multitoken.WithPlugin(rec))
	mintFT(t, l, "gold", "alice", 10)

	_, err := l.Transfer(ctx, multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "gold", Memo: "ping"})
	require.NoError(t, err)

	require.Len(t, rec.transfers, 1)
	assert.Equal(t, token.Amount(0), rec.transfers[0].Amount)
	assert.Equal(t, "ping", rec.transfers[0].Memo)
	assert.Equal(t, token.Amount(10), balance(t, l, "alice", "gold"))
}

func TestRejectedTransfersChangeNothing(t *testing.T) {
	ctx := context.Background()
	seq := token.ApprovalSeq(7)

	tests := []struct {
		name string
		req  multitoken.BatchTransferRequest
		want error
	}{
		{"token not found", multitoken.BatchTransferRequest{Sender: "alice", Receiver: "bob", TokenIDs: []token.ID{"missing"}, Amounts: []token.Amount{1}}, multitoken.ErrTokenNotFound},
		{"same account", multitoken.BatchTransferRequest{Sender: "alice", Receiver: "alice", TokenIDs: []token.ID{"gold"}, Amounts: []token.Amount{1}}, multitoken.ErrSameAccount},
		{"nft back to owner", multitoken.BatchTransferRequest{Sender: "bob", Receiver: "alice", TokenIDs: []token.ID{"sword"}, Amounts: []token.Amount{1}}, multitoken.ErrSameAccount},
		{"unauthorized", multitoken.BatchTransferRequest{Sender: "carol", Receiver: "dave", TokenIDs: []token.ID{"shield"}, Amounts: []token.Amount{1}}, multitoken.ErrUnauthorized},
		{"sender not approved", multitoken.BatchTransferRequest{Sender: "carol", Receiver: "dave", TokenIDs: []token.ID{"sword"}, Amounts: []token.Amount{1}}, multitoken.ErrSenderNotApproved},
		{"approval mismatch", multitoken.BatchTransferRequest{Sender: "bob", Receiver: "dave", TokenIDs: []token.ID{"sword"}, Amounts: []token.Amount{1}, ApprovalSeq: &seq}, multitoken.ErrApprovalMismatch},
		{"insufficient balance", multitoken.BatchTransferRequest{Sender: "alice", Receiver: "bob", TokenIDs: []token.ID{"gold"}, Amounts: []token.Amount{101}}, multitoken.ErrInsufficientBalance},
		{"not a holder", multitoken.BatchTransferRequest{Sender: "bob", Receiver: "carol", TokenIDs: []token.ID{"gold"}, Amounts: []token.Amount{0}}, multitoken.ErrNotATokenHolder},
		{"length mismatch", multitoken.BatchTransferRequest{Sender: "alice", Receiver: "bob", TokenIDs: []token.ID{"gold", "sword"}, Amounts: []token.Amount{1}}, multitoken.ErrLengthMismatch},
		{"empty batch", multitoken.BatchTransferRequest{Sender: "alice", Receiver: "bob"}, multitoken.ErrEmptyBatch},
		{"invalid account", multitoken.BatchTransferRequest{Sender: "", Receiver: "bob", TokenIDs: []token.ID{"gold"}, Amounts: []token.Amount{1}}, multitoken.ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			l, s := newLedger(t, multitoken.WithPlugin(rec))
			mintFT(t, l, "gold", "alice", 100)
			mintNFT(t, l, "sword", "alice")
			mintNFT(t, l, "shield", "alice")
			_, err := l.Approve(ctx, "alice", "sword", "bob")
			require.NoError(t, err)
			rows := s.Len()

			_, err = l.BatchTransfer(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)

			assert.Equal(t, rows, s.Len())
			assert.Equal(t, token.Amount(100), balance(t, l, "alice", "gold"))
			assert.Equal(t, token.AccountID("alice"), owner(t, l, "sword"))
			ok, err := l.IsApproved(ctx, "sword", "bob", nil)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, rec.transfers)
		})
	}
}

func TestMalformedTokenIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintFT(t, l, "gold", "alice", 100)

	for _, tokenID := range []token.ID{"", token.ID(token.Reserved), token.ID(string(make([]byte, 65)))} {
		_, err := l.Transfer(ctx, multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: tokenID, Amount: 1})
		assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)
		assert.ErrorIs(t, err, multitoken.ErrInvalidTokenID)

		_, err = l.BatchTransfer(ctx, multitoken.BatchTransferRequest{
			Sender:   "alice",
			Receiver: "bob",
			TokenIDs: []token.ID{"gold", tokenID},
			Amounts:  []token.Amount{1, 1},
		})
		assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)

		_, err = l.TotalSupply(ctx, tokenID)
		assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)
	}
	assert.Equal(t, token.Amount(100), balance(t, l, "alice", "gold"))
}

func TestBatchTransferIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintFT(t, l, "gold", "alice", 100)
	mintNFT(t, l, "sword", "carol")

	_, err := l.BatchTransfer(ctx, multitoken.BatchTransferRequest{
		Sender:   "alice",
		Receiver: "bob",
		TokenIDs: []token.ID{"gold", "sword"},
		Amounts:  []token.Amount{40, 1},
	})
	require.ErrorIs(t, err, multitoken.ErrUnauthorized)
	assert.Contains(t, err.Error(), "batch item 1 (sword)")

	assert.Equal(t, token.Amount(100), balance(t, l, "alice", "gold"))
	assert.Equal(t, token.Amount(0), balance(t, l, "bob", "gold"))

	receipts, err := l.BatchTransfer(ctx, multitoken.BatchTransferRequest{
		Sender:   "alice",
		Receiver: "bob",
		TokenIDs: []token.ID{"gold", "gold"},
		Amounts:  []token.Amount{60, 40},
	})
	require.NoError(t, err)
	assert.Len(t, receipts, 2)
	assert.Equal(t, token.Amount(100), balance(t, l, "bob", "gold"))
}

// ──────────────────────────────────────────────────
// Approvals
// ──────────────────────────────────────────────────

func TestApprovalsClearedAfterTransfer(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintNFT(t, l, "sword", "alice")

	seq, err := l.Approve(ctx, "alice", "sword", "bob")
	require.NoError(t, err)
	assert.Equal(t, token.ApprovalSeq(1), seq)
	seq, err = l.Approve(ctx, "alice", "sword", "carol")
	require.NoError(t, err)
	assert.Equal(t, token.ApprovalSeq(2), seq)

	bobSeq := token.ApprovalSeq(1)
	r, err := l.Transfer(ctx, multitoken.TransferRequest{Sender: "bob", Receiver: "dave", TokenID: "sword", ApprovalSeq: &bobSeq})
	require.NoError(t, err)
	assert.Equal(t, token.AccountID("alice"), r.PreviousOwner)
	assert.Equal(t, token.Approvals{"bob": 1, "carol": 2}, r.PreviousApprovals)

	view, err := l.Token(ctx, "sword")
	require.NoError(t, err)
	assert.Empty(t, view.Approvals)
	assert.Equal(t, token.AccountID("dave"), *view.Owner)

	// Sequence numbers survive the transfer.
	seq, err = l.Approve(ctx, "dave", "sword", "erin")
	require.NoError(t, err)
	assert.Equal(t, token.ApprovalSeq(3), seq)
}

func TestApprovalManagement(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintNFT(t, l, "sword", "alice")
	mintFT(t, l, "gold", "alice", 1)

	_, err := l.Approve(ctx, "bob", "sword", "carol")
	assert.ErrorIs(t, err, multitoken.ErrUnauthorized)
	_, err = l.Approve(ctx, "alice", "gold", "carol")
	assert.ErrorIs(t, err, multitoken.ErrNotNonFungible)
	_, err = l.Approve(ctx, "alice", "sword", "alice")
	assert.ErrorIs(t, err, multitoken.ErrSameAccount)
	_, err = l.Approve(ctx, "alice", "missing", "carol")
	assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)

	seq, err := l.Approve(ctx, "alice", "sword", "bob")
	require.NoError(t, err)
	_, err = l.Approve(ctx, "alice", "sword", "carol")
	require.NoError(t, err)

	ok, err := l.IsApproved(ctx, "sword", "bob", &seq)
	require.NoError(t, err)
	assert.True(t, ok)
	wrong := seq + 10
	ok, err = l.IsApproved(ctx, "sword", "bob", &wrong)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Revoke(ctx, "alice", "sword", "bob"))
	require.NoError(t, l.Revoke(ctx, "alice", "sword", "nobody"))
	ok, err = l.IsApproved(ctx, "sword", "bob", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.RevokeAll(ctx, "alice", "sword"))
	view, err := l.Token(ctx, "sword")
	require.NoError(t, err)
	assert.Empty(t, view.Approvals)
}

func TestApprovalsDisabled(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, multitoken.WithApprovals(false))
	mintNFT(t, l, "sword", "alice")

	_, err := l.Approve(ctx, "alice", "sword", "bob")
	assert.ErrorIs(t, err, multitoken.ErrApprovalsDisabled)

	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "bob", Receiver: "carol", TokenID: "sword"})
	assert.ErrorIs(t, err, multitoken.ErrUnauthorized)

	view, err := l.Token(ctx, "sword")
	require.NoError(t, err)
	assert.Nil(t, view.Approvals)
}

// ──────────────────────────────────────────────────
// Transfer and notify
// ──────────────────────────────────────────────────

func TestTransferCallAccepted(t *testing.T) {
	ctx := context.Background()
	dir := receiver.NewDirectory()
	var got *receiver.Notification
	dir.Register("bob", receiver.Func(func(_ context.Context, n *receiver.Notification) (*receiver.Verdict, error) {
		got = n
		return receiver.Accept(), nil
	}))
	rec := &recorder{}
	l, _ := newLedger(t, multitoken.WithReceivers(dir), multitoken.WithPlugin(rec))
	mintNFT(t, l, "sword", "alice")

	p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{
		TransferRequest: multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "sword"},
		Message:         "list at 10",
	})
	require.NoError(t, err)
	// Applied before the receiver answers.
	assert.Equal(t, token.AccountID("bob"), owner(t, l, "sword"))

	res := wait(t, p)
	assert.Equal(t, multitoken.StateResolved, res.State)
	assert.Equal(t, []token.Amount{0}, res.Reverted)
	assert.Equal(t, []token.Amount{1}, res.Transferred)
	assert.Equal(t, token.AccountID("bob"), owner(t, l, "sword"))

	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.TransferID)
	assert.Equal(t, []token.AccountID{"alice"}, got.PreviousOwners)
	assert.Equal(t, "list at 10", got.Message)

	same, err := l.Pending(p.ID)
	require.NoError(t, err)
	assert.Same(t, p, same)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.resolved, 1)
	assert.Equal(t, event.OutcomeResolved, rec.resolved[0].Outcome)
}

func TestTransferCallFullRevert(t *testing.T) {
	ctx := context.Background()
	dir := receiver.NewDirectory()
	dir.Register("B", receiver.Func(func(_ context.Context, n *receiver.Notification) (*receiver.Verdict, error) {
		return receiver.Reject(n), nil
	}))
	rec := &recorder{}
	l, _ := newLedger(t, multitoken.WithReceivers(dir), multitoken.WithPlugin(rec))
	mintNFT(t, l, "1", "A")
	_, err := l.Approve(ctx, "A", "1", "C")
	require.NoError(t, err)

	p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{
		TransferRequest: multitoken.TransferRequest{Sender: "A", Receiver: "B", TokenID: "1"},
	})
	require.NoError(t, err)

	res := wait(t, p)
	assert.Equal(t, multitoken.StateReverted, res.State)
	assert.Equal(t, []token.Amount{1}, res.Reverted)
	assert.Equal(t, token.AccountID("A"), owner(t, l, "1"))
	assert.Equal(t, multitoken.StateReverted, p.State())

	// Approvals are not restored by a revert.
	view, err := l.Token(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, view.Approvals)

	assert.Equal(t, []event.Kind{event.KindTransfer, event.KindRevert}, rec.kinds())
}

func TestRevertClearsReceiverApprovals(t *testing.T) {
	ctx := context.Background()
	var l *multitoken.Ledger
	dir := receiver.NewDirectory()
	dir.Register("bob", receiver.Func(func(ctx context.Context, n *receiver.Notification) (*receiver.Verdict, error) {
		if _, err := l.Approve(ctx, "bob", "1", "carol"); err != nil {
			return nil, err
		}
		return receiver.Reject(n), nil
	}))
	l, _ = newLedger(t, multitoken.WithReceivers(dir))
	mintNFT(t, l, "1", "alice")

	p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{
		TransferRequest: multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "1"},
	})
	require.NoError(t, err)

	res := wait(t, p)
	require.Equal(t, multitoken.StateReverted, res.State)
	assert.Equal(t, token.AccountID("alice"), owner(t, l, "1"))

	view, err := l.Token(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, view.Approvals)

	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "carol", Receiver: "dave", TokenID: "1"})
	require.ErrorIs(t, err, multitoken.ErrUnauthorized)
	assert.Equal(t, token.AccountID("alice"), owner(t, l, "1"))
}

func TestTransferCallRevertSkippedAfterTokenMoved(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	dir := receiver.NewDirectory()
	dir.Register("B", receiver.Func(func(_ context.Context, n *receiver.Notification) (*receiver.Verdict, error) {
		close(entered)
		<-release
		return receiver.Reject(n), nil
	}))
	l, _ := newLedger(t, multitoken.WithReceivers(dir))
	mintNFT(t, l, "1", "A")

	p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{
		TransferRequest: multitoken.TransferRequest{Sender: "A", Receiver: "B", TokenID: "1"},
	})
	require.NoError(t, err)

	<-entered
	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "B", Receiver: "C", TokenID: "1"})
	require.NoError(t, err)
	close(release)

	res := wait(t, p)
	assert.Equal(t, multitoken.StateResolved, res.State)
	assert.Equal(t, []token.Amount{0}, res.Reverted)
	assert.Equal(t, token.AccountID("C"), owner(t, l, "1"))
}

func TestBatchTransferCallPartialRefund(t *testing.T) {
	ctx := context.Background()
	dir := receiver.NewDirectory()
	dir.Register("bob", receiver.Func(func(context.Context, *receiver.Notification) (*receiver.Verdict, error) {
		return receiver.Refund(15, 99, 0), nil
	}))
	l, _ := newLedger(t, multitoken.WithReceivers(dir))
	mintFT(t, l, "gold", "alice", 100)
	mintFT(t, l, "silver", "alice", 50)
	mintNFT(t, l, "sword", "alice")

	p, err := l.BatchTransferCall(ctx, multitoken.BatchTransferCallRequest{
		BatchTransferRequest: multitoken.BatchTransferRequest{
			Sender:   "alice",
			Receiver: "bob",
			TokenIDs: []token.ID{"gold", "silver", "sword"},
			Amounts:  []token.Amount{40, 10, 1},
		},
	})
	require.NoError(t, err)

	res := wait(t, p)
	assert.Equal(t, multitoken.StateReverted, res.State)
	assert.Equal(t, []token.Amount{15, 10, 0}, res.Reverted)
	assert.Equal(t, []token.Amount{25, 0, 1}, res.Transferred)

	assert.Equal(t, token.Amount(75), balance(t, l, "alice", "gold"))
	assert.Equal(t, token.Amount(25), balance(t, l, "bob", "gold"))
	assert.Equal(t, token.Amount(50), balance(t, l, "alice", "silver"))
	assert.Equal(t, token.AccountID("bob"), owner(t, l, "sword"))
}

func TestTransferCallFailuresRevertEverything(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		recv    receiver.Receiver
		failure string
	}{
		{
			name: "receiver error",
			recv: receiver.Func(func(context.Context, *receiver.Notification) (*receiver.Verdict, error) {
				return nil, errors.New("out of gas")
			}),
			failure: "out of gas",
		},
		{
			name: "timeout",
			recv: receiver.Func(func(ctx context.Context, _ *receiver.Notification) (*receiver.Verdict, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
			failure: context.DeadlineExceeded.Error(),
		},
		{
			name: "malformed verdict",
			recv: receiver.Func(func(context.Context, *receiver.Notification) (*receiver.Verdict, error) {
				return receiver.Refund(1, 2), nil
			}),
			failure: "malformed verdict",
		},
		{
			name: "panic",
			recv: receiver.Func(func(context.Context, *receiver.Notification) (*receiver.Verdict, error) {
				panic("boom")
			}),
			failure: "receiver panicked",
		},
		{
			name:    "no receiver",
			failure: multitoken.ErrNoReceiver.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := receiver.NewDirectory()
			if tt.recv != nil {
				dir.Register("bob", tt.recv)
			}
			l, _ := newLedger(t, multitoken.WithReceivers(dir), multitoken.WithNotifyTimeout(20*time.Millisecond))
			mintFT(t, l, "gold", "alice", 100)

			p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{
				TransferRequest: multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "gold", Amount: 30},
			})
			require.NoError(t, err)

			res := wait(t, p)
			assert.Equal(t, multitoken.StateReverted, res.State)
			assert.Equal(t, []token.Amount{30}, res.Reverted)
			assert.Contains(t, res.Failure, tt.failure)
			assert.Equal(t, token.Amount(100), balance(t, l, "alice", "gold"))
			assert.Equal(t, token.Amount(0), balance(t, l, "bob", "gold"))
		})
	}
}

func TestStopResolvesPendingTransfers(t *testing.T) {
	ctx := context.Background()
	dir := receiver.NewDirectory()
	entered := make(chan struct{})
	dir.Register("bob", receiver.Func(func(ctx context.Context, _ *receiver.Notification) (*receiver.Verdict, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	l, s := newLedger(t, multitoken.WithReceivers(dir))
	mintNFT(t, l, "sword", "alice")

	p, err := l.TransferCall(ctx, multitoken.TransferCallRequest{
		TransferRequest: multitoken.TransferRequest{Sender: "alice", Receiver: "bob", TokenID: "sword"},
	})
	require.NoError(t, err)
	<-entered

	require.NoError(t, l.Stop())

	res := p.Result()
	require.NotNil(t, res)
	assert.Equal(t, multitoken.StateReverted, res.State)
	assert.Contains(t, res.Failure, context.Canceled.Error())

	// The revert was committed before the store closed.
	reopened := multitoken.New(s)
	require.NoError(t, reopened.Start(ctx))
	assert.Equal(t, token.AccountID("alice"), owner(t, reopened, "sword"))
}

func TestPendingNotFound(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Pending(multitoken.NewTransferID())
	assert.ErrorIs(t, err, multitoken.ErrTransferNotFound)
	assert.True(t, multitoken.IsNotFound(err))
}

func TestResolveTransfer(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	mintFT(t, l, "gold", "alice", 100)
	mintNFT(t, l, "sword", "alice")

	_, err := l.BatchTransfer(ctx, multitoken.BatchTransferRequest{
		Sender:   "alice",
		Receiver: "bob",
		TokenIDs: []token.ID{"gold", "sword"},
		Amounts:  []token.Amount{40, 1},
	})
	require.NoError(t, err)
	// bob spends part of the gold before the resolution arrives.
	_, err = l.Transfer(ctx, multitoken.TransferRequest{Sender: "bob", Receiver: "carol", TokenID: "gold", Amount: 30})
	require.NoError(t, err)

	res, err := l.ResolveTransfer(ctx, multitoken.ResolveRequest{
		Sender:         "alice",
		Receiver:       "bob",
		TokenIDs:       []token.ID{"gold", "sword"},
		Amounts:        []token.Amount{40, 1},
		PreviousOwners: []token.AccountID{"alice", "alice"},
		Outcome:        multitoken.Outcome{Err: errors.New("unreachable")},
	})
	require.NoError(t, err)
	assert.Equal(t, []token.Amount{10, 1}, res.Reverted)
	assert.True(t, res.PendingID.IsNil())

	assert.Equal(t, token.Amount(70), balance(t, l, "alice", "gold"))
	assert.Equal(t, token.Amount(0), balance(t, l, "bob", "gold"))
	assert.Equal(t, token.Amount(30), balance(t, l, "carol", "gold"))
	assert.Equal(t, token.AccountID("alice"), owner(t, l, "sword"))

	_, err = l.ResolveTransfer(ctx, multitoken.ResolveRequest{
		Sender:         "alice",
		Receiver:       "bob",
		TokenIDs:       []token.ID{"gold"},
		Amounts:        []token.Amount{40, 1},
		PreviousOwners: []token.AccountID{"alice"},
	})
	assert.ErrorIs(t, err, multitoken.ErrLengthMismatch)
}
