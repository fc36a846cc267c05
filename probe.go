package multitoken

import (
	"context"
	"fmt"

	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/store"
	"github.com/xraph/multitoken/token"
)

// probeMetadata is the metadata record written while measuring non-fungible
// storage cost.
var probeMetadata = &token.Metadata{
	Title:         token.Reserved,
	Description:   token.Reserved,
	Media:         token.Reserved,
	ReferenceHash: token.Reserved,
}

// measure stages synthetic records under the reserved token ID and account,
// reads the usage counter between writes, and discards everything. The store
// is never written.
func measure(ctx context.Context, s store.Store, approvals approvalExtension, metadata metadataExtension) (token.StorageCosts, error) {
	tx := state.Begin(s)
	defer tx.Discard()

	p := &probe{ctx: ctx, tx: tx}
	sentinel := token.ID(token.Reserved)
	holder := token.AccountID(token.Reserved)

	base := p.usage()

	// Fungible: token creation, then one holder row.
	p.do(tx.PutTokenType(ctx, sentinel, token.Fungible))
	p.do(tx.PutSupply(ctx, sentinel, 0))
	if metadata.enabled() {
		p.do(metadata.put(ctx, tx, sentinel, probeMetadata))
	}
	created := p.usage()
	p.do(tx.PutBalance(ctx, sentinel, holder, 0))
	withRow := p.usage()

	p.do(tx.DeleteBalance(ctx, sentinel, holder))
	if metadata.enabled() {
		p.do(metadata.remove(ctx, tx, sentinel))
	}
	p.do(tx.DeleteSupply(ctx, sentinel))
	p.do(tx.DeleteTokenType(ctx, sentinel))
	p.expect(base, "fungible")

	// Non-fungible: type, owner, metadata and one approval.
	p.do(tx.PutTokenType(ctx, sentinel, token.NonFungible))
	p.do(tx.PutOwner(ctx, sentinel, holder))
	if metadata.enabled() {
		p.do(metadata.put(ctx, tx, sentinel, probeMetadata))
	}
	if approvals.enabled() {
		p.do(tx.PutApprovals(ctx, sentinel, token.Approvals{holder: 1}))
		p.do(tx.PutNextApprovalSeq(ctx, sentinel, 1))
	}
	full := p.usage()

	if approvals.enabled() {
		p.do(tx.DeleteNextApprovalSeq(ctx, sentinel))
		p.do(tx.DeleteApprovals(ctx, sentinel))
	}
	if metadata.enabled() {
		p.do(metadata.remove(ctx, tx, sentinel))
	}
	p.do(tx.DeleteOwner(ctx, sentinel))
	p.do(tx.DeleteTokenType(ctx, sentinel))
	p.expect(base, "non-fungible")

	if p.err != nil {
		return token.StorageCosts{}, fmt.Errorf("multitoken: measure storage cost: %w", p.err)
	}

	return token.StorageCosts{
		FTCreation:   created - base,
		FTBalanceRow: withRow - created,
		NFTFull:      full - base,
	}, nil
}

// probe keeps the first error of a sequence of staged writes.
type probe struct {
	ctx context.Context
	tx  *state.Tx
	err error
}

func (p *probe) do(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *probe) usage() uint64 {
	if p.err != nil {
		return 0
	}
	u, err := p.tx.Usage(p.ctx)
	p.do(err)
	return u
}

func (p *probe) expect(base uint64, kind string) {
	if u := p.usage(); p.err == nil && u != base {
		p.err = fmt.Errorf("%s probe left %d bytes behind", kind, int64(u)-int64(base))
	}
}
