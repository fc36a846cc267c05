package state

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/multitoken/token"
)

// HeaderVersion is the layout version written by this package.
const HeaderVersion = 1

// Header is the ledger-wide record written once when a ledger is first
// started on an empty store.
type Header struct {
	Version   int                `bson:"version"`
	Owner     token.AccountID    `bson:"owner"`
	Costs     token.StorageCosts `bson:"costs"`
	Approvals bool               `bson:"approvals"`
	Metadata  bool               `bson:"metadata"`
	CreatedAt time.Time          `bson:"created_at"`
}

type approvalEntry struct {
	Account string `bson:"account"`
	Seq     int64  `bson:"seq"`
}

type approvalsRecord struct {
	Entries []approvalEntry `bson:"entries"`
}

func encodeUint64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("state: counter length: expected 8, actual %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeApprovals(a token.Approvals) ([]byte, error) {
	rec := approvalsRecord{Entries: make([]approvalEntry, 0, len(a))}
	for _, acct := range a.Accounts() {
		rec.Entries = append(rec.Entries, approvalEntry{Account: string(acct), Seq: int64(a[acct])})
	}
	return bson.Marshal(rec)
}

func decodeApprovals(b []byte) (token.Approvals, error) {
	var rec approvalsRecord
	if err := bson.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("state: decode approvals: %w", err)
	}
	out := make(token.Approvals, len(rec.Entries))
	for _, e := range rec.Entries {
		out[token.AccountID(e.Account)] = token.ApprovalSeq(e.Seq)
	}
	return out, nil
}
