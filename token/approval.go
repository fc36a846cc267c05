package token

import (
	"slices"
	"strconv"

	"github.com/samber/lo"
)

// ApprovalSeq tags one approval so a transfer can prove it acts on the
// approval it saw.
type ApprovalSeq uint64

// String renders the sequence in base 10.
func (s ApprovalSeq) String() string { return strconv.FormatUint(uint64(s), 10) }

// MarshalText implements encoding.TextMarshaler.
func (s ApprovalSeq) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ApprovalSeq) UnmarshalText(data []byte) error {
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return err
	}
	*s = ApprovalSeq(v)
	return nil
}

// Approvals maps approved accounts to the sequence they were approved with.
type Approvals map[AccountID]ApprovalSeq

// Clone returns an independent copy. A nil map clones to nil.
func (a Approvals) Clone() Approvals {
	if a == nil {
		return nil
	}
	out := make(Approvals, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Accounts returns the approved accounts in ascending order.
func (a Approvals) Accounts() []AccountID {
	keys := lo.Keys(a)
	slices.Sort(keys)
	return keys
}

// Lookup returns the sequence recorded for account.
func (a Approvals) Lookup(account AccountID) (ApprovalSeq, bool) {
	seq, ok := a[account]
	return seq, ok
}
