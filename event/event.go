// Package event defines the records the ledger emits to plugins after a
// change has been committed.
package event

import (
	"time"

	"github.com/xraph/multitoken/id"
	"github.com/xraph/multitoken/token"
)

// Kind distinguishes a forward transfer from a revert.
type Kind string

const (
	// KindTransfer is a transfer requested by a caller.
	KindTransfer Kind = "transfer"
	// KindRevert returns tokens to their previous owner while resolving a
	// transfer-and-notify.
	KindRevert Kind = "revert"
)

// Transfer is emitted once per token moved.
type Transfer struct {
	ID        id.EventID      `json:"id"`
	Kind      Kind            `json:"kind"`
	TokenID   token.ID        `json:"token_id"`
	TokenType token.Type      `json:"token_type"`
	From      token.AccountID `json:"old_owner_id"`
	To        token.AccountID `json:"new_owner_id"`
	Amount    token.Amount    `json:"amount"`
	Memo      string          `json:"memo,omitempty"`

	// AuthorizedBy is the approved account that moved a token it does not own.
	AuthorizedBy token.AccountID `json:"authorized_id,omitempty"`
	// PendingID links the event to a transfer-and-notify, if any.
	PendingID id.TransferID `json:"pending_id,omitzero"`
	At        time.Time     `json:"at"`
}

// Mint is emitted when a token is created.
type Mint struct {
	ID      id.EventID      `json:"id"`
	TokenID token.ID        `json:"token_id"`
	Type    token.Type      `json:"token_type"`
	Owner   token.AccountID `json:"owner_id"`
	Amount  token.Amount    `json:"amount"`
	At      time.Time       `json:"at"`
}

// Approval is emitted when an approval is granted or revoked. Account is
// empty when every approval of the token was revoked at once.
type Approval struct {
	ID      id.EventID        `json:"id"`
	TokenID token.ID          `json:"token_id"`
	Owner   token.AccountID   `json:"owner_id"`
	Account token.AccountID   `json:"account_id,omitempty"`
	Seq     token.ApprovalSeq `json:"approval_id,omitempty"`
	Revoked bool              `json:"revoked"`
	At      time.Time         `json:"at"`
}

// Outcome is the final state of a transfer-and-notify.
type Outcome string

const (
	// OutcomeResolved means no token was returned to its previous owner.
	OutcomeResolved Outcome = "resolved"
	// OutcomeReverted means at least one token was returned.
	OutcomeReverted Outcome = "reverted"
)

// Resolution is emitted when a transfer-and-notify settles.
type Resolution struct {
	PendingID id.TransferID   `json:"pending_id,omitzero"`
	Sender    token.AccountID `json:"sender_id"`
	Receiver  token.AccountID `json:"receiver_id"`
	TokenIDs  []token.ID      `json:"token_ids"`

	// Transferred holds, per token, the amount that stayed with the receiver.
	Transferred []token.Amount `json:"transferred"`
	// Reverted holds, per token, the amount returned to the previous owner.
	Reverted []token.Amount `json:"reverted"`
	Outcome  Outcome        `json:"outcome"`
	// Failure describes why the receiver's verdict was not used.
	Failure string        `json:"failure,omitempty"`
	At      time.Time     `json:"at"`
	Latency time.Duration `json:"latency"`
}
