package multitoken

import "github.com/xraph/multitoken/id"

// ID is the identifier type for records the ledger creates.
type ID = id.ID

// TransferID identifies a pending transfer-and-notify call.
type TransferID = id.TransferID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix

// NewTransferID generates a new pending transfer ID.
func NewTransferID() TransferID { return id.NewTransferID() }

// ParseTransferID parses a pending transfer ID and validates its prefix.
func ParseTransferID(s string) (TransferID, error) { return id.ParseTransferID(s) }
