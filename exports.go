package multitoken

import "github.com/xraph/multitoken/token"

// Re-export common types for convenience so users don't have to import the
// token package.

// TokenID is re-exported from the token package.
type TokenID = token.ID

// AccountID is re-exported from the token package.
type AccountID = token.AccountID

// Amount is re-exported from the token package.
type Amount = token.Amount

// TokenType is re-exported from the token package.
type TokenType = token.Type

// ApprovalSeq is re-exported from the token package.
type ApprovalSeq = token.ApprovalSeq

// Approvals is re-exported from the token package.
type Approvals = token.Approvals

// Metadata is re-exported from the token package.
type Metadata = token.Metadata

// TokenView is re-exported from the token package.
type TokenView = token.View

// Holder is re-exported from the token package.
type Holder = token.Holder

// StorageCosts is re-exported from the token package.
type StorageCosts = token.StorageCosts

// Token types.
const (
	Fungible    = token.Fungible
	NonFungible = token.NonFungible
)

// Re-export constructors
var (
	ParseAmount = token.ParseAmount
	ParseType   = token.ParseType
)
