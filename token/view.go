package token

// View is the read model returned for a single token.
//
// Owner is set only for non-fungible tokens and Supply only for fungible
// ones. Approvals is nil when the approval extension is disabled and an empty
// map when it is enabled but nothing is approved.
type View struct {
	ID        ID         `json:"token_id"`
	Type      Type       `json:"token_type"`
	Owner     *AccountID `json:"owner_id"`
	Supply    *Amount    `json:"supply"`
	Approvals Approvals  `json:"approved_account_ids"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
}

// Holder is one row of a fungible token's holder map.
type Holder struct {
	Account AccountID `json:"account_id"`
	Balance Amount    `json:"balance"`
}

// StorageCosts are the persisted-byte costs measured once when the ledger is
// first started.
type StorageCosts struct {
	FTCreation   uint64 `json:"ft_creation_bytes"    bson:"ft_creation"`
	FTBalanceRow uint64 `json:"ft_balance_row_bytes" bson:"ft_balance_row"`
	NFTFull      uint64 `json:"nft_full_row_bytes"   bson:"nft_full"`
}
