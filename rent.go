package multitoken

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/multitoken/token"
)

// Deposits prices the measured storage costs at a given price per byte.
type Deposits struct {
	PricePerByte decimal.Decimal `json:"price_per_byte"`
	FTCreation   decimal.Decimal `json:"ft_creation"`
	FTBalanceRow decimal.Decimal `json:"ft_balance_row"`
	NFTFull      decimal.Decimal `json:"nft_full"`
}

// StorageDeposit prices every cost class of c.
func StorageDeposit(c token.StorageCosts, pricePerByte decimal.Decimal) Deposits {
	return Deposits{
		PricePerByte: pricePerByte,
		FTCreation:   bytesCost(c.FTCreation, pricePerByte),
		FTBalanceRow: bytesCost(c.FTBalanceRow, pricePerByte),
		NFTFull:      bytesCost(c.NFTFull, pricePerByte),
	}
}

// ForMint returns the deposit owed for minting a token of type typ.
// Fungible tokens pay for their creation and the owner's holder row.
func (d Deposits) ForMint(typ token.Type) decimal.Decimal {
	if typ == token.NonFungible {
		return d.NFTFull
	}
	return d.FTCreation.Add(d.FTBalanceRow)
}

// ForHolders returns the deposit owed for n new fungible holder rows.
func (d Deposits) ForHolders(n int) decimal.Decimal {
	return d.FTBalanceRow.Mul(decimal.NewFromInt(int64(n)))
}

func bytesCost(n uint64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromUint64(n).Mul(price)
}
