package multitoken_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xraph/multitoken"
)

func TestStorageDeposit(t *testing.T) {
	costs := multitoken.StorageCosts{FTCreation: 120, FTBalanceRow: 80, NFTFull: 400}
	d := multitoken.StorageDeposit(costs, decimal.RequireFromString("0.00001"))

	assert.Equal(t, "0.0012", d.FTCreation.String())
	assert.Equal(t, "0.0008", d.FTBalanceRow.String())
	assert.Equal(t, "0.004", d.NFTFull.String())

	assert.True(t, d.ForMint(multitoken.Fungible).Equal(decimal.RequireFromString("0.002")))
	assert.True(t, d.ForMint(multitoken.NonFungible).Equal(d.NFTFull))
	assert.True(t, d.ForHolders(3).Equal(decimal.RequireFromString("0.0024")))
	assert.True(t, d.ForHolders(0).IsZero())
}
