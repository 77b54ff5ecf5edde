package sharemath_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primevault/rvm/internal/sharemath"
	"github.com/primevault/rvm/internal/types"
)

const decimals = 8

// amt is a whole-unit helper at 8 decimals.
func amt(whole int64) sdkmath.Int {
	return sdkmath.NewInt(whole).Mul(sdkmath.NewIntWithDecimal(1, decimals))
}

func TestAssetToShares(t *testing.T) {
	t.Run("one unit at price two is half a share", func(t *testing.T) {
		shares, err := sharemath.AssetToShares(amt(1), amt(2), decimals)
		require.NoError(t, err)
		assert.Equal(t, amt(1).QuoRaw(2).String(), shares.String())
	})

	t.Run("unit price is identity", func(t *testing.T) {
		shares, err := sharemath.AssetToShares(amt(7), amt(1), decimals)
		require.NoError(t, err)
		assert.Equal(t, amt(7).String(), shares.String())
	})

	t.Run("zero price is rejected", func(t *testing.T) {
		_, err := sharemath.AssetToShares(amt(1), sdkmath.ZeroInt(), decimals)
		assert.ErrorIs(t, err, sharemath.ErrZeroPrice)
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		_, err := sharemath.AssetToShares(sdkmath.NewInt(-1), amt(1), decimals)
		assert.ErrorIs(t, err, sharemath.ErrNegativeAmount)
	})

	t.Run("precision above the cap is rejected", func(t *testing.T) {
		_, err := sharemath.AssetToShares(amt(1), amt(1), sharemath.MaxDecimals+1)
		assert.ErrorIs(t, err, sharemath.ErrInvalidPrecision)
	})
}

func TestSharesToAssetRoundTrip(t *testing.T) {
	// Floor division loses at most one base unit per conversion, never gains.
	prices := []sdkmath.Int{
		amt(1),
		amt(3),
		sdkmath.NewInt(123_456_789),
		sdkmath.NewInt(99_999_999),
	}
	amounts := []sdkmath.Int{
		amt(1),
		amt(1000),
		sdkmath.NewInt(1),
		sdkmath.NewInt(777_777_777_777),
	}

	for _, price := range prices {
		for _, amount := range amounts {
			shares, err := sharemath.AssetToShares(amount, price, decimals)
			require.NoError(t, err)
			back, err := sharemath.SharesToAsset(shares, price, decimals)
			require.NoError(t, err)

			assert.True(t, back.LTE(amount),
				"round trip gained value: %s -> %s at price %s", amount, back, price)
			loss := amount.Sub(back)
			maxLoss := price.Quo(sdkmath.NewIntWithDecimal(1, decimals)).AddRaw(1)
			assert.True(t, loss.LTE(maxLoss),
				"round trip lost %s at price %s, more than one share quantum", loss, price)
		}
	}
}

func TestSharePrice(t *testing.T) {
	t.Run("zero supply prices at one", func(t *testing.T) {
		price, err := sharemath.SharePrice(sdkmath.ZeroInt(), amt(500), sdkmath.ZeroInt(), decimals)
		require.NoError(t, err)
		assert.Equal(t, amt(1).String(), price.String())
	})

	t.Run("pending deposits do not move the price", func(t *testing.T) {
		without, err := sharemath.SharePrice(amt(100), amt(150), sdkmath.ZeroInt(), decimals)
		require.NoError(t, err)
		with, err := sharemath.SharePrice(amt(100), amt(150).Add(amt(40)), amt(40), decimals)
		require.NoError(t, err)
		assert.Equal(t, without.String(), with.String())
	})

	t.Run("balance above supply prices above one", func(t *testing.T) {
		price, err := sharemath.SharePrice(amt(100), amt(150), sdkmath.ZeroInt(), decimals)
		require.NoError(t, err)
		assert.Equal(t, amt(3).QuoRaw(2).String(), price.String())
	})

	t.Run("pending above balance is rejected", func(t *testing.T) {
		_, err := sharemath.SharePrice(amt(100), amt(10), amt(20), decimals)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

func TestResolveReceiptShares(t *testing.T) {
	receipt := types.DepositReceipt{
		Round:        1,
		PendingRisky: amt(10),
		OwnedShares:  amt(5),
	}

	t.Run("current round deposit stays pending", func(t *testing.T) {
		owned, err := sharemath.ResolveReceiptShares(receipt, 1, sdkmath.ZeroInt(), decimals)
		require.NoError(t, err)
		assert.Equal(t, amt(5).String(), owned.String())
	})

	t.Run("settled round deposit folds in at its round price", func(t *testing.T) {
		owned, err := sharemath.ResolveReceiptShares(receipt, 2, amt(2), decimals)
		require.NoError(t, err)
		assert.Equal(t, amt(10).String(), owned.String())
	})

	t.Run("empty receipt resolves to zero", func(t *testing.T) {
		owned, err := sharemath.ResolveReceiptShares(types.NewDepositReceipt(), 5, amt(1), decimals)
		require.NoError(t, err)
		assert.True(t, owned.IsZero())
	})
}
