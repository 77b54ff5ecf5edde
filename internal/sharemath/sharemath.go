/*

This file contains the fixed-point conversions between asset amounts and vault
shares. All amounts are integers scaled by 10^decimals; every multiply-then-
divide goes through sdkmath.Int so intermediates never truncate, and division
floors consistently, which keeps rounding in favor of existing holders on
issuance and of the vault on payout.

*/

package sharemath

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/primevault/rvm/internal/types"
)

var (
	ErrZeroPrice        = errors.New("share price is zero")
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrNegativeAmount   = errors.New("amount is negative")
	ErrNilAmount        = errors.New("amount is nil")
)

// MaxDecimals bounds the supported token precision, matching the widest
// precision seen on supported chains.
const MaxDecimals = 18

func pow10(decimals uint8) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(decimals))
}

func validate(amount sdkmath.Int, decimals uint8) error {
	if decimals > MaxDecimals {
		return fmt.Errorf("%w: %d (must be at most %d)", ErrInvalidPrecision, decimals, MaxDecimals)
	}
	if amount.IsNil() {
		return ErrNilAmount
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// AssetToShares converts an asset amount into shares at the given price.
// price is asset base units per one whole share, scaled by 10^decimals.
func AssetToShares(amount, price sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	if err := validate(amount, decimals); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if price.IsNil() || price.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %v", ErrZeroPrice, types.ErrInvalidInput)
	}
	return amount.Mul(pow10(decimals)).Quo(price), nil
}

// SharesToAsset converts shares back into asset units at the given price.
func SharesToAsset(shares, price sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	if err := validate(shares, decimals); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if price.IsNil() || price.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: price", ErrNegativeAmount)
	}
	return shares.Mul(price).Quo(pow10(decimals)), nil
}

// ResolveReceiptShares returns the shares an account actually owns: receipts
// from a settled round have their pending deposit priced at that round's
// recorded share price and folded in; a deposit from the current round has not
// been priced yet and stays pending. This is the single place where "pending
// deposit" becomes "owned shares", so every balance read must come through it.
func ResolveReceiptShares(receipt types.DepositReceipt, currentRound uint64, priceAtReceiptRound sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	owned := receipt.OwnedShares
	if owned.IsNil() {
		owned = sdkmath.ZeroInt()
	}
	if receipt.Round == 0 || receipt.Round >= currentRound {
		return owned, nil
	}
	if receipt.PendingRisky.IsNil() || receipt.PendingRisky.IsZero() {
		return owned, nil
	}
	minted, err := AssetToShares(receipt.PendingRisky, priceAtReceiptRound, decimals)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("resolving receipt from round %d: %w", receipt.Round, err)
	}
	return owned.Add(minted), nil
}

// SharePrice computes the settlement price of one whole share. While supply is
// zero one unit of asset buys exactly one share. pendingAmount is subtracted
// from the balance so deposits awaiting conversion cannot move the price.
func SharePrice(totalSupply, totalBalance, pendingAmount sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	if err := validate(totalBalance, decimals); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := validate(pendingAmount, decimals); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if totalSupply.IsNil() || totalSupply.IsZero() {
		return pow10(decimals), nil
	}
	if totalSupply.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: total supply", ErrNegativeAmount)
	}
	backing := totalBalance.Sub(pendingAmount)
	if backing.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: pending exceeds balance", types.ErrInvalidInput)
	}
	return pow10(decimals).Mul(backing).Quo(totalSupply), nil
}
