package market

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// ToBaseUnits converts a human price such as "1.25" into base units of a
// mint with the given decimals. Fractions finer than the mint allows and
// negative prices are rejected.
func ToBaseUnits(amount string, decimals uint8) (uint64, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", amount, err)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("price %q is negative", amount)
	}
	scaled := value.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("price %q has more than %d decimal places", amount, decimals)
	}
	if scaled.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("price %q overflows u64", amount)
	}
	return scaled.BigInt().Uint64(), nil
}

// FromBaseUnits renders base units as a decimal string.
func FromBaseUnits(units uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals)).String()
}
