package domain

import "github.com/shopspring/decimal"

// Round2 rounds to cents. Every money computation goes through it.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Max0 clamps negative amounts to zero.
func Max0(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ValidateAmount accepts positive amounts with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}
