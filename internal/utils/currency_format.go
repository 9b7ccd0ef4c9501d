package utils

import (
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FormatWithCurrencyPrecision formats an amount with the correct precision for a given currency
// Example: amount 12.3456 with USD (precision 2) returns "12.35"
// Example: amount 245000.4 with VND (precision 0) returns "245000"
func FormatWithCurrencyPrecision(amount decimal.Decimal, currency domain.Currency) string {
	return FormatWithPrecision(amount, currency.Precision)
}

// FormatWithPrecision formats an amount with exactly precision decimal places,
// rounding half away from zero. A negative precision is treated as zero.
func FormatWithPrecision(amount decimal.Decimal, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return amount.StringFixed(int32(precision))
}
