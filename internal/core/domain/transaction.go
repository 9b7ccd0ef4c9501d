package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType indicates whether a transaction line is a Debit or a Credit.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// Sign returns the cashflow direction of the line: debits flow in, credits flow out.
func (t TransactionType) Sign() decimal.Decimal {
	if t == Credit {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// TransactionRow is a single line of the transaction list as supplied by the data layer.
// It is read-only to the conversion subsystem.
type TransactionRow struct {
	TransactionID   string          `json:"transactionID"`
	AccountID       string          `json:"accountID"`
	AmountLocal     decimal.Decimal `json:"amountLocal"`   // Stored amount, in LocalCurrency
	LocalCurrency   string          `json:"localCurrency"` // Currency AmountLocal is denominated in
	CashflowLocal   decimal.Decimal `json:"cashflowLocal"` // Signed, same unit as AmountLocal
	TransactionType TransactionType `json:"transactionType"`
	Date            string          `json:"date"` // Raw date as delivered; may be empty or malformed
	Notes           string          `json:"notes"`
	EmbeddedRates   EmbeddedRates   `json:"embeddedRates,omitempty"`
}

// RateBucket returns the calendar-day bucket used to key this row's exchange rate.
func (r TransactionRow) RateBucket() string {
	return BucketForDate(r.Date)
}

// EmbeddedRates maps a "SRC-DST" pair code to a rate delivered alongside the row.
// Values keep whatever shape the data source produced; Lookup decides what is usable.
type EmbeddedRates map[string]any

// Lookup returns the embedded rate for the pair when it is a finite number greater than zero.
func (e EmbeddedRates) Lookup(from, to string) (decimal.Decimal, bool) {
	if len(e) == 0 {
		return decimal.Zero, false
	}
	raw, ok := e[PairCode(from, to)]
	if !ok || raw == nil {
		return decimal.Zero, false
	}

	var rate decimal.Decimal
	switch v := raw.(type) {
	case decimal.Decimal:
		rate = v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		rate = *v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		rate = decimal.NewFromFloat(v)
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		rate = decimal.NewFromFloat32(v)
	case int:
		rate = decimal.NewFromInt(int64(v))
	case int64:
		rate = decimal.NewFromInt(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		rate = d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, false
		}
		rate = d
	default:
		return decimal.Zero, false
	}

	if !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}
