package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate stores the conversion rate between two currencies from a given day on.
type ExchangeRate struct {
	ExchangeRateID   string          `json:"exchangeRateID" db:"exchange_rate_id"`     // Primary Key (UUID)
	FromCurrencyCode string          `json:"fromCurrencyCode" db:"from_currency_code"` // FK -> currencies
	ToCurrencyCode   string          `json:"toCurrencyCode" db:"to_currency_code"`     // FK -> currencies
	Rate             decimal.Decimal `json:"rate" db:"rate"`
	DateEffective    time.Time       `json:"dateEffective" db:"date_effective"`
	AuditFields
}
