package models

// Currency represents a supported currency.
type Currency struct {
	CurrencyCode string `json:"currencyCode" db:"currency_code"` // Primary Key (e.g., "USD")
	Symbol       string `json:"symbol" db:"symbol"`              // e.g., "$"
	Name         string `json:"name" db:"name"`                  // e.g., "US Dollar"
	Precision    int    `json:"precision" db:"precision"`        // Decimal places shown, e.g. 2 for USD, 0 for VND
	AuditFields
}
