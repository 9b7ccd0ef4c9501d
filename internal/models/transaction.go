package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRow is one transaction line joined with its journal and account,
// as read for the ledger view.
type TransactionRow struct {
	TransactionID   string          `db:"transaction_id"`
	AccountID       string          `db:"account_id"`
	Amount          decimal.Decimal `db:"amount"` // Always positive; direction comes from TransactionType
	CurrencyCode    string          `db:"currency_code"`
	TransactionType string          `db:"transaction_type"`
	Notes           *string         `db:"notes"`
	JournalDate     *time.Time      `db:"journal_date"`
	EmbeddedRates   []byte          `db:"embedded_rates"` // JSON object keyed "SRC-DST", NULL when no rate is known
}
