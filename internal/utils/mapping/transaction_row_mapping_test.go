package mapping_test

import (
	"testing"
	"time"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/SscSPs/mma_ledger/internal/models"
	"github.com/SscSPs/mma_ledger/internal/utils/mapping"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainTransactionRow(t *testing.T) {
	notes := "coffee"
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := models.TransactionRow{
		TransactionID:   "t1",
		AccountID:       "acc-1",
		Amount:          decimal.RequireFromString("10.50"),
		CurrencyCode:    "usd",
		TransactionType: "CREDIT",
		Notes:           &notes,
		JournalDate:     &date,
		EmbeddedRates:   []byte(`{"USD-VND": 24500.123456789012345, "USD-EUR": "bad"}`),
	}

	row := mapping.ToDomainTransactionRow(m)

	assert.Equal(t, "t1", row.TransactionID)
	assert.Equal(t, "USD", row.LocalCurrency)
	assert.Equal(t, domain.Credit, row.TransactionType)
	assert.True(t, decimal.RequireFromString("-10.50").Equal(row.CashflowLocal))
	assert.Equal(t, "2024-01-01", row.Date)
	assert.Equal(t, "coffee", row.Notes)

	rate, ok := row.EmbeddedRates.Lookup("USD", "VND")
	require.True(t, ok)
	assert.Equal(t, "24500.123456789012345", rate.String())
	_, ok = row.EmbeddedRates.Lookup("USD", "EUR")
	assert.False(t, ok)
}

func TestToDomainTransactionRow_MissingOptionalColumns(t *testing.T) {
	m := models.TransactionRow{
		TransactionID:   "t2",
		Amount:          decimal.NewFromInt(5),
		CurrencyCode:    "EUR",
		TransactionType: "DEBIT",
		EmbeddedRates:   []byte(`not json`),
	}

	row := mapping.ToDomainTransactionRow(m)

	assert.Empty(t, row.Date)
	assert.Equal(t, domain.TodayBucket, row.RateBucket())
	assert.Nil(t, row.EmbeddedRates)
	assert.True(t, decimal.NewFromInt(5).Equal(row.CashflowLocal))
}
