package mapping

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/SscSPs/mma_ledger/internal/models"
)

// ToDomainTransactionRow converts a model TransactionRow to a domain TransactionRow.
// The cashflow is the amount signed by the transaction type. Embedded rates that
// fail to decode are dropped; the row is still usable without them.
func ToDomainTransactionRow(m models.TransactionRow) domain.TransactionRow {
	txnType := domain.TransactionType(strings.ToUpper(m.TransactionType))
	row := domain.TransactionRow{
		TransactionID:   m.TransactionID,
		AccountID:       m.AccountID,
		AmountLocal:     m.Amount,
		LocalCurrency:   strings.ToUpper(m.CurrencyCode),
		CashflowLocal:   m.Amount.Mul(txnType.Sign()),
		TransactionType: txnType,
		EmbeddedRates:   decodeEmbeddedRates(m.EmbeddedRates),
	}
	if m.Notes != nil {
		row.Notes = *m.Notes
	}
	if m.JournalDate != nil {
		row.Date = m.JournalDate.UTC().Format(domain.BucketLayout)
	}
	return row
}

// ToDomainTransactionRowSlice converts a slice of model TransactionRows to domain TransactionRows
func ToDomainTransactionRowSlice(ms []models.TransactionRow) []domain.TransactionRow {
	ds := make([]domain.TransactionRow, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainTransactionRow(m)
	}
	return ds
}

func decodeEmbeddedRates(raw []byte) domain.EmbeddedRates {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep rates exact until they become decimals
	var rates domain.EmbeddedRates
	if err := dec.Decode(&rates); err != nil {
		return nil
	}
	return rates
}
