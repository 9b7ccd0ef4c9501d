package repositories

import (
	"context"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
)

// TransactionRowReader supplies the rows of the transaction list, with any
// exchange rates the data source already knows embedded in each row.
type TransactionRowReader interface {
	// ListTransactionRows returns the user's transaction rows, newest first.
	ListTransactionRows(ctx context.Context, userID string, filter domain.TransactionRowFilter) ([]domain.TransactionRow, error)
}
