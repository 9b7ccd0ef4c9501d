package pgsql

import (
	"context"
	"net/http"

	"github.com/SscSPs/mma_ledger/internal/apperrors"
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/mma_ledger/internal/models"
	"github.com/SscSPs/mma_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxTransactionRowRepository reads transaction rows for ledger views.
type PgxTransactionRowRepository struct {
	BaseRepository
}

func newPgxTransactionRowRepository(pool *pgxpool.Pool) *PgxTransactionRowRepository {
	return &PgxTransactionRowRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.TransactionRowReader = (*PgxTransactionRowRepository)(nil)

// Rates stored for exactly the journal's day travel with the row, keyed "SRC-DST".
// Anything else is left for the conversion resolver to look up.
const listTransactionRowsQuery = `
	SELECT t.transaction_id, t.account_id, t.amount, t.currency_code, t.transaction_type, t.notes, j.journal_date,
	       (SELECT json_object_agg(er.from_currency_code || '-' || er.to_currency_code, er.rate)
	          FROM exchange_rates er
	         WHERE er.from_currency_code = t.currency_code
	           AND er.date_effective = j.journal_date) AS embedded_rates
	FROM transactions t
	JOIN journals j ON t.journal_id = j.journal_id
	WHERE j.user_id = $1 AND j.status = 'POSTED'
	  AND ($2 = '' OR t.account_id = $2)
	ORDER BY j.journal_date DESC, t.created_at DESC, t.transaction_id
	LIMIT $3 OFFSET $4;
`

// ListTransactionRows returns the user's transaction rows, newest first.
func (r *PgxTransactionRowRepository) ListTransactionRows(ctx context.Context, userID string, filter domain.TransactionRowFilter) ([]domain.TransactionRow, error) {
	rows, err := r.Pool.Query(ctx, listTransactionRowsQuery, userID, filter.AccountID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to query transaction rows", err)
	}

	modelRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TransactionRow, error) {
		var t models.TransactionRow
		err := row.Scan(
			&t.TransactionID,
			&t.AccountID,
			&t.Amount,
			&t.CurrencyCode,
			&t.TransactionType,
			&t.Notes,
			&t.JournalDate,
			&t.EmbeddedRates,
		)
		return t, err
	})
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to scan transaction rows", err)
	}

	return mapping.ToDomainTransactionRowSlice(modelRows), nil
}
