package pgsql

import (
	portsrepo "github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires every Postgres repository onto one pool.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CurrencyRepo:       newPgxCurrencyRepository(dbPool),
		ExchangeRateRepo:   newPgxExchangeRateRepository(dbPool),
		TransactionRowRepo: newPgxTransactionRowRepository(dbPool),
	}
}
