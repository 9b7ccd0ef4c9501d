package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExchangeRateReader defines read operations for exchange rate data
type ExchangeRateReader interface {
	// FindExchangeRate retrieves the most recent exchange rate between two currencies.
	FindExchangeRate(ctx context.Context, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error)

	// FindExchangeRateOnDate retrieves the rate effective on the given calendar day,
	// i.e. the latest rate whose effective date is not after it.
	FindExchangeRateOnDate(ctx context.Context, fromCurrencyCode, toCurrencyCode string, date time.Time) (*domain.ExchangeRate, error)
}

// ExchangeRateWriter defines write operations for exchange rate data
type ExchangeRateWriter interface {
	// SaveExchangeRate persists a new exchange rate.
	SaveExchangeRate(ctx context.Context, rate domain.ExchangeRate) error
}

// ExchangeRateRepositoryFacade combines all exchange rate-related repository interfaces
// This is a facade for clients that need access to all operations
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}

// ExchangeRateRepositoryWithTx extends ExchangeRateRepositoryFacade with transaction capabilities
type ExchangeRateRepositoryWithTx interface {
	ExchangeRateRepositoryFacade
	TransactionManager
}

// RateSource is the authoritative, possibly slow, lookup the conversion resolver
// falls back to when neither the row nor the caches know a rate.
type RateSource interface {
	GetRateOnDate(ctx context.Context, fromCurrencyCode, toCurrencyCode string, date time.Time) (decimal.Decimal, error)
}
