package pgsql

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/mma_ledger/internal/apperrors"
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/mma_ledger/internal/models"
	"github.com/SscSPs/mma_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgxExchangeRateRepository implements the exchange rate repository ports using pgxpool.
type PgxExchangeRateRepository struct {
	BaseRepository
}

// newPgxExchangeRateRepository creates a new PgxExchangeRateRepository.
func newPgxExchangeRateRepository(pool *pgxpool.Pool) *PgxExchangeRateRepository {
	return &PgxExchangeRateRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.ExchangeRateRepositoryWithTx = (*PgxExchangeRateRepository)(nil)

const exchangeRateColumns = `exchange_rate_id, from_currency_code, to_currency_code, rate, date_effective,
	created_at, created_by, last_updated_at, last_updated_by`

// SaveExchangeRate inserts a rate, or updates the rate already stored for the
// same pair and day.
func (r *PgxExchangeRateRepository) SaveExchangeRate(ctx context.Context, rate domain.ExchangeRate) (err error) {
	fromCurrency := strings.ToUpper(rate.FromCurrencyCode)
	toCurrency := strings.ToUpper(rate.ToCurrencyCode)
	if fromCurrency == toCurrency {
		return apperrors.NewValidationError("from and to currencies cannot be the same")
	}

	modelRate := mapping.ToModelExchangeRate(rate)
	modelRate.FromCurrencyCode = fromCurrency
	modelRate.ToCurrencyCode = toCurrency

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = r.Rollback(ctx, tx)
		}
	}()

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT exchange_rate_id FROM exchange_rates
		WHERE from_currency_code = $1 AND to_currency_code = $2 AND date_effective = $3
		FOR UPDATE`,
		fromCurrency, toCurrency, modelRate.DateEffective,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
			UPDATE exchange_rates
			SET rate = $1, last_updated_at = $2, last_updated_by = $3
			WHERE exchange_rate_id = $4`,
			modelRate.Rate, modelRate.LastUpdatedAt, modelRate.LastUpdatedBy, existingID,
		)
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO exchange_rates (`+exchangeRateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			modelRate.ExchangeRateID, modelRate.FromCurrencyCode, modelRate.ToCurrencyCode,
			modelRate.Rate, modelRate.DateEffective, modelRate.CreatedAt,
			modelRate.CreatedBy, modelRate.LastUpdatedAt, modelRate.LastUpdatedBy,
		)
	}
	if err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to save exchange rate", err)
	}

	return r.Commit(ctx, tx)
}

// FindExchangeRate retrieves the most recent exchange rate between two currencies.
func (r *PgxExchangeRateRepository) FindExchangeRate(ctx context.Context, fromCurrencyCode, toCurrencyCode string) (*domain.ExchangeRate, error) {
	return r.findWithInverse(ctx, fromCurrencyCode, toCurrencyCode, nil)
}

// FindExchangeRateOnDate retrieves the latest rate effective on or before date.
func (r *PgxExchangeRateRepository) FindExchangeRateOnDate(ctx context.Context, fromCurrencyCode, toCurrencyCode string, date time.Time) (*domain.ExchangeRate, error) {
	return r.findWithInverse(ctx, fromCurrencyCode, toCurrencyCode, &date)
}

// findWithInverse looks for the direct rate first and derives it from the
// inverse pair when only that one is stored.
func (r *PgxExchangeRateRepository) findWithInverse(ctx context.Context, fromCurrencyCode, toCurrencyCode string, onOrBefore *time.Time) (*domain.ExchangeRate, error) {
	fromCurrency := strings.ToUpper(fromCurrencyCode)
	toCurrency := strings.ToUpper(toCurrencyCode)

	if fromCurrency == toCurrency {
		day := time.Now().UTC().Truncate(24 * time.Hour)
		if onOrBefore != nil {
			day = *onOrBefore
		}
		return &domain.ExchangeRate{
			FromCurrencyCode: fromCurrency,
			ToCurrencyCode:   toCurrency,
			Rate:             decimal.NewFromInt(1),
			DateEffective:    day,
		}, nil
	}

	directRate, err := r.findRate(ctx, fromCurrency, toCurrency, onOrBefore)
	if err == nil {
		return directRate, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	inverseRate, err := r.findRate(ctx, toCurrency, fromCurrency, onOrBefore)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("no exchange rate found for currency pair " + fromCurrency + " to " + toCurrency)
		}
		return nil, err
	}
	if !inverseRate.Rate.IsPositive() {
		return nil, apperrors.NewNotFoundError("no usable exchange rate found for currency pair " + fromCurrency + " to " + toCurrency)
	}
	inverseRate.FromCurrencyCode = fromCurrency
	inverseRate.ToCurrencyCode = toCurrency
	inverseRate.Rate = decimal.NewFromInt(1).Div(inverseRate.Rate)
	return inverseRate, nil
}

// findRate returns the most recent stored rate, optionally bounded by a day.
func (r *PgxExchangeRateRepository) findRate(ctx context.Context, fromCurrency, toCurrency string, onOrBefore *time.Time) (*domain.ExchangeRate, error) {
	query := `SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE from_currency_code = $1 AND to_currency_code = $2
		  AND ($3::date IS NULL OR date_effective <= $3::date)
		ORDER BY date_effective DESC
		LIMIT 1;`

	var bound *time.Time
	if onOrBefore != nil {
		y, m, d := onOrBefore.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		bound = &day
	}

	var modelRate models.ExchangeRate
	err := r.Pool.QueryRow(ctx, query, fromCurrency, toCurrency, bound).Scan(
		&modelRate.ExchangeRateID, &modelRate.FromCurrencyCode, &modelRate.ToCurrencyCode,
		&modelRate.Rate, &modelRate.DateEffective, &modelRate.CreatedAt,
		&modelRate.CreatedBy, &modelRate.LastUpdatedAt, &modelRate.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange rate not found")
		}
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to find exchange rate", err)
	}

	domainRate := mapping.ToDomainExchangeRate(modelRate)
	return &domainRate, nil
}
