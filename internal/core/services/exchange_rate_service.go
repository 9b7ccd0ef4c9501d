package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/mma_ledger/internal/apperrors"
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_ledger/internal/core/ports/services"
	"github.com/SscSPs/mma_ledger/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ExchangeRateService provides business logic for exchange rates. It is also
// the rate source behind ledger view conversions.
type ExchangeRateService struct {
	BaseService
	rateRepo        portsrepo.ExchangeRateRepositoryFacade
	currencyService portssvc.CurrencyReaderSvc

	// Concurrent views asking for the same pair and day share one query.
	lookups singleflight.Group
}

// NewExchangeRateService creates a new ExchangeRateService.
func NewExchangeRateService(rateRepo portsrepo.ExchangeRateRepositoryFacade, currencyService portssvc.CurrencyReaderSvc) *ExchangeRateService {
	return &ExchangeRateService{
		rateRepo:        rateRepo,
		currencyService: currencyService,
	}
}

var (
	_ portssvc.ExchangeRateSvcFacade = (*ExchangeRateService)(nil)
	_ portsrepo.RateSource           = (*ExchangeRateService)(nil)
)

// CreateExchangeRate handles the creation of a new exchange rate.
func (s *ExchangeRateService) CreateExchangeRate(ctx context.Context, req dto.CreateExchangeRateRequest, creatorUserID string) (*domain.ExchangeRate, error) {
	fromCode := strings.ToUpper(req.FromCurrencyCode)
	toCode := strings.ToUpper(req.ToCurrencyCode)

	if !req.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: exchange rate must be positive", apperrors.ErrValidation)
	}
	if fromCode == toCode {
		return nil, fmt.Errorf("%w: from and to currency codes cannot be the same", apperrors.ErrValidation)
	}

	if _, err := s.currencyService.GetCurrencyByCode(ctx, fromCode); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: 'from' currency code '%s' not found", apperrors.ErrValidation, fromCode)
		}
		return nil, fmt.Errorf("failed to validate 'from' currency '%s': %w", fromCode, err)
	}
	if _, err := s.currencyService.GetCurrencyByCode(ctx, toCode); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: 'to' currency code '%s' not found", apperrors.ErrValidation, toCode)
		}
		return nil, fmt.Errorf("failed to validate 'to' currency '%s': %w", toCode, err)
	}

	now := time.Now()
	rate := domain.ExchangeRate{
		ExchangeRateID:   uuid.NewString(),
		FromCurrencyCode: fromCode,
		ToCurrencyCode:   toCode,
		Rate:             req.Rate,
		DateEffective:    truncateToDay(req.DateEffective),
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}

	if err := s.rateRepo.SaveExchangeRate(ctx, rate); err != nil {
		s.LogError(ctx, err, "Failed to save exchange rate",
			slog.String("from", fromCode), slog.String("to", toCode))
		return nil, fmt.Errorf("failed to create exchange rate in service: %w", err)
	}

	s.LogInfo(ctx, "Exchange rate created",
		slog.String("exchange_rate_id", rate.ExchangeRateID),
		slog.String("pair", domain.PairCode(fromCode, toCode)))
	return &rate, nil
}

// GetExchangeRate retrieves the most recent exchange rate for a currency pair.
func (s *ExchangeRateService) GetExchangeRate(ctx context.Context, fromCode, toCode string) (*domain.ExchangeRate, error) {
	fromCode, toCode, err := normalizePair(fromCode, toCode)
	if err != nil {
		return nil, err
	}

	rate, err := s.rateRepo.FindExchangeRate(ctx, fromCode, toCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate in service: %w", err)
	}
	return rate, nil
}

// GetExchangeRateOnDate retrieves the exchange rate effective on the given day.
func (s *ExchangeRateService) GetExchangeRateOnDate(ctx context.Context, fromCode, toCode string, date time.Time) (*domain.ExchangeRate, error) {
	fromCode, toCode, err := normalizePair(fromCode, toCode)
	if err != nil {
		return nil, err
	}

	rate, err := s.rateRepo.FindExchangeRateOnDate(ctx, fromCode, toCode, truncateToDay(date))
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate on date in service: %w", err)
	}
	return rate, nil
}

// GetRateOnDate returns just the rate effective on date. Failures are logged
// here; callers only need to know the lookup did not succeed.
func (s *ExchangeRateService) GetRateOnDate(ctx context.Context, fromCode, toCode string, date time.Time) (decimal.Decimal, error) {
	day := truncateToDay(date)
	key := domain.PairCode(fromCode, toCode) + "@" + day.Format(domain.BucketLayout)

	v, err, shared := s.lookups.Do(key, func() (interface{}, error) {
		rate, err := s.GetExchangeRateOnDate(ctx, fromCode, toCode, day)
		if err != nil {
			return decimal.Zero, err
		}
		return rate.Rate, nil
	})
	if err != nil {
		s.LogWarn(ctx, err, "Rate lookup failed",
			slog.String("rate_key", key),
			slog.Bool("shared", shared))
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func normalizePair(fromCode, toCode string) (string, string, error) {
	fromCode = strings.ToUpper(strings.TrimSpace(fromCode))
	toCode = strings.ToUpper(strings.TrimSpace(toCode))
	if len(fromCode) != 3 || len(toCode) != 3 {
		return "", "", fmt.Errorf("%w: currency codes must be 3 letters", apperrors.ErrValidation)
	}
	return fromCode, toCode, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
