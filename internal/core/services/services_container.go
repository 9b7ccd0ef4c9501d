package services

import (
	"log/slog"

	"github.com/SscSPs/mma_ledger/internal/core/conversion"
	portsrepo "github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_ledger/internal/core/ports/services"
	"github.com/SscSPs/mma_ledger/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, metrics *conversion.Metrics, logger *slog.Logger) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	currencySvc := NewCurrencyService(repos.CurrencyRepo)
	exchangeRateSvc := NewExchangeRateService(repos.ExchangeRateRepo, currencySvc)

	container.Currency = currencySvc
	container.ExchangeRate = exchangeRateSvc
	container.LedgerView = NewLedgerViewService(
		repos.TransactionRowRepo,
		exchangeRateSvc,
		currencySvc,
		LedgerViewOptions{
			MaxOpenViews:    cfg.MaxOpenViews,
			MaxViewsPerUser: cfg.MaxViewsPerUser,
			IdleTimeout:     cfg.ViewIdleTimeout,
			FetchTimeout:    cfg.RateFetchTimeout,
			Fallback:        conversion.NewStaticFallback(cfg.FallbackBaseCurrency, cfg.FallbackQuoteCurrency, cfg.FallbackRate),
			Metrics:         metrics,
			Logger:          logger,
		},
	)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.CurrencySvcFacade = (*CurrencyService)(nil)
	_ portssvc.LedgerViewSvc     = (*LedgerViewService)(nil)
)
