package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SscSPs/mma_ledger/internal/apperrors"
	"github.com/SscSPs/mma_ledger/internal/core/conversion"
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/mma_ledger/internal/core/ports/services"
	"github.com/SscSPs/mma_ledger/internal/dto"
	"github.com/SscSPs/mma_ledger/internal/utils"
	"github.com/google/uuid"
)

// LedgerViewOptions configures the ledger view service.
type LedgerViewOptions struct {
	MaxOpenViews    int           // Process-wide cap
	MaxViewsPerUser int           // Keeps one user from exhausting MaxOpenViews
	IdleTimeout     time.Duration // Views not rendered for this long are closed; zero disables
	Now             func() time.Time
	FetchTimeout    time.Duration
	Fallback        conversion.FallbackPolicy
	Metrics         *conversion.Metrics
	Logger          *slog.Logger // Used by background lookups, which outlive the request
}

// openView is a ledger view together with the resolver that owns its caches.
type openView struct {
	view     domain.LedgerView
	revision atomic.Uint64
	lastUsed atomic.Int64 // UnixNano of the last open or render
	resolver *conversion.Resolver
}

func (ov *openView) touch(now time.Time) {
	ov.lastUsed.Store(now.UnixNano())
}

func (ov *openView) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, ov.lastUsed.Load()))
}

// LedgerViewService keeps the open ledger views of this process.
type LedgerViewService struct {
	BaseService
	rowRepo    portsrepo.TransactionRowReader
	rateSource portsrepo.RateSource
	currencies portssvc.CurrencyReaderSvc
	opts       LedgerViewOptions

	mu     sync.Mutex
	views  map[string]*openView
	closed bool
}

// NewLedgerViewService creates a LedgerViewService.
func NewLedgerViewService(
	rowRepo portsrepo.TransactionRowReader,
	rateSource portsrepo.RateSource,
	currencies portssvc.CurrencyReaderSvc,
	opts LedgerViewOptions,
) *LedgerViewService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fallback == nil {
		opts.Fallback = conversion.NewStaticFallback(conversion.DefaultFallbackBase, conversion.DefaultFallbackQuote, conversion.DefaultFallbackRate)
	}
	return &LedgerViewService{
		rowRepo:    rowRepo,
		rateSource: rateSource,
		currencies: currencies,
		opts:       opts,
		views:      make(map[string]*openView),
	}
}

var _ portssvc.LedgerViewSvc = (*LedgerViewService)(nil)

// OpenView creates a view with empty conversion caches. Idle views are
// expired first so abandoned ones do not count against the limits.
func (s *LedgerViewService) OpenView(ctx context.Context, userID string) (*domain.LedgerView, error) {
	now := s.opts.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: server is shutting down", apperrors.ErrLimitReached)
	}
	expired := s.removeIdleLocked(now)

	if s.opts.MaxViewsPerUser > 0 && s.countForUserLocked(userID) >= s.opts.MaxViewsPerUser {
		s.mu.Unlock()
		s.closeExpired(ctx, expired)
		s.LogWarn(ctx, apperrors.ErrLimitReached, "Refusing to open ledger view", slog.Int("user_limit", s.opts.MaxViewsPerUser))
		return nil, fmt.Errorf("%w: too many open ledger views for this user", apperrors.ErrLimitReached)
	}
	if s.opts.MaxOpenViews > 0 && len(s.views) >= s.opts.MaxOpenViews {
		open := len(s.views)
		s.mu.Unlock()
		s.closeExpired(ctx, expired)
		s.LogWarn(ctx, apperrors.ErrLimitReached, "Refusing to open ledger view", slog.Int("open_views", open))
		return nil, fmt.Errorf("%w: too many open ledger views", apperrors.ErrLimitReached)
	}

	ov := &openView{
		view: domain.LedgerView{
			ViewID:    uuid.NewString(),
			UserID:    userID,
			CreatedAt: now.UTC(),
		},
	}
	ov.touch(now)
	ov.resolver = conversion.NewResolver(conversion.Deps{
		Source:       s.rateSource,
		Fallback:     s.opts.Fallback,
		Metrics:      s.opts.Metrics,
		Logger:       s.opts.Logger.With(slog.String("view_id", ov.view.ViewID)),
		FetchTimeout: s.opts.FetchTimeout,
		OnUpdate:     func(domain.RateKey) { ov.revision.Add(1) },
	})
	s.views[ov.view.ViewID] = ov
	s.mu.Unlock()

	s.closeExpired(ctx, expired)
	s.LogInfo(ctx, "Ledger view opened", slog.String("view_id", ov.view.ViewID))
	view := ov.view
	return &view, nil
}

// RenderRows runs one render pass: every row on the page is resolved into the
// target currency. Rows whose rate is still loading carry an estimate and
// count towards LoadingCount.
func (s *LedgerViewService) RenderRows(ctx context.Context, viewID string, userID string, params dto.RenderRowsParams) (*domain.LedgerViewPage, error) {
	ov, err := s.lookup(ctx, viewID, userID)
	if err != nil {
		return nil, err
	}
	ov.touch(s.opts.Now())

	target := strings.ToUpper(strings.TrimSpace(params.TargetCurrency))
	if len(target) != 3 {
		return nil, fmt.Errorf("%w: target currency must be a 3-letter code", apperrors.ErrValidation)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = dto.DefaultRowsLimit
	}
	if limit > dto.MaxRowsLimit {
		limit = dto.MaxRowsLimit
	}
	if params.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", apperrors.ErrValidation)
	}

	// Read before resolving: a lookup landing mid-pass must leave the client
	// with a revision that is already stale.
	revision := ov.revision.Load()

	rows, err := s.rowRepo.ListTransactionRows(ctx, userID, domain.TransactionRowFilter{
		AccountID: params.AccountID,
		Limit:     limit,
		Offset:    params.Offset,
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to load transaction rows", slog.String("view_id", viewID))
		return nil, fmt.Errorf("failed to load transaction rows: %w", err)
	}

	precision := s.displayPrecision(ctx, target)
	page := &domain.LedgerViewPage{
		ViewID:         viewID,
		TargetCurrency: target,
		Revision:       revision,
		Rows:           make([]domain.RenderedRow, 0, len(rows)),
	}
	for _, row := range rows {
		conv := ov.resolver.Resolve(row, target)
		if conv.IsLoading {
			page.LoadingCount++
		}
		page.Rows = append(page.Rows, domain.RenderedRow{
			Row:            row,
			TargetCurrency: target,
			Conversion:     conv,
			DisplayAmount:  utils.FormatWithPrecision(conv.Amount, precision),
		})
	}

	s.LogDebug(ctx, "Ledger view rendered",
		slog.String("view_id", viewID),
		slog.String("target_currency", target),
		slog.Int("rows", len(page.Rows)),
		slog.Int("loading", page.LoadingCount))
	return page, nil
}

// CloseView tears the view down. Lookups it started still finish, but their
// results are dropped.
func (s *LedgerViewService) CloseView(ctx context.Context, viewID string, userID string) error {
	s.mu.Lock()
	ov, ok := s.views[viewID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: ledger view %s", apperrors.ErrNotFound, viewID)
	}
	if ov.view.UserID != userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: ledger view %s belongs to another user", apperrors.ErrForbidden, viewID)
	}
	delete(s.views, viewID)
	s.mu.Unlock()

	ov.resolver.Close()
	s.LogInfo(ctx, "Ledger view closed", slog.String("view_id", viewID))
	return nil
}

// Shutdown closes every view and waits for in-flight lookups to drain.
func (s *LedgerViewService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	resolvers := make([]*conversion.Resolver, 0, len(s.views))
	for id, ov := range s.views {
		resolvers = append(resolvers, ov.resolver)
		delete(s.views, id)
	}
	s.mu.Unlock()

	for _, r := range resolvers {
		r.Close()
	}

	done := make(chan struct{})
	go func() {
		for _, r := range resolvers {
			r.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		s.LogInfo(ctx, "Ledger views closed", slog.Int("views", len(resolvers)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for rate lookups: %w", ctx.Err())
	}
}

// OpenViews returns the number of open views.
func (s *LedgerViewService) OpenViews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// ExpireIdleViews closes every view that has not been rendered within the
// idle timeout and returns how many were closed.
func (s *LedgerViewService) ExpireIdleViews(ctx context.Context) int {
	s.mu.Lock()
	expired := s.removeIdleLocked(s.opts.Now())
	s.mu.Unlock()

	s.closeExpired(ctx, expired)
	return len(expired)
}

// RunIdleSweeper expires idle views every interval until ctx is done.
func (s *LedgerViewService) RunIdleSweeper(ctx context.Context, interval time.Duration) {
	if s.opts.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireIdleViews(ctx)
		}
	}
}

func (s *LedgerViewService) lookup(ctx context.Context, viewID, userID string) (*openView, error) {
	s.mu.Lock()
	ov, ok := s.views[viewID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: ledger view %s", apperrors.ErrNotFound, viewID)
	}
	if ov.view.UserID != userID {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: ledger view %s belongs to another user", apperrors.ErrForbidden, viewID)
	}
	if s.isIdle(ov, s.opts.Now()) {
		delete(s.views, viewID)
		s.mu.Unlock()
		s.closeExpired(ctx, []*openView{ov})
		return nil, fmt.Errorf("%w: ledger view %s expired", apperrors.ErrNotFound, viewID)
	}
	s.mu.Unlock()
	return ov, nil
}

func (s *LedgerViewService) isIdle(ov *openView, now time.Time) bool {
	return s.opts.IdleTimeout > 0 && ov.idleSince(now) > s.opts.IdleTimeout
}

// removeIdleLocked drops idle views from the map. Callers hold s.mu and close
// the returned views' resolvers after releasing it.
func (s *LedgerViewService) removeIdleLocked(now time.Time) []*openView {
	var expired []*openView
	for id, ov := range s.views {
		if s.isIdle(ov, now) {
			delete(s.views, id)
			expired = append(expired, ov)
		}
	}
	return expired
}

func (s *LedgerViewService) countForUserLocked(userID string) int {
	n := 0
	for _, ov := range s.views {
		if ov.view.UserID == userID {
			n++
		}
	}
	return n
}

func (s *LedgerViewService) closeExpired(ctx context.Context, views []*openView) {
	for _, ov := range views {
		ov.resolver.Close()
		s.LogInfo(ctx, "Idle ledger view expired", slog.String("view_id", ov.view.ViewID))
	}
}

// displayPrecision returns the decimals to show for code; unknown currencies use the default.
func (s *LedgerViewService) displayPrecision(ctx context.Context, code string) int {
	if s.currencies == nil {
		return domain.DefaultPrecision
	}
	currency, err := s.currencies.GetCurrencyByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogWarn(ctx, err, "Falling back to default display precision", slog.String("currency_code", code))
		}
		return domain.DefaultPrecision
	}
	return currency.Precision
}
