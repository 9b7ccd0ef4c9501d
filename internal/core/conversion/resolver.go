package conversion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/SscSPs/mma_ledger/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// DefaultFetchTimeout bounds a single background rate lookup.
const DefaultFetchTimeout = 10 * time.Second

// ConversionStore holds converted amounts per (row, display currency).
type ConversionStore interface {
	Get(key domain.ConversionKey) (decimal.Decimal, bool)
	Set(key domain.ConversionKey, amount decimal.Decimal) bool
}

// RateStore holds confirmed rates per (pair, day bucket).
type RateStore interface {
	Get(key domain.RateKey) (decimal.Decimal, bool)
	Set(key domain.RateKey, rate decimal.Decimal) bool
}

// PendingRequests tracks in-flight rate lookups.
type PendingRequests interface {
	IsPending(key domain.RateKey) bool
	MarkPending(key domain.RateKey) bool
	ClearPending(key domain.RateKey)
}

// Deps wires a Resolver. Nil stores are replaced with fresh empty ones.
type Deps struct {
	Source       repositories.RateSource
	Conversions  ConversionStore
	Rates        RateStore
	Pending      PendingRequests
	Fallback     FallbackPolicy
	Metrics      *Metrics
	Logger       *slog.Logger
	OnUpdate     func(key domain.RateKey) // Called after a background lookup lands in the caches
	Now          func() time.Time
	FetchTimeout time.Duration
}

// Resolver answers "what is this row worth in currency X right now" without blocking.
// One Resolver belongs to one ledger view; its stores must not be shared or written elsewhere.
type Resolver struct {
	source       repositories.RateSource
	conversions  ConversionStore
	rates        RateStore
	pending      PendingRequests
	fallback     FallbackPolicy
	metrics      *Metrics
	logger       *slog.Logger
	onUpdate     func(key domain.RateKey)
	now          func() time.Time
	fetchTimeout time.Duration

	lifecycle sync.RWMutex
	closed    bool
	inflight  sync.WaitGroup
	running   atomic.Int32
}

// NewResolver builds a Resolver from deps.
func NewResolver(deps Deps) *Resolver {
	r := &Resolver{
		source:       deps.Source,
		conversions:  deps.Conversions,
		rates:        deps.Rates,
		pending:      deps.Pending,
		fallback:     deps.Fallback,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		onUpdate:     deps.OnUpdate,
		now:          deps.Now,
		fetchTimeout: deps.FetchTimeout,
	}
	if r.conversions == nil {
		r.conversions = NewConversionCache()
	}
	if r.rates == nil {
		r.rates = NewRateCache()
	}
	if r.pending == nil {
		r.pending = NewPendingTracker()
	}
	if r.fallback == nil {
		r.fallback = NewStaticFallback(DefaultFallbackBase, DefaultFallbackQuote, DefaultFallbackRate)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.fetchTimeout <= 0 {
		r.fetchTimeout = DefaultFetchTimeout
	}
	return r
}

// Resolve converts row into target. It never blocks and never fails: when the
// rate is unknown it starts a background lookup and returns a fallback estimate
// flagged IsLoading. Estimates are recomputed on every call and never cached,
// so the first call after the lookup lands returns the confirmed value.
func (r *Resolver) Resolve(row domain.TransactionRow, target string) domain.Conversion {
	target = strings.ToUpper(strings.TrimSpace(target))

	if strings.EqualFold(row.LocalCurrency, target) {
		r.metrics.recordResolution(TierIdentity)
		return domain.Conversion{Amount: row.AmountLocal, Cashflow: row.CashflowLocal}
	}

	convKey := domain.ConversionKey{RowID: row.TransactionID, Target: target}
	if amount, ok := r.conversions.Get(convKey); ok {
		r.metrics.recordResolution(TierConversion)
		return domain.Conversion{Amount: amount, Cashflow: cashflowFor(row, amount)}
	}

	if rate, ok := row.EmbeddedRates.Lookup(row.LocalCurrency, target); ok {
		r.metrics.recordResolution(TierEmbedded)
		return r.confirm(row, convKey, rate)
	}

	rateKey := domain.NewRateKey(row, target)
	if rate, ok := r.rates.Get(rateKey); ok {
		r.metrics.recordResolution(TierRateCache)
		return r.confirm(row, convKey, rate)
	}

	if rate, ok := r.dispatch(convKey, rateKey, row.AmountLocal); ok {
		r.metrics.recordResolution(TierRateCache)
		return r.confirm(row, convKey, rate)
	}

	r.metrics.recordResolution(TierFallback)
	estimate := r.fallback.Estimate(rateKey.From, rateKey.To)
	return domain.Conversion{
		Amount:    row.AmountLocal.Mul(estimate),
		Cashflow:  row.CashflowLocal.Mul(estimate),
		IsLoading: true,
	}
}

// Close detaches the resolver from its view. Lookups still in flight finish
// but their results are dropped.
func (r *Resolver) Close() {
	r.lifecycle.Lock()
	r.closed = true
	r.lifecycle.Unlock()
}

// Wait blocks until every background lookup started so far has finished.
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

// InFlight returns the number of background lookups currently running.
func (r *Resolver) InFlight() int {
	return int(r.running.Load())
}

// confirm converts with an authoritative rate and records the amount.
func (r *Resolver) confirm(row domain.TransactionRow, key domain.ConversionKey, rate decimal.Decimal) domain.Conversion {
	amount := row.AmountLocal.Mul(rate)
	if !r.conversions.Set(key, amount) {
		// Someone confirmed first; the stored value is the one that sticks.
		if stored, ok := r.conversions.Get(key); ok {
			return domain.Conversion{Amount: stored, Cashflow: cashflowFor(row, stored)}
		}
	}
	return domain.Conversion{Amount: amount, Cashflow: row.CashflowLocal.Mul(rate)}
}

// dispatch starts a background lookup for key unless one is already running.
// It returns the rate instead when a lookup landed after the caller's cache miss.
func (r *Resolver) dispatch(convKey domain.ConversionKey, key domain.RateKey, amountLocal decimal.Decimal) (decimal.Decimal, bool) {
	r.lifecycle.RLock()
	defer r.lifecycle.RUnlock()
	if r.closed || r.source == nil {
		return decimal.Zero, false
	}
	if !r.pending.MarkPending(key) {
		return decimal.Zero, false
	}
	if rate, ok := r.rates.Get(key); ok {
		r.pending.ClearPending(key)
		return rate, true
	}
	r.inflight.Add(1)
	r.running.Add(1)
	go r.fetch(convKey, key, amountLocal)
	return decimal.Zero, false
}

func (r *Resolver) fetch(convKey domain.ConversionKey, key domain.RateKey, amountLocal decimal.Decimal) {
	defer r.inflight.Done()
	defer r.running.Add(-1)

	start := time.Now()
	r.metrics.fetchStarted()

	ctx, cancel := context.WithTimeout(context.Background(), r.fetchTimeout)
	defer cancel()

	rate, err := r.lookup(ctx, key)
	outcome := r.complete(convKey, key, amountLocal, rate, err)
	r.metrics.fetchFinished(outcome, time.Since(start))

	if outcome == OutcomeSuccess && r.onUpdate != nil {
		r.onUpdate(key)
	}
}

func (r *Resolver) lookup(ctx context.Context, key domain.RateKey) (rate decimal.Decimal, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rate source panicked: %v", p)
		}
	}()
	return r.source.GetRateOnDate(ctx, key.From, key.To, key.Date(r.now()))
}

// complete applies a finished lookup. Cache writes happen before the pending
// flag is cleared, so a concurrent Resolve always sees one or the other.
func (r *Resolver) complete(convKey domain.ConversionKey, key domain.RateKey, amountLocal, rate decimal.Decimal, err error) string {
	r.lifecycle.RLock()
	defer r.lifecycle.RUnlock()
	defer r.pending.ClearPending(key)

	if r.closed {
		return OutcomeDiscarded
	}
	if err == nil && !rate.IsPositive() {
		err = fmt.Errorf("non-positive rate %s", rate)
	}
	if err != nil {
		r.logger.Debug("Rate lookup failed, will retry on next render",
			slog.String("rate_key", key.String()),
			slog.String("error", err.Error()),
		)
		return OutcomeFailure
	}

	r.rates.Set(key, rate)
	r.conversions.Set(convKey, amountLocal.Mul(rate))
	return OutcomeSuccess
}

// cashflowFor rescales the local cashflow by the rate implied by a cached amount.
func cashflowFor(row domain.TransactionRow, amount decimal.Decimal) decimal.Decimal {
	if row.AmountLocal.IsZero() {
		return decimal.Zero
	}
	return row.CashflowLocal.Mul(amount).Div(row.AmountLocal)
}
