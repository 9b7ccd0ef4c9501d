package services

import (
	"context"
	"time"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/SscSPs/mma_ledger/internal/dto"
)

// LedgerViewSvc manages open transaction-list views and renders their rows
// in a display currency.
type LedgerViewSvc interface {
	// OpenView creates a view with empty conversion caches.
	OpenView(ctx context.Context, userID string) (*domain.LedgerView, error)

	// RenderRows runs one render pass over a page of the view's rows.
	RenderRows(ctx context.Context, viewID string, userID string, params dto.RenderRowsParams) (*domain.LedgerViewPage, error)

	// CloseView tears the view down and discards its caches.
	CloseView(ctx context.Context, viewID string, userID string) error

	// Shutdown closes every view and waits for in-flight rate lookups,
	// giving up when ctx is done.
	Shutdown(ctx context.Context) error

	// RunIdleSweeper closes views left idle past the configured timeout,
	// checking every interval until ctx is done.
	RunIdleSweeper(ctx context.Context, interval time.Duration)
}
