package dto

import (
	"time"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Paging bounds for a render pass.
const (
	DefaultRowsLimit = 50
	MaxRowsLimit     = 500
)

// RenderRowsParams are the query parameters of a render pass.
type RenderRowsParams struct {
	TargetCurrency string `form:"currency" binding:"required,currencycode"`
	AccountID      string `form:"accountID" binding:"omitempty,max=64"`
	Limit          int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
	Offset         int    `form:"offset" binding:"omitempty,gte=0"`
}

// LedgerViewResponse is returned when a view is opened.
type LedgerViewResponse struct {
	ViewID    string    `json:"viewID"`
	CreatedAt time.Time `json:"createdAt"`
	Revision  uint64    `json:"revision"`
}

// RenderedRowResponse is one row of a render pass.
type RenderedRowResponse struct {
	TransactionID   string          `json:"transactionID"`
	AccountID       string          `json:"accountID"`
	Date            string          `json:"date"`
	Notes           string          `json:"notes,omitempty"`
	TransactionType string          `json:"transactionType"`
	LocalCurrency   string          `json:"localCurrency"`
	AmountLocal     decimal.Decimal `json:"amountLocal"`
	CashflowLocal   decimal.Decimal `json:"cashflowLocal"`
	Amount          decimal.Decimal `json:"amount"`
	Cashflow        decimal.Decimal `json:"cashflow"`
	DisplayAmount   string          `json:"displayAmount"`
	IsLoading       bool            `json:"isLoading"` // True while the shown amount is an estimate
}

// LedgerViewPageResponse is the result of a render pass. Clients re-render
// while LoadingCount is non-zero and Revision keeps moving.
type LedgerViewPageResponse struct {
	ViewID         string                `json:"viewID"`
	TargetCurrency string                `json:"targetCurrency"`
	Revision       uint64                `json:"revision"`
	LoadingCount   int                   `json:"loadingCount"`
	Rows           []RenderedRowResponse `json:"rows"`
}

// ToLedgerViewResponse converts a domain.LedgerView to LedgerViewResponse DTO
func ToLedgerViewResponse(v *domain.LedgerView) LedgerViewResponse {
	return LedgerViewResponse{
		ViewID:    v.ViewID,
		CreatedAt: v.CreatedAt,
		Revision:  v.Revision,
	}
}

// ToLedgerViewPageResponse converts a domain.LedgerViewPage to its response DTO
func ToLedgerViewPageResponse(p *domain.LedgerViewPage) LedgerViewPageResponse {
	rows := make([]RenderedRowResponse, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = RenderedRowResponse{
			TransactionID:   r.Row.TransactionID,
			AccountID:       r.Row.AccountID,
			Date:            r.Row.Date,
			Notes:           r.Row.Notes,
			TransactionType: string(r.Row.TransactionType),
			LocalCurrency:   r.Row.LocalCurrency,
			AmountLocal:     r.Row.AmountLocal,
			CashflowLocal:   r.Row.CashflowLocal,
			Amount:          r.Amount,
			Cashflow:        r.Cashflow,
			DisplayAmount:   r.DisplayAmount,
			IsLoading:       r.IsLoading,
		}
	}
	return LedgerViewPageResponse{
		ViewID:         p.ViewID,
		TargetCurrency: p.TargetCurrency,
		Revision:       p.Revision,
		LoadingCount:   p.LoadingCount,
		Rows:           rows,
	}
}
