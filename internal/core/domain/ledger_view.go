package domain

import "time"

// LedgerView is one open transaction list. Its conversion caches live exactly as long as the view.
type LedgerView struct {
	ViewID    string    `json:"viewID"`
	UserID    string    `json:"userID"`
	CreatedAt time.Time `json:"createdAt"`
	Revision  uint64    `json:"revision"` // Bumped whenever a background rate lookup lands
}

// TransactionRowFilter narrows the rows loaded for a view page.
type TransactionRowFilter struct {
	AccountID string
	Limit     int
	Offset    int
}

// RenderedRow is a transaction row together with its display-currency conversion.
type RenderedRow struct {
	Row            TransactionRow
	TargetCurrency string
	Conversion
	DisplayAmount string
}

// LedgerViewPage is one render pass over a page of rows.
type LedgerViewPage struct {
	ViewID         string
	TargetCurrency string
	Revision       uint64
	LoadingCount   int
	Rows           []RenderedRow
}
