package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TodayBucket is the rate bucket used for rows whose date is missing or unparsable.
const TodayBucket = "today"

// BucketLayout is the calendar-day format of a dated rate bucket.
const BucketLayout = "2006-01-02"

var rowDateLayouts = []string{
	BucketLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// PairCode renders a currency pair the way embedded rates are keyed, e.g. "USD-VND".
func PairCode(from, to string) string {
	return strings.ToUpper(from) + "-" + strings.ToUpper(to)
}

// ParseRowDate parses a raw row date. Timestamps with an offset are normalised to UTC.
func ParseRowDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range rowDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// BucketForDate truncates a raw row date to its calendar-day bucket.
func BucketForDate(raw string) string {
	t, ok := ParseRowDate(raw)
	if !ok {
		return TodayBucket
	}
	return t.Format(BucketLayout)
}

// RateKey identifies a resolved exchange rate: one pair on one calendar day.
type RateKey struct {
	From   string
	To     string
	Bucket string
}

// NewRateKey builds the rate key for converting row into target.
func NewRateKey(row TransactionRow, target string) RateKey {
	return RateKey{
		From:   strings.ToUpper(row.LocalCurrency),
		To:     strings.ToUpper(target),
		Bucket: row.RateBucket(),
	}
}

// Date returns the day the rate applies to; the today bucket resolves against now.
func (k RateKey) Date(now time.Time) time.Time {
	if k.Bucket != TodayBucket {
		if t, err := time.Parse(BucketLayout, k.Bucket); err == nil {
			return t
		}
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (k RateKey) String() string {
	return PairCode(k.From, k.To) + "@" + k.Bucket
}

// ConversionKey identifies one row rendered in one display currency.
type ConversionKey struct {
	RowID  string
	Target string
}

// Conversion is what the renderer shows for a row in the display currency.
type Conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	Cashflow  decimal.Decimal `json:"cashflow"`
	IsLoading bool            `json:"isLoading"`
}
