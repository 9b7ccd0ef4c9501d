package conversion

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultFallbackBase  = "USD"
	DefaultFallbackQuote = "VND"
)

// DefaultFallbackRate is the USD→VND estimate shown while the real rate is loading.
var DefaultFallbackRate = decimal.NewFromInt(24000)

// FallbackPolicy gives a rough rate for a pair when nothing better is known.
// Estimates are only ever shown, never cached.
type FallbackPolicy interface {
	Estimate(from, to string) decimal.Decimal
}

// StaticFallback knows a single cross rate. Every other pair estimates 1:1.
type StaticFallback struct {
	base  string
	quote string
	rate  decimal.Decimal
}

// NewStaticFallback builds a policy for base→quote. A non-positive rate or an
// incomplete pair falls back to the USD→VND default.
func NewStaticFallback(base, quote string, rate decimal.Decimal) *StaticFallback {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" || base == quote {
		base, quote = DefaultFallbackBase, DefaultFallbackQuote
	}
	if !rate.IsPositive() {
		rate = DefaultFallbackRate
	}
	return &StaticFallback{base: base, quote: quote, rate: rate}
}

// Estimate returns the known rate, its reciprocal for the reverse pair, or 1.
func (f *StaticFallback) Estimate(from, to string) decimal.Decimal {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	switch {
	case from == f.base && to == f.quote:
		return f.rate
	case from == f.quote && to == f.base:
		return decimal.NewFromInt(1).Div(f.rate)
	default:
		// TODO: derive a cross estimate from the rate cache instead of 1:1 for unknown pairs.
		return decimal.NewFromInt(1)
	}
}
