package models

import "github.com/shopspring/decimal"

// Options is the per-strategy configuration mapping.
type Options map[string]any

// RiskLimits are static per-order limits.
type RiskLimits struct {
	AllowedSymbols  []string
	MaxVolume       decimal.Decimal
	SymbolMaxVolume map[string]decimal.Decimal
}

// DefaultRiskLimits allows the three majors traded by the reference strategies at 1 lot.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		AllowedSymbols: []string{"EURUSD", "GBPUSD", "USDJPY"},
		MaxVolume:      decimal.NewFromInt(1),
	}
}

// Allows reports whether symbol is in the allowed set. An empty set allows nothing.
func (l RiskLimits) Allows(symbol string) bool {
	for _, s := range l.AllowedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// MaxFor returns the volume cap for symbol.
func (l RiskLimits) MaxFor(symbol string) decimal.Decimal {
	if v, ok := l.SymbolMaxVolume[symbol]; ok {
		return v
	}
	return l.MaxVolume
}

// Verdict is the risk guard outcome for one order.
type Verdict struct {
	Order    Order
	Reject   RejectReason
	Warnings []string
}

// Rejected reports whether the order must not be submitted.
func (v Verdict) Rejected() bool { return v.Reject != RejectNone }
