package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Intent is a strategy's desired trade before conflict resolution and risk checks.
type Intent struct {
	StrategyID string          `json:"strategy_id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Volume     decimal.Decimal `json:"volume"`
	Rationale  string          `json:"rationale,omitempty"`
}

// Validate checks the intent is well formed.
func (i Intent) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("intent symbol is empty")
	}
	if !i.Side.Valid() {
		return fmt.Errorf("intent side %q is invalid", i.Side)
	}
	if !i.Volume.IsPositive() {
		return fmt.Errorf("intent volume %s must be positive", i.Volume)
	}
	return nil
}

// Order is a conflict-resolved instruction ready for risk checks and submission.
type Order struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Volume        decimal.Decimal `json:"volume"`
	Comment       string          `json:"comment"`
	SourceIntents []Intent        `json:"source_intents"`
}

// Strategies returns the unique strategy ids behind the order in first-seen order.
func (o Order) Strategies() []string {
	seen := make(map[string]struct{}, len(o.SourceIntents))
	out := make([]string, 0, len(o.SourceIntents))
	for _, in := range o.SourceIntents {
		if _, ok := seen[in.StrategyID]; ok {
			continue
		}
		seen[in.StrategyID] = struct{}{}
		out = append(out, in.StrategyID)
	}
	return out
}

// WithVolume returns a copy of the order carrying volume v.
func (o Order) WithVolume(v decimal.Decimal) Order {
	o.Volume = v
	return o
}
