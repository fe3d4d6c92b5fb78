package models

import (
	"sort"
	"time"
)

// Quote is the top of book for one symbol.
type Quote struct {
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Volume float64   `json:"volume,omitempty"` // tick volume, zero when the source has none
	Time   time.Time `json:"time"`
}

// Mid returns the midpoint between bid and ask.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// Spread returns ask minus bid.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// SpreadBps returns the spread in basis points of the mid.
func (q Quote) SpreadBps() float64 {
	mid := q.Mid()
	if mid <= 0 {
		return 0
	}
	return q.Spread() / mid * 1e4
}

// Valid reports whether the quote can be priced against.
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask >= q.Bid
}

// MarketView is a read-only snapshot of quotes for one evaluation cycle.
// The zero value is an empty view.
type MarketView struct {
	timestamp time.Time
	quotes    map[string]Quote
}

// NewMarketView copies quotes into a new snapshot.
func NewMarketView(ts time.Time, quotes map[string]Quote) MarketView {
	cp := make(map[string]Quote, len(quotes))
	for sym, q := range quotes {
		cp[sym] = q
	}
	return MarketView{timestamp: ts, quotes: cp}
}

// Timestamp returns when the snapshot was taken.
func (v MarketView) Timestamp() time.Time { return v.timestamp }

// Quote returns the quote for symbol.
func (v MarketView) Quote(symbol string) (Quote, bool) {
	q, ok := v.quotes[symbol]
	return q, ok
}

// Symbols returns the quoted symbols in sorted order.
func (v MarketView) Symbols() []string {
	out := make([]string, 0, len(v.quotes))
	for sym := range v.quotes {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of quoted symbols.
func (v MarketView) Len() int { return len(v.quotes) }
