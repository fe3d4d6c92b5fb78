package usecase

import (
	"fmt"
	"strings"

	"AOWI/internal/domain/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConflictPolicy decides how opposing intents on one symbol resolve.
type ConflictPolicy string

const (
	// ConflictDominant keeps the larger side at its full volume and discards the smaller side.
	ConflictDominant ConflictPolicy = "dominant"
	// ConflictNet emits the difference between the two sides on the larger side.
	ConflictNet ConflictPolicy = "net"
)

const defaultOrderComment = "AOWI auto order"

// ParseConflictPolicy maps a config value to a policy. Empty means dominant.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(s)) {
	case "", ConflictDominant:
		return ConflictDominant, nil
	case ConflictNet:
		return ConflictNet, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// AggregateBatch is the aggregator output for one cycle.
type AggregateBatch struct {
	Orders    []models.Order
	Conflicts []models.Conflict
	Skipped   int // malformed intents dropped before grouping
}

// SignalAggregator merges one cycle's intents into at most one order per symbol.
type SignalAggregator struct {
	policy ConflictPolicy
	newID  func() string
}

type AggregatorOption func(*SignalAggregator)

// WithOrderIDs overrides order id generation.
func WithOrderIDs(fn func() string) AggregatorOption {
	return func(a *SignalAggregator) {
		if fn != nil {
			a.newID = fn
		}
	}
}

func NewSignalAggregator(policy ConflictPolicy, opts ...AggregatorOption) *SignalAggregator {
	if policy == "" {
		policy = ConflictDominant
	}
	a := &SignalAggregator{policy: policy, newID: uuid.NewString}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type symbolGroup struct {
	symbol  string
	buys    []models.Intent
	sells   []models.Intent
	all     []models.Intent
	buyVol  decimal.Decimal
	sellVol decimal.Decimal
}

// Aggregate groups intents by symbol in first-seen order and resolves each group.
// Input order is evaluation order and is preserved in every order's SourceIntents.
func (a *SignalAggregator) Aggregate(intents []models.Intent) AggregateBatch {
	var batch AggregateBatch
	groups := make(map[string]*symbolGroup)
	var order []string

	for _, in := range intents {
		if err := in.Validate(); err != nil {
			batch.Skipped++
			continue
		}
		g, ok := groups[in.Symbol]
		if !ok {
			g = &symbolGroup{symbol: in.Symbol}
			groups[in.Symbol] = g
			order = append(order, in.Symbol)
		}
		g.all = append(g.all, in)
		if in.Side == models.SideBuy {
			g.buys = append(g.buys, in)
			g.buyVol = g.buyVol.Add(in.Volume)
		} else {
			g.sells = append(g.sells, in)
			g.sellVol = g.sellVol.Add(in.Volume)
		}
	}

	for _, sym := range order {
		g := groups[sym]
		switch {
		case len(g.sells) == 0:
			batch.Orders = append(batch.Orders, a.order(sym, models.SideBuy, g.buyVol, g.buys))
		case len(g.buys) == 0:
			batch.Orders = append(batch.Orders, a.order(sym, models.SideSell, g.sellVol, g.sells))
		default:
			o, c, ok := a.resolve(g)
			batch.Conflicts = append(batch.Conflicts, c)
			if ok {
				batch.Orders = append(batch.Orders, o)
			}
		}
	}
	return batch
}

func (a *SignalAggregator) resolve(g *symbolGroup) (models.Order, models.Conflict, bool) {
	c := models.Conflict{Symbol: g.symbol, BuyVolume: g.buyVol, SellVolume: g.sellVol}

	cmp := g.buyVol.Cmp(g.sellVol)
	if cmp == 0 {
		c.Resolution = models.ConflictDropped
		c.Discarded = g.all
		return models.Order{}, c, false
	}

	side, win, lose := models.SideBuy, g.buys, g.sells
	winVol, loseVol := g.buyVol, g.sellVol
	if cmp < 0 {
		side, win, lose = models.SideSell, g.sells, g.buys
		winVol, loseVol = g.sellVol, g.buyVol
	}

	if a.policy == ConflictNet {
		c.Resolution = models.ConflictNetted
		return a.order(g.symbol, side, winVol.Sub(loseVol), g.all), c, true
	}

	c.Resolution = models.ConflictKeptBuy
	if side == models.SideSell {
		c.Resolution = models.ConflictKeptSell
	}
	c.Discarded = lose
	return a.order(g.symbol, side, winVol, win), c, true
}

func (a *SignalAggregator) order(sym string, side models.Side, vol decimal.Decimal, src []models.Intent) models.Order {
	o := models.Order{
		ID:            a.newID(),
		Symbol:        sym,
		Side:          side,
		Volume:        vol,
		SourceIntents: append([]models.Intent(nil), src...),
	}
	o.Comment = orderComment(o)
	return o
}

func orderComment(o models.Order) string {
	ids := o.Strategies()
	if len(ids) == 0 || (len(ids) == 1 && ids[0] == "") {
		return defaultOrderComment
	}
	return "aowi:" + strings.Join(ids, ",")
}
