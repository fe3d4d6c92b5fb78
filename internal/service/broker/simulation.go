package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AOWI/internal/domain/models"
)

const SimulationName = "simulation"

// Simulation accepts every well-formed order without I/O.
type Simulation struct {
	mu     sync.Mutex
	quotes map[string]models.Quote
	seq    int
	now    func() time.Time
}

func NewSimulation() *Simulation {
	return &Simulation{quotes: make(map[string]models.Quote), now: time.Now}
}

func (s *Simulation) Name() string { return SimulationName }

func (s *Simulation) Connect(context.Context) error { return nil }

func (s *Simulation) Disconnect(context.Context) error { return nil }

func (s *Simulation) IsLive() bool { return false }

// Observe records the cycle's quotes for pricing fills.
func (s *Simulation) Observe(view models.MarketView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range view.Symbols() {
		if q, ok := view.Quote(sym); ok && q.Valid() {
			s.quotes[sym] = q
		}
	}
}

// Quote returns the last observed quote, or a fixed 1.0000/1.0002 placeholder.
func (s *Simulation) Quote(_ context.Context, symbol string) (models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteLocked(symbol), nil
}

func (s *Simulation) quoteLocked(symbol string) models.Quote {
	if q, ok := s.quotes[symbol]; ok {
		return q
	}
	return models.Quote{Bid: 1.0000, Ask: 1.0002, Time: s.now().UTC()}
}

func (s *Simulation) Submit(_ context.Context, order models.Order) models.Result {
	if order.Symbol == "" || !order.Side.Valid() || !order.Volume.IsPositive() {
		return models.Failed(order, fmt.Sprintf("malformed order %s", order.ID))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	q := s.quoteLocked(order.Symbol)
	price := q.Ask
	if order.Side == models.SideSell {
		price = q.Bid
	}
	return models.Accepted(order, fmt.Sprintf("SIM-%d", s.seq), price)
}
