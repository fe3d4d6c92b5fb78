package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"AOWI/internal/domain/models"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intent(id, sym string, side models.Side, vol string) models.Intent {
	return models.Intent{StrategyID: id, Symbol: sym, Side: side, Volume: dec(vol)}
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("ord-%d", n.Add(1)) }
}

type stubStrategy struct {
	name    string
	intents []models.Intent
	err     error
	panics  bool
	delay   time.Duration
	calls   atomic.Int32
}

func (s *stubStrategy) Name() string                    { return s.name }
func (s *stubStrategy) Initialize(models.Options) error { return nil }
func (s *stubStrategy) Evaluate(ctx context.Context, _ models.MarketView) ([]models.Intent, error) {
	s.calls.Add(1)
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.Intent(nil), s.intents...), nil
}

type staticSource struct {
	view models.MarketView
	err  error
}

func (s staticSource) NextView(context.Context) (models.MarketView, error) {
	return s.view, s.err
}

func majorsView() models.MarketView {
	return models.NewMarketView(time.Unix(1700000000, 0), map[string]models.Quote{
		"EURUSD": {Bid: 1.0850, Ask: 1.0852},
		"GBPUSD": {Bid: 1.2700, Ask: 1.2703},
		"USDJPY": {Bid: 151.20, Ask: 151.23},
	})
}

type stubAdapter struct {
	name       string
	live       bool
	connectErr error
	failSymbol string
	panicOn    string
	delay      time.Duration // ignores ctx, like a broker that answers late

	mu          sync.Mutex
	connected   bool
	submitted   []models.Order
	disconnects int
	observed    int
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Connect(context.Context) error {
	if a.connectErr != nil {
		return a.connectErr
	}
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()
	return nil
}

func (a *stubAdapter) Quote(_ context.Context, symbol string) (models.Quote, error) {
	return models.Quote{Bid: 1, Ask: 1.0002}, nil
}

func (a *stubAdapter) Submit(_ context.Context, o models.Order) models.Result {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if o.Symbol == a.panicOn {
		panic("adapter exploded")
	}
	a.submitted = append(a.submitted, o)
	if o.Symbol == a.failSymbol {
		return models.Failed(o, (&models.SubmitFailure{Code: 10004, Message: "requote"}).Error())
	}
	return models.Accepted(o, fmt.Sprintf("T-%d", len(a.submitted)), 1.0)
}

func (a *stubAdapter) Disconnect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnects++
	a.connected = false
	return nil
}

func (a *stubAdapter) IsLive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live && a.connected
}

func (a *stubAdapter) Observe(models.MarketView) {
	a.mu.Lock()
	a.observed++
	a.mu.Unlock()
}

func (a *stubAdapter) disconnectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disconnects
}

type recordingForwarder struct {
	mu      sync.Mutex
	batches [][]models.Result
	drained int
}

func (f *recordingForwarder) Forward(_ context.Context, rs []models.Result) {
	f.mu.Lock()
	f.batches = append(f.batches, rs)
	f.mu.Unlock()
}

func (f *recordingForwarder) Drain(context.Context) error {
	f.mu.Lock()
	f.drained++
	f.mu.Unlock()
	return nil
}

var errRefused = errors.New("connection refused")
