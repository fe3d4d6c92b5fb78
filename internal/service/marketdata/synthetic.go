package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"AOWI/internal/domain/models"
)

// DefaultMids seeds the random walk for the majors traded by the reference strategies.
var DefaultMids = map[string]float64{
	"EURUSD": 1.0850,
	"GBPUSD": 1.2700,
	"USDJPY": 151.20,
}

// SyntheticConfig parameterizes the random walk.
type SyntheticConfig struct {
	Symbols   []string
	Seed      int64
	StepBps   float64 // max move per view, in basis points of the mid
	SpreadBps float64
	Mids      map[string]float64
}

// Synthetic produces a seeded random walk of quotes. Equal seeds give equal sequences.
type Synthetic struct {
	cfg  SyntheticConfig
	mu   sync.Mutex
	rng  *rand.Rand
	mids map[string]float64
	now  func() time.Time
}

func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"EURUSD", "GBPUSD", "USDJPY"}
	}
	if cfg.StepBps <= 0 {
		cfg.StepBps = 1
	}
	if cfg.SpreadBps <= 0 {
		cfg.SpreadBps = 1
	}
	mids := make(map[string]float64, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		switch {
		case cfg.Mids[sym] > 0:
			mids[sym] = cfg.Mids[sym]
		case DefaultMids[sym] > 0:
			mids[sym] = DefaultMids[sym]
		default:
			mids[sym] = 1.0
		}
	}
	return &Synthetic{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		mids: mids,
		now:  time.Now,
	}
}

func (s *Synthetic) NextView(ctx context.Context) (models.MarketView, error) {
	if err := ctx.Err(); err != nil {
		return models.MarketView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	quotes := make(map[string]models.Quote, len(s.cfg.Symbols))
	for _, sym := range s.cfg.Symbols {
		mid := s.mids[sym] * (1 + (s.rng.Float64()*2-1)*s.cfg.StepBps/1e4)
		s.mids[sym] = mid
		half := mid * s.cfg.SpreadBps / 2e4
		quotes[sym] = models.Quote{
			Bid:    mid - half,
			Ask:    mid + half,
			Volume: float64(1 + s.rng.Intn(100)),
			Time:   ts,
		}
	}
	return models.NewMarketView(ts, quotes), nil
}
