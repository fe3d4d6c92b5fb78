package strategies

import (
	"context"
	"fmt"

	"AOWI/internal/domain/models"
)

const LiquiditySweepName = "liquidity_sweep"

type liquiditySweepParams struct {
	Symbols  []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	Volume   float64  `yaml:"volume" default:"0.05" validate:"gt=0"`
	Lookback int      `yaml:"lookback" default:"20" validate:"gte=2,lte=5000"`
	SweepBps float64  `yaml:"sweep_bps" default:"5" validate:"gt=0"`
	Demo     bool     `yaml:"demo"`
}

// LiquiditySweep fades moves that run through the recent range, where resting stops sit.
type LiquiditySweep struct {
	p    liquiditySweepParams
	mids map[string]*window
}

func NewLiquiditySweep() *LiquiditySweep { return &LiquiditySweep{} }

func (s *LiquiditySweep) Name() string { return LiquiditySweepName }

func (s *LiquiditySweep) Initialize(opts models.Options) error {
	var p liquiditySweepParams
	if err := decodeOptions(LiquiditySweepName, opts, &p); err != nil {
		return err
	}
	s.p = p
	s.mids = make(map[string]*window, len(p.Symbols))
	for _, sym := range p.Symbols {
		s.mids[sym] = newWindow(p.Lookback)
	}
	return nil
}

func (s *LiquiditySweep) Evaluate(ctx context.Context, view models.MarketView) ([]models.Intent, error) {
	if s.mids == nil {
		return nil, fmt.Errorf("%s not initialized", LiquiditySweepName)
	}
	if s.p.Demo {
		return []models.Intent{s.intent(s.p.Symbols[0], models.SideSell, "LiquiditySweep demo order")}, nil
	}

	var out []models.Intent
	for _, sym := range s.p.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, ok := view.Quote(sym)
		if !ok || !q.Valid() {
			continue
		}
		w := s.mids[sym]
		mid := q.Mid()
		// range is taken before the current tick joins it
		if w.full() {
			hi, lo := w.max(), w.min()
			switch {
			case bps(hi, mid) >= s.p.SweepBps:
				why := fmt.Sprintf("swept %d-tick high %.5f by %.2fbps", s.p.Lookback, hi, bps(hi, mid))
				out = append(out, s.intent(sym, models.SideSell, why))
			case bps(lo, mid) <= -s.p.SweepBps:
				why := fmt.Sprintf("swept %d-tick low %.5f by %.2fbps", s.p.Lookback, lo, -bps(lo, mid))
				out = append(out, s.intent(sym, models.SideBuy, why))
			}
		}
		w.push(mid)
	}
	return out, nil
}

func (s *LiquiditySweep) intent(sym string, side models.Side, why string) models.Intent {
	return models.Intent{
		StrategyID: LiquiditySweepName,
		Symbol:     sym,
		Side:       side,
		Volume:     lots(s.p.Volume),
		Rationale:  why,
	}
}
