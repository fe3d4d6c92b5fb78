package strategies

import (
	"context"
	"fmt"

	"AOWI/internal/domain/models"
)

const UltraScalpName = "ultra_scalp"

type ultraScalpParams struct {
	Symbols      []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	Volume       float64  `yaml:"volume" default:"0.10" validate:"gt=0"`
	Window       int      `yaml:"window" default:"5" validate:"gte=2,lte=1000"`
	ThresholdBps float64  `yaml:"threshold_bps" default:"2" validate:"gt=0"`
	MaxSpreadBps float64  `yaml:"max_spread_bps" default:"3" validate:"gt=0"`
	Demo         bool     `yaml:"demo"`
}

// UltraScalp trades short-window momentum when the spread is tight.
type UltraScalp struct {
	p    ultraScalpParams
	mids map[string]*window
}

func NewUltraScalp() *UltraScalp { return &UltraScalp{} }

func (s *UltraScalp) Name() string { return UltraScalpName }

func (s *UltraScalp) Initialize(opts models.Options) error {
	var p ultraScalpParams
	if err := decodeOptions(UltraScalpName, opts, &p); err != nil {
		return err
	}
	s.p = p
	s.mids = make(map[string]*window, len(p.Symbols))
	for _, sym := range p.Symbols {
		s.mids[sym] = newWindow(p.Window)
	}
	return nil
}

func (s *UltraScalp) Evaluate(ctx context.Context, view models.MarketView) ([]models.Intent, error) {
	if s.mids == nil {
		return nil, fmt.Errorf("%s not initialized", UltraScalpName)
	}
	if s.p.Demo {
		return []models.Intent{s.intent(s.p.Symbols[0], models.SideBuy, "UltraScalp demo order")}, nil
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
		w.push(mid)
		if !w.full() {
			continue
		}
		spread := q.SpreadBps()
		if spread > s.p.MaxSpreadBps {
			continue
		}
		move := bps(w.oldest(), mid)
		why := fmt.Sprintf("momentum %.2fbps over %d ticks, spread %.2fbps", move, s.p.Window, spread)
		switch {
		case move >= s.p.ThresholdBps:
			out = append(out, s.intent(sym, models.SideBuy, why))
		case move <= -s.p.ThresholdBps:
			out = append(out, s.intent(sym, models.SideSell, why))
		}
	}
	return out, nil
}

func (s *UltraScalp) intent(sym string, side models.Side, why string) models.Intent {
	return models.Intent{
		StrategyID: UltraScalpName,
		Symbol:     sym,
		Side:       side,
		Volume:     lots(s.p.Volume),
		Rationale:  why,
	}
}
