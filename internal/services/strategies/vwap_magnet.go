package strategies

import (
	"context"
	"fmt"

	"AOWI/internal/domain/models"
)

const VWAPMagnetName = "vwap_magnet"

type vwapMagnetParams struct {
	Symbols      []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	Volume       float64  `yaml:"volume" default:"0.20" validate:"gt=0"`
	Window       int      `yaml:"window" default:"30" validate:"gte=2,lte=5000"`
	DeviationBps float64  `yaml:"deviation_bps" default:"10" validate:"gt=0"`
	Demo         bool     `yaml:"demo"`
}

type vwapState struct {
	prices  *window
	weights *window
}

// VWAPMagnet trades reversion toward the rolling volume-weighted mid.
type VWAPMagnet struct {
	p     vwapMagnetParams
	state map[string]*vwapState
}

func NewVWAPMagnet() *VWAPMagnet { return &VWAPMagnet{} }

func (s *VWAPMagnet) Name() string { return VWAPMagnetName }

func (s *VWAPMagnet) Initialize(opts models.Options) error {
	var p vwapMagnetParams
	if err := decodeOptions(VWAPMagnetName, opts, &p); err != nil {
		return err
	}
	s.p = p
	s.state = make(map[string]*vwapState, len(p.Symbols))
	for _, sym := range p.Symbols {
		s.state[sym] = &vwapState{prices: newWindow(p.Window), weights: newWindow(p.Window)}
	}
	return nil
}

func (s *VWAPMagnet) Evaluate(ctx context.Context, view models.MarketView) ([]models.Intent, error) {
	if s.state == nil {
		return nil, fmt.Errorf("%s not initialized", VWAPMagnetName)
	}
	if s.p.Demo {
		return []models.Intent{s.intent(s.p.Symbols[0], models.SideBuy, "VWAPMagnet demo order")}, nil
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
		st := s.state[sym]
		mid := q.Mid()
		weight := q.Volume
		if weight <= 0 {
			weight = 1
		}
		st.prices.push(mid)
		st.weights.push(weight)
		if !st.prices.full() {
			continue
		}
		total := st.weights.sum()
		if total <= 0 {
			continue
		}
		vwap := st.prices.dot(st.weights) / total
		dev := bps(vwap, mid)
		why := fmt.Sprintf("mid %.2fbps from %d-tick vwap %.5f", dev, s.p.Window, vwap)
		switch {
		case dev >= s.p.DeviationBps:
			out = append(out, s.intent(sym, models.SideSell, why))
		case dev <= -s.p.DeviationBps:
			out = append(out, s.intent(sym, models.SideBuy, why))
		}
	}
	return out, nil
}

func (s *VWAPMagnet) intent(sym string, side models.Side, why string) models.Intent {
	return models.Intent{
		StrategyID: VWAPMagnetName,
		Symbol:     sym,
		Side:       side,
		Volume:     lots(s.p.Volume),
		Rationale:  why,
	}
}
