package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	s, err := ParseSide(" BUY ")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)
	assert.Equal(t, SideSell, s.Opposite())

	_, err = ParseSide("hold")
	assert.Error(t, err)
	assert.False(t, Side("hold").Valid())
}

func TestIntentValidate(t *testing.T) {
	ok := Intent{StrategyID: "a", Symbol: "EURUSD", Side: SideBuy, Volume: decimal.RequireFromString("0.1")}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Symbol = ""
	assert.Error(t, bad.Validate())
	bad = ok
	bad.Side = "flat"
	assert.Error(t, bad.Validate())
	bad = ok
	bad.Volume = decimal.Zero
	assert.Error(t, bad.Validate())
}

func TestOrderStrategiesDedup(t *testing.T) {
	o := Order{SourceIntents: []Intent{{StrategyID: "b"}, {StrategyID: "a"}, {StrategyID: "b"}}}
	assert.Equal(t, []string{"b", "a"}, o.Strategies())

	v := decimal.RequireFromString("0.3")
	assert.True(t, o.WithVolume(v).Volume.Equal(v))
	assert.True(t, o.Volume.IsZero())
}

func TestMarketViewIsSnapshot(t *testing.T) {
	src := map[string]Quote{"USDJPY": {Bid: 151.2, Ask: 151.23}, "EURUSD": {Bid: 1.0850, Ask: 1.0852}}
	ts := time.Unix(1700000000, 0)
	v := NewMarketView(ts, src)
	src["GBPUSD"] = Quote{Bid: 1.27, Ask: 1.2702}

	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, v.Symbols())
	assert.Equal(t, ts, v.Timestamp())
	_, ok := v.Quote("GBPUSD")
	assert.False(t, ok)

	var empty MarketView
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Symbols())
}

func TestQuote(t *testing.T) {
	q := Quote{Bid: 1.0, Ask: 1.0002}
	assert.True(t, q.Valid())
	assert.InDelta(t, 2.0, q.SpreadBps(), 0.01)
	assert.False(t, Quote{Bid: 1.1, Ask: 1.0}.Valid())
	assert.False(t, Quote{}.Valid())
	assert.Equal(t, 0.0, Quote{}.SpreadBps())
}

func TestRiskLimits(t *testing.T) {
	l := DefaultRiskLimits()
	l.SymbolMaxVolume = map[string]decimal.Decimal{"USDJPY": decimal.RequireFromString("0.5")}
	assert.True(t, l.Allows("EURUSD"))
	assert.False(t, l.Allows("XAUUSD"))
	assert.True(t, l.MaxFor("USDJPY").Equal(decimal.RequireFromString("0.5")))
	assert.True(t, l.MaxFor("EURUSD").Equal(decimal.NewFromInt(1)))
	assert.False(t, RiskLimits{}.Allows("EURUSD"))

	assert.True(t, Verdict{Reject: RejectInvalidVolume}.Rejected())
	assert.False(t, Verdict{}.Rejected())
}

func TestResultConstructors(t *testing.T) {
	o := Order{ID: "o-1", Symbol: "EURUSD"}
	assert.Equal(t, StatusAccepted, Accepted(o, "T1", 1.2).Status)
	r := Rejected(o, RejectSymbolNotAllowed)
	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, "symbol_not_allowed", r.ErrorDetail)
	assert.Equal(t, "boom", Failed(o, "boom").ErrorDetail)
}

func TestErrors(t *testing.T) {
	base := errors.New("dial tcp: refused")

	cerr := &ConfigError{Strategy: "ultra_scalp", Field: "window", Reason: "must be at least 2"}
	assert.Equal(t, "strategy ultra_scalp: option window: must be at least 2", cerr.Error())
	assert.Equal(t, "config: no strategies configured", (&ConfigError{Reason: "no strategies configured"}).Error())

	conn := &ConnectError{Adapter: "mt5", Err: base}
	assert.ErrorIs(t, conn, base)
	assert.Equal(t, "connect mt5: dial tcp: refused", conn.Error())

	eval := &EvaluationError{Strategy: "vwap_magnet", Cycle: 3, Err: base}
	assert.ErrorIs(t, eval, base)
	assert.Contains(t, eval.Error(), "cycle 3")

	assert.Equal(t, "retcode 10004: Requote", (&SubmitFailure{Code: 10004, Message: "Requote"}).Error())
	assert.Equal(t, "retcode 10013", (&SubmitFailure{Code: 10013}).Error())
}
