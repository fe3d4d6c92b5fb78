package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"AOWI/internal/domain/models"
	"AOWI/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(cycles int) DispatchConfig {
	cfg := DefaultDispatchConfig()
	cfg.Cycles = cycles
	cfg.Interval = 0
	cfg.ConnectTimeout = time.Second
	cfg.EvaluateTimeout = 500 * time.Millisecond
	return cfg
}

func newLoop(t *testing.T, units []service.Strategy, cfg DispatchConfig, opts ...DispatchOption) *DispatchLoop {
	t.Helper()
	opts = append([]DispatchOption{WithAggregator(NewSignalAggregator(cfg.ConflictPolicy, WithOrderIDs(seqIDs())))}, opts...)
	loop, err := NewDispatchLoop(units, staticSource{view: majorsView()}, cfg, opts...)
	require.NoError(t, err)
	return loop
}

func TestDispatchSumsIntentsIntoOneAcceptedOrder(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	fwd := &recordingForwarder{}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
		&stubStrategy{name: "vwap_magnet", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.05")}},
	}
	loop := newLoop(t, units, testConfig(1), WithSimulationAdapter(sim), WithForwarder(fwd))

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Cycles, 1)
	assert.Equal(t, "simulation", summary.Adapter)
	assert.False(t, summary.Live)

	results := loop.Outcomes().Snapshot()
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, models.StatusAccepted, r.Status)
	assert.True(t, r.Order.Volume.Equal(dec("0.15")), "got %s", r.Order.Volume)
	assert.Equal(t, []string{"ultra_scalp", "vwap_magnet"}, r.Order.Strategies())
	assert.Equal(t, "aowi:ultra_scalp,vwap_magnet", r.Order.Comment)
	assert.Equal(t, 1, r.Cycle)
	assert.Equal(t, "simulation", r.Adapter)
	assert.False(t, r.RecordedAt.IsZero())

	assert.Equal(t, 1, sim.observed)
	assert.Equal(t, 1, sim.disconnectCount())
	require.Len(t, fwd.batches, 1)
	assert.Len(t, fwd.batches[0], 1)
	assert.Equal(t, 1, fwd.drained)
	assert.Equal(t, StateShutDown, loop.State())
}

func TestDispatchFallsBackToSimulation(t *testing.T) {
	live := &stubAdapter{name: "mt5", live: true, connectErr: errRefused}
	sim := &stubAdapter{name: "simulation"}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
	}
	loop := newLoop(t, units, testConfig(1), WithLiveAdapter(live), WithSimulationAdapter(sim))

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "simulation", summary.Adapter)
	assert.False(t, summary.Live)
	assert.False(t, loop.IsLive())
	assert.Empty(t, live.submitted)
	assert.Len(t, sim.submitted, 1)
	assert.Equal(t, 0, live.disconnectCount())
	assert.Equal(t, 1, sim.disconnectCount())
}

func TestDispatchUsesLiveWhenConnected(t *testing.T) {
	live := &stubAdapter{name: "mt5", live: true}
	sim := &stubAdapter{name: "simulation"}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
	}
	loop := newLoop(t, units, testConfig(1), WithLiveAdapter(live), WithSimulationAdapter(sim))

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Live)
	assert.Equal(t, "mt5", summary.Adapter)
	require.Len(t, live.submitted, 1)
	assert.True(t, loop.Outcomes().Snapshot()[0].Live)
	assert.Empty(t, sim.submitted)
	assert.Equal(t, 1, live.disconnectCount())
}

func TestDispatchNoBackend(t *testing.T) {
	live := &stubAdapter{name: "mt5", live: true, connectErr: errRefused}
	sim := &stubAdapter{name: "simulation", connectErr: errors.New("disabled")}
	loop := newLoop(t, nil, testConfig(1), WithLiveAdapter(live), WithSimulationAdapter(sim))

	_, err := loop.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNoBackend)
	assert.Equal(t, StateShutDown, loop.State())
	assert.Equal(t, 0, sim.disconnectCount())
}

func TestDispatchZeroCycles(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	unit := &stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}}
	fwd := &recordingForwarder{}
	loop := newLoop(t, []service.Strategy{unit}, testConfig(0), WithSimulationAdapter(sim), WithForwarder(fwd))

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Cycles)
	assert.Equal(t, 0, loop.Outcomes().Len())
	assert.Equal(t, int32(0), unit.calls.Load())
	assert.Equal(t, 1, sim.disconnectCount())
	assert.Equal(t, 1, fwd.drained)
}

func TestDispatchRunsOnlyOnce(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	loop := newLoop(t, nil, testConfig(1), WithSimulationAdapter(sim))

	_, err := loop.Run(context.Background())
	require.NoError(t, err)
	_, err = loop.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrLoopAlreadyRan)
	assert.Equal(t, 1, sim.disconnectCount())
}

func TestDispatchIsolatesFailingStrategies(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", err: errors.New("bad tick")},
		&stubStrategy{name: "liquidity_sweep", panics: true},
		&stubStrategy{name: "vwap_magnet", intents: []models.Intent{intent("", "USDJPY", models.SideBuy, "0.20")}},
	}
	loop := newLoop(t, units, testConfig(2), WithSimulationAdapter(sim))

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Cycles, 2)
	for _, c := range summary.Cycles {
		require.Len(t, c.EvaluationErrors, 2)
		assert.Equal(t, "ultra_scalp", c.EvaluationErrors[0].Strategy)
		assert.Equal(t, "liquidity_sweep", c.EvaluationErrors[1].Strategy)
		assert.Contains(t, c.EvaluationErrors[1].Error(), "panic")
		assert.Equal(t, 1, c.Orders)
	}
	assert.Equal(t, 2, loop.Outcomes().Counts()[models.StatusAccepted])
}

func TestDispatchEvaluationTimeout(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	cfg := testConfig(1)
	cfg.EvaluateTimeout = 20 * time.Millisecond
	units := []service.Strategy{
		&stubStrategy{name: "slow", delay: time.Second, intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
		&stubStrategy{name: "fast", intents: []models.Intent{intent("", "GBPUSD", models.SideSell, "0.05")}},
	}
	loop := newLoop(t, units, cfg, WithSimulationAdapter(sim))

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Cycles[0].EvaluationErrors, 1)
	assert.ErrorIs(t, summary.Cycles[0].EvaluationErrors[0], context.DeadlineExceeded)
	require.Len(t, sim.submitted, 1)
	assert.Equal(t, "GBPUSD", sim.submitted[0].Symbol)
}

func TestDispatchIsolatesSubmitFailures(t *testing.T) {
	sim := &stubAdapter{name: "simulation", failSymbol: "EURUSD", panicOn: "USDJPY"}
	units := []service.Strategy{
		&stubStrategy{name: "multi", intents: []models.Intent{
			intent("", "EURUSD", models.SideBuy, "0.10"),
			intent("", "USDJPY", models.SideBuy, "0.10"),
			intent("", "GBPUSD", models.SideSell, "0.05"),
		}},
	}
	loop := newLoop(t, units, testConfig(1), WithSimulationAdapter(sim))

	_, err := loop.Run(context.Background())
	require.NoError(t, err)
	res := loop.Outcomes().Snapshot()
	require.Len(t, res, 3)
	assert.Equal(t, models.StatusFailed, res[0].Status)
	assert.Contains(t, res[0].ErrorDetail, "10004")
	assert.Equal(t, models.StatusFailed, res[1].Status)
	assert.Contains(t, res[1].ErrorDetail, "panic")
	assert.Equal(t, models.StatusAccepted, res[2].Status)
}

func TestDispatchRiskGuard(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	units := []service.Strategy{
		&stubStrategy{name: "gold", intents: []models.Intent{intent("", "XAUUSD", models.SideBuy, "0.10")}},
		&stubStrategy{name: "big", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "2.5")}},
	}
	loop := newLoop(t, units, testConfig(1), WithSimulationAdapter(sim))

	_, err := loop.Run(context.Background())
	require.NoError(t, err)
	res := loop.Outcomes().Snapshot()
	require.Len(t, res, 2)
	assert.Equal(t, models.StatusRejected, res[0].Status)
	assert.Equal(t, string(models.RejectSymbolNotAllowed), res[0].ErrorDetail)
	assert.Equal(t, models.StatusAccepted, res[1].Status)
	assert.True(t, res[1].Order.Volume.Equal(dec("1")))

	require.Len(t, sim.submitted, 1)
	assert.Equal(t, "EURUSD", sim.submitted[0].Symbol)
}

func TestDispatchViewErrorSkipsCycle(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	unit := &stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}}
	loop, err := NewDispatchLoop([]service.Strategy{unit}, staticSource{err: errors.New("feed down")}, testConfig(2), WithSimulationAdapter(sim))
	require.NoError(t, err)

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Cycles, 2)
	assert.Equal(t, "feed down", summary.Cycles[0].ViewError)
	assert.Equal(t, int32(0), unit.calls.Load())
	assert.Equal(t, 0, loop.Outcomes().Len())
}

func TestDispatchCancelledBeforeFirstCycle(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	unit := &stubStrategy{name: "ultra_scalp"}
	loop := newLoop(t, []service.Strategy{unit}, testConfig(-1), WithSimulationAdapter(sim))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := loop.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Cycles)
	assert.Equal(t, 1, sim.disconnectCount())
}

func TestDispatchCancelStopsUnboundedRun(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	cfg := testConfig(-1)
	cfg.Interval = 5 * time.Millisecond
	unit := &stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}}
	loop := newLoop(t, []service.Strategy{unit}, cfg, WithSimulationAdapter(sim))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan *RunSummary, 1)
	go func() {
		s, err := loop.Run(ctx)
		assert.NoError(t, err)
		done <- s
	}()

	select {
	case s := <-done:
		assert.NotEmpty(t, s.Cycles)
		assert.Equal(t, len(s.Cycles), loop.Outcomes().Len())
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	assert.Equal(t, 1, sim.disconnectCount())

	st := loop.Status()
	assert.Equal(t, "shut_down", st.State)
	assert.Equal(t, "simulation", st.Adapter)
	assert.Equal(t, loop.Outcomes().Len(), st.CyclesCompleted)
}

func TestNewDispatchLoopRequiresCollaborators(t *testing.T) {
	_, err := NewDispatchLoop(nil, nil, testConfig(1), WithSimulationAdapter(&stubAdapter{}))
	assert.Error(t, err)
	_, err = NewDispatchLoop(nil, staticSource{}, testConfig(1))
	assert.Error(t, err)
}

func TestLoopStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "shut_down", StateShutDown.String())
}

func TestDispatchStatusReportsRun(t *testing.T) {
	sim := &stubAdapter{name: "simulation"}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
	}
	loop := newLoop(t, units, testConfig(2), WithSimulationAdapter(sim), WithRunID("run-42"))
	assert.Equal(t, "run-42", loop.RunID())
	assert.Equal(t, StateIdle.String(), loop.Status().State)

	_, err := loop.Run(context.Background())
	require.NoError(t, err)

	st := loop.Status()
	assert.Equal(t, "run-42", st.RunID)
	assert.Equal(t, StateShutDown.String(), st.State)
	assert.Equal(t, "simulation", st.Adapter)
	assert.Equal(t, 2, st.CyclesCompleted)
	assert.Equal(t, 2, st.Outcomes[models.StatusAccepted])
}

func TestDispatchKeepsLateAcceptedFill(t *testing.T) {
	sim := &stubAdapter{name: "simulation", delay: 80 * time.Millisecond}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
	}
	cfg := testConfig(1)
	cfg.SubmitTimeout = 20 * time.Millisecond
	loop := newLoop(t, units, cfg, WithSimulationAdapter(sim))

	_, err := loop.Run(context.Background())
	require.NoError(t, err)

	results := loop.Outcomes().Snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusAccepted, results[0].Status)
	assert.Equal(t, "T-1", results[0].Ticket)
	assert.Empty(t, results[0].ErrorDetail)
}

func TestDispatchLiveReportedAfterDisconnect(t *testing.T) {
	live := &stubAdapter{name: "mt5", live: true}
	sim := &stubAdapter{name: "simulation"}
	units := []service.Strategy{
		&stubStrategy{name: "ultra_scalp", intents: []models.Intent{intent("", "EURUSD", models.SideBuy, "0.10")}},
	}
	loop := newLoop(t, units, testConfig(1), WithLiveAdapter(live), WithSimulationAdapter(sim))

	_, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, live.disconnectCount())
	assert.False(t, live.IsLive())

	assert.True(t, loop.IsLive())
	st := loop.Status()
	assert.True(t, st.Live)
	assert.Equal(t, "mt5", st.Adapter)
	assert.True(t, loop.Outcomes().Snapshot()[0].Live)
}
