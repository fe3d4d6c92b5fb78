package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"AOWI/internal/domain/models"
	domrepo "AOWI/internal/domain/repository"
	"AOWI/internal/domain/service"
	applogger "AOWI/pkg/logger"
	"AOWI/pkg/metrics"

	"github.com/google/uuid"
)

// LoopState is a dispatch loop lifecycle state.
type LoopState int32

const (
	StateIdle LoopState = iota
	StateConnecting
	StateRunning
	StateDraining
	StateShutDown
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ResultForwarder receives each cycle's results for delivery to external sinks.
type ResultForwarder interface {
	Forward(ctx context.Context, results []models.Result)
	Drain(ctx context.Context) error
}

// DispatchConfig holds loop timing and limits.
type DispatchConfig struct {
	Cycles            int // number of cycles; negative runs until cancelled
	Interval          time.Duration
	Workers           int
	ConnectTimeout    time.Duration
	ViewTimeout       time.Duration
	EvaluateTimeout   time.Duration
	SubmitTimeout     time.Duration
	DisconnectTimeout time.Duration
	DrainTimeout      time.Duration
	ConflictPolicy    ConflictPolicy
	Limits            models.RiskLimits
}

// DefaultDispatchConfig runs once against the default risk limits.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Cycles:            1,
		Interval:          time.Second,
		Workers:           4,
		ConnectTimeout:    5 * time.Second,
		ViewTimeout:       2 * time.Second,
		EvaluateTimeout:   2 * time.Second,
		SubmitTimeout:     3 * time.Second,
		DisconnectTimeout: 3 * time.Second,
		DrainTimeout:      5 * time.Second,
		ConflictPolicy:    ConflictDominant,
		Limits:            models.DefaultRiskLimits(),
	}
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Cycle            int                       `json:"cycle"`
	StartedAt        time.Time                 `json:"started_at"`
	Duration         time.Duration             `json:"duration"`
	Intents          int                       `json:"intents"`
	Orders           int                       `json:"orders"`
	Conflicts        []models.Conflict         `json:"conflicts,omitempty"`
	EvaluationErrors []*models.EvaluationError `json:"-"`
	Results          []models.Result           `json:"results"`
	ViewError        string                    `json:"view_error,omitempty"`
}

// RunSummary is returned by Run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Adapter    string        `json:"adapter"`
	Live       bool          `json:"live"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Cycles     []CycleReport `json:"cycles"`
}

// DispatchLoop drives strategies, aggregation, risk checks and submission for one run.
//
// The loop owns its broker adapter for the whole run: it is chosen while connecting,
// used only from the goroutine calling Run, and disconnected exactly once on every
// exit path.
type DispatchLoop struct {
	cfg        DispatchConfig
	units      []service.Strategy
	source     domrepo.MarketSource
	live       domrepo.BrokerAdapter
	simulation domrepo.BrokerAdapter
	aggregator *SignalAggregator
	outcomes   *OutcomeLog
	forwarder  ResultForwarder
	metrics    domrepo.Metrics
	log        *applogger.Logger

	runID string
	state atomic.Int32
	ran   atomic.Bool

	mu        sync.RWMutex
	adapter   domrepo.BrokerAdapter
	liveRun   bool // fixed at Connecting; survives Disconnect
	completed int
}

type DispatchOption func(*DispatchLoop)

// WithLiveAdapter sets the adapter tried first while connecting.
func WithLiveAdapter(a domrepo.BrokerAdapter) DispatchOption {
	return func(d *DispatchLoop) { d.live = a }
}

// WithRunID sets the run identifier shared with result sinks.
func WithRunID(id string) DispatchOption {
	return func(d *DispatchLoop) {
		if id != "" {
			d.runID = id
		}
	}
}

// WithSimulationAdapter sets the fallback adapter.
func WithSimulationAdapter(a domrepo.BrokerAdapter) DispatchOption {
	return func(d *DispatchLoop) {
		if a != nil {
			d.simulation = a
		}
	}
}

// WithForwarder sets where each cycle's results are forwarded.
func WithForwarder(f ResultForwarder) DispatchOption {
	return func(d *DispatchLoop) { d.forwarder = f }
}

// WithOutcomeLog shares an outcome log with readers such as the HTTP API.
func WithOutcomeLog(l *OutcomeLog) DispatchOption {
	return func(d *DispatchLoop) {
		if l != nil {
			d.outcomes = l
		}
	}
}

func WithDispatchMetrics(m domrepo.Metrics) DispatchOption {
	return func(d *DispatchLoop) {
		if m != nil {
			d.metrics = m
		}
	}
}

func WithDispatchLogger(l *applogger.Logger) DispatchOption {
	return func(d *DispatchLoop) {
		if l != nil {
			d.log = l
		}
	}
}

// WithAggregator overrides the signal aggregator built from the config policy.
func WithAggregator(a *SignalAggregator) DispatchOption {
	return func(d *DispatchLoop) {
		if a != nil {
			d.aggregator = a
		}
	}
}

// NewDispatchLoop builds a loop. simulation must be supplied with WithSimulationAdapter.
func NewDispatchLoop(units []service.Strategy, source domrepo.MarketSource, cfg DispatchConfig, opts ...DispatchOption) (*DispatchLoop, error) {
	if source == nil {
		return nil, errors.New("dispatch: market source is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	d := &DispatchLoop{
		cfg:     cfg,
		units:   units,
		source:  source,
		metrics: metrics.Nop{},
		log:     applogger.Nop(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.simulation == nil {
		return nil, errors.New("dispatch: simulation adapter is required")
	}
	if d.aggregator == nil {
		d.aggregator = NewSignalAggregator(cfg.ConflictPolicy)
	}
	if d.outcomes == nil {
		d.outcomes = NewOutcomeLog()
	}
	d.log = d.log.With(applogger.String("run_id", d.runID))
	return d, nil
}

func (d *DispatchLoop) RunID() string { return d.runID }

// State returns the current lifecycle state.
func (d *DispatchLoop) State() LoopState { return LoopState(d.state.Load()) }

// Outcomes returns the run's outcome log.
func (d *DispatchLoop) Outcomes() *OutcomeLog { return d.outcomes }

// IsLive reports whether the run connected to a live session. It keeps
// reporting so after the adapter is disconnected.
func (d *DispatchLoop) IsLive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.liveRun
}

// Status returns a snapshot for reporting.
func (d *DispatchLoop) Status() models.DispatchStatus {
	d.mu.RLock()
	st := models.DispatchStatus{
		RunID:           d.runID,
		State:           d.State().String(),
		CyclesCompleted: d.completed,
	}
	if d.adapter != nil {
		st.Adapter = d.adapter.Name()
		st.Live = d.liveRun
	}
	d.mu.RUnlock()
	st.Outcomes = d.outcomes.Counts()
	return st
}

func (d *DispatchLoop) setState(s LoopState) {
	prev := LoopState(d.state.Swap(int32(s)))
	d.metrics.RecordState(int(s))
	if prev != s {
		d.log.Info("dispatch state", applogger.String("from", prev.String()), applogger.String("to", s.String()))
	}
}

// Run executes the configured cycle budget. Cancelling ctx stops the loop between
// cycles; a cycle in progress completes first. The only error is failing to acquire
// any adapter.
func (d *DispatchLoop) Run(ctx context.Context) (*RunSummary, error) {
	if !d.ran.CompareAndSwap(false, true) {
		return nil, models.ErrLoopAlreadyRan
	}
	summary := &RunSummary{RunID: d.runID, StartedAt: time.Now().UTC()}

	d.setState(StateConnecting)
	adapter, err := d.connect(ctx)
	if err != nil {
		d.setState(StateShutDown)
		summary.FinishedAt = time.Now().UTC()
		d.log.Error("no broker backend available", applogger.Error(err))
		return summary, err
	}
	live := adapter.IsLive()
	d.mu.Lock()
	d.adapter = adapter
	d.liveRun = live
	d.mu.Unlock()
	summary.Adapter = adapter.Name()
	summary.Live = live

	var once sync.Once
	release := func() {
		once.Do(func() {
			d.setState(StateShutDown)
			d.disconnect(adapter)
			summary.FinishedAt = time.Now().UTC()
			d.logSummary(summary)
		})
	}
	defer release()

	d.setState(StateRunning)
	for cycle := 1; d.cfg.Cycles < 0 || cycle <= d.cfg.Cycles; cycle++ {
		if ctx.Err() != nil {
			d.log.Info("dispatch cancelled", applogger.Int("next_cycle", cycle))
			break
		}
		if cycle > 1 && d.cfg.Interval > 0 {
			if !d.wait(ctx, d.cfg.Interval) {
				d.log.Info("dispatch cancelled", applogger.Int("next_cycle", cycle))
				break
			}
		}
		report := d.runCycle(ctx, adapter, cycle)
		summary.Cycles = append(summary.Cycles, report)
		d.mu.Lock()
		d.completed++
		d.mu.Unlock()
	}

	d.setState(StateDraining)
	d.drain()
	release()
	return summary, nil
}

func (d *DispatchLoop) wait(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// connect tries the live adapter and falls back to simulation.
func (d *DispatchLoop) connect(ctx context.Context) (domrepo.BrokerAdapter, error) {
	if d.live != nil {
		cctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
		start := time.Now()
		err := d.live.Connect(cctx)
		cancel()
		d.metrics.RecordLatency("connect", time.Since(start).Seconds())
		if err == nil {
			d.log.Info("connected to live broker", applogger.String("adapter", d.live.Name()))
			return d.live, nil
		}
		cerr := &models.ConnectError{Adapter: d.live.Name(), Err: err}
		d.metrics.RecordError("connect")
		d.log.Warn("live broker unavailable, running in simulation mode", applogger.Error(cerr))
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ConnectTimeout)
	defer cancel()
	if err := d.simulation.Connect(cctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNoBackend, &models.ConnectError{Adapter: d.simulation.Name(), Err: err})
	}
	d.log.Info("connected to simulation broker", applogger.String("adapter", d.simulation.Name()))
	return d.simulation, nil
}

func (d *DispatchLoop) disconnect(adapter domrepo.BrokerAdapter) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DisconnectTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordError("disconnect")
			d.log.Error("broker disconnect panicked", applogger.Any("panic", r))
		}
	}()
	if err := adapter.Disconnect(ctx); err != nil {
		d.metrics.RecordError("disconnect")
		d.log.Warn("broker disconnect failed", applogger.String("adapter", adapter.Name()), applogger.Error(err))
		return
	}
	d.log.Info("broker disconnected", applogger.String("adapter", adapter.Name()))
}

func (d *DispatchLoop) drain() {
	if d.forwarder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()
	if err := d.forwarder.Drain(ctx); err != nil {
		d.metrics.RecordError("drain")
		d.log.Warn("outcome drain incomplete", applogger.Error(err))
	}
}

func (d *DispatchLoop) runCycle(parent context.Context, adapter domrepo.BrokerAdapter, n int) CycleReport {
	// a started cycle runs to completion even if the caller cancels
	ctx := context.WithoutCancel(parent)
	start := time.Now()
	report := CycleReport{Cycle: n, StartedAt: start.UTC()}
	defer func() {
		report.Duration = time.Since(start)
		d.metrics.RecordCycle(report.Duration.Seconds())
	}()

	vctx, cancel := context.WithTimeout(ctx, d.cfg.ViewTimeout)
	view, err := d.source.NextView(vctx)
	cancel()
	if err != nil {
		report.ViewError = err.Error()
		d.metrics.RecordError("market_view")
		d.log.Warn("market view unavailable, skipping cycle", applogger.Int("cycle", n), applogger.Error(err))
		return report
	}
	if obs, ok := adapter.(domrepo.ViewObserver); ok {
		obs.Observe(view)
	}

	intents, evalErrs := d.evaluate(ctx, n, view)
	report.Intents = len(intents)
	report.EvaluationErrors = evalErrs

	batch := d.aggregator.Aggregate(intents)
	report.Orders = len(batch.Orders)
	report.Conflicts = batch.Conflicts
	for _, c := range batch.Conflicts {
		d.metrics.RecordConflict(c.Symbol)
		d.log.Warn("intent conflict",
			applogger.Int("cycle", n),
			applogger.String("symbol", c.Symbol),
			applogger.Stringer("buy_volume", c.BuyVolume),
			applogger.Stringer("sell_volume", c.SellVolume),
			applogger.String("resolution", c.Resolution),
		)
	}

	for _, order := range batch.Orders {
		d.metrics.RecordOrder(order.Symbol, order.Side)
		res := d.dispatch(ctx, adapter, order, n)
		d.outcomes.Append(res)
		report.Results = append(report.Results, res)
		d.metrics.RecordResult(res.Status, res.Adapter)
	}

	if d.forwarder != nil && len(report.Results) > 0 {
		d.forwarder.Forward(ctx, report.Results)
	}

	d.log.Info("cycle complete",
		applogger.Int("cycle", n),
		applogger.Int("intents", report.Intents),
		applogger.Int("orders", report.Orders),
		applogger.Int("conflicts", len(report.Conflicts)),
		applogger.Int("evaluation_errors", len(evalErrs)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return report
}

// dispatch runs one order through the risk guard and the adapter.
func (d *DispatchLoop) dispatch(ctx context.Context, adapter domrepo.BrokerAdapter, order models.Order, cycle int) models.Result {
	verdict := ValidateOrder(order, d.cfg.Limits)
	for _, w := range verdict.Warnings {
		d.metrics.RecordClamp(order.Symbol)
		d.log.Warn("order clamped", applogger.Int("cycle", cycle), applogger.String("order_id", order.ID), applogger.String("detail", w))
	}

	var res models.Result
	if verdict.Rejected() {
		res = models.Rejected(verdict.Order, verdict.Reject)
		d.log.Warn("order rejected by risk guard",
			applogger.Int("cycle", cycle),
			applogger.String("order_id", order.ID),
			applogger.String("symbol", order.Symbol),
			applogger.String("reason", string(verdict.Reject)),
		)
	} else {
		res = d.submit(ctx, adapter, verdict.Order)
		if res.Status == models.StatusFailed {
			d.metrics.RecordError("submit")
			d.log.Error("order submit failed",
				applogger.Int("cycle", cycle),
				applogger.String("order_id", order.ID),
				applogger.String("symbol", order.Symbol),
				applogger.String("detail", res.ErrorDetail),
			)
		} else {
			d.log.Info("order submitted",
				applogger.Int("cycle", cycle),
				applogger.String("order_id", order.ID),
				applogger.String("symbol", order.Symbol),
				applogger.String("side", string(order.Side)),
				applogger.Stringer("volume", verdict.Order.Volume),
				applogger.String("ticket", res.Ticket),
			)
		}
	}

	res.Adapter = adapter.Name()
	res.Live = d.IsLive()
	res.Cycle = cycle
	res.RecordedAt = time.Now().UTC()
	return res
}

func (d *DispatchLoop) submit(ctx context.Context, adapter domrepo.BrokerAdapter, order models.Order) (res models.Result) {
	sctx, cancel := context.WithTimeout(ctx, d.cfg.SubmitTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = models.Failed(order, fmt.Sprintf("submit panic: %v", r))
		}
		d.metrics.RecordLatency("submit", time.Since(start).Seconds())
	}()

	res = adapter.Submit(sctx, order)
	switch {
	case res.Status == "":
		res = models.Failed(order, "adapter returned no status")
		if sctx.Err() != nil {
			res.ErrorDetail = fmt.Sprintf("submit timed out: %v", sctx.Err())
		}
	case sctx.Err() != nil && res.Status != models.StatusFailed:
		// the broker answered definitively, even if late; keep its ticket
		d.metrics.RecordError("submit_slow")
		d.log.Warn("slow submit",
			applogger.String("order_id", order.ID),
			applogger.String("status", string(res.Status)),
			applogger.String("ticket", res.Ticket),
			applogger.Duration("elapsed_ms", time.Since(start)),
			applogger.Duration("timeout_ms", d.cfg.SubmitTimeout),
		)
	}
	return res
}

type unitOutput struct {
	intents []models.Intent
	err     error
}

// evaluate runs every unit against view on a bounded worker pool. Output keeps unit order.
func (d *DispatchLoop) evaluate(ctx context.Context, cycle int, view models.MarketView) ([]models.Intent, []*models.EvaluationError) {
	outputs := make([]unitOutput, len(d.units))
	sem := make(chan struct{}, d.cfg.Workers)
	var wg sync.WaitGroup

	for i, unit := range d.units {
		wg.Add(1)
		go func(i int, unit service.Strategy) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outputs[i] = d.evaluateUnit(ctx, unit, view)
		}(i, unit)
	}
	wg.Wait()

	var intents []models.Intent
	var errs []*models.EvaluationError
	for i, out := range outputs {
		name := d.units[i].Name()
		if out.err != nil {
			eerr := &models.EvaluationError{Strategy: name, Cycle: cycle, Err: out.err}
			errs = append(errs, eerr)
			d.metrics.RecordEvaluationError(name)
			d.log.Error("strategy evaluation failed", applogger.Error(eerr))
			continue
		}
		d.metrics.RecordIntents(name, len(out.intents))
		intents = append(intents, out.intents...)
	}
	return intents, errs
}

func (d *DispatchLoop) evaluateUnit(ctx context.Context, unit service.Strategy, view models.MarketView) (out unitOutput) {
	ectx, cancel := context.WithTimeout(ctx, d.cfg.EvaluateTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = unitOutput{err: fmt.Errorf("panic: %v", r)}
		}
		d.metrics.RecordLatency("evaluate_"+unit.Name(), time.Since(start).Seconds())
	}()

	intents, err := unit.Evaluate(ectx, view)
	if err != nil {
		return unitOutput{err: err}
	}
	if ectx.Err() != nil {
		return unitOutput{err: fmt.Errorf("evaluation exceeded %s: %w", d.cfg.EvaluateTimeout, ectx.Err())}
	}

	kept := make([]models.Intent, 0, len(intents))
	for _, in := range intents {
		in.StrategyID = unit.Name()
		if verr := in.Validate(); verr != nil {
			d.metrics.RecordError("invalid_intent")
			d.log.Warn("dropping invalid intent", applogger.String("strategy", unit.Name()), applogger.Error(verr))
			continue
		}
		kept = append(kept, in)
	}
	return unitOutput{intents: kept}
}

func (d *DispatchLoop) logSummary(s *RunSummary) {
	counts := d.outcomes.Counts()
	d.log.Info("dispatch finished",
		applogger.String("adapter", s.Adapter),
		applogger.Bool("live", s.Live),
		applogger.Int("cycles", len(s.Cycles)),
		applogger.Int("accepted", counts[models.StatusAccepted]),
		applogger.Int("rejected", counts[models.StatusRejected]),
		applogger.Int("failed", counts[models.StatusFailed]),
	)
}
