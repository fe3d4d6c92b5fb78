package server

import (
	"context"
	"path/filepath"
	"testing"

	"AOWI/internal/domain/models"
	"AOWI/internal/handler/api"
	mid "AOWI/internal/middleware"
	"AOWI/internal/service/broker"
	"AOWI/internal/service/marketdata"
	"AOWI/internal/services/strategies"
	"AOWI/internal/usecase"
	"AOWI/pkg/config"
	xhttp "AOWI/pkg/http"
	applogger "AOWI/pkg/logger"
	"AOWI/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func testApp(t *testing.T, withHTTP bool) (*App, *usecase.DispatchLoop) {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "config", "testdata", "minimal.yaml"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	units, err := strategies.Default().Build(map[string]models.Options{
		strategies.UltraScalpName: {"demo": true, "symbols": []any{"EURUSD"}},
		strategies.VWAPMagnetName: {"demo": true, "symbols": []any{"EURUSD"}, "volume": 0.05},
	})
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}
	dcfg := usecase.DefaultDispatchConfig()
	dcfg.Interval = 0
	loop, err := usecase.NewDispatchLoop(units, marketdata.NewSynthetic(marketdata.SyntheticConfig{Seed: 1}), dcfg,
		usecase.WithSimulationAdapter(broker.NewSimulation()))
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	pipe := mid.NewOutcomePipeline(nil, metrics.Nop{})
	var srv *xhttp.Server
	if withHTTP {
		reg := prometheus.NewRegistry()
		srv = xhttp.NewServer(api.NewDispatchEchoHandler(applogger.Nop(), loop), xhttp.WithPort(0), xhttp.WithHost("127.0.0.1"), xhttp.WithRegistry(reg, reg))
	}
	return New(cfg, applogger.Nop(), loop, pipe, srv), loop
}

func TestAppRunsBudgetAndShutsDown(t *testing.T) {
	app, loop := testApp(t, true)
	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := app.Summary()
	if s == nil || len(s.Cycles) != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	rows := loop.Outcomes().Snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected one merged order, got %d", len(rows))
	}
	if rows[0].Status != models.StatusAccepted || rows[0].Order.Volume.String() != "0.15" {
		t.Fatalf("unexpected result %+v", rows[0])
	}
	if loop.State() != usecase.StateShutDown {
		t.Fatalf("loop state %s", loop.State())
	}
}

func TestAppRunWithoutHTTP(t *testing.T) {
	app, _ := testApp(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := app.Summary(); s == nil || len(s.Cycles) != 0 {
		t.Fatalf("cancelled run should finish without cycles: %+v", s)
	}
}
