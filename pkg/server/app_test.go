package server

import (
	"context"
	"testing"
	"time"

	"GexFlow/internal/gex"
	"GexFlow/internal/service/chainfeed"
	"GexFlow/internal/usecase"
	"GexFlow/pkg/config"
	applogger "GexFlow/pkg/logger"
)

type recordingCloser struct{ closed bool }

func (r *recordingCloser) Close() { r.closed = true }

func TestShutdownClosesSeedCache(t *testing.T) {
	log := applogger.Nop()
	provider := chainfeed.New("http://unused", "ws://unused", "", time.Second, time.Second, time.Minute, log)
	monitor := usecase.NewLevelMonitor(usecase.MonitorConfig{
		Underlying:        "TST",
		RecomputeInterval: time.Hour,
	}, provider, gex.NewAggregator(gex.NewSolver()), gex.NewDetector(1), gex.NewSnapshotStore(), nil, log)

	seed := &recordingCloser{}
	app := New(&config.Config{}, log, provider, monitor, nil, nil, nil, nil, seed)

	if err := app.shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !seed.closed {
		t.Fatalf("seed cache sweep not stopped on shutdown")
	}
}
