package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"GexFlow/internal/domain/models"
	drepo "GexFlow/internal/domain/repository"
	"GexFlow/internal/gex"
	applogger "GexFlow/pkg/logger"
)

type fakeSub struct {
	symbol   string
	fn       func()
	err      error
	released bool
}

func (s *fakeSub) Symbol() string { return s.symbol }
func (s *fakeSub) Unsubscribe() error {
	s.released = true
	return s.err
}

type fakeProvider struct {
	mu        sync.Mutex
	spot      float64
	spotErr   error
	seriesErr error
	quotes    []models.ContractQuote
	listErr   error
	listFn    func(call int) []models.ContractQuote
	listCalls int
	subs      []*fakeSub
	subErrFor string
}

func (p *fakeProvider) ListExpirationSeries(ctx context.Context, underlying string) ([]models.ExpirationSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seriesErr != nil {
		return nil, p.seriesErr
	}
	return []models.ExpirationSeries{
		{Underlying: underlying, Expiration: time.Now().Add(30 * 24 * time.Hour)},
		{Underlying: underlying, Expiration: time.Now().Add(60 * 24 * time.Hour)},
	}, nil
}

func (p *fakeProvider) ListStrikes(ctx context.Context, series models.ExpirationSeries) ([]models.ContractQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if p.listErr != nil {
		return nil, p.listErr
	}
	if p.listFn != nil {
		return p.listFn(p.listCalls), nil
	}
	out := make([]models.ContractQuote, len(p.quotes))
	copy(out, p.quotes)
	return out, nil
}

func (p *fakeProvider) Spot(ctx context.Context, underlying string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spot, p.spotErr
}

func (p *fakeProvider) Subscribe(ctx context.Context, symbol string, fn func()) (drepo.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if symbol == p.subErrFor {
		return nil, errors.New("subscribe refused")
	}
	sub := &fakeSub{symbol: symbol, fn: fn}
	p.subs = append(p.subs, sub)
	return sub, nil
}

// push invokes every live subscription callback, as a quote frame would.
func (p *fakeProvider) push() {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.subs))
	for _, s := range p.subs {
		if !s.released {
			fns = append(fns, s.fn)
		}
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *fakeProvider) IsConnected() bool { return true }
func (p *fakeProvider) Close() error      { return nil }

func (p *fakeProvider) setSpotErr(err error) {
	p.mu.Lock()
	p.spotErr = err
	p.mu.Unlock()
}

func (p *fakeProvider) setSeriesErr(err error) {
	p.mu.Lock()
	p.seriesErr = err
	p.mu.Unlock()
}

type countingMetrics struct {
	mu         sync.Mutex
	recomputes map[string]int
	errs       map[string]int
	alerts     int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{recomputes: map[string]int{}, errs: map[string]int{}}
}

func (m *countingMetrics) RecordRecompute(outcome string) {
	m.mu.Lock()
	m.recomputes[outcome]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordRecomputeDuration(float64) {}
func (m *countingMetrics) RecordSolverFailure(string)      {}
func (m *countingMetrics) RecordContracts(int)             {}
func (m *countingMetrics) RecordSpot(string, float64)      {}
func (m *countingMetrics) RecordAlert(string) {
	m.mu.Lock()
	m.alerts++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errs[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) outcome(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputes[name]
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []models.CriticalAlert
}

func (s *recordingSink) Deliver(ctx context.Context, a models.CriticalAlert) error {
	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func testQuotes() []models.ContractQuote {
	return []models.ContractQuote{
		{Symbol: "TST2400C100", Strike: 100, Type: models.Call, Ask: 2.0, OpenInterest: 500},
		{Symbol: "TST2400P95", Strike: 95, Type: models.Put, Ask: 1.0, OpenInterest: 300},
	}
}

func newTestMonitor(p drepo.ChainProvider, m drepo.Metrics, threshold float64) *LevelMonitor {
	cfg := MonitorConfig{
		Underlying:        "TST",
		StrikeRangePct:    10,
		RecomputeInterval: time.Hour,
	}
	agg := gex.NewAggregator(gex.NewSolver())
	det := gex.NewDetector(threshold)
	return NewLevelMonitor(cfg, p, agg, det, gex.NewSnapshotStore(), m, applogger.Nop())
}

func waitSnapshot(t *testing.T, m *LevelMonitor) *models.ExposureSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := m.Store().Current(); ok {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no snapshot published")
	return nil
}

func waitCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", what)
}

func TestMonitorStartPublishesSnapshot(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown(ctx)

	snap := waitSnapshot(t, m)
	if snap.Contracts != 2 {
		t.Fatalf("contracts = %d, want 2", snap.Contracts)
	}
	if snap.ByStrike[100] >= 0 {
		t.Fatalf("call strike exposure = %v, want negative", snap.ByStrike[100])
	}
	if snap.ByStrike[95] <= 0 {
		t.Fatalf("put strike exposure = %v, want positive", snap.ByStrike[95])
	}
	if !m.IsLoaded() {
		t.Fatalf("monitor must report loaded")
	}
}

func TestMonitorStrikeBandFilter(t *testing.T) {
	quotes := append(testQuotes(), models.ContractQuote{
		Symbol: "TST2400C200", Strike: 200, Type: models.Call, Ask: 0.5, OpenInterest: 100,
	})
	p := &fakeProvider{spot: 100, quotes: quotes}
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown(ctx)

	snap := waitSnapshot(t, m)
	if _, ok := snap.ByStrike[200]; ok {
		t.Fatalf("strike 200 is outside the 10%% band and must be excluded")
	}
}

func TestMonitorKeepsPreviousSnapshotOnFailure(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	metrics := newCountingMetrics()
	m := newTestMonitor(p, metrics, 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown(ctx)

	first := waitSnapshot(t, m)

	p.setSpotErr(errors.New("feed down"))
	m.Trigger(ctx)
	waitCond(t, "failed recompute recorded", func() bool {
		return metrics.outcome("spot_error") >= 1
	})

	cur, ok := m.Store().Current()
	if !ok || cur != first {
		t.Fatalf("previous snapshot must survive a failed run")
	}
}

func TestMonitorStartFailsWithoutSeries(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	p.setSeriesErr(errors.New("provider down"))
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("start must fail when series discovery fails")
	}
	if m.IsLoaded() {
		t.Fatalf("monitor must not report loaded")
	}
	if _, ok := m.Store().Current(); ok {
		t.Fatalf("no snapshot may be published after a failed load")
	}
}

func TestMonitorReloadRecovers(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	p.setSeriesErr(errors.New("provider down"))
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err == nil {
		t.Fatalf("start must fail")
	}

	p.setSeriesErr(nil)
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer m.Shutdown(ctx)

	waitSnapshot(t, m)
	if !m.IsLoaded() {
		t.Fatalf("monitor must report loaded after reload")
	}
}

func TestMonitorReloadTickerOutlivesCaller(t *testing.T) {
	// a reload arriving over HTTP carries a request-scoped context; the
	// ticker it arms after a failed Start must keep firing once that
	// context is canceled
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	p.setSeriesErr(errors.New("provider down"))
	metrics := newCountingMetrics()
	cfg := MonitorConfig{
		Underlying:        "TST",
		StrikeRangePct:    10,
		RecomputeInterval: 5 * time.Millisecond,
	}
	m := NewLevelMonitor(cfg, p, gex.NewAggregator(gex.NewSolver()), gex.NewDetector(1e12),
		gex.NewSnapshotStore(), metrics, applogger.Nop())

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("start must fail")
	}

	p.setSeriesErr(nil)
	reqCtx, cancel := context.WithCancel(context.Background())
	if err := m.Reload(reqCtx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	cancel()
	defer m.Shutdown(context.Background())

	base := metrics.outcome("ok")
	waitCond(t, "ticker recomputes after caller is gone", func() bool {
		return metrics.outcome("ok") >= base+3
	})
	if n := metrics.outcome("spot_error"); n != 0 {
		t.Fatalf("spot_error recomputes = %d, want 0", n)
	}
}

func TestMonitorQuotePushOutlivesReloadCaller(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	metrics := newCountingMetrics()
	m := newTestMonitor(p, metrics, 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown(ctx)
	waitSnapshot(t, m)

	reqCtx, cancel := context.WithCancel(context.Background())
	if err := m.Reload(reqCtx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	cancel()
	waitCond(t, "reload recompute finished", func() bool {
		return metrics.outcome("ok") >= 2
	})

	// the subscriptions made during the reload captured their trigger
	// context then; a push must still recompute against the live provider
	before := metrics.outcome("ok")
	p.push()
	waitCond(t, "recompute after quote push", func() bool {
		return metrics.outcome("ok") > before
	})
	if n := metrics.outcome("spot_error"); n != 0 {
		t.Fatalf("spot_error recomputes = %d, want 0", n)
	}
}

func TestMonitorDeliversCriticalAlert(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	sink := &recordingSink{}
	m := newTestMonitor(p, newCountingMetrics(), 1000)
	m.AddAlertSink(sink)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown(ctx)

	waitCond(t, "alert delivered", func() bool { return sink.count() >= 1 })

	sink.mu.Lock()
	alert := sink.alerts[0]
	sink.mu.Unlock()
	if alert.Underlying != "TST" {
		t.Fatalf("alert underlying = %q", alert.Underlying)
	}
	if alert.DistancePercent >= 2.0 {
		t.Fatalf("alert distance = %v, must be under the cap", alert.DistancePercent)
	}
}

func TestMonitorShutdownReleasesAllSubscriptions(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes()}
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitSnapshot(t, m)

	p.mu.Lock()
	if len(p.subs) != 2 {
		p.mu.Unlock()
		t.Fatalf("subscriptions = %d, want 2", len(p.subs))
	}
	// one failing unsubscribe must not stop the rest of the teardown
	p.subs[0].err = errors.New("broken pipe")
	p.mu.Unlock()

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subs {
		if !s.released {
			t.Fatalf("subscription %s not released", s.symbol)
		}
	}
}

func TestMonitorSkipsFailingSubscriptions(t *testing.T) {
	p := &fakeProvider{spot: 100, quotes: testQuotes(), subErrFor: "TST2400P95"}
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start must tolerate per-symbol subscribe failures: %v", err)
	}
	defer m.Shutdown(ctx)

	p.mu.Lock()
	n := len(p.subs)
	p.mu.Unlock()
	if n != 1 {
		t.Fatalf("subscriptions = %d, want 1", n)
	}
}

func TestMonitorSnapshotsNeverMixBatches(t *testing.T) {
	// every generation carries exactly one strike; a reader that ever sees
	// two strikes caught a half-applied batch
	p := &fakeProvider{spot: 100}
	p.listFn = func(call int) []models.ContractQuote {
		strike := 100 + float64(call%8)
		return []models.ContractQuote{{
			Symbol: "TSTGEN", Strike: strike, Type: models.Call, Ask: 2.0, OpenInterest: 100,
		}}
	}
	m := newTestMonitor(p, newCountingMetrics(), 1e12)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown(ctx)
	waitSnapshot(t, m)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if snap, ok := m.Store().Current(); ok && len(snap.ByStrike) > 1 {
					t.Errorf("mixed snapshot with %d strikes", len(snap.ByStrike))
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		m.Trigger(ctx)
		time.Sleep(time.Millisecond)
	}
	close(stop)
	wg.Wait()
}
