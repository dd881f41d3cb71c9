package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"GexFlow/internal/domain/models"
	drepo "GexFlow/internal/domain/repository"
	"GexFlow/internal/gex"
	applogger "GexFlow/pkg/logger"
)

// MonitorConfig carries the engine values the level monitor needs.
type MonitorConfig struct {
	Underlying        string
	StrikeRangePct    float64 // strikes beyond this percent of spot are ignored
	RecomputeInterval time.Duration
	RiskFreeRate      float64
	DividendYield     float64
}

// LevelMonitor drives the recompute loop: it loads the nearest-expiration
// chain, subscribes to quote pushes, coalesces triggers through the
// coordinator and publishes each successful aggregation to the snapshot
// store, fanning out critical alerts.
type LevelMonitor struct {
	cfg      MonitorConfig
	provider drepo.ChainProvider
	agg      *gex.Aggregator
	det      *gex.Detector
	store    *gex.SnapshotStore
	sinks    []drepo.AlertSink
	history  drepo.SnapshotHistory
	mirror   drepo.SnapshotMirror
	metrics  drepo.Metrics
	log      *applogger.Logger
	coord    *RecomputeCoordinator

	mu     sync.Mutex
	series models.ExpirationSeries
	subs   []drepo.Subscription
	loaded bool
	// base is the context long-lived work runs under: the periodic ticker
	// and every quote-push trigger. The context handed to Reload may belong
	// to an HTTP request and governs only the load itself.
	base context.Context

	tickStop  chan struct{}
	tickStart sync.Once
	tickOnce  sync.Once
}

func NewLevelMonitor(
	cfg MonitorConfig,
	provider drepo.ChainProvider,
	agg *gex.Aggregator,
	det *gex.Detector,
	store *gex.SnapshotStore,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *LevelMonitor {
	m := &LevelMonitor{
		cfg:      cfg,
		provider: provider,
		agg:      agg,
		det:      det,
		store:    store,
		metrics:  metrics,
		log:      log,
		tickStop: make(chan struct{}),
	}
	m.coord = NewRecomputeCoordinator(m.recompute)
	return m
}

// AddAlertSink registers an alert destination. Call before Start.
func (m *LevelMonitor) AddAlertSink(s drepo.AlertSink) {
	m.sinks = append(m.sinks, s)
}

// SetHistory installs snapshot persistence. Optional.
func (m *LevelMonitor) SetHistory(h drepo.SnapshotHistory) { m.history = h }

// SetMirror installs the external latest-snapshot mirror. Optional.
func (m *LevelMonitor) SetMirror(mr drepo.SnapshotMirror) { m.mirror = mr }

// Store exposes the snapshot store for read-side consumers.
func (m *LevelMonitor) Store() *gex.SnapshotStore { return m.store }

// Connected reports whether the provider's quote stream is up.
func (m *LevelMonitor) Connected() bool { return m.provider.IsConnected() }

// IsLoaded reports whether a chain is loaded and subscribed.
func (m *LevelMonitor) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Start loads the chain and begins recomputing. A load failure aborts: no
// retry is attempted until the caller triggers Reload.
func (m *LevelMonitor) Start(ctx context.Context) error {
	m.adoptBase(ctx)
	if err := m.load(ctx); err != nil {
		return err
	}

	run := m.runCtx()
	m.tickStart.Do(func() { go m.tickLoop(run) })
	m.coord.Trigger(run)
	return nil
}

// Reload tears down current subscriptions and loads the chain again. It also
// recovers a monitor whose initial Start failed.
func (m *LevelMonitor) Reload(ctx context.Context) error {
	m.adoptBase(ctx)
	m.releaseSubscriptions()
	if err := m.load(ctx); err != nil {
		return err
	}
	run := m.runCtx()
	m.tickStart.Do(func() { go m.tickLoop(run) })
	m.coord.Trigger(run)
	return nil
}

// adoptBase captures the first caller's context, stripped of its
// cancellation, as the background-work context. A reload arriving before a
// successful Start must not leave the ticker or the subscription callbacks
// bound to the request's lifetime.
func (m *LevelMonitor) adoptBase(ctx context.Context) {
	m.mu.Lock()
	if m.base == nil {
		m.base = context.WithoutCancel(ctx)
	}
	m.mu.Unlock()
}

func (m *LevelMonitor) runCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return context.Background()
	}
	return m.base
}

// load discovers the nearest expiration, lists its strikes and subscribes to
// quote pushes for every contract.
func (m *LevelMonitor) load(ctx context.Context) error {
	series, err := m.provider.ListExpirationSeries(ctx, m.cfg.Underlying)
	if err != nil {
		m.metrics.RecordError("series_list")
		return fmt.Errorf("list expiration series: %w", err)
	}
	if len(series) == 0 {
		m.metrics.RecordError("series_empty")
		return fmt.Errorf("no expiration series for %s", m.cfg.Underlying)
	}
	nearest := series[0]

	quotes, err := m.provider.ListStrikes(ctx, nearest)
	if err != nil {
		m.metrics.RecordError("strikes_list")
		return fmt.Errorf("list strikes: %w", err)
	}
	if len(quotes) == 0 {
		m.metrics.RecordError("strikes_empty")
		return fmt.Errorf("no strikes in series %s %s", nearest.Underlying, nearest.Expiration.Format("2006-01-02"))
	}

	run := m.runCtx()
	subs := make([]drepo.Subscription, 0, len(quotes))
	for _, q := range quotes {
		sub, err := m.provider.Subscribe(ctx, q.Symbol, func() {
			m.coord.Trigger(run)
		})
		if err != nil {
			m.log.Warn("subscribe failed",
				applogger.String("symbol", q.Symbol),
				applogger.Error(err))
			continue
		}
		subs = append(subs, sub)
	}

	m.mu.Lock()
	m.series = nearest
	m.subs = subs
	m.loaded = true
	m.mu.Unlock()

	m.log.Info("chain loaded",
		applogger.String("underlying", m.cfg.Underlying),
		applogger.String("expiration", nearest.Expiration.Format("2006-01-02")),
		applogger.Int("contracts", len(quotes)),
		applogger.Int("subscriptions", len(subs)))
	return nil
}

// Trigger requests a recompute; used by the timer and exposed for manual
// refresh endpoints.
func (m *LevelMonitor) Trigger(ctx context.Context) { m.coord.Trigger(ctx) }

func (m *LevelMonitor) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RecomputeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.tickStop:
			return
		case <-ticker.C:
			m.coord.Trigger(ctx)
		}
	}
}

// recompute is one full aggregation pass. Any failure leaves the previously
// published snapshot in place.
func (m *LevelMonitor) recompute(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.metrics.RecordRecompute("panic")
			m.log.Error("recompute panicked", applogger.Any("panic", r))
		}
	}()

	m.mu.Lock()
	series := m.series
	loaded := m.loaded
	m.mu.Unlock()
	if !loaded {
		return
	}

	spot, err := m.provider.Spot(ctx, m.cfg.Underlying)
	if err != nil || spot <= 0 {
		m.metrics.RecordRecompute("spot_error")
		m.log.Warn("spot unavailable", applogger.Error(err))
		return
	}

	quotes, err := m.provider.ListStrikes(ctx, series)
	if err != nil {
		m.metrics.RecordRecompute("chain_error")
		m.log.Warn("chain read failed", applogger.Error(err))
		return
	}

	batch := m.prepare(quotes, spot, series, start)
	snap := m.agg.BuildSnapshot(m.cfg.Underlying, spot, batch, start)

	if !m.store.Publish(snap) {
		m.metrics.RecordRecompute("stale")
		return
	}

	m.metrics.RecordRecompute("ok")
	m.metrics.RecordRecomputeDuration(time.Since(start).Seconds())
	m.metrics.RecordContracts(snap.Contracts)
	m.metrics.RecordSpot(m.cfg.Underlying, spot)

	m.persist(ctx, snap)

	if alert, ok := m.det.Detect(snap, start); ok {
		m.metrics.RecordAlert(m.cfg.Underlying)
		m.deliver(ctx, alert)
	}
}

// prepare filters the batch to the configured strike band around spot and
// stamps the pricing inputs the provider does not carry.
func (m *LevelMonitor) prepare(quotes []models.ContractQuote, spot float64, series models.ExpirationSeries, now time.Time) []models.ContractQuote {
	tte := yearsUntil(series.Expiration, now)
	band := spot * m.cfg.StrikeRangePct / 100

	out := make([]models.ContractQuote, 0, len(quotes))
	for _, q := range quotes {
		if math.Abs(q.Strike-spot) > band {
			continue
		}
		q.Spot = spot
		q.TimeToExpiration = tte
		q.RiskFreeRate = m.cfg.RiskFreeRate
		q.DividendYield = m.cfg.DividendYield
		out = append(out, q)
	}
	return out
}

func (m *LevelMonitor) persist(ctx context.Context, snap *models.ExposureSnapshot) {
	if m.history != nil {
		if err := m.history.Record(ctx, snap); err != nil {
			m.metrics.RecordError("history")
			m.log.Warn("snapshot history write failed", applogger.Error(err))
		}
	}
	if m.mirror != nil {
		if err := m.mirror.Publish(ctx, snap); err != nil {
			m.metrics.RecordError("mirror")
			m.log.Warn("snapshot mirror write failed", applogger.Error(err))
		}
	}
}

func (m *LevelMonitor) deliver(ctx context.Context, a models.CriticalAlert) {
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, a); err != nil {
			m.metrics.RecordError("alert_sink")
			m.log.Warn("alert delivery failed", applogger.Error(err))
		}
	}
}

// releaseSubscriptions unsubscribes everything best-effort: each failure is
// logged and the rest of the teardown continues.
func (m *LevelMonitor) releaseSubscriptions() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.loaded = false
	m.mu.Unlock()

	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			m.log.Warn("unsubscribe failed",
				applogger.String("symbol", s.Symbol()),
				applogger.Error(err))
		}
	}
}

// Shutdown stops the timer and releases all quote subscriptions.
func (m *LevelMonitor) Shutdown(ctx context.Context) error {
	m.tickOnce.Do(func() { close(m.tickStop) })
	m.releaseSubscriptions()
	return nil
}

func yearsUntil(expiration, now time.Time) float64 {
	d := expiration.Sub(now)
	if d < 0 {
		return 0
	}
	return d.Hours() / 24 / 365
}
