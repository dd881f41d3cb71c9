package repository

import (
	"context"

	"GexFlow/internal/domain/models"
)

// ChainProvider is the external market-data collaborator. The core consumes
// only the shapes below; series discovery and transport are the provider's
// business.
type ChainProvider interface {
	// ListExpirationSeries returns the available expirations for an
	// underlying, nearest first.
	ListExpirationSeries(ctx context.Context, underlying string) ([]models.ExpirationSeries, error)

	// ListStrikes returns the live contract quotes of one series.
	ListStrikes(ctx context.Context, series models.ExpirationSeries) ([]models.ContractQuote, error)

	// Spot returns the last traded price of the underlying.
	Spot(ctx context.Context, underlying string) (float64, error)

	// Subscribe registers for quote and last-trade pushes on one contract.
	// The returned handle releases the subscription on teardown.
	Subscribe(ctx context.Context, symbol string, fn func()) (Subscription, error)

	IsConnected() bool
	Close() error
}

// Subscription is the explicit handle returned by ChainProvider.Subscribe.
type Subscription interface {
	Symbol() string
	Unsubscribe() error
}

// AlertSink receives critical gamma level alerts. Delivery is best-effort;
// a failing sink never aborts the run that produced the alert.
type AlertSink interface {
	Deliver(ctx context.Context, a models.CriticalAlert) error
}

// SnapshotHistory persists published snapshots for replay and analysis.
type SnapshotHistory interface {
	Record(ctx context.Context, s *models.ExposureSnapshot) error
	Close() error
}

// SnapshotMirror keeps an external copy of the latest snapshot for
// out-of-process consumers (dashboards, renderers).
type SnapshotMirror interface {
	Publish(ctx context.Context, s *models.ExposureSnapshot) error
	Close() error
}

type Metrics interface {
	RecordRecompute(outcome string)
	RecordRecomputeDuration(seconds float64)
	RecordSolverFailure(reason string)
	RecordContracts(n int)
	RecordSpot(underlying string, price float64)
	RecordAlert(underlying string)
	RecordError(kind string)
}
