package gex

import (
	"errors"
	"time"

	"GexFlow/internal/domain/models"
	drepo "GexFlow/internal/domain/repository"
)

// contractMultiplier is the share-per-contract multiplier for US equity
// options.
const contractMultiplier = 100

// VolSeeds supplies warm-start guesses for the solver, usually the volatility
// solved for the same contract on the previous run.
type VolSeeds interface {
	Seed(symbol string) (float64, bool)
	Store(symbol string, vol float64)
}

// Aggregator folds a contract batch into an ExposureSnapshot. Dealers are
// modeled net short both calls and puts, so call exposure is negative
// (resistance) and put exposure positive (support).
type Aggregator struct {
	solver  *Solver
	seeds   VolSeeds
	metrics drepo.Metrics
}

func NewAggregator(solver *Solver) *Aggregator {
	return &Aggregator{solver: solver}
}

// SetVolSeeds installs a warm-start source. Optional.
func (a *Aggregator) SetVolSeeds(s VolSeeds) { a.seeds = s }

// SetMetrics installs a metrics recorder. Optional.
func (a *Aggregator) SetMetrics(m drepo.Metrics) { a.metrics = m }

// BuildSnapshot recomputes the full per-strike exposure map from scratch.
// Contracts with non-positive ask or open interest never reach the solver;
// contracts whose solved volatility or exposure comes out non-finite are
// dropped after computation. The result's two maps always share one key set
// and hold only finite values.
func (a *Aggregator) BuildSnapshot(underlying string, spot float64, quotes []models.ContractQuote, now time.Time) *models.ExposureSnapshot {
	snap := &models.ExposureSnapshot{
		Underlying:       underlying,
		Spot:             spot,
		ByStrike:         make(map[float64]float64, len(quotes)),
		NetGammaByStrike: make(map[float64]float64, len(quotes)),
		ComputedAt:       now,
	}

	for _, q := range quotes {
		sc, err := a.solve(q)
		if err != nil {
			continue
		}
		gamma := Gamma(q.Spot, q.Strike, q.TimeToExpiration, sc.ImpliedVolatility, q.RiskFreeRate, q.DividendYield)
		gex := signOf(q.Type) * gamma * float64(q.OpenInterest) * contractMultiplier * q.Spot * q.Strike
		if !isFinite(gex) || !isFinite(gamma) {
			a.countFailure("non_finite")
			continue
		}

		snap.ByStrike[q.Strike] += gex
		snap.NetGammaByStrike[q.Strike] += gamma * float64(q.OpenInterest)
		snap.Contracts++
	}

	return snap
}

// solve screens a quote and recovers its implied volatility.
func (a *Aggregator) solve(q models.ContractQuote) (models.SolvedContract, error) {
	if q.Ask <= 0 || q.OpenInterest <= 0 {
		return models.SolvedContract{}, ErrNoSolution
	}

	var guess float64
	if a.seeds != nil {
		if s, ok := a.seeds.Seed(q.Symbol); ok {
			guess = s
		}
	}

	vol, err := a.solver.Solve(q.Ask, q.Spot, q.Strike, q.TimeToExpiration, q.RiskFreeRate, q.DividendYield, q.Type, guess)
	if err != nil {
		a.countFailure(failureReason(err))
		return models.SolvedContract{}, err
	}
	if a.seeds != nil {
		a.seeds.Store(q.Symbol, vol)
	}
	return models.SolvedContract{ContractQuote: q, ImpliedVolatility: vol}, nil
}

func (a *Aggregator) countFailure(reason string) {
	if a.metrics != nil {
		a.metrics.RecordSolverFailure(reason)
	}
}

func signOf(t models.OptionType) float64 {
	if t == models.Call {
		return -1
	}
	return 1
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrPriceBounds):
		return "price_bounds"
	case errors.Is(err, ErrOutOfDomain):
		return "out_of_domain"
	case errors.Is(err, ErrNoConvergence):
		return "no_convergence"
	default:
		return "other"
	}
}
