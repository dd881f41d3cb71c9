package gex

import (
	"errors"
	"math"

	"GexFlow/internal/domain/models"
)

// Solver failure modes. Callers that only care about "no solution" can match
// ErrNoSolution, which every mode wraps.
var (
	ErrNoSolution    = errors.New("implied volatility: no solution")
	ErrPriceBounds   = errors.New("implied volatility: price violates no-arbitrage bounds")
	ErrNoConvergence = errors.New("implied volatility: did not converge")
	ErrOutOfDomain   = errors.New("implied volatility: result outside accepted domain")
)

const (
	maxIterations  = 100
	priceTolerance = 1e-6
	minVolatility  = 1e-4
	maxVolatility  = 3.0
	tinyVega       = 1e-8
	defaultGuess   = 0.5
)

// Solver inverts the Black-Scholes formula to recover volatility from an
// observed price. Pure; safe for concurrent use.
type Solver struct{}

func NewSolver() *Solver { return &Solver{} }

// Solve returns the implied volatility for an observed option price, or an
// error wrapping ErrNoSolution. Results are restricted to (0, 3.0]; values
// outside the domain are a failure, never clamped. guess seeds the Newton
// iteration; pass <= 0 for the default.
func (s *Solver) Solve(price, spot, strike, t, r, q float64, typ models.OptionType, guess float64) (float64, error) {
	if price <= 0 || spot <= 0 || strike <= 0 || t <= 0 {
		return 0, errors.Join(ErrNoSolution, ErrPriceBounds)
	}

	// No-arbitrage bounds: intrinsic (at zero vol) and the vol->inf limit.
	lower := Price(spot, strike, t, 0, r, q, typ)
	var upper float64
	if typ == models.Call {
		upper = spot * math.Exp(-q*t)
	} else {
		upper = strike * math.Exp(-r*t)
	}
	if price < lower-priceTolerance || price > upper+priceTolerance {
		return 0, errors.Join(ErrNoSolution, ErrPriceBounds)
	}

	sigma := guess
	if sigma <= 0 || sigma > maxVolatility {
		sigma = defaultGuess
	}

	// Newton-Raphson on the price residual; bracketed bisection fallback
	// whenever the step degenerates. Terminates within maxIterations for
	// all finite inputs.
	lo, hi := minVolatility, maxVolatility
	for i := 0; i < maxIterations; i++ {
		diff := Price(spot, strike, t, sigma, r, q, typ) - price
		if math.Abs(diff) < priceTolerance {
			if !isFinite(sigma) || sigma <= 0 || sigma > maxVolatility {
				return 0, errors.Join(ErrNoSolution, ErrOutOfDomain)
			}
			return sigma, nil
		}

		// maintain the bracket for the fallback
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		vega := Vega(spot, strike, t, sigma, r, q)
		if vega > tinyVega {
			next := sigma - diff/vega
			if next > lo && next < hi {
				sigma = next
				continue
			}
		}
		// Newton stepped out of the bracket or vega collapsed: bisect.
		sigma = 0.5 * (lo + hi)
	}

	return 0, errors.Join(ErrNoSolution, ErrNoConvergence)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
