// Package gex implements the gamma exposure computation core: implied
// volatility inversion, closed-form gamma pricing, signed per-strike
// aggregation and critical level detection.
package gex

import (
	"math"

	"GexFlow/internal/domain/models"
)

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func d1(spot, strike, t, vol, r, q float64) float64 {
	return (math.Log(spot/strike) + (r-q+0.5*vol*vol)*t) / (vol * math.Sqrt(t))
}

// Price returns the Black-Scholes value of a European option under a
// lognormal volatility model with continuous dividend yield.
func Price(spot, strike, t, vol, r, q float64, typ models.OptionType) float64 {
	if t <= 0 {
		// at expiry the option is worth its intrinsic value
		if typ == models.Call {
			return math.Max(0, spot-strike)
		}
		return math.Max(0, strike-spot)
	}
	if vol <= 0 {
		var p float64
		if typ == models.Call {
			p = spot*math.Exp(-q*t) - strike*math.Exp(-r*t)
		} else {
			p = strike*math.Exp(-r*t) - spot*math.Exp(-q*t)
		}
		return math.Max(0, p)
	}

	dOne := d1(spot, strike, t, vol, r, q)
	dTwo := dOne - vol*math.Sqrt(t)
	if typ == models.Call {
		return spot*math.Exp(-q*t)*normCDF(dOne) - strike*math.Exp(-r*t)*normCDF(dTwo)
	}
	return strike*math.Exp(-r*t)*normCDF(-dTwo) - spot*math.Exp(-q*t)*normCDF(-dOne)
}

// Vega returns the sensitivity of the option price to volatility. Used as
// the Newton-Raphson derivative by the solver.
func Vega(spot, strike, t, vol, r, q float64) float64 {
	if t <= 0 || vol <= 0 || spot <= 0 {
		return 0
	}
	dOne := d1(spot, strike, t, vol, r, q)
	return spot * math.Exp(-q*t) * normPDF(dOne) * math.Sqrt(t)
}

// Gamma returns the second derivative of option price with respect to spot.
// Calls and puts at the same strike, term and volatility carry identical
// gamma, so there is no option-type parameter.
func Gamma(spot, strike, t, vol, r, q float64) float64 {
	if t <= 0 || vol <= 0 || spot <= 0 {
		return 0
	}
	dOne := d1(spot, strike, t, vol, r, q)
	denom := spot * vol * math.Sqrt(t)
	if denom == 0 {
		return 0
	}
	return normPDF(dOne) * math.Exp(-q*t) / denom
}
