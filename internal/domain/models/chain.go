package models

import "time"

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ExpirationSeries identifies one expiration date of an option chain.
type ExpirationSeries struct {
	Underlying string
	Expiration time.Time
}

// ContractQuote is one live option contract as delivered by the market-data
// provider. Read-only to the computation core.
type ContractQuote struct {
	Symbol           string // OCC-style contract symbol
	Strike           float64
	Type             OptionType
	Ask              float64
	OpenInterest     int64
	Spot             float64
	TimeToExpiration float64 // years
	RiskFreeRate     float64
	DividendYield    float64
}

// SolvedContract is a ContractQuote whose implied volatility was recovered
// from the ask price. Only contracts that solved successfully exist in this
// form.
type SolvedContract struct {
	ContractQuote
	ImpliedVolatility float64 // in (0, 3.0]
}
