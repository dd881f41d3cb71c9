package models

import (
	"sort"
	"time"
)

// ExposureSnapshot is the result of one aggregation run. It is immutable
// after construction: a new run replaces the snapshot wholesale, strikes
// absent from the new computation vanish. ByStrike and NetGammaByStrike hold
// exactly the same key set and every value is finite.
type ExposureSnapshot struct {
	Underlying       string
	Spot             float64
	ByStrike         map[float64]float64 // strike -> signed dollar gamma exposure
	NetGammaByStrike map[float64]float64 // strike -> OI-weighted gamma, >= 0
	Contracts        int                 // contracts that contributed
	ComputedAt       time.Time
}

// Strikes returns the snapshot's strike ladder in ascending order.
func (s *ExposureSnapshot) Strikes() []float64 {
	ks := make([]float64, 0, len(s.ByStrike))
	for k := range s.ByStrike {
		ks = append(ks, k)
	}
	sort.Float64s(ks)
	return ks
}

// CriticalAlert is emitted when a dominant gamma level sits close to spot.
// Ephemeral, never persisted by the core.
type CriticalAlert struct {
	Underlying      string    `json:"underlying"`
	Strike          float64   `json:"strike"`
	Gex             float64   `json:"gex"`
	DistancePercent float64   `json:"distance_percent"`
	At              time.Time `json:"at"`
}
