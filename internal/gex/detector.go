package gex

import (
	"math"
	"time"

	"GexFlow/internal/domain/models"
)

const (
	// criticalFactor scales the base threshold for the critical check.
	criticalFactor = 2.0
	// maxDistancePercent bounds how far from spot a level may sit and still
	// alert. Strict comparison: exactly 2.0 does not fire.
	maxDistancePercent = 2.0
)

// Detector scans a snapshot for the dominant gamma level and decides whether
// it warrants a critical alert.
type Detector struct {
	gexThreshold float64 // absolute dollar floor for a level to qualify
}

func NewDetector(gexThreshold float64) *Detector {
	return &Detector{gexThreshold: gexThreshold}
}

// Detect returns the critical alert for a snapshot, if any. Among strikes
// with |gex| above the threshold it picks the maximal |gex|; ties break to
// the strike nearest spot, then the lowest strike. The winner alerts only
// when |gex| strictly exceeds twice the threshold and sits strictly within
// 2% of spot.
func (d *Detector) Detect(s *models.ExposureSnapshot, now time.Time) (models.CriticalAlert, bool) {
	if s == nil || s.Spot <= 0 {
		return models.CriticalAlert{}, false
	}

	var (
		best    float64
		bestAbs float64
		found   bool
	)
	for strike, gex := range s.ByStrike {
		abs := math.Abs(gex)
		if abs <= d.gexThreshold {
			continue
		}
		if !found || abs > bestAbs || (abs == bestAbs && closerToSpot(strike, best, s.Spot)) {
			best, bestAbs, found = strike, abs, true
		}
	}
	if !found {
		return models.CriticalAlert{}, false
	}
	if bestAbs <= criticalFactor*d.gexThreshold {
		return models.CriticalAlert{}, false
	}

	distance := math.Abs(s.Spot-best) / s.Spot * 100
	if distance >= maxDistancePercent {
		return models.CriticalAlert{}, false
	}

	return models.CriticalAlert{
		Underlying:      s.Underlying,
		Strike:          best,
		Gex:             s.ByStrike[best],
		DistancePercent: distance,
		At:              now,
	}, true
}

// closerToSpot reports whether candidate beats incumbent under the tie-break
// order: nearest to spot first, lowest strike second.
func closerToSpot(candidate, incumbent, spot float64) bool {
	dc := math.Abs(spot - candidate)
	di := math.Abs(spot - incumbent)
	if dc != di {
		return dc < di
	}
	return candidate < incumbent
}
