package models

import "strconv"

// Requests and responses for the levels HTTP endpoints. Defined in domain for
// consistency and reuse.

type LevelsRequest struct {
	Top int `query:"top" json:"top" default:"10" validate:"gte=1,lte=200"`
}

// StrikeLevel is one row of the ranked-levels response.
type StrikeLevel struct {
	Strike          float64 `json:"strike"`
	Gex             float64 `json:"gex"`
	NetGamma        float64 `json:"net_gamma"`
	DistancePercent float64 `json:"distance_percent"`
}

type LevelsResponse struct {
	Underlying string        `json:"underlying"`
	Spot       float64       `json:"spot"`
	ComputedAt int64         `json:"computed_at"` // unix ms
	Levels     []StrikeLevel `json:"levels"`
}

// SnapshotResponse is the wire form of an ExposureSnapshot. Strikes become
// string keys because JSON objects cannot carry float keys.
type SnapshotResponse struct {
	Underlying       string             `json:"underlying"`
	Spot             float64            `json:"spot"`
	ByStrike         map[string]float64 `json:"by_strike"`
	NetGammaByStrike map[string]float64 `json:"net_gamma_by_strike"`
	Contracts        int                `json:"contracts"`
	ComputedAt       int64              `json:"computed_at"` // unix ms
}

// NewSnapshotResponse converts a snapshot into its wire form.
func NewSnapshotResponse(s *ExposureSnapshot) *SnapshotResponse {
	r := &SnapshotResponse{
		Underlying:       s.Underlying,
		Spot:             s.Spot,
		ByStrike:         make(map[string]float64, len(s.ByStrike)),
		NetGammaByStrike: make(map[string]float64, len(s.NetGammaByStrike)),
		Contracts:        s.Contracts,
		ComputedAt:       s.ComputedAt.UnixMilli(),
	}
	for k, v := range s.ByStrike {
		r.ByStrike[formatStrike(k)] = v
	}
	for k, v := range s.NetGammaByStrike {
		r.NetGammaByStrike[formatStrike(k)] = v
	}
	return r
}

func formatStrike(k float64) string {
	return strconv.FormatFloat(k, 'f', 2, 64)
}
