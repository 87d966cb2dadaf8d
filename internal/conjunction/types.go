package conjunction

import (
	"time"

	"github.com/astra/astrashield/internal/collision"
)

// Band is an altitude regime used to bucket candidate pairs.
type Band string

const (
	BandLEO Band = "LEO"
	BandMEO Band = "MEO"
	BandGEO Band = "GEO"
)

// Band altitude ceilings in km.
const (
	LEOCeilingKm = 2000.0
	MEOCeilingKm = 35786.0
)

// BandFor classifies a derived altitude into its band.
func BandFor(altitudeKm float64) Band {
	switch {
	case altitudeKm <= LEOCeilingKm:
		return BandLEO
	case altitudeKm <= MEOCeilingKm:
		return BandMEO
	default:
		return BandGEO
	}
}

// Conjunction is a persisted close-approach record for a canonical pair of
// catalog ids. Field names are part of the stored schema.
type Conjunction struct {
	CatLow                 int                    `json:"cat_low"`
	CatHigh                int                    `json:"cat_high"`
	ClosestApproachKm      float64                `json:"closest_approach_km"`
	TCA                    time.Time              `json:"tca"`
	RelativeVelocityKmS    float64                `json:"relative_velocity_km_s"`
	RiskLevel              string                 `json:"risk_level"`
	ProbabilityOfCollision float64                `json:"probability_of_collision"`
	ProbabilityFormatted   string                 `json:"probability_formatted"`
	Uncertainty            *collision.Uncertainty `json:"uncertainty,omitempty"`
	PrimaryRadiusM         float64                `json:"primary_radius_m"`
	SecondaryRadiusM       float64                `json:"secondary_radius_m"`
	CreatedAt              time.Time              `json:"created_at"`
}

// CanonicalPair orders two catalog ids as (low, high).
func CanonicalPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// Key is the canonical pair identity of the record.
func (c Conjunction) Key() [2]int {
	return [2]int{c.CatLow, c.CatHigh}
}
