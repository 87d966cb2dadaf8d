// Package reentry predicts orbital decay for low-perigee objects: a coarse
// drag integration against an exponential atmosphere gives days until
// atmospheric entry, an uncontrolled-reentry assessment, and the latitude
// window the object can come down in.
package reentry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/metrics"
	"github.com/astra/astrashield/internal/propagation"
	"github.com/astra/astrashield/internal/transform"
)

// Decay model constants.
const (
	// AltitudeThresholdKm selects decay candidates.
	AltitudeThresholdKm = 400.0

	// EntryAltitudeKm is where the integration declares atmospheric entry.
	EntryAltitudeKm = 120.0

	DefaultHorizonDays = 30.0
	stepDays           = 0.1

	// DefaultBallisticCoefficient (m²/kg) when neither drag term is usable.
	DefaultBallisticCoefficient = 0.01
)

// watchlist names large objects whose uncontrolled reentry is a ground
// hazard. Matching is case-insensitive substring.
var watchlist = []string{
	"CZ-", "SL-", "ARIANE", "CENTAUR", "ATLAS", "DELTA",
	"FALCON", "H-2", "TIANGONG", "SALYUT", "BREEZE",
}

// Window is the latitude band and per-orbit ground-track drift of a
// predicted reentry.
type Window struct {
	MaxLatitudeDeg           float64 `json:"max_latitude_deg"`
	LikelyLatMinDeg          float64 `json:"likely_lat_min_deg"`
	LikelyLatMaxDeg          float64 `json:"likely_lat_max_deg"`
	EarthRotationPerOrbitDeg float64 `json:"earth_rotation_per_orbit_deg"`
}

// Prediction is the decay assessment for one object.
type Prediction struct {
	CatalogID         int                      `json:"catalog_id"`
	Name              string                   `json:"name"`
	AltitudeKm        float64                  `json:"altitude_km"`
	BallisticCoeff    float64                  `json:"ballistic_coefficient_m2_kg"`
	ReentryPredicted  bool                     `json:"reentry_predicted"`
	DaysUntilReentry  float64                  `json:"days_until_reentry"`
	PredictedEntry    time.Time                `json:"predicted_entry,omitzero"`
	Status            string                   `json:"status"`
	Confidence        string                   `json:"confidence"`
	Uncontrolled      bool                     `json:"uncontrolled"`
	UncontrolledScore int                      `json:"uncontrolled_score"`
	Window            *Window                  `json:"window,omitempty"`
	SubSatellite      *transform.GeodeticPoint `json:"sub_satellite,omitempty"`
}

// Config tunes a predictor. Zero values select the defaults.
type Config struct {
	HorizonDays float64

	// SolarActivity in [0,1] scales drag between 0.5x and 1.5x.
	SolarActivity float64
}

func (c Config) withDefaults() Config {
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	return c
}

// Store lists the population a prediction pass scans.
type Store interface {
	ListObjects(ctx context.Context, limit int) ([]elements.Object, error)
}

// Predictor runs reentry predictions over the stored population.
type Predictor struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

// NewPredictor creates a predictor over the given store.
func NewPredictor(store Store, cfg Config, logger *slog.Logger) *Predictor {
	return &Predictor{store: store, cfg: cfg.withDefaults(), logger: logger}
}

// Scan predicts decay for every candidate below the altitude threshold,
// anchored at now. Per-object failures are skipped with a warning.
func (p *Predictor) Scan(ctx context.Context, now time.Time) ([]Prediction, error) {
	objs, err := p.store.ListObjects(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("reentry: load objects: %w", err)
	}

	var out []Prediction
	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pred, err := Predict(obj, now, p.cfg)
		if err != nil {
			p.logger.Warn("reentry prediction skipped", "catalog_id", obj.CatalogID, "error", err)
			continue
		}
		if pred.AltitudeKm >= AltitudeThresholdKm {
			continue
		}
		metrics.RecordReentryPrediction(pred.Status)
		out = append(out, pred)
	}
	p.logger.Info("reentry scan complete", "candidates", len(out), "population", len(objs))
	return out, nil
}

// Predict runs the decay assessment for one object at now. The current
// altitude comes from propagation, not from catalog-derived values.
func Predict(obj elements.Object, now time.Time, cfg Config) (Prediction, error) {
	cfg = cfg.withDefaults()

	adapter, err := propagation.NewAdapter(obj)
	if err != nil {
		return Prediction{}, err
	}
	state, err := adapter.PropagateECI(now)
	if err != nil {
		return Prediction{}, err
	}
	altKm := state.AltitudeKm()

	mean := adapter.MeanElements()
	bc := BallisticCoefficient(mean.MeanMotionDot, mean.BStar)

	pred := Prediction{
		CatalogID:      obj.CatalogID,
		Name:           obj.Name,
		AltitudeKm:     altKm,
		BallisticCoeff: bc,
		Status:         "normal",
		Confidence:     "low",
	}

	score := uncontrolledScore(obj.Name, altKm, mean.Eccentricity, mean.InclinationDeg)
	pred.UncontrolledScore = score
	pred.Uncontrolled = score >= 4

	if altKm >= AltitudeThresholdKm {
		return pred, nil
	}

	solar := solarFactor(cfg.SolarActivity)
	days, reached := integrateDecay(altKm, bc, solar, cfg.HorizonDays)
	if reached {
		pred.ReentryPredicted = true
		pred.DaysUntilReentry = days
		pred.PredictedEntry = now.Add(time.Duration(days * 24 * float64(time.Hour)))
		pred.Status = statusFromDays(days)
		pred.Confidence = confidenceFromDays(days)
		pred.Window = reentryWindow(mean.InclinationDeg, obj.OrbitalPeriodMin)
	}

	point := transform.SubSatellitePoint(state.TEME(), now)
	pred.SubSatellite = &point
	return pred, nil
}

// BallisticCoefficient estimates the drag area-to-mass ratio (m²/kg) from
// the element set's drag terms. The mean-motion derivative is preferred;
// BSTAR is converted via the reference constant 0.157; otherwise a generic
// smallsat value is assumed.
func BallisticCoefficient(meanMotionDot, bstar float64) float64 {
	switch {
	case meanMotionDot > 1e-8:
		return clamp(meanMotionDot*100, 0.001, 0.5)
	case bstar != 0:
		return clamp(math.Abs(bstar)/0.157, 0.001, 0.5)
	default:
		return DefaultBallisticCoefficient
	}
}

// integrateDecay steps the altitude down in 0.1-day increments until entry
// or the horizon. The decay rate per day is rho * BC * v^2 * 86400 scaled by
// the solar factor, with v the circular orbital speed in m/s.
func integrateDecay(altKm, bc, solar, horizonDays float64) (float64, bool) {
	alt := altKm
	for days := 0.0; days < horizonDays; days += stepDays {
		if alt < EntryAltitudeKm {
			return days, true
		}
		vMS := math.Sqrt(elements.MuEarthKm3S2/(elements.EarthRadiusKm+alt)) * 1000
		// km/day; the scale reproduces upstream behavior, see DESIGN.md.
		ratePerDay := Density(alt) * bc * vMS * vMS * 86400 * solar
		alt -= ratePerDay * stepDays
	}
	return horizonDays, alt < EntryAltitudeKm
}

// solarFactor maps activity in [0,1] onto the [0.5, 1.5] drag multiplier.
func solarFactor(activity float64) float64 {
	if activity <= 0 {
		return 1
	}
	return clamp(0.5+activity, 0.5, 1.5)
}

func statusFromDays(days float64) string {
	switch {
	case days <= 1:
		return "critical"
	case days <= 7:
		return "warning"
	case days <= 14:
		return "elevated"
	default:
		return "normal"
	}
}

// confidenceFromDays mirrors the status ladder: the sooner the entry, the
// less room the drag model has to drift.
func confidenceFromDays(days float64) string {
	switch {
	case days <= 1:
		return "high"
	case days <= 7:
		return "medium"
	default:
		return "low"
	}
}

// uncontrolledScore accumulates reentry-hazard points: low altitude, an
// eccentric orbit, a near-polar inclination, and a watchlist name.
func uncontrolledScore(name string, altKm, eccentricity, inclinationDeg float64) int {
	score := 0
	if altKm < AltitudeThresholdKm {
		score += 2
	}
	if eccentricity > 0.01 {
		score++
	}
	if inclinationDeg > 80 && inclinationDeg < 100 {
		score++
	}
	upper := strings.ToUpper(name)
	for _, w := range watchlist {
		if strings.Contains(upper, w) {
			score += 3
			break
		}
	}
	return score
}

// reentryWindow derives the latitude band reachable at entry from the
// inclination and the ground-track drift per orbit from the period.
func reentryWindow(inclinationDeg, periodMin float64) *Window {
	incRad := inclinationDeg * math.Pi / 180
	maxLat := math.Asin(math.Abs(math.Sin(incRad))) * 180 / math.Pi
	return &Window{
		MaxLatitudeDeg:           maxLat,
		LikelyLatMinDeg:          -0.7 * maxLat,
		LikelyLatMaxDeg:          0.7 * maxLat,
		EarthRotationPerOrbitDeg: 360 * periodMin / 1440,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
