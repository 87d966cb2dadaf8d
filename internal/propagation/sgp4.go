package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, no CGO, explicit TEME output. Propagate() takes Satellite by value
// so SGP4 error codes are not visible to the caller; propagation failures are
// detected by checking the output for NaN/Inf and unreasonable position
// magnitudes instead.

// StateECI is a propagated state in the TEME/ECI frame. Values are kept in
// kilometers (the library's native unit); meter accessors serve the collision
// engine, which works in meters throughout.
type StateECI struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// PositionM returns the position in meters.
func (s StateECI) PositionM() [3]float64 {
	return [3]float64{s.X * 1000, s.Y * 1000, s.Z * 1000}
}

// VelocityMS returns the velocity in m/s.
func (s StateECI) VelocityMS() [3]float64 {
	return [3]float64{s.VX * 1000, s.VY * 1000, s.VZ * 1000}
}

// RadiusKm returns the distance from the geocenter in km.
func (s StateECI) RadiusKm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// AltitudeKm returns the spherical-Earth altitude in km.
func (s StateECI) AltitudeKm() float64 {
	return s.RadiusKm() - elements.EarthRadiusKm
}

// SpeedKmS returns the speed in km/s.
func (s StateECI) SpeedKmS() float64 {
	return math.Sqrt(s.VX*s.VX + s.VY*s.VY + s.VZ*s.VZ)
}

// TEME converts the state to the transform package's representation.
func (s StateECI) TEME() transform.StateTEME {
	return transform.StateTEME{X: s.X, Y: s.Y, Z: s.Z, VX: s.VX, VY: s.VY, VZ: s.VZ}
}

// MeanElements is the subset of mean orbital elements the reentry predictor
// inspects.
type MeanElements struct {
	InclinationDeg float64
	Eccentricity   float64
	MeanMotion     float64 // rev/day
	MeanMotionDot  float64 // rev/day^2
	BStar          float64
}

// Adapter wraps the go-satellite SGP4 model for a single object.
type Adapter struct {
	sat       satellite.Satellite
	catalogID int
	mean      MeanElements
}

// NewAdapter initializes an SGP4 adapter from a parsed object.
//
// The element lines are pre-validated because go-satellite calls log.Fatal on
// malformed input, which would kill the process.
func NewAdapter(obj elements.Object) (*Adapter, error) {
	if err := validateLines(obj.Line1, obj.Line2); err != nil {
		return nil, fmt.Errorf("invalid element set for object %d: %w", obj.CatalogID, err)
	}

	sat := satellite.TLEToSat(obj.Line1, obj.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for object %d: code=%d %s", obj.CatalogID, sat.Error, sat.ErrorStr)
	}
	return &Adapter{
		sat:       sat,
		catalogID: obj.CatalogID,
		mean: MeanElements{
			InclinationDeg: obj.InclinationDeg,
			Eccentricity:   obj.Eccentricity,
			MeanMotion:     obj.MeanMotion,
			MeanMotionDot:  obj.MeanMotionDot,
			BStar:          obj.BStar,
		},
	}, nil
}

// validateLines performs basic format validation on element-set lines.
func validateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got %q", line2[0])
	}
	return nil
}

// PropagateECI computes the object's ECI state at the given UTC time.
// A nil error guarantees a finite, physically plausible state.
func (a *Adapter) PropagateECI(t time.Time) (StateECI, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(a.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if !finite(pos.X) || !finite(pos.Y) || !finite(pos.Z) ||
		!finite(vel.X) || !finite(vel.Y) || !finite(vel.Z) {
		return StateECI{}, fmt.Errorf("sgp4 propagation failed for object %d: output is NaN/Inf", a.catalogID)
	}

	// Position magnitude should be between ~6200 km (decayed) and ~50000 km
	// (beyond GEO). Outside that the element set is singular or far past epoch.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return StateECI{}, fmt.Errorf("sgp4 propagation failed for object %d: unreasonable position magnitude %.1f km", a.catalogID, mag)
	}

	return StateECI{
		X: pos.X, Y: pos.Y, Z: pos.Z,
		VX: vel.X, VY: vel.Y, VZ: vel.Z,
	}, nil
}

// MeanElements returns the mean elements the adapter was built from.
func (a *Adapter) MeanElements() MeanElements {
	return a.mean
}

// CatalogID returns the catalog id the adapter serves.
func (a *Adapter) CatalogID() int {
	return a.catalogID
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
