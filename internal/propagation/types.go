package propagation

import "time"

// TrajectoryPoint is one position sample (km, ECI) at a sample time.
// Transient: trajectory points live only for the duration of a detection run.
type TrajectoryPoint struct {
	XKm, YKm, ZKm float64
	T             time.Time
}

// Trajectory holds the ordered position samples for one object over a
// detection run's time grid.
type Trajectory struct {
	CatalogID  int
	AltitudeKm float64 // derived altitude of the source element set
	Points     []TrajectoryPoint
}
