package elements

import "time"

// Object is one tracked space object: its raw two-line element set, the parsed
// mean elements, and derived orbital parameters. Field names match the
// persisted schema and must stay stable.
type Object struct {
	CatalogID    int    `json:"catalog_id"`
	Name         string `json:"name"`
	IntlDesignat string `json:"international_designator"`
	Line1        string `json:"line1"`
	Line2        string `json:"line2"`

	EpochYear      int     `json:"epoch_year"`
	EpochDay       float64 `json:"epoch_day"`
	MeanMotionDot  float64 `json:"mean_motion_dot"`
	BStar          float64 `json:"bstar"`
	InclinationDeg float64 `json:"inclination_deg"`
	Eccentricity   float64 `json:"eccentricity"`
	RAANDeg        float64 `json:"raan_deg"`
	ArgPerigeeDeg  float64 `json:"argument_of_perigee_deg"`
	MeanAnomalyDeg float64 `json:"mean_anomaly_deg"`
	MeanMotion     float64 `json:"mean_motion"` // rev/day

	OrbitalAltitudeKm float64 `json:"orbital_altitude_km"`
	OrbitalPeriodMin  float64 `json:"orbital_period_min"`

	// Written back by the risk scorer.
	RiskScore   float64   `json:"risk_score"`
	LastUpdated time.Time `json:"last_updated"`
}

// Epoch converts the element-set epoch (two-digit year + fractional day of
// year) to a time.Time. Years 00-56 map to the 2000s, 57-99 to the 1900s.
func (o Object) Epoch() time.Time {
	year := o.EpochYear
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	// EpochDay is 1-based: day 1.0 = Jan 1 00:00.
	return t.Add(time.Duration((o.EpochDay - 1) * float64(24*time.Hour)))
}

// AgeDays returns the age of the element set at time t, in days.
// Never negative.
func (o Object) AgeDays(t time.Time) float64 {
	age := t.Sub(o.Epoch()).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

// Dataset is a complete object population from one ingest.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Objects   []Object
}
