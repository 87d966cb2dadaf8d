package transform

import (
	"math"
	"testing"
	"time"
)

func TestJulianDateJ2000(t *testing.T) {
	// J2000.0 epoch: 2000-01-01 12:00:00 UTC (ignoring the ~64s TT-UTC offset).
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451545.0) > 1e-6 {
		t.Errorf("JulianDate(J2000) = %.6f, want 2451545.0", jd)
	}
}

func TestGMSTRange(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, tt := range times {
		g := GMST(tt)
		if g < 0 || g >= 2*math.Pi {
			t.Errorf("GMST(%v) = %f, out of [0, 2π)", tt, g)
		}
	}
}

func TestGMSTKnownValue(t *testing.T) {
	// Vallado example 3-5: 1992-08-20 12:14:00 UT1 → GMST 152.578788°.
	g := GMST(time.Date(1992, 8, 20, 12, 14, 0, 0, time.UTC))
	want := 152.578788 * math.Pi / 180
	if math.Abs(g-want) > 1e-4 {
		t.Errorf("GMST = %.6f rad, want %.6f rad", g, want)
	}
}

func TestTEMEToECEFPreservesMagnitude(t *testing.T) {
	teme := StateTEME{X: 6524.834, Y: 6862.875, Z: 6448.296}
	ecef := TEMEToECEF(teme, time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC))

	magIn := math.Sqrt(teme.X*teme.X + teme.Y*teme.Y + teme.Z*teme.Z)
	magOut := math.Sqrt(ecef.X*ecef.X + ecef.Y*ecef.Y + ecef.Z*ecef.Z)
	if math.Abs(magIn-magOut) > 1e-6 {
		t.Errorf("rotation changed magnitude: %.9f -> %.9f", magIn, magOut)
	}
}

func TestECEFToGeodeticRoundTrip(t *testing.T) {
	cases := []struct {
		lat, lon, alt float64
	}{
		{0, 0, 400},
		{45, -93, 550},
		{-33.9, 151.2, 700},
		{80, 10, 350},
	}
	for _, c := range cases {
		latRad := c.lat * math.Pi / 180
		lonRad := c.lon * math.Pi / 180
		sinLat := math.Sin(latRad)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		x := (N + c.alt) * math.Cos(latRad) * math.Cos(lonRad)
		y := (N + c.alt) * math.Cos(latRad) * math.Sin(lonRad)
		z := (N*(1-wgs84E2) + c.alt) * sinLat

		got := ECEFToGeodetic(x, y, z)
		if math.Abs(got.LatDeg-c.lat) > 1e-6 {
			t.Errorf("lat %.1f: got %.7f", c.lat, got.LatDeg)
		}
		if math.Abs(got.LonDeg-c.lon) > 1e-6 {
			t.Errorf("lon %.1f: got %.7f", c.lon, got.LonDeg)
		}
		if math.Abs(got.AltKm-c.alt) > 1e-3 {
			t.Errorf("alt %.1f: got %.4f", c.alt, got.AltKm)
		}
	}
}

func TestSubSatellitePointLatitudeBounded(t *testing.T) {
	// An equatorial-ish TEME state should land near the equator.
	teme := StateTEME{X: 6778, Y: 0, Z: 0}
	gp := SubSatellitePoint(teme, time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC))
	if math.Abs(gp.LatDeg) > 0.5 {
		t.Errorf("equatorial state gave latitude %.3f", gp.LatDeg)
	}
	if gp.AltKm < 300 || gp.AltKm > 500 {
		t.Errorf("altitude %.1f km outside expected LEO range", gp.AltKm)
	}
}
