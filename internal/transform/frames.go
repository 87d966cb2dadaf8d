// Package transform provides the coordinate-frame conversions the pipeline
// needs: TEME (the SGP4 output frame) to ECEF, and ECEF to geodetic
// latitude/longitude for reporting sub-satellite points.
//
// Method: simplified Vallado-style rotation using GMST only (TEME → PEF ≈ ECEF),
// ignoring polar motion and the equation of equinoxes. The ~50 m error is
// irrelevant for decay footprint reporting.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// StateTEME is a position/velocity pair in the TEME frame (km, km/s).
type StateTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// StateECEF is a position/velocity pair in the ECEF frame (km, km/s).
type StateECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// JulianDate converts a UTC time to Julian Date using the standard
// astronomical algorithm.
func JulianDate(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y -= 1
		m += 12
	}

	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + B - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0

	return jd
}

// GMST returns Greenwich Mean Sidereal Time in radians for a UTC time,
// per the IAU-82 model (Vallado Eq 3-47).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t.UTC()) - j2000) / 36525.0

	// Seconds of time; 876600h expressed in seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// TEMEToECEF rotates a TEME state into ECEF at the given UTC time.
//
//	r_ECEF = R3(θ) · r_TEME
//	v_ECEF = R3(θ) · v_TEME − ω × r_ECEF
func TEMEToECEF(teme StateTEME, t time.Time) StateECEF {
	gmst := GMST(t)
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vxRot := teme.VX*cosG + teme.VY*sinG
	vyRot := -teme.VX*sinG + teme.VY*cosG

	return StateECEF{
		X:  x,
		Y:  y,
		Z:  z,
		VX: vxRot + OmegaEarth*y,
		VY: vyRot - OmegaEarth*x,
		VZ: teme.VZ,
	}
}
