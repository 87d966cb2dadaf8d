package collision

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/astra/astrashield/internal/covariance"
	"github.com/astra/astrashield/internal/elements"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// diagCov builds a diagonal RTN covariance with the given per-axis variances (m²).
func diagCov(rr, tt, nn float64) covariance.Matrix3 {
	var m covariance.Matrix3
	m[0][0], m[1][1], m[2][2] = rr, tt, nn
	return m
}

func TestFarFieldShortCircuit(t *testing.T) {
	// 1000 km miss with 1000 m² per-axis covariance: exactly zero.
	cov := diagCov(1000, 1000, 1000)
	rng := rand.New(rand.NewSource(1))
	if pc := PcFromGeometry(1000e3, 6, cov, 10000, rng); pc != 0 {
		t.Errorf("far-field Pc = %g, want exactly 0", pc)
	}
}

func TestHeadOnAtCombinedRadius(t *testing.T) {
	// Miss 0 m, R = 6 m, sigma_RR = sigma_TT = 100 m², rho = 0:
	// Pc ≈ pi·36/(2·pi·100) ≈ 0.18 within ±0.02.
	cov := diagCov(100, 100, 100)
	rng := rand.New(rand.NewSource(42))
	pc := PcFromGeometry(0, 6, cov, 200000, rng)
	if math.Abs(pc-0.18) > 0.02 {
		t.Errorf("head-on Pc = %.4f, want 0.18 ± 0.02", pc)
	}
}

func TestPcMonotoneInMissDistance(t *testing.T) {
	cov := diagCov(100, 100, 100)
	var prev float64 = 1.1
	for d := 0.0; d <= 12; d += 2 {
		rng := rand.New(rand.NewSource(7))
		pc := PcFromGeometry(d, 6, cov, 100000, rng)
		if pc > prev+0.01 {
			t.Errorf("Pc increased with miss distance: %.4f at d=%g, previous %.4f", pc, d, prev)
		}
		if pc < prev {
			prev = pc
		}
	}
}

func TestPcMonotoneInCovarianceAge(t *testing.T) {
	// Far miss relative to sigma: growing the covariance with age must never
	// decrease Pc.
	const missM = 300.0
	const radiusM = 30.0
	prev := -1.0
	for _, age := range []float64{1, 10, 20, 40, 60} {
		cov := covariance.Default(500, age)
		rng := rand.New(rand.NewSource(11))
		pc := PcFromGeometry(missM, radiusM, cov, 100000, rng)
		if pc < prev-0.0005 {
			t.Errorf("Pc decreased with age %g: %.6f -> %.6f", age, prev, pc)
		}
		if pc > prev {
			prev = pc
		}
	}
}

func TestDegenerateCovarianceFallback(t *testing.T) {
	// Singular in-plane block (det = 0) degrades to the 1-D gaussian.
	var cov covariance.Matrix3
	cov[0][0], cov[1][1] = 100, 100
	cov[0][1], cov[1][0] = 100, 100

	rng := rand.New(rand.NewSource(3))
	pc := PcFromGeometry(0, 6, cov, 10000, rng)
	want := math.Exp(-0.6 * 0.6 / 2) // z = (6-0)/10
	if math.Abs(pc-want) > 1e-12 {
		t.Errorf("degenerate Pc = %g, want %g", pc, want)
	}

	// Fully zero covariance: no measurable probability.
	if pc := PcFromGeometry(5, 6, covariance.Matrix3{}, 10000, rng); pc != 0 {
		t.Errorf("zero-covariance Pc = %g, want 0", pc)
	}
}

func TestPcAlwaysInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for _, d := range []float64{0, 1, 5, 10, 50} {
		for _, v := range []float64{1e-3, 1, 100, 1e6} {
			pc := PcFromGeometry(d, 6, diagCov(v, v, v), 5000, rng)
			if pc < 0 || pc > 1 {
				t.Errorf("Pc out of [0,1]: %g at d=%g v=%g", pc, d, v)
			}
		}
	}
}

func TestLevelFromPcLadder(t *testing.T) {
	cases := []struct {
		pc   float64
		want string
	}{
		{9e-4, "high"},
		{5e-4, "high"},
		{5e-5, "moderate"},
		{1e-7, "low"},
		{2e-3, "critical"},
		{1e-3, "critical"},
		{1e-5, "moderate"},
		{0, "low"},
	}
	for _, c := range cases {
		if got := LevelFromPc(c.pc); got != c.want {
			t.Errorf("LevelFromPc(%g) = %q, want %q", c.pc, got, c.want)
		}
	}
}

func TestFormatProbability(t *testing.T) {
	cases := []struct {
		pc   float64
		want string
	}{
		{0, "0"},
		{1, "100%"},
		{1.5, "100%"},
		{0.0123, "1.23%"},
		{1e-3, "0.10%"},
		{2.5e-4, "0.25‰"},
		{1e-5, "0.01‰"},
		{3.7e-6, "3.70 ppm"},
		{1e-9, "0.00 ppm"},
		{1e-12, "1.00e-12"},
	}
	for _, c := range cases {
		if got := FormatProbability(c.pc); got != c.want {
			t.Errorf("FormatProbability(%g) = %q, want %q", c.pc, got, c.want)
		}
	}
}

const pairText = `ISS (ZARYA)
1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993
2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058
NOAA 15
1 25338U 98030A   25045.51611341  .00000344  00000+0  16320-3 0  9996
2 25338  98.5697  77.5599 0011261  55.3069 304.9156 14.26674330392775
`

func TestComputePcSymmetric(t *testing.T) {
	objs, err := elements.Parse(strings.NewReader(pairText), testLogger)
	if err != nil || len(objs) != 2 {
		t.Fatalf("fixture parse failed: %v", err)
	}
	tca := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	opts := Options{Seed: 99}

	ab, err := ComputePc(objs[0], objs[1], tca, opts)
	if err != nil {
		t.Fatalf("ComputePc(A,B): %v", err)
	}
	ba, err := ComputePc(objs[1], objs[0], tca, opts)
	if err != nil {
		t.Fatalf("ComputePc(B,A): %v", err)
	}

	if math.Abs(ab.MissDistanceM-ba.MissDistanceM) > 1e-6 {
		t.Errorf("miss distance asymmetric: %g vs %g", ab.MissDistanceM, ba.MissDistanceM)
	}
	tol := math.Max(0.01*math.Max(ab.Pc, ba.Pc), 1e-6)
	if math.Abs(ab.Pc-ba.Pc) > tol {
		t.Errorf("Pc asymmetric: %g vs %g", ab.Pc, ba.Pc)
	}
	if ab.CombinedRadiusM != DefaultPrimaryRadiusM+DefaultSecondaryRadiusM {
		t.Errorf("combined radius = %g", ab.CombinedRadiusM)
	}
}

func TestComputePcPropagationFailure(t *testing.T) {
	objs, _ := elements.Parse(strings.NewReader(pairText), testLogger)
	bad := objs[0]
	bad.Line1 = "1 25544U" // fails validation

	if _, err := ComputePc(bad, objs[1], time.Now().UTC(), Options{Seed: 1}); err == nil {
		t.Error("expected error for invalid element set")
	}
}
