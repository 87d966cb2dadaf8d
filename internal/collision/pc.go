// Package collision estimates the probability of collision (Pc) for a
// conjunction at its time of closest approach, and derives the uncertainty
// ellipsoid geometry reported alongside it.
//
// The estimator projects the combined RTN covariance onto the encounter
// plane and integrates the collision disk by Monte-Carlo sampling. Degenerate
// covariances degrade to a 1-D gaussian approximation; far-field encounters
// short-circuit to zero.
package collision

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/astra/astrashield/internal/covariance"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/metrics"
	"github.com/astra/astrashield/internal/propagation"
)

// Defaults for Options.
const (
	DefaultPrimaryRadiusM    = 5.0
	DefaultSecondaryRadiusM  = 1.0
	DefaultCovarianceAgeDays = 1.0
	DefaultMonteCarloSamples = 10000

	// farFieldRadiusFactor: beyond this multiple of the combined hard-body
	// radius the encounter contributes no measurable probability.
	farFieldRadiusFactor = 10.0
)

// Options tunes a Pc computation. Zero values select the defaults.
type Options struct {
	PrimaryRadiusM    float64
	SecondaryRadiusM  float64
	CovarianceAgeDays float64
	MonteCarloSamples int

	// Seed fixes the Monte-Carlo stream for reproducibility; 0 draws a
	// time-based seed.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.PrimaryRadiusM <= 0 {
		o.PrimaryRadiusM = DefaultPrimaryRadiusM
	}
	if o.SecondaryRadiusM <= 0 {
		o.SecondaryRadiusM = DefaultSecondaryRadiusM
	}
	if o.CovarianceAgeDays <= 0 {
		o.CovarianceAgeDays = DefaultCovarianceAgeDays
	}
	if o.MonteCarloSamples <= 0 {
		o.MonteCarloSamples = DefaultMonteCarloSamples
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}

// Result is the outcome of a Pc computation.
type Result struct {
	Pc               float64
	Formatted        string
	RiskLevel        string
	MissDistanceM    float64
	CombinedRadiusM  float64
	PrimaryRadiusM   float64
	SecondaryRadiusM float64
	Uncertainty      *Uncertainty
}

// ComputePc propagates both objects to the time of closest approach, builds
// the combined RTN covariance, and estimates the probability of collision.
// The result is symmetric in the order of its object arguments.
func ComputePc(objA, objB elements.Object, tca time.Time, opts Options) (Result, error) {
	opts = opts.withDefaults()
	began := time.Now()

	stateA, err := propagateAt(objA, tca)
	if err != nil {
		return Result{}, err
	}
	stateB, err := propagateAt(objB, tca)
	if err != nil {
		return Result{}, err
	}

	covA := rtnCovariance(stateA, objA.AgeDays(tca), opts.CovarianceAgeDays)
	covB := rtnCovariance(stateB, objB.AgeDays(tca), opts.CovarianceAgeDays)
	combined := covariance.Combine(covA, covB)

	posA := stateA.PositionM()
	posB := stateB.PositionM()
	missM := math.Sqrt(sq(posA[0]-posB[0]) + sq(posA[1]-posB[1]) + sq(posA[2]-posB[2]))

	radiusM := opts.PrimaryRadiusM + opts.SecondaryRadiusM
	rng := rand.New(rand.NewSource(opts.Seed))
	pc := PcFromGeometry(missM, radiusM, combined, opts.MonteCarloSamples, rng)

	metrics.ObservePc(pc, time.Since(began))

	return Result{
		Pc:               pc,
		Formatted:        FormatProbability(pc),
		RiskLevel:        LevelFromPc(pc),
		MissDistanceM:    missM,
		CombinedRadiusM:  radiusM,
		PrimaryRadiusM:   opts.PrimaryRadiusM,
		SecondaryRadiusM: opts.SecondaryRadiusM,
		Uncertainty:      UncertaintyFromCovariance(combined),
	}, nil
}

// PcFromGeometry estimates Pc from the encounter geometry alone: miss
// distance and combined hard-body radius in meters, and the combined RTN
// covariance in m². Pure except for the supplied RNG, which makes the
// Monte-Carlo stream reproducible under test.
func PcFromGeometry(missDistanceM, combinedRadiusM float64, cov covariance.Matrix3, samples int, rng *rand.Rand) float64 {
	if combinedRadiusM <= 0 {
		return 0
	}

	// Far-field short-circuit.
	if missDistanceM > farFieldRadiusFactor*combinedRadiusM {
		return 0
	}

	// In-plane 2x2 block: radial and in-track.
	sRR := cov[0][0]
	sRT := cov[0][1]
	sTT := cov[1][1]
	det := sRR*sTT - sRT*sRT

	if det <= 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return degeneratePc(missDistanceM, combinedRadiusM, sRR, sTT)
	}

	// Monte-Carlo integration of the collision disk, offset by the miss
	// distance along the radial axis.
	sigmaR := math.Sqrt(sRR)
	sigmaT := math.Sqrt(sTT)
	r2 := combinedRadiusM * combinedRadiusM

	hits := 0
	for i := 0; i < samples; i++ {
		z1, z2 := boxMuller(rng)
		x := missDistanceM + z1*sigmaR
		y := z2 * sigmaT
		if x*x+y*y <= r2 {
			hits++
		}
	}
	pc := float64(hits) / float64(samples)

	// Analytic cap: small-target disk probability, doubled. The factor of 2
	// reproduces upstream behavior; see DESIGN.md.
	analyticCap := math.Min(1, math.Pi*r2/(2*math.Pi*math.Sqrt(det))) * 2
	if pc > analyticCap {
		pc = analyticCap
	}

	return clamp01(pc)
}

// degeneratePc is the 1-D gaussian fallback used when the in-plane covariance
// block is singular or non-finite. The (R-d)/sigma form reproduces upstream
// behavior; see DESIGN.md.
func degeneratePc(missDistanceM, combinedRadiusM, sRR, sTT float64) float64 {
	sigma2 := (sRR + sTT) / 2
	if sigma2 <= 0 || math.IsNaN(sigma2) || math.IsInf(sigma2, 0) {
		return 0
	}
	z := math.Max(0, (combinedRadiusM-missDistanceM)/math.Sqrt(sigma2))
	return clamp01(math.Exp(-z * z / 2))
}

// boxMuller draws a pair of independent standard normal variates.
func boxMuller(rng *rand.Rand) (float64, float64) {
	u1 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	u2 := rng.Float64()
	r := math.Sqrt(-2 * math.Log(u1))
	return r * math.Cos(2*math.Pi*u2), r * math.Sin(2*math.Pi*u2)
}

// propagateAt returns the ECI state of an object at t.
func propagateAt(obj elements.Object, t time.Time) (propagation.StateECI, error) {
	adapter, err := propagation.NewAdapter(obj)
	if err != nil {
		return propagation.StateECI{}, fmt.Errorf("object %d: %w", obj.CatalogID, err)
	}
	state, err := adapter.PropagateECI(t)
	if err != nil {
		return propagation.StateECI{}, fmt.Errorf("object %d: %w", obj.CatalogID, err)
	}
	return state, nil
}

// rtnCovariance builds the default covariance for a propagated state and
// rotates it into the local RTN frame. The model age is the element-set age
// floored at the configured minimum.
func rtnCovariance(state propagation.StateECI, elementAgeDays, minAgeDays float64) covariance.Matrix3 {
	age := math.Max(elementAgeDays, minAgeDays)
	cov := covariance.Default(state.AltitudeKm(), age)
	return covariance.ToRTN(cov, state.PositionM(), state.VelocityMS())
}

// LevelFromPc maps a collision probability to the risk-level ladder.
func LevelFromPc(pc float64) string {
	switch {
	case pc >= 1e-3:
		return "critical"
	case pc >= 1e-4:
		return "high"
	case pc >= 1e-5:
		return "moderate"
	default:
		return "low"
	}
}

func sq(v float64) float64 { return v * v }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
