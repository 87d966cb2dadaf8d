// Package covariance synthesizes position-covariance matrices for tracked
// objects and rotates them between the ECI and local RTN frames.
//
// The growth model is parametric rather than a full astrodynamic propagation:
// a base variance grows with element-set age and orbital altitude, weighted
// anisotropically across the radial/in-track/cross-track axes. The contract is
// a symmetric positive-semidefinite matrix whose scale is monotone in both
// age and altitude.
package covariance

import "math"

// Model constants. Variances are in m².
const (
	DefaultVarianceM2 = 1000.0
	GrowthRatePerDay  = 0.05
)

// Diagonal weights (R, T, N) and symmetric off-diagonal weights
// (RT, RN, TN) applied to the base variance.
var (
	diagWeights = [3]float64{1.0, 1.2, 0.8}
	offWeights  = [3]float64{0.3, 0.1, 0.2}
)

// Matrix3 is a 3x3 matrix in row-major order.
type Matrix3 [3][3]float64

// Default synthesizes the RTN-frame position covariance for an object at the
// given altitude with element data of the given age.
func Default(altitudeKm, ageDays float64) Matrix3 {
	if ageDays < 0 {
		ageDays = 0
	}
	if altitudeKm < 0 {
		altitudeKm = 0
	}
	base := DefaultVarianceM2 *
		math.Pow(1+GrowthRatePerDay, ageDays) *
		(1 + altitudeKm/2000)

	var m Matrix3
	m[0][0] = base * diagWeights[0]
	m[1][1] = base * diagWeights[1]
	m[2][2] = base * diagWeights[2]
	m[0][1], m[1][0] = base*offWeights[0], base*offWeights[0]
	m[0][2], m[2][0] = base*offWeights[1], base*offWeights[1]
	m[1][2], m[2][1] = base*offWeights[2], base*offWeights[2]
	return m
}

// ToRTN rotates an ECI covariance into the local RTN frame defined by the
// given ECI position and velocity: R radial outward, T the velocity component
// orthogonal to R, N completing the right-handed triad. If the geometry is
// degenerate (near-zero norms), the input is returned unchanged.
func ToRTN(cov Matrix3, positionECI, velocityECI [3]float64) Matrix3 {
	r, ok := unit(positionECI)
	if !ok {
		return cov
	}

	// In-track: velocity with its radial component removed. If the velocity
	// is missing or parallel to R, fall back to R x z-hat.
	t := sub(velocityECI, scale(r, dot(velocityECI, r)))
	tHat, ok := unit(t)
	if !ok {
		tHat, ok = unit(cross(r, [3]float64{0, 0, 1}))
		if !ok {
			return cov
		}
	}

	n, ok := unit(cross(r, tHat))
	if !ok {
		return cov
	}

	// M has R, T, N as rows; cov_rtn = Mᵀ · cov · M.
	m := Matrix3{r, tHat, n}
	return m.Transpose().Mul(cov).Mul(m)
}

// Combine returns the element-wise sum of two covariances, the combined
// uncertainty of two independent objects.
func Combine(a, b Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

// Mul returns m·o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i][k] * o[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// Transpose returns mᵀ.
func (m Matrix3) Transpose() Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Trace returns the sum of the diagonal.
func (m Matrix3) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// Flatten returns the matrix in row-major order.
func (m Matrix3) Flatten() [9]float64 {
	return [9]float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	}
}

// Finite reports whether every entry is finite.
func (m Matrix3) Finite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

const degenerateNorm = 1e-9

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func scale(a [3]float64, s float64) [3]float64 {
	return [3]float64{a[0] * s, a[1] * s, a[2] * s}
}

func unit(a [3]float64) ([3]float64, bool) {
	n := math.Sqrt(dot(a, a))
	if n < degenerateNorm {
		return a, false
	}
	return [3]float64{a[0] / n, a[1] / n, a[2] / n}, true
}
