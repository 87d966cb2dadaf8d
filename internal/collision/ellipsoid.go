package collision

import (
	"math"

	"github.com/astra/astrashield/internal/covariance"
)

// Ellipsoid holds the semi-axis lengths of an uncertainty ellipsoid in
// meters, ordered descending.
type Ellipsoid struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Uncertainty is the persisted uncertainty payload of a conjunction: the
// flattened combined RTN covariance, ellipsoid semi-axes at one and three
// sigma, and scalar miss-distance uncertainties.
type Uncertainty struct {
	Covariance                  [9]float64 `json:"covariance"`
	Ellipsoid1Sigma             Ellipsoid  `json:"ellipsoid_1_sigma"`
	Ellipsoid3Sigma             Ellipsoid  `json:"ellipsoid_3_sigma"`
	PositionUncertainty1SigmaKm float64    `json:"position_uncertainty_1_sigma_km"`
	PositionUncertainty3SigmaKm float64    `json:"position_uncertainty_3_sigma_km"`

	// Axes are the eigenvector rows matching the semi-axis ordering.
	Axes [3][3]float64 `json:"-"`
}

// UncertaintyFromCovariance derives the ellipsoid payload from a combined
// RTN covariance (m²). Returns nil if the covariance is not finite.
func UncertaintyFromCovariance(cov covariance.Matrix3) *Uncertainty {
	if !cov.Finite() {
		return nil
	}

	vals, vecs := jacobiEigen(cov)

	axesAt := func(sigma float64) Ellipsoid {
		return Ellipsoid{
			A: sigma * math.Sqrt(math.Max(0, vals[0])),
			B: sigma * math.Sqrt(math.Max(0, vals[1])),
			C: sigma * math.Sqrt(math.Max(0, vals[2])),
		}
	}

	// Scalar position uncertainty: total standard deviation, in km.
	sigmaPosKm := math.Sqrt(math.Max(0, cov.Trace())) / 1000

	return &Uncertainty{
		Covariance:                  cov.Flatten(),
		Ellipsoid1Sigma:             axesAt(1),
		Ellipsoid3Sigma:             axesAt(3),
		PositionUncertainty1SigmaKm: sigmaPosKm,
		PositionUncertainty3SigmaKm: 3 * sigmaPosKm,
		Axes:                        vecs,
	}
}

// EllipsoidAt returns the semi-axes at an arbitrary sigma level.
func (u *Uncertainty) EllipsoidAt(sigma float64) Ellipsoid {
	return Ellipsoid{
		A: sigma * u.Ellipsoid1Sigma.A,
		B: sigma * u.Ellipsoid1Sigma.B,
		C: sigma * u.Ellipsoid1Sigma.C,
	}
}

// meshGrid is the parametric resolution of a visualization surface.
const meshGrid = 32

// SurfaceVertices triangulates the sigma-level ellipsoid surface on a 32x32
// parametric grid, returning vertices in the covariance frame (meters).
func (u *Uncertainty) SurfaceVertices(sigma float64) [][3]float64 {
	e := u.EllipsoidAt(sigma)
	verts := make([][3]float64, 0, (meshGrid+1)*(meshGrid+1))

	for i := 0; i <= meshGrid; i++ {
		theta := math.Pi * float64(i) / meshGrid // polar angle
		sinT, cosT := math.Sincos(theta)
		for j := 0; j <= meshGrid; j++ {
			phi := 2 * math.Pi * float64(j) / meshGrid
			sinP, cosP := math.Sincos(phi)

			// Point on the axis-aligned ellipsoid, then rotate by the
			// eigenvector basis.
			p := [3]float64{
				e.A * sinT * cosP,
				e.B * sinT * sinP,
				e.C * cosT,
			}
			verts = append(verts, [3]float64{
				u.Axes[0][0]*p[0] + u.Axes[1][0]*p[1] + u.Axes[2][0]*p[2],
				u.Axes[0][1]*p[0] + u.Axes[1][1]*p[1] + u.Axes[2][1]*p[2],
				u.Axes[0][2]*p[0] + u.Axes[1][2]*p[1] + u.Axes[2][2]*p[2],
			})
		}
	}
	return verts
}

// jacobiEigen computes the eigenvalues and eigenvectors of a symmetric 3x3
// matrix by cyclic Jacobi rotations. Eigenvalues are returned descending with
// matching eigenvector rows. Accuracy is ample for ellipsoid axes.
func jacobiEigen(m covariance.Matrix3) ([3]float64, [3][3]float64) {
	a := m
	// v accumulates the rotations; starts as identity.
	v := covariance.Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	for sweep := 0; sweep < 32; sweep++ {
		off := sq(a[0][1]) + sq(a[0][2]) + sq(a[1][2])
		if off < 1e-20 {
			break
		}
		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				if math.Abs(a[p][q]) < 1e-30 {
					continue
				}
				// Classic Jacobi rotation angle.
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				a = rotateSym(a, p, q, c, s)
				v = rotateRight(v, p, q, c, s)
			}
		}
	}

	vals := [3]float64{a[0][0], a[1][1], a[2][2]}
	// Eigenvector for vals[i] is column i of v; emit as rows.
	var vecs [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vecs[i][j] = v[j][i]
		}
	}

	// Sort descending.
	for i := 0; i < 2; i++ {
		for j := i + 1; j < 3; j++ {
			if vals[j] > vals[i] {
				vals[i], vals[j] = vals[j], vals[i]
				vecs[i], vecs[j] = vecs[j], vecs[i]
			}
		}
	}
	return vals, vecs
}

// rotateSym applies the similarity transform Jᵀ·a·J for a Jacobi rotation in
// the (p,q) plane.
func rotateSym(a covariance.Matrix3, p, q int, c, s float64) covariance.Matrix3 {
	out := a
	for k := 0; k < 3; k++ {
		akp := c*a[k][p] - s*a[k][q]
		akq := s*a[k][p] + c*a[k][q]
		out[k][p], out[k][q] = akp, akq
	}
	a = out
	for k := 0; k < 3; k++ {
		apk := c*a[p][k] - s*a[q][k]
		aqk := s*a[p][k] + c*a[q][k]
		out[p][k], out[q][k] = apk, aqk
	}
	return out
}

// rotateRight applies v·J, accumulating eigenvectors in the columns of v.
func rotateRight(v covariance.Matrix3, p, q int, c, s float64) covariance.Matrix3 {
	out := v
	for k := 0; k < 3; k++ {
		vkp := c*v[k][p] - s*v[k][q]
		vkq := s*v[k][p] + c*v[k][q]
		out[k][p], out[k][q] = vkp, vkq
	}
	return out
}
