package reentry

import "math"

// densityTable holds total mass density (kg/m³) versus altitude (km) for a
// quiet-sun upper atmosphere. Interpolation between nodes is log-linear,
// matching the roughly exponential falloff.
var densityTable = []struct {
	altKm float64
	rho   float64
}{
	{100, 5.6e-7},
	{150, 2.0e-9},
	{200, 2.5e-10},
	{250, 6.0e-11},
	{300, 1.9e-11},
	{350, 6.7e-12},
	{400, 2.7e-12},
	{450, 1.2e-12},
	{500, 5.2e-13},
	{600, 1.1e-13},
	{700, 3.1e-14},
	{800, 1.2e-14},
}

// Density returns the atmospheric density at altKm. Below the table the
// bottom value is held; above it the density is effectively zero for decay
// purposes.
func Density(altKm float64) float64 {
	table := densityTable
	if altKm <= table[0].altKm {
		return table[0].rho
	}
	last := table[len(table)-1]
	if altKm >= last.altKm {
		return last.rho * math.Exp((last.altKm-altKm)/60)
	}

	for i := 1; i < len(table); i++ {
		if altKm > table[i].altKm {
			continue
		}
		lo, hi := table[i-1], table[i]
		f := (altKm - lo.altKm) / (hi.altKm - lo.altKm)
		return math.Exp(math.Log(lo.rho) + f*(math.Log(hi.rho)-math.Log(lo.rho)))
	}
	return last.rho
}
