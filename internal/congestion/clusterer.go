// Package congestion partitions the tracked population into uniform altitude
// bands and reports their relative crowding.
package congestion

import (
	"math"

	"github.com/astra/astrashield/internal/elements"
)

// Clustering defaults.
const (
	DefaultBands  = 20
	MinAltitudeKm = 200.0
	MaxAltitudeKm = 36000.0

	// HighDensityThreshold marks a band as a high-density region.
	HighDensityThreshold = 0.7
)

// Band is one populated altitude slice. Density is normalized against the
// most crowded band of the same pass, so the busiest band scores 1.
type Band struct {
	AltitudeMinKm float64 `json:"altitude_min_km"`
	AltitudeMaxKm float64 `json:"altitude_max_km"`
	Members       []int   `json:"members"`
	Density       float64 `json:"density"`
}

// HighDensity reports whether the band qualifies as a high-density region.
func (b Band) HighDensity() bool {
	return b.Density >= HighDensityThreshold
}

// Cluster partitions objects into numBands uniform altitude bands over
// [MinAltitudeKm, MaxAltitudeKm]. Objects outside the range are ignored and
// empty bands are dropped; the result is ordered by ascending altitude.
func Cluster(objs []elements.Object, numBands int) []Band {
	if numBands <= 0 {
		numBands = DefaultBands
	}
	width := (MaxAltitudeKm - MinAltitudeKm) / float64(numBands)

	members := make([][]int, numBands)
	for _, obj := range objs {
		alt := obj.OrbitalAltitudeKm
		if alt < MinAltitudeKm || alt > MaxAltitudeKm || math.IsNaN(alt) {
			continue
		}
		idx := int((alt - MinAltitudeKm) / width)
		if idx >= numBands { // alt == MaxAltitudeKm lands in the top band
			idx = numBands - 1
		}
		members[idx] = append(members[idx], obj.CatalogID)
	}

	maxMembers := 0
	for _, m := range members {
		if len(m) > maxMembers {
			maxMembers = len(m)
		}
	}
	if maxMembers == 0 {
		return nil
	}

	out := make([]Band, 0, numBands)
	for i, m := range members {
		if len(m) == 0 {
			continue
		}
		out = append(out, Band{
			AltitudeMinKm: MinAltitudeKm + float64(i)*width,
			AltitudeMaxKm: MinAltitudeKm + float64(i+1)*width,
			Members:       m,
			Density:       float64(len(m)) / float64(maxMembers),
		})
	}
	return out
}

// HighDensityRegions filters a clustering pass down to its crowded bands.
func HighDensityRegions(bands []Band) []Band {
	var out []Band
	for _, b := range bands {
		if b.HighDensity() {
			out = append(out, b)
		}
	}
	return out
}
