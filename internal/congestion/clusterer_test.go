package congestion

import (
	"math"
	"testing"

	"github.com/astra/astrashield/internal/elements"
)

func objAt(id int, altKm float64) elements.Object {
	return elements.Object{CatalogID: id, OrbitalAltitudeKm: altKm}
}

func TestClusterClosure(t *testing.T) {
	// The union of members across non-empty bands must equal the set of
	// objects whose altitude lies inside [200, 36000] km.
	objs := []elements.Object{
		objAt(1, 150),   // below range
		objAt(2, 200),   // boundary, included
		objAt(3, 420),
		objAt(4, 780),
		objAt(5, 1200),
		objAt(6, 20200),
		objAt(7, 35786),
		objAt(8, 36000), // boundary, included
		objAt(9, 74000), // above range
		objAt(10, math.NaN()),
	}

	bands := Cluster(objs, DefaultBands)

	seen := map[int]bool{}
	for _, b := range bands {
		if len(b.Members) == 0 {
			t.Error("empty band not dropped")
		}
		for _, id := range b.Members {
			if seen[id] {
				t.Errorf("object %d appears in two bands", id)
			}
			seen[id] = true
		}
	}

	want := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true}
	if len(seen) != len(want) {
		t.Fatalf("clustered %d objects, want %d", len(seen), len(want))
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("object %d missing from clustering", id)
		}
	}
}

func TestClusterBandGeometryAndMembership(t *testing.T) {
	// 20 bands over [200, 36000]: width 1790 km. 420 km falls in band 0,
	// 2100 km in band 1.
	objs := []elements.Object{objAt(1, 420), objAt(2, 2100)}
	bands := Cluster(objs, 20)

	if len(bands) != 2 {
		t.Fatalf("got %d bands, want 2", len(bands))
	}
	if bands[0].AltitudeMinKm != 200 || math.Abs(bands[0].AltitudeMaxKm-1990) > 1e-9 {
		t.Errorf("band 0 range [%g, %g]", bands[0].AltitudeMinKm, bands[0].AltitudeMaxKm)
	}
	if bands[0].Members[0] != 1 || bands[1].Members[0] != 2 {
		t.Errorf("membership wrong: %v / %v", bands[0].Members, bands[1].Members)
	}
	for _, b := range bands {
		if b.AltitudeMinKm >= b.AltitudeMaxKm {
			t.Errorf("degenerate band [%g, %g]", b.AltitudeMinKm, b.AltitudeMaxKm)
		}
	}
}

func TestClusterDensityNormalization(t *testing.T) {
	// Five objects in one band, one in another: densities 1.0 and 0.2.
	objs := []elements.Object{
		objAt(1, 400), objAt(2, 450), objAt(3, 500), objAt(4, 550), objAt(5, 600),
		objAt(6, 20200),
	}
	bands := Cluster(objs, 20)
	if len(bands) != 2 {
		t.Fatalf("got %d bands", len(bands))
	}

	if bands[0].Density != 1 {
		t.Errorf("busiest band density = %g, want 1", bands[0].Density)
	}
	if math.Abs(bands[1].Density-0.2) > 1e-9 {
		t.Errorf("sparse band density = %g, want 0.2", bands[1].Density)
	}

	if !bands[0].HighDensity() || bands[1].HighDensity() {
		t.Error("high-density classification wrong")
	}
	high := HighDensityRegions(bands)
	if len(high) != 1 || high[0].Density != 1 {
		t.Errorf("high-density regions = %v", high)
	}
}

func TestClusterEmptyPopulation(t *testing.T) {
	if bands := Cluster(nil, 20); bands != nil {
		t.Errorf("empty population produced %v", bands)
	}
	// All objects out of range behaves like empty.
	if bands := Cluster([]elements.Object{objAt(1, 50)}, 20); bands != nil {
		t.Errorf("out-of-range population produced %v", bands)
	}
}
