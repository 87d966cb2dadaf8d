package elements

import (
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Real ISS element set (epoch Feb 2025).
const issName = "ISS (ZARYA)"
const issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993"
const issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058"

// Real NOAA 15 element set.
const noaaName = "NOAA 15"
const noaaLine1 = "1 25338U 98030A   25045.51611341  .00000344  00000+0  16320-3 0  9996"
const noaaLine2 = "2 25338  98.5697  77.5599 0011261  55.3069 304.9156 14.26674330392775"

func issText() string {
	return issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
}

func TestParseSingleRecord(t *testing.T) {
	objs, err := Parse(strings.NewReader(issText()), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objs))
	}

	o := objs[0]
	if o.CatalogID != 25544 {
		t.Errorf("CatalogID = %d, want 25544", o.CatalogID)
	}
	if o.Name != "ISS (ZARYA)" {
		t.Errorf("Name = %q", o.Name)
	}
	if o.IntlDesignat != "98067A" {
		t.Errorf("IntlDesignat = %q", o.IntlDesignat)
	}
	if len(o.Line1) != 69 || len(o.Line2) != 69 {
		t.Errorf("element lines must be 69 chars, got %d and %d", len(o.Line1), len(o.Line2))
	}
	if o.EpochYear != 25 {
		t.Errorf("EpochYear = %d, want 25", o.EpochYear)
	}
	if math.Abs(o.EpochDay-45.18032407) > 1e-9 {
		t.Errorf("EpochDay = %.8f", o.EpochDay)
	}
	if math.Abs(o.MeanMotionDot-0.00016717) > 1e-10 {
		t.Errorf("MeanMotionDot = %g", o.MeanMotionDot)
	}
	if math.Abs(o.BStar-0.30099e-3) > 1e-9 {
		t.Errorf("BStar = %g, want 3.0099e-4", o.BStar)
	}
	if math.Abs(o.InclinationDeg-51.6412) > 1e-6 {
		t.Errorf("InclinationDeg = %g", o.InclinationDeg)
	}
	if math.Abs(o.Eccentricity-0.0003457) > 1e-9 {
		t.Errorf("Eccentricity = %g", o.Eccentricity)
	}
	if math.Abs(o.RAANDeg-193.5765) > 1e-6 {
		t.Errorf("RAANDeg = %g", o.RAANDeg)
	}
	if math.Abs(o.ArgPerigeeDeg-126.2851) > 1e-6 {
		t.Errorf("ArgPerigeeDeg = %g", o.ArgPerigeeDeg)
	}
	if math.Abs(o.MeanAnomalyDeg-233.8519) > 1e-6 {
		t.Errorf("MeanAnomalyDeg = %g", o.MeanAnomalyDeg)
	}
	if math.Abs(o.MeanMotion-15.49874301) > 1e-8 {
		t.Errorf("MeanMotion = %g", o.MeanMotion)
	}

	if math.Abs(o.OrbitalPeriodMin-92.9108) > 1e-3 {
		t.Errorf("OrbitalPeriodMin = %g, want ~92.911", o.OrbitalPeriodMin)
	}
	if math.IsNaN(o.OrbitalAltitudeKm) || o.OrbitalAltitudeKm < 0 {
		t.Errorf("derived altitude must be finite and non-negative, got %g", o.OrbitalAltitudeKm)
	}
}

func TestParseEpoch(t *testing.T) {
	objs, err := Parse(strings.NewReader(issText()), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	epoch := objs[0].Epoch()
	want := time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)
	if d := epoch.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("Epoch = %v, want ~%v", epoch, want)
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	text := "GARBAGE\nnot an element line\nstill not\n" + issText() +
		"BROKEN SAT\n1 XXXXXU 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993\n" + issLine2 + "\n" +
		noaaName + "\n" + noaaLine1 + "\n" + noaaLine2 + "\n"

	objs, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 valid objects, got %d", len(objs))
	}
	if objs[0].CatalogID != 25544 || objs[1].CatalogID != 25338 {
		t.Errorf("unexpected catalog ids %d, %d", objs[0].CatalogID, objs[1].CatalogID)
	}
}

func TestParseDuplicateLastWins(t *testing.T) {
	// Same catalog id twice with different names: the later record wins.
	text := issText() + "ISS RENAMED\n" + issLine1 + "\n" + issLine2 + "\n"
	objs, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected 1 deduplicated object, got %d", len(objs))
	}
	if objs[0].Name != "ISS RENAMED" {
		t.Errorf("Name = %q, want last record to win", objs[0].Name)
	}
}

func TestParseRejectsBadEccentricity(t *testing.T) {
	// Line length preserved; eccentricity field is not numeric.
	bad := issLine2[:26] + "9x99999" + issLine2[33:]
	text := issName + "\n" + issLine1 + "\n" + bad + "\n"
	objs, err := Parse(strings.NewReader(text), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(objs) != 0 {
		t.Fatalf("expected invalid record to be skipped, got %d objects", len(objs))
	}
}

func TestParseEmptyInput(t *testing.T) {
	objs, err := Parse(strings.NewReader(""), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(objs) != 0 {
		t.Errorf("expected no objects, got %d", len(objs))
	}
}

func TestAssumedExpParsing(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{" 30099-3", 0.30099e-3},
		{"-11606-4", -0.11606e-4},
		{" 00000+0", 0},
		{" 16320-3", 0.16320e-3},
	}
	for _, c := range cases {
		got, err := parseAssumedExp(c.in)
		if err != nil {
			t.Errorf("parseAssumedExp(%q): %v", c.in, err)
			continue
		}
		if math.Abs(got-c.want) > math.Abs(c.want)*1e-12+1e-15 {
			t.Errorf("parseAssumedExp(%q) = %g, want %g", c.in, got, c.want)
		}
	}
}

func TestAgeDaysNeverNegative(t *testing.T) {
	objs, _ := Parse(strings.NewReader(issText()), testLogger)
	before := objs[0].Epoch().Add(-48 * time.Hour)
	if age := objs[0].AgeDays(before); age != 0 {
		t.Errorf("AgeDays before epoch = %g, want 0", age)
	}
	after := objs[0].Epoch().Add(24 * time.Hour)
	if age := objs[0].AgeDays(after); math.Abs(age-1) > 1e-9 {
		t.Errorf("AgeDays = %g, want 1", age)
	}
}
