package elements

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Earth constants shared by the derived-parameter calculations.
const (
	EarthRadiusKm = 6371.0
	MuEarthKm3S2  = 398600.4418
)

// lineLen is the fixed width of an element-set line.
const lineLen = 69

// Parse reads 3-line element-set records (name line followed by two fixed-width
// element lines) from r. Malformed records are skipped with a warning log and
// never abort the batch. Duplicate catalog ids: last record wins.
func Parse(r io.Reader, logger *slog.Logger) ([]Object, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element data: %w", err)
	}

	var objects []Object
	index := make(map[int]int) // catalog id -> position in objects

	for i := 0; i+2 < len(lines); {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Slide by one and try to resynchronize on the next triple.
			logger.Warn("skipping malformed element record", "line_index", i, "name", name)
			i++
			continue
		}

		obj, err := parseRecord(name, line1, line2)
		if err != nil {
			logger.Warn("skipping invalid element record", "name", strings.TrimSpace(name), "error", err)
			i += 3
			continue
		}

		if pos, ok := index[obj.CatalogID]; ok {
			objects[pos] = obj
		} else {
			index[obj.CatalogID] = len(objects)
			objects = append(objects, obj)
		}
		i += 3
	}

	return objects, nil
}

// parseRecord extracts all element fields from one name + two-line record.
func parseRecord(name, line1, line2 string) (Object, error) {
	if len(line1) != lineLen {
		return Object{}, fmt.Errorf("line1 length %d, expected %d", len(line1), lineLen)
	}
	if len(line2) != lineLen {
		return Object{}, fmt.Errorf("line2 length %d, expected %d", len(line2), lineLen)
	}

	catalogID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return Object{}, fmt.Errorf("invalid catalog id %q: %w", line1[2:7], err)
	}

	epochYear, err := strconv.Atoi(strings.TrimSpace(line1[18:20]))
	if err != nil {
		return Object{}, fmt.Errorf("invalid epoch year: %w", err)
	}
	epochDay, err := parseField(line1[20:32])
	if err != nil {
		return Object{}, fmt.Errorf("invalid epoch day: %w", err)
	}

	ndot, err := parseField(line1[33:43])
	if err != nil {
		return Object{}, fmt.Errorf("invalid mean motion derivative: %w", err)
	}

	bstar, err := parseAssumedExp(line1[53:61])
	if err != nil {
		return Object{}, fmt.Errorf("invalid bstar: %w", err)
	}

	incl, err := parseField(line2[8:16])
	if err != nil {
		return Object{}, fmt.Errorf("invalid inclination: %w", err)
	}
	raan, err := parseField(line2[17:25])
	if err != nil {
		return Object{}, fmt.Errorf("invalid raan: %w", err)
	}
	ecc, err := parseAssumedDecimal(line2[26:33])
	if err != nil {
		return Object{}, fmt.Errorf("invalid eccentricity: %w", err)
	}
	if ecc < 0 || ecc >= 1 {
		return Object{}, fmt.Errorf("eccentricity %g out of [0,1)", ecc)
	}
	argp, err := parseField(line2[34:42])
	if err != nil {
		return Object{}, fmt.Errorf("invalid argument of perigee: %w", err)
	}
	ma, err := parseField(line2[43:51])
	if err != nil {
		return Object{}, fmt.Errorf("invalid mean anomaly: %w", err)
	}
	mm, err := parseField(line2[52:63])
	if err != nil {
		return Object{}, fmt.Errorf("invalid mean motion: %w", err)
	}
	if mm <= 0 {
		return Object{}, fmt.Errorf("non-positive mean motion %g", mm)
	}

	obj := Object{
		CatalogID:      catalogID,
		Name:           strings.TrimSpace(name),
		IntlDesignat:   strings.TrimSpace(line1[9:17]),
		Line1:          line1,
		Line2:          line2,
		EpochYear:      epochYear,
		EpochDay:       epochDay,
		MeanMotionDot:  ndot,
		BStar:          bstar,
		InclinationDeg: incl,
		Eccentricity:   ecc,
		RAANDeg:        raan,
		ArgPerigeeDeg:  argp,
		MeanAnomalyDeg: ma,
		MeanMotion:     mm,
	}
	obj.OrbitalPeriodMin, obj.OrbitalAltitudeKm = DerivedOrbit(mm)

	if math.IsNaN(obj.OrbitalAltitudeKm) || math.IsInf(obj.OrbitalAltitudeKm, 0) {
		return Object{}, fmt.Errorf("non-finite derived altitude for mean motion %g", mm)
	}
	return obj, nil
}

// DerivedOrbit computes the orbital period (minutes) and altitude (km) from
// mean motion in rev/day. The semi-major-axis expression reproduces the
// upstream source exactly, constant 137.93 included; see DESIGN.md.
func DerivedOrbit(meanMotion float64) (periodMin, altitudeKm float64) {
	periodMin = 1440.0 / meanMotion
	sma := math.Cbrt(periodMin/(2*math.Pi)*137.93) * EarthRadiusKm
	return periodMin, sma - EarthRadiusKm
}

// parseField parses a plain fixed-width float field, tolerating leading spaces
// and a leading decimal point (" .00016717").
func parseField(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	} else if strings.HasPrefix(s, "-.") {
		s = "-0" + s[1:]
	} else if strings.HasPrefix(s, "+.") {
		s = "0" + s[1:]
	}
	return strconv.ParseFloat(s, 64)
}

// parseAssumedDecimal parses a field with an assumed leading "0."
// ("0003457" -> 0.0003457).
func parseAssumedDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	return strconv.ParseFloat("0."+s, 64)
}

// parseAssumedExp parses the element-set exponential notation used for BSTAR
// and the second derivative: " 30099-3" means +0.30099e-3.
func parseAssumedExp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "00000+0" || s == "00000-0" {
		return 0, nil
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}

	// Exponent is the trailing sign+digit pair.
	if len(s) < 3 {
		return 0, fmt.Errorf("field %q too short", s)
	}
	expPos := len(s) - 2
	mantStr := s[:expPos]
	expStr := s[expPos:]

	mant, err := strconv.ParseFloat("0."+strings.TrimSpace(mantStr), 64)
	if err != nil {
		return 0, fmt.Errorf("mantissa %q: %w", mantStr, err)
	}
	if expStr[0] == '+' {
		expStr = expStr[1:]
	}
	exp, err := strconv.Atoi(expStr)
	if err != nil {
		return 0, fmt.Errorf("exponent %q: %w", expStr, err)
	}

	return sign * mant * math.Pow(10, float64(exp)), nil
}
