package collision

import "fmt"

// FormatProbability renders a collision probability in the unit that keeps
// two significant decimals readable: percent, per-mille, parts-per-million,
// then scientific notation.
func FormatProbability(pc float64) string {
	switch {
	case pc <= 0:
		return "0"
	case pc >= 1:
		return "100%"
	case pc >= 1e-3:
		return fmt.Sprintf("%.2f%%", pc*100)
	case pc >= 1e-5:
		return fmt.Sprintf("%.2f‰", pc*1000)
	case pc >= 1e-9:
		return fmt.Sprintf("%.2f ppm", pc*1e6)
	default:
		return fmt.Sprintf("%.2e", pc)
	}
}
