package pricing

// Allocate distributes operationalPerOrder across lines proportionally to each line's
// materials cost. When the materials total is not positive the amount is split evenly.
// The allocations always sum to operationalPerOrder for a non-empty input.
func Allocate(lineMaterials []float64, operationalPerOrder float64) []float64 {
	out := make([]float64, len(lineMaterials))
	if len(lineMaterials) == 0 {
		return out
	}

	total := 0.0
	for _, m := range lineMaterials {
		total += m
	}

	if total <= 0 {
		per := operationalPerOrder / float64(len(lineMaterials))
		for i := range out {
			out[i] = per
		}
		return out
	}

	assigned := 0.0
	last := len(lineMaterials) - 1
	for i, m := range lineMaterials[:last] {
		out[i] = operationalPerOrder * (m / total)
		assigned += out[i]
	}
	// The last line takes the remainder so rounding drift never leaks out of the sum.
	out[last] = operationalPerOrder - assigned
	return out
}
