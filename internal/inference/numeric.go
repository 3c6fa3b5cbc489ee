package inference

import "math"

// softmax converts logits into a probability distribution, subtracting the
// max logit first for numerical stability (spec.md §4.6). Returned values
// always sum to 1±ε and lie in [0,1], even for all-equal or all-negative
// input.
func softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}

	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	var sum float64
	exps := make([]float64, len(logits))
	for i, v := range logits {
		e := math.Exp(float64(v - max))
		exps[i] = e
		sum += e
	}
	if sum == 0 {
		// Degenerate only if every exp underflowed to 0, which cannot happen
		// since the max-shifted term is always exp(0)=1; guarded anyway.
		sum = 1
	}
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

// sigmoid maps a single logit to (0,1), clamped defensively so floating-point
// extremes never escape the unit interval (spec.md §3 ScanResult/Result
// invariant).
func sigmoid(x float32) float32 {
	v := float32(1 / (1 + math.Exp(float64(-x))))
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// argmax returns the index of the largest value, 0 for an empty slice.
func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
