package storage

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// ok is false when the lengths differ or either vector has zero norm.
func CosineSimilarity(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	return max(-1, min(1, sim)), true
}

// MeanCosine averages the cosine between query and each candidate vector,
// skipping candidates that cannot be compared. ok is false when none could.
func MeanCosine(query []float32, candidates [][]float32) (mean float64, ok bool) {
	var sum float64
	n := 0
	for _, c := range candidates {
		if sim, valid := CosineSimilarity(query, c); valid {
			sum += sim
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
