package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Cosine returns the cosine similarity of two importance vectors.
// Vectors of different length, empty vectors and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	x := widen(a)
	y := widen(b)

	normX := floats.Norm(x, 2)
	normY := floats.Norm(y, 2)
	if normX == 0 || normY == 0 {
		return 0
	}

	sim := floats.Dot(x, y) / (normX * normY)
	// clamp rounding noise
	return math.Max(-1, math.Min(1, sim))
}

// Distance is 1 - Cosine, in [0, 2]
func Distance(a, b []float32) float64 {
	return 1 - Cosine(a, b)
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
