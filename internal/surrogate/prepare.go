package surrogate

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MinLeafSamples converts a fraction of the dataset into an absolute leaf size
func MinLeafSamples(fraction float64, n int) int {
	m := int(math.Floor(fraction * float64(n)))
	if m < 1 {
		return 1
	}
	return m
}

// EnsureTwoClasses appends a copy of the first row with the opposite label when
// every label is the same. The synthetic row is counted in the fitted tree's
// node statistics. Inputs with two classes are returned untouched.
func EnsureTwoClasses(X mat.Matrix, y []int) (mat.Matrix, []int, bool) {
	if len(y) == 0 {
		return X, y, false
	}
	first := y[0]
	for _, label := range y[1:] {
		if label != first {
			return X, y, false
		}
	}

	r, c := X.Dims()
	out := mat.NewDense(r+1, c, nil)
	out.Copy(X)
	out.SetRow(r, mat.Row(nil, 0, X))

	labels := make([]int, 0, len(y)+1)
	labels = append(labels, y...)
	labels = append(labels, 1-first)

	return out, labels, true
}
