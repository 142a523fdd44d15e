package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported data format")
	ErrUnknownDataset    = errors.New("unsupported builtin dataset")
	ErrEmptyTable        = errors.New("table has no rows")
	ErrColumnMismatch    = errors.New("tables have different column counts")
	ErrTargetMismatch    = errors.New("target length does not match rows")
)

// Dataset is a feature matrix with an optional target
type Dataset struct {
	X            *mat.Dense
	Y            []float64 // nil when no target is available
	FeatureNames []string  // nil when columns are unnamed
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	if d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

// NumFeatures returns the number of columns
func (d *Dataset) NumFeatures() int {
	if d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// New builds a dataset from row slices
func New(rows [][]float64, y []float64, names []string) (*Dataset, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyTable
	}
	if y != nil && len(y) != len(rows) {
		return nil, fmt.Errorf("%w: %d targets for %d rows", ErrTargetMismatch, len(y), len(rows))
	}
	if names != nil && len(names) != len(rows[0]) {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrColumnMismatch, len(names), len(rows[0]))
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrColumnMismatch, i, len(r), cols)
		}
		data = append(data, r...)
	}

	return &Dataset{
		X:            mat.NewDense(len(rows), cols, data),
		Y:            y,
		FeatureNames: names,
	}, nil
}

// Rows returns the feature matrix as row slices
func (d *Dataset) Rows() [][]float64 {
	n := d.Len()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = mat.Row(nil, i, d.X)
	}
	return rows
}

// Subset returns the rows at the given indices, in that order
func (d *Dataset) Subset(indices []int) *Dataset {
	out := mat.NewDense(len(indices), d.NumFeatures(), nil)
	var y []float64
	if d.Y != nil {
		y = make([]float64, len(indices))
	}
	for i, idx := range indices {
		out.SetRow(i, d.X.RawRowView(idx))
		if y != nil {
			y[i] = d.Y[idx]
		}
	}
	return &Dataset{X: out, Y: y, FeatureNames: d.FeatureNames}
}

// TrainTestSplit shuffles rows with a seeded permutation and returns
// (train, test), with ceil(testSize*n) rows in the test part.
func TrainTestSplit(d *Dataset, testSize float64, seed int64) (*Dataset, *Dataset, error) {
	n := d.Len()
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	test := d.Subset(perm[:nTest])
	train := d.Subset(perm[nTest:])
	return train, test, nil
}
