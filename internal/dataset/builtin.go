package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// Builtin dataset names
const (
	BuiltinBlobs    = "blobs"
	BuiltinFriedman = "friedman1"
)

// builtinSeed keeps generated datasets identical across runs
const builtinSeed = 0

// Builtin returns a deterministic synthetic dataset
func Builtin(name string) (*Dataset, error) {
	switch name {
	case BuiltinBlobs:
		return blobs(150, builtinSeed)
	case BuiltinFriedman:
		return friedman1(442, builtinSeed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
}

// blobs draws three Gaussian clusters in four dimensions; the class is the cluster index.
func blobs(n int, seed int64) (*Dataset, error) {
	centers := [][]float64{
		{5.0, 3.4, 1.5, 0.2},
		{5.9, 2.8, 4.3, 1.3},
		{6.6, 3.0, 5.5, 2.0},
	}
	spread := []float64{0.35, 0.3, 0.4, 0.2}

	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := range rows {
		class := i % len(centers)
		row := make([]float64, len(spread))
		for j := range row {
			row[j] = round(centers[class][j]+rng.NormFloat64()*spread[j], 1)
		}
		rows[i] = row
		y[i] = float64(class)
	}

	return New(rows, y, []string{"length_a", "width_a", "length_b", "width_b"})
}

// friedman1 generates the Friedman #1 regression problem: ten uniform inputs,
// five of which drive the target.
func friedman1(n int, seed int64) (*Dataset, error) {
	const features = 10

	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := range rows {
		x := make([]float64, features)
		for j := range x {
			x[j] = rng.Float64()
		}
		rows[i] = x
		y[i] = 10*math.Sin(math.Pi*x[0]*x[1]) + 20*(x[2]-0.5)*(x[2]-0.5) +
			10*x[3] + 5*x[4] + rng.NormFloat64()
	}

	names := make([]string, features)
	for j := range names {
		names[j] = fmt.Sprintf("x%d", j)
	}
	return New(rows, y, names)
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
