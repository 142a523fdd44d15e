package delta

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrInvalidTask   = errors.New("invalid task")
	ErrShapeMismatch = errors.New("prediction vectors differ in length")
)

// Task selects the disagreement criterion
type Task string

const (
	TaskAuto           Task = "auto"
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// DefaultEpsilon is the regression threshold used when none is given
const DefaultEpsilon = 0.05

// Options holds labeler parameters
type Options struct {
	// Epsilon below 1 is a fraction of the batch's largest absolute difference;
	// 1 and above is an absolute threshold.
	Epsilon float64
}

// DefaultOptions returns default labeler options
func DefaultOptions() Options {
	return Options{Epsilon: DefaultEpsilon}
}

// Labeler turns two prediction vectors into a binary disagreement vector
type Labeler interface {
	Build(predsA, predsB []float64, opts Options) ([]int, error)
}

// ParseTask validates a task identifier
func ParseTask(s string) (Task, error) {
	switch t := Task(s); t {
	case TaskAuto, TaskClassification, TaskRegression:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTask, s)
	}
}

// NewLabeler returns the labeler for a concrete task
func NewLabeler(task Task) (Labeler, error) {
	switch task {
	case TaskClassification:
		return ClassificationLabeler{}, nil
	case TaskRegression:
		return RegressionLabeler{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTask, task)
	}
}

// Build labels predictions with the labeler for task
func Build(task Task, predsA, predsB []float64, opts Options) ([]int, error) {
	l, err := NewLabeler(task)
	if err != nil {
		return nil, err
	}
	return l.Build(predsA, predsB, opts)
}

// ClassificationLabeler flags samples whose discrete labels differ
type ClassificationLabeler struct{}

// Build implements Labeler
func (ClassificationLabeler) Build(predsA, predsB []float64, _ Options) ([]int, error) {
	if len(predsA) != len(predsB) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, len(predsA), len(predsB))
	}

	labels := make([]int, len(predsA))
	for i := range predsA {
		if predsA[i] != predsB[i] {
			labels[i] = 1
		}
	}
	return labels, nil
}

// RegressionLabeler flags samples whose predictions are further apart than epsilon
type RegressionLabeler struct{}

// Build implements Labeler
func (RegressionLabeler) Build(predsA, predsB []float64, opts Options) ([]int, error) {
	if len(predsA) != len(predsB) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, len(predsA), len(predsB))
	}

	diff := AbsDiff(predsA, predsB)
	eps := EffectiveEpsilon(diff, opts.Epsilon)

	labels := make([]int, len(diff))
	for i, d := range diff {
		if d > eps {
			labels[i] = 1
		}
	}
	return labels, nil
}

// AbsDiff returns |a[i]-b[i]| element-wise; callers guarantee equal lengths
func AbsDiff(a, b []float64) []float64 {
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	for i, d := range diff {
		diff[i] = math.Abs(d)
	}
	return diff
}

// EffectiveEpsilon rescales a fractional epsilon by the largest difference in the batch.
// The result depends on the batch, not on the target's unit.
func EffectiveEpsilon(diff []float64, epsilon float64) float64 {
	if epsilon >= 1 || len(diff) == 0 {
		return epsilon
	}
	maxDiff := floats.Max(diff)
	if maxDiff == 0 || math.IsNaN(maxDiff) {
		return epsilon
	}
	return epsilon * maxDiff
}

// DetectTask guesses the task from prediction values: any non-integral value means regression
func DetectTask(predsA, predsB []float64) Task {
	for _, preds := range [][]float64{predsA, predsB} {
		for _, p := range preds {
			if math.IsNaN(p) || math.IsInf(p, 0) || p != math.Trunc(p) {
				return TaskRegression
			}
		}
	}
	return TaskClassification
}

// Summary counts disagreeing samples
func Summary(labels []int) (disagree int, rate float64) {
	for _, l := range labels {
		if l == 1 {
			disagree++
		}
	}
	if len(labels) > 0 {
		rate = float64(disagree) / float64(len(labels))
	}
	return disagree, rate
}
