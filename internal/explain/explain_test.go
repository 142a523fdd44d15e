package explain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/todmy/tarmac/internal/surrogate"
	"github.com/todmy/tarmac/pkg/models"
)

// nestedTree splits feature 0 at 3.0 and then again at 1.5 on the left.
func nestedTree() *surrogate.Tree {
	return &surrogate.Tree{
		Feature:       []int{0, 0, -2, -2, -2},
		Threshold:     []float64{3.0, 1.5, 0, 0, 0},
		ChildrenLeft:  []int{1, 2, -1, -1, -1},
		ChildrenRight: []int{4, 3, -1, -1, -1},
		NodeSamples:   []int{12, 8, 4, 4, 4},
		Value:         [][2]float64{{7, 5}, {5, 3}, {1, 3}, {4, 0}, {2, 2}},
		Impurity:      make([]float64, 5),
		NumFeatures:   1,
	}
}

func TestSimplify_NestedLessEqual(t *testing.T) {
	path := []PathCondition{
		{Feature: 0, Op: OpLessEqual, Threshold: 3.0},
		{Feature: 0, Op: OpLessEqual, Threshold: 1.5},
	}
	assert.Equal(t, []PathCondition{{Feature: 0, Op: OpLessEqual, Threshold: 1.5}}, Simplify(path))
}

func TestSimplify_KeepsLargestGreater(t *testing.T) {
	path := []PathCondition{
		{Feature: 2, Op: OpGreater, Threshold: 1},
		{Feature: 0, Op: OpLessEqual, Threshold: 9},
		{Feature: 2, Op: OpGreater, Threshold: 4},
		{Feature: 2, Op: OpLessEqual, Threshold: 8},
		{Feature: 0, Op: OpGreater, Threshold: 2},
	}
	assert.Equal(t, []PathCondition{
		{Feature: 2, Op: OpGreater, Threshold: 4},
		{Feature: 0, Op: OpLessEqual, Threshold: 9},
		{Feature: 2, Op: OpLessEqual, Threshold: 8},
		{Feature: 0, Op: OpGreater, Threshold: 2},
	}, Simplify(path))
}

func TestSimplify_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 100; trial++ {
		path := make([]PathCondition, rng.Intn(10))
		for i := range path {
			op := OpLessEqual
			if rng.Intn(2) == 1 {
				op = OpGreater
			}
			path[i] = PathCondition{Feature: rng.Intn(3), Op: op, Threshold: float64(rng.Intn(20))}
		}

		once := Simplify(path)
		assert.Equal(t, once, Simplify(once))
	}
}

func TestSimplify_Empty(t *testing.T) {
	assert.Empty(t, Simplify(nil))
}

func TestExtract_NestedTree(t *testing.T) {
	rules, err := Extract(nestedTree())
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, []PathCondition{{Feature: 0, Op: OpLessEqual, Threshold: 1.5}}, rules[0].Conditions)
	assert.Equal(t, 4, rules[0].SamplesAffected)
	assert.InDelta(t, 0.75, rules[0].DisagreementFraction, 1e-12)

	assert.Equal(t, []PathCondition{{Feature: 0, Op: OpGreater, Threshold: 3.0}}, rules[1].Conditions)
	assert.InDelta(t, 0.5, rules[1].DisagreementFraction, 1e-12)
}

func TestExtract_StableOnTies(t *testing.T) {
	tree := &surrogate.Tree{
		Feature:       []int{1, -2, -2},
		Threshold:     []float64{0.5, 0, 0},
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		NodeSamples:   []int{8, 4, 4},
		Value:         [][2]float64{{4, 4}, {2, 2}, {2, 2}},
		Impurity:      make([]float64, 3),
		NumFeatures:   2,
	}

	rules, err := Extract(tree)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, OpLessEqual, rules[0].Conditions[0].Op)
	assert.Equal(t, OpGreater, rules[1].Conditions[0].Op)
}

func TestExtract_EmptyTree(t *testing.T) {
	_, err := Extract(&surrogate.Tree{})
	assert.ErrorIs(t, err, ErrEmptyTree)

	_, err = Extract(nil)
	assert.ErrorIs(t, err, ErrEmptyTree)
}

func TestExtract_FittedTreeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	n, d := 200, 3
	X := mat.NewDense(n, d, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			X.Set(i, j, rng.Float64()*10)
		}
		if X.At(i, 0) > 6 && X.At(i, 2) < 4 || rng.Float64() < 0.05 {
			labels[i] = 1
		}
	}

	tree, err := surrogate.Fit(X, labels, surrogate.Params{MinSamplesLeaf: 5})
	require.NoError(t, err)

	rules, err := Extract(tree)
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	for i, r := range rules {
		assert.Greater(t, r.DisagreementFraction, 0.0)
		assert.LessOrEqual(t, r.DisagreementFraction, 1.0)
		assert.GreaterOrEqual(t, r.SamplesAffected, 1)
		assert.Equal(t, r.Conditions, Simplify(r.Conditions))
		if i > 0 {
			assert.GreaterOrEqual(t, rules[i-1].Score(), r.Score())
		}
	}
}

func TestFormatter_String(t *testing.T) {
	rules, err := Extract(nestedTree())
	require.NoError(t, err)

	f := NewFormatter(nil, 12)
	assert.Equal(t, "IF feature_0 <= 1.500 THEN models differ (affects 4 samples, 75.0% disagree)", f.String(rules[0]))

	named := NewFormatter([]string{"age"}, 12)
	assert.Equal(t, "IF age > 3.000 THEN models differ (affects 4 samples, 50.0% disagree)", named.String(rules[1]))
}

func TestFormatter_EmptyPath(t *testing.T) {
	f := NewFormatter(nil, 3)
	rule := Rule{SamplesAffected: 3, DisagreementFraction: 1.0 / 3}
	assert.Equal(t, "IF TRUE THEN models differ (affects 3 samples, 33.3% disagree)", f.String(rule))
}

func TestFormatter_Record(t *testing.T) {
	f := NewFormatter([]string{"income", "age"}, 12)
	rule := Rule{
		Conditions: []PathCondition{
			{Feature: 1, Op: OpGreater, Threshold: 42.12345},
			{Feature: 0, Op: OpLessEqual, Threshold: 1000.0004},
		},
		SamplesAffected:      4,
		DisagreementFraction: 2.0 / 3,
	}

	assert.Equal(t, models.RuleRecord{
		Conditions: []models.Condition{
			{Feature: "age", Operator: ">", Threshold: 42.123},
			{Feature: "income", Operator: "<=", Threshold: 1000.0},
		},
		SamplesAffected:        4,
		DisagreementPercentage: 66.7,
		Prediction:             "models differ",
		Support:                0.333,
	}, f.Record(rule))
}

func TestFormatter_FeatureNameFallback(t *testing.T) {
	f := NewFormatter([]string{"a", ""}, 1)
	assert.Equal(t, "a", f.FeatureName(0))
	assert.Equal(t, "feature_1", f.FeatureName(1))
	assert.Equal(t, "feature_7", f.FeatureName(7))
}

func TestExplainer_AllAgreeInjectsSyntheticRow(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
		5, 50,
	})

	e := NewExplainer(DefaultConfig())
	require.NoError(t, e.Fit(X, []int{0, 0, 0, 0, 0}, nil))
	assert.True(t, e.Injected())
	assert.Equal(t, 6, e.TotalSamples())
	assert.GreaterOrEqual(t, e.Tree().LeafCount(), 2)

	rules, err := e.Explain()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 2, rules[0].SamplesAffected)
	assert.InDelta(t, 0.5, rules[0].DisagreementFraction, 1e-12)
}

func TestExplainer_MixedLabelsNoInjection(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	e := NewExplainer(Config{MinLeafFraction: 0.25, Seed: 1})
	require.NoError(t, e.Fit(X, []int{0, 0, 1, 1}, []string{"x"}))
	assert.False(t, e.Injected())
	assert.Equal(t, 4, e.TotalSamples())

	rules, err := e.Explain()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"IF x > 2.500 THEN models differ (affects 2 samples, 100.0% disagree)"}, e.Strings(rules))
	assert.Equal(t, 0.5, e.Records(rules)[0].Support)
}

func TestExplainer_NotFitted(t *testing.T) {
	_, err := NewExplainer(DefaultConfig()).Explain()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestExplainer_FeatureNameCount(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	err := NewExplainer(DefaultConfig()).Fit(X, []int{0, 1}, []string{"only-one"})
	assert.Error(t, err)
}
