package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kinds of serialized models
const (
	KindLinear   = "linear"
	KindLogistic = "logistic"
	KindTree     = "tree"
)

// modelFile is the on-disk envelope of a serialized model
type modelFile struct {
	Kind      string      `json:"kind"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
	Classes   []float64   `json:"classes"`
	Nodes     []TreeNode  `json:"nodes"`
}

// ParseJSONModel decodes a serialized linear, logistic or tree model
func ParseJSONModel(data []byte) (Model, error) {
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	switch f.Kind {
	case KindLinear:
		if len(f.Coef) != 1 || len(f.Intercept) != 1 {
			return nil, fmt.Errorf("linear model needs one coefficient row and one intercept")
		}
		return &LinearModel{Coef: f.Coef[0], Intercept: f.Intercept[0]}, nil
	case KindLogistic:
		return NewLogisticModel(f.Coef, f.Intercept, f.Classes)
	case KindTree:
		return NewTreeModel(f.Nodes)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedModel, f.Kind)
	}
}

// LinearModel predicts coef·x + intercept
type LinearModel struct {
	Coef      []float64
	Intercept float64
}

// Predict implements Model
func (m *LinearModel) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	if err := checkColumns(X, len(m.Coef)); err != nil {
		return nil, err
	}

	var out mat.VecDense
	out.MulVec(X, mat.NewVecDense(len(m.Coef), m.Coef))
	preds := make([]float64, out.Len())
	for i := range preds {
		preds[i] = out.AtVec(i) + m.Intercept
	}
	return preds, nil
}

// LogisticModel is a binary (one coefficient row) or multinomial classifier
type LogisticModel struct {
	coef      *mat.Dense
	intercept []float64
	classes   []float64
}

// NewLogisticModel validates shapes and builds a logistic classifier
func NewLogisticModel(coef [][]float64, intercept, classes []float64) (*LogisticModel, error) {
	if len(coef) == 0 || len(coef[0]) == 0 {
		return nil, fmt.Errorf("logistic model has no coefficients")
	}
	if len(intercept) != len(coef) {
		return nil, fmt.Errorf("logistic model has %d intercepts for %d coefficient rows", len(intercept), len(coef))
	}
	want := len(coef)
	if want == 1 {
		want = 2
	}
	if classes == nil {
		classes = make([]float64, want)
		for i := range classes {
			classes[i] = float64(i)
		}
	}
	if len(classes) != want {
		return nil, fmt.Errorf("logistic model needs %d classes, got %d", want, len(classes))
	}

	d := len(coef[0])
	data := make([]float64, 0, len(coef)*d)
	for _, row := range coef {
		if len(row) != d {
			return nil, fmt.Errorf("ragged coefficient matrix")
		}
		data = append(data, row...)
	}

	return &LogisticModel{
		coef:      mat.NewDense(len(coef), d, data),
		intercept: intercept,
		classes:   classes,
	}, nil
}

// PredictProba implements ProbaPredictor
func (m *LogisticModel) PredictProba(ctx context.Context, X mat.Matrix) (*mat.Dense, error) {
	k, d := m.coef.Dims()
	if err := checkColumns(X, d); err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	var scores mat.Dense
	scores.Mul(X, m.coef.T())

	proba := mat.NewDense(n, len(m.classes), nil)
	for i := 0; i < n; i++ {
		if k == 1 {
			p := 1 / (1 + math.Exp(-(scores.At(i, 0) + m.intercept[0])))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		row := scores.RawRowView(i)
		floats.Add(row, m.intercept)
		maxScore := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - maxScore)
		}
		floats.Scale(1/floats.Sum(row), row)
		proba.SetRow(i, row)
	}
	return proba, nil
}

// Predict implements Model
func (m *LogisticModel) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	proba, err := m.PredictProba(ctx, X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	preds := make([]float64, n)
	for i := 0; i < n; i++ {
		preds[i] = m.classes[floats.MaxIdx(proba.RawRowView(i))]
	}
	return preds, nil
}

// TreeNode is one node of a serialized decision tree. Leaves have Left == Right == -1.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// TreeModel predicts by walking a serialized decision tree from node 0
type TreeModel struct {
	nodes       []TreeNode
	numFeatures int
}

// NewTreeModel validates node references
func NewTreeModel(nodes []TreeNode) (*TreeModel, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("tree model has no nodes")
	}
	numFeatures := 0
	for i, n := range nodes {
		if n.Left == -1 && n.Right == -1 {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(nodes) || n.Right >= len(nodes) {
			return nil, fmt.Errorf("tree node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
		if n.Feature < 0 {
			return nil, fmt.Errorf("tree node %d has invalid feature %d", i, n.Feature)
		}
		numFeatures = max(numFeatures, n.Feature+1)
	}
	return &TreeModel{nodes: nodes, numFeatures: numFeatures}, nil
}

// Predict implements Model
func (m *TreeModel) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	n, c := X.Dims()
	if c < m.numFeatures {
		return nil, fmt.Errorf("%w: got %d features, tree uses %d", ErrDimensionMismatch, c, m.numFeatures)
	}

	preds := make([]float64, n)
	for i := 0; i < n; i++ {
		node := m.nodes[0]
		for node.Left != -1 {
			if X.At(i, node.Feature) <= node.Threshold {
				node = m.nodes[node.Left]
			} else {
				node = m.nodes[node.Right]
			}
		}
		preds[i] = node.Value
	}
	return preds, nil
}
