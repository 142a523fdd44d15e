package surrogate

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Leaf marks a missing child in ChildrenLeft/ChildrenRight
const Leaf = -1

// undefinedFeature is stored as the split feature of leaves
const undefinedFeature = -2

var (
	ErrNoSamples     = errors.New("no samples to fit")
	ErrLabelMismatch = errors.New("label count does not match sample count")
	ErrInvalidLabel  = errors.New("labels must be 0 or 1")
)

// Params controls tree induction
type Params struct {
	MinSamplesLeaf int   // Minimum samples in each leaf
	MaxDepth       int   // 0 means unlimited
	Seed           int64 // Fixes feature visiting order and therefore tie-breaking
}

// Tree is a fitted binary classification tree stored as parallel node arrays.
// Node 0 is the root; nodes are numbered in pre-order.
type Tree struct {
	Feature       []int
	Threshold     []float64
	ChildrenLeft  []int
	ChildrenRight []int
	NodeSamples   []int
	Value         [][2]float64 // Class histogram: [agree, disagree]
	Impurity      []float64
	NumFeatures   int
}

// NodeCount returns the number of nodes
func (t *Tree) NodeCount() int {
	return len(t.ChildrenLeft)
}

// IsLeaf reports whether node has no children
func (t *Tree) IsLeaf(node int) bool {
	return t.ChildrenLeft[node] == Leaf
}

// LeafCount returns the number of leaves
func (t *Tree) LeafCount() int {
	count := 0
	for i := range t.ChildrenLeft {
		if t.IsLeaf(i) {
			count++
		}
	}
	return count
}

// Depth returns the length of the longest root-to-leaf path
func (t *Tree) Depth() int {
	if t.NodeCount() == 0 {
		return 0
	}
	var walk func(node int) int
	walk = func(node int) int {
		if t.IsLeaf(node) {
			return 0
		}
		return 1 + max(walk(t.ChildrenLeft[node]), walk(t.ChildrenRight[node]))
	}
	return walk(0)
}

// Apply returns the index of the leaf a row lands in
func (t *Tree) Apply(x []float64) int {
	node := 0
	for !t.IsLeaf(node) {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

// FeatureImportances returns the normalized weighted Gini decrease per feature
func (t *Tree) FeatureImportances() []float64 {
	importances := make([]float64, t.NumFeatures)
	if t.NodeCount() == 0 {
		return importances
	}

	total := float64(t.NodeSamples[0])
	for node := range t.ChildrenLeft {
		if t.IsLeaf(node) {
			continue
		}
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		decrease := float64(t.NodeSamples[node])*t.Impurity[node] -
			float64(t.NodeSamples[left])*t.Impurity[left] -
			float64(t.NodeSamples[right])*t.Impurity[right]
		importances[t.Feature[node]] += decrease / total
	}

	sum := floats.Sum(importances)
	if sum > 0 {
		floats.Scale(1/sum, importances)
	}
	return importances
}

func (t *Tree) addNode(samples int, counts [2]float64) int {
	t.Feature = append(t.Feature, undefinedFeature)
	t.Threshold = append(t.Threshold, 0)
	t.ChildrenLeft = append(t.ChildrenLeft, Leaf)
	t.ChildrenRight = append(t.ChildrenRight, Leaf)
	t.NodeSamples = append(t.NodeSamples, samples)
	t.Value = append(t.Value, counts)
	t.Impurity = append(t.Impurity, gini(counts))
	return len(t.ChildrenLeft) - 1
}

// Fit grows a CART tree on binary labels using Gini impurity
func Fit(X mat.Matrix, y []int, params Params) (*Tree, error) {
	n, d := X.Dims()
	if n == 0 {
		return nil, ErrNoSamples
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d labels for %d samples", ErrLabelMismatch, len(y), n)
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("%w: sample %d has label %d", ErrInvalidLabel, i, label)
		}
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}

	// Column-major copy so split search scans contiguous values
	cols := make([][]float64, d)
	for j := 0; j < d; j++ {
		cols[j] = mat.Col(nil, j, X)
	}

	b := &builder{
		cols:   cols,
		y:      y,
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
		tree:   &Tree{NumFeatures: d},
	}

	samples := make([]int, n)
	for i := range samples {
		samples[i] = i
	}
	b.build(samples, 0)

	return b.tree, nil
}

type builder struct {
	cols   [][]float64
	y      []int
	params Params
	rng    *rand.Rand
	tree   *Tree
}

type split struct {
	feature     int
	threshold   float64
	improvement float64
}

func (b *builder) build(samples []int, depth int) int {
	var counts [2]float64
	for _, s := range samples {
		counts[b.y[s]]++
	}

	node := b.tree.addNode(len(samples), counts)
	if b.isTerminal(len(samples), counts, depth) {
		return node
	}

	best, ok := b.bestSplit(samples, counts)
	if !ok {
		return node
	}

	col := b.cols[best.feature]
	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if col[s] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	b.tree.Feature[node] = best.feature
	b.tree.Threshold[node] = best.threshold

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.ChildrenLeft[node] = l
	b.tree.ChildrenRight[node] = r

	return node
}

func (b *builder) isTerminal(n int, counts [2]float64, depth int) bool {
	if counts[0] == 0 || counts[1] == 0 {
		return true
	}
	if n < 2*b.params.MinSamplesLeaf {
		return true
	}
	return b.params.MaxDepth > 0 && depth >= b.params.MaxDepth
}

// bestSplit scans every feature in seeded random order and keeps the first
// split with the strictly largest impurity decrease.
func (b *builder) bestSplit(samples []int, counts [2]float64) (split, bool) {
	n := len(samples)
	minLeaf := b.params.MinSamplesLeaf
	parent := gini(counts)

	var best split
	found := false

	sorted := make([]int, n)
	for _, f := range b.rng.Perm(len(b.cols)) {
		col := b.cols[f]
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return col[sorted[i]] < col[sorted[j]]
		})

		if col[sorted[0]] == col[sorted[n-1]] {
			continue // Constant feature in this node
		}

		var left [2]float64
		for i := 1; i < n; i++ {
			left[b.y[sorted[i-1]]]++

			if i < minLeaf || n-i < minLeaf {
				continue
			}
			lo, hi := col[sorted[i-1]], col[sorted[i]]
			if lo == hi {
				continue
			}

			right := [2]float64{counts[0] - left[0], counts[1] - left[1]}
			child := (float64(i)*gini(left) + float64(n-i)*gini(right)) / float64(n)
			improvement := parent - child

			if !found || improvement > best.improvement {
				threshold := lo + (hi-lo)/2
				if threshold == hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, improvement: improvement}
				found = true
			}
		}
	}

	return best, found
}

// gini computes the Gini impurity of a class histogram
func gini(counts [2]float64) float64 {
	total := floats.Sum(counts[:])
	if total == 0 {
		return 0
	}
	p0 := counts[0] / total
	p1 := counts[1] / total
	return 1 - p0*p0 - p1*p1
}
