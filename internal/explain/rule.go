package explain

// Operator is the comparison on one tree edge
type Operator string

const (
	OpLessEqual Operator = "<="
	OpGreater   Operator = ">"
)

// PathCondition is one edge traversed from the root towards a leaf
type PathCondition struct {
	Feature   int
	Op        Operator
	Threshold float64
}

// Rule describes one leaf where the models disagree
type Rule struct {
	Conditions           []PathCondition
	SamplesAffected      int
	DisagreementFraction float64
}

// Score is the explanatory mass used for ordering rules
func (r Rule) Score() float64 {
	return r.DisagreementFraction * float64(r.SamplesAffected)
}

// tighter reports whether threshold t is a stricter bound than current for op
func tighter(op Operator, t, current float64) bool {
	if op == OpGreater {
		return t > current
	}
	return t < current
}

// Simplify keeps only the tightest bound per feature and operator.
// Conditions keep the position of their first appearance.
func Simplify(path []PathCondition) []PathCondition {
	type key struct {
		feature int
		op      Operator
	}

	simplified := make([]PathCondition, 0, len(path))
	seen := make(map[key]int, len(path))

	for _, cond := range path {
		k := key{cond.Feature, cond.Op}
		if idx, ok := seen[k]; ok {
			if tighter(cond.Op, cond.Threshold, simplified[idx].Threshold) {
				simplified[idx].Threshold = cond.Threshold
			}
			continue
		}
		seen[k] = len(simplified)
		simplified = append(simplified, cond)
	}

	return simplified
}
