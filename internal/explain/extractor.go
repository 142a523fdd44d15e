package explain

import (
	"errors"
	"sort"

	"github.com/todmy/tarmac/internal/surrogate"
)

// disagreeClass is the histogram index of the "models differ" label
const disagreeClass = 1

var ErrEmptyTree = errors.New("surrogate tree has no leaves")

// Extract walks the tree depth-first and returns one rule per leaf with any
// disagreement, ordered by fraction * samples descending. Equal scores keep
// leaf order.
func Extract(t *surrogate.Tree) ([]Rule, error) {
	if t == nil || t.NodeCount() == 0 || t.LeafCount() == 0 {
		return nil, ErrEmptyTree
	}

	var rules []Rule
	var walk func(node int, path []PathCondition)
	walk = func(node int, path []PathCondition) {
		if t.IsLeaf(node) {
			counts := t.Value[node]
			total := counts[0] + counts[1]
			if total == 0 {
				return
			}
			fraction := counts[disagreeClass] / total
			if fraction <= 0 {
				return
			}
			rules = append(rules, Rule{
				Conditions:           Simplify(path),
				SamplesAffected:      t.NodeSamples[node],
				DisagreementFraction: fraction,
			})
			return
		}

		feature, threshold := t.Feature[node], t.Threshold[node]
		walk(t.ChildrenLeft[node], extend(path, PathCondition{feature, OpLessEqual, threshold}))
		walk(t.ChildrenRight[node], extend(path, PathCondition{feature, OpGreater, threshold}))
	}
	walk(0, nil)

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Score() > rules[j].Score()
	})

	return rules, nil
}

// extend copies path so sibling branches never share a backing array
func extend(path []PathCondition, cond PathCondition) []PathCondition {
	next := make([]PathCondition, len(path), len(path)+1)
	copy(next, path)
	return append(next, cond)
}
