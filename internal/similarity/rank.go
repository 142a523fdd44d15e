package similarity

import (
	"sort"
)

// DefaultLimit is the number of neighbours returned when no limit is given
const DefaultLimit = 10

// Candidate is a stored vector identified by its key
type Candidate struct {
	Key    string
	Vector []float32
}

// Match is a candidate scored against a target
type Match struct {
	Key        string
	Similarity float64
}

// Rank scores candidates against target and returns the best matches first.
// Candidates whose dimension differs from the target are skipped. Equal scores
// keep the candidates' input order.
func Rank(target []float32, candidates []Candidate, limit int) []Match {
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(target) {
			continue
		}
		matches = append(matches, Match{Key: c.Key, Similarity: Cosine(target, c.Vector)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
