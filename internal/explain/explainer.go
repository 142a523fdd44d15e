package explain

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/todmy/tarmac/internal/surrogate"
	"github.com/todmy/tarmac/pkg/models"
)

var ErrNotFitted = errors.New("explainer has not been fitted")

// Config holds explainer configuration
type Config struct {
	MinLeafFraction float64 // Minimum leaf size as a fraction of the dataset
	Seed            int64
	MaxDepth        int // 0 means unlimited
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MinLeafFraction: 0.01,
		Seed:            0,
		MaxDepth:        0,
	}
}

// Explainer fits a surrogate tree on disagreement labels and extracts rules from it
type Explainer struct {
	config    Config
	tree      *surrogate.Tree
	formatter *Formatter
	injected  bool
}

// NewExplainer creates a new explainer
func NewExplainer(config Config) *Explainer {
	if config.MinLeafFraction <= 0 {
		config.MinLeafFraction = DefaultConfig().MinLeafFraction
	}
	if config.MaxDepth < 0 {
		config.MaxDepth = 0
	}

	return &Explainer{config: config}
}

// Fit trains the surrogate tree on (X, labels).
// featureNames may be nil; when given it must have one entry per column.
func (e *Explainer) Fit(X mat.Matrix, labels []int, featureNames []string) error {
	n, d := X.Dims()
	if len(featureNames) > 0 && len(featureNames) != d {
		return fmt.Errorf("got %d feature names for %d columns", len(featureNames), d)
	}

	params := surrogate.Params{
		MinSamplesLeaf: surrogate.MinLeafSamples(e.config.MinLeafFraction, n),
		MaxDepth:       e.config.MaxDepth,
		Seed:           e.config.Seed,
	}

	X, labels, e.injected = surrogate.EnsureTwoClasses(X, labels)

	tree, err := surrogate.Fit(X, labels, params)
	if err != nil {
		return fmt.Errorf("fit surrogate tree: %w", err)
	}

	e.tree = tree
	e.formatter = NewFormatter(featureNames, tree.NodeSamples[0])
	return nil
}

// Explain extracts the ordered rule list from the fitted tree
func (e *Explainer) Explain() ([]Rule, error) {
	if e.tree == nil {
		return nil, ErrNotFitted
	}
	return Extract(e.tree)
}

// Records formats rules as structured records
func (e *Explainer) Records(rules []Rule) []models.RuleRecord {
	return e.formatter.Records(rules)
}

// Strings formats rules as display strings
func (e *Explainer) Strings(rules []Rule) []string {
	return e.formatter.Strings(rules)
}

// Formatter returns the formatter bound to the fitted tree
func (e *Explainer) Formatter() *Formatter {
	return e.formatter
}

// Tree returns the fitted surrogate tree
func (e *Explainer) Tree() *surrogate.Tree {
	return e.tree
}

// Injected reports whether a synthetic counter-example was added before fitting
func (e *Explainer) Injected() bool {
	return e.injected
}

// TotalSamples returns the number of samples at the surrogate root
func (e *Explainer) TotalSamples() int {
	if e.tree == nil {
		return 0
	}
	return e.tree.NodeSamples[0]
}
