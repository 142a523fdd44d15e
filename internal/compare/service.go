package compare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/todmy/tarmac/internal/adapters"
	"github.com/todmy/tarmac/internal/dataset"
	"github.com/todmy/tarmac/internal/delta"
	"github.com/todmy/tarmac/internal/explain"
	"github.com/todmy/tarmac/pkg/models"
)

// ErrNegativeEpsilon rejects a regression threshold below zero
var ErrNegativeEpsilon = errors.New("epsilon must not be negative")

// Config holds comparison defaults applied to requests that leave a field unset
type Config struct {
	Epsilon         float64
	MinLeafFraction float64
	Seed            int64
	MaxDepth        int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Epsilon:         delta.DefaultEpsilon,
		MinLeafFraction: explain.DefaultConfig().MinLeafFraction,
		Seed:            0,
		MaxDepth:        0,
	}
}

// Options are the tunables of one comparison. Nil pointers use the service
// default, so an explicit zero epsilon, seed or depth is kept as given.
type Options struct {
	Task            delta.Task
	Epsilon         *float64 // regression only
	MinLeafFraction float64  // 0 uses the service default
	Seed            *int64
	MaxDepth        *int // 0 means unlimited
}

// settings are Options with every default applied
type settings struct {
	epsilon         float64
	minLeafFraction float64
	seed            int64
	maxDepth        int
}

// Request is one comparison over precomputed predictions
type Request struct {
	Options
	X            *mat.Dense
	FeatureNames []string
	PredsA       []float64
	PredsB       []float64
}

// Service runs the label, fit, extract, format pipeline
type Service struct {
	config Config
	logger *zap.Logger
}

// NewService creates a new comparison service
func NewService(config Config, logger *zap.Logger) *Service {
	if config.Epsilon < 0 {
		config.Epsilon = DefaultConfig().Epsilon
	}
	if config.MinLeafFraction <= 0 {
		config.MinLeafFraction = DefaultConfig().MinLeafFraction
	}
	if config.MaxDepth < 0 {
		config.MaxDepth = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{config: config, logger: logger}
}

// Compare explains where PredsA and PredsB disagree over X
func (s *Service) Compare(ctx context.Context, req Request) (*models.Report, error) {
	if req.X == nil {
		return nil, fmt.Errorf("%w: no feature matrix", delta.ErrShapeMismatch)
	}
	n, _ := req.X.Dims()
	if len(req.PredsA) != len(req.PredsB) || len(req.PredsA) != n {
		return nil, fmt.Errorf("%w: %d rows, %d and %d predictions",
			delta.ErrShapeMismatch, n, len(req.PredsA), len(req.PredsB))
	}

	task := req.Task
	if task == "" || task == delta.TaskAuto {
		task = delta.DetectTask(req.PredsA, req.PredsB)
		s.logger.Debug("detected task", zap.String("task", string(task)))
	}
	labeler, err := delta.NewLabeler(task)
	if err != nil {
		return nil, err
	}

	opts, err := s.resolve(req.Options)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labels, err := labeler.Build(req.PredsA, req.PredsB, delta.Options{Epsilon: opts.epsilon})
	if err != nil {
		return nil, fmt.Errorf("build delta: %w", err)
	}
	disagree, rate := delta.Summary(labels)
	s.logger.Info("labeled disagreements",
		zap.String("task", string(task)),
		zap.Int("samples", n),
		zap.Int("disagreements", disagree),
		zap.Float64("rate", rate))

	explainer := explain.NewExplainer(explain.Config{
		MinLeafFraction: opts.minLeafFraction,
		Seed:            opts.seed,
		MaxDepth:        opts.maxDepth,
	})
	if err := explainer.Fit(req.X, labels, req.FeatureNames); err != nil {
		return nil, err
	}
	if explainer.Injected() {
		s.logger.Debug("injected synthetic counter-example", zap.Int("label", 1-labels[0]))
	}

	rules, err := explainer.Explain()
	if err != nil {
		return nil, fmt.Errorf("extract rules: %w", err)
	}
	tree := explainer.Tree()
	s.logger.Info("fitted surrogate tree",
		zap.Int("nodes", tree.NodeCount()),
		zap.Int("leaves", tree.LeafCount()),
		zap.Int("depth", tree.Depth()),
		zap.Int("rules", len(rules)))

	meta := models.Metadata{
		TotalRules:       len(rules),
		Task:             string(task),
		DatasetSize:      n,
		MinLeafFraction:  opts.minLeafFraction,
		Seed:             opts.seed,
		Disagreements:    disagree,
		DisagreementRate: rate,
		SyntheticSample:  explainer.Injected(),
	}
	if task == delta.TaskRegression {
		eps := opts.epsilon
		meta.Epsilon = &eps
	}

	formatter := explainer.Formatter()
	importances := tree.FeatureImportances()
	named := make([]models.FeatureImportance, len(importances))
	for i, v := range importances {
		named[i] = models.FeatureImportance{Feature: formatter.FeatureName(i), Importance: v}
	}

	return &models.Report{
		ID:                 uuid.NewString(),
		CreatedAt:          time.Now().UTC(),
		Metadata:           meta,
		Rules:              explainer.Records(rules),
		Display:            explainer.Strings(rules),
		FeatureImportances: named,
	}, nil
}

// Diff runs both models on the dataset and compares their predictions
func (s *Service) Diff(ctx context.Context, modelA, modelB adapters.Model, ds *dataset.Dataset, opts Options) (*models.Report, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, dataset.ErrEmptyTable
	}

	predsA, err := modelA.Predict(ctx, ds.X)
	if err != nil {
		return nil, fmt.Errorf("predict with model A: %w", err)
	}
	predsB, err := modelB.Predict(ctx, ds.X)
	if err != nil {
		return nil, fmt.Errorf("predict with model B: %w", err)
	}

	return s.Compare(ctx, Request{
		Options:      opts,
		X:            ds.X,
		FeatureNames: ds.FeatureNames,
		PredsA:       predsA,
		PredsB:       predsB,
	})
}

func (s *Service) resolve(opts Options) (settings, error) {
	out := settings{
		epsilon:         s.config.Epsilon,
		minLeafFraction: s.config.MinLeafFraction,
		seed:            s.config.Seed,
		maxDepth:        s.config.MaxDepth,
	}
	if opts.Epsilon != nil {
		if *opts.Epsilon < 0 {
			return settings{}, fmt.Errorf("%w: %v", ErrNegativeEpsilon, *opts.Epsilon)
		}
		out.epsilon = *opts.Epsilon
	}
	if opts.MinLeafFraction > 0 {
		out.minLeafFraction = opts.MinLeafFraction
	}
	if opts.Seed != nil {
		out.seed = *opts.Seed
	}
	if opts.MaxDepth != nil && *opts.MaxDepth >= 0 {
		out.maxDepth = *opts.MaxDepth
	}
	return out, nil
}
