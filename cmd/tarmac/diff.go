package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/todmy/tarmac/internal/adapters"
	"github.com/todmy/tarmac/internal/compare"
	"github.com/todmy/tarmac/internal/dataset"
	"github.com/todmy/tarmac/internal/delta"
	"github.com/todmy/tarmac/internal/report"
	"github.com/todmy/tarmac/internal/storage"
)

type diffOptions struct {
	sampling       string
	data           string
	xa, ya, xb, yb string
	task           string
	epsilon        float64
	minLeaf        float64
	seed           int64
	maxDepth       int
	output         string
	userFriendly   bool
	store          string
}

func newDiffCmd(a *app) *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff MODEL_A MODEL_B",
		Short: "Compare two models and explain their differences",
		Long: `Compare two models and explain their differences with human-readable rules.

A model is a serialized .json model (linear, logistic or tree), a .csv file of
precomputed predictions, or the http(s) URL of a prediction server.`,
		Example: `  tarmac diff model_a.json model_b.json
  tarmac diff model_a.json model_b.json --sampling union \
      --Xa features_a.csv --ya targets_a.csv --Xb features_b.csv --yb targets_b.csv
  tarmac diff model_a.json model_b.json -o analysis.txt --uf
  tarmac diff model_a.json model_b.json --task regression --epsilon 0.1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyDefaults(cmd, opts)
			return a.runDiff(cmd, args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.sampling, "sampling", "s", "builtin", "Sampling strategy: builtin or union")
	f.StringVarP(&opts.data, "data", "d", dataset.BuiltinBlobs, "Built-in dataset: blobs (classification) or friedman1 (regression)")
	f.StringVar(&opts.xa, "Xa", "", "Features for model A (CSV, required with --sampling union)")
	f.StringVar(&opts.ya, "ya", "", "Target for model A (CSV, required with --sampling union)")
	f.StringVar(&opts.xb, "Xb", "", "Features for model B (CSV, required with --sampling union)")
	f.StringVar(&opts.yb, "yb", "", "Target for model B (CSV, required with --sampling union)")
	f.StringVarP(&opts.task, "task", "t", string(delta.TaskAuto), "Task: auto, classification or regression (auto treats whole-number predictions as classes; pass regression for rounded outputs)")
	f.Float64VarP(&opts.epsilon, "epsilon", "e", delta.DefaultEpsilon, "Regression threshold; below 1 it is a fraction of the largest difference")
	f.Float64VarP(&opts.minLeaf, "min-samples-leaf", "m", 0.01, "Minimum samples per leaf as a fraction of the dataset")
	f.Int64Var(&opts.seed, "seed", 0, "Seed for surrogate tie-breaking")
	f.IntVar(&opts.maxDepth, "max-depth", 0, "Maximum surrogate depth (0 = unlimited)")
	f.StringVarP(&opts.output, "output", "o", "", "Save results to a .json or .txt file")
	f.BoolVar(&opts.userFriendly, "uf", false, "Write a plain-language narrative to .txt output")
	f.StringVar(&opts.store, "store", "", "Persist the report to this DSN (postgres:// or sqlite://)")

	return cmd
}

// applyDefaults fills flags the user did not set from the loaded config
func (a *app) applyDefaults(cmd *cobra.Command, opts *diffOptions) {
	f := cmd.Flags()
	if !f.Changed("task") {
		opts.task = a.cfg.Delta.Task
	}
	if !f.Changed("epsilon") {
		opts.epsilon = a.cfg.Delta.Epsilon
	}
	if !f.Changed("min-samples-leaf") {
		opts.minLeaf = a.cfg.Explain.MinLeafFraction
	}
	if !f.Changed("seed") {
		opts.seed = a.cfg.Explain.Seed
	}
	if !f.Changed("max-depth") {
		opts.maxDepth = a.cfg.Explain.MaxDepth
	}
	if !f.Changed("store") {
		opts.store = a.cfg.Storage.DSN
	}
}

func (a *app) runDiff(cmd *cobra.Command, refA, refB string, opts *diffOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	task, err := delta.ParseTask(opts.task)
	if err != nil {
		return err
	}
	if opts.output != "" {
		ext := strings.ToLower(filepath.Ext(opts.output))
		if ext != ".json" && ext != ".txt" {
			return report.ErrUnsupportedOutput
		}
	}

	ds, err := a.loadDataset(opts)
	if err != nil {
		return err
	}
	if ds.Y != nil {
		_, test, err := dataset.TrainTestSplit(ds, a.cfg.Sampling.TestSize, a.cfg.Sampling.Seed)
		if err != nil {
			return err
		}
		ds = test
	}
	a.logger.Debug("loaded comparison data",
		zap.Int("rows", ds.Len()),
		zap.Int("features", ds.NumFeatures()))

	modelA, err := adapters.Load(ctx, refA)
	if err != nil {
		return fmt.Errorf("model A: %w", err)
	}
	modelB, err := adapters.Load(ctx, refB)
	if err != nil {
		return fmt.Errorf("model B: %w", err)
	}

	svc := compare.NewService(compare.Config{
		Epsilon:         a.cfg.Delta.Epsilon,
		MinLeafFraction: a.cfg.Explain.MinLeafFraction,
		Seed:            a.cfg.Explain.Seed,
		MaxDepth:        a.cfg.Explain.MaxDepth,
	}, a.logger)

	rep, err := svc.Diff(ctx, modelA, modelB, ds, compare.Options{
		Task:            task,
		Epsilon:         &opts.epsilon,
		MinLeafFraction: opts.minLeaf,
		Seed:            &opts.seed,
		MaxDepth:        &opts.maxDepth,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.Console(out, rep, a.cfg.Explain.ConsoleRules); err != nil {
		return err
	}

	if opts.output != "" {
		if err := report.WriteFile(opts.output, rep, opts.userFriendly); err != nil {
			return err
		}
		a.logger.Info("wrote report", zap.String("path", opts.output))
	}

	if opts.store != "" {
		repo, err := storage.Open(ctx, opts.store)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Save(ctx, rep); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
		fmt.Fprintf(out, "\nStored report %s\n", rep.ID)
	}

	return nil
}

func (a *app) loadDataset(opts *diffOptions) (*dataset.Dataset, error) {
	switch opts.sampling {
	case "builtin":
		return dataset.Builtin(opts.data)

	case "union":
		if opts.xa == "" || opts.ya == "" || opts.xb == "" || opts.yb == "" {
			return nil, fmt.Errorf("when using --sampling union, all of --Xa, --ya, --Xb, and --yb are required")
		}
		xa, err := dataset.LoadTable(opts.xa)
		if err != nil {
			return nil, err
		}
		xb, err := dataset.LoadTable(opts.xb)
		if err != nil {
			return nil, err
		}
		ya, err := dataset.LoadTarget(opts.ya)
		if err != nil {
			return nil, err
		}
		yb, err := dataset.LoadTarget(opts.yb)
		if err != nil {
			return nil, err
		}
		return dataset.Union(xa, xb, ya, yb)

	default:
		return nil, fmt.Errorf("unknown sampling strategy: %s", opts.sampling)
	}
}
