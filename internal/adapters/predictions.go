package adapters

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/todmy/tarmac/internal/dataset"
)

// PredictionFile replays predictions computed elsewhere, one row per sample
type PredictionFile struct {
	path  string
	preds []float64
}

// LoadPredictionFile reads a single-column CSV of precomputed predictions
func LoadPredictionFile(path string) (*PredictionFile, error) {
	preds, err := dataset.LoadTarget(path)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	return &PredictionFile{path: path, preds: preds}, nil
}

// Predict implements Model. The file must hold exactly one prediction per row of X.
func (p *PredictionFile) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	n, _ := X.Dims()
	if n != len(p.preds) {
		return nil, fmt.Errorf("%w: %s has %d predictions for %d rows", ErrLengthMismatch, p.path, len(p.preds), n)
	}
	out := make([]float64, n)
	copy(out, p.preds)
	return out, nil
}
