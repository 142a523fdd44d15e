package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnsupportedModel  = errors.New("unsupported model format")
	ErrDimensionMismatch = errors.New("feature count does not match model")
	ErrLengthMismatch    = errors.New("prediction count does not match rows")
)

// Model is anything that maps a feature matrix to one prediction per row
type Model interface {
	Predict(ctx context.Context, X mat.Matrix) ([]float64, error)
}

// ProbaPredictor is implemented by models that expose class probabilities
type ProbaPredictor interface {
	PredictProba(ctx context.Context, X mat.Matrix) (*mat.Dense, error)
}

// PredictProba returns class probabilities, falling back to one-hot rows built
// from integer predictions for models without probability support.
func PredictProba(ctx context.Context, m Model, X mat.Matrix, numClasses int) (*mat.Dense, error) {
	if p, ok := m.(ProbaPredictor); ok {
		return p.PredictProba(ctx, X)
	}

	preds, err := m.Predict(ctx, X)
	if err != nil {
		return nil, err
	}
	if numClasses < 2 {
		numClasses = 2
	}

	proba := mat.NewDense(len(preds), numClasses, nil)
	for i, p := range preds {
		class := int(p)
		if class < 0 || class >= numClasses || float64(class) != p {
			return nil, fmt.Errorf("prediction %v at row %d is not a class index below %d", p, i, numClasses)
		}
		proba.Set(i, class, 1)
	}
	return proba, nil
}

// Load resolves a model reference by scheme or file extension
func Load(ctx context.Context, ref string) (Model, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return NewCachedModel(ref, NewRemoteModel(ref), NewMemoryCache()), nil
	}

	ext := strings.ToLower(filepath.Ext(ref))
	switch ext {
	case ".json":
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read model %s: %w", ref, err)
		}
		return ParseJSONModel(data)
	case ".csv":
		return LoadPredictionFile(ref)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, ext)
	}
}

func checkColumns(X mat.Matrix, want int) error {
	_, c := X.Dims()
	if c != want {
		return fmt.Errorf("%w: got %d features, model expects %d", ErrDimensionMismatch, c, want)
	}
	return nil
}
