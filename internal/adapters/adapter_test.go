package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLinearModel_Predict(t *testing.T) {
	m, err := ParseJSONModel([]byte(`{"kind":"linear","coef":[[2,-1]],"intercept":[0.5]}`))
	require.NoError(t, err)

	X := mat.NewDense(2, 2, []float64{1, 1, 3, 0})
	preds, err := m.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.5, 6.5}, preds, 1e-12)

	_, err = m.Predict(context.Background(), mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLogisticModel_Binary(t *testing.T) {
	m, err := ParseJSONModel([]byte(`{"kind":"logistic","coef":[[4]],"intercept":[-8],"classes":[3,7]}`))
	require.NoError(t, err)

	X := mat.NewDense(3, 1, []float64{0, 2, 5})
	preds, err := m.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 7}, preds)

	proba, err := PredictProba(context.Background(), m, X, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba.At(1, 1), 1e-12)
}

func TestLogisticModel_Multinomial(t *testing.T) {
	m, err := NewLogisticModel([][]float64{{1, 0}, {0, 1}, {-1, -1}}, []float64{0, 0, 0}, nil)
	require.NoError(t, err)

	X := mat.NewDense(3, 2, []float64{5, 0, 0, 5, -5, -5})
	preds, err := m.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, preds)

	proba, err := m.PredictProba(context.Background(), X)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, mat.Sum(proba.RowView(i)), 1e-9)
	}
}

func TestTreeModel_Predict(t *testing.T) {
	m, err := ParseJSONModel([]byte(`{"kind":"tree","nodes":[
		{"feature":1,"threshold":0.5,"left":1,"right":2},
		{"left":-1,"right":-1,"value":10},
		{"left":-1,"right":-1,"value":20}
	]}`))
	require.NoError(t, err)

	X := mat.NewDense(2, 2, []float64{9, 0.1, 9, 0.9})
	preds, err := m.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, preds)

	_, err = NewTreeModel([]TreeNode{{Feature: 0, Left: 0, Right: 1}})
	assert.Error(t, err)
}

func TestParseJSONModel_UnknownKind(t *testing.T) {
	_, err := ParseJSONModel([]byte(`{"kind":"svm"}`))
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestPredictProba_OneHotFallback(t *testing.T) {
	m := &LinearModel{Coef: []float64{1}}
	X := mat.NewDense(2, 1, []float64{0, 2})

	proba, err := PredictProba(context.Background(), m, X, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, mat.Row(nil, 0, proba))
	assert.Equal(t, []float64{0, 0, 1}, mat.Row(nil, 1, proba))
}

func TestLoad_Dispatch(t *testing.T) {
	ctx := context.Background()

	jsonPath := writeFile(t, "m.json", `{"kind":"linear","coef":[[1]],"intercept":[0]}`)
	m, err := Load(ctx, jsonPath)
	require.NoError(t, err)
	assert.IsType(t, &LinearModel{}, m)

	csvPath := writeFile(t, "preds.csv", "prediction\n1\n0\n")
	m, err = Load(ctx, csvPath)
	require.NoError(t, err)
	preds, err := m.Predict(ctx, mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, preds)

	_, err = m.Predict(ctx, mat.NewDense(3, 1, nil))
	assert.ErrorIs(t, err, ErrLengthMismatch)

	m, err = Load(ctx, "https://models.example.com/v1/predict")
	require.NoError(t, err)
	assert.IsType(t, &CachedModel{}, m)

	_, err = Load(ctx, "model.pkl")
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestRemoteModel_Predict(t *testing.T) {
	var batches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batches++

		resp := predictResponse{}
		for _, row := range req.Instances {
			resp.Predictions = append(resp.Predictions, row[0]*2)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	m := NewRemoteModel(server.URL, WithToken("secret"), WithBatchSize(2))
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})

	preds, err := m.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6, 8, 10}, preds)
	assert.Equal(t, 3, batches)
}

func TestRemoteModel_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewRemoteModel(server.URL).Predict(context.Background(), mat.NewDense(1, 1, nil))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

// countingModel echoes the first feature and counts the rows it was asked for
type countingModel struct {
	rows int
}

func (c *countingModel) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	n, _ := X.Dims()
	c.rows += n
	return mat.Col(nil, 0, X), nil
}

func TestCachedModel_OnlyForwardsUnseenRows(t *testing.T) {
	inner := &countingModel{}
	cache := NewMemoryCache()
	m := NewCachedModel("echo", inner, cache)

	first := mat.NewDense(3, 1, []float64{1, 2, 3})
	preds, err := m.Predict(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, preds)
	assert.Equal(t, 3, inner.rows)

	second := mat.NewDense(4, 1, []float64{3, 4, 1, 5})
	preds, err = m.Predict(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 1, 5}, preds)
	assert.Equal(t, 5, inner.rows)
	assert.Equal(t, 5, cache.Len())
}

func TestRowKey_ScopedByModel(t *testing.T) {
	row := []float64{1.5, -2}
	assert.Equal(t, RowKey("a", row), RowKey("a", []float64{1.5, -2}))
	assert.NotEqual(t, RowKey("a", row), RowKey("b", row))
	assert.NotEqual(t, RowKey("a", row), RowKey("a", []float64{-2, 1.5}))
}
