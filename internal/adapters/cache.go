package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// PredictionCache stores predictions keyed by model and row
type PredictionCache interface {
	// GetMulti returns the entries found for keys
	GetMulti(ctx context.Context, keys []string) (map[string]float64, error)
	SetMulti(ctx context.Context, preds map[string]float64) error
}

// RowKey hashes a model name and the exact bits of a feature row
func RowKey(model string, row []float64) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	var buf [8]byte
	for _, v := range row {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// CachedModel wraps a Model and only forwards rows it has not seen
type CachedModel struct {
	name  string
	model Model
	cache PredictionCache
}

// NewCachedModel creates a new cached model; name scopes the cache keys
func NewCachedModel(name string, model Model, cache PredictionCache) *CachedModel {
	return &CachedModel{name: name, model: model, cache: cache}
}

// Predict implements Model
func (c *CachedModel) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	n, d := X.Dims()
	if n == 0 {
		return []float64{}, nil
	}

	rows := make([][]float64, n)
	keys := make([]string, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
		keys[i] = RowKey(c.name, rows[i])
	}

	cached, err := c.cache.GetMulti(ctx, keys)
	if err != nil {
		// continue without cache
		cached = make(map[string]float64)
	}

	var missing []int
	for i, key := range keys {
		if _, ok := cached[key]; !ok {
			missing = append(missing, i)
		}
	}

	preds := make([]float64, n)
	if len(missing) > 0 {
		sub := mat.NewDense(len(missing), d, nil)
		for j, i := range missing {
			sub.SetRow(j, rows[i])
		}
		fresh, err := c.model.Predict(ctx, sub)
		if err != nil {
			return nil, err
		}

		toCache := make(map[string]float64, len(missing))
		for j, i := range missing {
			preds[i] = fresh[j]
			toCache[keys[i]] = fresh[j]
		}
		_ = c.cache.SetMulti(ctx, toCache) // ignore cache errors
	}

	for i, key := range keys {
		if p, ok := cached[key]; ok {
			preds[i] = p
		}
	}
	return preds, nil
}

// MemoryCache is an in-process PredictionCache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]float64
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]float64)}
}

func (m *MemoryCache) GetMulti(ctx context.Context, keys []string) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]float64)
	for _, k := range keys {
		if v, ok := m.entries[k]; ok {
			found[k] = v
		}
	}
	return found, nil
}

func (m *MemoryCache) SetMulti(ctx context.Context, preds map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range preds {
		m.entries[k] = v
	}
	return nil
}

// Len returns the number of cached predictions
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
