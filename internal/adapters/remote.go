package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultBatchSize = 512
	defaultTimeout   = 30 * time.Second
)

// predictRequest follows the common "instances" serving convention
type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// RemoteModel calls a model served over HTTP
type RemoteModel struct {
	httpClient *http.Client
	url        string
	token      string
	batchSize  int
}

// RemoteOption configures the RemoteModel
type RemoteOption func(*RemoteModel)

// WithToken sets a bearer token sent with each request
func WithToken(token string) RemoteOption {
	return func(m *RemoteModel) {
		m.token = token
	}
}

// WithBatchSize sets how many rows go into one request
func WithBatchSize(size int) RemoteOption {
	return func(m *RemoteModel) {
		if size > 0 {
			m.batchSize = size
		}
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(m *RemoteModel) {
		m.httpClient = c
	}
}

// NewRemoteModel creates a client for the prediction endpoint at url
func NewRemoteModel(url string, opts ...RemoteOption) *RemoteModel {
	m := &RemoteModel{
		httpClient: &http.Client{Timeout: defaultTimeout},
		url:        url,
		batchSize:  defaultBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Predict implements Model. Rows are sent in sequential batches.
func (m *RemoteModel) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	n, _ := X.Dims()
	preds := make([]float64, 0, n)

	for start := 0; start < n; start += m.batchSize {
		end := min(start+m.batchSize, n)

		rows := make([][]float64, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, mat.Row(nil, i, X))
		}

		batch, err := m.predictBatch(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("rows %d-%d: %w", start, end-1, err)
		}
		preds = append(preds, batch...)
	}

	return preds, nil
}

func (m *RemoteModel) predictBatch(ctx context.Context, rows [][]float64) ([]float64, error) {
	jsonBody, err := json.Marshal(predictRequest{Instances: rows})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server error (status %d): %s", resp.StatusCode, string(body))
	}

	var predResp predictResponse
	if err := json.Unmarshal(body, &predResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(predResp.Predictions) != len(rows) {
		return nil, fmt.Errorf("%w: got %d predictions for %d rows", ErrLengthMismatch, len(predResp.Predictions), len(rows))
	}

	return predResp.Predictions, nil
}
