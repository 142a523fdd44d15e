package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/tarmac/pkg/models"
)

func sampleReport(rules int) *models.Report {
	eps := 0.05
	r := &models.Report{
		Metadata: models.Metadata{
			TotalRules:  rules,
			Task:        "regression",
			Epsilon:     &eps,
			DatasetSize: 177,
		},
		FeatureImportances: []models.FeatureImportance{{Feature: "bmi", Importance: 1}},
	}
	for i := 0; i < rules; i++ {
		r.Rules = append(r.Rules, models.RuleRecord{
			Conditions:             []models.Condition{{Feature: "bmi", Operator: ">", Threshold: float64(i)}},
			SamplesAffected:        10,
			DisagreementPercentage: 80,
			Prediction:             "models differ",
			Support:                0.056,
		})
		r.Display = append(r.Display,
			fmt.Sprintf("IF bmi > %d.000 THEN models differ (affects 10 samples, 80.0%% disagree)", i))
	}
	return r
}

func TestConsole_LimitsPanels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Console(&buf, sampleReport(12), 0))

	out := buf.String()
	assert.Contains(t, out, "📊 Model Difference Analysis")
	assert.Contains(t, out, "Generated 12 rules explaining model differences:")
	assert.Contains(t, out, "Rule 10:")
	assert.NotContains(t, out, "Rule 11:")
	assert.Contains(t, out, "IF bmi > 0.000 THEN models differ")
}

func TestWriteFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFile(path, sampleReport(2), false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "metadata")
	assert.Contains(t, decoded, "feature_importances")
	assert.Len(t, decoded["rules"], 2)

	meta := decoded["metadata"].(map[string]any)
	assert.Equal(t, 0.05, meta["epsilon"])
	assert.Equal(t, float64(177), meta["dataset_size"])
}

func TestWriteJSON_NullEpsilonAndEmptyRules(t *testing.T) {
	r := &models.Report{Metadata: models.Metadata{Task: "classification"}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))
	assert.Contains(t, buf.String(), `"epsilon": null`)
	assert.Contains(t, buf.String(), `"rules": []`)
}

func TestWriteFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, WriteFile(path, sampleReport(2), false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"Dataset size: 177 samples",
		"Rule 1: IF bmi > 0.000 THEN models differ (affects 10 samples, 80.0% disagree)",
		"Rule 2: IF bmi > 1.000 THEN models differ (affects 10 samples, 80.0% disagree)",
	}, lines)
}

func TestWriteFile_Narrative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, WriteFile(path, sampleReport(1), true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "We analyzed 177 data samples and found 1 important patterns.")
	assert.Contains(t, out, "Pattern #1:")
	assert.Contains(t, out, "What we found: When if bmi > 0.000 then models differ")
}

func TestWriteFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	err := WriteFile(path, sampleReport(1), false)
	assert.ErrorIs(t, err, ErrUnsupportedOutput)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
