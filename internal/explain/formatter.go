package explain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/todmy/tarmac/pkg/models"
)

// PredictionLabel is the outcome every rule predicts
const PredictionLabel = "models differ"

// Formatter renders rules as display strings or structured records
type Formatter struct {
	featureNames []string
	totalSamples int
}

// NewFormatter creates a formatter. featureNames may be nil, in which case
// features are named by position. totalSamples is the surrogate root count.
func NewFormatter(featureNames []string, totalSamples int) *Formatter {
	return &Formatter{
		featureNames: featureNames,
		totalSamples: totalSamples,
	}
}

// FeatureName returns the column name for a feature index
func (f *Formatter) FeatureName(index int) string {
	if index >= 0 && index < len(f.featureNames) && f.featureNames[index] != "" {
		return f.featureNames[index]
	}
	return fmt.Sprintf("feature_%d", index)
}

// Record builds the structured form of a rule
func (f *Formatter) Record(rule Rule) models.RuleRecord {
	conditions := make([]models.Condition, len(rule.Conditions))
	for i, c := range rule.Conditions {
		conditions[i] = models.Condition{
			Feature:   f.FeatureName(c.Feature),
			Operator:  string(c.Op),
			Threshold: round(c.Threshold, 3),
		}
	}

	support := 0.0
	if f.totalSamples > 0 {
		support = round(float64(rule.SamplesAffected)/float64(f.totalSamples), 3)
	}

	return models.RuleRecord{
		Conditions:             conditions,
		SamplesAffected:        rule.SamplesAffected,
		DisagreementPercentage: percentage(rule.DisagreementFraction),
		Prediction:             PredictionLabel,
		Support:                support,
	}
}

// String renders a rule as "IF ... THEN models differ (...)"
func (f *Formatter) String(rule Rule) string {
	conditions := make([]string, len(rule.Conditions))
	for i, c := range rule.Conditions {
		conditions[i] = fmt.Sprintf("%s %s %.3f", f.FeatureName(c.Feature), c.Op, c.Threshold)
	}

	clause := strings.Join(conditions, " AND ")
	if clause == "" {
		clause = "TRUE"
	}

	pct := strconv.FormatFloat(percentage(rule.DisagreementFraction), 'f', 1, 64)
	return fmt.Sprintf("IF %s THEN %s (affects %d samples, %s%% disagree)",
		clause, PredictionLabel, rule.SamplesAffected, pct)
}

// Records formats every rule as a record
func (f *Formatter) Records(rules []Rule) []models.RuleRecord {
	records := make([]models.RuleRecord, len(rules))
	for i, r := range rules {
		records[i] = f.Record(r)
	}
	return records
}

// Strings formats every rule as a display string
func (f *Formatter) Strings(rules []Rule) []string {
	lines := make([]string, len(rules))
	for i, r := range rules {
		lines[i] = f.String(r)
	}
	return lines
}

func percentage(fraction float64) float64 {
	return round(fraction*100, 1)
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
