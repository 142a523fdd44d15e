package models

import (
	"time"
)

// Condition is one rendered path condition of a rule
type Condition struct {
	Feature   string  `json:"feature"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
}

// RuleRecord is the structured form of an extracted rule
type RuleRecord struct {
	Conditions             []Condition `json:"conditions"`
	SamplesAffected        int         `json:"samples_affected"`
	DisagreementPercentage float64     `json:"disagreement_percentage"`
	Prediction             string      `json:"prediction"`
	Support                float64     `json:"support"`
}

// Metadata describes the comparison run that produced a report
type Metadata struct {
	TotalRules       int      `json:"total_rules"`
	Task             string   `json:"task"`
	Epsilon          *float64 `json:"epsilon"` // regression only
	DatasetSize      int      `json:"dataset_size"`
	MinLeafFraction  float64  `json:"min_leaf_fraction"`
	Seed             int64    `json:"seed"`
	Disagreements    int      `json:"disagreements"`
	DisagreementRate float64  `json:"disagreement_rate"`
	SyntheticSample  bool     `json:"synthetic_sample"`
}

// FeatureImportance is the share of surrogate impurity decrease owed to a feature
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Report is the full output of one model comparison
type Report struct {
	ID                 string              `json:"id,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	Metadata           Metadata            `json:"metadata"`
	Rules              []RuleRecord        `json:"rules"`
	Display            []string            `json:"display,omitempty"`
	FeatureImportances []FeatureImportance `json:"feature_importances"`
}

// ImportanceVector returns the importances in feature order
func (r *Report) ImportanceVector() []float32 {
	vec := make([]float32, len(r.FeatureImportances))
	for i, fi := range r.FeatureImportances {
		vec[i] = float32(fi.Importance)
	}
	return vec
}

// ReportSummary is a listing entry for stored reports
type ReportSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Task        string    `json:"task"`
	DatasetSize int       `json:"dataset_size"`
	TotalRules  int       `json:"total_rules"`
}

// SimilarReport pairs a stored report summary with its importance similarity
type SimilarReport struct {
	Report     ReportSummary `json:"report"`
	Similarity float64       `json:"similarity"`
}
