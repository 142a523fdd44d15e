package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/todmy/tarmac/pkg/models"
)

var ErrUnsupportedOutput = errors.New("output file must have .json or .txt extension")

// fileReport is the JSON layout written to disk
type fileReport struct {
	Metadata           models.Metadata            `json:"metadata"`
	Rules              []models.RuleRecord        `json:"rules"`
	FeatureImportances []models.FeatureImportance `json:"feature_importances"`
}

// WriteFile saves the report in the format implied by the path's extension
func WriteFile(path string, report *models.Report, userFriendly bool) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".txt" {
		return fmt.Errorf("%w: %s", ErrUnsupportedOutput, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	switch {
	case ext == ".json":
		err = WriteJSON(f, report)
	case userFriendly:
		err = WriteNarrative(f, report)
	default:
		err = WriteText(f, report)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteJSON writes metadata, rules and feature importances as indented JSON
func WriteJSON(w io.Writer, report *models.Report) error {
	rules := report.Rules
	if rules == nil {
		rules = []models.RuleRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fileReport{
		Metadata:           report.Metadata,
		Rules:              rules,
		FeatureImportances: report.FeatureImportances,
	})
}

// WriteText writes the dataset size followed by one numbered line per rule
func WriteText(w io.Writer, report *models.Report) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset size: %d samples\n", report.Metadata.DatasetSize)
	for i, rule := range report.Display {
		fmt.Fprintf(&sb, "Rule %d: %s\n", i+1, rule)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteNarrative writes a plain-language version of the report for non-specialists
func WriteNarrative(w io.Writer, report *models.Report) error {
	var sb strings.Builder
	sb.WriteString("📊 Analysis of Model Behavior Differences\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString("This report identifies key patterns where the two models make different predictions.\n\n")
	fmt.Fprintf(&sb, "We analyzed %d data samples and found %d important patterns.\n",
		report.Metadata.DatasetSize, len(report.Display))
	sb.WriteString("Each pattern describes specific conditions where the models disagree.\n\n")
	sb.WriteString("Key Findings:\n")
	sb.WriteString(strings.Repeat("-", 20) + "\n\n")

	for i, rule := range report.Display {
		fmt.Fprintf(&sb, "Pattern #%d:\n", i+1)
		sb.WriteString("What we found: When " + strings.ToLower(rule) + "\n")
		sb.WriteString("This means that under these specific conditions, the models produce notably different results.\n\n")
	}
	sb.WriteString("\nNote: Understanding these patterns can help identify where the models might need " +
		"additional review or where their differences might impact business decisions.\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
