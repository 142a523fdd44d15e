package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is a numeric table read from disk
type Table struct {
	Rows    [][]float64
	Columns []string // nil when the file has no header
}

// LoadTable reads a numeric table. Only CSV is supported.
func LoadTable(path string) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses CSV records into a table. A first record that does not parse
// as numbers is taken as the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	table := &Table{}
	start := 0
	if _, err := parseRecord(records[0]); err != nil {
		table.Columns = records[0]
		start = 1
	}
	if len(records) == start {
		return nil, ErrEmptyTable
	}

	for i, rec := range records[start:] {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+start+1, err)
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func parseRecord(rec []string) ([]float64, error) {
	row := make([]float64, len(rec))
	for i, field := range rec {
		field = strings.TrimSpace(field)
		if field == "" {
			row[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// Column returns a single column of the table; single-column tables are target vectors
func (t *Table) Column(j int) []float64 {
	col := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		col[i] = r[j]
	}
	return col
}

// LoadTarget reads a single-column table as a target vector
func LoadTarget(path string) ([]float64, error) {
	table, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	if len(table.Rows[0]) != 1 {
		return nil, fmt.Errorf("%w: target file %s has %d columns", ErrColumnMismatch, path, len(table.Rows[0]))
	}
	return table.Column(0), nil
}

// Union stacks two tables and drops duplicate rows, keeping the first
// occurrence in its original position. Targets are optional and kept aligned.
func Union(a, b *Table, ya, yb []float64) (*Dataset, error) {
	if len(a.Rows) == 0 || len(b.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	if len(a.Rows[0]) != len(b.Rows[0]) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrColumnMismatch, len(a.Rows[0]), len(b.Rows[0]))
	}
	withTarget := ya != nil && yb != nil
	if withTarget && (len(ya) != len(a.Rows) || len(yb) != len(b.Rows)) {
		return nil, ErrTargetMismatch
	}

	rows := append(append([][]float64{}, a.Rows...), b.Rows...)
	var targets []float64
	if withTarget {
		targets = append(append([]float64{}, ya...), yb...)
	}

	seen := make(map[string]bool, len(rows))
	var keptRows [][]float64
	var keptY []float64
	for i, r := range rows {
		key := rowKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		keptRows = append(keptRows, r)
		if withTarget {
			keptY = append(keptY, targets[i])
		}
	}

	names := a.Columns
	if names == nil {
		names = b.Columns
	}
	return New(keptRows, keptY, names)
}

func rowKey(r []float64) string {
	var sb strings.Builder
	for _, v := range r {
		sb.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
		sb.WriteByte(',')
	}
	return sb.String()
}
