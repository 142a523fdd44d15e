package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/todmy/tarmac/internal/similarity"
	"github.com/todmy/tarmac/pkg/models"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS reports (
		id           TEXT PRIMARY KEY,
		created_at   TEXT NOT NULL,
		task         TEXT NOT NULL,
		dataset_size INTEGER NOT NULL,
		total_rules  INTEGER NOT NULL,
		importance   TEXT NOT NULL,
		body         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at);
`

// timestamps are fixed-width so text order matches time order
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository on a local SQLite file.
// Similarity is computed in Go since SQLite has no vector type.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// Save inserts a report
func (r *SQLiteRepository) Save(ctx context.Context, report *models.Report) error {
	data, err := prepare(report, r.now)
	if err != nil {
		return err
	}
	importance, err := json.Marshal(report.ImportanceVector())
	if err != nil {
		return fmt.Errorf("encode importances: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO reports (id, created_at, task, dataset_size, total_rules, importance, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.CreatedAt.UTC().Format(sqliteTimeLayout),
		report.Metadata.Task,
		report.Metadata.DatasetSize,
		report.Metadata.TotalRules,
		string(importance),
		string(data),
	)
	return err
}

// Get retrieves a report by its ID
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	var createdAt, data string
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at, body FROM reports WHERE id = ?`, id,
	).Scan(&createdAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	report, err := decode(id, []byte(data))
	if err != nil {
		return nil, err
	}
	if report.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return report, nil
}

// List returns the most recent reports first
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, task, dataset_size, total_rules
		 FROM reports ORDER BY created_at DESC LIMIT ?`,
		limitOr(limit, DefaultListLimit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.ReportSummary{}
	for rows.Next() {
		s, _, err := scanSummary(rows, false)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// FindSimilar loads every other report's importances and ranks them in memory
func (r *SQLiteRepository) FindSimilar(ctx context.Context, id string, limit int) ([]models.SimilarReport, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT importance FROM reports WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var target []float32
	if err := json.Unmarshal([]byte(raw), &target); err != nil {
		return nil, fmt.Errorf("decode importances: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, task, dataset_size, total_rules, importance
		 FROM reports WHERE id <> ? ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make(map[string]models.ReportSummary)
	var candidates []similarity.Candidate
	for rows.Next() {
		s, vec, err := scanSummary(rows, true)
		if err != nil {
			return nil, err
		}
		summaries[s.ID] = s
		candidates = append(candidates, similarity.Candidate{Key: s.ID, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := []models.SimilarReport{}
	for _, m := range similarity.Rank(target, candidates, limit) {
		results = append(results, models.SimilarReport{Report: summaries[m.Key], Similarity: m.Similarity})
	}
	return results, nil
}

// Delete removes a report
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database handle
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanSummary(rows *sql.Rows, withImportance bool) (models.ReportSummary, []float32, error) {
	var s models.ReportSummary
	var createdAt, raw string
	dest := []any{&s.ID, &createdAt, &s.Task, &s.DatasetSize, &s.TotalRules}
	if withImportance {
		dest = append(dest, &raw)
	}
	if err := rows.Scan(dest...); err != nil {
		return s, nil, err
	}

	var err error
	if s.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return s, nil, fmt.Errorf("parse created_at: %w", err)
	}

	var vec []float32
	if withImportance {
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return s, nil, fmt.Errorf("decode importances: %w", err)
		}
	}
	return s, vec, nil
}
