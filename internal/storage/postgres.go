package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/todmy/tarmac/pkg/models"
)

const postgresSchema = `
	CREATE EXTENSION IF NOT EXISTS vector;
	CREATE TABLE IF NOT EXISTS reports (
		id           UUID PRIMARY KEY,
		created_at   TIMESTAMPTZ NOT NULL,
		task         TEXT NOT NULL,
		dataset_size INTEGER NOT NULL,
		total_rules  INTEGER NOT NULL,
		importance   vector NOT NULL,
		body         JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC);
`

// PostgresRepository implements Repository using PostgreSQL with pgvector
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository creates a new PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Migrate creates the reports table and the vector extension
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Save inserts a report into the database
func (r *PostgresRepository) Save(ctx context.Context, report *models.Report) error {
	data, err := prepare(report, r.now)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (id, created_at, task, dataset_size, total_rules, importance, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.CreatedAt,
		report.Metadata.Task,
		report.Metadata.DatasetSize,
		report.Metadata.TotalRules,
		pgvector.NewVector(report.ImportanceVector()),
		data,
	)
	return err
}

// Get retrieves a report by its ID
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	query := `
		SELECT created_at, body
		FROM reports
		WHERE id = $1
	`

	var createdAt time.Time
	var data []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&createdAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	report, err := decode(id, data)
	if err != nil {
		return nil, err
	}
	report.CreatedAt = createdAt
	return report, nil
}

// List returns the most recent reports first
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	query := `
		SELECT id, created_at, task, dataset_size, total_rules
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limitOr(limit, DefaultListLimit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.ReportSummary{}
	for rows.Next() {
		var s models.ReportSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Task, &s.DatasetSize, &s.TotalRules); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// FindSimilar ranks reports with the same feature count by pgvector cosine distance
func (r *PostgresRepository) FindSimilar(ctx context.Context, id string, limit int) ([]models.SimilarReport, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	var target pgvector.Vector
	err := r.db.QueryRowContext(ctx, `SELECT importance FROM reports WHERE id = $1`, id).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, created_at, task, dataset_size, total_rules,
			   1 - (importance <=> $1) AS similarity
		FROM reports
		WHERE id <> $2 AND vector_dims(importance) = vector_dims($1)
		ORDER BY importance <=> $1
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, target, id, limitOr(limit, 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.SimilarReport{}
	for rows.Next() {
		var s models.SimilarReport
		err := rows.Scan(
			&s.Report.ID,
			&s.Report.CreatedAt,
			&s.Report.Task,
			&s.Report.DatasetSize,
			&s.Report.TotalRules,
			&s.Similarity,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Delete removes a report from the database
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
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
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
