package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/todmy/tarmac/pkg/models"
)

var (
	ErrNotFound          = errors.New("report not found")
	ErrUnsupportedDriver = errors.New("unsupported storage DSN")
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// Repository defines the interface for report storage operations
type Repository interface {
	Save(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, limit int) ([]models.ReportSummary, error)
	// FindSimilar ranks other reports by the cosine similarity of their
	// feature importances to the report with the given id.
	FindSimilar(ctx context.Context, id string, limit int) ([]models.SimilarReport, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open connects to the store named by dsn and ensures its schema exists.
// postgres:// and postgresql:// select PostgreSQL; sqlite:// selects an SQLite file.
func Open(ctx context.Context, dsn string) (Repository, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo := NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil

	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, dsn)
	}
}

// body is the JSON document persisted per report
type body struct {
	Metadata           models.Metadata            `json:"metadata"`
	Rules              []models.RuleRecord        `json:"rules"`
	Display            []string                   `json:"display"`
	FeatureImportances []models.FeatureImportance `json:"feature_importances"`
}

// prepare assigns an ID and creation time when missing and encodes the body
func prepare(report *models.Report, now func() time.Time) ([]byte, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now().UTC()
	}

	data, err := json.Marshal(body{
		Metadata:           report.Metadata,
		Rules:              report.Rules,
		Display:            report.Display,
		FeatureImportances: report.FeatureImportances,
	})
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

func decode(id string, data []byte) (*models.Report, error) {
	var b body
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &models.Report{
		ID:                 id,
		Metadata:           b.Metadata,
		Rules:              b.Rules,
		Display:            b.Display,
		FeatureImportances: b.FeatureImportances,
	}, nil
}

// validID rejects IDs that cannot name a stored report
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func limitOr(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
