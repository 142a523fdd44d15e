package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/tarmac/pkg/models"
)

func openTestSQLite(t *testing.T) Repository {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "reports.db")
	repo, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func reportWithImportances(created time.Time, importances ...float64) *models.Report {
	r := newTestReport()
	r.CreatedAt = created
	r.FeatureImportances = nil
	for i, v := range importances {
		r.FeatureImportances = append(r.FeatureImportances, models.FeatureImportance{
			Feature:    string(rune('a' + i)),
			Importance: v,
		})
	}
	return r
}

func TestSQLiteRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo := openTestSQLite(t)

	report := newTestReport()
	require.NoError(t, repo.Save(ctx, report))
	require.NotEmpty(t, report.ID)

	got, err := repo.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Rules, got.Rules)
	assert.Equal(t, report.Display, got.Display)
	assert.Equal(t, report.Metadata, got.Metadata)
	assert.True(t, report.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := openTestSQLite(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, reportWithImportances(base.Add(time.Duration(i)*time.Hour), 1)))
	}

	summaries, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.True(t, summaries[0].CreatedAt.Equal(base.Add(2*time.Hour)))
	assert.True(t, summaries[1].CreatedAt.Equal(base.Add(time.Hour)))
}

func TestSQLiteRepository_FindSimilar(t *testing.T) {
	ctx := context.Background()
	repo := openTestSQLite(t)
	now := time.Now().UTC()

	target := reportWithImportances(now, 1, 0, 0)
	near := reportWithImportances(now.Add(time.Second), 0.9, 0.1, 0)
	far := reportWithImportances(now.Add(2*time.Second), 0, 0, 1)
	otherShape := reportWithImportances(now.Add(3*time.Second), 1, 0)
	for _, r := range []*models.Report{target, near, far, otherShape} {
		require.NoError(t, repo.Save(ctx, r))
	}

	results, err := repo.FindSimilar(ctx, target.ID, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID, results[0].Report.ID)
	assert.Equal(t, far.ID, results[1].Report.ID)
	assert.Greater(t, results[0].Similarity, 0.9)
	assert.InDelta(t, 0, results[1].Similarity, 1e-9)

	_, err = repo.FindSimilar(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := openTestSQLite(t)

	report := newTestReport()
	require.NoError(t, repo.Save(ctx, report))

	require.NoError(t, repo.Delete(ctx, report.ID))
	assert.ErrorIs(t, repo.Delete(ctx, report.ID), ErrNotFound)

	_, err := repo.Get(ctx, report.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
