package repository

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLNativeAI/PaperJet/constants"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.Default()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func testWorkflow() *entity.Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)
	sampleAt := now.Add(-time.Minute)
	sample := entity.ExtractionResult{
		Fields: []entity.ExtractedValue{{FieldName: "vendor", Value: "ACME"}},
		Tables: []entity.ExtractedTable{},
	}
	return &entity.Workflow{
		ID:          "wf_test",
		Name:        "Invoices",
		Description: "Invoice extraction",
		Categories: []entity.CategoryDefinition{
			{CategoryID: "cat_1", DisplayName: "General", Ordinal: 1},
		},
		Configuration: entity.WorkflowConfiguration{
			Fields: []entity.FieldDefinition{
				{ID: "fld_1", Name: "vendor", Description: "Vendor", Type: entity.TypeText, Required: true, CategoryID: "cat_1", LastModified: "2026-01-01T00:00:00Z"},
			},
			Tables: []entity.TableDefinition{
				{ID: "tbl_1", Name: "line_items", CategoryID: "cat_1", LastModified: "2026-01-01T00:00:00Z",
					Columns: []entity.ColumnDefinition{{ID: "col_1", Name: "amount", Type: entity.TypeNumber}}},
			},
		},
		SampleData:            &sample,
		SampleDataExtractedAt: &sampleAt,
		FileID:                "file_test",
		Status:                constants.WorkflowConfiguring,
		OwnerID:               "user-1",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewWorkflowRepository(db, slog.Default())
	ctx := context.Background()

	w := testWorkflow()
	require.NoError(t, repo.Insert(ctx, w))

	got, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)

	assert.Equal(t, w.Name, got.Name)
	assert.Equal(t, w.Status, got.Status)
	assert.Equal(t, w.Categories, got.Categories)
	assert.Equal(t, w.Configuration, got.Configuration)
	require.NotNil(t, got.SampleData)
	assert.Equal(t, "vendor", got.SampleData.Fields[0].FieldName)
	require.NotNil(t, got.SampleDataExtractedAt)
	assert.True(t, got.SampleDataExtractedAt.Equal(*w.SampleDataExtractedAt))
	assert.True(t, got.CreatedAt.Equal(w.CreatedAt))

	t.Run("update rewrites the documents wholesale", func(t *testing.T) {
		got.Status = constants.WorkflowActive
		got.Configuration.Fields[0].Required = false
		require.NoError(t, repo.Update(ctx, got))
		assert.Equal(t, int64(1), got.Version)

		again, err := repo.GetByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.WorkflowActive, again.Status)
		assert.False(t, again.Configuration.Fields[0].Required)
		assert.Equal(t, int64(1), again.Version)
	})

	t.Run("a stale version is rejected", func(t *testing.T) {
		stale := *got
		stale.Version = 0 // got is at version 1 by now
		err := repo.Update(ctx, &stale)
		assert.True(t, errors.Is(err, common.ErrStaleWrite))
	})

	t.Run("list is owner-scoped and newest first", func(t *testing.T) {
		ws, err := repo.ListByOwner(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, ws, 1)

		none, err := repo.ListByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, w.ID))
		_, err := repo.GetByID(ctx, w.ID)
		assert.True(t, errors.Is(err, common.ErrNotFound))
		assert.True(t, errors.Is(repo.Delete(ctx, w.ID), common.ErrNotFound))
	})
}

func TestWorkflowMissing(t *testing.T) {
	db := openTestDB(t)
	repo := NewWorkflowRepository(db, slog.Default())

	_, err := repo.GetByID(context.Background(), "wf_ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestWorkflowCorruptConfiguration(t *testing.T) {
	db := openTestDB(t)
	repo := NewWorkflowRepository(db, slog.Default())
	ctx := context.Background()

	w := testWorkflow()
	require.NoError(t, repo.Insert(ctx, w))

	_, err := db.sql.ExecContext(ctx, db.rebind(
		`UPDATE workflow SET configuration = ? WHERE id = ?`), `{not json`, w.ID)
	require.NoError(t, err)

	// A corrupt document degrades to an empty configuration; the read and
	// everything around it still succeeds.
	got, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Configuration.Fields)
	assert.Empty(t, got.Configuration.Tables)
	assert.NotNil(t, got.Configuration.Fields)
	assert.Equal(t, w.Name, got.Name)
}

func TestRebind(t *testing.T) {
	db := &DB{dialect: dialectPostgres}
	assert.Equal(t, `SELECT * FROM workflow WHERE id = $1 AND owner_id = $2`,
		db.rebind(`SELECT * FROM workflow WHERE id = ? AND owner_id = ?`))

	sqlite := &DB{dialect: dialectSQLite}
	assert.Equal(t, `SELECT ?`, sqlite.rebind(`SELECT ?`))
}
