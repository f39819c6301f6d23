package export

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MLNativeAI/PaperJet/constants"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
	"github.com/MLNativeAI/PaperJet/internal/repository"
)

func seed(t *testing.T) (*Service, *entity.Execution) {
	t.Helper()
	logger := slog.Default()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	workflowRepo := repository.NewWorkflowRepository(db, logger)
	executionRepo := repository.NewExecutionRepository(db, logger)

	now := time.Now().UTC()
	w := &entity.Workflow{
		ID:   "wf_1",
		Name: "Invoices",
		Configuration: entity.WorkflowConfiguration{
			Fields: []entity.FieldDefinition{
				{ID: "fld_1", Name: "vendor", Type: entity.TypeText},
				{ID: "fld_2", Name: "total", Type: entity.TypeCurrency},
			},
			Tables: []entity.TableDefinition{
				{ID: "tbl_1", Name: "line_items", Columns: []entity.ColumnDefinition{
					{ID: "col_1", Name: "description", Type: entity.TypeText},
					{ID: "col_2", Name: "amount", Type: entity.TypeNumber},
				}},
			},
		},
		Categories: []entity.CategoryDefinition{},
		FileID:     "file_1",
		Status:     constants.WorkflowActive,
		OwnerID:    "user-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, workflowRepo.Insert(ctx, w))

	completedAt := now
	e := &entity.Execution{
		ID:           "exec_1",
		WorkflowID:   w.ID,
		WorkflowName: w.Name,
		Filename:     "batch.pdf",
		FileID:       "file_2",
		Status:       constants.ExecutionCompleted,
		StartedAt:    now.Add(-time.Minute),
		CompletedAt:  &completedAt,
		ExtractionResult: &entity.ExtractionResult{
			Fields: []entity.ExtractedValue{
				{FieldName: "vendor", Value: "ACME Corp"},
				{FieldName: "total", Value: float64(99.5)},
			},
			Tables: []entity.ExtractedTable{
				{TableName: "line_items", Rows: []entity.TableRow{
					{Values: map[string]any{"description": "widget", "amount": float64(99.5)}},
				}},
			},
		},
		OwnerID: "user-1",
	}
	require.NoError(t, executionRepo.Insert(ctx, e))

	return NewService(executionRepo, workflowRepo, logger), e
}

func TestExportExecutionXLSX(t *testing.T) {
	svc, e := seed(t)
	ctx := context.Background()

	t.Run("writes fields and one sheet per table", func(t *testing.T) {
		data, err := svc.ExportExecutionXLSX(ctx, e.ID, "user-1")
		require.NoError(t, err)

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()

		v, err := f.GetCellValue("Fields", "A2")
		require.NoError(t, err)
		assert.Equal(t, "vendor", v)
		v, err = f.GetCellValue("Fields", "B2")
		require.NoError(t, err)
		assert.Equal(t, "ACME Corp", v)

		// Table columns follow the configuration, not map iteration.
		v, err = f.GetCellValue("line_items", "A1")
		require.NoError(t, err)
		assert.Equal(t, "description", v)
		v, err = f.GetCellValue("line_items", "B1")
		require.NoError(t, err)
		assert.Equal(t, "amount", v)
		v, err = f.GetCellValue("line_items", "A2")
		require.NoError(t, err)
		assert.Equal(t, "widget", v)
	})

	t.Run("foreign executions look like absence", func(t *testing.T) {
		_, err := svc.ExportExecutionXLSX(ctx, e.ID, "user-2")
		assert.True(t, common.IsNotFound(err))
	})

	t.Run("unknown execution is not found", func(t *testing.T) {
		_, err := svc.ExportExecutionXLSX(ctx, "exec_ghost", "user-1")
		assert.True(t, common.IsNotFound(err))
	})
}

func TestExportRequiresResult(t *testing.T) {
	logger := slog.Default()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	executionRepo := repository.NewExecutionRepository(db, logger)
	workflowRepo := repository.NewWorkflowRepository(db, logger)
	require.NoError(t, executionRepo.Insert(ctx, &entity.Execution{
		ID: "exec_pending", WorkflowID: "wf_1", WorkflowName: "Invoices",
		Filename: "batch.pdf", FileID: "file_1",
		Status: constants.ExecutionPending, StartedAt: time.Now().UTC(), OwnerID: "user-1",
	}))

	svc := NewService(executionRepo, workflowRepo, logger)
	_, err = svc.ExportExecutionXLSX(ctx, "exec_pending", "user-1")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
