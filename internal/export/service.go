package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MLNativeAI/PaperJet/constants"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
	"github.com/MLNativeAI/PaperJet/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for
// extraction results.
type Service struct {
	executionRepo repository.ExecutionRepository
	workflowRepo  repository.WorkflowRepository
	logger        *slog.Logger
}

func NewService(executionRepo repository.ExecutionRepository, workflowRepo repository.WorkflowRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{executionRepo: executionRepo, workflowRepo: workflowRepo, logger: logger}
}

// ExportExecutionXLSX returns an XLSX workbook (as bytes) for one completed
// execution: a "Fields" sheet with name/value rows, then one sheet per table.
// Columns follow the workflow configuration's ordering, not map iteration.
func (s *Service) ExportExecutionXLSX(ctx context.Context, executionID, ownerID string) ([]byte, error) {
	start := time.Now()

	e, err := s.executionRepo.GetByID(ctx, executionID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("execution not found")
	}
	if err != nil {
		return nil, common.InternalErrorf("get execution: %v", err)
	}
	if e.OwnerID != ownerID {
		return nil, common.NotFoundError("execution not found")
	}
	if e.Status != constants.ExecutionCompleted || e.ExtractionResult == nil {
		return nil, common.FailedPreconditionError("execution has no result to export")
	}

	w, err := s.workflowRepo.GetByID(ctx, e.WorkflowID)
	if err != nil {
		return nil, common.InternalErrorf("get workflow: %v", err)
	}

	f := excelize.NewFile()
	const fieldsSheet = "Fields"
	if index, _ := f.GetSheetIndex(fieldsSheet); index == -1 {
		if _, err := f.NewSheet(fieldsSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(fieldsSheet)
	f.SetActiveSheet(activeIndex)

	writeCell := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	writeCell(fieldsSheet, 1, 1, "Field")
	writeCell(fieldsSheet, 2, 1, "Value")
	row := 2
	for _, fv := range e.ExtractionResult.Fields {
		writeCell(fieldsSheet, 1, row, fv.FieldName)
		writeCell(fieldsSheet, 2, row, cellValue(fv.Value))
		row++
	}
	_ = f.SetColWidth(fieldsSheet, "A", "A", 28)
	_ = f.SetColWidth(fieldsSheet, "B", "B", 48)

	for _, table := range e.ExtractionResult.Tables {
		columns := columnOrder(w.Configuration, table.TableName)
		if len(columns) == 0 {
			continue
		}
		sheet := sheetName(table.TableName)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		for i, col := range columns {
			writeCell(sheet, i+1, 1, col)
		}
		for r, tableRow := range table.Rows {
			for c, col := range columns {
				writeCell(sheet, c+1, r+2, cellValue(tableRow.Values[col]))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"execution_id", e.ID,
		"fields", len(e.ExtractionResult.Fields),
		"tables", len(e.ExtractionResult.Tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// columnOrder returns the table's column names in configuration order.
func columnOrder(cfg entity.WorkflowConfiguration, tableName string) []string {
	for _, t := range cfg.Tables {
		if t.Name == tableName {
			names := make([]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				names = append(names, c.Name)
			}
			return names
		}
	}
	return nil
}

func cellValue(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// sheetName keeps names inside excelize's 31-character sheet limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
