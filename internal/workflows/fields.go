package workflows

import (
	"context"
	"errors"
	"time"

	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
	"github.com/MLNativeAI/PaperJet/internal/utils"
)

// Configuration edits are sparse patches applied under optimistic
// concurrency: each attempt re-reads the workflow, applies the patch, and
// writes the whole configuration document back carrying the version it read.
// A stale write re-reads and re-applies, bounded by staleRetries.

const staleRetries = 3

// CreateFieldRequest describes a new field. CategoryID is required and must
// resolve to a category on the workflow.
type CreateFieldRequest struct {
	Name        string
	Description string
	Type        entity.FieldType
	Required    bool
	CategoryID  string
}

// FieldPatch carries only the keys to change; nil means "keep".
type FieldPatch struct {
	Name        *string
	Description *string
	Type        *entity.FieldType
	Required    *bool
	CategoryID  *string
}

// ColumnInput is one column of a table create or update. On update, an empty
// ID reuses the id of the existing column at the same position when there is
// one, and mints a fresh id otherwise.
type ColumnInput struct {
	ID          string
	Name        string
	Description string
	Type        entity.FieldType
}

// CreateTableRequest describes a new table; at least one column.
type CreateTableRequest struct {
	Name        string
	Description string
	CategoryID  string
	Columns     []ColumnInput
}

// TablePatch carries only the keys to change; nil means "keep". A non-nil
// Columns replaces the column list, reconciling ids by position.
type TablePatch struct {
	Name        *string
	Description *string
	CategoryID  *string
	Columns     []ColumnInput
}

// CreateField appends a field to the configuration.
func (s *Service) CreateField(ctx context.Context, workflowID, ownerID string, req CreateFieldRequest) (*entity.FieldDefinition, error) {
	if req.CategoryID == "" {
		return nil, common.InvalidArgumentError("field category is required")
	}
	field := entity.FieldDefinition{
		ID:           utils.NewID(utils.PrefixField),
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Required:     req.Required,
		CategoryID:   req.CategoryID,
		LastModified: time.Now().UTC().Format(time.RFC3339),
	}

	w, err := s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		w.Configuration.Fields = append(w.Configuration.Fields, field)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workflow.field.created", "workflow_id", w.ID, "field_id", field.ID, "name", field.Name)
	return &field, nil
}

// UpdateField merges the supplied keys onto the existing field. The id is
// re-pinned to the original and lastModified is always refreshed; every
// other field and table is written back untouched.
func (s *Service) UpdateField(ctx context.Context, workflowID, fieldID, ownerID string, patch FieldPatch) (*entity.FieldDefinition, error) {
	var field entity.FieldDefinition
	w, err := s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		idx := w.Configuration.FieldByID(fieldID)
		if idx == -1 {
			return common.NotFoundError("field not found")
		}
		field = w.Configuration.Fields[idx]
		if patch.Name != nil {
			field.Name = *patch.Name
		}
		if patch.Description != nil {
			field.Description = *patch.Description
		}
		if patch.Type != nil {
			field.Type = *patch.Type
		}
		if patch.Required != nil {
			field.Required = *patch.Required
		}
		if patch.CategoryID != nil {
			field.CategoryID = *patch.CategoryID
		}
		field.ID = fieldID // callers cannot change an id via update
		field.LastModified = time.Now().UTC().Format(time.RFC3339)
		w.Configuration.Fields[idx] = field
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workflow.field.updated", "workflow_id", w.ID, "field_id", fieldID)
	return &field, nil
}

// DeleteField removes a field, leaving every other entity untouched.
func (s *Service) DeleteField(ctx context.Context, workflowID, fieldID, ownerID string) error {
	w, err := s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		idx := w.Configuration.FieldByID(fieldID)
		if idx == -1 {
			return common.NotFoundError("field not found")
		}
		w.Configuration.Fields = append(w.Configuration.Fields[:idx], w.Configuration.Fields[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("workflow.field.deleted", "workflow_id", w.ID, "field_id", fieldID)
	return nil
}

// CreateTable appends a table to the configuration.
func (s *Service) CreateTable(ctx context.Context, workflowID, ownerID string, req CreateTableRequest) (*entity.TableDefinition, error) {
	if req.CategoryID == "" {
		return nil, common.InvalidArgumentError("table category is required")
	}
	columns := make([]entity.ColumnDefinition, 0, len(req.Columns))
	for _, col := range req.Columns {
		id := col.ID
		if id == "" {
			id = utils.NewID(utils.PrefixColumn)
		}
		columns = append(columns, entity.ColumnDefinition{
			ID:          id,
			Name:        col.Name,
			Description: col.Description,
			Type:        col.Type,
		})
	}
	table := entity.TableDefinition{
		ID:           utils.NewID(utils.PrefixTable),
		Name:         req.Name,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		Columns:      columns,
		LastModified: time.Now().UTC().Format(time.RFC3339),
	}

	w, err := s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		w.Configuration.Tables = append(w.Configuration.Tables, table)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workflow.table.created", "workflow_id", w.ID, "table_id", table.ID, "name", table.Name)
	return &table, nil
}

// UpdateTable merges the supplied keys onto the existing table. Incoming
// columns are reconciled by position against the existing ones: a supplied
// id wins, a missing id reuses the prior column's id at that position, and
// anything beyond the prior list gets a fresh id.
func (s *Service) UpdateTable(ctx context.Context, workflowID, tableID, ownerID string, patch TablePatch) (*entity.TableDefinition, error) {
	var table entity.TableDefinition
	w, err := s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		idx := w.Configuration.TableByID(tableID)
		if idx == -1 {
			return common.NotFoundError("table not found")
		}
		table = w.Configuration.Tables[idx]
		if patch.Name != nil {
			table.Name = *patch.Name
		}
		if patch.Description != nil {
			table.Description = *patch.Description
		}
		if patch.CategoryID != nil {
			table.CategoryID = *patch.CategoryID
		}
		if patch.Columns != nil {
			columns := make([]entity.ColumnDefinition, 0, len(patch.Columns))
			for i, col := range patch.Columns {
				id := col.ID
				if id == "" && i < len(table.Columns) {
					id = table.Columns[i].ID
				}
				if id == "" {
					id = utils.NewID(utils.PrefixColumn)
				}
				columns = append(columns, entity.ColumnDefinition{
					ID:          id,
					Name:        col.Name,
					Description: col.Description,
					Type:        col.Type,
				})
			}
			table.Columns = columns
		}
		table.ID = tableID // callers cannot change an id via update
		table.LastModified = time.Now().UTC().Format(time.RFC3339)
		w.Configuration.Tables[idx] = table
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workflow.table.updated", "workflow_id", w.ID, "table_id", tableID)
	return &table, nil
}

// DeleteTable removes a table, leaving every other entity untouched.
func (s *Service) DeleteTable(ctx context.Context, workflowID, tableID, ownerID string) error {
	w, err := s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		idx := w.Configuration.TableByID(tableID)
		if idx == -1 {
			return common.NotFoundError("table not found")
		}
		w.Configuration.Tables = append(w.Configuration.Tables[:idx], w.Configuration.Tables[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("workflow.table.deleted", "workflow_id", w.ID, "table_id", tableID)
	return nil
}

// applyConfigPatch runs one optimistic read-merge-write cycle per attempt:
// fetch the owned workflow, let mutate patch it, validate, write back with
// the version read. A concurrent writer surfaces as a stale write; the patch
// is re-applied against the fresh document.
func (s *Service) applyConfigPatch(ctx context.Context, workflowID, ownerID string, mutate func(w *entity.Workflow) error) (*entity.Workflow, error) {
	for attempt := 1; ; attempt++ {
		w, err := s.getOwned(ctx, workflowID, ownerID)
		if err != nil {
			return nil, err
		}
		if err := mutate(w); err != nil {
			return nil, err
		}
		err = s.saveConfiguration(ctx, w)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, common.ErrStaleWrite) {
			return nil, err
		}
		if attempt >= staleRetries {
			return nil, common.AbortedError("workflow was modified concurrently")
		}
		s.logger.Warn("workflow.config.stale_retry", "workflow_id", workflowID, "attempt", attempt)
	}
}

// saveConfiguration validates and writes the whole configuration document as
// one unit. Status is never touched by configuration edits. Stale writes
// pass through for the caller's retry loop.
func (s *Service) saveConfiguration(ctx context.Context, w *entity.Workflow) error {
	if err := common.ValidateConfiguration(w.Configuration); err != nil {
		return err
	}
	if err := common.ValidateCategoryRefs(w.Configuration, w.Categories); err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()
	if err := s.workflowRepo.Update(ctx, w); err != nil {
		if errors.Is(err, common.ErrStaleWrite) {
			return err
		}
		return common.InternalErrorf("save configuration: %v", err)
	}
	return nil
}
