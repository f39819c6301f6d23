package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MLNativeAI/PaperJet/constants"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
)

type WorkflowRepository interface {
	Insert(ctx context.Context, w *entity.Workflow) error
	GetByID(ctx context.Context, id string) (*entity.Workflow, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Workflow, error)
	Update(ctx context.Context, w *entity.Workflow) error
	Delete(ctx context.Context, id string) error
}

type workflowRepo struct {
	db  *DB
	log *slog.Logger
}

func NewWorkflowRepository(db *DB, log *slog.Logger) WorkflowRepository {
	return &workflowRepo{db: db, log: log}
}

func (r *workflowRepo) Insert(ctx context.Context, w *entity.Workflow) error {
	categories, configuration, sample, err := marshalWorkflowDocs(w)
	if err != nil {
		return err
	}
	_, err = r.db.sql.ExecContext(ctx, r.db.rebind(
		`INSERT INTO workflow
			(id, name, description, categories, configuration, sample_data, sample_data_extracted_at,
			 file_id, status, owner_id, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.Name, w.Description, categories, configuration, sample,
		formatTimePtr(w.SampleDataExtractedAt), w.FileID, string(w.Status), w.OwnerID,
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt), w.Version,
	)
	if err != nil {
		r.log.Error("workflow insert failed", "workflow_id", w.ID, "err", err)
		return fmt.Errorf("insert workflow: %w", err)
	}
	r.log.Info("workflow inserted", "workflow_id", w.ID, "status", w.Status)
	return nil
}

func (r *workflowRepo) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, name, description, categories, configuration, sample_data,
			sample_data_extracted_at, file_id, status, owner_id, created_at, updated_at, version
		 FROM workflow WHERE id = ?`), id)
	w, err := r.scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, common.ErrNotFound)
	}
	return w, err
}

func (r *workflowRepo) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Workflow, error) {
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(
		`SELECT id, name, description, categories, configuration, sample_data,
			sample_data_extracted_at, file_id, status, owner_id, created_at, updated_at, version
		 FROM workflow WHERE owner_id = ? ORDER BY created_at DESC`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []*entity.Workflow
	for rows.Next() {
		w, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Update writes the workflow wholesale: the configuration document is always
// persisted as one unit, never patched column by column. The write carries
// the version the caller read; if another writer bumped it since, the update
// fails with ErrStaleWrite and the caller re-reads and re-applies.
func (r *workflowRepo) Update(ctx context.Context, w *entity.Workflow) error {
	categories, configuration, sample, err := marshalWorkflowDocs(w)
	if err != nil {
		return err
	}
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`UPDATE workflow SET
			name = ?, description = ?, categories = ?, configuration = ?, sample_data = ?,
			sample_data_extracted_at = ?, status = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`),
		w.Name, w.Description, categories, configuration, sample,
		formatTimePtr(w.SampleDataExtractedAt), string(w.Status), formatTime(w.UpdatedAt), w.ID, w.Version,
	)
	if err != nil {
		r.log.Error("workflow update failed", "workflow_id", w.ID, "err", err)
		return fmt.Errorf("update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := r.db.sql.QueryRowContext(ctx, r.db.rebind(
			`SELECT 1 FROM workflow WHERE id = ?`), w.ID).Scan(&exists); err == nil {
			return fmt.Errorf("workflow %s version %d: %w", w.ID, w.Version, common.ErrStaleWrite)
		}
		return fmt.Errorf("workflow %s: %w", w.ID, common.ErrNotFound)
	}
	w.Version++
	return nil
}

func (r *workflowRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(`DELETE FROM workflow WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *workflowRepo) scanWorkflow(row rowScanner) (*entity.Workflow, error) {
	var (
		w                  entity.Workflow
		categories         string
		configuration      string
		sample             sql.NullString
		sampleAt           sql.NullString
		status             string
		createdAt, updated string
	)
	err := row.Scan(&w.ID, &w.Name, &w.Description, &categories, &configuration, &sample,
		&sampleAt, &w.FileID, &status, &w.OwnerID, &createdAt, &updated, &w.Version)
	if err != nil {
		return nil, err
	}

	w.Status = constants.WorkflowStatus(status)
	// A corrupt configuration document degrades to empty rather than failing
	// the read.
	w.Configuration = entity.ParseConfiguration([]byte(configuration), r.log)

	w.Categories = []entity.CategoryDefinition{}
	if err := json.Unmarshal([]byte(categories), &w.Categories); err != nil {
		r.log.Warn("workflow.categories.invalid", "workflow_id", w.ID, "error", err)
		w.Categories = []entity.CategoryDefinition{}
	}

	if sample.Valid && sample.String != "" {
		var res entity.ExtractionResult
		if err := json.Unmarshal([]byte(sample.String), &res); err != nil {
			r.log.Warn("workflow.sample_data.invalid", "workflow_id", w.ID, "error", err)
		} else {
			w.SampleData = &res
		}
	}
	if w.SampleDataExtractedAt, err = parseTimePtr(sampleAt); err != nil {
		return nil, fmt.Errorf("workflow %s sample_data_extracted_at: %w", w.ID, err)
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("workflow %s created_at: %w", w.ID, err)
	}
	if w.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("workflow %s updated_at: %w", w.ID, err)
	}
	return &w, nil
}

func marshalWorkflowDocs(w *entity.Workflow) (categories, configuration string, sample sql.NullString, err error) {
	cats := w.Categories
	if cats == nil {
		cats = []entity.CategoryDefinition{}
	}
	cb, err := json.Marshal(cats)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("marshal categories: %w", err)
	}
	cfgb, err := json.Marshal(w.Configuration)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("marshal configuration: %w", err)
	}
	if w.SampleData != nil {
		sb, err := json.Marshal(w.SampleData)
		if err != nil {
			return "", "", sql.NullString{}, fmt.Errorf("marshal sample data: %w", err)
		}
		sample = sql.NullString{String: string(sb), Valid: true}
	}
	return string(cb), string(cfgb), sample, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
