package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MLNativeAI/PaperJet/constants"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
)

type ExecutionRepository interface {
	Insert(ctx context.Context, e *entity.Execution) error
	GetByID(ctx context.Context, id string) (*entity.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Execution, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Execution, error)
	Update(ctx context.Context, e *entity.Execution) error
	Delete(ctx context.Context, id string) error
}

type executionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExecutionRepository(db *DB, log *slog.Logger) ExecutionRepository {
	return &executionRepo{db: db, log: log}
}

const executionColumns = `id, workflow_id, workflow_name, filename, file_id, status,
	started_at, completed_at, error_message, extraction_result, owner_id`

func (r *executionRepo) Insert(ctx context.Context, e *entity.Execution) error {
	result, err := marshalResult(e.ExtractionResult)
	if err != nil {
		return err
	}
	_, err = r.db.sql.ExecContext(ctx, r.db.rebind(
		`INSERT INTO execution (`+executionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.WorkflowID, e.WorkflowName, e.Filename, e.FileID, string(e.Status),
		formatTime(e.StartedAt), formatTimePtr(e.CompletedAt), nullString(e.ErrorMessage),
		result, e.OwnerID,
	)
	if err != nil {
		r.log.Error("execution insert failed", "execution_id", e.ID, "err", err)
		return fmt.Errorf("insert execution: %w", err)
	}
	r.log.Info("execution inserted", "execution_id", e.ID, "workflow_id", e.WorkflowID, "status", e.Status)
	return nil
}

func (r *executionRepo) GetByID(ctx context.Context, id string) (*entity.Execution, error) {
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+executionColumns+` FROM execution WHERE id = ?`), id)
	e, err := r.scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, common.ErrNotFound)
	}
	return e, err
}

func (r *executionRepo) ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Execution, error) {
	return r.list(ctx, `SELECT `+executionColumns+` FROM execution WHERE workflow_id = ? ORDER BY started_at DESC`, workflowID)
}

func (r *executionRepo) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Execution, error) {
	return r.list(ctx, `SELECT `+executionColumns+` FROM execution WHERE owner_id = ? ORDER BY started_at DESC`, ownerID)
}

func (r *executionRepo) list(ctx context.Context, query string, arg any) ([]*entity.Execution, error) {
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*entity.Execution
	for rows.Next() {
		e, err := r.scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *executionRepo) Update(ctx context.Context, e *entity.Execution) error {
	result, err := marshalResult(e.ExtractionResult)
	if err != nil {
		return err
	}
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`UPDATE execution SET status = ?, completed_at = ?, error_message = ?, extraction_result = ?
		 WHERE id = ?`),
		string(e.Status), formatTimePtr(e.CompletedAt), nullString(e.ErrorMessage), result, e.ID,
	)
	if err != nil {
		r.log.Error("execution update failed", "execution_id", e.ID, "err", err)
		return fmt.Errorf("update execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("execution %s: %w", e.ID, common.ErrNotFound)
	}
	return nil
}

func (r *executionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(`DELETE FROM execution WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("execution %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *executionRepo) scanExecution(row rowScanner) (*entity.Execution, error) {
	var (
		e           entity.Execution
		status      string
		startedAt   string
		completedAt sql.NullString
		errMsg      sql.NullString
		result      sql.NullString
	)
	err := row.Scan(&e.ID, &e.WorkflowID, &e.WorkflowName, &e.Filename, &e.FileID, &status,
		&startedAt, &completedAt, &errMsg, &result, &e.OwnerID)
	if err != nil {
		return nil, err
	}

	e.Status = constants.ExecutionStatus(status)
	if e.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("execution %s started_at: %w", e.ID, err)
	}
	if e.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("execution %s completed_at: %w", e.ID, err)
	}
	if errMsg.Valid {
		e.ErrorMessage = &errMsg.String
	}
	if result.Valid && result.String != "" {
		var res entity.ExtractionResult
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			r.log.Warn("execution.result.invalid", "execution_id", e.ID, "error", err)
		} else {
			e.ExtractionResult = &res
		}
	}
	return &e, nil
}

func marshalResult(res *entity.ExtractionResult) (sql.NullString, error) {
	if res == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal extraction result: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
