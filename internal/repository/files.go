package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
)

type FileRepository interface {
	Insert(ctx context.Context, f *entity.File) error
	GetByID(ctx context.Context, id string) (*entity.File, error)
	Delete(ctx context.Context, id string) error
}

type fileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewFileRepository(db *DB, logger *slog.Logger) FileRepository {
	return &fileRepo{db: db, logger: logger}
}

func (r *fileRepo) Insert(ctx context.Context, f *entity.File) error {
	_, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`INSERT INTO file (id, filename, owner_id, created_at) VALUES (?, ?, ?, ?)`),
		f.ID, f.Filename, f.OwnerID, formatTime(f.CreatedAt),
	)
	if err != nil {
		r.logger.Error("file insert failed", "file_id", f.ID, "err", err)
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*entity.File, error) {
	var (
		f         entity.File
		createdAt string
	)
	err := r.db.sql.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, filename, owner_id, created_at FROM file WHERE id = ?`), id).
		Scan(&f.ID, &f.Filename, &f.OwnerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("file %s created_at: %w", id, err)
	}
	return &f, nil
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(`DELETE FROM file WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}
	return nil
}
