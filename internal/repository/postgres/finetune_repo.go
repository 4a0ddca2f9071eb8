package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docbench/internal/domain"
	"docbench/internal/port"
)

type fineTuneRepo struct {
	db *sqlx.DB
}

// NewFineTuneRepo creates a new PostgreSQL-backed FineTuneRepository.
func NewFineTuneRepo(db *sqlx.DB) port.FineTuneRepository {
	return &fineTuneRepo{db: db}
}

func (r *fineTuneRepo) Create(ctx context.Context, rec *domain.FineTuneRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `INSERT INTO fine_tune_candidates
		(id, file_name, file_url, backend, document_type, expected_json, status, model_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.FileName, rec.FileURL, rec.Backend, rec.DocumentType,
		[]byte(rec.ExpectedJSON), rec.Status, rec.ModelID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("fineTuneRepo.Create: %w", err)
	}
	return nil
}

func (r *fineTuneRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FineTuneRecord, error) {
	var rec domain.FineTuneRecord
	err := r.db.GetContext(ctx, &rec, "SELECT * FROM fine_tune_candidates WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fineTuneRepo.GetByID: %w", err)
	}
	return &rec, nil
}

func (r *fineTuneRepo) ListByStatus(ctx context.Context, status domain.FineTuneStatus, offset, limit int) ([]domain.FineTuneRecord, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM fine_tune_candidates WHERE status = $1", status)
	if err != nil {
		return nil, 0, fmt.Errorf("fineTuneRepo.ListByStatus count: %w", err)
	}

	var records []domain.FineTuneRecord
	err = r.db.SelectContext(ctx, &records,
		`SELECT * FROM fine_tune_candidates
		 WHERE status = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("fineTuneRepo.ListByStatus: %w", err)
	}
	return records, total, nil
}

func (r *fineTuneRepo) UpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.FineTuneStatus, modelID *string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE fine_tune_candidates SET status = ?, model_id = COALESCE(?, model_id), updated_at = ? WHERE id IN (?)",
		status, modelID, time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("fineTuneRepo.UpdateStatus: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("fineTuneRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
