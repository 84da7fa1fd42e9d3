package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Portfolio/internal/model"
)

// AccessRepository реализует доступ к таблице repo_access_requests
type AccessRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAccessRepository создаёт репозиторий запросов доступа
func NewAccessRepository(db *sql.DB) *AccessRepository {
	return &AccessRepository{db: db, now: time.Now}
}

const accessColumns = `id, project_id, email, name, company, message, status, created_at, approved_at`

func scanAccess(s scanner) (*model.AccessRequest, error) {
	var a model.AccessRequest
	var status string
	if err := s.Scan(&a.ID, &a.ProjectID, &a.Email, &a.Name, &a.Company, &a.Message, &status, &a.CreatedAt, &a.ApprovedAt); err != nil {
		return nil, err
	}
	a.Status = model.AccessStatus(status)
	return &a, nil
}

// CreateAccessRequest сохраняет новый запрос; createdAt выставляет хранилище
func (r *AccessRepository) CreateAccessRequest(ctx context.Context, a model.AccessRequest) (*model.AccessRequest, error) {
	a.CreatedAt = r.now().UnixMilli()
	if a.Status == "" {
		a.Status = model.AccessPending
	}
	query := `INSERT INTO repo_access_requests(project_id, email, name, company, message, status, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, a.ProjectID, a.Email, a.Name, a.Company, a.Message, string(a.Status), a.CreatedAt).
		Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert access request: %w", err)
	}
	return &a, nil
}

// SetAccessStatus меняет статус запроса и возвращает обновлённую запись
func (r *AccessRepository) SetAccessStatus(ctx context.Context, id int64, status model.AccessStatus, approvedAt *int64) (*model.AccessRequest, error) {
	query := `UPDATE repo_access_requests SET status=$1, approved_at=$2 WHERE id=$3 RETURNING ` + accessColumns
	a, err := scanAccess(r.db.QueryRowContext(ctx, query, string(status), approvedAt, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update access request: %w", err)
	}
	return a, nil
}

// ListAccessRequests возвращает запросы по проекту, новые первыми
func (r *AccessRepository) ListAccessRequests(ctx context.Context, projectID string) ([]model.AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accessColumns+` FROM repo_access_requests WHERE project_id=$1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to select access requests: %w", err)
	}
	defer rows.Close()
	out := []model.AccessRequest{}
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
