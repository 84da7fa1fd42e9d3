package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"Portfolio/internal/model"
)

// ErrNotFound возвращается при отсутствии записи
var ErrNotFound = errors.New("record not found")

// ErrDuplicateID возвращается при вставке проекта с уже существующим id
var ErrDuplicateID = errors.New("project id already exists")

// ErrEmptyTitle возвращается при попытке сохранить проект с пустым заголовком
var ErrEmptyTitle = &emptyTitleError{}

type emptyTitleError struct{}

func (e *emptyTitleError) Error() string {
	return "title cannot be empty"
}

func (e *emptyTitleError) Is(target error) bool {
	return target != nil && target.Error() == e.Error()
}

// uniqueViolation код ошибки Postgres для нарушения уникальности
const uniqueViolation = "23505"

// projectColumns порядок столбцов совпадает с scanProject
const projectColumns = `_id, id, title, description, tags, year, type, status, visible, featured,
	sort_order, image, slug, role, duration, metrics, github_url, repo_access, hide_repo_button,
	stars, language, demo_url, app_url, link, note, created_at, updated_at`

// canonicalOrder повторяет порядок ordering.Sort на стороне БД
const canonicalOrder = `ORDER BY COALESCE(sort_order, 9999), COALESCE(NULLIF(updated_at, 0), created_at) DESC`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*model.Project, error) {
	var p model.Project
	var typ, status, access string
	err := s.Scan(&p.StoreID, &p.ID, &p.Title, &p.Description, pq.Array(&p.Tags), &p.Year, &typ, &status,
		&p.Visible, &p.Featured, &p.Order, &p.Image, &p.Slug, &p.Role, &p.Duration, pq.Array(&p.Metrics),
		&p.GithubURL, &access, &p.HideRepoButton, &p.Stars, &p.Language, &p.DemoURL, &p.AppURL,
		&p.Link, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = model.ProjectType(typ)
	p.Status = model.ProjectStatus(status)
	p.RepoAccess = model.RepoAccess(access)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// ProjectRepository реализует доступ к таблице projects
type ProjectRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewProjectRepository создаёт новый репозиторий проектов
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db, now: time.Now}
}

// CreateProject добавляет проект; createdAt и updatedAt выставляет хранилище
func (r *ProjectRepository) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	if p.Title == "" {
		return nil, ErrEmptyTitle
	}
	now := r.now().UnixMilli()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Tags == nil {
		p.Tags = []string{}
	}
	query := `INSERT INTO projects(id, title, description, tags, year, type, status, visible, featured,
		sort_order, image, slug, role, duration, metrics, github_url, repo_access, hide_repo_button,
		stars, language, demo_url, app_url, link, note, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING _id`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Title, p.Description, pq.Array(p.Tags), p.Year,
		string(p.Type), string(p.Status), p.Visible, p.Featured, p.Order, p.Image, p.Slug, p.Role,
		p.Duration, pq.Array(p.Metrics), p.GithubURL, string(p.RepoAccess), p.HideRepoButton, p.Stars,
		p.Language, p.DemoURL, p.AppURL, p.Link, p.Note, p.CreatedAt, p.UpdatedAt).Scan(&p.StoreID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return &p, nil
}

// GetProject возвращает проект по внешнему id
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects возвращает проекты в каноническом порядке; onlyVisible отбирает видимые
func (r *ProjectRepository) ListProjects(ctx context.Context, onlyVisible bool) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects `
	if onlyVisible {
		query += `WHERE visible=true `
	}
	query += canonicalOrder
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	defer rows.Close()
	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// UpdateProject применяет частичное обновление под блокировкой строки.
// Поля вне патча сохраняются как есть, updatedAt обновляется
func (r *ProjectRepository) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	// выборка с блокировкой
	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1 FOR UPDATE`, id)
	current, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to select project for update: %w", err)
	}
	p := patch.Apply(*current)
	if p.Title == "" {
		return nil, ErrEmptyTitle
	}
	p.UpdatedAt = r.now().UnixMilli()
	updateQuery := `UPDATE projects SET title=$1, description=$2, tags=$3, year=$4, type=$5, status=$6,
		visible=$7, featured=$8, sort_order=$9, github_url=$10, repo_access=$11, hide_repo_button=$12,
		demo_url=$13, app_url=$14, updated_at=$15 WHERE id=$16`
	_, err = tx.ExecContext(ctx, updateQuery, p.Title, p.Description, pq.Array(p.Tags), p.Year,
		string(p.Type), string(p.Status), p.Visible, p.Featured, p.Order, p.GithubURL,
		string(p.RepoAccess), p.HideRepoButton, p.DemoURL, p.AppURL, p.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &p, nil
}

// DeleteProject удаляет проект без возможности восстановления
func (r *ProjectRepository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapOrder атомарно меняет местами ранги двух проектов.
// Обе строки блокируются в одном порядке, поэтому промежуточного дубля ранга не видно
func (r *ProjectRepository) SwapOrder(ctx context.Context, idA, idB string) ([]model.OrderUpdate, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	rows, err := tx.QueryContext(ctx,
		`SELECT id, COALESCE(sort_order, 9999) FROM projects WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`, idA, idB)
	if err != nil {
		return nil, fmt.Errorf("failed to lock projects for swap: %w", err)
	}
	orders := make(map[string]int, 2)
	for rows.Next() {
		var id string
		var order int
		if err := rows.Scan(&id, &order); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan project order: %w", err)
		}
		orders[id] = order
	}
	rows.Close()
	orderA, okA := orders[idA]
	orderB, okB := orders[idB]
	if !okA || !okB {
		return nil, ErrNotFound
	}
	now := r.now().UnixMilli()
	updates := []model.OrderUpdate{{ID: idA, Order: orderB}, {ID: idB, Order: orderA}}
	for _, u := range updates {
		_, err := tx.ExecContext(ctx, `UPDATE projects SET sort_order=$1, updated_at=$2 WHERE id=$3`, u.Order, now, u.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update project order: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updates, nil
}

// UpsertSynced создаёт или обновляет проект, импортированный из GitHub.
// При обновлении меняются только поля из GitHub, ранг, видимость и createdAt сохраняются
func (r *ProjectRepository) UpsertSynced(ctx context.Context, p model.Project) (model.SyncAction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	now := r.now().UnixMilli()
	var storeID int64
	err = tx.QueryRowContext(ctx, `SELECT _id FROM projects WHERE id=$1 FOR UPDATE`, p.ID).Scan(&storeID)
	action := model.SyncUpdated
	switch {
	case err == sql.ErrNoRows:
		action = model.SyncCreated
		_, err = tx.ExecContext(ctx, `INSERT INTO projects(id, title, description, tags, year, type, status,
			visible, featured, sort_order, github_url, repo_access, hide_repo_button, stars, language, demo_url,
			created_at, updated_at)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			p.ID, p.Title, p.Description, pq.Array(p.Tags), p.Year, string(p.Type), string(p.Status),
			p.Visible, p.Featured, p.Order, p.GithubURL, string(p.RepoAccess), p.HideRepoButton, p.Stars,
			p.Language, p.DemoURL, now, now)
		if err != nil {
			return "", fmt.Errorf("failed to insert synced project: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to select synced project: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `UPDATE projects SET title=$1, description=$2, tags=$3, github_url=$4,
			stars=$5, language=$6, demo_url=$7, updated_at=$8 WHERE id=$9`,
			p.Title, p.Description, pq.Array(p.Tags), p.GithubURL, p.Stars, p.Language, p.DemoURL, now, p.ID)
		if err != nil {
			return "", fmt.Errorf("failed to update synced project: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return action, nil
}
