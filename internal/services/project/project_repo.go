package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const projectColumns = `id, name, description, deadline, created_by, created_at`

const detailsQuery = `
	SELECT p.id, p.name, p.description, p.deadline, p.created_by, p.created_at,
		u.name AS created_by_name,
		(SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id) AS task_count
	FROM projects p
	JOIN users u ON u.id = p.created_by
`

// ProjectRepo handles database operations for projects
type ProjectRepo struct {
	db sqlx.ExtContext
}

// NewProjectRepo creates a new project repository
func NewProjectRepo(db sqlx.ExtContext) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) WithTx(tx *sqlx.Tx) *ProjectRepo {
	return &ProjectRepo{db: tx}
}

// Create creates a new project owned by createdBy
func (r *ProjectRepo) Create(ctx context.Context, req *CreateProjectRequest, createdBy uuid.UUID) (*Project, error) {
	query := `
        INSERT INTO projects (name, description, deadline, created_by)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + projectColumns

	var project Project
	err := sqlx.GetContext(ctx, r.db, &project, query, req.Name, req.Description, req.Deadline, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return &project, nil
}

// GetDetails retrieves a project with its creator name and task count
func (r *ProjectRepo) GetDetails(ctx context.Context, id uuid.UUID) (*ProjectDetails, error) {
	var details ProjectDetails
	err := sqlx.GetContext(ctx, r.db, &details, detailsQuery+`WHERE p.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &details, nil
}

// Exists reports whether the project row is present
func (r *ProjectRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}
	return exists, nil
}

// ListForMember retrieves the projects userID is a member of, newest first
func (r *ProjectRepo) ListForMember(ctx context.Context, userID uuid.UUID) ([]*ProjectDetails, error) {
	query := detailsQuery + `
	JOIN project_members m ON m.project_id = p.id AND m.user_id = $1
	ORDER BY p.created_at DESC
	`

	projects := []*ProjectDetails{}
	err := sqlx.SelectContext(ctx, r.db, &projects, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// Update updates the fields of req that are set
func (r *ProjectRepo) Update(ctx context.Context, id uuid.UUID, req *UpdateProjectRequest) error {
	setParts := []string{}
	args := []interface{}{}

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *req.Name)
	}

	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}

	if req.Deadline != nil {
		setParts = append(setParts, fmt.Sprintf("deadline = $%d", len(args)+1))
		args = append(args, *req.Deadline)
	}

	if len(setParts) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d`, strings.Join(setParts, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProjectNotFound
	}

	return nil
}

// Delete removes the project row. Children must already be gone; the foreign
// keys make this fail otherwise.
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project: %w", err)
	}

	return result.RowsAffected()
}
