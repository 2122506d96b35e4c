package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const taskView = `
	SELECT t.id, t.project_id, t.title, t.description, t.assignee_id, a.name AS assignee_name,
		t.due_date, t.status, t.created_by, t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN users a ON a.id = t.assignee_id
`

// TaskRepo handles database operations for tasks
type TaskRepo struct {
	db sqlx.ExtContext
}

func NewTaskRepo(db sqlx.ExtContext) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) WithTx(tx *sqlx.Tx) *TaskRepo {
	return &TaskRepo{db: tx}
}

func (r *TaskRepo) Create(ctx context.Context, projectID, createdBy uuid.UUID, req *CreateTaskRequest) (uuid.UUID, error) {
	query := `
		INSERT INTO tasks (project_id, title, description, assignee_id, due_date, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id uuid.UUID
	err := sqlx.GetContext(ctx, r.db, &id, query, projectID, req.Title, req.Description, req.AssigneeID, req.DueDate, req.Status, createdBy)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}
	return id, nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	var task Task
	err := sqlx.GetContext(ctx, r.db, &task, taskView+`WHERE t.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// ProjectOf returns the project a task belongs to.
func (r *TaskRepo) ProjectOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var projectID uuid.UUID
	err := sqlx.GetContext(ctx, r.db, &projectID, `SELECT project_id FROM tasks WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrTaskNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get task: %w", err)
	}
	return projectID, nil
}

// ListByProject lists the tasks of a project, oldest first
func (r *TaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Task, error) {
	tasks := []*Task{}
	err := sqlx.SelectContext(ctx, r.db, &tasks, taskView+`WHERE t.project_id = $1 ORDER BY t.created_at, t.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// ListAssigned lists tasks assigned to userID in projects userID is a member of
func (r *TaskRepo) ListAssigned(ctx context.Context, userID uuid.UUID) ([]*Task, error) {
	query := taskView + `
	JOIN project_members m ON m.project_id = t.project_id AND m.user_id = $1
	WHERE t.assignee_id = $1
	ORDER BY t.due_date NULLS LAST, t.created_at
	`
	tasks := []*Task{}
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list assigned tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the set fields of req to a task of projectID and refreshes
// updated_at.
func (r *TaskRepo) Update(ctx context.Context, projectID, id uuid.UUID, req *UpdateTaskRequest) error {
	setParts := []string{}
	args := []interface{}{}

	if req.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, *req.Title)
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}
	if req.AssigneeID != nil {
		setParts = append(setParts, fmt.Sprintf("assignee_id = $%d", len(args)+1))
		args = append(args, *req.AssigneeID)
	}
	if req.DueDate != nil {
		setParts = append(setParts, fmt.Sprintf("due_date = $%d", len(args)+1))
		args = append(args, *req.DueDate)
	}
	if req.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *req.Status)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id, projectID)

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND project_id = $%d`,
		strings.Join(setParts, ", "), len(args)-1, len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// LockForRemoval locks and returns the ids of every task in projectID.
func (r *TaskRepo) LockForRemoval(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := sqlx.SelectContext(ctx, r.db, &ids, `SELECT id FROM tasks WHERE project_id = $1 ORDER BY id FOR UPDATE`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock tasks: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes the given tasks of projectID and returns how many went.
func (r *TaskRepo) DeleteByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = $1 AND id = ANY($2)`, projectID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return result.RowsAffected()
}
