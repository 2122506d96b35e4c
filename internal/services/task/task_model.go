package task

import (
	"time"

	"github.com/google/uuid"
)

const DefaultStatus = "To-Do"

type Task struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ProjectID    uuid.UUID  `json:"project_id" db:"project_id"`
	Title        string     `json:"title" db:"title"`
	Description  *string    `json:"description,omitempty" db:"description"`
	AssigneeID   *uuid.UUID `json:"assignee_id,omitempty" db:"assignee_id"`
	AssigneeName *string    `json:"assignee_name,omitempty" db:"assignee_name"`
	DueDate      *time.Time `json:"due_date,omitempty" db:"due_date"`
	Status       string     `json:"status" db:"status"`
	CreatedBy    uuid.UUID  `json:"created_by" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// CreateTaskRequest captures payload for creating a task
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status,omitempty"`
}

// UpdateTaskRequest captures payload for updating a task. Nil fields keep
// their current value.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      *string    `json:"status,omitempty"`
}
