package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/db"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services/membership"
	"github.com/curaious/synergy/internal/services/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var ErrTaskNotFound = errors.New("task not found")

var tracer = otel.Tracer("TaskService")

// TaskService handles tasks. Every operation checks the actor's membership of
// the owning project inside the transaction that performs it.
type TaskService struct {
	conn    *sqlx.DB
	repo    *TaskRepo
	members *membership.MembershipRepo
	users   *user.UserRepo
}

func NewTaskService(conn *sqlx.DB, repo *TaskRepo, members *membership.MembershipRepo, users *user.UserRepo) *TaskService {
	return &TaskService{conn: conn, repo: repo, members: members, users: users}
}

// Create adds a task to projectID. The project row is share-locked so a
// concurrent project deletion either sees this task or makes this call fail
// with ErrProjectNotFound.
func (s *TaskService) Create(ctx context.Context, actor, projectID uuid.UUID, req *CreateTaskRequest) (*Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.Create")
	defer span.End()

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, perrors.Validation("title is required")
	}
	if req.Status == "" {
		req.Status = DefaultStatus
	}

	var task *Task
	err := db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		snap, err := s.members.WithTx(tx).Snapshot(ctx, projectID, actor, membership.LockShare)
		if err != nil {
			return err
		}
		if err := access.Check(actor, access.CreateTask, snap, access.ErrProjectNotFound); err != nil {
			return err
		}
		if err := s.checkAssignee(ctx, tx, req.AssigneeID); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		id, err := repo.Create(ctx, projectID, actor, req)
		if err != nil {
			return err
		}
		task, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("task_id", task.ID.String()))
	slog.InfoContext(ctx, "Created task", slog.String("task_id", task.ID.String()), slog.String("project_id", projectID.String()))

	return task, nil
}

// List returns the tasks of projectID.
func (s *TaskService) List(ctx context.Context, actor, projectID uuid.UUID) ([]*Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.List")
	defer span.End()

	var tasks []*Task
	err := db.WithReadTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		snap, err := s.members.WithTx(tx).Snapshot(ctx, projectID, actor, membership.LockNone)
		if err != nil {
			return err
		}
		if err := access.Check(actor, access.ReadTasks, snap, access.ErrProjectNotFound); err != nil {
			return err
		}
		tasks, err = s.repo.WithTx(tx).ListByProject(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// ListAssigned returns the tasks assigned to actor across the projects actor
// currently belongs to.
func (s *TaskService) ListAssigned(ctx context.Context, actor uuid.UUID) ([]*Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.ListAssigned")
	defer span.End()

	if actor == uuid.Nil {
		return nil, access.ErrUnauthenticated
	}
	return s.repo.ListAssigned(ctx, actor)
}

// Update applies the set fields of req. Any member of the owning project may
// update a task.
func (s *TaskService) Update(ctx context.Context, actor, taskID uuid.UUID, req *UpdateTaskRequest) (*Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.Update")
	defer span.End()

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, perrors.Validation("title must not be empty")
		}
		req.Title = &title
	}
	if req.Status != nil && strings.TrimSpace(*req.Status) == "" {
		return nil, perrors.Validation("status must not be empty")
	}

	var task *Task
	err := db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		projectID, err := s.authorize(ctx, tx, actor, taskID, access.UpdateTask)
		if err != nil {
			return err
		}
		if err := s.checkAssignee(ctx, tx, req.AssigneeID); err != nil {
			return err
		}
		if err := repo.Update(ctx, projectID, taskID, req); err != nil {
			return err
		}
		task, err = repo.GetByID(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// Delete removes a task. Any member of the owning project may delete it.
func (s *TaskService) Delete(ctx context.Context, actor, taskID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "TaskService.Delete")
	defer span.End()

	return db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		projectID, err := s.authorize(ctx, tx, actor, taskID, access.DeleteTask)
		if err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Delete(ctx, projectID, taskID); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Deleted task", slog.String("task_id", taskID.String()), slog.String("project_id", projectID.String()))
		return nil
	})
}

// authorize resolves the task's project, share-locks it and checks action.
// A task whose project the actor cannot see, or that vanished with its
// project, is reported as ErrTaskNotFound.
func (s *TaskService) authorize(ctx context.Context, tx *sqlx.Tx, actor, taskID uuid.UUID, action access.Action) (uuid.UUID, error) {
	projectID, err := s.repo.WithTx(tx).ProjectOf(ctx, taskID)
	if err != nil {
		return uuid.Nil, err
	}

	snap, err := s.members.WithTx(tx).Snapshot(ctx, projectID, actor, membership.LockShare)
	if err != nil {
		if errors.Is(err, access.ErrProjectNotFound) {
			return uuid.Nil, ErrTaskNotFound
		}
		return uuid.Nil, err
	}

	if err := access.Check(actor, action, snap, ErrTaskNotFound); err != nil {
		return uuid.Nil, err
	}
	return projectID, nil
}

func (s *TaskService) checkAssignee(ctx context.Context, tx *sqlx.Tx, assigneeID *uuid.UUID) error {
	if assigneeID == nil {
		return nil
	}
	ok, err := s.users.WithTx(tx).Exists(ctx, *assigneeID)
	if err != nil {
		return err
	}
	if !ok {
		return perrors.Validation("assignee %s does not exist", assigneeID)
	}
	return nil
}
