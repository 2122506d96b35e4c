// Package cascade removes a project and everything attached to it as one unit
// of work.
//
// The project row is locked FOR UPDATE before anything is enumerated. Writers
// that attach tasks, comments or members take FOR SHARE on the same row, so
// they either commit before the enumeration (and are removed with it) or wait
// and then find the project gone.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/db"
	"github.com/curaious/synergy/internal/services/comment"
	"github.com/curaious/synergy/internal/services/membership"
	"github.com/curaious/synergy/internal/services/project"
	"github.com/curaious/synergy/internal/services/task"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrCountMismatch means a delete removed a different number of rows than were
// enumerated under lock. The whole cascade is rolled back.
var ErrCountMismatch = errors.New("cascade removed an unexpected number of rows")

var tracer = otel.Tracer("CascadeCoordinator")

type Coordinator struct {
	conn     *sqlx.DB
	projects *project.ProjectRepo
	members  *membership.MembershipRepo
	tasks    *task.TaskRepo
	comments *comment.CommentRepo
}

func NewCoordinator(conn *sqlx.DB, projects *project.ProjectRepo, members *membership.MembershipRepo, tasks *task.TaskRepo, comments *comment.CommentRepo) *Coordinator {
	return &Coordinator{conn: conn, projects: projects, members: members, tasks: tasks, comments: comments}
}

// DeleteProject locks projectID, asks authorize whether actor may delete it,
// then removes comments, tasks, memberships and the project row. Any error,
// including ctx being cancelled, leaves the project untouched.
func (c *Coordinator) DeleteProject(ctx context.Context, actor, projectID uuid.UUID, authorize func(access.Snapshot) error) (*project.CascadeReport, error) {
	ctx, span := tracer.Start(ctx, "CascadeCoordinator.DeleteProject")
	defer span.End()
	span.SetAttributes(attribute.String("project_id", projectID.String()))

	report := &project.CascadeReport{ProjectID: projectID}

	err := db.WithTx(ctx, c.conn, func(tx *sqlx.Tx) error {
		members := c.members.WithTx(tx)
		tasks := c.tasks.WithTx(tx)
		comments := c.comments.WithTx(tx)

		snap, err := members.Snapshot(ctx, projectID, actor, membership.LockUpdate)
		if err != nil {
			return err
		}
		if err := authorize(snap); err != nil {
			return err
		}

		taskIDs, err := tasks.LockForRemoval(ctx, projectID)
		if err != nil {
			return err
		}
		commentIDs, err := comments.LockForRemoval(ctx, projectID)
		if err != nil {
			return err
		}
		memberIDs, err := members.LockForRemoval(ctx, projectID)
		if err != nil {
			return err
		}

		n, err := comments.DeleteByIDs(ctx, projectID, commentIDs)
		if err := verify("comments", n, len(commentIDs), err); err != nil {
			return err
		}
		n, err = tasks.DeleteByIDs(ctx, projectID, taskIDs)
		if err := verify("tasks", n, len(taskIDs), err); err != nil {
			return err
		}
		n, err = members.DeleteByProject(ctx, projectID, memberIDs)
		if err := verify("project_members", n, len(memberIDs), err); err != nil {
			return err
		}
		n, err = c.projects.WithTx(tx).Delete(ctx, projectID)
		if err := verify("projects", n, 1, err); err != nil {
			return err
		}

		report.Tasks = len(taskIDs)
		report.Comments = len(commentIDs)
		report.Members = len(memberIDs)
		return nil
	})
	if err != nil {
		if !errors.Is(err, access.ErrProjectNotFound) && !errors.Is(err, access.ErrForbidden) {
			slog.ErrorContext(ctx, "Project cascade rolled back", slog.String("project_id", projectID.String()), slog.Any("error", err))
		}
		return nil, err
	}

	return report, nil
}

func verify(table string, got int64, want int, err error) error {
	if err != nil {
		return err
	}
	if got != int64(want) {
		return fmt.Errorf("%w: %s: deleted %d, enumerated %d", ErrCountMismatch, table, got, want)
	}
	return nil
}
