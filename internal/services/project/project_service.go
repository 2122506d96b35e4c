package project

import (
	"context"
	"errors"
	"fmt"
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

var ErrProjectNotFound = access.ErrProjectNotFound

var tracer = otel.Tracer("ProjectService")

// Cascader removes a project together with everything that belongs to it.
// authorize runs against the actor's snapshot taken under the cascade's own
// lock; a non-nil error aborts the deletion.
type Cascader interface {
	DeleteProject(ctx context.Context, actor, projectID uuid.UUID, authorize func(access.Snapshot) error) (*CascadeReport, error)
}

// ProjectService handles business logic for projects
type ProjectService struct {
	conn    *sqlx.DB
	repo    *ProjectRepo
	members *membership.MembershipRepo
	users   *user.UserRepo
	cascade Cascader
}

// NewProjectService creates a new project service
func NewProjectService(conn *sqlx.DB, repo *ProjectRepo, members *membership.MembershipRepo, users *user.UserRepo, cascade Cascader) *ProjectService {
	return &ProjectService{conn: conn, repo: repo, members: members, users: users, cascade: cascade}
}

// Create creates a project and makes actor its first member in the same
// transaction.
func (s *ProjectService) Create(ctx context.Context, actor uuid.UUID, req *CreateProjectRequest) (*ProjectDetails, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.Create")
	defer span.End()

	if actor == uuid.Nil {
		return nil, access.ErrUnauthenticated
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, perrors.Validation("name is required")
	}

	var details *ProjectDetails
	err := db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		project, err := s.repo.WithTx(tx).Create(ctx, req, actor)
		if err != nil {
			return err
		}
		if _, err := s.members.WithTx(tx).Add(ctx, project.ID, actor); err != nil {
			return err
		}
		details, err = s.details(ctx, tx, project.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("project_id", details.ID.String()))
	slog.InfoContext(ctx, "Created project", slog.String("project_id", details.ID.String()), slog.String("created_by", actor.String()))

	return details, nil
}

// List returns the projects actor is a member of.
func (s *ProjectService) List(ctx context.Context, actor uuid.UUID) ([]*ProjectDetails, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.List")
	defer span.End()

	if actor == uuid.Nil {
		return nil, access.ErrUnauthenticated
	}

	var projects []*ProjectDetails
	err := db.WithReadTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		var err error
		projects, err = s.repo.WithTx(tx).ListForMember(ctx, actor)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		grouped, err := s.members.WithTx(tx).MembersOf(ctx, ids)
		if err != nil {
			return err
		}
		for _, p := range projects {
			p.setMembers(grouped[p.ID])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, actor, projectID uuid.UUID) (*ProjectDetails, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.Get")
	defer span.End()

	var details *ProjectDetails
	err := db.WithReadTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		if err := s.authorize(ctx, tx, actor, projectID, access.ReadProject, membership.LockNone); err != nil {
			return err
		}
		var err error
		details, err = s.details(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// Update applies the set fields of req. Only the creator may update.
func (s *ProjectService) Update(ctx context.Context, actor, projectID uuid.UUID, req *UpdateProjectRequest) (*ProjectDetails, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.Update")
	defer span.End()

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, perrors.Validation("name must not be empty")
		}
		req.Name = &name
	}

	var details *ProjectDetails
	err := db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		if err := s.authorize(ctx, tx, actor, projectID, access.UpdateProject, membership.LockUpdate); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Update(ctx, projectID, req); err != nil {
			return err
		}
		var err error
		details, err = s.details(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// Delete removes the project and all of its tasks, comments and memberships
// atomically. Only the creator may delete.
func (s *ProjectService) Delete(ctx context.Context, actor, projectID uuid.UUID) (*CascadeReport, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.Delete")
	defer span.End()

	report, err := s.cascade.DeleteProject(ctx, actor, projectID, func(snap access.Snapshot) error {
		return access.Check(actor, access.DeleteProject, snap, ErrProjectNotFound)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("tasks", report.Tasks),
		attribute.Int("comments", report.Comments),
		attribute.Int("members", report.Members),
	)
	slog.InfoContext(ctx, "Deleted project",
		slog.String("project_id", projectID.String()),
		slog.Int("tasks", report.Tasks),
		slog.Int("comments", report.Comments),
		slog.Int("members", report.Members))

	return report, nil
}

// AddMember adds the user registered under email. Adding an existing member
// succeeds and reports added=false.
func (s *ProjectService) AddMember(ctx context.Context, actor, projectID uuid.UUID, email string) (bool, []*membership.Member, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.AddMember")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil, perrors.Validation("email is required")
	}

	var added bool
	var members []*membership.Member
	err := db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		if err := s.authorize(ctx, tx, actor, projectID, access.AddMember, membership.LockUpdate); err != nil {
			return err
		}

		u, err := s.users.WithTx(tx).GetByEmail(ctx, email)
		if err != nil {
			return err
		}

		repo := s.members.WithTx(tx)
		added, err = repo.Add(ctx, projectID, u.ID)
		if err != nil {
			return err
		}
		members, err = repo.Members(ctx, projectID)
		return err
	})
	if err != nil {
		return false, nil, err
	}

	return added, members, nil
}

func (s *ProjectService) Members(ctx context.Context, actor, projectID uuid.UUID) ([]*membership.Member, error) {
	ctx, span := tracer.Start(ctx, "ProjectService.Members")
	defer span.End()

	var members []*membership.Member
	err := db.WithReadTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		if err := s.authorize(ctx, tx, actor, projectID, access.ReadMembers, membership.LockNone); err != nil {
			return err
		}
		var err error
		members, err = s.members.WithTx(tx).Members(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

// Authorize evaluates action for actor against the project's current state.
// It is for callers that act outside a transaction, such as the activity
// stream deciding whether to deliver an event.
func (s *ProjectService) Authorize(ctx context.Context, actor, projectID uuid.UUID, action access.Action) error {
	snap, err := s.members.Snapshot(ctx, projectID, actor, membership.LockNone)
	if err != nil {
		return err
	}
	return access.Check(actor, action, snap, ErrProjectNotFound)
}

// Exists reports whether projectID still exists, without checking access. It
// lets a caller that was just denied tell a deleted project from lost
// membership.
func (s *ProjectService) Exists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, projectID)
}

func (s *ProjectService) authorize(ctx context.Context, tx *sqlx.Tx, actor, projectID uuid.UUID, action access.Action, lock membership.Lock) error {
	snap, err := s.members.WithTx(tx).Snapshot(ctx, projectID, actor, lock)
	if err != nil {
		return err
	}
	if err := access.Check(actor, action, snap, ErrProjectNotFound); err != nil {
		if !errors.Is(err, ErrProjectNotFound) {
			slog.WarnContext(ctx, "Denied project action",
				slog.String("project_id", projectID.String()),
				slog.String("actor", actor.String()),
				slog.String("action", string(action)))
		}
		return err
	}
	return nil
}

func (s *ProjectService) details(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID) (*ProjectDetails, error) {
	details, err := s.repo.WithTx(tx).GetDetails(ctx, projectID)
	if err != nil {
		return nil, err
	}

	members, err := s.members.WithTx(tx).Members(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project members: %w", err)
	}
	details.setMembers(members)

	return details, nil
}
