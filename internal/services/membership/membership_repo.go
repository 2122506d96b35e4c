package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/curaious/synergy/internal/access"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const memberColumns = `m.project_id, m.user_id, u.name, u.email, u.avatar_url, m.joined_at`

// MembershipRepo stores the (project, user) relation. Lookups go through the
// composite primary key.
type MembershipRepo struct {
	db sqlx.ExtContext
}

func NewMembershipRepo(db sqlx.ExtContext) *MembershipRepo {
	return &MembershipRepo{db: db}
}

func (r *MembershipRepo) WithTx(tx *sqlx.Tx) *MembershipRepo {
	return &MembershipRepo{db: tx}
}

// Add makes userID a member of projectID. Adding an existing member is a no-op
// and reports added=false.
func (r *MembershipRepo) Add(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

func (r *MembershipRepo) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`

	var ok bool
	if err := sqlx.GetContext(ctx, r.db, &ok, query, projectID, userID); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}

// Members lists the members of projectID in join order.
func (r *MembershipRepo) Members(ctx context.Context, projectID uuid.UUID) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.joined_at, u.name
	`
	members := []*Member{}
	if err := sqlx.SelectContext(ctx, r.db, &members, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// MembersOf lists the members of several projects at once, grouped by project.
func (r *MembershipRepo) MembersOf(ctx context.Context, projectIDs []uuid.UUID) (map[uuid.UUID][]*Member, error) {
	out := make(map[uuid.UUID][]*Member, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT ` + memberColumns + `
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ANY($1)
		ORDER BY m.project_id, m.joined_at, u.name
	`
	var members []*Member
	if err := sqlx.SelectContext(ctx, r.db, &members, query, pq.Array(projectIDs)); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	for _, m := range members {
		out[m.ProjectID] = append(out[m.ProjectID], m)
	}
	return out, nil
}

// Snapshot loads the project's creator and whether actorID is a member, in one
// statement. A missing project is access.ErrProjectNotFound.
func (r *MembershipRepo) Snapshot(ctx context.Context, projectID, actorID uuid.UUID, lock Lock) (access.Snapshot, error) {
	query := `
		SELECT p.id, p.created_by,
			EXISTS(SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $2) AS is_member
		FROM projects p
		WHERE p.id = $1` + lock.clause()

	var snap access.Snapshot
	err := sqlx.GetContext(ctx, r.db, &snap, query, projectID, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return access.Snapshot{}, access.ErrProjectNotFound
		}
		return access.Snapshot{}, fmt.Errorf("failed to load project snapshot: %w", err)
	}
	return snap, nil
}

// LockForRemoval locks and returns the member ids of projectID.
func (r *MembershipRepo) LockForRemoval(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM project_members
		WHERE project_id = $1
		ORDER BY user_id
		FOR UPDATE
	`
	ids := []uuid.UUID{}
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to lock members: %w", err)
	}
	return ids, nil
}

// DeleteByProject removes the given memberships of projectID and returns how
// many rows went.
func (r *MembershipRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID, userIDs []uuid.UUID) (int64, error) {
	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = ANY($2)`

	result, err := r.db.ExecContext(ctx, query, projectID, pq.Array(userIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete members: %w", err)
	}
	return result.RowsAffected()
}
