package comment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type CommentRepo struct {
	db sqlx.ExtContext
}

func NewCommentRepo(db sqlx.ExtContext) *CommentRepo {
	return &CommentRepo{db: db}
}

func (r *CommentRepo) WithTx(tx *sqlx.Tx) *CommentRepo {
	return &CommentRepo{db: tx}
}

// Create inserts a comment and returns it with the author's name.
func (r *CommentRepo) Create(ctx context.Context, projectID, userID uuid.UUID, message string) (*Comment, error) {
	query := `
		WITH c AS (
			INSERT INTO comments (project_id, user_id, message)
			VALUES ($1, $2, $3)
			RETURNING id, project_id, user_id, message, created_at
		)
		SELECT c.id, c.project_id, c.user_id, u.name AS user_name, c.message, c.created_at
		FROM c
		JOIN users u ON u.id = c.user_id
	`
	var comment Comment
	if err := sqlx.GetContext(ctx, r.db, &comment, query, projectID, userID, message); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &comment, nil
}

// ListByProject lists the comments of a project in posting order
func (r *CommentRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Comment, error) {
	query := `
		SELECT c.id, c.project_id, c.user_id, u.name AS user_name, c.message, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.project_id = $1
		ORDER BY c.created_at, c.id
	`
	comments := []*Comment{}
	if err := sqlx.SelectContext(ctx, r.db, &comments, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// LockForRemoval locks and returns the ids of every comment in projectID.
func (r *CommentRepo) LockForRemoval(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := sqlx.SelectContext(ctx, r.db, &ids, `SELECT id FROM comments WHERE project_id = $1 ORDER BY id FOR UPDATE`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock comments: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes the given comments of projectID and returns how many went.
func (r *CommentRepo) DeleteByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE project_id = $1 AND id = ANY($2)`, projectID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete comments: %w", err)
	}
	return result.RowsAffected()
}
