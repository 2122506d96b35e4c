package comment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/db"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services/membership"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("CommentService")

// CommentService handles project comments. Comments are append-only.
type CommentService struct {
	conn    *sqlx.DB
	repo    *CommentRepo
	members *membership.MembershipRepo
}

func NewCommentService(conn *sqlx.DB, repo *CommentRepo, members *membership.MembershipRepo) *CommentService {
	return &CommentService{conn: conn, repo: repo, members: members}
}

func (s *CommentService) Create(ctx context.Context, actor, projectID uuid.UUID, req *CreateCommentRequest) (*Comment, error) {
	ctx, span := tracer.Start(ctx, "CommentService.Create")
	defer span.End()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, perrors.Validation("message is required")
	}

	var comment *Comment
	err := db.WithTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		snap, err := s.members.WithTx(tx).Snapshot(ctx, projectID, actor, membership.LockShare)
		if err != nil {
			return err
		}
		if err := access.Check(actor, access.CreateComment, snap, access.ErrProjectNotFound); err != nil {
			return err
		}
		comment, err = s.repo.WithTx(tx).Create(ctx, projectID, actor, message)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Posted comment", slog.String("comment_id", comment.ID.String()), slog.String("project_id", projectID.String()))
	return comment, nil
}

func (s *CommentService) List(ctx context.Context, actor, projectID uuid.UUID) ([]*Comment, error) {
	ctx, span := tracer.Start(ctx, "CommentService.List")
	defer span.End()

	var comments []*Comment
	err := db.WithReadTx(ctx, s.conn, func(tx *sqlx.Tx) error {
		snap, err := s.members.WithTx(tx).Snapshot(ctx, projectID, actor, membership.LockNone)
		if err != nil {
			return err
		}
		if err := access.Check(actor, access.ReadComments, snap, access.ErrProjectNotFound); err != nil {
			return err
		}
		comments, err = s.repo.WithTx(tx).ListByProject(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return comments, nil
}
