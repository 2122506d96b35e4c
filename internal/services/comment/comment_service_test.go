package comment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services/membership"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*CommentService, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := sqlx.NewDb(conn, "postgres")
	return NewCommentService(db, NewCommentRepo(db), membership.NewMembershipRepo(db)), mock
}

func TestCreateComment(t *testing.T) {
	svc, mock := newService(t)
	alice, projectID, commentID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR SHARE OF p").WithArgs(projectID, alice).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_by", "is_member"}).AddRow(projectID.String(), alice.String(), true))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comments")).WithArgs(projectID, alice, "Looks good").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "user_id", "user_name", "message", "created_at"}).
			AddRow(commentID.String(), projectID.String(), alice.String(), "Alice", "Looks good", time.Now()))
	mock.ExpectCommit()

	c, err := svc.Create(context.Background(), alice, projectID, &CreateCommentRequest{Message: "Looks good"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCommentRequiresMessage(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), &CreateCommentRequest{Message: "\n"})
	assert.ErrorIs(t, err, perrors.ErrValidation)
}

func TestListCommentsHiddenFromNonMembers(t *testing.T) {
	svc, mock := newService(t)
	alice, carol, projectID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM projects p").WithArgs(projectID, carol).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_by", "is_member"}).AddRow(projectID.String(), alice.String(), false))
	mock.ExpectRollback()

	_, err := svc.List(context.Background(), carol, projectID)
	assert.ErrorIs(t, err, access.ErrProjectNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
