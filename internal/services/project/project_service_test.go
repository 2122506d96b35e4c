package project

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/services/membership"
	"github.com/curaious/synergy/internal/services/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCascader struct {
	snap   access.Snapshot
	called bool
}

func (f *fakeCascader) DeleteProject(ctx context.Context, actor, projectID uuid.UUID, authorize func(access.Snapshot) error) (*CascadeReport, error) {
	f.called = true
	if err := authorize(f.snap); err != nil {
		return nil, err
	}
	return &CascadeReport{ProjectID: projectID, Tasks: 2, Comments: 1, Members: 2}, nil
}

func newService(t *testing.T, cascade Cascader) (*ProjectService, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := sqlx.NewDb(conn, "postgres")
	svc := NewProjectService(db, NewProjectRepo(db), membership.NewMembershipRepo(db), user.NewUserRepo(db), cascade)
	return svc, mock
}

func snapshotRows(projectID, creator uuid.UUID, member bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "created_by", "is_member"}).AddRow(projectID.String(), creator.String(), member)
}

func detailsRows(projectID, creator uuid.UUID, name string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "deadline", "created_by", "created_at", "created_by_name", "task_count"}).
		AddRow(projectID.String(), name, nil, nil, creator.String(), time.Now(), "Alice", 0)
}

func memberRows(projectID uuid.UUID, users ...uuid.UUID) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"project_id", "user_id", "name", "email", "avatar_url", "joined_at"})
	for _, u := range users {
		rows.AddRow(projectID.String(), u.String(), "member", u.String()+"@example.com", nil, time.Now())
	}
	return rows
}

func TestCreateAddsCreatorAsMember(t *testing.T) {
	svc, mock := newService(t, nil)
	alice, projectID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO projects")).
		WithArgs("Sprint 1", nil, nil, alice).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "deadline", "created_by", "created_at"}).
			AddRow(projectID.String(), "Sprint 1", nil, nil, alice.String(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
		WithArgs(projectID, alice).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $1")).WithArgs(projectID).
		WillReturnRows(detailsRows(projectID, alice, "Sprint 1"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.project_id = $1")).WithArgs(projectID).
		WillReturnRows(memberRows(projectID, alice))
	mock.ExpectCommit()

	details, err := svc.Create(context.Background(), alice, &CreateProjectRequest{Name: " Sprint 1 "})
	require.NoError(t, err)
	assert.Equal(t, projectID, details.ID)
	assert.Equal(t, []uuid.UUID{alice}, details.Members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.Create(context.Background(), uuid.New(), &CreateProjectRequest{Name: "  "})
	assert.ErrorIs(t, err, perrors.ErrValidation)

	_, err = svc.Create(context.Background(), uuid.Nil, &CreateProjectRequest{Name: "x"})
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestGetHidesProjectFromNonMembers(t *testing.T) {
	svc, mock := newService(t, nil)
	alice, carol, projectID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM projects p").WithArgs(projectID, carol).
		WillReturnRows(snapshotRows(projectID, alice, false))
	mock.ExpectRollback()

	_, err := svc.Get(context.Background(), carol, projectID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateByNonCreatorIsForbidden(t *testing.T) {
	svc, mock := newService(t, nil)
	alice, bob, projectID := uuid.New(), uuid.New(), uuid.New()
	name := "Renamed"

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").WithArgs(projectID, bob).
		WillReturnRows(snapshotRows(projectID, alice, true))
	mock.ExpectRollback()

	_, err := svc.Update(context.Background(), bob, projectID, &UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, access.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateByCreator(t *testing.T) {
	svc, mock := newService(t, nil)
	alice, projectID := uuid.New(), uuid.New()
	name := "Renamed"

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").WithArgs(projectID, alice).
		WillReturnRows(snapshotRows(projectID, alice, true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects SET name = $1 WHERE id = $2")).
		WithArgs("Renamed", projectID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $1")).WithArgs(projectID).
		WillReturnRows(detailsRows(projectID, alice, "Renamed"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.project_id = $1")).WithArgs(projectID).
		WillReturnRows(memberRows(projectID, alice))
	mock.ExpectCommit()

	details, err := svc.Update(context.Background(), alice, projectID, &UpdateProjectRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", details.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsEmptyName(t *testing.T) {
	svc, _ := newService(t, nil)
	empty := " "

	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), &UpdateProjectRequest{Name: &empty})
	assert.ErrorIs(t, err, perrors.ErrValidation)
}

func TestDeleteAuthorizesUnderCascadeLock(t *testing.T) {
	alice, bob, carol, projectID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	cascade := &fakeCascader{snap: access.Snapshot{ProjectID: projectID, CreatorID: alice, Member: true}}
	svc, _ := newService(t, cascade)

	report, err := svc.Delete(context.Background(), alice, projectID)
	require.NoError(t, err)
	assert.True(t, cascade.called)
	assert.Equal(t, 2, report.Tasks)

	_, err = svc.Delete(context.Background(), bob, projectID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	cascade.snap.Member = false
	_, err = svc.Delete(context.Background(), carol, projectID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	svc, mock := newService(t, nil)
	alice, bob, projectID := uuid.New(), uuid.New(), uuid.New()

	for _, affected := range []int64{1, 0} {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE OF p").WithArgs(projectID, alice).
			WillReturnRows(snapshotRows(projectID, alice, true))
		mock.ExpectQuery("FROM users").WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "avatar_url", "created_at"}).
				AddRow(bob.String(), "Bob", "bob@example.com", "hash", nil, time.Now()))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
			WithArgs(projectID, bob).WillReturnResult(sqlmock.NewResult(0, affected))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE m.project_id = $1")).WithArgs(projectID).
			WillReturnRows(memberRows(projectID, alice, bob))
		mock.ExpectCommit()
	}

	added, members, err := svc.AddMember(context.Background(), alice, projectID, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, members, 2)

	added, members, err = svc.AddMember(context.Background(), alice, projectID, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, members, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemberUnknownEmail(t *testing.T) {
	svc, mock := newService(t, nil)
	alice, projectID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").WillReturnRows(snapshotRows(projectID, alice, true))
	mock.ExpectQuery("FROM users").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := svc.AddMember(context.Background(), alice, projectID, "ghost@example.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsAfterDelete(t *testing.T) {
	svc, mock := newService(t, &fakeCascader{})
	projectID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`)).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := svc.Exists(context.Background(), projectID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
