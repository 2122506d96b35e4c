package user

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeIssuer struct {
	tokens map[string]uuid.UUID
}

func (f *fakeIssuer) Issue(userID uuid.UUID) (string, time.Time, error) {
	token := "tok-" + userID.String()
	f.tokens[token] = userID
	return token, time.Now().Add(time.Hour), nil
}

func (f *fakeIssuer) Verify(token string) (uuid.UUID, error) {
	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, errors.New("token is invalid")
	}
	return id, nil
}

func newService(t *testing.T) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db := sqlx.NewDb(conn, "postgres")
	return NewUserService(NewUserRepo(db), &fakeIssuer{tokens: map[string]uuid.UUID{}}), mock
}

func userRow(id uuid.UUID, email, hash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "avatar_url", "created_at"}).
		AddRow(id.String(), "Jane", email, hash, nil, time.Now())
}

func TestRegister(t *testing.T) {
	svc, mock := newService(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Jane", "jane@example.com", sqlmock.AnyArg()).
		WillReturnRows(userRow(id, "jane@example.com", "hash"))

	u, err := svc.Register(context.Background(), &RegisterRequest{Name: " Jane ", Email: "jane@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := svc.Register(context.Background(), &RegisterRequest{Name: "Jane", Email: "jane@example.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	svc, mock := newService(t)

	cases := []RegisterRequest{
		{Name: "", Email: "jane@example.com", Password: "secret"},
		{Name: "Jane", Email: "", Password: "secret"},
		{Name: "Jane", Email: "not-an-email", Password: "secret"},
		{Name: "Jane", Email: "Jane <jane@example.com>", Password: "secret"},
		{Name: "Jane", Email: "jane@example.com", Password: ""},
	}
	for _, req := range cases {
		_, err := svc.Register(context.Background(), &req)
		assert.ErrorIs(t, err, perrors.ErrValidation, "%+v", req)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	id := uuid.New()

	t.Run("valid credentials", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery("FROM users").WithArgs("jane@example.com").
			WillReturnRows(userRow(id, "jane@example.com", string(hash)))

		u, err := svc.Authenticate(context.Background(), "jane@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery("FROM users").WithArgs("jane@example.com").
			WillReturnRows(userRow(id, "jane@example.com", string(hash)))

		_, err := svc.Authenticate(context.Background(), "jane@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery("FROM users").WithArgs("ghost@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := svc.Authenticate(context.Background(), "ghost@example.com", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestIssueAndResolve(t *testing.T) {
	svc, mock := newService(t)
	id := uuid.New()

	token, err := svc.IssueToken(&User{ID: id})
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)

	mock.ExpectQuery("FROM users").WithArgs(id).
		WillReturnRows(userRow(id, "jane@example.com", "hash"))

	u, err := svc.Resolve(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = svc.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveDeletedUser(t *testing.T) {
	svc, mock := newService(t)
	id := uuid.New()

	token, err := svc.IssueToken(&User{ID: id})
	require.NoError(t, err)

	mock.ExpectQuery("FROM users").WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = svc.Resolve(context.Background(), token.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
