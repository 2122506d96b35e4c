package authenticator

import (
	"testing"
	"time"

	"github.com/curaious/synergy/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New(&config.Config{JWT_SECRET: "test-secret", JWT_ISSUER: "synergy", ACCESS_TOKEN_TTL: 30 * time.Minute})
	require.NoError(t, err)
	return a
}

func TestIssueVerify(t *testing.T) {
	a := newAuthenticator(t)
	id := uuid.New()

	token, expiresAt, err := a.Issue(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	got, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestVerifyRejectsExpired(t *testing.T) {
	a := newAuthenticator(t)
	a.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := a.Issue(uuid.New())
	require.NoError(t, err)

	a.now = time.Now
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTampered(t *testing.T) {
	a := newAuthenticator(t)
	token, _, err := a.Issue(uuid.New())
	require.NoError(t, err)

	_, err = a.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := New(&config.Config{JWT_SECRET: "another-secret", JWT_ISSUER: "synergy", ACCESS_TOKEN_TTL: time.Minute})
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	a := newAuthenticator(t)
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "synergy",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	a := newAuthenticator(t)
	claims := jwt.RegisteredClaims{
		Issuer:    "synergy",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(&config.Config{ACCESS_TOKEN_TTL: time.Minute})
	assert.Error(t, err)
}
