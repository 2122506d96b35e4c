package authenticator

import (
	"errors"
	"fmt"
	"time"

	"github.com/curaious/synergy/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid access token")

// Authenticator issues and verifies HS256 access tokens. The subject claim
// carries the user id.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func New(conf *config.Config) (*Authenticator, error) {
	if conf.JWT_SECRET == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	if conf.ACCESS_TOKEN_TTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %s", conf.ACCESS_TOKEN_TTL)
	}

	return &Authenticator{
		secret: []byte(conf.JWT_SECRET),
		issuer: conf.JWT_ISSUER,
		ttl:    conf.ACCESS_TOKEN_TTL,
		now:    time.Now,
	}, nil
}

func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Issue signs a token for userID that expires after the configured ttl.
func (a *Authenticator) Issue(userID uuid.UUID) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the user id
// the token was issued to.
func (a *Authenticator) Verify(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}

	return userID, nil
}
