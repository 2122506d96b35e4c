package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/curaious/synergy/internal/perrors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrUnauthorized      = errors.New("could not validate credentials")
	ErrUserNotFound      = errors.New("user not found")
)

var tracer = otel.Tracer("UserService")

// TokenIssuer signs and verifies access tokens. A token binds a user id and an
// expiry; Verify fails for expired or tampered tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (token string, expiresAt time.Time, err error)
	Verify(token string) (uuid.UUID, error)
}

// UserService is the identity store: registration, password authentication
// and token resolution.
type UserService struct {
	repo   *UserRepo
	tokens TokenIssuer
}

func NewUserService(repo *UserRepo, tokens TokenIssuer) *UserService {
	return &UserService{repo: repo, tokens: tokens}
}

// Register creates an account. A duplicate email fails with ErrDuplicateEmail
// and leaves the existing account untouched.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, perrors.Validation("name is required")
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, perrors.Validation("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, perrors.Validation("password is too long")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, name, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	span.SetAttributes(attribute.String("user_id", user.ID.String()))
	slog.InfoContext(ctx, "Registered user", slog.String("user_id", user.ID.String()))

	return user, nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords both fail with ErrInvalidCredential.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Authenticate")
	defer span.End()

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, ErrInvalidCredential
	}

	return user, nil
}

// IssueToken signs an access token for user.
func (s *UserService) IssueToken(user *User) (*AccessToken, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AccessToken{Token: token, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Resolve returns the user a token was issued to. Expired or invalid tokens,
// and tokens whose user no longer exists, fail with ErrUnauthorized.
func (s *UserService) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func validateEmail(email string) error {
	if email == "" {
		return perrors.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return perrors.Validation("email is not a valid address")
	}
	return nil
}
