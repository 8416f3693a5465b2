// Package auth provides account registration, sign-in and revocable
// cookie sessions backed by the repository.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/ashureev/interviewprep/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minNameLength     = 3
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt input limit

	// DefaultSessionTTL is the lifetime of a session cookie.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var (
	// ErrDuplicateAccount is returned by SignUp when the email is already registered.
	ErrDuplicateAccount = errors.New("user already exists")
	// ErrUserNotFound is returned by SignIn for an unknown email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned by SignIn when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession is returned when a session token cannot be trusted.
	ErrInvalidSession = errors.New("invalid session")
)

// ValidationError describes a rejected form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// SignUpParams is the registration form.
type SignUpParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInParams is the sign-in form.
type SignInParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Issued is a freshly signed session.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Options configures a Service.
type Options struct {
	Secret []byte
	TTL    time.Duration
	IsDev  bool
	Now    func() time.Time
}

// Service implements the credential/session operations.
type Service struct {
	repo   store.Repository
	secret []byte
	ttl    time.Duration
	isDev  bool
	now    func() time.Time
}

// NewService creates a new auth service.
func NewService(repo store.Repository, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:   repo,
		secret: opts.Secret,
		ttl:    opts.TTL,
		isDev:  opts.IsDev,
		now:    opts.Now,
	}
}

// SignUp creates a user if no account exists for the email.
func (s *Service) SignUp(ctx context.Context, params SignUpParams) (*domain.User, error) {
	name := strings.TrimSpace(params.Name)
	email := domain.NormalizeEmail(params.Email)

	if utf8.RuneCountInString(name) < minNameLength {
		return nil, &ValidationError{Field: "name", Message: fmt.Sprintf("must be at least %d characters", minNameLength)}
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateAccount
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.Info("User registered", "user_id", user.ID)
	return user, nil
}

// SignIn verifies credentials and issues a new session.
func (s *Service) SignIn(ctx context.Context, params SignInParams) (*Issued, error) {
	email := domain.NormalizeEmail(params.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if params.Password == "" {
		return nil, &ValidationError{Field: "password", Message: "is required"}
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.signToken(session)
	if err != nil {
		return nil, err
	}

	slog.Info("User signed in", "user_id", user.ID)
	return &Issued{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// CurrentUser resolves the user behind a session token. The token must carry
// a valid signature, be unexpired and reference a live session record.
func (s *Service) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("look up session: %w", err)
	}
	if session == nil || session.UserID != claims.Subject || session.Expired(s.now()) {
		return nil, ErrInvalidSession
	}

	user, err := s.repo.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidSession
	}
	return user, nil
}

// SignOut revokes the session behind token. Untrusted tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	slog.Info("User signed out", "user_id", claims.Subject)
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if len(password) > maxPasswordBytes {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)}
	}
	return nil
}
