// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("record already exists")

// Repository defines the interface for persisting users, sessions,
// interviews and feedback. Lookups of missing records return nil, nil.
type Repository interface {
	// CreateUser inserts a new user. Returns ErrDuplicate if the ID or email is taken.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by normalized email.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateSession stores a newly issued session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// DeleteSession revokes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpiredSessions removes sessions that expired before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// CreateInterview inserts a new interview.
	CreateInterview(ctx context.Context, interview *domain.Interview) error

	// GetInterview retrieves an interview by ID.
	GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error)

	// ListInterviewsByUser returns a user's interviews, newest first.
	ListInterviewsByUser(ctx context.Context, userID string) ([]*domain.Interview, error)

	// ListLatestInterviews returns finalized interviews of other users, newest first.
	ListLatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]*domain.Interview, error)

	// UpsertFeedback creates or replaces a feedback record by ID.
	UpsertFeedback(ctx context.Context, feedback *domain.Feedback) error

	// GetFeedbackByInterview returns the newest feedback of a user for an interview.
	GetFeedbackByInterview(ctx context.Context, interviewID, userID string) (*domain.Feedback, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

var (
	_ Repository = (*SQLiteStore)(nil)
	_ Repository = (*PostgresStore)(nil)
)
