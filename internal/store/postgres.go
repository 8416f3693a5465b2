package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Repository using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and applies migrations.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, "postgres", "migrations/postgres")
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateUser inserts a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, domain.NormalizeEmail(user.Email), user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if isPgUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`, userID)
}

// GetUserByEmail retrieves a user by normalized email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = $1`, domain.NormalizeEmail(email))
}

func (s *PostgresStore) getUser(ctx context.Context, query, arg string) (*domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return &user, nil
}

// CreateSession stores a newly issued session.
func (s *PostgresStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt)
	if isPgUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1`, sessionID,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return &session, nil
}

// DeleteSession revokes a session.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateInterview inserts a new interview.
func (s *PostgresStore) CreateInterview(ctx context.Context, interview *domain.Interview) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interviews (id, user_id, role, level, type, techstack, questions, finalized, cover_image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		interview.ID, interview.UserID, interview.Role, interview.Level, interview.Type,
		nonNil(interview.TechStack), nonNil(interview.Questions), interview.Finalized, interview.CoverImage, interview.CreatedAt)
	if isPgUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

const pgInterviewColumns = `id, user_id, role, level, type, techstack, questions, finalized, cover_image, created_at`

func scanPgInterview(row pgx.Row) (*domain.Interview, error) {
	var interview domain.Interview
	if err := row.Scan(
		&interview.ID, &interview.UserID, &interview.Role, &interview.Level, &interview.Type,
		&interview.TechStack, &interview.Questions, &interview.Finalized, &interview.CoverImage, &interview.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &interview, nil
}

// GetInterview retrieves an interview by ID.
func (s *PostgresStore) GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error) {
	interview, err := scanPgInterview(s.pool.QueryRow(ctx,
		`SELECT `+pgInterviewColumns+` FROM interviews WHERE id = $1`, interviewID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan interview row: %w", err)
	}
	return interview, nil
}

// ListInterviewsByUser returns a user's interviews, newest first.
func (s *PostgresStore) ListInterviewsByUser(ctx context.Context, userID string) ([]*domain.Interview, error) {
	return s.listInterviews(ctx,
		`SELECT `+pgInterviewColumns+` FROM interviews WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

// ListLatestInterviews returns finalized interviews of other users, newest first.
func (s *PostgresStore) ListLatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]*domain.Interview, error) {
	return s.listInterviews(ctx,
		`SELECT `+pgInterviewColumns+` FROM interviews
		 WHERE finalized AND user_id <> $1 ORDER BY created_at DESC, id LIMIT $2`, excludeUserID, limit)
}

func (s *PostgresStore) listInterviews(ctx context.Context, query string, args ...any) ([]*domain.Interview, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer rows.Close()

	var interviews []*domain.Interview
	for rows.Next() {
		interview, err := scanPgInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interview row: %w", err)
		}
		interviews = append(interviews, interview)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interviews: %w", err)
	}
	return interviews, nil
}

// UpsertFeedback creates or replaces a feedback record by ID.
func (s *PostgresStore) UpsertFeedback(ctx context.Context, feedback *domain.Feedback) error {
	categories, err := json.Marshal(feedback.CategoryScores)
	if err != nil {
		return fmt.Errorf("encode category scores: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			interview_id = EXCLUDED.interview_id,
			user_id = EXCLUDED.user_id,
			total_score = EXCLUDED.total_score,
			category_scores = EXCLUDED.category_scores,
			strengths = EXCLUDED.strengths,
			areas_for_improvement = EXCLUDED.areas_for_improvement,
			final_assessment = EXCLUDED.final_assessment,
			created_at = EXCLUDED.created_at`,
		feedback.ID, feedback.InterviewID, feedback.UserID, feedback.TotalScore, string(categories),
		nonNil(feedback.Strengths), nonNil(feedback.AreasForImprovement), feedback.FinalAssessment, feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

// GetFeedbackByInterview returns the newest feedback of a user for an interview.
func (s *PostgresStore) GetFeedbackByInterview(ctx context.Context, interviewID, userID string) (*domain.Feedback, error) {
	var feedback domain.Feedback
	var categories []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at
		FROM feedback WHERE interview_id = $1 AND user_id = $2
		ORDER BY created_at DESC LIMIT 1`, interviewID, userID,
	).Scan(&feedback.ID, &feedback.InterviewID, &feedback.UserID, &feedback.TotalScore, &categories,
		&feedback.Strengths, &feedback.AreasForImprovement, &feedback.FinalAssessment, &feedback.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback row: %w", err)
	}
	if err := json.Unmarshal(categories, &feedback.CategoryScores); err != nil {
		return nil, fmt.Errorf("decode category scores: %w", err)
	}
	return &feedback, nil
}

// nonNil keeps TEXT[] NOT NULL columns from receiving SQL NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
