package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository and applies migrations.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers; foreign keys for session cascade.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(ctx, db, "sqlite3", "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, domain.NormalizeEmail(user.Email), user.PasswordHash,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if isSQLiteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = ?`, userID)
}

// GetUserByEmail retrieves a user by normalized email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = ?`, domain.NormalizeEmail(email))
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var user domain.User
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// CreateSession stores a newly issued session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.ExpiresAt.Unix(), session.CreatedAt.Unix())
	if isSQLiteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`

	var session domain.Session
	var expiresAt, createdAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID, &session.UserID, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.ExpiresAt = time.Unix(expiresAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// DeleteSession revokes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		slog.Debug("DeleteSession affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// CreateInterview inserts a new interview.
func (s *SQLiteStore) CreateInterview(ctx context.Context, interview *domain.Interview) error {
	techStack, err := marshalJSON(interview.TechStack)
	if err != nil {
		return err
	}
	questions, err := marshalJSON(interview.Questions)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO interviews (id, user_id, role, level, type, techstack_json, questions_json, finalized, cover_image, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		interview.ID, interview.UserID, interview.Role, interview.Level, interview.Type,
		techStack, questions, interview.Finalized, interview.CoverImage, interview.CreatedAt.Unix(),
	)
	if isSQLiteUnique(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

const sqliteInterviewColumns = `id, user_id, role, level, type, techstack_json, questions_json, finalized, cover_image, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteInterview(row rowScanner) (*domain.Interview, error) {
	var interview domain.Interview
	var techStack, questions string
	var createdAt int64

	if err := row.Scan(
		&interview.ID, &interview.UserID, &interview.Role, &interview.Level, &interview.Type,
		&techStack, &questions, &interview.Finalized, &interview.CoverImage, &createdAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(techStack), &interview.TechStack); err != nil {
		return nil, fmt.Errorf("decode techstack: %w", err)
	}
	if err := json.Unmarshal([]byte(questions), &interview.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	interview.CreatedAt = time.Unix(createdAt, 0)
	return &interview, nil
}

// GetInterview retrieves an interview by ID.
func (s *SQLiteStore) GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteInterviewColumns+` FROM interviews WHERE id = ?`, interviewID)
	interview, err := scanSQLiteInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan interview row: %w", err)
	}
	return interview, nil
}

// ListInterviewsByUser returns a user's interviews, newest first.
func (s *SQLiteStore) ListInterviewsByUser(ctx context.Context, userID string) ([]*domain.Interview, error) {
	query := `SELECT ` + sqliteInterviewColumns + ` FROM interviews WHERE user_id = ? ORDER BY created_at DESC, id`
	return s.listInterviews(ctx, query, userID)
}

// ListLatestInterviews returns finalized interviews of other users, newest first.
func (s *SQLiteStore) ListLatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]*domain.Interview, error) {
	query := `SELECT ` + sqliteInterviewColumns + ` FROM interviews
		WHERE finalized = 1 AND user_id != ? ORDER BY created_at DESC, id LIMIT ?`
	return s.listInterviews(ctx, query, excludeUserID, limit)
}

func (s *SQLiteStore) listInterviews(ctx context.Context, query string, args ...any) ([]*domain.Interview, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close interview rows", "error", closeErr)
		}
	}()

	var interviews []*domain.Interview
	for rows.Next() {
		interview, err := scanSQLiteInterview(rows)
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
func (s *SQLiteStore) UpsertFeedback(ctx context.Context, feedback *domain.Feedback) error {
	categories, err := marshalJSON(feedback.CategoryScores)
	if err != nil {
		return err
	}
	strengths, err := marshalJSON(feedback.Strengths)
	if err != nil {
		return err
	}
	areas, err := marshalJSON(feedback.AreasForImprovement)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores_json, strengths_json, areas_json, final_assessment, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		interview_id = excluded.interview_id,
		user_id = excluded.user_id,
		total_score = excluded.total_score,
		category_scores_json = excluded.category_scores_json,
		strengths_json = excluded.strengths_json,
		areas_json = excluded.areas_json,
		final_assessment = excluded.final_assessment,
		created_at = excluded.created_at`

	_, err = s.db.ExecContext(ctx, query,
		feedback.ID, feedback.InterviewID, feedback.UserID, feedback.TotalScore,
		categories, strengths, areas, feedback.FinalAssessment, feedback.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

// GetFeedbackByInterview returns the newest feedback of a user for an interview.
func (s *SQLiteStore) GetFeedbackByInterview(ctx context.Context, interviewID, userID string) (*domain.Feedback, error) {
	query := `
		SELECT id, interview_id, user_id, total_score, category_scores_json, strengths_json, areas_json, final_assessment, created_at
		FROM feedback WHERE interview_id = ? AND user_id = ?
		ORDER BY created_at DESC LIMIT 1`

	var feedback domain.Feedback
	var categories, strengths, areas string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, interviewID, userID).Scan(
		&feedback.ID, &feedback.InterviewID, &feedback.UserID, &feedback.TotalScore,
		&categories, &strengths, &areas, &feedback.FinalAssessment, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan feedback row: %w", err)
	}

	if err := json.Unmarshal([]byte(categories), &feedback.CategoryScores); err != nil {
		return nil, fmt.Errorf("decode category scores: %w", err)
	}
	if err := json.Unmarshal([]byte(strengths), &feedback.Strengths); err != nil {
		return nil, fmt.Errorf("decode strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(areas), &feedback.AreasForImprovement); err != nil {
		return nil, fmt.Errorf("decode areas for improvement: %w", err)
	}
	feedback.CreatedAt = time.Unix(createdAt, 0)
	return &feedback, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}
