package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/interviewprep/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testUser(id, email string) *domain.User {
	now := time.Unix(1_700_000_000, 0)
	return &domain.User{ID: id, Name: "Ada Lovelace", Email: email, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
}

func TestSQLiteUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateUser(ctx, testUser("u1", "Ada@Example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "ada@example.com ")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got == nil || got.ID != "u1" || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}

	err = s.CreateUser(ctx, testUser("u2", "ada@example.com"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for taken email, got %v", err)
	}

	missing, err := s.GetUser(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing user, got %+v, %v", missing, err)
	}
}

func TestSQLiteSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.CreateUser(ctx, testUser("u1", "a@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	live := &domain.Session{ID: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	stale := &domain.Session{ID: "stale", UserID: "u1", ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	for _, sess := range []*domain.Session{live, stale} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", sess.ID, err)
		}
	}

	n, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired session removed, got %d", n)
	}

	got, err := s.GetSession(ctx, "live")
	if err != nil || got == nil {
		t.Fatalf("expected live session, got %+v, %v", got, err)
	}
	if !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("expected expiry %v, got %v", live.ExpiresAt, got.ExpiresAt)
	}

	if err := s.DeleteSession(ctx, "live"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := s.DeleteSession(ctx, "live"); err != nil {
		t.Fatalf("second DeleteSession should not fail: %v", err)
	}
	if got, _ := s.GetSession(ctx, "live"); got != nil {
		t.Errorf("expected session to be revoked, got %+v", got)
	}
}

func TestSQLiteInterviews(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Unix(1_700_000_000, 0)

	interviews := []*domain.Interview{
		{ID: "i1", UserID: "u1", Role: "Backend", Level: "Junior", Type: "Technical", TechStack: []string{"go"}, Questions: []string{"q1"}, Finalized: true, CreatedAt: base},
		{ID: "i2", UserID: "u1", Role: "Frontend", Level: "Senior", Type: "Mixed", TechStack: []string{"react", "ts"}, Questions: []string{"q1", "q2"}, Finalized: true, CreatedAt: base.Add(time.Minute)},
		{ID: "i3", UserID: "u2", Role: "SRE", Level: "Mid", Type: "Behavioural", TechStack: []string{}, Questions: []string{"q"}, Finalized: true, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "i4", UserID: "u2", Role: "Draft", Level: "Mid", Type: "Technical", Finalized: false, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, iv := range interviews {
		if err := s.CreateInterview(ctx, iv); err != nil {
			t.Fatalf("CreateInterview(%s) failed: %v", iv.ID, err)
		}
	}

	mine, err := s.ListInterviewsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListInterviewsByUser failed: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "i2" || mine[1].ID != "i1" {
		t.Fatalf("expected [i2 i1], got %v", ids(mine))
	}
	if len(mine[0].TechStack) != 2 || mine[0].Questions[1] != "q2" {
		t.Errorf("expected decoded arrays, got %+v", mine[0])
	}

	latest, err := s.ListLatestInterviews(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListLatestInterviews failed: %v", err)
	}
	if len(latest) != 1 || latest[0].ID != "i3" {
		t.Fatalf("expected only finalized interviews of others [i3], got %v", ids(latest))
	}

	got, err := s.GetInterview(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing interview, got %+v, %v", got, err)
	}
}

func TestSQLiteFeedbackUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Unix(1_700_000_000, 0)

	fb := &domain.Feedback{
		ID:                  "f1",
		InterviewID:         "i1",
		UserID:              "u1",
		TotalScore:          60,
		CategoryScores:      []domain.CategoryScore{{Name: "Communication Skills", Score: 60, Comment: "ok"}},
		Strengths:           []string{"clear"},
		AreasForImprovement: []string{"depth"},
		FinalAssessment:     "decent",
		CreatedAt:           now,
	}
	if err := s.UpsertFeedback(ctx, fb); err != nil {
		t.Fatalf("UpsertFeedback failed: %v", err)
	}

	fb.TotalScore = 80
	fb.FinalAssessment = "better"
	fb.CreatedAt = now.Add(time.Minute)
	if err := s.UpsertFeedback(ctx, fb); err != nil {
		t.Fatalf("second UpsertFeedback failed: %v", err)
	}

	got, err := s.GetFeedbackByInterview(ctx, "i1", "u1")
	if err != nil {
		t.Fatalf("GetFeedbackByInterview failed: %v", err)
	}
	if got == nil || got.ID != "f1" || got.TotalScore != 80 || got.FinalAssessment != "better" {
		t.Fatalf("expected replaced feedback, got %+v", got)
	}
	if len(got.CategoryScores) != 1 || got.CategoryScores[0].Name != "Communication Skills" {
		t.Errorf("unexpected category scores: %+v", got.CategoryScores)
	}

	other, err := s.GetFeedbackByInterview(ctx, "i1", "u2")
	if err != nil || other != nil {
		t.Fatalf("expected no feedback for another user, got %+v, %v", other, err)
	}
}

func ids(interviews []*domain.Interview) []string {
	out := make([]string, 0, len(interviews))
	for _, iv := range interviews {
		out = append(out, iv.ID)
	}
	return out
}
