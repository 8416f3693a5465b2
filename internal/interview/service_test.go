package interview

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/ashureev/interviewprep/internal/store"
)

type stubGenerator struct {
	got       QuestionRequest
	questions []string
	err       error
}

func (g *stubGenerator) GenerateQuestions(_ context.Context, req QuestionRequest) ([]string, error) {
	g.got = req
	return g.questions, g.err
}

func newTestService(t *testing.T, gen QuestionGenerator) *Service {
	t.Helper()
	repo, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "interview.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewService(repo, gen)
}

func validParams() GenerateParams {
	return GenerateParams{Type: "Technical", Role: "Backend Engineer", Level: "Junior", TechStack: "go, postgres,,", Amount: 3, UserID: "u1"}
}

func TestGenerate(t *testing.T) {
	gen := &stubGenerator{questions: []string{"What is a goroutine?", "  ", "Explain MVCC."}}
	svc := newTestService(t, gen)
	ctx := context.Background()

	iv, err := svc.Generate(ctx, validParams())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !slices.Equal(gen.got.TechStack, []string{"go", "postgres"}) || gen.got.Amount != 3 {
		t.Errorf("unexpected generator request: %+v", gen.got)
	}
	if len(iv.Questions) != 2 || !iv.Finalized || !strings.HasPrefix(iv.CoverImage, "/covers/") {
		t.Errorf("unexpected interview: %+v", iv)
	}

	got, err := svc.Get(ctx, iv.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Role != "Backend Engineer" || got.UserID != "u1" {
		t.Errorf("unexpected stored interview: %+v", got)
	}

	mine, err := svc.ListByUser(ctx, "u1")
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected one interview for u1, got %d, %v", len(mine), err)
	}
	others, err := svc.ListLatest(ctx, "u1", 0)
	if err != nil || len(others) != 0 {
		t.Fatalf("expected own interview excluded from latest, got %d, %v", len(others), err)
	}
}

func TestGenerateValidation(t *testing.T) {
	svc := newTestService(t, &stubGenerator{questions: []string{"q"}})

	mutations := map[string]func(p *GenerateParams){
		"missing role":  func(p *GenerateParams) { p.Role = " " },
		"missing user":  func(p *GenerateParams) { p.UserID = "" },
		"zero amount":   func(p *GenerateParams) { p.Amount = 0 },
		"too many":      func(p *GenerateParams) { p.Amount = maxQuestions + 1 },
		"missing level": func(p *GenerateParams) { p.Level = "" },
		"missing type":  func(p *GenerateParams) { p.Type = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			mutate(&p)
			if _, err := svc.Generate(context.Background(), p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestGenerateGeneratorFailure(t *testing.T) {
	svc := newTestService(t, &stubGenerator{err: errors.New("quota")})
	if _, err := svc.Generate(context.Background(), validParams()); err == nil {
		t.Fatal("expected generator error")
	}

	svc = newTestService(t, &stubGenerator{questions: []string{" "}})
	if _, err := svc.Generate(context.Background(), validParams()); err == nil {
		t.Fatal("expected error for empty question list")
	}
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t, &stubGenerator{})
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSplitTechStack(t *testing.T) {
	if got := SplitTechStack(""); len(got) != 0 {
		t.Errorf("expected empty slice, got %v", got)
	}
	if got := SplitTechStack("React, Next.js ,TypeScript"); !slices.Equal(got, []string{"React", "Next.js", "TypeScript"}) {
		t.Errorf("unexpected split: %v", got)
	}
}
