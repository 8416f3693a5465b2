package llm

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startScorerServer(t *testing.T, handle func(req *structpb.Struct) (*structpb.Struct, error)) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		if method != ScoreMethod {
			return status.Errorf(codes.Unimplemented, "unknown method %s", method)
		}
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		resp, err := handle(req)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis
}

func dialBufconn(t *testing.T, lis *bufconn.Listener) *GrpcScorer {
	t.Helper()
	cfg := DefaultGrpcScorerConfig("passthrough:///bufnet")
	cfg.RequestTimeout = 2 * time.Second
	scorer, err := NewGrpcScorer(cfg, nil, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewGrpcScorer failed: %v", err)
	}
	t.Cleanup(scorer.Close)
	return scorer
}

func TestGrpcScorerScore(t *testing.T) {
	var gotTranscript string
	lis := startScorerServer(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		gotTranscript = req.GetFields()["transcript"].GetStringValue()
		return structpb.NewStruct(map[string]any{
			"totalScore": 81,
			"categoryScores": []any{
				map[string]any{"name": "Problem Solving", "score": 85, "comment": "methodical"},
			},
			"strengths":           []any{"reasoning"},
			"areasForImprovement": []any{"brevity"},
			"finalAssessment":     "strong",
		})
	})
	scorer := dialBufconn(t, lis)

	got, err := scorer.Score(context.Background(), "- user: hello\n")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if gotTranscript != "- user: hello\n" {
		t.Errorf("server received %q", gotTranscript)
	}
	if got.TotalScore != 81 || len(got.CategoryScores) != 1 || got.CategoryScores[0].Score != 85 {
		t.Errorf("unexpected assessment: %+v", got)
	}
	if len(got.Strengths) != 1 || got.FinalAssessment != "strong" {
		t.Errorf("unexpected assessment: %+v", got)
	}
}

func TestGrpcScorerRemoteError(t *testing.T) {
	lis := startScorerServer(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.ResourceExhausted, "busy")
	})
	scorer := dialBufconn(t, lis)

	_, err := scorer.Score(context.Background(), "t")
	if err == nil || !strings.Contains(err.Error(), "busy") {
		t.Fatalf("expected remote error, got %v", err)
	}
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", status.Code(err))
	}
}

func TestNewGrpcScorerFailsFast(t *testing.T) {
	cfg := DefaultGrpcScorerConfig("passthrough:///nowhere")
	cfg.ConnectTimeout = 200 * time.Millisecond
	_, err := NewGrpcScorer(cfg, nil, grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
		return nil, context.DeadlineExceeded
	}))
	if err == nil {
		t.Fatal("expected readiness failure")
	}
}

