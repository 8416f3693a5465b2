package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/interviewprep/internal/feedback"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScoreMethod is the full RPC name of the remote scorer.
const ScoreMethod = "/interviewprep.scoring.v1.Scorer/Score"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcScorerConfig holds configuration for the remote scorer client.
type GrpcScorerConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcScorerConfig returns default configuration for addr.
func DefaultGrpcScorerConfig(addr string) GrpcScorerConfig {
	return GrpcScorerConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   60 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcScorer scores transcripts through a remote gRPC service exchanging
// google.protobuf.Struct messages.
type GrpcScorer struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *slog.Logger
}

// NewGrpcScorer connects to the scorer and fails fast if it is not ready.
func NewGrpcScorer(cfg GrpcScorerConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcScorer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scorer at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("scorer at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to scoring service", "address", cfg.Address)
	return &GrpcScorer{conn: conn, timeout: cfg.RequestTimeout, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Score implements feedback.Scorer.
func (s *GrpcScorer) Score(ctx context.Context, transcript string) (*feedback.Assessment, error) {
	req, err := structpb.NewStruct(map[string]any{"transcript": transcript})
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, ScoreMethod, req, resp); err != nil {
		return nil, fmt.Errorf("score rpc failed: %w", err)
	}

	data, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode score response: %w", err)
	}
	var out feedback.Assessment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}
	return &out, nil
}

// Close closes the gRPC connection.
func (s *GrpcScorer) Close() {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
