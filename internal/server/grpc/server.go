// Package grpc exposes the inference service over gRPC using
// google.protobuf.Struct messages.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ekisa-team/dlrshim/internal/mapsafe"
	"github.com/ekisa-team/dlrshim/internal/model"
	"github.com/ekisa-team/dlrshim/internal/service"
)

const stopTimeout = 10 * time.Second

// Server serves the inference API over gRPC.
type Server struct {
	inference *service.Inference
	addr      string
	grpc      *grpc.Server
	health    *health.Server
}

// NewServer creates a gRPC server bound to addr.
func NewServer(addr string, inference *service.Inference) *Server {
	s := &Server{
		inference: inference,
		addr:      addr,
		health:    health.NewServer(),
	}

	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor))
	RegisterInferenceServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Run serves on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC server listening", "addr", ln.Addr().String())
		errCh <- s.grpc.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		s.grpc.Stop()
	}

	slog.Info("gRPC server stopped")
	return nil
}

func (s *Server) ListModels(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"models": s.inference.List()})
}

func (s *Server) Describe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := modelID(req.AsMap())
	if err != nil {
		return nil, toStatus(err)
	}

	d, err := s.inference.Describe(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(d)
}

func (s *Server) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m := req.AsMap()

	id, err := modelID(m)
	if err != nil {
		return nil, toStatus(err)
	}

	inputs, err := decodeInputs(mapsafe.Map(m, "inputs"))
	if err != nil {
		return nil, toStatus(err)
	}

	p, err := s.inference.Predict(ctx, id, inputs)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(p)
}

func modelID(m map[string]any) (string, error) {
	id := mapsafe.Get(m, "model_id", "")
	if id == "" {
		return "", fmt.Errorf("%w: model_id is required", service.ErrInvalidInput)
	}
	return id, nil
}

func decodeInputs(m map[string]any) (map[string]service.Tensor, error) {
	inputs := make(map[string]service.Tensor, len(m))
	for name := range m {
		t := mapsafe.Map(m, name)
		if t == nil {
			return nil, fmt.Errorf("%w: input %q must be an object", service.ErrInvalidInput, name)
		}

		shape, err := mapsafe.Int64s(t, "shape")
		if err != nil {
			return nil, fmt.Errorf("%w: input %q: %v", service.ErrInvalidInput, name, err)
		}
		data, err := mapsafe.Float32s(t, "data")
		if err != nil {
			return nil, fmt.Errorf("%w: input %q: %v", service.ErrInvalidInput, name, err)
		}

		inputs[name] = service.Tensor{Shape: shape, Data: data}
	}
	return inputs, nil
}

// toStruct round-trips v through JSON so the response carries the same
// field names as the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, model.ErrNotLoaded):
		return codes.Unavailable
	case service.IsClientError(err):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	return status.Error(codeFor(err), err.Error())
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	attrs := []any{
		"method", info.FullMethod,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if code == codes.Internal || code == codes.Unknown {
		slog.Error("gRPC request failed", append(attrs, "error", err)...)
	} else {
		slog.Debug("gRPC request", attrs...)
	}
	return resp, err
}
