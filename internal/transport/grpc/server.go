package grpc

import (
	"context"
	"encoding/json"
	"net"
	"strings"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/engine"
)

const (
	serviceName   = "waeei.v1.LinkScanner"
	methodAnalyze = "/waeei.v1.LinkScanner/Analyze"
	methodHistory = "/waeei.v1.LinkScanner/History"

	maxURLLen = 2048
)

// Engine is the part of engine.Engine the gRPC service needs.
type Engine interface {
	Analyze(ctx context.Context, raw string) (engine.Analysis, error)
	History(ctx context.Context, limit int) ([]domain.VerdictRecord, error)
}

// LinkScannerServer is the handler type of the waeei.v1.LinkScanner service.
// Requests and responses are google.protobuf.Struct messages.
type LinkScannerServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	engine Engine
	logger slog.Logger
}

func NewServer(e Engine, logger slog.Logger) *Server {
	return &Server{engine: e, logger: logger}
}

// Register adds the LinkScanner service to s.
func Register(s *grpc.Server, srv *Server) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*LinkScannerServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Analyze", Handler: unaryHandler(methodAnalyze, (*Server).Analyze)},
			{MethodName: "History", Handler: unaryHandler(methodHistory, (*Server).History)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "waeei/v1/link_scanner.proto",
	}, srv)
}

func (s *Server) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rawURL := strings.TrimSpace(req.GetFields()["url"].GetStringValue())
	if rawURL == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}
	if len(rawURL) > maxURLLen {
		return nil, status.Error(codes.InvalidArgument, "url is too long")
	}

	a, err := s.engine.Analyze(ctx, rawURL)
	if xerrors.Is(err, engine.ErrEmptyURL) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err != nil {
		s.logger.Error(ctx, "grpc analyze failed", slog.F("url", rawURL), slog.Error(err))
		return nil, status.Error(codes.Internal, "analyze failed")
	}
	return toStruct(a.Report())
}

func (s *Server) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	records, err := s.engine.History(ctx, limit)
	if err != nil {
		s.logger.Error(ctx, "grpc history failed", slog.Error(err))
		return nil, status.Error(codes.Internal, "history unavailable")
	}
	if records == nil {
		records = []domain.VerdictRecord{}
	}
	return toStruct(map[string]any{"records": records})
}

func unaryHandler(method string, fn func(*Server, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		base := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(*Server), ctx, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return base(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, base)
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "marshal response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "marshal response")
	}
	return out, nil
}

// RunGRPCServer starts a gRPC server on the given address and
// shuts it down gracefully when the context is canceled.
func RunGRPCServer(ctx context.Context, addr string, srv *Server, logger slog.Logger) error {
	if addr == "" {
		// Reasonable default if nothing is provided.
		addr = ":9090"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s := grpc.NewServer()
	Register(s, srv)
	reflection.Register(s)

	// Stop the server once the context is done (SIGTERM, timeout, etc.).
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.Info(ctx, "gRPC server listening", slog.F("addr", lis.Addr().String()))
	if err := s.Serve(lis); err != nil {
		return err
	}
	return ctx.Err()
}
