package server

import (
	"fmt"
	"net"

	"chorddht/internal/logger"
	"chorddht/internal/node"
	"chorddht/internal/telemetry/lookuptrace"
	"chorddht/internal/transport"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// Server wraps a gRPC server hosting the Chord peer-to-peer RPC surface.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	lgr        logger.Logger
}

// New creates a gRPC server bound to lis, registering a Handler wrapping n.
// The lookup-tracing interceptor is always installed; it is a no-op unless
// telemetry.InitTracer has configured a real tracer provider.
func New(lis net.Listener, n *node.Node, grpcOpts []grpc.ServerOption, srvOpts ...Option) (*Server, error) {
	opts := append([]grpc.ServerOption{
		grpc.ForceServerCodec(transport.Codec),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(lookuptrace.ServerInterceptor()),
	}, grpcOpts...)

	s := &Server{
		grpcServer: grpc.NewServer(opts...),
		listener:   lis,
		lgr:        logger.NopLogger{},
	}
	for _, opt := range srvOpts {
		opt(s)
	}

	s.grpcServer.RegisterService(&transport.DHT_ServiceDesc, NewHandler(n))
	return s, nil
}

// Start runs the gRPC server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("gRPC server stopped: %w", err)
	}
	return nil
}

// Stop immediately stops the server and closes all active connections.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop waits for in-flight RPCs to complete before shutting down.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
