package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/session"
	"github.com/matheus3301/wpp-puppet/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service reporting whether the puppet is logged in.
const ServiceName = "wpp.puppet"

// Server manages the gRPC server lifecycle for a session daemon. It serves
// the standard health protocol: SERVING while the session is logged in,
// NOT_SERVING otherwise.
type Server struct {
	grpcServer  *grpc.Server
	health      *health.Server
	listener    net.Listener
	socketPath  string
	unsubscribe func()
	logger      *zap.Logger
}

// NewServer creates a gRPC server bound to the session's Unix domain socket.
func NewServer(p Params, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}
	s.setServing(machine.Current() == status.LoggedIn)
	s.unsubscribe = b.SubscribeFunc(status.KindStatusChanged, func(evt bus.Event) {
		if change, ok := evt.Payload.(status.StatusChange); ok {
			s.setServing(change.To == status.LoggedIn)
		}
	})
	return s, nil
}

func (s *Server) setServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("gRPC server stopping")
	s.unsubscribe()
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}
