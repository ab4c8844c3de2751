package fuzzrpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// Server wraps a grpc.Server bound to a FuzzerControlServer
// implementation, mirroring the teacher's listen/register/reflect/serve
// sequence.
type Server struct {
	grpc *grpc.Server
}

// NewServer builds a Server registering impl as the FuzzerControl
// service and enabling reflection for debugging with grpcurl, the same
// pair of calls the teacher's driver server makes.
func NewServer(impl FuzzerControlServer, opts ...grpc.ServerOption) *Server {
	s := grpc.NewServer(opts...)
	RegisterFuzzerControlServer(s, impl)
	reflection.Register(s)
	return &Server{grpc: s}
}

// ListenAndServe binds addr and blocks serving RPCs until the listener
// or server stops.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("fuzzrpc: listen %s: %w", addr, err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop stops accepting new RPCs and waits for pending ones to
// finish, for use from a signal handler.
func (s *Server) GracefulStop() { s.grpc.GracefulStop() }

// Stop forcibly stops the server.
func (s *Server) Stop() { s.grpc.Stop() }
