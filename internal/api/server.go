package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"venuebook/internal/config"
	"venuebook/internal/domain"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
)

// GRPCServer serves BookingService on its own listener.
type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	logger   zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, booking domain.BookingService, logger *zerolog.Logger) (*GRPCServer, error) {
	grpcServer, err := buildGRPCServer(cfg, booking, logger)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv := &GRPCServer{server: grpcServer, listener: lis, logger: zerolog.Nop()}
	if logger != nil {
		srv.logger = logger.With().Str("component", "grpc").Logger()
	}
	return srv, nil
}

// buildGRPCServer wires interceptors, TLS and the booking service without binding a port.
// Order matters: recovery wraps everything, auth runs before identity is trusted.
func buildGRPCServer(cfg *config.APIConfig, booking domain.BookingService, logger *zerolog.Logger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryUnaryInterceptor(logger),
			LoggingUnaryInterceptor(logger),
			NewAuthInterceptor(cfg).Unary(),
			IdentityUnaryInterceptor(),
		),
	}

	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := loadServerTLS(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(opts...)
	RegisterBookingServiceServer(grpcServer, NewBookingGRPCService(booking))
	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}
	return grpcServer, nil
}

// loadServerTLS builds the server TLS config; with RequireClientCert it also demands mTLS.
func loadServerTLS(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls enabled but cert_file/key_file not set")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc tls keypair: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if !cfg.RequireClientCert {
		return tlsCfg, nil
	}

	if cfg.ClientCAFile == "" {
		return nil, errors.New("grpc tls require_client_cert=true but client_ca_file not set")
	}
	caPEM, err := os.ReadFile(cfg.ClientCAFile)
	if err != nil {
		return nil, fmt.Errorf("read client_ca_file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("client_ca_file holds no PEM certificates")
	}
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	tlsCfg.ClientCAs = pool
	return tlsCfg, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.logger.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown drains in-flight calls until ctx expires, then cuts the rest.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
