package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"

	"paypal-gateway/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	logger  logging.Logger
}

// New creates a new server instance
func New(handler http.Handler, port, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		logger:  logging.Component("server"),
	}
}

// Start binds the listener and serves in the background. Bind failures are
// returned directly; later serve failures are delivered on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	return s.Serve(ln), nil
}

// Serve serves on ln in the background
func (s *Server) Serve(ln net.Listener) <-chan error {
	errCh := make(chan error, 1)
	useTLS := s.tlsCert != "" && s.tlsKey != ""
	if useTLS {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	s.logger.Info("HTTP server listening",
		logging.Field{Key: "addr", Value: ln.Addr().String()},
		logging.Field{Key: "tls", Value: useTLS},
	)

	go func() {
		var err error
		if useTLS {
			err = s.srv.ServeTLS(ln, s.tlsCert, s.tlsKey)
		} else {
			err = s.srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
