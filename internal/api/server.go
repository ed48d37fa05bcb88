package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/photosync/backend/internal/logger"
)

// Config controls the HTTP(S) transport, per spec §6: a plain port always
// listens, and an optional HTTPS listener can be added alongside it with
// its own cert/key pair.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	EnableHTTPS bool
	HTTPSPort   int
	TLSCertPath string
	TLSKeyPath  string
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.HTTPSPort == 0 {
		c.HTTPSPort = 3443
	}
}

// Server wraps the plain HTTP listener (and, when configured, a TLS
// listener) with graceful shutdown, grounded on the teacher's
// pkg/api/server.go Server type.
type Server struct {
	plain        *http.Server
	tls          *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server bound to handler, not yet started.
func NewServer(config Config, handler http.Handler) *Server {
	config.applyDefaults()

	s := &Server{
		config: config,
		plain: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}

	if config.EnableHTTPS {
		s.tls = &http.Server{
			Addr:         fmt.Sprintf(":%d", config.HTTPSPort),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		}
	}

	return s
}

// Start starts the server(s) and blocks until ctx is cancelled or a listener
// fails. On cancellation it performs a graceful shutdown with its own
// timeout, detached from the (already-cancelled) ctx.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		if err := s.plain.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- fmt.Errorf("HTTP listener: %w", err):
			default:
			}
		}
	}()

	if s.tls != nil {
		go func() {
			logger.Info("API TLS server listening", "port", s.config.HTTPSPort)
			if err := s.tls.ListenAndServeTLS(s.config.TLSCertPath, s.config.TLSKeyPath); err != nil && err != http.ErrServerClosed {
				select {
				case errChan <- fmt.Errorf("HTTPS listener: %w", err):
				default:
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts the server(s) down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.plain.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		}

		if s.tls != nil {
			if err := s.tls.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("HTTPS server shutdown error: %w", err)
				logger.Error("API TLS server shutdown error", "error", err)
			}
		}

		if shutdownErr == nil {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the plain HTTP port the server listens on.
func (s *Server) Port() int {
	return s.config.Port
}
