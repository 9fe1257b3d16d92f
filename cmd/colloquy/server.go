package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/colloquy-ai/colloquy/api/handlers"
	"github.com/colloquy-ai/colloquy/config"
	"github.com/colloquy-ai/colloquy/conversation"
	"github.com/colloquy-ai/colloquy/internal/archive"
	"github.com/colloquy-ai/colloquy/internal/metrics"
	"github.com/colloquy-ai/colloquy/internal/telemetry"
	"github.com/colloquy-ai/colloquy/internal/transcript"
)

// Server wires the conversation core, storage layers and HTTP boundary.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	collector   *metrics.Collector
	manager     *conversation.Manager
	transcripts transcript.Store
	archiver    *archive.Archiver
	otel        *telemetry.Providers

	httpServer *http.Server
	listener   net.Listener
	group      *errgroup.Group
	groupCtx   context.Context
}

// NewServer builds all components from the configuration. Optional backends
// that fail to initialize disable their feature instead of aborting startup;
// only the transcript store is required.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	s.collector = metrics.NewCollector("colloquy", prometheus.DefaultRegisterer, logger)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otel = otelProviders

	s.transcripts, err = transcript.New(cfg.Transcript, logger)
	if err != nil {
		return nil, fmt.Errorf("init transcript store: %w", err)
	}

	if cfg.Archive.Enabled {
		s.archiver, err = archive.Open(cfg.Archive, logger)
		if err != nil {
			logger.Warn("archive unavailable, completed conversations will not be persisted", zap.Error(err))
		}
	}

	s.manager = conversation.NewManager(logger, s.collector)
	s.manager.SetLLMOptions(cfg.LLM.BaseURL, cfg.LLM.Timeout)
	if s.archiver != nil {
		archiver := s.archiver
		s.manager.SetOnCompleted(func(snap conversation.Snapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := archiver.Save(ctx, snap); err != nil {
				logger.Error("failed to archive conversation",
					zap.String("conversation_id", snap.ID), zap.Error(err))
			}
		})
	}

	return s, nil
}

// Start binds the listener and begins serving. Non-blocking.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(Version, s.logger)
	health.RegisterRoutes(mux)
	if rs, ok := s.transcripts.(*transcript.RedisStore); ok {
		health.RegisterCheck(handlers.HealthCheckFunc{
			CheckName: "redis",
			Fn:        rs.Ping,
		})
	}
	if s.archiver != nil {
		archiver := s.archiver
		health.RegisterCheck(handlers.HealthCheckFunc{
			CheckName: "archive",
			Fn: func(ctx context.Context) error {
				_, err := archiver.List(ctx, 1)
				return err
			},
		})
	}

	convHandler := handlers.NewConversationHandler(
		s.manager, s.transcripts, s.cfg.Conversation, s.cfg.LLM, s.logger)
	convHandler.RegisterRoutes(mux)

	if s.archiver != nil {
		handlers.NewArchiveHandler(s.archiver, s.logger).RegisterRoutes(mux)
	}

	mux.Handle("GET /metrics", promhttp.Handler())

	skipAuthPaths := []string{"/healthz", "/readyz", "/metrics"}
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		Tracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	if s.cfg.Server.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.cfg.Server.MaxConns)
	}
	s.listener = listener

	s.group, s.groupCtx = errgroup.WithContext(context.Background())
	s.group.Go(func() error {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	s.logger.Info("HTTP server started",
		zap.Int("port", s.cfg.Server.HTTPPort),
		zap.Int("max_conns", s.cfg.Server.MaxConns),
		zap.Bool("auth_enabled", s.cfg.Auth.Enabled),
		zap.Bool("archive_enabled", s.archiver != nil),
	)
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM or a server error, then shuts
// everything down gracefully.
func (s *Server) WaitForShutdown() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case <-s.groupCtx.Done():
		s.logger.Error("server failed", zap.Error(s.groupCtx.Err()))
	}

	s.Shutdown()
}

// Shutdown stops the HTTP server, closes all conversations and releases the
// storage backends.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.group != nil {
		if err := s.group.Wait(); err != nil {
			s.logger.Error("server error during shutdown", zap.Error(err))
		}
	}

	s.manager.Close()

	if err := s.transcripts.Close(); err != nil {
		s.logger.Error("transcript store close error", zap.Error(err))
	}
	if s.archiver != nil {
		if err := s.archiver.Close(); err != nil {
			s.logger.Error("archive close error", zap.Error(err))
		}
	}
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("graceful shutdown completed")
}
