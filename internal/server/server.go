package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/config"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/inspector"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
)

// HeaderFailedUnits carries the number of (region, log group) queries that
// did not complete.
const HeaderFailedUnits = "X-Failed-Units"

// Auditor is what the HTTP layer needs from the aggregation core.
type Auditor interface {
	Aggregate(ctx context.Context, req inspector.Request) (*inspector.Report, error)
	Regions(ctx context.Context) ([]string, error)
	Groups(ctx context.Context, region string) ([]model.LogGroup, error)
	Services(ctx context.Context, regions []string) []string
	Metadata(ctx context.Context) (*inspector.Metadata, error)
}

// Server holds the Echo app and dependencies.
type Server struct {
	Echo    *echo.Echo
	cfg     *config.Config
	auditor Auditor
	nr      *newrelic.Application
	logger  zerolog.Logger
	now     func() time.Time
}

// New builds the Echo server and registers routes. nr may be nil.
func New(cfg *config.Config, auditor Auditor, nr *newrelic.Application, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		auditor: auditor,
		nr:      nr,
		logger:  logger.With().Str("component", "server").Logger(),
		now:     time.Now,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(
		middleware.Recover(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		requestLogger(s.logger),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  cfg.Server.CORSAllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodOptions},
			ExposeHeaders: []string{HeaderFailedUnits, echo.HeaderXRequestID},
		}),
	)
	if nr != nil {
		e.Use(newRelicTransaction(nr))
	}

	e.GET("/health", s.health)
	e.GET("/logs-all", s.logsAll)
	e.GET("/api/v1/auditor/aws/logs-all", s.logsAll)
	for _, prefix := range []string{"/meta", "/api/logs/meta"} {
		g := e.Group(prefix)
		g.GET("/regions", s.regions)
		g.GET("/groups", s.groups)
		g.GET("/groups-detailed", s.groupsDetailed)
		g.GET("/services", s.services)
		g.GET("/all", s.metadata)
	}

	s.Echo = e
	return s
}

// Start starts the HTTP server. Blocks until the context is cancelled or the
// server fails; a cancel triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		done <- s.Shutdown(shutdownCtx)
	}()

	addr := s.cfg.Server.Addr()
	s.logger.Info().Str("addr", addr).Msg("listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

// Shutdown drains in-flight requests and flushes the APM agent.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if s.nr != nil {
		s.nr.Shutdown(s.cfg.Server.ShutdownTimeout)
	}
	s.logger.Info().Msg("server stopped")
	return err
}
