package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mfs-pay/mfs_pay/internal/config"
	"github.com/mfs-pay/mfs_pay/internal/notification"
	"github.com/mfs-pay/mfs_pay/internal/routes"
	"github.com/mfs-pay/mfs_pay/internal/scheduler"
)

// Server wraps the Fiber application, the background scheduler and shared dependencies.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, notifier notification.Notifier, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: routes.ErrorHandler(logger),
	})

	svcs, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Notifier: notifier, Logger: logger})
	if err != nil {
		return nil, err
	}

	jobs := scheduler.NewJobs(svcs.Resolver, cfg.PendingRequestTTL, cfg.StoreTimeout, logger)
	return &Server{
		app:       app,
		cfg:       cfg,
		scheduler: scheduler.New(jobs, cfg.PendingExpirySchedule, logger),
		logger:    logger,
	}, nil
}

// Listen starts the scheduler and then the HTTP server. It blocks until the server stops.
func (s *Server) Listen() error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	s.logger.Info("http server listening", "addr", s.cfg.Address(), "env", s.cfg.AppEnv)
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and waits for running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.app.ShutdownWithContext(ctx), s.scheduler.Stop(ctx))
}
