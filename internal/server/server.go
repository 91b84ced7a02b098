package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/config"
	"github.com/trckr/apiserver/internal/auth"
	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/internal/events"
	"github.com/trckr/apiserver/internal/handlers"
	"github.com/trckr/apiserver/internal/metrics"
	"github.com/trckr/apiserver/internal/mq"
	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/internal/storage"
	"github.com/trckr/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Config   config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	DB       handlers.Pinger
	Tokens   handlers.TokenVerifier
	Auth     *services.AuthService
	Workouts *services.WorkoutService
	Goals    *services.GoalService
	Progress *services.ProgressService
	Archive  *services.ArchiveService
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
	db         *db.Manager
	queue      *mq.MQ
	storage    *storage.Storage
	consumer   *events.Consumer
	consumeCtx context.Context
	stop       context.CancelFunc
}

// New wires configuration into a ready-to-start Server. It refuses to start
// without a signing secret. Messaging and object storage are optional.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	collector := metrics.New()
	manager := db.NewManager(db.PostgresDialer(cfg.Database), cfg.Timeouts,
		db.WithLogger(logger),
		db.WithObserver(collector),
	)

	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("init mq: %w", err)
	}
	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = manager.Close()
		if queue != nil {
			_ = queue.Close()
		}
		return nil, fmt.Errorf("init storage: %w", err)
	}

	clock := services.NewClock(cfg.Location())
	tokens := auth.NewTokens(cfg.Auth.JWTSecret)
	workoutRepo := store.NewWorkoutRepository(manager)
	goalRepo := store.NewGoalRepository(manager)

	var publisher services.EventPublisher
	if queue != nil {
		publisher = events.NewPublisher(queue, cfg.MQ.Channel, collector)
	}
	var writer services.ObjectWriter
	if objects != nil {
		writer = objects
	}

	progressService := services.NewProgressService(workoutRepo, goalRepo, clock)
	archiveService := services.NewArchiveService(progressService, workoutRepo, writer, clock, collector, logger)

	router := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  collector,
		DB:       manager,
		Tokens:   tokens,
		Auth:     services.NewAuthService(store.NewUserRepository(manager), auth.NewCredentials(cfg.Auth.BcryptCost), tokens, logger),
		Workouts: services.NewWorkoutService(workoutRepo, publisher, clock, logger),
		Goals:    services.NewGoalService(goalRepo),
		Progress: progressService,
		Archive:  archiveService,
	})

	srv := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port(cfg)),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		logger:  logger,
		db:      manager,
		queue:   queue,
		storage: objects,
	}

	// The in-process broker cannot reach a separate worker, so the server
	// consumes its own events.
	if queue != nil && queue.Name() == "memory" && writer != nil {
		srv.consumer = events.NewConsumer(queue, cfg.MQ.Channel, archiveService.HandleEvent, logger, collector)
		srv.consumeCtx, srv.stop = context.WithCancel(context.WithoutCancel(ctx))
	}
	return srv, nil
}

// NewRouter builds the chi router with middleware and every route.
func NewRouter(d Dependencies) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requireSession := handlers.RequireSession(d.Tokens, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger),
	)
	if d.Metrics != nil {
		router.Use(handlers.Instrument(d.Metrics))
		router.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	router.NotFound(handlers.NotFound(logger))

	router.Get("/health", handlers.NewHealthHandler(d.DB, d.Config.Env, d.Config.Version, logger).Health)

	authHandler := handlers.NewAuthHandler(d.Auth, !d.Config.IsDev(), logger)
	workoutHandler := handlers.NewWorkoutHandler(d.Workouts, d.Archive, logger)
	goalHandler := handlers.NewGoalHandler(d.Goals, logger)
	progressHandler := handlers.NewProgressHandler(d.Progress, logger)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, requireSession)
		})
		r.Route("/workouts", func(r chi.Router) {
			handlers.WorkoutRouter(r, workoutHandler, requireSession)
		})
		r.Route("/goals", func(r chi.Router) {
			handlers.GoalRouter(r, goalHandler, requireSession)
		})
		handlers.ProgressRouter(r, progressHandler, requireSession)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start warms the database connection and runs the HTTP server until it is
// shut down. A failed warm-up is logged; /health reports it as degraded.
func (s *Server) Start(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("database not reachable at startup", zap.Error(err))
	}

	if s.consumer != nil {
		go func() {
			if err := s.consumer.Run(s.consumeCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("embedded event consumer stopped", zap.Error(err))
			}
		}()
	}

	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker, object
// storage and database connection.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.stop != nil {
		s.stop()
	}
	if s.queue != nil {
		err = errors.Join(err, s.queue.Close())
	}
	if s.storage != nil {
		err = errors.Join(err, s.storage.Close())
	}
	return errors.Join(err, s.db.Close())
}

func port(cfg config.Config) int {
	if cfg.ServerPort == 0 {
		return 8080
	}
	return cfg.ServerPort
}
