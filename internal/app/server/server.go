package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpireview/internal/domain/audit"
	"kpireview/internal/domain/auth"
	"kpireview/internal/domain/core"
	"kpireview/internal/domain/evaluation"
	"kpireview/internal/domain/invitation"
	"kpireview/internal/domain/reports"
	"kpireview/internal/platform/config"
	"kpireview/internal/platform/db"
	"kpireview/internal/platform/email"
	"kpireview/internal/platform/metrics"
	"kpireview/internal/realtime"
	"kpireview/internal/transport/http/api"
	audithandler "kpireview/internal/transport/http/handlers/audit"
	authhandler "kpireview/internal/transport/http/handlers/auth"
	corehandler "kpireview/internal/transport/http/handlers/core"
	eventshandler "kpireview/internal/transport/http/handlers/events"
	evaluationhandler "kpireview/internal/transport/http/handlers/evaluation"
	invitationhandler "kpireview/internal/transport/http/handlers/invitation"
	reportshandler "kpireview/internal/transport/http/handlers/reports"
	"kpireview/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Hub     *realtime.Hub
	Metrics *metrics.Collector
	Router  http.Handler

	stopHeartbeat context.CancelFunc
}

// New builds a fully wired application: pool, migrations, seed data, hub and
// router. Callers own the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		migrationsDir := cfg.MigrationsDir
		if migrationsDir == "" {
			migrationsDir = "migrations"
		}
		if err := db.Migrate(ctx, pool, migrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	hub := realtime.NewHub(cfg.EventBufferSize)
	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	go hub.RunHeartbeat(heartbeatCtx, cfg.HeartbeatInterval)

	collector := metrics.New()

	authService := auth.NewService(auth.NewStore(pool))
	coreService := core.NewService(core.NewStore(pool))
	evaluationService := evaluation.NewService(evaluation.NewStore(pool))
	invitationService := invitation.NewService(invitation.NewStore(pool))
	invitationService.Mailer = email.New(cfg)
	invitationService.DefaultFrom = cfg.EmailFrom
	auditService := audit.New(pool)
	reportsService := reports.NewService(pool)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authService, cfg.JWTSecret)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Get("/me", authHandler.HandleMe)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Post("/users", authHandler.HandleCreateUser)

		corehandler.NewHandler(coreService).RegisterRoutes(r)
		evaluationhandler.NewHandler(evaluationService, hub, auditService, collector, cfg.StalenessWindow).RegisterRoutes(r)
		invitationhandler.NewHandler(invitationService, hub, collector).RegisterRoutes(r)
		eventshandler.NewHandler(hub, collector, cfg).RegisterRoutes(r)
		reportshandler.NewHandler(reportsService, evaluationService).RegisterRoutes(r)
		audithandler.NewHandler(auditService).RegisterRoutes(r)

		if cfg.MetricsEnabled {
			r.With(middleware.RequirePermission(auth.PermMetricsRead)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
			})
		}
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})

	return &App{
		Config:        cfg,
		DB:            pool,
		Hub:           hub,
		Metrics:       collector,
		Router:        router,
		stopHeartbeat: stopHeartbeat,
	}, nil
}

func (a *App) Close() {
	if a.stopHeartbeat != nil {
		a.stopHeartbeat()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func Run() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("server listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// spaHandler serves the built front-end, falling back to index.html for
// client-side routes.
type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, r.URL.Path)
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
