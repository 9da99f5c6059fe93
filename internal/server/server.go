package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/barangay/internal/account"
	"github.com/dukerupert/barangay/internal/backup"
	"github.com/dukerupert/barangay/internal/config"
	"github.com/dukerupert/barangay/internal/events"
	"github.com/dukerupert/barangay/internal/handler"
	"github.com/dukerupert/barangay/internal/metrics"
	"github.com/dukerupert/barangay/internal/middleware"
	"github.com/dukerupert/barangay/internal/officials"
	"github.com/dukerupert/barangay/internal/photo"
	"github.com/dukerupert/barangay/internal/store"
	ws "github.com/dukerupert/barangay/internal/websocket"
	"github.com/dukerupert/barangay/internal/workflow"
	"github.com/dukerupert/barangay/web"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	dashboardH  *handler.DashboardHandler
	residentH   *handler.ResidentHandler
	householdH  *handler.HouseholdHandler
	pendingH    *handler.PendingHandler
	officialH   *handler.OfficialHandler
	eventH      *handler.EventHandler
	settingsH   *handler.SettingsHandler
	backupH     *handler.BackupHandler
	notFound    http.HandlerFunc
	accounts    *account.Service
	backups     *backup.Manager
	sessions    *store.SessionStore
	operators   *store.OperatorStore
	photos      photo.Storage
	rateLimiter *middleware.RateLimiter
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	cfg         config.Config
	logger      *slog.Logger
}

// New wires stores, services and handlers. reg receives the application
// metrics and is served on /metrics. A nil backupDest leaves backups off.
func New(db *sql.DB, cfg config.Config, photos, backupDest photo.Storage, reg *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger)
	m := metrics.New(reg)

	renderer, err := handler.NewRenderer(web.Templates(), logger)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	settingsStore := store.NewSettingsStore(db)
	submissionStore := store.NewSubmissionStore(db)
	residentStore := store.NewResidentStore(db)
	householdStore := store.NewHouseholdStore(db)
	operatorStore := store.NewOperatorStore(db)

	accounts := account.NewService(db, cfg.SessionTTL, m, logger)
	wf := workflow.NewService(db, m, logger)
	officialSvc := officials.NewService(db, photos, m, logger)
	eventSvc := events.NewService(db, logger)
	backups := backup.NewManager(backup.Config{
		Passphrase: cfg.Backup.Passphrase,
		Retention:  cfg.Backup.Retention,
		Interval:   cfg.Backup.Interval,
	}, db, backupDest, m, logger, func(st backup.Status) {
		hub.Broadcast(ws.NewMessage(ws.EntityBackup, string(st.State), 0, map[string]any{
			"in_progress": st.InProgress,
		}).ForAdmins(0))
	})

	b := func(component string) handler.Base {
		return handler.NewBase(renderer, settingsStore, submissionStore, hub, logger.With("component", component))
	}
	notFound := b("http")

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(b("auth"), accounts),
		dashboardH:  handler.NewDashboardHandler(b("dashboard"), residentStore, eventSvc),
		residentH:   handler.NewResidentHandler(b("resident"), wf, residentStore, householdStore),
		householdH:  handler.NewHouseholdHandler(b("household"), wf, householdStore, residentStore),
		pendingH:    handler.NewPendingHandler(b("pending"), wf),
		officialH:   handler.NewOfficialHandler(b("official"), officialSvc),
		eventH:      handler.NewEventHandler(b("event"), eventSvc),
		settingsH:   handler.NewSettingsHandler(b("settings"), accounts, backups),
		backupH:     handler.NewBackupHandler(b("backup"), backups),
		notFound:    notFound.NotFound,
		accounts:    accounts,
		backups:     backups,
		sessions:    accounts.Sessions(),
		operators:   operatorStore,
		photos:      photos,
		rateLimiter: middleware.NewRateLimiter(),
		metrics:     m,
		gatherer:    reg,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Accounts returns the account service for session cleanup.
func (s *Server) Accounts() *account.Service {
	return s.accounts
}

// Backups returns the backup manager so its schedule can run alongside the
// server.
func (s *Server) Backups() *backup.Manager {
	return s.backups
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /login", s.authH.LoginPage)
	mux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.registerProtectedRoutes(mux)

	// Each route carries its own auth wrapper so r.Pattern stays visible
	// to the request logger.
	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics, middleware.IPFunc(s.cfg.TrustProxy))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.IPFunc(s.cfg.TrustProxy), s.cfg.LoginRateLimit, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	requireAuth := middleware.RequireAuth(s.sessions, s.operators)
	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}
	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(middleware.RequireAdmin(h)))
	}

	authed("POST /logout", s.authH.Logout)

	// Dashboard
	authed("GET /{$}", s.dashboardH.Dashboard)
	authed("GET /api/stats", s.dashboardH.Stats)

	// Residents and the intake workflow
	authed("GET /residents", s.residentH.List)
	authed("GET /residents/new", s.residentH.NewForm)
	authed("POST /residents/new", s.residentH.Create)
	authed("GET /residents/{id}", s.residentH.Detail)
	admin("GET /residents/{id}/edit", s.residentH.EditForm)
	admin("POST /residents/{id}/edit", s.residentH.Update)
	admin("POST /residents/{id}/delete", s.residentH.Delete)

	// Pending submissions; users see their own, admins review
	authed("GET /pending", s.pendingH.List)
	admin("POST /pending/{id}/{action}", s.pendingH.Review)

	// Households
	authed("GET /households", s.householdH.List)
	authed("GET /households/{id}", s.householdH.Detail)
	admin("GET /households/{id}/edit", s.householdH.EditForm)
	admin("POST /households/{id}/edit", s.householdH.Update)
	admin("POST /households/{id}/delete", s.householdH.Delete)

	// Officials
	authed("GET /officials", s.officialH.List)
	admin("GET /officials/new", s.officialH.NewForm)
	admin("POST /officials/new", s.officialH.Create)
	admin("GET /officials/{id}/edit", s.officialH.EditForm)
	admin("POST /officials/{id}/edit", s.officialH.Update)
	admin("POST /officials/{id}/delete", s.officialH.Delete)
	authed("GET /uploads/{key}", photo.Handler(s.photos, s.logger.With("component", "photo")))

	// Events; creators may modify their own
	authed("GET /events", s.eventH.List)
	authed("GET /api/events", s.eventH.API)
	authed("GET /events/new", s.eventH.NewForm)
	authed("POST /events/new", s.eventH.Create)
	authed("GET /events/{id}/edit", s.eventH.EditForm)
	authed("POST /events/{id}/edit", s.eventH.Update)
	authed("POST /events/{id}/delete", s.eventH.Delete)

	// Settings; password for everyone, users and profile for admins
	authed("GET /settings", s.settingsH.Page)
	authed("POST /settings/password", s.settingsH.ChangePassword)
	admin("POST /settings/users", s.settingsH.CreateOperator)
	admin("POST /settings/users/{id}/delete", s.settingsH.DeleteOperator)
	admin("POST /settings/profile", s.settingsH.UpdateProfile)
	admin("POST /settings/backup", s.backupH.Run)
	admin("GET /settings/backups/{id}", s.backupH.Download)

	// WebSocket
	authed("GET /ws", ws.HandleWebSocket(s.hub, s.logger))

	authed("/", s.notFound)
}
