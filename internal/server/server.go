package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rallypoint/rallypoint/internal/backup"
	"github.com/rallypoint/rallypoint/internal/handler"
	"github.com/rallypoint/rallypoint/internal/middleware"
	"github.com/rallypoint/rallypoint/internal/store"
	ws "github.com/rallypoint/rallypoint/internal/websocket"
)

// Config holds the server-level knobs sourced from the environment.
type Config struct {
	Backup        backup.Config
	Access        middleware.AccessConfig
	SecureCookies bool
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	orgH          *handler.OrganizationHandler
	userH         *handler.UserHandler
	eventH        *handler.EventHandler
	messageH      *handler.MessageHandler
	backupH       *handler.BackupHandler
	scheduleH     *handler.ScheduleHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	access        middleware.AccessConfig
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	orgStore := store.NewOrganizationStore(db)
	userStore := store.NewUserStore(db)
	eventStore := store.NewEventStore(db)
	messageStore := store.NewMessageStore(db)
	sessionStore := store.NewSessionStore(db)
	backupStore := store.NewBackupStore(db)
	scheduleStore := store.NewScheduleStore(db)

	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, func(e backup.Event) {
		hub.Broadcast(ws.StatusMessage(e.Kind, e.Detail))
	}, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, cfg.SecureCookies, logger.With("component", "auth")),
		orgH:          handler.NewOrganizationHandler(orgStore, hub, logger.With("component", "organization")),
		userH:         handler.NewUserHandler(userStore, logger.With("component", "user")),
		eventH:        handler.NewEventHandler(eventStore, hub, logger.With("component", "event")),
		messageH:      handler.NewMessageHandler(messageStore, hub, logger.With("component", "message")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		scheduleH:     handler.NewScheduleHandler(scheduleStore, logger.With("component", "schedule")),
		sessionStore:  sessionStore,
		userStore:     userStore,
		access:        cfg.Access,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager so main can run the sweeper.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	mux.HandleFunc("GET /api/orgs", s.orgH.List)
	mux.HandleFunc("POST /api/orgs", s.orgH.Create)
	mux.HandleFunc("GET /api/orgs/{id}", s.orgH.Get)
	mux.HandleFunc("PUT /api/orgs/{id}", s.orgH.Update)
	mux.HandleFunc("DELETE /api/orgs/{id}", s.orgH.Delete)
	mux.HandleFunc("GET /api/orgs/{id}/members", s.orgH.Members)
	mux.HandleFunc("POST /api/orgs/{id}/members", s.orgH.AddMember)
	mux.HandleFunc("DELETE /api/orgs/{id}/members", s.orgH.RemoveMember)

	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("POST /api/users", s.userH.Create)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/users/{id}", s.userH.Update)
	mux.HandleFunc("DELETE /api/users/{id}", s.userH.Delete)

	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/published-seen", s.eventH.MarkPublishedSeen)

	mux.HandleFunc("GET /api/messages", s.messageH.List)
	mux.HandleFunc("POST /api/messages", s.messageH.Create)
	mux.HandleFunc("GET /api/messages/{id}", s.messageH.Get)
	mux.HandleFunc("PUT /api/messages/{id}", s.messageH.SetArchived)
	mux.HandleFunc("DELETE /api/messages/{id}", s.messageH.Delete)
	mux.HandleFunc("GET /api/messages/{id}/replies", s.messageH.Replies)
	mux.HandleFunc("POST /api/messages/{id}/replies", s.messageH.AddReply)
	mux.HandleFunc("POST /api/messages/{id}/read", s.messageH.MarkRead)

	// Admin routes behind a dedicated gate
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/backups", s.backupH.List)
	adminMux.HandleFunc("POST /api/admin/backups", s.backupH.Create)
	adminMux.HandleFunc("GET /api/admin/backups/{id}", s.backupH.Download)
	adminMux.HandleFunc("DELETE /api/admin/backups/{id}", s.backupH.Delete)
	adminMux.HandleFunc("POST /api/admin/backups/restore", s.backupH.Restore)
	adminMux.HandleFunc("GET /api/admin/backup-schedules", s.scheduleH.List)
	adminMux.HandleFunc("POST /api/admin/backup-schedules", s.scheduleH.Create)
	adminMux.HandleFunc("GET /api/admin/backup-schedules/{id}", s.scheduleH.Get)
	adminMux.HandleFunc("PUT /api/admin/backup-schedules/{id}", s.scheduleH.Update)
	adminMux.HandleFunc("DELETE /api/admin/backup-schedules/{id}", s.scheduleH.Delete)
	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	identity := middleware.ResolveIdentity(s.sessionStore, s.userStore, s.access)
	return middleware.RequestLogger(s.logger.With("component", "http"))(identity(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
