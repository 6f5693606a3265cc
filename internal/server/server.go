package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hfurst/taskpay/internal/config"
	"github.com/hfurst/taskpay/internal/handler"
	"github.com/hfurst/taskpay/internal/middleware"
	"github.com/hfurst/taskpay/internal/realtime"
	"github.com/hfurst/taskpay/internal/store"
	"github.com/hfurst/taskpay/internal/upload"
)

type Server struct {
	db          *sql.DB
	hub         *realtime.Hub
	authH       *handler.AuthHandler
	userH       *handler.UserHandler
	taskH       *handler.TaskHandler
	financeH    *handler.FinanceHandler
	reportH     *handler.ReportHandler
	uploads     *upload.Store
	rateLimiter *middleware.RateLimiter
	jwtSecret   string
	logger      *slog.Logger
}

func New(db *sql.DB, cfg config.Config, uploads *upload.Store, logger *slog.Logger) *Server {
	hub := realtime.NewHub(logger.With("component", "realtime"))

	userStore := store.NewUserStore(db)
	taskStore := store.NewTaskStore(db)
	financeStore := store.NewFinanceStore(db)

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(userStore, uploads, cfg.JWTSecret, cfg.AdminJoinCode, logger.With("component", "auth")),
		userH:       handler.NewUserHandler(userStore, taskStore, logger.With("component", "user")),
		taskH:       handler.NewTaskHandler(taskStore, userStore, uploads, hub, logger.With("component", "task")),
		financeH:    handler.NewFinanceHandler(financeStore, hub, logger.With("component", "finance")),
		reportH:     handler.NewReportHandler(taskStore, userStore, logger.With("component", "report")),
		uploads:     uploads,
		rateLimiter: middleware.NewRateLimiter(),
		jwtSecret:   cfg.JWTSecret,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the realtime hub.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploads.BaseDir()))))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind token verification
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
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

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Auth and profile
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/profile", s.authH.Profile)
	mux.HandleFunc("PUT /api/auth/profile", s.authH.UpdateProfile)
	mux.HandleFunc("POST /api/auth/upload-image", s.authH.UploadImage)

	// Users (admin)
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("PUT /api/tasks/{id}/status", s.taskH.UpdateStatus)
	mux.HandleFunc("PUT /api/tasks/{id}/checklist", s.taskH.UpdateChecklist)
	mux.HandleFunc("POST /api/tasks/{id}/submit", s.taskH.SubmitProof)
	mux.HandleFunc("POST /api/tasks/{id}/approve-earning", s.taskH.ApproveEarning)
	mux.HandleFunc("POST /api/tasks/{id}/reject", s.taskH.RejectSubmission)

	// Dashboards
	mux.HandleFunc("GET /api/dashboard", s.taskH.Dashboard)
	mux.HandleFunc("GET /api/dashboard/me", s.taskH.UserDashboard)

	// Finance
	mux.HandleFunc("POST /api/withdrawals", s.financeH.RequestWithdrawal)
	mux.HandleFunc("GET /api/withdrawals", s.financeH.ListWithdrawals)
	mux.HandleFunc("POST /api/withdrawals/{id}/approve", s.financeH.ApproveWithdrawal)
	mux.HandleFunc("POST /api/withdrawals/{id}/reject", s.financeH.RejectWithdrawal)
	mux.HandleFunc("GET /api/finance/me", s.financeH.MyFinance)
	mux.HandleFunc("GET /api/finance", s.financeH.AdminFinance)

	// Reports (admin)
	mux.HandleFunc("GET /api/reports/tasks", s.reportH.ExportTasks)
	mux.HandleFunc("GET /api/reports/users", s.reportH.ExportUsers)

	// WebSocket
	mux.HandleFunc("GET /ws", realtime.Handler(s.hub))
}
