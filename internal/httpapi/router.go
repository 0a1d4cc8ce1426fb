package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"RelayMessenger/internal/domain"
	"RelayMessenger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultLoginRatePerMin = 20

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth          *service.AuthService
	Messages      *service.MessageService
	Users         *service.UsersService
	Activity      *service.ActivityService
	Notifications *service.NotificationService

	// Registry backs /metrics. A private registry is created when nil.
	Registry *prometheus.Registry

	// LoginRatePerMin caps /login and /signup per client IP. Negative disables the limit.
	LoginRatePerMin int
	CORSOrigins     []string

	// Admin, when set, is mounted at /admin.
	Admin http.Handler
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := NewMetrics(reg)

	api := &api{
		logger:           logger,
		dbPing:           opts.DBPing,
		authSvc:          opts.Auth,
		messagesSvc:      opts.Messages,
		usersSvc:         opts.Users,
		activitySvc:      opts.Activity,
		notificationsSvc: opts.Notifications,
		metrics:          metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger, opts.IsProd))
	r.Use(metrics.Middleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/health", api.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if opts.Admin != nil {
		r.Mount("/admin", opts.Admin)
	}

	if api.authSvc == nil {
		r.Post("/signup", handleNotImplemented)
		r.Post("/login", handleNotImplemented)
		return r
	}

	r.Group(func(r chi.Router) {
		rate := opts.LoginRatePerMin
		if rate == 0 {
			rate = defaultLoginRatePerMin
		}
		if rate > 0 {
			r.Use(httprate.Limit(rate, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(handleRateLimited),
			))
		}
		r.Post("/signup", api.handleSignup)
		r.Post("/login", api.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(api.requireAuth)

		r.Post("/logout", api.handleLogout)
		if api.usersSvc != nil {
			r.Get("/get_user_profile", api.handleUserProfile)
			r.Get("/get_all_users", api.handleAllUsers)
		}
		if api.messagesSvc != nil {
			r.Post("/send_message", api.handleSendMessage)
			r.Get("/get_messages", api.handleGetMessages)
			r.Post("/mark_read/{id}", api.handleMarkRead)
			r.Get("/get_conversation/{username}", api.handleConversation)
			r.Get("/get_conversation_v2/{username}", api.handleConversationPage)
		}
		if api.notificationsSvc != nil {
			r.Post("/register_device", api.handleRegisterDevice)
		}
	})

	return r
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

type api struct {
	logger *slog.Logger

	dbPing func(context.Context) error

	authSvc          *service.AuthService
	messagesSvc      *service.MessageService
	usersSvc         *service.UsersService
	activitySvc      *service.ActivityService
	notificationsSvc *service.NotificationService

	metrics *Metrics
}

func (a *api) record(r *http.Request, userID *int64, action, details, status string) {
	a.activitySvc.Record(r.Context(), domain.ActivityEntry{
		UserID:  userID,
		Action:  action,
		Details: details,
		Origin:  clientIP(r),
		Status:  status,
	})
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			a.logger.Warn("health: db ping failed", "err", err)
			WriteJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unhealthy"})
			return
		}
	}
	WriteJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}
