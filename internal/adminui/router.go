package adminui

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"RelayMessenger/internal/auth"
	"RelayMessenger/internal/domain"
	"RelayMessenger/internal/service"
)

//go:embed templates/*.html static/*
var assets embed.FS

type Opts struct {
	Logger *slog.Logger

	Auth            *service.AuthService
	Admin           *service.AdminService
	Activity        *service.ActivityService
	CookieCodec     auth.CookieCodec
	CookieSecure    bool
	SessionTTL      time.Duration
	AdminUsernames  []string
	LoginRatePerMin int
}

// New returns the operator console. It serves 404 for everything unless at
// least one admin username is configured.
func New(opts Opts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adminSet := make(map[string]bool, len(opts.AdminUsernames))
	for _, name := range opts.AdminUsernames {
		if name = normalizeUsername(name); name != "" {
			adminSet[name] = true
		}
	}

	if len(adminSet) == 0 || opts.Auth == nil || opts.Admin == nil {
		return http.NotFoundHandler()
	}

	app := &app{
		logger:       logger,
		authSvc:      opts.Auth,
		adminSvc:     opts.Admin,
		activitySvc:  opts.Activity,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		admins:       adminSet,
	}

	t, err := parseTemplates()
	if err != nil {
		logger.Error("adminui: parse templates failed", "err", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		})
	}
	app.templates = t

	loginPost := http.Handler(http.HandlerFunc(app.handleLoginPost))
	if opts.LoginRatePerMin > 0 {
		loginPost = httprate.Limit(opts.LoginRatePerMin, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				app.templates.renderLogin(w, http.StatusTooManyRequests, loginViewData{Title: "Admin Login", Error: "Too many attempts, try again shortly"})
			}),
		)(loginPost)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin", app.redirectAdmin)
	mux.HandleFunc("GET /admin/{$}", app.requireAdmin(app.handleDashboard))
	mux.HandleFunc("GET /admin/login", app.handleLoginGet)
	mux.Handle("POST /admin/login", loginPost)
	mux.HandleFunc("POST /admin/logout", app.handleLogoutPost)
	mux.HandleFunc("GET /admin/users", app.requireAdmin(app.handleUsersList))
	mux.HandleFunc("GET /admin/activity", app.requireAdmin(app.handleActivityList))

	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		logger.Error("adminui: static fs setup failed", "err", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		})
	}
	static := http.StripPrefix("/admin/static/", http.FileServer(http.FS(staticFS)))
	mux.Handle("GET /admin/static/", static)
	mux.Handle("HEAD /admin/static/", static)

	return mux
}

type app struct {
	logger *slog.Logger

	authSvc     *service.AuthService
	adminSvc    *service.AdminService
	activitySvc *service.ActivityService

	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration
	admins       map[string]bool

	templates *templates
}

func (a *app) redirectAdmin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/admin/", http.StatusFound)
}

func (a *app) isAdmin(u domain.User) bool {
	return u.IsActive && a.admins[normalizeUsername(u.Username)]
}

func (a *app) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _, ok := a.currentUser(r)
		if !ok {
			http.Redirect(w, r, "/admin/login", http.StatusFound)
			return
		}
		if !a.isAdmin(u) {
			a.templates.renderError(w, http.StatusForbidden, "Forbidden", "This account is not allowed to access admin.")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (a *app) currentUser(r *http.Request) (domain.User, string, bool) {
	c, err := r.Cookie(auth.AdminCookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, "", false
	}
	token, ok := a.cookieCodec.Decode(c.Value)
	if !ok {
		return domain.User{}, "", false
	}
	u, err := a.authSvc.Resolve(r.Context(), token)
	if err != nil {
		return domain.User{}, "", false
	}
	return u, token, true
}

// normalizeUsername only trims: usernames are case-sensitive.
func normalizeUsername(s string) string {
	return strings.TrimSpace(s)
}
