package adminui

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"RelayMessenger/internal/auth"
	"RelayMessenger/internal/domain"
)

func (a *app) handleDashboard(w http.ResponseWriter, r *http.Request) {
	o, err := a.adminSvc.Overview(r.Context())
	if err != nil {
		a.logger.Error("adminui: overview failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, "Error", "Failed to load overview")
		return
	}
	a.templates.renderDashboard(w, http.StatusOK, dashboardViewData{Title: "Admin", Overview: o})
}

func (a *app) handleLoginGet(w http.ResponseWriter, _ *http.Request) {
	a.templates.renderLogin(w, http.StatusOK, loginViewData{Title: "Admin Login"})
}

func (a *app) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.templates.renderLogin(w, http.StatusBadRequest, loginViewData{Title: "Admin Login", Error: "Invalid form"})
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		a.templates.renderLogin(w, http.StatusBadRequest, loginViewData{Title: "Admin Login", Username: username, Error: "Username and password are required"})
		return
	}

	u, err := a.authSvc.Verify(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) && !errors.Is(err, domain.ErrUserDisabled) {
			a.logger.Error("adminui: verify failed", "err", err)
		}
		a.record(r, nil, "Username: "+username, domain.ActivityStatusFailed)
		a.templates.renderLogin(w, http.StatusUnauthorized, loginViewData{Title: "Admin Login", Username: username, Error: "Invalid credentials"})
		return
	}
	if !a.isAdmin(u) {
		a.record(r, &u.ID, "not an admin", domain.ActivityStatusFailed)
		a.templates.renderLogin(w, http.StatusForbidden, loginViewData{Title: "Admin Login", Username: username, Error: "Not allowed"})
		return
	}

	token, err := a.authSvc.Issue(r.Context(), u.ID)
	if err != nil {
		a.logger.Error("adminui: issue session failed", "err", err, "user_id", u.ID)
		a.templates.renderLogin(w, http.StatusInternalServerError, loginViewData{Title: "Admin Login", Error: "Login failed"})
		return
	}

	a.record(r, &u.ID, "", domain.ActivityStatusSuccess)
	auth.SetAdminCookie(w, a.cookieCodec.Encode(token), a.sessionTTL, a.cookieSecure)
	http.Redirect(w, r, "/admin/", http.StatusFound)
}

func (a *app) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	if _, token, ok := a.currentUser(r); ok {
		if err := a.authSvc.Invalidate(r.Context(), token); err != nil {
			a.logger.Warn("adminui: invalidate session failed", "err", err)
		}
	}
	auth.ClearAdminCookie(w, a.cookieSecure)
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

func (a *app) handleUsersList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	users, err := a.adminSvc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		a.logger.Error("adminui: list users failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, "Error", "Failed to load users")
		return
	}
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		row := userRow{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Role:      userRole(u, a.admins),
			CreatedAt: u.CreatedAt.UTC().Format(timeLayout),
		}
		if u.LastLogin != nil {
			row.LastLogin = u.LastLogin.UTC().Format(timeLayout)
		}
		rows = append(rows, row)
	}
	a.templates.renderUsers(w, http.StatusOK, usersViewData{Title: "Users", Users: rows, Page: newPage(limit, offset, len(rows))})
}

func (a *app) handleActivityList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	recs, err := a.adminSvc.RecentActivity(r.Context(), limit, offset)
	if err != nil {
		a.logger.Error("adminui: list activity failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, "Error", "Failed to load activity")
		return
	}
	rows := make([]activityRow, 0, len(recs))
	for _, rec := range recs {
		who := rec.Username
		if who == "" {
			who = "anonymous"
		}
		rows = append(rows, activityRow{
			At:      rec.CreatedAt.UTC().Format(timeLayout),
			User:    who,
			Action:  rec.Action,
			Details: rec.Details,
			Origin:  rec.Origin,
			Failed:  rec.Status == domain.ActivityStatusFailed,
		})
	}
	a.templates.renderActivity(w, http.StatusOK, activityViewData{Title: "Activity", Rows: rows, Page: newPage(limit, offset, len(rows))})
}

func (a *app) record(r *http.Request, userID *int64, details, status string) {
	a.activitySvc.Record(r.Context(), domain.ActivityEntry{
		UserID:  userID,
		Action:  domain.ActionAdminLogin,
		Details: details,
		Origin:  remoteIP(r),
		Status:  status,
	})
}

func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return limit, offset
}

// remoteIP expects chi's RealIP middleware to have rewritten RemoteAddr.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
