package adminui

import (
	"fmt"
	"html/template"
	"net/http"

	"RelayMessenger/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

type templates struct {
	login     *template.Template
	dashboard *template.Template
	users     *template.Template
	activity  *template.Template
	errorT    *template.Template
}

type viewData struct {
	Title string
	Error string
}

type loginViewData struct {
	Title    string
	Username string
	Error    string
}

type dashboardViewData struct {
	Title    string
	Overview domain.Overview
}

type page struct {
	Limit      int
	PrevOffset int
	NextOffset int
	HasPrev    bool
	HasNext    bool
}

// newPage assumes a full page means there may be more rows.
func newPage(limit, offset, n int) page {
	if limit <= 0 {
		limit = n
	}
	p := page{Limit: limit, HasPrev: offset > 0, HasNext: n > 0 && n >= limit}
	if p.HasPrev {
		p.PrevOffset = max(offset-limit, 0)
	}
	p.NextOffset = offset + n
	return p
}

type usersViewData struct {
	Title string
	Users []userRow
	Page  page
}

type userRow struct {
	ID        int64
	Username  string
	Email     string
	Role      string
	CreatedAt string
	LastLogin string
}

type activityViewData struct {
	Title string
	Rows  []activityRow
	Page  page
}

type activityRow struct {
	At      string
	User    string
	Action  string
	Details string
	Origin  string
	Failed  bool
}

func parseTemplates() (*templates, error) {
	parse := func(files ...string) (*template.Template, error) {
		return template.New("base").ParseFS(assets, files...)
	}

	login, err := parse("templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login: %w", err)
	}
	dashboard, err := parse("templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard: %w", err)
	}
	users, err := parse("templates/layout.html", "templates/users.html")
	if err != nil {
		return nil, fmt.Errorf("parse users: %w", err)
	}
	activity, err := parse("templates/layout.html", "templates/activity.html")
	if err != nil {
		return nil, fmt.Errorf("parse activity: %w", err)
	}
	errorT, err := parse("templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &templates{login: login, dashboard: dashboard, users: users, activity: activity, errorT: errorT}, nil
}

func render(w http.ResponseWriter, t *template.Template, name string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = t.ExecuteTemplate(w, name, data)
}

func (t *templates) renderLogin(w http.ResponseWriter, status int, data loginViewData) {
	render(w, t.login, "login.html", status, data)
}

func (t *templates) renderDashboard(w http.ResponseWriter, status int, data dashboardViewData) {
	render(w, t.dashboard, "dashboard.html", status, data)
}

func (t *templates) renderUsers(w http.ResponseWriter, status int, data usersViewData) {
	render(w, t.users, "users.html", status, data)
}

func (t *templates) renderActivity(w http.ResponseWriter, status int, data activityViewData) {
	render(w, t.activity, "activity.html", status, data)
}

func (t *templates) renderError(w http.ResponseWriter, status int, title, msg string) {
	render(w, t.errorT, "error.html", status, viewData{Title: title, Error: msg})
}
