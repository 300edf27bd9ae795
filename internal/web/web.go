// Package web serves the server-rendered HTML pages.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"townhall/internal/auth"
	"townhall/internal/civic"
	"townhall/internal/logging"
	"townhall/internal/outreach"
	"townhall/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const flashCookie = "townhall_flash"

// Store is the persistence the pages read and write.
type Store interface {
	ListOfficials(ctx context.Context, q store.OfficialQuery) ([]civic.Official, error)
	LoadDetails(ctx context.Context, list []civic.Official, want store.Detail) error
	GetOfficial(ctx context.Context, id int64) (*civic.Official, error)
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
	Now() time.Time
}

// Handler renders every HTML page.
type Handler struct {
	store    Store
	workflow *outreach.Workflow
	auth     *auth.Service
	pages    map[string]*template.Template
}

var pageNames = []string{
	"index", "official_detail", "add_meeting", "call_us_rep",
	"register", "login", "sent_mail", "error",
}

// New parses the templates and returns the page handler.
func New(st Store, wf *outreach.Workflow, authSvc *auth.Service) (*Handler, error) {
	funcs := template.FuncMap{
		"date":         func(t time.Time) string { return t.Format("January 2, 2006") },
		"datetime":     func(t time.Time) string { return t.Format("Jan 2, 2006 15:04 MST") },
		"meetingTypes": func() []civic.MeetingType { return civic.MeetingTypes },
		"lines":        lines,
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Handler{store: st, workflow: wf, auth: authSvc, pages: pages}, nil
}

// Register mounts the pages on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	protect := func(fn http.HandlerFunc) http.Handler { return auth.RequireUser(fn) }

	mux.HandleFunc("GET /{$}", h.index)
	mux.Handle("GET /officials/{ref}/{$}", protect(h.officialDetail))
	mux.Handle("GET /officials/{ref}/add-meeting/{$}", protect(h.addMeetingForm))
	mux.Handle("POST /officials/{ref}/add-meeting/{$}", protect(h.addMeeting))
	mux.Handle("GET /call-us-rep/{$}", protect(h.callUsRepForm))
	mux.Handle("POST /call-us-rep/{$}", protect(h.callUsRep))

	mux.HandleFunc("GET /accounts/register/{$}", h.registerForm)
	mux.HandleFunc("POST /accounts/register/{$}", h.register)
	mux.HandleFunc("GET /accounts/login/{$}", h.loginForm)
	mux.HandleFunc("POST /accounts/login/{$}", h.login)
	mux.HandleFunc("GET /accounts/login/code/{code}/{$}", h.loginCode)
	mux.HandleFunc("POST /accounts/logout/{$}", h.logout)
}

// viewData is what every template receives.
type viewData struct {
	User  *civic.User
	Flash string
	Today time.Time
	Data  any
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := h.pages[name]
	if !ok {
		h.serverError(w, r, fmt.Errorf("unknown template %q", name))
		return
	}

	v := viewData{
		User:  auth.UserFromContext(r.Context()),
		Flash: takeFlash(w, r),
		Today: h.store.Now(),
		Data:  data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", v); err != nil {
		h.serverError(w, r, fmt.Errorf("failed to render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Title   string
	Message string
}

// fail maps err onto a response: missing records are 404, everything else
// is logged and answered with a bare 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.render(w, r, http.StatusNotFound, "error", errorPage{"Not found", "The page you asked for does not exist."})
		return
	}
	h.serverError(w, r, err)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context(), logging.CategoryHTTP).Error("%s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	logging.HTTPWarn("Bad request %s %s: %s", r.Method, r.URL.Path, msg)
	h.render(w, r, http.StatusBadRequest, "error", errorPage{"Bad request", msg})
}

// setFlash stores a one-shot message shown on the next rendered page.
func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		logging.HTTPDebug("Dropping malformed flash cookie: %v", err)
		return ""
	}
	return msg
}

func lines(s string) template.HTML {
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		parts[i] = html.EscapeString(p)
	}
	return template.HTML(strings.Join(parts, "<br>"))
}
