package web

import (
	"bytes"
	"embed"
	"fmt"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"html/template"
	"net/http"
	"strings"
)

//go:embed assets/*.html
var assets embed.FS

const sessionName = "expt"

// Template and main menu definition
type Templates struct {
	*template.Template
	Menu    []Link
	Options []Link
	Heading template.HTML
	store   sessions.Store
	log     *zap.Logger
}

type Link struct {
	Url      string
	Name     string
	Selected bool
	Submit   bool
}

// Load and parse templates and initialise main menu
func NewTemplates(sessionKey []byte, log *zap.Logger) (*Templates, error) {
	var err error
	t := &Templates{Options: []Link{}, log: log}
	t.Template, err = template.ParseFS(assets, "assets/*.html")
	if err != nil {
		return nil, err
	}
	t.store = sessions.NewCookieStore(sessionKey)
	t.AddMenuItem(Link{Name: "results", Url: "/results"})
	t.AddMenuItem(Link{Name: "compare", Url: "/diff"})
	t.AddMenuItem(Link{Name: "plan", Url: "/plan"})
	return t, nil
}

func (t *Templates) Clone() *Templates {
	return &Templates{
		Template: t.Template,
		Menu:     append([]Link{}, t.Menu...),
		Options:  append([]Link{}, t.Options...),
		store:    t.store,
		log:      t.log,
	}
}

func (t *Templates) Select(url string) *Templates {
	for i, key := range t.Menu {
		t.Menu[i].Selected = strings.HasPrefix(url, key.Url)
	}
	return t
}

func (t *Templates) AddMenuItem(l Link) *Templates {
	t.Menu = append(t.Menu, l)
	return t
}

func (t *Templates) AddOption(l Link) *Templates {
	t.Options = append(t.Options, l)
	return t
}

// Exec renders the named template to a buffer so a failure can still be reported as an error page.
func (t *Templates) Exec(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		t.logError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (t *Templates) session(r *http.Request) *sessions.Session {
	sess, err := t.store.Get(r, sessionName)
	if err != nil {
		t.log.Debug("session decode", zap.Error(err))
	}
	return sess
}

func (t *Templates) logError(w http.ResponseWriter, err error) {
	t.log.Error("request failed", zap.Error(err))
	http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
}
