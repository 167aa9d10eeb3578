package web

import (
	"context"
	"errors"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/jnb666/trafficsigns/config"
	"github.com/jnb666/trafficsigns/expt"
	"go.uber.org/zap"
	"net/http"
	"os"
	"strconv"
)

// Name of the base sweep config file under the data directory.
const PlanConfig = "plan.json"

// Server ties the pages, report ledger, websocket hub and file watcher together.
type Server struct {
	http.Handler
	Ledger  *Ledger
	Hub     *Hub
	watcher *Watcher
	log     *zap.Logger
}

// NewServer loads the reports named in the settings and sets up the routes.
func NewServer(ctx context.Context, s config.Settings, log *zap.Logger) (*Server, error) {
	if len(s.Reports) == 0 {
		return nil, errors.New("no reports configured")
	}
	ledger, err := NewLedger(ctx, s.Reports, log)
	if err != nil {
		return nil, err
	}
	key := []byte(s.Auth.SessionKey)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	t, err := NewTemplates(key, log)
	if err != nil {
		return nil, err
	}
	expt.DataDir = s.DataDir
	conf, err := expt.LoadConfig(PlanConfig)
	if errors.Is(err, os.ErrNotExist) {
		conf = DefaultPlan()
	} else if err != nil {
		return nil, err
	}

	srv := &Server{Ledger: ledger, Hub: NewHub(log), log: log}
	srv.watcher, err = NewWatcher(ledger.Paths(), func(path string) {
		if err := ledger.Reload(context.Background()); err == nil {
			srv.Hub.Broadcast("reload:" + strconv.Itoa(len(ledger.Reports())))
		}
	}, log)
	if err != nil {
		return nil, err
	}

	resultsPage := NewResultsPage(t, ledger)
	diffPage := NewDiffPage(t, ledger)
	planPage := NewPlanPage(t.Clone(), ledger, conf, PlanConfig)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/results", http.StatusFound))
	r.Handle("/results", http.RedirectHandler("/results/0", http.StatusFound))
	r.HandleFunc("/results/{doc:[0-9]+}", resultsPage.Base())
	r.HandleFunc("/plot/{doc:[0-9]+}/{metric:(?:accuracy|loss)}.svg", resultsPage.Plot())
	r.HandleFunc("/api/reports", resultsPage.API())
	r.HandleFunc("/diff", diffPage.Base())
	r.HandleFunc("/plan", planPage.Base()).Methods("GET", "POST")
	r.HandleFunc("/ws", srv.Hub.Websocket())
	if s.Auth.User != "" {
		r.Use(NewAuthMiddleware(s.Auth.User, s.Auth.PasswordHash, log).Middleware)
	}
	srv.Handler = r
	return srv, nil
}

// Close stops the file watcher and websocket connections.
func (s *Server) Close() error {
	err := s.watcher.Close()
	s.Hub.Close()
	return err
}

// DefaultPlan is the sweep base used when no config has been saved.
func DefaultPlan() expt.Config {
	return expt.Config{
		Name:    "traffic",
		DataSet: "gtsrb",
		Hidden:  256,
		Dropout: 0.5,
		Epochs:  10,
		Batch:   32,
	}.AddLayers(
		expt.Conv{Nfeats: 32, Size: 3},
		expt.MaxPool{Size: 2},
		expt.Conv{Nfeats: 64, Size: 3},
		expt.MaxPool{Size: 2},
		expt.Flatten{},
		expt.Linear{},
		expt.Dropout{},
	)
}
