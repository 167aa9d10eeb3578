package web

import (
	"context"
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/jnb666/trafficsigns/config"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testReports = []string{"experiments.md", "traffic_signs.md"}

// copy the report fixtures to a temp dir so tests can modify them
func copyReports(t *testing.T) []string {
	dir := t.TempDir()
	var paths []string
	for _, name := range testReports {
		data, err := os.ReadFile(filepath.Join("..", "report", "testdata", name))
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		paths = append(paths, path)
	}
	return paths
}

func newTestServer(t *testing.T) *Server {
	s := config.Default()
	s.DataDir = t.TempDir()
	s.Reports = copyReports(t)
	srv, err := NewServer(context.Background(), s, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestResults(t *testing.T) {
	srv := newTestServer(t)

	w := get(t, srv, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/results", w.Header().Get("Location"))

	w = get(t, srv, "/results/0")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Neural Network Classification Experiments")
	assert.Contains(t, body, "0.9619")
	assert.Contains(t, body, `class="best"`)
	assert.Contains(t, body, "all checks passed")
	assert.Contains(t, body, "https://cdn.cs50.net/ai/2020/x/projects/5/gtsrb.zip")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "<th>mean</th>")
	assert.Contains(t, body, "0.9436&PlusMinus;")
	assert.Contains(t, body, "loaded "+srv.Ledger.Loaded().Format("2006-01-02"))

	w = get(t, srv, "/results/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "on Traffic Signs Classification Problem")

	w = get(t, srv, "/results/5")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResultsSort(t *testing.T) {
	srv := newTestServer(t)

	w := get(t, srv, "/results/0?sort=accuracy&desc=1")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Less(t, strings.Index(body, "0.9619"), strings.Index(body, "0.9284"))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// order is remembered in the session
	w = get(t, srv, "/results/0", cookies...)
	body = w.Body.String()
	assert.Contains(t, body, "&#9660;")
	assert.Less(t, strings.Index(body, "0.9619"), strings.Index(body, "0.9284"))

	// without the cookie the table order is used
	w = get(t, srv, "/results/0")
	body = w.Body.String()
	assert.Greater(t, strings.Index(body, "0.9619"), strings.Index(body, "0.9347"))
}

func TestPlot(t *testing.T) {
	srv := newTestServer(t)
	for _, metric := range []string{"accuracy", "loss"} {
		w := get(t, srv, "/plot/0/"+metric+".svg")
		require.Equal(t, http.StatusOK, w.Code, metric)
		assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "<svg")
	}
	w := get(t, srv, "/plot/0/remarks.svg")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/reports")
	require.Equal(t, http.StatusOK, w.Code)
	var list []ReportInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	for _, info := range list {
		assert.Equal(t, 3, info.BestID)
		assert.Len(t, info.Experiments, 6)
		assert.Empty(t, info.Problems)
		assert.NotEmpty(t, info.Digest)
		assert.Contains(t, info.Links, "https://cdn.cs50.net/ai/2020/x/projects/5/gtsrb.zip")
		assert.Equal(t, 6, info.Summary.Count)
	}
	assert.NotEqual(t, list[0].Title, list[1].Title)
}

func TestDiff(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/diff")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tables are identical")

	w = get(t, srv, "/diff?a=0&b=0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "tables are identical")
}

func TestDiffChanged(t *testing.T) {
	srv := newTestServer(t)
	path := srv.Ledger.Paths()[1]
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "0.9512", "0.9513", 1))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, srv.Ledger.Reload(context.Background()))

	w := get(t, srv, "/diff")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "tables are identical")
	assert.Contains(t, body, "0.9513")
}

func TestPlanPage(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/plan")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="Hidden" value="256"`)

	form := url.Values{
		"Hidden":  {"128,256,512"},
		"Dropout": {"0.3, 0.5"},
		"Batch":   {"32,64"},
		"runs":    {"1"},
	}
	w = post(t, srv, "/plan", form)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 12, strings.Count(body, "<td>planned</td>"))
	assert.NotContains(t, body, "config saved")

	form.Set("runs", "2")
	w = post(t, srv, "/plan", form)
	assert.Equal(t, 24, strings.Count(w.Body.String(), "<td>planned</td>"))

	form.Set("Hidden", "128,abc")
	w = post(t, srv, "/plan", form)
	body = w.Body.String()
	assert.Contains(t, body, "invalid syntax")
	assert.NotContains(t, body, "<td>planned</td>")
}

func TestPlanSave(t *testing.T) {
	srv := newTestServer(t)
	w := post(t, srv, "/plan", url.Values{"Hidden": {"384"}, "Epochs": {"20"}, "save": {"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "config saved")

	conf, err := expt.LoadConfig(PlanConfig)
	require.NoError(t, err)
	assert.Equal(t, 384, conf.Hidden)
	assert.Equal(t, 20, conf.Epochs)
	assert.Equal(t, DefaultPlan().Architecture(), conf.Architecture())
}

func post(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetFields(t *testing.T) {
	flds := getFields(DefaultPlan())
	names := make([]string, len(flds))
	for i, f := range flds {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Name", "DataSet", "Hidden", "Dropout", "Epochs", "Batch", "RandSeed"}, names)
	assert.Equal(t, "0.5", flds[3].Value)
}

func TestLedger(t *testing.T) {
	paths := copyReports(t)
	l, err := NewLedger(context.Background(), paths, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, l.Reports(), 2)
	first := l.Loaded()

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "# Neural Network", "# Revised Neural Network", 1))
	require.NoError(t, os.WriteFile(paths[0], data, 0o644))
	require.NoError(t, l.Reload(context.Background()))
	rep, ok := l.Report(0)
	require.True(t, ok)
	assert.Equal(t, "Revised Neural Network Classification Experiments", rep.Title)
	assert.False(t, l.Loaded().Before(first))

	// a broken file keeps the previous reports
	require.NoError(t, os.WriteFile(paths[0], []byte("no table here"), 0o644))
	assert.Error(t, l.Reload(context.Background()))
	rep, _ = l.Report(0)
	assert.Equal(t, "Revised Neural Network Classification Experiments", rep.Title)

	_, ok = l.Report(2)
	assert.False(t, ok)
}

func TestWatcher(t *testing.T) {
	defer goleak.VerifyNone(t)
	paths := copyReports(t)
	changed := make(chan string, 10)
	w, err := NewWatcher(paths[:1], func(path string) { changed <- path }, zaptest.NewLogger(t))
	require.NoError(t, err)

	// other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(paths[0]), "other.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(paths[0], []byte("# changed\n"), 0o644))
	select {
	case path := <-changed:
		assert.Equal(t, filepath.Clean(paths[0]), path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}
	require.NoError(t, w.Close())
}

func TestHub(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ts := httptest.NewServer(http.HandlerFunc(hub.Websocket()))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Broadcast("reload:2")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload:2", string(msg))

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
}

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	mw := NewAuthMiddleware("admin", string(hash), zaptest.NewLogger(t))
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := get(t, h, "/results/0")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/results/0", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("GET", "/results/0", nil)
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)

	// the cookie alone is enough afterwards
	w = get(t, h, "/results/0", cookies...)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, h, "/results/0", &http.Cookie{Name: cookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewServerErrors(t *testing.T) {
	s := config.Default()
	_, err := NewServer(context.Background(), s, zaptest.NewLogger(t))
	assert.Error(t, err)

	s.Reports = []string{filepath.Join(t.TempDir(), "missing.md")}
	_, err = NewServer(context.Background(), s, zaptest.NewLogger(t))
	assert.Error(t, err)
}
