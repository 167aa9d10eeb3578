package web

import (
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"net/http"
	"path/filepath"
	"sync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub tracks the websocket connections which are told when the reports change.
type Hub struct {
	conns map[*websocket.Conn]bool
	log   *zap.Logger
	sync.Mutex
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool), log: log}
}

// Handler function for websocket connection
func (h *Hub) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade", zap.Error(err))
			return
		}
		h.Lock()
		h.conns[conn] = true
		h.Unlock()
		// read until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.remove(conn)
	}
}

// Broadcast sends a text message to every client.
func (h *Hub) Broadcast(msg string) {
	h.Lock()
	defer h.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			h.log.Debug("websocket write", zap.Error(err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.Lock()
	defer h.Unlock()
	return len(h.conns)
}

// Close all connections.
func (h *Hub) Close() {
	h.Lock()
	defer h.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.Lock()
	defer h.Unlock()
	if h.conns[conn] {
		conn.Close()
		delete(h.conns, conn)
	}
}

// Watcher calls a function whenever one of a set of files is written, created or replaced.
type Watcher struct {
	fw       *fsnotify.Watcher
	files    map[string]bool
	onChange func(path string)
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewWatcher watches the directories holding the given files.
func NewWatcher(paths []string, onChange func(path string), log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fw: fw, files: make(map[string]bool), onChange: onChange, log: log}
	dirs := make(map[string]bool)
	for _, p := range paths {
		p = filepath.Clean(p)
		w.files[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
		log.Debug("watching", zap.String("dir", dir))
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			name := filepath.Clean(ev.Name)
			if w.files[name] && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				w.log.Debug("file changed", zap.String("path", name), zap.Stringer("op", ev.Op))
				w.onChange(name)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	w.wg.Wait()
	return err
}
