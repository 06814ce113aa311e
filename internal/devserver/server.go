// Package devserver serves the build directory during development and pushes
// rebuild notifications to connected browsers over a websocket.
//
// Live reload is on when the dev server is hot and the configuration carries
// a HotReload plugin. Every HTML page it then serves gets the client script
// appended, and the client connects to the /ws route. Build errors are rendered as
// an overlay in the browser; a clean build reloads the page.
package devserver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/assetpack/internal/bundle"
	"github.com/conneroisu/assetpack/internal/errors"
	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/logging"
)

// Server serves one build directory with live reload.
type Server struct {
	config fragment.DevServer
	dir    string
	live   bool

	hub    *hub
	errors *errors.ErrorCollector
	logger logging.Logger

	httpServer   *http.Server
	serverMutex  sync.Mutex
	shutdownOnce sync.Once
}

// New creates a server for the assembled configuration f. It fails when f has
// no development server section or no output path.
func New(f fragment.Fragment, logger logging.Logger) (*Server, error) {
	if f.DevServer == nil {
		return nil, fmt.Errorf("configuration has no dev server")
	}
	if f.Output.Path == "" {
		return nil, fmt.Errorf("configuration has no output path")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("devserver")

	return &Server{
		config: *f.DevServer,
		dir:    f.Output.Path,
		live:   f.DevServer.Hot && len(fragment.PluginsOf[*fragment.HotReload](f)) > 0,
		hub:    newHub(logger),
		errors: errors.NewErrorCollector(),
		logger: logger,
	}, nil
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.live {
		mux.HandleFunc("/ws", s.handleWebSocket)
	}
	mux.HandleFunc(ClientPath, s.handleClient)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)
	return chain(mux, s.logRequests, allowCrossOrigin)
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(context.Background(), err, "Dev server shutdown failed")
		}
	}()

	s.logger.Info(ctx, "Dev server listening", "addr", s.Addr(), "dir", s.dir)
	if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server. Calls after the first are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.serverMutex.Lock()
		server := s.httpServer
		s.serverMutex.Unlock()
		if server != nil {
			err = server.Shutdown(ctx)
		}
	})
	return err
}

// Notify records the outcome of a build and tells every browser about it.
// Errors and warnings reach the overlay only when the matching Overlay flag
// is set; anything else triggers a reload.
func (s *Server) Notify(res *bundle.Result, err error) {
	var shown []errors.BuildError
	var failure *errors.BuildFailure

	switch {
	case stderrors.As(err, &failure):
		if s.config.Overlay.Errors {
			shown = append(shown, failure.Errors...)
		}
		err = nil
	case res != nil:
		if s.config.Overlay.Errors {
			shown = append(shown, res.Errors...)
		}
	}
	if res != nil && s.config.Overlay.Warnings {
		shown = append(shown, res.Warnings...)
	}

	s.errors.Replace(shown)
	if err != nil && s.config.Overlay.Errors {
		s.errors.AddError(err)
	}

	if s.errors.HasErrors() {
		s.logger.Debug(context.Background(), "Sending build overlay", "messages", len(s.errors.GetAllErrors()))
		s.hub.send(UpdateMessage{
			Type:      MessageBuildError,
			Content:   s.errors.ErrorOverlay(),
			Timestamp: time.Now(),
		})
		return
	}
	s.hub.send(UpdateMessage{Type: MessageReload, Timestamp: time.Now()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", s.config.Host + ":*"},
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  s.hub,
	}

	// A browser connecting after a failed build sees the overlay at once.
	if s.errors.HasErrors() {
		if data, err := json.Marshal(UpdateMessage{
			Type:      MessageBuildError,
			Content:   s.errors.ErrorOverlay(),
			Timestamp: time.Now(),
		}); err == nil {
			c.send <- data
		}
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go c.writePump(r.Context())
	c.readPump(r.Context())
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(clientScript))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "healthy",
		"clients": s.hub.count(),
		"errors":  len(s.errors.GetAllErrors()),
	})
}

// handleStatic serves the build directory. HTML responses carry the client
// script tag when live reload is on.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))

	info, err := os.Stat(name)
	if err == nil && info.IsDir() {
		name = filepath.Join(name, "index.html")
		info, err = os.Stat(name)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if !s.live || filepath.Ext(name) != ".html" {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, name)
		return
	}

	page, err := os.ReadFile(name)
	if err != nil {
		http.Error(w, "failed to read page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), strings.NewReader(injectClient(string(page))))
}

// injectClient places the client script tag before the last </body>, or at
// the end when the page has none.
func injectClient(page string) string {
	tag := `<script src="` + ClientPath + `"></script>`
	if i := strings.LastIndex(strings.ToLower(page), "</body>"); i >= 0 {
		return page[:i] + tag + page[i:]
	}
	return page + tag
}
