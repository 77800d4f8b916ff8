package main

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/server"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// levelsInterval is how often connected clients receive meter readings.
const levelsInterval = 100 * time.Millisecond

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Version     string
	Year        int
	StationName string
}

// Meter reports the current peak levels in dBFS.
type Meter interface {
	Meter() (left, right float64, clipped bool)
}

// Server is the HTTP server for the remote recording screen and the API.
type Server struct {
	config   *config.Config
	hub      *server.Hub
	commands *server.CommandHandler
	meter    Meter
	version  *VersionChecker
	eventLog string
	started  time.Time
}

// ServerConfig wires a Server.
type ServerConfig struct {
	Config   *config.Config
	Hub      *server.Hub
	Commands *server.CommandHandler
	Meter    Meter
	Version  *VersionChecker
	EventLog string
}

// NewServer returns a Server for c.
func NewServer(c ServerConfig) *Server {
	return &Server{
		config:   c.Config,
		hub:      c.Hub,
		commands: c.Commands,
		meter:    c.Meter,
		version:  c.Version,
		eventLog: c.EventLog,
		started:  time.Now(),
	}
}

// handleWebSocket runs one remote screen client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection. send is never
	// closed: async command handlers may still answer after the client left.
	send := make(chan any, 16)
	done := make(chan struct{})

	go s.runWebSocketWriter(conn, send, done)
	go s.runWebSocketReader(conn, send, done)

	s.hub.Register(send)
	s.runWebSocketEventLoop(send, done)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any, done <-chan struct{}) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for {
		select {
		case <-done:
			return
		case msg := <-send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, send chan<- any, done chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send)
	}
}

// runWebSocketEventLoop streams meter readings until the reader exits.
// Frames reach the client through the hub.
func (s *Server) runWebSocketEventLoop(send chan any, done <-chan struct{}) {
	ticker := time.NewTicker(levelsInterval)
	defer ticker.Stop()
	defer s.hub.Unregister(send)

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			left, right, clipped := s.meter.Meter()
			select {
			case send <- types.WSLevelsResponse{Type: "levels", PeakLeft: left, PeakRight: right, Clipped: clipped}:
			case <-done:
				return
			}
		}
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /style.css", s.handleStaticFile)
	mux.HandleFunc("GET /app.js", s.handleStaticFile)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /ws", s.apiKeyAuth(s.handleWebSocket))
	mux.HandleFunc("GET /api/status", s.apiKeyAuth(s.handleAPIStatus))
	mux.HandleFunc("GET /api/devices", s.apiKeyAuth(s.handleAPIDevices))
	mux.HandleFunc("GET /api/events", s.apiKeyAuth(s.handleAPIEvents))
	mux.HandleFunc("POST /api/action", s.apiKeyAuth(s.handleAPIAction))

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// apiKeyAuth returns middleware for API key authentication.
func (s *Server) apiKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !server.Authorized(r, s.config.APIKey()) {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// staticFile is an embedded static file with its content type.
type staticFile struct {
	contentType string
	content     string
}

var staticFiles = map[string]staticFile{
	"/style.css": {contentType: "text/css", content: styleCSS},
	"/app.js":    {contentType: "application/javascript", content: appJS},
}

func (s *Server) handleStaticFile(w http.ResponseWriter, r *http.Request) {
	file, ok := staticFiles[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", file.contentType)
	if _, err := w.Write([]byte(file.content)); err != nil {
		slog.Error("failed to write static file", "path", r.URL.Path, "error", err)
	}
}

// handleIndex serves the remote screen page. The page authenticates its
// WebSocket with the key query parameter.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := indexTmpl.Execute(w, indexData{
		Version:     Version,
		Year:        time.Now().Year(),
		StationName: s.config.Snapshot().Station,
	}); err != nil {
		slog.Error("failed to render index page", "error", err)
	}
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
