// Package web exposes a jobs.Session over HTTP and pushes job changes to
// websocket clients.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tinyme-go/internal/config"
	"tinyme-go/internal/fileaccess"
	"tinyme-go/internal/jobs"
	"tinyme-go/internal/options"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	session     *jobs.Session
	files       *fileaccess.Local
	unsubscribe func()

	// Working options and output directory shared by every request
	stateMutex sync.RWMutex
	opts       options.Options
	outputDir  string

	ctx     context.Context
	cancel  context.CancelFunc
	work    sync.WaitGroup
	workMu  sync.Mutex
	stopped bool
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer creates a server around session. The working options start from
// the config defaults.
func NewServer(cfg *config.Config, session *jobs.Session, files *fileaccess.Local, log *logrus.Logger) *Server {
	opts, err := cfg.BaseOptions()
	if err != nil {
		log.WithError(err).Warn("Invalid default options, falling back to built-in defaults")
		opts = options.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
		session:   session,
		files:     files,
		opts:      opts,
		outputDir: cfg.OutputDirectory,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.unsubscribe = session.Registry.Subscribe(s.onJobEvent)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/options", s.handleGetOptions).Methods("GET")
	api.HandleFunc("/options", s.handleUpdateOptions).Methods("PATCH")
	api.HandleFunc("/options/preset", s.handleApplyPreset).Methods("POST")
	api.HandleFunc("/output-directory", s.handleGetOutputDirectory).Methods("GET")
	api.HandleFunc("/output-directory", s.handleSetOutputDirectory).Methods("PUT")
	api.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs", s.handleAddJobs).Methods("POST")
	api.HandleFunc("/jobs/reset", s.handleResetJobs).Methods("POST")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleRemoveJob).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/compress", s.handleCompressJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/preview", s.handlePreview).Methods("GET")
	api.HandleFunc("/compress", s.handleCompressBatch).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down, then cancels running compressions and
// waits for them to settle. Compress requests after Stop are refused.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.workMu.Lock()
	s.stopped = true
	s.workMu.Unlock()

	s.cancel()
	s.work.Wait()
	s.unsubscribe()

	s.wsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsMutex.Unlock()

	return err
}

func (s *Server) onJobEvent(ev jobs.Event) {
	if ev.Removed {
		s.broadcastWSMessage("job_removed", ev.Job)
		return
	}
	s.broadcastWSMessage("job_updated", ev.Job)
}

// runAsync runs fn in the background under the server context. It returns
// false once the server is stopping.
func (s *Server) runAsync(fn func(ctx context.Context)) bool {
	s.workMu.Lock()
	defer s.workMu.Unlock()
	if s.stopped {
		return false
	}
	s.work.Add(1)
	go func() {
		defer s.work.Done()
		fn(s.ctx)
	}()
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcastWSMessage writes to every client. Writes are serialised because a
// websocket connection supports one concurrent writer.
func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeStatus(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}
