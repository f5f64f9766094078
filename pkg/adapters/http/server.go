package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/pkg/command"
	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/go-chi/chi/v5"
)

// PropertySource is the view-model surface the server binds to. *viewmodel.Base
// satisfies it.
type PropertySource interface {
	Busy() bool
	Subscribe(h viewmodel.Handler) func()
}

// Snapshotter is implemented by sources that can report their property values.
// Snapshot is called from the goroutine raising the notification.
type Snapshotter interface {
	Snapshot() map[string]any
}

// CommandInfo describes a bound command.
type CommandInfo struct {
	Name       string `json:"name"`
	CanExecute bool   `json:"can_execute"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Busy       bool           `json:"busy"`
	Properties map[string]any `json:"properties,omitempty"`
}

// ExecuteRequest is the optional body of POST /commands/{name}.
type ExecuteRequest struct {
	Parameter any `json:"parameter"`
}

// PropertyEvent is streamed on GET /events.
type PropertyEvent struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// Server exposes a view-model and its commands over HTTP.
type Server struct {
	source   PropertySource
	commands map[string]command.Command
	names    []string
	streams  *StreamManager
	metrics  http.Handler
	logger   *slog.Logger

	router      chi.Router
	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithCommand binds cmd under name.
func WithCommand(name string, cmd command.Command) Option {
	return func(s *Server) {
		s.commands[name] = cmd
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures a logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer subscribes to source and builds the routes. Close releases the
// subscription.
func NewServer(source PropertySource, opts ...Option) *Server {
	s := &Server{
		source:   source,
		commands: make(map[string]command.Command),
		streams:  NewStreamManager(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams.logger = s.logger
	for name := range s.commands {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	s.unsubscribe = source.Subscribe(s.publish)

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/state", s.GetState)
	r.Get("/commands", s.ListCommands)
	r.Post("/commands/{name}", s.ExecuteCommand)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops streaming property changes.
func (s *Server) Close() {
	s.unsubscribe()
	s.streams.CloseAll()
}

func (s *Server) publish(e viewmodel.PropertyChanged) {
	evt := PropertyEvent{Name: e.Name}
	if snap, ok := s.source.(Snapshotter); ok {
		evt.Value = snap.Snapshot()[e.Name]
	}
	bytes, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("SSE: Failed to encode property event", "property", e.Name, "err", err)
		return
	}
	s.streams.Broadcast(string(bytes))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{Busy: s.source.Busy()}
	if snap, ok := s.source.(Snapshotter); ok {
		resp.Properties = snap.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ListCommands handles GET /commands. Guards are evaluated with a nil parameter.
func (s *Server) ListCommands(w http.ResponseWriter, r *http.Request) {
	infos := make([]CommandInfo, 0, len(s.names))
	for _, name := range s.names {
		infos = append(infos, CommandInfo{Name: name, CanExecute: s.commands[name].CanExecute(nil)})
	}
	s.writeJSON(w, http.StatusOK, infos)
}

// ExecuteCommand handles POST /commands/{name}. The guard is checked first;
// a refused command answers 409.
func (s *Server) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cmd, ok := s.commands[name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown command: %s", name), http.StatusNotFound)
		return
	}

	var body ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("ExecuteCommand: Invalid request body", "command", name, "err", err)
		return
	}

	if !cmd.CanExecute(body.Parameter) {
		http.Error(w, fmt.Sprintf("Command cannot execute: %s", name), http.StatusConflict)
		return
	}
	if err := cmd.Execute(body.Parameter); err != nil {
		http.Error(w, fmt.Sprintf("Command failed: %v", err), http.StatusInternalServerError)
		s.logger.Error("ExecuteCommand failed", "command", name, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: property\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// StreamManager fans property events out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message")
		}
	}
}

// Len returns the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// CloseAll disconnects every client.
func (sm *StreamManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers {
		delete(sm.subscribers, ch)
		close(ch)
	}
}
