// Package server exposes the chat manager and schedulers over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/banterlabs/banter/internal/chat"
	"github.com/banterlabs/banter/internal/config"
	"github.com/banterlabs/banter/internal/events"
	"github.com/banterlabs/banter/internal/generate"
	"github.com/banterlabs/banter/internal/persona"
	"github.com/banterlabs/banter/internal/scheduler"
	"github.com/banterlabs/banter/internal/store"
	"github.com/banterlabs/banter/pkg/types"
)

var errNoBus = errors.New("event bus is not configured")

// Server is the chat gateway HTTP server
type Server struct {
	cfg       *config.Config
	mgr       *chat.Manager
	gen       generate.Generator
	bus       *events.Bus
	logger    *slog.Logger
	server    *http.Server
	schedOpts scheduler.Options

	mu     sync.Mutex
	scheds map[string]*scheduler.Scheduler
}

// New creates a chat gateway server. schedOpts is shared by every
// per-session scheduler the server spins up; its zero value uses
// production timings.
func New(cfg *config.Config, mgr *chat.Manager, gen generate.Generator, bus *events.Bus, logger *slog.Logger, schedOpts scheduler.Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if schedOpts.Config == (scheduler.Config{}) {
		schedOpts.Config = scheduler.Config{
			PrimingDelay: cfg.PrimingDelay,
			GroupGapMin:  cfg.GroupGapMin,
			GroupGapMax:  cfg.GroupGapMax,
			TypingMin:    cfg.TypingMin,
			TypingMax:    cfg.TypingMax,
			ReplyMin:     cfg.ReplyMin,
			ReplyMax:     cfg.ReplyMax,
			GroupWindow:  cfg.GroupWindow,
			DirectWindow: cfg.DirectWindow,
		}
	}
	return &Server{
		cfg:       cfg,
		mgr:       mgr,
		gen:       gen,
		bus:       bus,
		logger:    logger,
		schedOpts: schedOpts,
		scheds:    make(map[string]*scheduler.Scheduler),
	}
}

// Router builds the HTTP handler with all routes and middleware applied
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/personas", s.handlePersonas).Methods("GET")
	router.HandleFunc("/api/sessions", s.handleListSessions).Methods("GET")
	router.HandleFunc("/api/sessions", s.handleCreateSession).Methods("POST")
	router.HandleFunc("/api/sessions/{id}", s.handleOpenSession).Methods("GET")
	router.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	router.HandleFunc("/api/sessions/{id}/close", s.handleCloseSession).Methods("POST")
	router.HandleFunc("/api/sessions/{id}/messages", s.handleSendMessage).Methods("POST")
	router.HandleFunc("/api/sessions/{id}/messages/{messageID}/reactions", s.handleToggleReaction).Methods("POST")
	router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	var handler http.Handler = router
	handler = s.loggingMiddleware(handler)
	handler = s.corsMiddleware(handler)
	return handler
}

// Start starts the HTTP server and blocks until it exits
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	s.logger.Info("chat gateway listening", "addr", s.cfg.HTTPAddr)
	return s.server.ListenAndServe()
}

// Shutdown stops every running scheduler and drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, sched := range s.scheds {
		sched.Stop()
		delete(s.scheds, id)
	}
	s.mu.Unlock()
	s.mgr.Flush()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// schedulerFor returns the running scheduler for the session, starting one
// if none is active. Stop is terminal, so a re-opened session gets a fresh
// scheduler.
func (s *Server) schedulerFor(sess *types.Session) *scheduler.Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sched, ok := s.scheds[sess.ID]; ok {
		return sched
	}
	sched := scheduler.New(sess, s.mgr, s.gen, s.bus, s.schedOpts)
	s.scheds[sess.ID] = sched
	sched.Start()
	return sched
}

func (s *Server) stopScheduler(id string) {
	s.mu.Lock()
	sched, ok := s.scheds[id]
	if ok {
		delete(s.scheds, id)
	}
	s.mu.Unlock()
	if ok {
		sched.Stop()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": len(s.mgr.Sessions()),
	})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"personas": persona.Catalog,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.mgr.Sessions(),
	})
}

type createSessionRequest struct {
	// PersonaID creates a one-to-one session
	PersonaID string `json:"persona_id,omitempty"`

	// Name plus ParticipantIDs creates a group session
	Name           string   `json:"name,omitempty"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
	Topic          string   `json:"topic,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if req.PersonaID != "" {
		p, ok := persona.ByID(req.PersonaID)
		if !ok {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("unknown persona %s", req.PersonaID))
			return
		}
		sess, created, err := s.mgr.CreateOneToOne(r.Context(), p)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
			s.publishSessionCreated(r.Context(), sess.ID)
		}
		s.respondJSON(w, status, map[string]interface{}{"session": sess})
		return
	}

	personas := make([]types.Persona, 0, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		p, ok := persona.ByID(id)
		if !ok {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("unknown persona %s", id))
			return
		}
		personas = append(personas, p)
	}

	sess, err := s.mgr.CreateGroup(r.Context(), req.Name, personas, req.Topic)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyGroupName) || errors.Is(err, chat.ErrNoParticipants) {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.publishSessionCreated(r.Context(), sess.ID)
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"session": sess})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, msgs, err := s.mgr.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	sched := s.schedulerFor(sess)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session":  sess,
		"messages": msgs,
		"typing":   sched.Typing(),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := s.mgr.Session(id); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.stopScheduler(id)
	s.mgr.Close(id)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"closed": id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.stopScheduler(id)
	if err := s.mgr.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if s.bus != nil {
		s.bus.Publish(r.Context(), events.NewEvent(events.EventSessionDeleted, id))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("message text is required"))
		return
	}

	// Open rather than a bare lookup so a cold session's log is loaded
	// before the append lands on it.
	sess, _, err := s.mgr.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}

	// Routing through the scheduler keeps the reply loop in step with what
	// the user just said.
	sched := s.schedulerFor(sess)
	msg, err := sched.UserMessage(r.Context(), req.Text)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"message": msg})
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleToggleReaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]
	messageID := vars["messageID"]

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Emoji == "" {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("emoji is required"))
		return
	}

	if err := s.mgr.ToggleReaction(sessionID, messageID, req.Emoji); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"toggled": messageID})
}

func (s *Server) publishSessionCreated(ctx context.Context, sessionID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.NewEvent(events.EventSessionCreated, sessionID))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	type ErrorResponse struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	resp := ErrorResponse{}
	resp.Error.Message = err.Error()
	resp.Error.Code = fmt.Sprintf("%d", status)

	json.NewEncoder(w).Encode(resp)
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
