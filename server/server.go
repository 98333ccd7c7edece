//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the chat orchestrator and context registries
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/careflow-ai/careflow/flow"
	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/orchestrator"
	"github.com/careflow-ai/careflow/session"
	"github.com/careflow-ai/careflow/storage"
)

// Error codes carried in JSON error bodies.
const (
	codeContextNotFound = "CONTEXT_NOT_FOUND"
	codeFlowNotFound    = "FLOW_NOT_FOUND"
	codeBadRequest      = "BAD_REQUEST"
	codeInternal        = "INTERNAL_ERROR"
)

// Server is the HTTP surface over the orchestrator and context manager.
type Server struct {
	orch     *orchestrator.Orchestrator
	contexts *session.ContextManager
	users    storage.UserRepository
	flows    *flow.Manager
	handler  http.Handler
}

// Option configures the Server.
type Option func(*Server, *serverOptions)

type serverOptions struct {
	allowedOrigins []string
}

// WithAllowedOrigins restricts CORS to the given origins. Default allows
// any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(_ *Server, o *serverOptions) {
		o.allowedOrigins = origins
	}
}

// WithUsers supplies the users repository so token creation can load the
// stored profile.
func WithUsers(users storage.UserRepository) Option {
	return func(s *Server, _ *serverOptions) {
		s.users = users
	}
}

// WithFlows supplies the flow manager so session creation can verify the
// flow exists.
func WithFlows(flows *flow.Manager) Option {
	return func(s *Server, _ *serverOptions) {
		s.flows = flows
	}
}

// New builds the Server and its routes.
func New(orch *orchestrator.Orchestrator, contexts *session.ContextManager, opts ...Option) *Server {
	options := &serverOptions{allowedOrigins: []string{"*"}}
	s := &Server{orch: orch, contexts: contexts}
	for _, opt := range opts {
		opt(s, options)
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/tokens", s.handleCreateToken).Methods(http.MethodPost)
	api.HandleFunc("/tokens/{id}", s.handleGetToken).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: options.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)
	return s
}

// Handler returns the router wrapped with CORS, for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down with a
// short drain deadline.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("server: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "malformed JSON body")
		return
	}
	if req.Message == "" || req.SessionID == "" || req.TokenID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "message, session_id and token_id are required")
		return
	}

	resp, err := s.orch.Chat(r.Context(), &req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, orchestrator.ErrSessionNotFound), errors.Is(err, orchestrator.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, codeContextNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrFlowNotFound):
		writeError(w, http.StatusNotFound, codeFlowNotFound, err.Error())
	default:
		log.Errorf("server: chat failed: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

type createTokenRequest struct {
	UserID   string         `json:"user_id"`
	UserInfo map[string]any `json:"user_info,omitempty"`
}

// handleCreateToken registers a token context under token_id == user_id,
// preferring the stored user profile over the request's user_info.
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "malformed JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "user_id is required")
		return
	}

	userInfo := req.UserInfo
	if s.users != nil {
		user, err := s.users.GetByID(r.Context(), req.UserID)
		switch {
		case err == nil:
			userInfo = user.Profile
		case errors.Is(err, storage.ErrNotFound):
			// Keep the request-provided profile.
		default:
			log.Errorf("server: load user %s: %v", req.UserID, err)
			writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
			return
		}
	}
	tc := s.contexts.CreateTokenContext(req.UserID, req.UserID, userInfo)
	writeJSON(w, http.StatusCreated, tc)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tc, ok := s.contexts.GetTokenContext(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeContextNotFound, "no token context: "+id)
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

type createSessionRequest struct {
	UserID         string `json:"user_id"`
	FlowName       string `json:"flow_name"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "malformed JSON body")
		return
	}
	if req.UserID == "" || req.FlowName == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "user_id and flow_name are required")
		return
	}
	if s.flows != nil {
		if _, ok := s.flows.Definition(req.FlowName); !ok {
			writeError(w, http.StatusNotFound, codeFlowNotFound, "no flow named "+req.FlowName)
			return
		}
	}
	sc := s.contexts.CreateSessionContext(req.UserID, req.CounterpartyID,
		session.FlowInfo{FlowKey: req.FlowName})
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sc, ok := s.contexts.GetSessionContext(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeContextNotFound, "no session context: "+id)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("server: encode response: %v", err)
	}
}
