//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package session

import (
	"sync"
)

// ContextManager holds the token and session registries. Each map is
// guarded by its own RWMutex so token lookups never contend with session
// writes.
type ContextManager struct {
	tokenMu sync.RWMutex
	tokens  map[string]*TokenContext

	sessionMu sync.RWMutex
	sessions  map[string]*SessionContext
}

// NewContextManager creates an empty manager.
func NewContextManager() *ContextManager {
	return &ContextManager{
		tokens:   make(map[string]*TokenContext),
		sessions: make(map[string]*SessionContext),
	}
}

// CreateTokenContext registers a token context, replacing (with a warning)
// any context already registered under the same token id.
func (m *ContextManager) CreateTokenContext(tokenID, userID string, userInfo map[string]any) *TokenContext {
	tc := NewTokenContext(tokenID, userID, userInfo)
	m.tokenMu.Lock()
	if _, exists := m.tokens[tokenID]; exists {
		warnOverwrite("token", tokenID)
	}
	m.tokens[tokenID] = tc
	m.tokenMu.Unlock()
	return tc
}

// GetTokenContext looks up a token context.
func (m *ContextManager) GetTokenContext(tokenID string) (*TokenContext, bool) {
	m.tokenMu.RLock()
	defer m.tokenMu.RUnlock()
	tc, ok := m.tokens[tokenID]
	return tc, ok
}

// GetOrCreateTokenContext returns the existing context for tokenID or
// registers a new one.
func (m *ContextManager) GetOrCreateTokenContext(tokenID, userID string, userInfo map[string]any) *TokenContext {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	if tc, ok := m.tokens[tokenID]; ok {
		return tc
	}
	tc := NewTokenContext(tokenID, userID, userInfo)
	m.tokens[tokenID] = tc
	return tc
}

// ClearTokenContext removes a token context; removing an unknown id is a
// no-op.
func (m *ContextManager) ClearTokenContext(tokenID string) {
	m.tokenMu.Lock()
	delete(m.tokens, tokenID)
	m.tokenMu.Unlock()
}

// CountTokenContexts reports the number of live token contexts.
func (m *ContextManager) CountTokenContexts() int {
	m.tokenMu.RLock()
	defer m.tokenMu.RUnlock()
	return len(m.tokens)
}

// CreateSessionContext registers a session context, replacing (with a
// warning) any context already registered under the derived session id.
func (m *ContextManager) CreateSessionContext(userID, counterpartyID string, flow FlowInfo) *SessionContext {
	sc := NewSessionContext(userID, counterpartyID, flow)
	m.sessionMu.Lock()
	if _, exists := m.sessions[sc.SessionID]; exists {
		warnOverwrite("session", sc.SessionID)
	}
	m.sessions[sc.SessionID] = sc
	m.sessionMu.Unlock()
	return sc
}

// GetSessionContext looks up a session context.
func (m *ContextManager) GetSessionContext(sessionID string) (*SessionContext, bool) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	sc, ok := m.sessions[sessionID]
	return sc, ok
}

// GetOrCreateSessionContext returns the existing context for the derived
// session id or registers a new one.
func (m *ContextManager) GetOrCreateSessionContext(userID, counterpartyID string, flow FlowInfo) *SessionContext {
	id := SessionID(userID, counterpartyID, flow.FlowKey)
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	if sc, ok := m.sessions[id]; ok {
		return sc
	}
	sc := NewSessionContext(userID, counterpartyID, flow)
	m.sessions[id] = sc
	return sc
}

// ClearSessionContext removes a session context; removing an unknown id is
// a no-op.
func (m *ContextManager) ClearSessionContext(sessionID string) {
	m.sessionMu.Lock()
	delete(m.sessions, sessionID)
	m.sessionMu.Unlock()
}

// CountSessionContexts reports the number of live session contexts.
func (m *ContextManager) CountSessionContexts() int {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	return len(m.sessions)
}

// ClearAll drops every token and session context.
func (m *ContextManager) ClearAll() {
	m.tokenMu.Lock()
	m.tokens = make(map[string]*TokenContext)
	m.tokenMu.Unlock()

	m.sessionMu.Lock()
	m.sessions = make(map[string]*SessionContext)
	m.sessionMu.Unlock()
}
