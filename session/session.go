//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package session keeps the in-process registries that tie chat requests
// to users and flows: token contexts (who is talking) and session
// contexts (which flow the conversation runs).
package session

import (
	"fmt"
	"time"

	"github.com/careflow-ai/careflow/log"
)

// TokenContext identifies an authenticated user for the duration of a
// token's life. UserInfo is free-form profile data injected into prompts.
type TokenContext struct {
	TokenID   string         `json:"token_id"`
	UserID    string         `json:"user_id"`
	UserInfo  map[string]any `json:"user_info,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FlowInfo names the flow a session runs.
type FlowInfo struct {
	FlowKey     string `json:"flow_key"`
	DisplayName string `json:"display_name,omitempty"`
}

// ParticipantInfo records both sides of the conversation.
type ParticipantInfo struct {
	UserID         string `json:"user_id"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
}

// SessionContext binds a session id to its user, flow and participants.
type SessionContext struct {
	SessionID    string          `json:"session_id"`
	UserID       string          `json:"user_id"`
	FlowInfo     FlowInfo        `json:"flow_info"`
	Participants ParticipantInfo `json:"participants"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SessionID derives the deterministic session identifier. An absent
// counterparty means the user converses with the system itself.
func SessionID(userID, counterpartyID, flowKey string) string {
	if counterpartyID == "" {
		counterpartyID = userID
	}
	return fmt.Sprintf("%s_%s_%s", userID, counterpartyID, flowKey)
}

// NewTokenContext builds a token context stamped with the current time.
func NewTokenContext(tokenID, userID string, userInfo map[string]any) *TokenContext {
	return &TokenContext{
		TokenID:   tokenID,
		UserID:    userID,
		UserInfo:  userInfo,
		CreatedAt: time.Now(),
	}
}

// NewSessionContext builds a session context stamped with the current time.
// The session id is derived from the participants and flow key.
func NewSessionContext(userID, counterpartyID string, flow FlowInfo) *SessionContext {
	return &SessionContext{
		SessionID: SessionID(userID, counterpartyID, flow.FlowKey),
		UserID:    userID,
		FlowInfo:  flow,
		Participants: ParticipantInfo{
			UserID:         userID,
			CounterpartyID: counterpartyID,
		},
		CreatedAt: time.Now(),
	}
}

// warnOverwrite logs the replacement of a live context. Re-creation is
// legal (a client may re-register) but usually signals a client bug.
func warnOverwrite(kind, id string) {
	log.Warnf("session: overwriting existing %s context %q", kind, id)
}
