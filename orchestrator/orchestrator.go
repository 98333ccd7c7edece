//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package orchestrator drives one chat turn end to end: resolve the
// session and token contexts, bind the ambient runtime context, execute
// the flow graph and persist the reduced conversation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/careflow-ai/careflow/flow"
	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/model"
	"github.com/careflow-ai/careflow/session"
	"github.com/careflow-ai/careflow/telemetry"
	"github.com/careflow-ai/careflow/tool"
)

// Resolution failures the HTTP layer maps to 404s.
var (
	ErrSessionNotFound = errors.New("session context not found")
	ErrTokenNotFound   = errors.New("token context not found")
	ErrFlowNotFound    = errors.New("flow not found")
)

// defaultTurnTimeout bounds one whole chat turn.
const defaultTurnTimeout = 120 * time.Second

// defaultApology is returned when a turn produces no assistant message.
const defaultApology = "Sorry, I could not produce an answer this time. Please try again."

// currentDateLayout is the ISO-seconds timestamp injected into prompts.
const currentDateLayout = "2006-01-02T15:04:05"

// ChatRequest is one user turn.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	TokenID   string `json:"token_id"`
	TraceID   string `json:"trace_id,omitempty"`

	// FlowName, when set, overrides the session's flow for this turn.
	FlowName string `json:"flow_name,omitempty"`
	// CurrentDate, when set, overrides the prompt timestamp.
	CurrentDate string `json:"current_date,omitempty"`
	// ConversationHistory, when set, overrides the checkpointed history.
	ConversationHistory []model.Message `json:"conversation_history,omitempty"`
	// UserInfo, when set, overrides the token context's profile.
	UserInfo map[string]any `json:"user_info,omitempty"`
}

// ChatResponse is the turn's outcome. Degraded reports that the flow
// failed mid-turn and Answer is best-effort.
type ChatResponse struct {
	Answer    string `json:"response"`
	SessionID string `json:"session_id"`
	TraceID   string `json:"trace_id"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Orchestrator wires the flow manager, context manager and checkpoint
// saver into the chat turn loop.
type Orchestrator struct {
	flows       *flow.Manager
	contexts    *session.ContextManager
	saver       graph.CheckpointSaver
	turnTimeout time.Duration
	nowFunc     func() time.Time
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithTurnTimeout overrides the per-turn deadline.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.turnTimeout = d
	}
}

// New creates an Orchestrator. The saver may be nil, in which case turns
// run stateless unless the caller supplies history.
func New(flows *flow.Manager, contexts *session.ContextManager, saver graph.CheckpointSaver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		flows:       flows,
		contexts:    contexts,
		saver:       saver,
		turnTimeout: defaultTurnTimeout,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Chat runs one turn. Resolution failures return an error; a flow that
// fails mid-execution still yields a response, marked degraded, carrying
// whatever answer was produced.
func (o *Orchestrator) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	sc, ok := o.contexts.GetSessionContext(req.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}
	tc, ok := o.contexts.GetTokenContext(req.TokenID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, req.TokenID)
	}

	flowKey := sc.FlowInfo.FlowKey
	if req.FlowName != "" {
		flowKey = req.FlowName
	}
	g, err := o.flows.GetFlow(flowKey)
	if err != nil {
		if errors.Is(err, flow.ErrUnknownFlow) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowKey)
		}
		return nil, err
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = newTraceID()
	}
	ctx = tool.WithRuntimeContext(ctx, tool.RuntimeContext{
		TokenID:   req.TokenID,
		SessionID: req.SessionID,
		TraceID:   traceID,
	})
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "chat.turn")
	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("flow.key", flowKey),
		attribute.String("trace.id", traceID),
	)
	defer span.End()

	history := req.ConversationHistory
	if history == nil && o.saver != nil {
		history, err = o.saver.Get(ctx, req.SessionID)
		if err != nil {
			log.Warnf("orchestrator: load checkpoint for %s: %v, starting empty", req.SessionID, err)
			history = nil
		}
	}

	userInfo := req.UserInfo
	if userInfo == nil {
		userInfo = tc.UserInfo
	}
	currentDate := req.CurrentDate
	if currentDate == "" {
		currentDate = o.nowFunc().Format(currentDateLayout)
	}
	current := model.NewUserMessage(req.Message)
	state := graph.State{
		graph.StateKeyCurrentMessage:  current,
		graph.StateKeyHistoryMessages: history,
		graph.StateKeyPromptVars: map[string]any{
			"current_date": currentDate,
			"user_info":    userInfo,
		},
		graph.StateKeyEdgesVar: map[string]any{},
	}

	final, execErr := graph.NewExecutor(g).Execute(ctx, state)
	answer, found := final.LastAssistantMessage()
	if !found || strings.TrimSpace(answer) == "" {
		answer = defaultApology
	}
	resp := &ChatResponse{
		Answer:    answer,
		SessionID: req.SessionID,
		TraceID:   traceID,
	}
	if execErr != nil {
		log.Warnf("orchestrator: turn on %s degraded: %v", req.SessionID, execErr)
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "degraded turn")
		resp.Degraded = true
		return resp, nil
	}

	if o.saver != nil && found {
		reduced := make([]model.Message, 0, len(history)+2)
		reduced = append(reduced, history...)
		reduced = append(reduced, current, model.NewAssistantMessage(answer))
		if err := o.saver.Put(ctx, req.SessionID, reduced); err != nil {
			log.Warnf("orchestrator: persist checkpoint for %s: %v", req.SessionID, err)
		}
	}
	return resp, nil
}

// newTraceID yields a 32-hex identifier.
func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
