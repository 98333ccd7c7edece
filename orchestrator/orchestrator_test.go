//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careflow-ai/careflow/flow"
	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/model"
	"github.com/careflow-ai/careflow/prompt"
	"github.com/careflow-ai/careflow/session"
	"github.com/careflow-ai/careflow/storage/inmemory"
	"github.com/careflow-ai/careflow/tool"
	"github.com/careflow-ai/careflow/tool/function"
	"github.com/careflow-ai/careflow/tool/health"
)

// scriptedModel replays canned responses and records the requests it saw.
type scriptedModel struct {
	responses []*model.Response
	errs      []error
	requests  []*model.Request
}

func (m *scriptedModel) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	m.requests = append(m.requests, req)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted model: out of responses")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "fake-responder"} }

func textResponse(content string) *model.Response {
	finishReason := "stop"
	return &model.Response{Choices: []model.Choice{{
		Message:      model.NewAssistantMessage(content),
		FinishReason: &finishReason,
	}}}
}

func toolCallResponse(name, args string) *model.Response {
	return &model.Response{Choices: []model.Choice{{
		Message: model.Message{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				ID:   "call-1",
				Type: "function",
				Function: model.FunctionDefinitionParam{
					Name:      name,
					Arguments: []byte(args),
				},
			}},
		},
	}}}
}

type fixture struct {
	orch   *Orchestrator
	model  *scriptedModel
	saver  *graph.InMemorySaver
	ctxMgr *session.ContextManager
	store  *inmemory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := &scriptedModel{}

	registry := tool.NewRegistry()
	store := inmemory.New()
	health.RegisterAll(registry, store)
	registry.Register(function.New(
		func(ctx context.Context, _ struct{}) (string, error) {
			rc, ok := tool.RuntimeContextFrom(ctx)
			if !ok {
				return "error: no active user context", nil
			}
			return "token=" + rc.TokenID + " trace=" + rc.TraceID, nil
		},
		function.WithName("whoami"),
		function.WithDescription("Reports the ambient identity."),
	))

	builder := flow.NewBuilder(prompt.NewManager("testdata/rules"), registry,
		flow.WithModelFactory(func(cfg *model.Config) (model.Model, error) {
			return m, nil
		}))
	flows, err := flow.NewManager("testdata/flows", builder)
	require.NoError(t, err)

	ctxMgr := session.NewContextManager()
	ctxMgr.CreateTokenContext("tok-1", "user-1", map[string]any{"name": "李明"})
	ctxMgr.CreateSessionContext("user-1", "", session.FlowInfo{FlowKey: "assist"})

	saver := graph.NewInMemorySaver()
	return &fixture{
		orch:   New(flows, ctxMgr, saver),
		model:  m,
		saver:  saver,
		ctxMgr: ctxMgr,
		store:  store,
	}
}

func chatRequest(message string) *ChatRequest {
	return &ChatRequest{
		Message:   message,
		SessionID: session.SessionID("user-1", "", "assist"),
		TokenID:   "tok-1",
	}
}

func TestChatHappyPath(t *testing.T) {
	f := newFixture(t)
	f.model.responses = []*model.Response{textResponse("Hello back.")}

	resp, err := f.orch.Chat(context.Background(), chatRequest("hello"))
	require.NoError(t, err)
	require.Equal(t, "Hello back.", resp.Answer)
	require.False(t, resp.Degraded)
	require.Len(t, resp.TraceID, 32)

	// The system prompt carried the turn variables.
	req := f.model.requests[0]
	require.Equal(t, model.RoleSystem, req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "李明")

	// The reduced conversation was checkpointed.
	history, err := f.saver.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, model.RoleUser, history[0].Role)
	require.Equal(t, "hello", history[0].Content)
	require.Equal(t, "Hello back.", history[1].Content)
}

func TestChatSecondTurnSeesCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.model.responses = []*model.Response{
		textResponse("First answer."),
		textResponse("Second answer."),
	}

	_, err := f.orch.Chat(context.Background(), chatRequest("first"))
	require.NoError(t, err)
	_, err = f.orch.Chat(context.Background(), chatRequest("second"))
	require.NoError(t, err)

	second := f.model.requests[1]
	// system + first user + first assistant + second user.
	require.Len(t, second.Messages, 4)
	require.Equal(t, "first", second.Messages[1].Content)
	require.Equal(t, "First answer.", second.Messages[2].Content)
	require.Equal(t, "second", second.Messages[3].Content)
}

func TestChatToolSeesAmbientContext(t *testing.T) {
	f := newFixture(t)
	f.model.responses = []*model.Response{
		toolCallResponse("whoami", "{}"),
		textResponse("You are tok-1."),
	}

	req := chatRequest("who am I")
	req.TraceID = "0123456789abcdef0123456789abcdef"
	resp, err := f.orch.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "You are tok-1.", resp.Answer)
	require.Equal(t, req.TraceID, resp.TraceID)

	// The tool result fed back on the second model call carries the
	// ambient identity.
	secondCall := f.model.requests[1]
	last := secondCall.Messages[len(secondCall.Messages)-1]
	require.Equal(t, model.RoleTool, last.Role)
	require.Contains(t, last.Content, "token=tok-1")
	require.Contains(t, last.Content, "trace="+req.TraceID)
}

func TestChatSessionNotFound(t *testing.T) {
	f := newFixture(t)
	req := chatRequest("hello")
	req.SessionID = "missing"
	_, err := f.orch.Chat(context.Background(), req)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatTokenNotFound(t *testing.T) {
	f := newFixture(t)
	req := chatRequest("hello")
	req.TokenID = "missing"
	_, err := f.orch.Chat(context.Background(), req)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestChatFlowNotFound(t *testing.T) {
	f := newFixture(t)
	f.ctxMgr.CreateSessionContext("user-1", "", session.FlowInfo{FlowKey: "ghost"})
	req := chatRequest("hello")
	req.SessionID = session.SessionID("user-1", "", "ghost")
	_, err := f.orch.Chat(context.Background(), req)
	require.ErrorIs(t, err, ErrFlowNotFound)
}

func TestChatDegradedTurn(t *testing.T) {
	f := newFixture(t)
	f.model.errs = []error{fmt.Errorf("upstream overloaded")}

	resp, err := f.orch.Chat(context.Background(), chatRequest("hello"))
	require.NoError(t, err)
	require.True(t, resp.Degraded)
	require.Equal(t, defaultApology, resp.Answer)

	// Degraded turns never persist.
	history, err := f.saver.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Nil(t, history)
}

func TestChatHealthToolRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.ctxMgr.CreateSessionContext("user-1", "", session.FlowInfo{FlowKey: "health"})
	f.model.responses = []*model.Response{
		toolCallResponse("record_blood_pressure", `{"systolic": 120, "diastolic": 80}`),
		textResponse("Recorded 120/80 mmHg."),
	}

	req := chatRequest("my blood pressure is 120 over 80")
	req.SessionID = session.SessionID("user-1", "", "health")
	resp, err := f.orch.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Recorded 120/80 mmHg.", resp.Answer)

	// The record landed scoped to the ambient token, not the user id.
	now := time.Now()
	records, err := f.store.BloodPressure().GetRecent(context.Background(), "tok-1",
		now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 120, records[0].Systolic)
	require.Equal(t, 80, records[0].Diastolic)

	// The tool result fed back to the model confirms the write.
	secondCall := f.model.requests[1]
	last := secondCall.Messages[len(secondCall.Messages)-1]
	require.Equal(t, model.RoleTool, last.Role)
	require.Contains(t, last.Content, "120")
}

func TestChatIntentRoutesToRecorder(t *testing.T) {
	f := newFixture(t)
	f.ctxMgr.CreateSessionContext("user-1", "", session.FlowInfo{FlowKey: "medical"})
	f.model.responses = []*model.Response{
		textResponse(`{"intent": "record_blood_pressure", "confidence": 0.92, "need_clarification": false}`),
		toolCallResponse("record_blood_pressure", `{"systolic": 120, "diastolic": 80}`),
		textResponse("Recorded: 120/80 mmHg."),
	}

	req := chatRequest("I want to record: systolic 120, diastolic 80.")
	req.SessionID = session.SessionID("user-1", "", "medical")
	resp, err := f.orch.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, resp.Answer, "120")
	require.Contains(t, resp.Answer, "80")

	// Exactly one record, scoped to the ambient token.
	now := time.Now()
	records, err := f.store.BloodPressure().GetRecent(context.Background(), "tok-1",
		now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestChatUnclearIntentAsksForClarification(t *testing.T) {
	f := newFixture(t)
	f.ctxMgr.CreateSessionContext("user-1", "", session.FlowInfo{FlowKey: "medical"})
	f.model.responses = []*model.Response{
		textResponse(`{"intent": "unclear", "confidence": 0.1, "need_clarification": true}`),
		textResponse("What would you like to record?"),
	}

	req := chatRequest("hi")
	req.SessionID = session.SessionID("user-1", "", "medical")
	resp, err := f.orch.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "What would you like to record?", resp.Answer)

	// No tool ran.
	now := time.Now()
	records, err := f.store.BloodPressure().GetRecent(context.Background(), "tok-1",
		now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestChatCallerHistoryOverridesCheckpoint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.saver.Put(context.Background(),
		session.SessionID("user-1", "", "assist"),
		[]model.Message{model.NewUserMessage("checkpointed")}))

	f.model.responses = []*model.Response{textResponse("ok")}
	req := chatRequest("fresh")
	req.ConversationHistory = []model.Message{
		model.NewUserMessage("caller history"),
		model.NewAssistantMessage("noted"),
	}
	_, err := f.orch.Chat(context.Background(), req)
	require.NoError(t, err)

	first := f.model.requests[0]
	require.Equal(t, "caller history", first.Messages[1].Content)
	require.NotContains(t, first.Messages, model.NewUserMessage("checkpointed"))
}
