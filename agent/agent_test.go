//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/careflow-ai/careflow/model"
	"github.com/careflow-ai/careflow/tool"
	"github.com/careflow-ai/careflow/tool/function"
)

// scriptedModel returns canned responses in order.
type scriptedModel struct {
	responses []*model.Response
	requests  []*model.Request
}

func (m *scriptedModel) GenerateContent(_ context.Context, request *model.Request) (*model.Response, error) {
	m.requests = append(m.requests, request)
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted model exhausted")
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

func textResponse(content string) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{Message: model.NewAssistantMessage(content)}},
	}
}

func toolCallResponse(name, args string) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{
			Message: model.Message{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: model.FunctionDefinitionParam{
						Name:      name,
						Arguments: []byte(args),
					},
				}},
			},
		}},
	}
}

type echoArgs struct {
	Value string `json:"value"`
}

func echoTool(calls *int) tool.CallableTool {
	return function.New(
		func(_ context.Context, args echoArgs) (string, error) {
			*calls++
			return "echo: " + args.Value, nil
		},
		function.WithName("echo"),
		function.WithDescription("echoes its input"),
	)
}

func TestInvokePlainAnswer(t *testing.T) {
	m := &scriptedModel{responses: []*model.Response{textResponse("hello")}}
	e := New(m, nil)

	output, produced, err := e.Invoke(context.Background(),
		model.NewSystemMessage("you are helpful"),
		[]model.Message{model.NewUserMessage("hi")})
	require.NoError(t, err)
	require.Equal(t, "hello", output)
	require.Len(t, produced, 1)

	// The system message leads the conversation sent to the model.
	require.Equal(t, model.RoleSystem, m.requests[0].Messages[0].Role)
}

func TestInvokeDispatchesToolCalls(t *testing.T) {
	var calls int
	tools := map[string]tool.CallableTool{"echo": echoTool(&calls)}
	m := &scriptedModel{responses: []*model.Response{
		toolCallResponse("echo", `{"value":"120/80"}`),
		textResponse("recorded 120 over 80"),
	}}
	e := New(m, tools)

	output, produced, err := e.Invoke(context.Background(),
		model.NewSystemMessage("sys"),
		[]model.Message{model.NewUserMessage("record my bp")})
	require.NoError(t, err)
	require.Equal(t, "recorded 120 over 80", output)
	require.Equal(t, 1, calls)

	// assistant(tool_call), tool result, assistant(final).
	require.Len(t, produced, 3)
	require.Equal(t, model.RoleTool, produced[1].Role)
	require.Equal(t, "echo: 120/80", produced[1].Content)
	require.Equal(t, "call_1", produced[1].ToolID)

	// The second model call saw the tool result.
	second := m.requests[1].Messages
	require.Equal(t, model.RoleTool, second[len(second)-1].Role)
}

func TestInvokeUnknownToolRecoverable(t *testing.T) {
	m := &scriptedModel{responses: []*model.Response{
		toolCallResponse("missing_tool", `{}`),
		textResponse("sorry, cannot do that"),
	}}
	e := New(m, map[string]tool.CallableTool{})

	output, produced, err := e.Invoke(context.Background(),
		model.NewSystemMessage("sys"),
		[]model.Message{model.NewUserMessage("x")})
	require.NoError(t, err)
	require.Equal(t, "sorry, cannot do that", output)
	require.Contains(t, produced[1].Content, "error: unknown tool")
}

func TestInvokeIterationLimit(t *testing.T) {
	var calls int
	tools := map[string]tool.CallableTool{"echo": echoTool(&calls)}
	var responses []*model.Response
	for i := 0; i < 20; i++ {
		responses = append(responses, toolCallResponse("echo", `{"value":"again"}`))
	}
	m := &scriptedModel{responses: responses}
	e := New(m, tools, WithMaxIterations(3))

	_, produced, err := e.Invoke(context.Background(),
		model.NewSystemMessage("sys"),
		[]model.Message{model.NewUserMessage("x")})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, produced, 6)
}

func TestInvokeModelError(t *testing.T) {
	m := &scriptedModel{}
	e := New(m, nil)

	_, _, err := e.Invoke(context.Background(),
		model.NewSystemMessage("sys"),
		[]model.Message{model.NewUserMessage("x")})
	require.Error(t, err)
}
