//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package agent runs the ReAct loop for one agent node: invoke the model
// with the conversation and tool specs, dispatch any tool calls under the
// ambient runtime context, feed the results back, and repeat until the
// model answers in plain text or the iteration limit is reached.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/model"
	"github.com/careflow-ai/careflow/telemetry"
	"github.com/careflow-ai/careflow/tool"
)

// defaultMaxIterations bounds one Invoke's model round trips.
const defaultMaxIterations = 10

// Executor runs the ReAct loop for a single agent configuration.
type Executor struct {
	model         model.Model
	tools         map[string]tool.CallableTool
	genConfig     model.GenerationConfig
	maxIterations int
}

// Option configures the Executor.
type Option func(*Executor)

// WithGenerationConfig sets the generation parameters used on every model
// call.
func WithGenerationConfig(cfg model.GenerationConfig) Option {
	return func(e *Executor) {
		e.genConfig = cfg
	}
}

// WithMaxIterations overrides the ReAct iteration limit.
func WithMaxIterations(n int) Option {
	return func(e *Executor) {
		e.maxIterations = n
	}
}

// New creates an Executor over the given model and resolved tools.
func New(m model.Model, tools map[string]tool.CallableTool, opts ...Option) *Executor {
	e := &Executor{
		model:         m,
		tools:         tools,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invoke runs the loop over [system] + messages. It returns the model's
// final text output and every message produced this invocation (assistant
// turns and tool results, in order).
func (e *Executor) Invoke(
	ctx context.Context, system model.Message, messages []model.Message,
) (string, []model.Message, error) {
	conversation := make([]model.Message, 0, len(messages)+1)
	conversation = append(conversation, system)
	conversation = append(conversation, messages...)

	var produced []model.Message
	for iteration := 0; iteration < e.maxIterations; iteration++ {
		callCtx, span := telemetry.Tracer().Start(ctx, "model.generate")
		span.SetAttributes(
			attribute.String("model.name", e.model.Info().Name),
			attribute.Int("iteration", iteration),
		)
		response, err := e.model.GenerateContent(callCtx, &model.Request{
			Messages:         conversation,
			GenerationConfig: e.genConfig,
			Tools:            e.tools,
		})
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if err != nil {
			return "", produced, fmt.Errorf("agent: model call failed: %w", err)
		}
		if response.Error != nil {
			return "", produced, fmt.Errorf("agent: model error: %s", response.Error.Message)
		}
		if len(response.Choices) == 0 {
			return "", produced, fmt.Errorf("agent: model returned no choices")
		}

		assistant := response.Choices[0].Message
		conversation = append(conversation, assistant)
		produced = append(produced, assistant)

		if len(assistant.ToolCalls) == 0 {
			return assistant.Content, produced, nil
		}
		for _, call := range assistant.ToolCalls {
			result := e.dispatch(ctx, call)
			toolMsg := model.NewToolMessage(call.ID, call.Function.Name, result)
			conversation = append(conversation, toolMsg)
			produced = append(produced, toolMsg)
		}
	}
	log.Warnf("agent: reached iteration limit %d without a final answer", e.maxIterations)
	// Best effort: answer with the last assistant text we have.
	for i := len(produced) - 1; i >= 0; i-- {
		if produced[i].Role == model.RoleAssistant && produced[i].Content != "" {
			return produced[i].Content, produced, nil
		}
	}
	return "", produced, nil
}

// dispatch runs one tool call. Failures come back as strings so the model
// can recover; the loop never sees a tool error as a Go error.
func (e *Executor) dispatch(ctx context.Context, call model.ToolCall) string {
	t, ok := e.tools[call.Function.Name]
	if !ok {
		log.Warnf("agent: model called unknown tool %q", call.Function.Name)
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}
	result, err := t.Call(ctx, call.Function.Arguments)
	if err != nil {
		log.Warnf("agent: tool %q failed: %v", call.Function.Name, err)
		return fmt.Sprintf("error: tool %s failed: %v", call.Function.Name, err)
	}
	switch v := result.(type) {
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
