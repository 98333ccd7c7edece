//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"github.com/careflow-ai/careflow/model"
)

// State is the per-turn flow state threaded through node execution. Nodes
// receive the current state and return an additive update; the executor
// merges updates copy-on-write, so a node never mutates what it was given.
type State map[string]any

// Well-known state keys.
const (
	// StateKeyCurrentMessage is the user message of this turn (model.Message).
	StateKeyCurrentMessage = "current_message"
	// StateKeyHistoryMessages is the prior conversation ([]model.Message).
	// Never mutated within a turn.
	StateKeyHistoryMessages = "history_messages"
	// StateKeyFlowMessages collects the assistant/tool messages produced
	// this turn ([]model.Message). Grows monotonically.
	StateKeyFlowMessages = "flow_msgs"
	// StateKeyPromptVars holds template variables (map[string]any). Nodes
	// only add keys.
	StateKeyPromptVars = "prompt_vars"
	// StateKeyEdgesVar holds the scalars edge conditions read
	// (map[string]any). Nodes only add keys.
	StateKeyEdgesVar = "edges_var"
)

// Clone returns a shallow copy of the state with the well-known maps and
// slices copied one level deep, so merging an update cannot alias the
// previous state.
func (s State) Clone() State {
	cloned := make(State, len(s))
	for key, value := range s {
		switch key {
		case StateKeyPromptVars, StateKeyEdgesVar:
			if m, ok := value.(map[string]any); ok {
				copied := make(map[string]any, len(m))
				for k, v := range m {
					copied[k] = v
				}
				cloned[key] = copied
				continue
			}
		case StateKeyFlowMessages, StateKeyHistoryMessages:
			if msgs, ok := value.([]model.Message); ok {
				copied := make([]model.Message, len(msgs))
				copy(copied, msgs)
				cloned[key] = copied
				continue
			}
		}
		cloned[key] = value
	}
	return cloned
}

// CurrentMessage returns the turn's user message.
func (s State) CurrentMessage() (model.Message, bool) {
	msg, ok := s[StateKeyCurrentMessage].(model.Message)
	return msg, ok
}

// HistoryMessages returns the prior conversation.
func (s State) HistoryMessages() []model.Message {
	msgs, _ := s[StateKeyHistoryMessages].([]model.Message)
	return msgs
}

// FlowMessages returns the messages produced this turn.
func (s State) FlowMessages() []model.Message {
	msgs, _ := s[StateKeyFlowMessages].([]model.Message)
	return msgs
}

// PromptVars returns the template variable map, never nil.
func (s State) PromptVars() map[string]any {
	if vars, ok := s[StateKeyPromptVars].(map[string]any); ok {
		return vars
	}
	return map[string]any{}
}

// EdgesVar returns the edge condition variable map, never nil.
func (s State) EdgesVar() map[string]any {
	if vars, ok := s[StateKeyEdgesVar].(map[string]any); ok {
		return vars
	}
	return map[string]any{}
}

// LastAssistantMessage returns the content of the last assistant message
// in flow_msgs.
func (s State) LastAssistantMessage() (string, bool) {
	msgs := s.FlowMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i].Content, true
		}
	}
	return "", false
}

// merge folds an additive node update into the state, returning a new
// state. flow_msgs appends, the variable maps merge key-wise, everything
// else replaces. history_messages is owned by the orchestrator and is
// never replaced by a node update.
func (s State) merge(update State) State {
	merged := s.Clone()
	for key, value := range update {
		switch key {
		case StateKeyHistoryMessages:
			continue
		case StateKeyFlowMessages:
			if msgs, ok := value.([]model.Message); ok {
				merged[key] = append(merged.FlowMessages(), msgs...)
				continue
			}
		case StateKeyPromptVars, StateKeyEdgesVar:
			if m, ok := value.(map[string]any); ok {
				target, _ := merged[key].(map[string]any)
				if target == nil {
					target = make(map[string]any, len(m))
				}
				for k, v := range m {
					target[k] = v
				}
				merged[key] = target
				continue
			}
		}
		merged[key] = value
	}
	return merged
}
