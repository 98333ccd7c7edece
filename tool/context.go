//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// RuntimeContext carries the identity of the logical request a tool call
// belongs to. The orchestrator binds it to the context before graph
// execution; tools read it instead of receiving identity as arguments, so a
// tool call can never target another user.
type RuntimeContext struct {
	// TokenID identifies the authenticated principal.
	TokenID string
	// SessionID identifies the conversation.
	SessionID string
	// TraceID identifies the turn for observability.
	TraceID string
}

type runtimeContextKey struct{}

// WithRuntimeContext returns a context carrying the runtime context.
// Work spawned from the returned context inherits it automatically.
func WithRuntimeContext(ctx context.Context, rc RuntimeContext) context.Context {
	return context.WithValue(ctx, runtimeContextKey{}, rc)
}

// RuntimeContextFrom extracts the runtime context, reporting whether one
// was bound.
func RuntimeContextFrom(ctx context.Context) (RuntimeContext, bool) {
	rc, ok := ctx.Value(runtimeContextKey{}).(RuntimeContext)
	return rc, ok
}
