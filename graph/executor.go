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
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/telemetry"
)

// defaultMaxSteps bounds a single turn's node executions.
const defaultMaxSteps = 50

// Executor runs a compiled graph sequentially: execute the current node,
// merge its update, route on edges_var, repeat until End. No locks are
// held across node execution; cancellation is honored before every node.
type Executor struct {
	graph    *Graph
	maxSteps int
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithMaxSteps overrides the per-turn node execution limit.
func WithMaxSteps(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxSteps = n
	}
}

// NewExecutor creates an Executor for a compiled graph.
func NewExecutor(g *Graph, opts ...ExecutorOption) *Executor {
	e := &Executor{graph: g, maxSteps: defaultMaxSteps}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the graph to completion from its entry node. The returned
// state carries whatever flow_msgs accumulated, even on error, so a
// degraded turn can still answer from partial output.
func (e *Executor) Execute(ctx context.Context, state State) (State, error) {
	current := e.graph.entry
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("flow %s: canceled at node %q: %w", e.graph.name, current, err)
		}
		if step >= e.maxSteps {
			return state, fmt.Errorf("flow %s: exceeded %d steps, aborting at node %q",
				e.graph.name, e.maxSteps, current)
		}

		node := e.graph.nodes[current]
		log.Debugf("flow %s: executing node %q (step %d)", e.graph.name, current, step)
		nodeCtx, span := telemetry.Tracer().Start(ctx, "graph.node")
		span.SetAttributes(
			attribute.String("flow.name", e.graph.name),
			attribute.String("node.name", current),
		)
		update, err := node.Run(nodeCtx, state)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if update != nil {
			// A failing node may still hand back partial output.
			state = state.merge(update)
		}
		if err != nil {
			return state, fmt.Errorf("flow %s: node %q: %w", e.graph.name, current, err)
		}

		next := e.graph.route(current, state.EdgesVar())
		if next == End {
			return state, nil
		}
		current = next
	}
}
