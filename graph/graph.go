//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package graph executes directed graphs of node functions over a shared
// flow state: agents and retrieval steps as nodes, guarded transitions as
// edges, with checkpointing of the reduced conversation per thread.
package graph

import (
	"context"
	"fmt"

	"github.com/careflow-ai/careflow/flow/condition"
)

// End is the terminal pseudo-node. Routing to End finishes the turn.
const End = "END"

// NodeFunc executes one node. It returns an additive state update; the
// executor merges it into the flow state.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Node is a named executable step.
type Node struct {
	Name string
	Run  NodeFunc
}

// conditionalEdge is one guarded transition, evaluated in declaration
// order.
type conditionalEdge struct {
	expression string
	target     string
}

// Graph is a compiled, immutable flow graph.
type Graph struct {
	name       string
	entry      string
	nodes      map[string]*Node
	direct     map[string]string
	contingent map[string][]conditionalEdge
}

// Name returns the graph's flow name.
func (g *Graph) Name() string { return g.name }

// route returns the next node after from, given the current edges_var.
// Conditional edges fire on the first truthy guard; no match routes to
// End.
func (g *Graph) route(from string, edgesVar map[string]any) string {
	if to, ok := g.direct[from]; ok {
		return to
	}
	for _, edge := range g.contingent[from] {
		if condition.Evaluate(edge.expression, edgesVar) {
			return edge.target
		}
	}
	return End
}

// StateGraph builds a Graph. Add nodes and edges, then Compile.
type StateGraph struct {
	name       string
	entry      string
	nodes      map[string]*Node
	order      []string
	direct     map[string]string
	contingent map[string][]conditionalEdge
	errs       []error
}

// NewStateGraph creates an empty builder for the named flow.
func NewStateGraph(name string) *StateGraph {
	return &StateGraph{
		name:       name,
		nodes:      make(map[string]*Node),
		direct:     make(map[string]string),
		contingent: make(map[string][]conditionalEdge),
	}
}

// AddNode registers a node function under a unique name.
func (sg *StateGraph) AddNode(name string, fn NodeFunc) *StateGraph {
	if _, exists := sg.nodes[name]; exists {
		sg.errs = append(sg.errs, fmt.Errorf("duplicate node %q", name))
		return sg
	}
	sg.nodes[name] = &Node{Name: name, Run: fn}
	sg.order = append(sg.order, name)
	return sg
}

// AddEdge adds an unconditional transition from one node to another (or
// to End).
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if _, exists := sg.direct[from]; exists {
		sg.errs = append(sg.errs, fmt.Errorf("node %q already has an unconditional edge", from))
		return sg
	}
	sg.direct[from] = to
	return sg
}

// AddConditionalEdge adds a guarded transition. Guards on the same source
// node are evaluated in the order they were added.
func (sg *StateGraph) AddConditionalEdge(from, expression, to string) *StateGraph {
	sg.contingent[from] = append(sg.contingent[from], conditionalEdge{
		expression: expression,
		target:     to,
	})
	return sg
}

// SetEntryPoint sets the node execution starts from.
func (sg *StateGraph) SetEntryPoint(name string) *StateGraph {
	sg.entry = name
	return sg
}

// Compile validates the builder and produces an immutable Graph: the
// entry point and every edge endpoint must exist, and a node's outgoing
// edges are either one unconditional edge or only conditional ones.
func (sg *StateGraph) Compile() (*Graph, error) {
	if len(sg.errs) > 0 {
		return nil, fmt.Errorf("flow %s: %w", sg.name, sg.errs[0])
	}
	if len(sg.nodes) == 0 {
		return nil, fmt.Errorf("flow %s: no nodes defined", sg.name)
	}
	if sg.entry == "" {
		return nil, fmt.Errorf("flow %s: entry point not set", sg.name)
	}
	if _, ok := sg.nodes[sg.entry]; !ok {
		return nil, fmt.Errorf("flow %s: entry node %q does not exist", sg.name, sg.entry)
	}
	for from, to := range sg.direct {
		if _, ok := sg.nodes[from]; !ok {
			return nil, fmt.Errorf("flow %s: edge from unknown node %q", sg.name, from)
		}
		if err := sg.checkTarget(to); err != nil {
			return nil, err
		}
		if len(sg.contingent[from]) > 0 {
			return nil, fmt.Errorf("flow %s: node %q mixes unconditional and conditional edges", sg.name, from)
		}
	}
	for from, edges := range sg.contingent {
		if _, ok := sg.nodes[from]; !ok {
			return nil, fmt.Errorf("flow %s: edge from unknown node %q", sg.name, from)
		}
		for _, edge := range edges {
			if err := sg.checkTarget(edge.target); err != nil {
				return nil, err
			}
		}
	}
	return &Graph{
		name:       sg.name,
		entry:      sg.entry,
		nodes:      sg.nodes,
		direct:     sg.direct,
		contingent: sg.contingent,
	}, nil
}

func (sg *StateGraph) checkTarget(to string) error {
	if to == End {
		return nil
	}
	if _, ok := sg.nodes[to]; !ok {
		return fmt.Errorf("flow %s: edge to unknown node %q", sg.name, to)
	}
	return nil
}
