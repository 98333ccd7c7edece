//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package flow loads YAML flow definitions, validates their structure and
// compiles them into executable graphs of agent and retrieval nodes.
package flow

import (
	"fmt"

	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/model"
)

// Node kinds.
const (
	NodeTypeAgent     = "agent"
	NodeTypeRetrieval = "retrieval"
)

// Definition is one parsed flow.yaml, immutable after loading.
type Definition struct {
	Name        string           `yaml:"name"`
	Version     string           `yaml:"version"`
	Description string           `yaml:"description,omitempty"`
	EntryNode   string           `yaml:"entry_node"`
	Nodes       []NodeDefinition `yaml:"nodes"`
	Edges       []EdgeDefinition `yaml:"edges"`

	// FlowDir is the directory flow.yaml was read from; prompt paths
	// resolve against it. Not part of the YAML.
	FlowDir string `yaml:"-"`
}

// NodeDefinition declares one node. Config is interpreted per Type.
type NodeDefinition struct {
	Name   string     `yaml:"name"`
	Type   string     `yaml:"type"`
	Config NodeConfig `yaml:"config"`
}

// NodeConfig is the union of agent and retrieval configuration.
type NodeConfig struct {
	// Agent fields.
	Prompt string        `yaml:"prompt,omitempty"`
	Model  *model.Config `yaml:"model,omitempty"`
	Tools  []string      `yaml:"tools,omitempty"`

	// Retrieval fields.
	Tables      []string `yaml:"tables,omitempty"`
	QueryVar    string   `yaml:"query_var,omitempty"`
	KeywordsVar string   `yaml:"keywords_var,omitempty"`
}

// EdgeDefinition declares one transition. Condition is "always" or a
// boolean expression over edges_var.
type EdgeDefinition struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
}

// conditionAlways marks an unconditional edge.
const conditionAlways = "always"

// Validate checks the structural invariants. Error messages always name
// the offending flow.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("flow definition missing name")
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("flow %s: no nodes defined", d.Name)
	}

	names := make(map[string]*NodeDefinition, len(d.Nodes))
	for i := range d.Nodes {
		node := &d.Nodes[i]
		if node.Name == "" {
			return fmt.Errorf("flow %s: node %d has no name", d.Name, i)
		}
		if _, dup := names[node.Name]; dup {
			return fmt.Errorf("flow %s: duplicate node name %q", d.Name, node.Name)
		}
		switch node.Type {
		case NodeTypeAgent:
			if node.Config.Prompt == "" {
				return fmt.Errorf("flow %s: agent node %q has no prompt", d.Name, node.Name)
			}
			if node.Config.Model == nil {
				return fmt.Errorf("flow %s: agent node %q has no model", d.Name, node.Name)
			}
		case NodeTypeRetrieval:
			if len(node.Config.Tables) == 0 {
				return fmt.Errorf("flow %s: retrieval node %q has no tables", d.Name, node.Name)
			}
		default:
			return fmt.Errorf("flow %s: node %q has unknown type %q", d.Name, node.Name, node.Type)
		}
		names[node.Name] = node
	}

	if d.EntryNode == "" {
		return fmt.Errorf("flow %s: entry_node is required", d.Name)
	}
	if _, ok := names[d.EntryNode]; !ok {
		return fmt.Errorf("flow %s: entry_node %q is not a declared node", d.Name, d.EntryNode)
	}

	// Per-node edges are all-always or all-conditional, never mixed.
	alwaysFrom := make(map[string]int)
	condFrom := make(map[string]int)
	for i, edge := range d.Edges {
		if _, ok := names[edge.From]; !ok {
			return fmt.Errorf("flow %s: edge %d from unknown node %q", d.Name, i, edge.From)
		}
		if edge.To != graph.End {
			if _, ok := names[edge.To]; !ok {
				return fmt.Errorf("flow %s: edge %d to unknown node %q", d.Name, i, edge.To)
			}
		}
		if edge.Condition == "" {
			return fmt.Errorf("flow %s: edge %d (%s -> %s) has no condition", d.Name, i, edge.From, edge.To)
		}
		if edge.Condition == conditionAlways {
			alwaysFrom[edge.From]++
		} else {
			condFrom[edge.From]++
		}
	}
	for from, count := range alwaysFrom {
		if condFrom[from] > 0 {
			return fmt.Errorf("flow %s: node %q mixes always and conditional edges", d.Name, from)
		}
		if count > 1 {
			return fmt.Errorf("flow %s: node %q has %d always edges, at most one allowed", d.Name, from, count)
		}
	}
	return nil
}
