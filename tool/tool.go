//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package tool provides the tool abstraction used by agent nodes: a
// declaration describing the tool to the model, a callable implementation,
// and a process-wide registry.
package tool

import "context"

// Tool is the interface that all tools must implement.
type Tool interface {
	// Declaration returns the metadata describing the tool to the model.
	Declaration() *Declaration
}

// CallableTool is a tool that can be invoked with JSON-encoded arguments.
//
// Domain tools report their own failures inside the returned result string
// (prefixed with "error: ") so that the model can recover; a non-nil error
// is reserved for argument decoding failures.
type CallableTool interface {
	Tool

	// Call executes the tool with the given JSON arguments.
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// Declaration is the metadata of a tool.
type Declaration struct {
	// Name is the name of the tool.
	Name string `json:"name"`
	// Description is the description of the tool.
	Description string `json:"description"`
	// InputSchema is the JSON schema of the tool input.
	InputSchema *Schema `json:"inputSchema,omitempty"`
	// OutputSchema is the JSON schema of the tool output.
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Schema is a subset of JSON Schema used to describe tool arguments.
type Schema struct {
	// Type is the JSON type: "object", "string", "integer", "number",
	// "boolean", "array".
	Type string `json:"type,omitempty"`
	// Description describes the value.
	Description string `json:"description,omitempty"`
	// Properties holds the schemas of an object's fields.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Required lists the object fields that must be present.
	Required []string `json:"required,omitempty"`
	// Items is the schema of array elements.
	Items *Schema `json:"items,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`
	// AdditionalProperties is the schema of map values.
	AdditionalProperties *Schema `json:"additionalProperties,omitempty"`
}
