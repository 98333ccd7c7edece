//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"sync"

	"github.com/careflow-ai/careflow/log"
)

// Registry is a process-wide map from tool name to tool.
// Tools register themselves at init time; the registry is effectively
// immutable afterwards, the lock only guards late registrations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]CallableTool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]CallableTool)}
}

// defaultRegistry is the registry used by the package-level helpers.
var defaultRegistry = NewRegistry()

// Default returns the process-wide tool registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a tool to the registry. Duplicate registration is ignored
// with a warning.
func (r *Registry) Register(t CallableTool) {
	name := t.Declaration().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		log.Warnf("tool registry: tool %q already registered, ignoring", name)
		return
	}
	r.tools[name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (CallableTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Resolve maps tool names to tools. Unknown names are skipped with a
// warning so that a misspelled flow config degrades instead of failing.
func (r *Registry) Resolve(names []string) map[string]CallableTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved := make(map[string]CallableTool, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			log.Warnf("tool registry: tool %q not registered, skipping", name)
			continue
		}
		resolved[name] = t
	}
	return resolved
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Register adds a tool to the default registry.
func Register(t CallableTool) {
	defaultRegistry.Register(t)
}
