//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package flow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/log"
)

// ErrUnknownFlow marks a flow name that no discovered definition matches,
// as opposed to a definition that fails to compile.
var ErrUnknownFlow = errors.New("unknown flow")

// Manager owns the flow definitions discovered under a flows root and the
// graphs compiled from them. Compilation happens once per flow name; every
// later request returns the same compiled graph.
type Manager struct {
	root    string
	builder *Builder

	mu          sync.RWMutex
	definitions map[string]*Definition
	graphs      map[string]*graph.Graph

	// compileMu serializes compilation per flow name so concurrent first
	// requests for the same flow build it once.
	compileMu sync.Mutex
	compiling map[string]*sync.Mutex
}

// NewManager scans root for flow definitions and compiles the flows the
// loader config marks for preloading. A preload failure is fatal; lazy
// flows surface their errors on first use.
func NewManager(root string, builder *Builder) (*Manager, error) {
	definitions, err := ScanFlows(root)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		root:        root,
		builder:     builder,
		definitions: definitions,
		graphs:      make(map[string]*graph.Graph),
		compiling:   make(map[string]*sync.Mutex),
	}

	loader, err := LoadLoaderConfig(root)
	if err != nil {
		return nil, err
	}
	for _, name := range loader.Flows.Preload {
		if _, err := m.GetFlow(name); err != nil {
			return nil, fmt.Errorf("flow: preload %q: %w", name, err)
		}
		log.Infof("flow: preloaded %q", name)
	}
	return m, nil
}

// GetFlow returns the compiled graph for name, compiling it on first use.
// An unknown name triggers one rescan of the flows root before failing.
func (m *Manager) GetFlow(name string) (*graph.Graph, error) {
	m.mu.RLock()
	if g, ok := m.graphs[name]; ok {
		m.mu.RUnlock()
		return g, nil
	}
	_, known := m.definitions[name]
	m.mu.RUnlock()

	if !known {
		if err := m.rescan(); err != nil {
			return nil, err
		}
	}

	lock := m.flowLock(name)
	lock.Lock()
	defer lock.Unlock()

	// Another goroutine may have compiled while we waited.
	m.mu.RLock()
	g, ok := m.graphs[name]
	def := m.definitions[name]
	m.mu.RUnlock()
	if ok {
		return g, nil
	}
	if def == nil {
		return nil, fmt.Errorf("flow: %w %q", ErrUnknownFlow, name)
	}

	g, err := m.builder.Build(def)
	if err != nil {
		return nil, fmt.Errorf("flow: compile %q: %w", name, err)
	}
	m.mu.Lock()
	m.graphs[name] = g
	m.mu.Unlock()
	log.Debugf("flow: compiled %q", name)
	return g, nil
}

// Definition returns the parsed definition for name, if discovered.
func (m *Manager) Definition(name string) (*Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.definitions[name]
	return def, ok
}

// Names lists the discovered flow names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.definitions))
	for name := range m.definitions {
		names = append(names, name)
	}
	return names
}

// rescan re-reads the flows root, picking up flows added after startup.
// Already-compiled graphs are kept.
func (m *Manager) rescan() error {
	definitions, err := ScanFlows(m.root)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.definitions = definitions
	m.mu.Unlock()
	return nil
}

func (m *Manager) flowLock(name string) *sync.Mutex {
	m.compileMu.Lock()
	defer m.compileMu.Unlock()
	lock, ok := m.compiling[name]
	if !ok {
		lock = &sync.Mutex{}
		m.compiling[name] = lock
	}
	return lock
}
