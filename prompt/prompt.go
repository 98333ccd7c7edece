//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package prompt loads agent system-prompt templates. Loading resolves
// {name} placeholders against shared rule fragments (files in the rule
// directory); the remaining placeholders are runtime variables filled per
// turn by BuildSystemMessage.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/model"
)

// placeholderPattern matches {identifier} with no whitespace inside.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Manager owns the template cache and the rule-fragment cache. Templates
// are keyed by absolute path; fragments by file stem. Both live for the
// process unless ClearCache is called.
type Manager struct {
	mu        sync.RWMutex
	rulesDir  string
	templates map[string]string
	fragments map[string]string
	// fragmentsLoaded marks that the rule directory has been scanned.
	fragmentsLoaded bool
}

// NewManager creates a Manager reading rule fragments from rulesDir.
// An empty rulesDir disables fragment substitution.
func NewManager(rulesDir string) *Manager {
	return &Manager{
		rulesDir:  rulesDir,
		templates: make(map[string]string),
		fragments: make(map[string]string),
	}
}

// CachedPrompt resolves relativePath against flowDir, reads the template
// from disk, substitutes every {name} that names an existing rule fragment
// and stores the result under the absolute-path key, overwriting any
// previous entry. It always reads from disk; the cache is a read-through
// store keyed by stable identity.
func (m *Manager) CachedPrompt(relativePath, flowDir string) (string, error) {
	path := relativePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(flowDir, relativePath)
	}
	key, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("prompt: resolve %s: %w", path, err)
	}

	raw, err := os.ReadFile(key)
	if err != nil {
		return "", fmt.Errorf("prompt: read template %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadFragmentsLocked(); err != nil {
		return "", err
	}
	content := placeholderPattern.ReplaceAllStringFunc(string(raw), func(match string) string {
		name := match[1 : len(match)-1]
		if fragment, ok := m.fragments[name]; ok {
			return fragment
		}
		// Left for turn-time substitution.
		return match
	})
	m.templates[key] = content
	return key, nil
}

// PromptByKey returns a cached template. A missing key is an error: it
// means CachedPrompt was never called for this template.
func (m *Manager) PromptByKey(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.templates[key]
	if !ok {
		return "", fmt.Errorf("prompt: no cached template for key %s", key)
	}
	return content, nil
}

// ClearCache empties both the template and the fragment cache.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = make(map[string]string)
	m.fragments = make(map[string]string)
	m.fragmentsLoaded = false
}

// loadFragmentsLocked scans the rule directory once, loading every *.md
// file keyed by its stem. Caller holds m.mu.
func (m *Manager) loadFragmentsLocked() error {
	if m.fragmentsLoaded || m.rulesDir == "" {
		m.fragmentsLoaded = true
		return nil
	}
	entries, err := os.ReadDir(m.rulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("prompt: rule directory %s does not exist, fragment substitution disabled", m.rulesDir)
			m.fragmentsLoaded = true
			return nil
		}
		return fmt.Errorf("prompt: read rule directory %s: %w", m.rulesDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(m.rulesDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("prompt: read rule fragment %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		m.fragments[name] = string(raw)
	}
	m.fragmentsLoaded = true
	return nil
}

// BuildSystemMessage renders the cached template under key with the
// per-turn prompt variables. Substitution is single-pass and
// non-recursive; {name} tokens without a matching variable are left
// untouched.
func (m *Manager) BuildSystemMessage(key string, promptVars map[string]any) (model.Message, error) {
	template, err := m.PromptByKey(key)
	if err != nil {
		return model.Message{}, err
	}
	content := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := promptVars[name]
		if !ok {
			return match
		}
		return renderValue(value)
	})
	return model.NewSystemMessage(content), nil
}

// renderValue stringifies a prompt variable: nil becomes empty, maps and
// lists become pretty JSON with non-ASCII preserved, everything else its
// natural string form.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any, []string, map[string]string:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			log.Warnf("prompt: failed to render variable as JSON: %v", err)
			return fmt.Sprintf("%v", v)
		}
		return strings.TrimRight(buf.String(), "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}
