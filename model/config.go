//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"fmt"
	"sync"
	"time"
)

// Thinking type constants.
const (
	ThinkingEnabled  = "enabled"
	ThinkingDisabled = "disabled"
	ThinkingAuto     = "auto"
)

// Reasoning effort constants.
const (
	ReasoningEffortMinimal = "minimal"
	ReasoningEffortLow     = "low"
	ReasoningEffortMedium  = "medium"
	ReasoningEffortHigh    = "high"
)

// defaultThinkingTimeout applies when thinking is enabled and no explicit
// timeout is configured.
const defaultThinkingTimeout = 1800 * time.Second

// ThinkingConfig configures extended-thinking behavior.
type ThinkingConfig struct {
	// Type is one of "enabled", "disabled", "auto".
	Type string `yaml:"type" json:"type"`
}

// Config describes the model of an agent node as declared in flow YAML.
type Config struct {
	// Provider selects the registered provider, e.g. "openai".
	Provider string `yaml:"provider" json:"provider"`
	// Name is the provider-side model name.
	Name string `yaml:"name" json:"name"`
	// Temperature controls randomness; nil leaves the provider default.
	Temperature *float64 `yaml:"temperature" json:"temperature,omitempty"`
	// Thinking configures extended thinking.
	Thinking *ThinkingConfig `yaml:"thinking" json:"thinking,omitempty"`
	// ReasoningEffort is one of "minimal", "low", "medium", "high".
	ReasoningEffort string `yaml:"reasoning_effort" json:"reasoning_effort,omitempty"`
	// TimeoutSeconds bounds a single model call.
	TimeoutSeconds int `yaml:"timeout" json:"timeout,omitempty"`
}

// Validate checks the cross-field rules and fills the thinking-dependent
// timeout default.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("model config: provider is required")
	}
	if c.Name == "" {
		return fmt.Errorf("model config: name is required")
	}
	thinkingType := ""
	if c.Thinking != nil {
		thinkingType = c.Thinking.Type
		switch thinkingType {
		case ThinkingEnabled, ThinkingDisabled, ThinkingAuto:
		default:
			return fmt.Errorf("model config: invalid thinking type %q", thinkingType)
		}
	}
	if c.ReasoningEffort != "" {
		switch c.ReasoningEffort {
		case ReasoningEffortMinimal, ReasoningEffortLow, ReasoningEffortMedium, ReasoningEffortHigh:
		default:
			return fmt.Errorf("model config: invalid reasoning effort %q", c.ReasoningEffort)
		}
	}
	if thinkingType == ThinkingDisabled && c.ReasoningEffort != "" && c.ReasoningEffort != ReasoningEffortMinimal {
		return fmt.Errorf("model config: thinking disabled requires reasoning effort %q, got %q",
			ReasoningEffortMinimal, c.ReasoningEffort)
	}
	if thinkingType == ThinkingEnabled && c.ReasoningEffort == ReasoningEffortMinimal {
		return fmt.Errorf("model config: thinking enabled is incompatible with reasoning effort %q",
			ReasoningEffortMinimal)
	}
	if thinkingType == ThinkingEnabled && c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = int(defaultThinkingTimeout / time.Second)
	}
	return nil
}

// Timeout returns the configured per-call timeout, zero when unset.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProviderBuilder constructs a Model from a validated config.
type ProviderBuilder func(cfg *Config) (Model, error)

var (
	providerMu sync.RWMutex
	providers  = make(map[string]ProviderBuilder)
)

// RegisterProvider registers a model provider under a name. Later
// registrations replace earlier ones.
func RegisterProvider(name string, builder ProviderBuilder) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providers[name] = builder
}

// NewFromConfig validates the config and builds a model through the
// registered provider.
func NewFromConfig(cfg *Config) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	providerMu.RLock()
	builder, ok := providers[cfg.Provider]
	providerMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model config: unknown provider %q", cfg.Provider)
	}
	return builder(cfg)
}
