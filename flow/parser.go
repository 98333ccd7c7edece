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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/careflow-ai/careflow/log"
)

// flowFileName is the per-flow definition file inside each flow
// directory.
const flowFileName = "flow.yaml"

// loaderFileName declares which flows preload at startup and which
// compile lazily.
const loaderFileName = "flow_loader.yaml"

// LoaderConfig mirrors flow_loader.yaml.
type LoaderConfig struct {
	Flows struct {
		Preload  []string `yaml:"preload"`
		LazyLoad []string `yaml:"lazy_load"`
	} `yaml:"flows"`
}

// ParseFile reads and validates one flow.yaml.
func ParseFile(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flow: read %s: %w", path, err)
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("flow: parse %s: %w", path, err)
	}
	def.FlowDir = filepath.Dir(path)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ScanFlows walks every subdirectory of root looking for flow.yaml files
// and returns the parsed definitions keyed by flow name. A malformed flow
// fails the whole scan.
func ScanFlows(root string) (map[string]*Definition, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("flow: read flows root %s: %w", root, err)
	}
	definitions := make(map[string]*Definition)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name(), flowFileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		def, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := definitions[def.Name]; dup {
			return nil, fmt.Errorf("flow: duplicate flow name %q under %s", def.Name, root)
		}
		definitions[def.Name] = def
		log.Debugf("flow: loaded definition %q from %s", def.Name, path)
	}
	return definitions, nil
}

// LoadLoaderConfig reads flow_loader.yaml from the flows root. A missing
// file means every discovered flow is lazy.
func LoadLoaderConfig(root string) (*LoaderConfig, error) {
	path := filepath.Join(root, loaderFileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoaderConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: read %s: %w", path, err)
	}
	var cfg LoaderConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("flow: parse %s: %w", path, err)
	}
	return &cfg, nil
}
