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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/careflow-ai/careflow/agent"
	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/knowledge"
	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/model"
	"github.com/careflow-ai/careflow/prompt"
	"github.com/careflow-ai/careflow/tool"
)

// intentNodeName gets special post-processing: the node's text output is
// scanned for a JSON object carrying the classified intent.
const intentNodeName = "intent_recognition"

// intentUnclear is the fallback when intent extraction fails.
const intentUnclear = "unclear"

// promptVarRetrievedExamples is where retrieval nodes publish their
// formatted output.
const promptVarRetrievedExamples = "retrieved_examples"

// Builder compiles flow definitions into executable graphs.
type Builder struct {
	prompts  *prompt.Manager
	registry *tool.Registry
	searcher *knowledge.Searcher
	// newModel builds the LLM client for an agent node; defaults to
	// model.NewFromConfig, tests inject a scripted model.
	newModel func(cfg *model.Config) (model.Model, error)
}

// BuilderOption configures the Builder.
type BuilderOption func(*Builder)

// WithSearcher provides the retrieval searcher. Without it, retrieval
// nodes degrade to the empty-examples fallback.
func WithSearcher(s *knowledge.Searcher) BuilderOption {
	return func(b *Builder) {
		b.searcher = s
	}
}

// WithModelFactory overrides how agent models are constructed.
func WithModelFactory(factory func(cfg *model.Config) (model.Model, error)) BuilderOption {
	return func(b *Builder) {
		b.newModel = factory
	}
}

// NewBuilder creates a Builder over the given prompt manager and tool
// registry.
func NewBuilder(prompts *prompt.Manager, registry *tool.Registry, opts ...BuilderOption) *Builder {
	b := &Builder{
		prompts:  prompts,
		registry: registry,
		newModel: model.NewFromConfig,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compiles a validated definition into a graph.
func (b *Builder) Build(def *Definition) (*graph.Graph, error) {
	sg := graph.NewStateGraph(def.Name)
	for i := range def.Nodes {
		node := &def.Nodes[i]
		switch node.Type {
		case NodeTypeAgent:
			fn, err := b.buildAgentNode(def, node)
			if err != nil {
				return nil, err
			}
			sg.AddNode(node.Name, fn)
		case NodeTypeRetrieval:
			sg.AddNode(node.Name, b.buildRetrievalNode(node))
		default:
			return nil, fmt.Errorf("flow %s: node %q has unknown type %q", def.Name, node.Name, node.Type)
		}
	}
	for _, edge := range def.Edges {
		if edge.Condition == conditionAlways {
			sg.AddEdge(edge.From, edge.To)
		} else {
			sg.AddConditionalEdge(edge.From, edge.Condition, edge.To)
		}
	}
	sg.SetEntryPoint(def.EntryNode)
	return sg.Compile()
}

// buildAgentNode wires one agent node: preload the prompt template,
// resolve tools, construct the model and wrap the ReAct executor as a
// node function. The system message is composed per turn from prompt_vars,
// never baked into the executor.
func (b *Builder) buildAgentNode(def *Definition, node *NodeDefinition) (graph.NodeFunc, error) {
	cacheKey, err := b.prompts.CachedPrompt(node.Config.Prompt, def.FlowDir)
	if err != nil {
		return nil, fmt.Errorf("flow %s: node %q: %w", def.Name, node.Name, err)
	}
	tools := b.registry.Resolve(node.Config.Tools)

	modelCfg := node.Config.Model
	if err := modelCfg.Validate(); err != nil {
		return nil, fmt.Errorf("flow %s: node %q: %w", def.Name, node.Name, err)
	}
	llm, err := b.newModel(modelCfg)
	if err != nil {
		return nil, fmt.Errorf("flow %s: node %q: %w", def.Name, node.Name, err)
	}
	executor := agent.New(llm, tools,
		agent.WithGenerationConfig(generationConfig(modelCfg)))

	nodeName := node.Name
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		system, err := b.prompts.BuildSystemMessage(cacheKey, state.PromptVars())
		if err != nil {
			return nil, err
		}
		history := state.HistoryMessages()
		messages := make([]model.Message, 0, len(history)+1)
		messages = append(messages, history...)
		if current, ok := state.CurrentMessage(); ok {
			messages = append(messages, current)
		}
		output, produced, err := executor.Invoke(ctx, system, messages)
		if err != nil {
			// Whatever the agent produced before failing still counts.
			return graph.State{graph.StateKeyFlowMessages: produced}, err
		}

		update := graph.State{graph.StateKeyFlowMessages: produced}
		if nodeName == intentNodeName {
			update[graph.StateKeyEdgesVar] = extractIntent(output)
		}
		return update, nil
	}, nil
}

// buildRetrievalNode wires one retrieval node. Any failure writes the
// fallback string instead of aborting the turn.
func (b *Builder) buildRetrievalNode(node *NodeDefinition) graph.NodeFunc {
	tables := node.Config.Tables
	queryVar := node.Config.QueryVar
	if queryVar == "" {
		queryVar = "query_text"
	}
	keywordsVar := node.Config.KeywordsVar
	if keywordsVar == "" {
		keywordsVar = "keywords"
	}

	return func(ctx context.Context, state graph.State) (graph.State, error) {
		formatted := knowledge.NoRelevantExamples
		if b.searcher != nil {
			queryText := retrievalQuery(state, queryVar)
			keywords := retrievalKeywords(state, keywordsVar)
			examples, err := b.searcher.SearchTables(ctx, tables, queryText, keywords)
			if err != nil {
				log.Warnf("flow: retrieval failed: %v, using fallback", err)
			} else {
				formatted = knowledge.FormatExamples(examples)
			}
		}
		return graph.State{
			graph.StateKeyPromptVars: map[string]any{promptVarRetrievedExamples: formatted},
		}, nil
	}
}

// retrievalQuery reads the query text from edges_var, falling back to the
// turn's user message.
func retrievalQuery(state graph.State, queryVar string) string {
	if value, ok := state.EdgesVar()[queryVar]; ok {
		if text, ok := value.(string); ok && text != "" {
			return text
		}
	}
	if current, ok := state.CurrentMessage(); ok {
		return current.Content
	}
	return ""
}

// retrievalKeywords reads optional keywords from edges_var.
func retrievalKeywords(state graph.State, keywordsVar string) []string {
	value, ok := state.EdgesVar()[keywordsVar]
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		keywords := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				keywords = append(keywords, s)
			}
		}
		return keywords
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(v)
	default:
		return nil
	}
}

// extractIntent pulls the first {...} JSON object out of the model output
// (first opening brace to last closing brace) and reads intent,
// confidence and need_clarification with lenient defaults.
func extractIntent(output string) map[string]any {
	result := map[string]any{
		"intent":             intentUnclear,
		"confidence":         0.0,
		"need_clarification": false,
	}
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		log.Warnf("flow: no JSON object in intent output, defaulting to %q", intentUnclear)
		return result
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(output[start:end+1]), &parsed); err != nil {
		log.Warnf("flow: malformed intent JSON: %v, defaulting to %q", err, intentUnclear)
		return result
	}
	// Extra keys (query_text, keywords, ...) pass through for downstream
	// nodes; the canonical three keep their defaults on a type mismatch.
	for key, value := range parsed {
		switch key {
		case "intent":
			if intent, ok := value.(string); ok && intent != "" {
				result["intent"] = intent
			}
		case "confidence":
			if confidence, ok := value.(float64); ok {
				result["confidence"] = confidence
			}
		case "need_clarification":
			if need, ok := value.(bool); ok {
				result["need_clarification"] = need
			}
		default:
			result[key] = value
		}
	}
	return result
}

// generationConfig maps a validated model config onto per-call generation
// parameters.
func generationConfig(cfg *model.Config) model.GenerationConfig {
	gen := model.GenerationConfig{
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout(),
	}
	if cfg.ReasoningEffort != "" {
		effort := cfg.ReasoningEffort
		gen.ReasoningEffort = &effort
	}
	if cfg.Thinking != nil && cfg.Thinking.Type == model.ThinkingEnabled {
		enabled := true
		gen.ThinkingEnabled = &enabled
	}
	return gen
}
