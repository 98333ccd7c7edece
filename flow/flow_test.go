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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/knowledge"
	"github.com/careflow-ai/careflow/knowledge/vectorstore"
	"github.com/careflow-ai/careflow/model"
	"github.com/careflow-ai/careflow/prompt"
	"github.com/careflow-ai/careflow/tool"
)

// scriptedModel replays canned responses and records the requests it saw.
type scriptedModel struct {
	name      string
	responses []string
	requests  []*model.Request
}

func (m *scriptedModel) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted model %s: out of responses", m.name)
	}
	content := m.responses[0]
	m.responses = m.responses[1:]
	finishReason := "stop"
	return &model.Response{
		Choices: []model.Choice{{
			Message:      model.NewAssistantMessage(content),
			FinishReason: &finishReason,
		}},
	}, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: m.name} }

// scriptedFactory hands each node the fake registered under its model name.
func scriptedFactory(models map[string]*scriptedModel) func(cfg *model.Config) (model.Model, error) {
	return func(cfg *model.Config) (model.Model, error) {
		m, ok := models[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("no scripted model %q", cfg.Name)
		}
		return m, nil
	}
}

func newTestBuilder(t *testing.T, models map[string]*scriptedModel, opts ...BuilderOption) *Builder {
	t.Helper()
	prompts := prompt.NewManager("testdata/rules")
	opts = append(opts, WithModelFactory(scriptedFactory(models)))
	return NewBuilder(prompts, tool.NewRegistry(), opts...)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func userTurn(content string) graph.State {
	return graph.State{
		graph.StateKeyCurrentMessage: model.NewUserMessage(content),
		graph.StateKeyPromptVars:     map[string]any{"current_date": "2026-08-26T12:00:00"},
		graph.StateKeyEdgesVar:       map[string]any{},
	}
}

func TestParseFile(t *testing.T) {
	def, err := ParseFile("testdata/flows/triage/flow.yaml")
	require.NoError(t, err)
	require.Equal(t, "triage", def.Name)
	require.Equal(t, "intent_recognition", def.EntryNode)
	require.Len(t, def.Nodes, 4)
	require.Len(t, def.Edges, 5)
	require.Equal(t, "testdata/flows/triage", def.FlowDir)
	require.Equal(t, NodeTypeRetrieval, def.Nodes[1].Type)
	require.Equal(t, []string{"bp_examples"}, def.Nodes[1].Config.Tables)
}

func TestScanFlows(t *testing.T) {
	definitions, err := ScanFlows("testdata/flows")
	require.NoError(t, err)
	require.Len(t, definitions, 1)
	require.Contains(t, definitions, "triage")
}

func TestLoadLoaderConfig(t *testing.T) {
	cfg, err := LoadLoaderConfig("testdata/flows")
	require.NoError(t, err)
	require.Equal(t, []string{"triage"}, cfg.Flows.Preload)

	// A missing loader file means everything is lazy.
	cfg, err = LoadLoaderConfig(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, cfg.Flows.Preload)
}

func TestDefinitionValidate(t *testing.T) {
	base := func() *Definition {
		return &Definition{
			Name:      "t",
			EntryNode: "a",
			Nodes: []NodeDefinition{
				{Name: "a", Type: NodeTypeAgent, Config: NodeConfig{
					Prompt: "p.md", Model: &model.Config{Provider: "openai", Name: "gpt-4o-mini"},
				}},
			},
			Edges: []EdgeDefinition{{From: "a", To: graph.End, Condition: "always"}},
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{"no nodes", func(d *Definition) { d.Nodes = nil }, "no nodes"},
		{"duplicate node", func(d *Definition) { d.Nodes = append(d.Nodes, d.Nodes[0]) }, "duplicate node"},
		{"agent without prompt", func(d *Definition) { d.Nodes[0].Config.Prompt = "" }, "no prompt"},
		{"agent without model", func(d *Definition) { d.Nodes[0].Config.Model = nil }, "no model"},
		{"unknown type", func(d *Definition) { d.Nodes[0].Type = "cron" }, "unknown type"},
		{"missing entry", func(d *Definition) { d.EntryNode = "" }, "entry_node is required"},
		{"unknown entry", func(d *Definition) { d.EntryNode = "ghost" }, "not a declared node"},
		{"edge from unknown", func(d *Definition) { d.Edges[0].From = "ghost" }, "unknown node"},
		{"edge to unknown", func(d *Definition) { d.Edges[0].To = "ghost" }, "unknown node"},
		{"edge without condition", func(d *Definition) { d.Edges[0].Condition = "" }, "no condition"},
		{"mixed edge kinds", func(d *Definition) {
			d.Edges = append(d.Edges, EdgeDefinition{From: "a", To: graph.End, Condition: "x > 1"})
		}, "mixes always and conditional"},
		{"two always edges", func(d *Definition) {
			d.Edges = append(d.Edges, EdgeDefinition{From: "a", To: graph.End, Condition: "always"})
		}, "at most one"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := base()
			tc.mutate(def)
			err := def.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("retrieval without tables", func(t *testing.T) {
		def := base()
		def.Nodes = append(def.Nodes, NodeDefinition{Name: "r", Type: NodeTypeRetrieval})
		err := def.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "no tables")
	})
}

func TestBuildRoutesOnExtractedIntent(t *testing.T) {
	models := map[string]*scriptedModel{
		"fake-classifier": {name: "fake-classifier", responses: []string{
			`The request is clear. {"intent": "record_blood_pressure", "confidence": 0.92, "need_clarification": false}`,
		}},
		"fake-responder": {name: "fake-responder", responses: []string{
			"Recorded your blood pressure reading.",
		}},
		"fake-clarifier": {name: "fake-clarifier", responses: []string{"Could you clarify?"}},
	}
	builder := newTestBuilder(t, models)

	def, err := ParseFile("testdata/flows/triage/flow.yaml")
	require.NoError(t, err)
	g, err := builder.Build(def)
	require.NoError(t, err)

	final, err := graph.NewExecutor(g).Execute(context.Background(), userTurn("my blood pressure is 120 over 80"))
	require.NoError(t, err)

	answer, ok := final.LastAssistantMessage()
	require.True(t, ok)
	require.Equal(t, "Recorded your blood pressure reading.", answer)

	// The clarifier never ran.
	require.Len(t, models["fake-clarifier"].responses, 1)

	// Retrieval degraded to the fallback (no searcher configured) and the
	// responder's system prompt carried it.
	responderReq := models["fake-responder"].requests[0]
	require.Equal(t, model.RoleSystem, responderReq.Messages[0].Role)
	require.Contains(t, responderReq.Messages[0].Content, knowledge.NoRelevantExamples)
	require.Contains(t, responderReq.Messages[0].Content, "Speak plainly")
}

func TestBuildRoutesToClarifierOnLowConfidence(t *testing.T) {
	models := map[string]*scriptedModel{
		"fake-classifier": {name: "fake-classifier", responses: []string{
			`{"intent": "record_blood_pressure", "confidence": 0.4}`,
		}},
		"fake-responder": {name: "fake-responder", responses: []string{"unexpected"}},
		"fake-clarifier": {name: "fake-clarifier", responses: []string{"Could you clarify?"}},
	}
	builder := newTestBuilder(t, models)

	def, err := ParseFile("testdata/flows/triage/flow.yaml")
	require.NoError(t, err)
	g, err := builder.Build(def)
	require.NoError(t, err)

	final, err := graph.NewExecutor(g).Execute(context.Background(), userTurn("bp"))
	require.NoError(t, err)

	answer, ok := final.LastAssistantMessage()
	require.True(t, ok)
	require.Equal(t, "Could you clarify?", answer)
	require.Len(t, models["fake-responder"].responses, 1)
}

// stubEmbedder and stubStore drive retrieval through a real Searcher.
type stubEmbedder struct{}

func (stubEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	return []float64{0.1, 0.2, 0.3}, nil
}
func (stubEmbedder) GetDimensions() int { return 3 }

type stubStore struct {
	queries []string
}

func (s *stubStore) Search(ctx context.Context, table string, vector []float64, threshold float64, limit int) ([]*vectorstore.Example, error) {
	s.queries = append(s.queries, table)
	return []*vectorstore.Example{{
		UserInput:     "blood pressure 130/85 this morning",
		AgentResponse: "Recorded 130/85 mmHg.",
		Similarity:    0.91,
		SourceTable:   table,
	}}, nil
}

func TestRetrievalNodeUsesSearcher(t *testing.T) {
	store := &stubStore{}
	searcher, err := knowledge.NewSearcher(stubEmbedder{}, store)
	require.NoError(t, err)
	defer searcher.Release()

	models := map[string]*scriptedModel{
		"fake-classifier": {name: "fake-classifier", responses: []string{
			`{"intent": "record_blood_pressure", "confidence": 0.95}`,
		}},
		"fake-responder": {name: "fake-responder", responses: []string{"done"}},
		"fake-clarifier": {name: "fake-clarifier", responses: []string{"?"}},
	}
	builder := newTestBuilder(t, models, WithSearcher(searcher))

	def, err := ParseFile("testdata/flows/triage/flow.yaml")
	require.NoError(t, err)
	g, err := builder.Build(def)
	require.NoError(t, err)

	_, err = graph.NewExecutor(g).Execute(context.Background(), userTurn("my bp is 130 over 85"))
	require.NoError(t, err)

	// The node searched the table declared in the flow, not a default set.
	require.Contains(t, store.queries, "bp_examples")
	responderReq := models["fake-responder"].requests[0]
	require.Contains(t, responderReq.Messages[0].Content, "Recorded 130/85 mmHg.")
	require.NotContains(t, responderReq.Messages[0].Content, knowledge.NoRelevantExamples)
}

type failingStore struct{}

func (failingStore) Search(ctx context.Context, table string, vector []float64, threshold float64, limit int) ([]*vectorstore.Example, error) {
	return nil, fmt.Errorf("connection refused")
}

func TestRetrievalFailureDegradesToFallback(t *testing.T) {
	searcher, err := knowledge.NewSearcher(stubEmbedder{}, failingStore{})
	require.NoError(t, err)
	defer searcher.Release()

	models := map[string]*scriptedModel{
		"fake-classifier": {name: "fake-classifier", responses: []string{
			`{"intent": "record_blood_pressure", "confidence": 0.95}`,
		}},
		"fake-responder": {name: "fake-responder", responses: []string{"still answered"}},
		"fake-clarifier": {name: "fake-clarifier", responses: []string{"?"}},
	}
	builder := newTestBuilder(t, models, WithSearcher(searcher))

	def, err := ParseFile("testdata/flows/triage/flow.yaml")
	require.NoError(t, err)
	g, err := builder.Build(def)
	require.NoError(t, err)

	final, err := graph.NewExecutor(g).Execute(context.Background(), userTurn("bp is 120/80"))
	require.NoError(t, err)

	answer, ok := final.LastAssistantMessage()
	require.True(t, ok)
	require.Equal(t, "still answered", answer)
	require.Contains(t, models["fake-responder"].requests[0].Messages[0].Content,
		knowledge.NoRelevantExamples)
}

func TestExtractIntent(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		intent     string
		confidence float64
		clarify    bool
	}{
		{
			name:       "clean JSON",
			output:     `{"intent": "query_medication", "confidence": 0.85, "need_clarification": true}`,
			intent:     "query_medication",
			confidence: 0.85,
			clarify:    true,
		},
		{
			name:       "JSON wrapped in prose",
			output:     "Sure. {\"intent\": \"record_symptom\", \"confidence\": 0.7} Hope that helps.",
			intent:     "record_symptom",
			confidence: 0.7,
		},
		{name: "no JSON", output: "I cannot tell.", intent: intentUnclear},
		{name: "malformed JSON", output: `{"intent": }`, intent: intentUnclear},
		{name: "empty intent field", output: `{"intent": "", "confidence": 0.9}`, intent: intentUnclear, confidence: 0.9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vars := extractIntent(tc.output)
			require.Equal(t, tc.intent, vars["intent"])
			require.Equal(t, tc.confidence, vars["confidence"])
			require.Equal(t, tc.clarify, vars["need_clarification"])
		})
	}
}

func TestExtractIntentPassesExtraKeys(t *testing.T) {
	vars := extractIntent(`{"intent": "query_blood_pressure", "confidence": 0.9,
		"query_text": "recent blood pressure", "keywords": ["bp", "week"]}`)
	require.Equal(t, "query_blood_pressure", vars["intent"])
	require.Equal(t, "recent blood pressure", vars["query_text"])
	require.Equal(t, []any{"bp", "week"}, vars["keywords"])
}

func TestRetrievalQueryFallsBackToCurrentMessage(t *testing.T) {
	state := userTurn("how do I log my pills")
	require.Equal(t, "how do I log my pills", retrievalQuery(state, "query_text"))

	state[graph.StateKeyEdgesVar] = map[string]any{"query_text": "medication logging"}
	require.Equal(t, "medication logging", retrievalQuery(state, "query_text"))
}

func TestRetrievalKeywords(t *testing.T) {
	state := graph.State{graph.StateKeyEdgesVar: map[string]any{
		"keywords": []any{"bp", "morning", 42},
	}}
	require.Equal(t, []string{"bp", "morning"}, retrievalKeywords(state, "keywords"))

	state[graph.StateKeyEdgesVar] = map[string]any{"keywords": "bp morning"}
	require.Equal(t, []string{"bp", "morning"}, retrievalKeywords(state, "keywords"))

	require.Nil(t, retrievalKeywords(graph.State{}, "keywords"))
}

func TestManagerPreloadsAndCaches(t *testing.T) {
	models := map[string]*scriptedModel{
		"fake-classifier": {name: "fake-classifier"},
		"fake-responder":  {name: "fake-responder"},
		"fake-clarifier":  {name: "fake-clarifier"},
	}
	manager, err := NewManager("testdata/flows", newTestBuilder(t, models))
	require.NoError(t, err)

	first, err := manager.GetFlow("triage")
	require.NoError(t, err)
	second, err := manager.GetFlow("triage")
	require.NoError(t, err)
	require.Same(t, first, second)

	_, err = manager.GetFlow("nonexistent")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown flow")

	names := manager.Names()
	require.Contains(t, names, "triage")
}

func TestManagerPreloadFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, loaderFileName, "flows:\n  preload:\n    - ghost\n")

	_, err := NewManager(dir, newTestBuilder(t, nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "preload")
}

func TestManagerRescanPicksUpNewFlow(t *testing.T) {
	dir := t.TempDir()
	models := map[string]*scriptedModel{"fake-classifier": {name: "fake-classifier"}}
	prompts := prompt.NewManager("testdata/rules")
	builder := NewBuilder(prompts, tool.NewRegistry(), WithModelFactory(scriptedFactory(models)))

	manager, err := NewManager(dir, builder)
	require.NoError(t, err)
	_, err = manager.GetFlow("late")
	require.Error(t, err)

	flowDir := dir + "/late"
	writeFile(t, flowDir, "flow.yaml", strings.Join([]string{
		"name: late",
		"entry_node: only",
		"nodes:",
		"  - name: only",
		"    type: agent",
		"    config:",
		"      prompt: prompts/only.md",
		"      model: {provider: scripted, name: fake-classifier}",
		"edges:",
		"  - {from: only, to: END, condition: always}",
	}, "\n") + "\n")
	writeFile(t, flowDir+"/prompts", "only.md", "Answer briefly.\n")

	g, err := manager.GetFlow("late")
	require.NoError(t, err)
	require.NotNil(t, g)
}
