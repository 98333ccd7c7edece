//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package knowledge retrieves few-shot exemplars for agent grounding:
// it embeds the query, searches the configured pgvector tables in
// parallel and formats the merged result for prompt injection.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow-ai/careflow/knowledge/embedder"
	"github.com/careflow-ai/careflow/knowledge/vectorstore"
	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/telemetry"
)

// NoRelevantExamples is injected when retrieval finds nothing or fails.
const NoRelevantExamples = "(no relevant examples)"

const (
	defaultPerTableLimit = 5
	defaultTotalLimit    = 15
	defaultMinResults    = 5
	defaultPoolSize      = 8
)

// defaultThresholds is the similarity fallback ladder: each threshold is
// tried in order until the merged result reaches minResults.
var defaultThresholds = []float64{0.7, 0.6, 0.5}

// Searcher runs multi-table similarity retrieval.
type Searcher struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	pool     *ants.Pool

	tables        []string
	thresholds    []float64
	perTableLimit int
	totalLimit    int
	minResults    int
}

// Option configures the Searcher.
type Option func(*Searcher)

// WithTables sets the example tables to search.
func WithTables(tables ...string) Option {
	return func(s *Searcher) {
		s.tables = tables
	}
}

// WithThresholds overrides the similarity fallback ladder.
func WithThresholds(thresholds ...float64) Option {
	return func(s *Searcher) {
		s.thresholds = thresholds
	}
}

// WithLimits overrides the per-table and merged result limits.
func WithLimits(perTable, total int) Option {
	return func(s *Searcher) {
		s.perTableLimit = perTable
		s.totalLimit = total
	}
}

// WithMinResults sets the merged size at which the fallback ladder stops.
func WithMinResults(n int) Option {
	return func(s *Searcher) {
		s.minResults = n
	}
}

// NewSearcher creates a Searcher over the given embedder and store. The
// worker pool is shared across retrieval calls.
func NewSearcher(emb embedder.Embedder, store vectorstore.Store, opts ...Option) (*Searcher, error) {
	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, fmt.Errorf("knowledge: create worker pool: %w", err)
	}
	s := &Searcher{
		embedder:      emb,
		store:         store,
		pool:          pool,
		thresholds:    defaultThresholds,
		perTableLimit: defaultPerTableLimit,
		totalLimit:    defaultTotalLimit,
		minResults:    defaultMinResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Release shuts down the worker pool.
func (s *Searcher) Release() {
	s.pool.Release()
}

// Search embeds queryText (concatenated with keywords when present) and
// returns the merged, similarity-ordered examples across the configured
// tables.
func (s *Searcher) Search(ctx context.Context, queryText string, keywords []string) ([]*vectorstore.Example, error) {
	return s.SearchTables(ctx, s.tables, queryText, keywords)
}

// SearchTables is Search with an explicit table set, for retrieval steps
// scoped to a subset of the example tables.
func (s *Searcher) SearchTables(
	ctx context.Context, tables []string, queryText string, keywords []string,
) ([]*vectorstore.Example, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	ctx, span := telemetry.Tracer().Start(ctx, "knowledge.search")
	span.SetAttributes(attribute.Int("table.count", len(tables)))
	defer span.End()

	query := queryText
	if len(keywords) > 0 {
		query = query + " " + strings.Join(keywords, " ")
	}
	vector, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("knowledge: empty query embedding")
	}

	var merged []*vectorstore.Example
	for _, threshold := range s.thresholds {
		merged, err = s.searchAllTables(ctx, tables, vector, threshold)
		if err != nil {
			return nil, err
		}
		if len(merged) >= s.minResults {
			break
		}
		log.Debugf("knowledge: threshold %.1f yielded %d results, trying next", threshold, len(merged))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > s.totalLimit {
		merged = merged[:s.totalLimit]
	}
	return merged, nil
}

// searchAllTables fans the query out across the tables on the worker pool.
// A single failing table fails the whole call; the caller degrades to the
// fallback string.
func (s *Searcher) searchAllTables(ctx context.Context, tables []string, vector []float64, threshold float64) ([]*vectorstore.Example, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		merged   []*vectorstore.Example
		firstErr error
	)
	for _, table := range tables {
		table := table
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			examples, err := s.store.Search(ctx, table, vector, threshold, s.perTableLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			merged = append(merged, examples...)
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("knowledge: submit search task: %w", submitErr)
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return merged, nil
}

// FormatExamples renders the retrieved examples as the Markdown block
// injected into prompts. Empty input yields NoRelevantExamples.
func FormatExamples(examples []*vectorstore.Example) string {
	if len(examples) == 0 {
		return NoRelevantExamples
	}
	var b strings.Builder
	for i, example := range examples {
		fmt.Fprintf(&b, "- Example %d\n", i+1)
		if len(example.Tags) > 0 {
			fmt.Fprintf(&b, "  - Tags : %s\n", strings.Join(example.Tags, ", "))
		}
		fmt.Fprintf(&b, "  - User : %s\n", example.UserInput)
		fmt.Fprintf(&b, "  - Response sketch : %s\n", example.AgentResponse)
	}
	return strings.TrimRight(b.String(), "\n")
}
