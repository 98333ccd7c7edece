//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package vectorstore defines the similarity-search interface over the
// few-shot example tables.
package vectorstore

import "context"

// Example is one retrieved few-shot exemplar. Similarity is cosine
// similarity (1 - cosine distance) against the query vector.
type Example struct {
	UserInput     string
	AgentResponse string
	Tags          []string
	QualityGrade  string
	Similarity    float64
	SourceTable   string
}

// Store searches one example table by vector similarity.
type Store interface {
	// Search returns up to limit examples from table whose cosine
	// similarity to vector is at least threshold, most similar first.
	Search(ctx context.Context, table string, vector []float64, threshold float64, limit int) ([]*Example, error)
}
