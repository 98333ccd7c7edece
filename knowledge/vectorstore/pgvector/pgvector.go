//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package pgvector implements vectorstore.Store on PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/careflow-ai/careflow/knowledge/vectorstore"
)

// Verify that Store implements the vectorstore.Store interface.
var _ vectorstore.Store = (*Store)(nil)

// Column names of the example tables.
const (
	fieldUserInput     = "user_input"
	fieldAgentResponse = "agent_response"
	fieldTags          = "tags"
	fieldQualityGrade  = "quality_grade"
	fieldEmbedding     = "embedding"
)

// identifierPattern guards table names interpolated into SQL; pgvector
// table names come from flow config, not user input, but a typo must fail
// loudly rather than produce broken SQL.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store runs similarity queries against pgvector example tables.
type Store struct {
	db *sql.DB
}

// New opens a connection pool for the given DSN.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: open: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Search implements the vectorstore.Store interface.
func (s *Store) Search(
	ctx context.Context, table string, vector []float64, threshold float64, limit int,
) ([]*vectorstore.Example, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", table)
	}

	query := fmt.Sprintf(`SELECT %s, %s, %s, %s, 1 - (%s <=> $1) AS similarity
		FROM %s
		WHERE 1 - (%s <=> $1) >= $2
		ORDER BY %s <=> $1
		LIMIT $3`,
		fieldUserInput, fieldAgentResponse, fieldTags, fieldQualityGrade,
		fieldEmbedding, table, fieldEmbedding, fieldEmbedding)

	rows, err := s.db.QueryContext(ctx, query, toVector(vector), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search %s: %w", table, err)
	}
	defer rows.Close()

	var examples []*vectorstore.Example
	for rows.Next() {
		var (
			example      vectorstore.Example
			tags         sql.NullString
			qualityGrade sql.NullString
		)
		if err := rows.Scan(&example.UserInput, &example.AgentResponse,
			&tags, &qualityGrade, &example.Similarity); err != nil {
			return nil, fmt.Errorf("pgvector: scan %s: %w", table, err)
		}
		example.Tags = splitTags(tags.String)
		example.QualityGrade = qualityGrade.String
		example.SourceTable = table
		examples = append(examples, &example)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: iterate %s: %w", table, err)
	}
	return examples, nil
}

// toVector converts to the pgvector wire type.
func toVector(vector []float64) pgv.Vector {
	float32Vec := make([]float32, len(vector))
	for i, v := range vector {
		float32Vec[i] = float32(v)
	}
	return pgv.NewVector(float32Vec)
}

// splitTags parses the comma-separated tags column.
func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
