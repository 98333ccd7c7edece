//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package pgvector

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"user_input", "agent_response", "tags", "quality_grade", "similarity",
	}).
		AddRow("bp is high", "reassure and record", "blood_pressure, urgent", "A", 0.91).
		AddRow("bp normal", "record", "", nil, 0.82)
	mock.ExpectQuery(`SELECT user_input, agent_response, tags, quality_grade, 1 - \(embedding <=> \$1\) AS similarity`).
		WithArgs(sqlmock.AnyArg(), 0.7, 5).
		WillReturnRows(rows)

	store := NewWithDB(db)
	examples, err := store.Search(context.Background(), "bp_examples", []float64{0.1, 0.2}, 0.7, 5)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	require.Equal(t, "bp is high", examples[0].UserInput)
	require.Equal(t, []string{"blood_pressure", "urgent"}, examples[0].Tags)
	require.Equal(t, "A", examples[0].QualityGrade)
	require.InDelta(t, 0.91, examples[0].Similarity, 1e-9)
	require.Equal(t, "bp_examples", examples[0].SourceTable)
	require.Nil(t, examples[1].Tags)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db)
	_, err = store.Search(context.Background(), "bp; DROP TABLE users", []float64{0.1}, 0.7, 5)
	require.Error(t, err)
}

func TestSplitTags(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitTags("a, b"))
	require.Equal(t, []string{"single"}, splitTags("single"))
	require.Nil(t, splitTags(""))
}
