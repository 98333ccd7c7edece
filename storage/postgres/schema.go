//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package postgres

import (
	"context"
	"fmt"
)

// Table-creation SQL. Schemas match what the tools read and write; anything
// beyond that is owned by external CRUD services.
const (
	sqlCreateBloodPressureTable = `
		CREATE TABLE IF NOT EXISTS ` + tableBloodPressure + ` (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			systolic INTEGER NOT NULL,
			diastolic INTEGER NOT NULL,
			pulse INTEGER DEFAULT NULL,
			note TEXT NOT NULL DEFAULT '',
			record_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`

	sqlCreateMedicationTable = `
		CREATE TABLE IF NOT EXISTS ` + tableMedications + ` (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			medication_name VARCHAR(255) NOT NULL,
			dosage VARCHAR(255) NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			record_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`

	sqlCreateSymptomTable = `
		CREATE TABLE IF NOT EXISTS ` + tableSymptoms + ` (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			symptom_name VARCHAR(255) NOT NULL,
			severity VARCHAR(64) NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			record_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`

	sqlCreateHealthEventTable = `
		CREATE TABLE IF NOT EXISTS ` + tableHealthEvents + ` (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			event_type VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			record_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`

	sqlCreateUsersTable = `
		CREATE TABLE IF NOT EXISTS ` + tableUsers + ` (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			profile JSONB DEFAULT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
)

// Lookup indexes on (user_id, record_time), the access path of every
// query tool.
var sqlCreateIndexes = []string{
	`CREATE INDEX IF NOT EXISTS ` + tableBloodPressure + `_user_time ON ` +
		tableBloodPressure + `(user_id, record_time)`,
	`CREATE INDEX IF NOT EXISTS ` + tableMedications + `_user_time ON ` +
		tableMedications + `(user_id, record_time)`,
	`CREATE INDEX IF NOT EXISTS ` + tableSymptoms + `_user_time ON ` +
		tableSymptoms + `(user_id, record_time)`,
	`CREATE INDEX IF NOT EXISTS ` + tableHealthEvents + `_user_time ON ` +
		tableHealthEvents + `(user_id, record_time)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		sqlCreateBloodPressureTable,
		sqlCreateMedicationTable,
		sqlCreateSymptomTable,
		sqlCreateHealthEventTable,
		sqlCreateUsersTable,
	}
	stmts = append(stmts, sqlCreateIndexes...)
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	return nil
}
