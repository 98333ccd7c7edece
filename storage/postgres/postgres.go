//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package postgres provides the PostgreSQL implementation of the storage
// repositories, backed by a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow-ai/careflow/storage"
)

// Table names.
const (
	tableBloodPressure = "blood_pressure_records"
	tableMedications   = "medication_records"
	tableSymptoms      = "symptom_records"
	tableHealthEvents  = "health_event_records"
	tableUsers         = "users"
)

const (
	defaultMaxConns        = 10
	defaultConnectTimeout  = 10 * time.Second
	defaultMaxConnLifetime = time.Hour
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	pool          *pgxpool.Pool
	bloodPressure *bloodPressureRepository
	medications   *medicationRepository
	symptoms      *symptomRepository
	healthEvents  *healthEventRepository
	users         *userRepository
}

// Option configures the Store.
type Option func(*options)

type options struct {
	maxConns   int32
	skipDBInit bool
}

// WithMaxConns sets the maximum pool size.
func WithMaxConns(n int32) Option {
	return func(o *options) {
		o.maxConns = n
	}
}

// WithSkipDBInit skips table creation. Useful when the schema is managed
// externally or the connecting role lacks DDL permissions.
func WithSkipDBInit() Option {
	return func(o *options) {
		o.skipDBInit = true
	}
}

// New connects to PostgreSQL with the given DSN and prepares the
// repositories. Unless WithSkipDBInit is set it creates the tables on
// first use.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := options{maxConns: defaultMaxConns}
	for _, opt := range opts {
		opt(&o)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = o.maxConns
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{
		pool:          pool,
		bloodPressure: &bloodPressureRepository{pool: pool},
		medications:   &medicationRepository{pool: pool},
		symptoms:      &symptomRepository{pool: pool},
		healthEvents:  &healthEventRepository{pool: pool},
		users:         &userRepository{pool: pool},
	}
	if !o.skipDBInit {
		if err := s.initSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// BloodPressure returns the blood-pressure repository.
func (s *Store) BloodPressure() storage.BloodPressureRepository { return s.bloodPressure }

// Medications returns the medication repository.
func (s *Store) Medications() storage.MedicationRepository { return s.medications }

// Symptoms returns the symptom repository.
func (s *Store) Symptoms() storage.SymptomRepository { return s.symptoms }

// HealthEvents returns the health-event repository.
func (s *Store) HealthEvents() storage.HealthEventRepository { return s.healthEvents }

// Users returns the user repository.
func (s *Store) Users() storage.UserRepository { return s.users }

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
