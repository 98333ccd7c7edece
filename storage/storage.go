//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package storage defines the health-record entities and the repository
// interfaces the tools persist through. Implementations live in the
// postgres and inmemory subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: record not found")

// BloodPressureRecord is one blood-pressure measurement for a user.
type BloodPressureRecord struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Pulse      *int      `json:"pulse,omitempty"`
	Note       string    `json:"note,omitempty"`
	RecordTime time.Time `json:"record_time"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MedicationRecord is one medication intake for a user.
type MedicationRecord struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage,omitempty"`
	Note           string    `json:"note,omitempty"`
	RecordTime     time.Time `json:"record_time"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SymptomRecord is one reported symptom for a user.
type SymptomRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	SymptomName string    `json:"symptom_name"`
	Severity    string    `json:"severity,omitempty"`
	Note        string    `json:"note,omitempty"`
	RecordTime  time.Time `json:"record_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HealthEventRecord is one free-form health event for a user, e.g. a
// doctor visit or an examination.
type HealthEventRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description,omitempty"`
	Note        string    `json:"note,omitempty"`
	RecordTime  time.Time `json:"record_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is the profile record tools and prompts read from.
type User struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Profile   map[string]any `json:"profile,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BloodPressureRepository persists blood-pressure records.
type BloodPressureRepository interface {
	GetByID(ctx context.Context, id int64) (*BloodPressureRecord, error)
	// GetRecent returns the user's records with record_time in [start, end],
	// newest first.
	GetRecent(ctx context.Context, userID string, start, end time.Time) ([]*BloodPressureRecord, error)
	// GetLatest returns the user's most recent record by record_time, ties
	// broken by created_at. ErrNotFound when the user has none.
	GetLatest(ctx context.Context, userID string) (*BloodPressureRecord, error)
	Create(ctx context.Context, record *BloodPressureRecord) error
	Update(ctx context.Context, record *BloodPressureRecord) error
	Delete(ctx context.Context, id int64) error
}

// MedicationRepository persists medication records.
type MedicationRepository interface {
	GetByID(ctx context.Context, id int64) (*MedicationRecord, error)
	GetRecent(ctx context.Context, userID string, start, end time.Time) ([]*MedicationRecord, error)
	Create(ctx context.Context, record *MedicationRecord) error
	Update(ctx context.Context, record *MedicationRecord) error
	Delete(ctx context.Context, id int64) error
}

// SymptomRepository persists symptom records.
type SymptomRepository interface {
	GetByID(ctx context.Context, id int64) (*SymptomRecord, error)
	GetRecent(ctx context.Context, userID string, start, end time.Time) ([]*SymptomRecord, error)
	Create(ctx context.Context, record *SymptomRecord) error
	Update(ctx context.Context, record *SymptomRecord) error
	Delete(ctx context.Context, id int64) error
}

// HealthEventRepository persists health-event records.
type HealthEventRepository interface {
	GetByID(ctx context.Context, id int64) (*HealthEventRecord, error)
	GetRecent(ctx context.Context, userID string, start, end time.Time) ([]*HealthEventRecord, error)
	Create(ctx context.Context, record *HealthEventRecord) error
	Update(ctx context.Context, record *HealthEventRecord) error
	Delete(ctx context.Context, id int64) error
}

// UserRepository reads and writes user profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}

// Store bundles the repositories a deployment provides.
type Store interface {
	BloodPressure() BloodPressureRepository
	Medications() MedicationRepository
	Symptoms() SymptomRepository
	HealthEvents() HealthEventRepository
	Users() UserRepository
	// Close releases the underlying connections.
	Close()
}
