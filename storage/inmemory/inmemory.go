//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a map-backed storage.Store for tests and
// development mode.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/careflow-ai/careflow/storage"
)

// Store implements storage.Store in process memory.
type Store struct {
	bloodPressure *bloodPressureRepository
	medications   *medicationRepository
	symptoms      *symptomRepository
	healthEvents  *healthEventRepository
	users         *userRepository
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		bloodPressure: &bloodPressureRepository{records: make(map[int64]*storage.BloodPressureRecord)},
		medications:   &medicationRepository{records: make(map[int64]*storage.MedicationRecord)},
		symptoms:      &symptomRepository{records: make(map[int64]*storage.SymptomRecord)},
		healthEvents:  &healthEventRepository{records: make(map[int64]*storage.HealthEventRecord)},
		users:         &userRepository{users: make(map[string]*storage.User)},
	}
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

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

// inWindow reports whether t falls inside [start, end].
func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

type bloodPressureRepository struct {
	mu      sync.RWMutex
	records map[int64]*storage.BloodPressureRecord
	nextID  int64
}

func (r *bloodPressureRepository) GetByID(_ context.Context, id int64) (*storage.BloodPressureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *bloodPressureRepository) GetRecent(
	_ context.Context, userID string, start, end time.Time,
) ([]*storage.BloodPressureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []*storage.BloodPressureRecord
	for _, record := range r.records {
		if record.UserID == userID && inWindow(record.RecordTime, start, end) {
			clone := *record
			records = append(records, &clone)
		}
	}
	sortBloodPressure(records)
	return records, nil
}

func (r *bloodPressureRepository) GetLatest(_ context.Context, userID string) (*storage.BloodPressureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *storage.BloodPressureRecord
	for _, record := range r.records {
		if record.UserID != userID {
			continue
		}
		if latest == nil || newerBloodPressure(record, latest) {
			latest = record
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *bloodPressureRepository) Create(_ context.Context, record *storage.BloodPressureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *bloodPressureRepository) Update(_ context.Context, record *storage.BloodPressureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.ID]
	if !ok || existing.UserID != record.UserID {
		return storage.ErrNotFound
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = time.Now()
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *bloodPressureRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func newerBloodPressure(a, b *storage.BloodPressureRecord) bool {
	if !a.RecordTime.Equal(b.RecordTime) {
		return a.RecordTime.After(b.RecordTime)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortBloodPressure(records []*storage.BloodPressureRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return newerBloodPressure(records[i], records[j])
	})
}

type medicationRepository struct {
	mu      sync.RWMutex
	records map[int64]*storage.MedicationRecord
	nextID  int64
}

func (r *medicationRepository) GetByID(_ context.Context, id int64) (*storage.MedicationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *medicationRepository) GetRecent(
	_ context.Context, userID string, start, end time.Time,
) ([]*storage.MedicationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []*storage.MedicationRecord
	for _, record := range r.records {
		if record.UserID == userID && inWindow(record.RecordTime, start, end) {
			clone := *record
			records = append(records, &clone)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].RecordTime.Equal(records[j].RecordTime) {
			return records[i].RecordTime.After(records[j].RecordTime)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (r *medicationRepository) Create(_ context.Context, record *storage.MedicationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *medicationRepository) Update(_ context.Context, record *storage.MedicationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.ID]
	if !ok || existing.UserID != record.UserID {
		return storage.ErrNotFound
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = time.Now()
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *medicationRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

type symptomRepository struct {
	mu      sync.RWMutex
	records map[int64]*storage.SymptomRecord
	nextID  int64
}

func (r *symptomRepository) GetByID(_ context.Context, id int64) (*storage.SymptomRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *symptomRepository) GetRecent(
	_ context.Context, userID string, start, end time.Time,
) ([]*storage.SymptomRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []*storage.SymptomRecord
	for _, record := range r.records {
		if record.UserID == userID && inWindow(record.RecordTime, start, end) {
			clone := *record
			records = append(records, &clone)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].RecordTime.Equal(records[j].RecordTime) {
			return records[i].RecordTime.After(records[j].RecordTime)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (r *symptomRepository) Create(_ context.Context, record *storage.SymptomRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *symptomRepository) Update(_ context.Context, record *storage.SymptomRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.ID]
	if !ok || existing.UserID != record.UserID {
		return storage.ErrNotFound
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = time.Now()
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *symptomRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

type healthEventRepository struct {
	mu      sync.RWMutex
	records map[int64]*storage.HealthEventRecord
	nextID  int64
}

func (r *healthEventRepository) GetByID(_ context.Context, id int64) (*storage.HealthEventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *healthEventRepository) GetRecent(
	_ context.Context, userID string, start, end time.Time,
) ([]*storage.HealthEventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []*storage.HealthEventRecord
	for _, record := range r.records {
		if record.UserID == userID && inWindow(record.RecordTime, start, end) {
			clone := *record
			records = append(records, &clone)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].RecordTime.Equal(records[j].RecordTime) {
			return records[i].RecordTime.After(records[j].RecordTime)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (r *healthEventRepository) Create(_ context.Context, record *storage.HealthEventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *healthEventRepository) Update(_ context.Context, record *storage.HealthEventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.ID]
	if !ok || existing.UserID != record.UserID {
		return storage.ErrNotFound
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = time.Now()
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *healthEventRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

type userRepository struct {
	mu    sync.RWMutex
	users map[string]*storage.User
}

func (r *userRepository) GetByID(_ context.Context, id string) (*storage.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *userRepository) Create(_ context.Context, user *storage.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *userRepository) Update(_ context.Context, user *storage.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}
