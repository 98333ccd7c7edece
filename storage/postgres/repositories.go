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
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow-ai/careflow/storage"
)

func mapRowError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// bloodPressureRepository implements storage.BloodPressureRepository.
type bloodPressureRepository struct {
	pool *pgxpool.Pool
}

func (r *bloodPressureRepository) GetByID(ctx context.Context, id int64) (*storage.BloodPressureRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, systolic, diastolic, pulse, note, record_time, created_at, updated_at
		FROM `+tableBloodPressure+` WHERE id = $1`, id)
	return scanBloodPressure(row)
}

func (r *bloodPressureRepository) GetRecent(
	ctx context.Context, userID string, start, end time.Time,
) ([]*storage.BloodPressureRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, systolic, diastolic, pulse, note, record_time, created_at, updated_at
		FROM `+tableBloodPressure+`
		WHERE user_id = $1 AND record_time >= $2 AND record_time <= $3
		ORDER BY record_time DESC, created_at DESC`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*storage.BloodPressureRecord
	for rows.Next() {
		record, err := scanBloodPressure(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *bloodPressureRepository) GetLatest(ctx context.Context, userID string) (*storage.BloodPressureRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, systolic, diastolic, pulse, note, record_time, created_at, updated_at
		FROM `+tableBloodPressure+`
		WHERE user_id = $1
		ORDER BY record_time DESC, created_at DESC
		LIMIT 1`, userID)
	return scanBloodPressure(row)
}

func (r *bloodPressureRepository) Create(ctx context.Context, record *storage.BloodPressureRecord) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO `+tableBloodPressure+` (user_id, systolic, diastolic, pulse, note, record_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		record.UserID, record.Systolic, record.Diastolic, record.Pulse, record.Note, record.RecordTime,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *bloodPressureRepository) Update(ctx context.Context, record *storage.BloodPressureRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+tableBloodPressure+`
		SET systolic = $1, diastolic = $2, pulse = $3, note = $4, record_time = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND user_id = $7`,
		record.Systolic, record.Diastolic, record.Pulse, record.Note, record.RecordTime,
		record.ID, record.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *bloodPressureRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+tableBloodPressure+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanBloodPressure(row pgx.Row) (*storage.BloodPressureRecord, error) {
	var record storage.BloodPressureRecord
	err := row.Scan(&record.ID, &record.UserID, &record.Systolic, &record.Diastolic,
		&record.Pulse, &record.Note, &record.RecordTime, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, mapRowError(err)
	}
	return &record, nil
}

// medicationRepository implements storage.MedicationRepository.
type medicationRepository struct {
	pool *pgxpool.Pool
}

func (r *medicationRepository) GetByID(ctx context.Context, id int64) (*storage.MedicationRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, medication_name, dosage, note, record_time, created_at, updated_at
		FROM `+tableMedications+` WHERE id = $1`, id)
	return scanMedication(row)
}

func (r *medicationRepository) GetRecent(
	ctx context.Context, userID string, start, end time.Time,
) ([]*storage.MedicationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, medication_name, dosage, note, record_time, created_at, updated_at
		FROM `+tableMedications+`
		WHERE user_id = $1 AND record_time >= $2 AND record_time <= $3
		ORDER BY record_time DESC, created_at DESC`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*storage.MedicationRecord
	for rows.Next() {
		record, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *medicationRepository) Create(ctx context.Context, record *storage.MedicationRecord) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO `+tableMedications+` (user_id, medication_name, dosage, note, record_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		record.UserID, record.MedicationName, record.Dosage, record.Note, record.RecordTime,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *medicationRepository) Update(ctx context.Context, record *storage.MedicationRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+tableMedications+`
		SET medication_name = $1, dosage = $2, note = $3, record_time = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND user_id = $6`,
		record.MedicationName, record.Dosage, record.Note, record.RecordTime,
		record.ID, record.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *medicationRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+tableMedications+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanMedication(row pgx.Row) (*storage.MedicationRecord, error) {
	var record storage.MedicationRecord
	err := row.Scan(&record.ID, &record.UserID, &record.MedicationName, &record.Dosage,
		&record.Note, &record.RecordTime, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, mapRowError(err)
	}
	return &record, nil
}

// symptomRepository implements storage.SymptomRepository.
type symptomRepository struct {
	pool *pgxpool.Pool
}

func (r *symptomRepository) GetByID(ctx context.Context, id int64) (*storage.SymptomRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, symptom_name, severity, note, record_time, created_at, updated_at
		FROM `+tableSymptoms+` WHERE id = $1`, id)
	return scanSymptom(row)
}

func (r *symptomRepository) GetRecent(
	ctx context.Context, userID string, start, end time.Time,
) ([]*storage.SymptomRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, symptom_name, severity, note, record_time, created_at, updated_at
		FROM `+tableSymptoms+`
		WHERE user_id = $1 AND record_time >= $2 AND record_time <= $3
		ORDER BY record_time DESC, created_at DESC`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*storage.SymptomRecord
	for rows.Next() {
		record, err := scanSymptom(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *symptomRepository) Create(ctx context.Context, record *storage.SymptomRecord) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO `+tableSymptoms+` (user_id, symptom_name, severity, note, record_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		record.UserID, record.SymptomName, record.Severity, record.Note, record.RecordTime,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *symptomRepository) Update(ctx context.Context, record *storage.SymptomRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+tableSymptoms+`
		SET symptom_name = $1, severity = $2, note = $3, record_time = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND user_id = $6`,
		record.SymptomName, record.Severity, record.Note, record.RecordTime,
		record.ID, record.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *symptomRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+tableSymptoms+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanSymptom(row pgx.Row) (*storage.SymptomRecord, error) {
	var record storage.SymptomRecord
	err := row.Scan(&record.ID, &record.UserID, &record.SymptomName, &record.Severity,
		&record.Note, &record.RecordTime, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, mapRowError(err)
	}
	return &record, nil
}

// healthEventRepository implements storage.HealthEventRepository.
type healthEventRepository struct {
	pool *pgxpool.Pool
}

func (r *healthEventRepository) GetByID(ctx context.Context, id int64) (*storage.HealthEventRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, event_type, description, note, record_time, created_at, updated_at
		FROM `+tableHealthEvents+` WHERE id = $1`, id)
	return scanHealthEvent(row)
}

func (r *healthEventRepository) GetRecent(
	ctx context.Context, userID string, start, end time.Time,
) ([]*storage.HealthEventRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, event_type, description, note, record_time, created_at, updated_at
		FROM `+tableHealthEvents+`
		WHERE user_id = $1 AND record_time >= $2 AND record_time <= $3
		ORDER BY record_time DESC, created_at DESC`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*storage.HealthEventRecord
	for rows.Next() {
		record, err := scanHealthEvent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *healthEventRepository) Create(ctx context.Context, record *storage.HealthEventRecord) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO `+tableHealthEvents+` (user_id, event_type, description, note, record_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		record.UserID, record.EventType, record.Description, record.Note, record.RecordTime,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *healthEventRepository) Update(ctx context.Context, record *storage.HealthEventRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+tableHealthEvents+`
		SET event_type = $1, description = $2, note = $3, record_time = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND user_id = $6`,
		record.EventType, record.Description, record.Note, record.RecordTime,
		record.ID, record.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *healthEventRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+tableHealthEvents+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanHealthEvent(row pgx.Row) (*storage.HealthEventRecord, error) {
	var record storage.HealthEventRecord
	err := row.Scan(&record.ID, &record.UserID, &record.EventType, &record.Description,
		&record.Note, &record.RecordTime, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, mapRowError(err)
	}
	return &record, nil
}

// userRepository implements storage.UserRepository.
type userRepository struct {
	pool *pgxpool.Pool
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*storage.User, error) {
	var user storage.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, profile, created_at, updated_at
		FROM `+tableUsers+` WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.Profile, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapRowError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *storage.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO `+tableUsers+` (id, name, profile)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		user.ID, user.Name, user.Profile,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *storage.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE `+tableUsers+`
		SET name = $1, profile = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`,
		user.Name, user.Profile, user.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
