//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careflow-ai/careflow/storage"
)

func TestBloodPressureCreateAndGetLatest(t *testing.T) {
	ctx := context.Background()
	store := New()
	repo := store.BloodPressure()

	now := time.Now()
	for i, offset := range []time.Duration{-48 * time.Hour, -24 * time.Hour, -1 * time.Hour} {
		record := &storage.BloodPressureRecord{
			UserID:     "user-1",
			Systolic:   110 + i,
			Diastolic:  70 + i,
			RecordTime: now.Add(offset),
		}
		require.NoError(t, repo.Create(ctx, record))
		require.NotZero(t, record.ID)
	}

	latest, err := repo.GetLatest(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 112, latest.Systolic)

	_, err = repo.GetLatest(ctx, "user-2")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBloodPressureGetRecentWindow(t *testing.T) {
	ctx := context.Background()
	store := New()
	repo := store.BloodPressure()

	now := time.Now()
	inside := &storage.BloodPressureRecord{
		UserID: "user-1", Systolic: 120, Diastolic: 80, RecordTime: now.Add(-3 * 24 * time.Hour),
	}
	outside := &storage.BloodPressureRecord{
		UserID: "user-1", Systolic: 140, Diastolic: 90, RecordTime: now.Add(-30 * 24 * time.Hour),
	}
	otherUser := &storage.BloodPressureRecord{
		UserID: "user-2", Systolic: 130, Diastolic: 85, RecordTime: now.Add(-2 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, inside))
	require.NoError(t, repo.Create(ctx, outside))
	require.NoError(t, repo.Create(ctx, otherUser))

	records, err := repo.GetRecent(ctx, "user-1", now.Add(-14*24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 120, records[0].Systolic)
}

func TestBloodPressureUpdateScopedToUser(t *testing.T) {
	ctx := context.Background()
	store := New()
	repo := store.BloodPressure()

	record := &storage.BloodPressureRecord{
		UserID: "user-1", Systolic: 120, Diastolic: 80, RecordTime: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, record))

	record.Systolic = 130
	require.NoError(t, repo.Update(ctx, record))
	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, 130, got.Systolic)

	hijack := *got
	hijack.UserID = "user-2"
	require.ErrorIs(t, repo.Update(ctx, &hijack), storage.ErrNotFound)
}

func TestMedicationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()
	repo := store.Medications()

	record := &storage.MedicationRecord{
		UserID:         "user-1",
		MedicationName: "amlodipine",
		Dosage:         "5mg",
		RecordTime:     time.Now(),
	}
	require.NoError(t, repo.Create(ctx, record))

	records, err := repo.GetRecent(ctx, "user-1", time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "amlodipine", records[0].MedicationName)

	require.NoError(t, repo.Delete(ctx, record.ID))
	require.ErrorIs(t, repo.Delete(ctx, record.ID), storage.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := New()
	repo := store.Users()

	user := &storage.User{ID: "user-1", Name: "Li", Profile: map[string]any{"age": 63}}
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Li", got.Name)

	got.Name = "Li Ming"
	require.NoError(t, repo.Update(ctx, got))
	updated, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Li Ming", updated.Name)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
