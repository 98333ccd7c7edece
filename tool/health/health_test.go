//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careflow-ai/careflow/storage"
	"github.com/careflow-ai/careflow/storage/inmemory"
	"github.com/careflow-ai/careflow/tool"
)

func ambientCtx(tokenID string) context.Context {
	return tool.WithRuntimeContext(context.Background(), tool.RuntimeContext{
		TokenID:   tokenID,
		SessionID: "session-1",
		TraceID:   "trace-1",
	})
}

func TestParseTime(t *testing.T) {
	for _, value := range []string{"2026-08-20", "2026-08-20 09:30", "2026-08-20 09:30:15"} {
		parsed, err := parseTime(value)
		require.NoError(t, err, value)
		require.Equal(t, 2026, parsed.Year())
		require.Equal(t, time.August, parsed.Month())
		require.Equal(t, 20, parsed.Day())
	}

	_, err := parseTime("20/08/2026")
	require.Error(t, err)

	now, err := parseTime("")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), now, time.Second)
}

func intPtr(n int) *int { return &n }

func TestQueryWindowClamp(t *testing.T) {
	fixed := time.Date(2026, 8, 26, 12, 0, 0, 0, time.Local)
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = time.Now }()

	// Absent days defaults to 14.
	start, end, err := queryWindow("", "", nil)
	require.NoError(t, err)
	require.Equal(t, fixed, end)
	require.Equal(t, fixed.Add(-14*24*time.Hour), start)

	// days beyond the cap falls back to 14.
	start, end, err = queryWindow("", "", intPtr(30))
	require.NoError(t, err)
	require.Equal(t, fixed.Add(-14*24*time.Hour), start)

	// Explicit small window.
	start, end, err = queryWindow("", "", intPtr(7))
	require.NoError(t, err)
	require.Equal(t, fixed.Add(-7*24*time.Hour), start)

	// Explicit zero is an empty window.
	start, end, err = queryWindow("", "", intPtr(0))
	require.NoError(t, err)
	require.Equal(t, end, start)

	// Only end_date: start = end - days.
	start, end, err = queryWindow("", "2026-08-20", intPtr(3))
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.Local), end)
	require.Equal(t, end.Add(-3*24*time.Hour), start)

	// Only start_date: end = now, span still capped.
	start, end, err = queryWindow("2026-01-01", "", nil)
	require.NoError(t, err)
	require.Equal(t, fixed, end)
	require.Equal(t, fixed.Add(-14*24*time.Hour), start)

	// Both dates wider than 14 days get clamped from the start side.
	start, end, err = queryWindow("2026-07-01", "2026-08-20", nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.Local), end)
	require.Equal(t, end.Add(-14*24*time.Hour), start)
}

func TestRecordBloodPressure(t *testing.T) {
	store := inmemory.New()
	result := recordBloodPressure(ambientCtx("token-1"), store.BloodPressure(), recordBloodPressureArgs{
		Systolic:  120,
		Diastolic: 80,
	})
	require.Contains(t, result, "120")
	require.Contains(t, result, "80")

	records, err := store.BloodPressure().GetRecent(context.Background(), "token-1",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 120, records[0].Systolic)
}

func TestRecordBloodPressureNoContext(t *testing.T) {
	store := inmemory.New()
	result := recordBloodPressure(context.Background(), store.BloodPressure(), recordBloodPressureArgs{
		Systolic:  120,
		Diastolic: 80,
	})
	require.Equal(t, errNoUserContext, result)
}

func TestRecordBloodPressureBadDate(t *testing.T) {
	store := inmemory.New()
	result := recordBloodPressure(ambientCtx("token-1"), store.BloodPressure(), recordBloodPressureArgs{
		Systolic:   120,
		Diastolic:  80,
		RecordTime: "yesterday",
	})
	require.Contains(t, result, "error:")
}

func TestUpdateBloodPressureMutatesMostRecent(t *testing.T) {
	ctx := ambientCtx("token-1")
	store := inmemory.New()
	repo := store.BloodPressure()

	now := time.Now()
	var ids []int64
	for i, offset := range []time.Duration{-72 * time.Hour, -48 * time.Hour, -2 * time.Hour} {
		record := &storage.BloodPressureRecord{
			UserID: "token-1", Systolic: 118 + i, Diastolic: 76, RecordTime: now.Add(offset),
		}
		require.NoError(t, repo.Create(context.Background(), record))
		ids = append(ids, record.ID)
	}

	systolic := 130
	result := updateBloodPressure(ctx, repo, updateBloodPressureArgs{Systolic: &systolic})
	require.Contains(t, result, "130")

	// Only the most recent record changed.
	latest, err := repo.GetByID(context.Background(), ids[2])
	require.NoError(t, err)
	require.Equal(t, 130, latest.Systolic)
	older, err := repo.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	require.Equal(t, 118, older.Systolic)
}

func TestUpdateBloodPressureNoRecords(t *testing.T) {
	store := inmemory.New()
	systolic := 130
	result := updateBloodPressure(ambientCtx("token-1"), store.BloodPressure(),
		updateBloodPressureArgs{Systolic: &systolic})
	require.Contains(t, result, "error:")
	require.Contains(t, result, "no blood pressure record")
}

func TestQueryBloodPressureWindowClamp(t *testing.T) {
	ctx := ambientCtx("token-1")
	store := inmemory.New()
	repo := store.BloodPressure()

	now := time.Now()
	recent := &storage.BloodPressureRecord{
		UserID: "token-1", Systolic: 121, Diastolic: 81, RecordTime: now.Add(-2 * 24 * time.Hour),
	}
	stale := &storage.BloodPressureRecord{
		UserID: "token-1", Systolic: 150, Diastolic: 95, RecordTime: now.Add(-20 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), recent))
	require.NoError(t, repo.Create(context.Background(), stale))

	// days=30 is clamped to 14, the 20-day-old record stays out.
	result := queryBloodPressure(ctx, repo, queryArgs{Days: intPtr(30)})
	require.Contains(t, result, "121/81")
	require.NotContains(t, result, "150/95")
}

func TestMedicationTools(t *testing.T) {
	ctx := ambientCtx("token-1")
	store := inmemory.New()
	repo := store.Medications()

	result := recordMedication(ctx, repo, recordMedicationArgs{
		MedicationName: "amlodipine",
		Dosage:         "5mg",
	})
	require.Contains(t, result, "amlodipine")
	require.Contains(t, result, "5mg")

	result = queryMedication(ctx, repo, queryArgs{})
	require.Contains(t, result, "amlodipine")

	result = recordMedication(ctx, repo, recordMedicationArgs{})
	require.Contains(t, result, "error:")
}

func TestSymptomTools(t *testing.T) {
	ctx := ambientCtx("token-1")
	store := inmemory.New()
	repo := store.Symptoms()

	result := recordSymptom(ctx, repo, recordSymptomArgs{
		SymptomName: "headache",
		Severity:    "mild",
	})
	require.Contains(t, result, "headache")
	require.Contains(t, result, "mild")

	result = querySymptom(ctx, repo, queryArgs{})
	require.Contains(t, result, "headache")
}

func TestHealthEventTools(t *testing.T) {
	ctx := ambientCtx("token-1")
	store := inmemory.New()
	repo := store.HealthEvents()

	result := recordHealthEvent(ctx, repo, recordHealthEventArgs{
		EventType:   "doctor_visit",
		Description: "quarterly checkup",
	})
	require.Contains(t, result, "doctor_visit")

	result = queryHealthEvent(ctx, repo, queryArgs{})
	require.Contains(t, result, "quarterly checkup")
}

func TestRegisterAll(t *testing.T) {
	registry := tool.NewRegistry()
	RegisterAll(registry, inmemory.New())

	for _, name := range []string{
		"record_blood_pressure", "update_blood_pressure", "query_blood_pressure",
		"record_medication", "query_medication",
		"record_symptom", "query_symptom",
		"record_health_event", "query_health_event",
	} {
		_, ok := registry.Get(name)
		require.True(t, ok, name)
	}
}
