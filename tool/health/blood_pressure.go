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
	"errors"
	"fmt"
	"strings"

	"github.com/careflow-ai/careflow/storage"
	"github.com/careflow-ai/careflow/tool"
	"github.com/careflow-ai/careflow/tool/function"
)

// recordBloodPressureArgs are the model-facing arguments.
type recordBloodPressureArgs struct {
	Systolic   int    `json:"systolic" jsonschema:"description=Systolic pressure in mmHg,required"`
	Diastolic  int    `json:"diastolic" jsonschema:"description=Diastolic pressure in mmHg,required"`
	Pulse      *int   `json:"pulse,omitempty" jsonschema:"description=Pulse in beats per minute"`
	RecordTime string `json:"record_time,omitempty" jsonschema:"description=Measurement time, defaults to now"`
	Note       string `json:"note,omitempty" jsonschema:"description=Free-form note"`
}

type updateBloodPressureArgs struct {
	Systolic  *int   `json:"systolic,omitempty" jsonschema:"description=New systolic pressure in mmHg"`
	Diastolic *int   `json:"diastolic,omitempty" jsonschema:"description=New diastolic pressure in mmHg"`
	Pulse     *int   `json:"pulse,omitempty" jsonschema:"description=New pulse in beats per minute"`
	Note      string `json:"note,omitempty" jsonschema:"description=New note"`
}

type queryArgs struct {
	StartDate string `json:"start_date,omitempty" jsonschema:"description=Window start, YYYY-MM-DD"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"description=Window end, YYYY-MM-DD"`
	Days      *int   `json:"days,omitempty" jsonschema:"description=Window size in days, at most 14"`
}

func registerBloodPressureTools(registry *tool.Registry, store storage.Store) {
	repo := store.BloodPressure()

	registry.Register(function.New(
		func(ctx context.Context, args recordBloodPressureArgs) (string, error) {
			return recordBloodPressure(ctx, repo, args), nil
		},
		function.WithName("record_blood_pressure"),
		function.WithDescription("Record a blood pressure measurement (systolic/diastolic, optional pulse) for the current user."),
	))

	registry.Register(function.New(
		func(ctx context.Context, args updateBloodPressureArgs) (string, error) {
			return updateBloodPressure(ctx, repo, args), nil
		},
		function.WithName("update_blood_pressure"),
		function.WithDescription("Correct the current user's most recent blood pressure record. Only provided fields change."),
	))

	registry.Register(function.New(
		func(ctx context.Context, args queryArgs) (string, error) {
			return queryBloodPressure(ctx, repo, args), nil
		},
		function.WithName("query_blood_pressure"),
		function.WithDescription("List the current user's blood pressure records, by default the last 14 days."),
	))
}

func recordBloodPressure(ctx context.Context, repo storage.BloodPressureRepository, args recordBloodPressureArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	if args.Systolic <= 0 || args.Diastolic <= 0 {
		return "error: systolic and diastolic must both be positive numbers"
	}
	recordTime, err := parseTime(args.RecordTime)
	if err != nil {
		return "error: " + err.Error()
	}
	record := &storage.BloodPressureRecord{
		UserID:     token,
		Systolic:   args.Systolic,
		Diastolic:  args.Diastolic,
		Pulse:      args.Pulse,
		Note:       args.Note,
		RecordTime: recordTime,
	}
	if err := withRetry(ctx, "record_blood_pressure", func() error {
		return repo.Create(ctx, record)
	}); err != nil {
		return fmt.Sprintf("error: failed to save blood pressure record: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recorded blood pressure: systolic %d mmHg, diastolic %d mmHg", record.Systolic, record.Diastolic)
	if record.Pulse != nil {
		fmt.Fprintf(&b, ", pulse %d bpm", *record.Pulse)
	}
	fmt.Fprintf(&b, ", at %s", record.RecordTime.Format(timeLayout))
	if record.Note != "" {
		fmt.Fprintf(&b, ", note: %s", record.Note)
	}
	b.WriteString(".")
	return b.String()
}

func updateBloodPressure(ctx context.Context, repo storage.BloodPressureRepository, args updateBloodPressureArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	if args.Systolic == nil && args.Diastolic == nil && args.Pulse == nil && args.Note == "" {
		return "error: nothing to update, provide at least one field"
	}

	var record *storage.BloodPressureRecord
	err := withRetry(ctx, "update_blood_pressure", func() error {
		latest, err := repo.GetLatest(ctx, token)
		if err != nil {
			return err
		}
		record = latest
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return "error: no blood pressure record exists yet, record one before updating"
	}
	if err != nil {
		return fmt.Sprintf("error: failed to load the latest blood pressure record: %v", err)
	}

	if args.Systolic != nil {
		record.Systolic = *args.Systolic
	}
	if args.Diastolic != nil {
		record.Diastolic = *args.Diastolic
	}
	if args.Pulse != nil {
		record.Pulse = args.Pulse
	}
	if args.Note != "" {
		record.Note = args.Note
	}
	if err := withRetry(ctx, "update_blood_pressure", func() error {
		return repo.Update(ctx, record)
	}); err != nil {
		return fmt.Sprintf("error: failed to update blood pressure record: %v", err)
	}

	result := fmt.Sprintf("Updated the blood pressure record of %s: systolic %d mmHg, diastolic %d mmHg",
		record.RecordTime.Format(timeLayout), record.Systolic, record.Diastolic)
	if record.Pulse != nil {
		result += fmt.Sprintf(", pulse %d bpm", *record.Pulse)
	}
	return result + "."
}

func queryBloodPressure(ctx context.Context, repo storage.BloodPressureRepository, args queryArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	start, end, err := queryWindow(args.StartDate, args.EndDate, args.Days)
	if err != nil {
		return "error: " + err.Error()
	}

	var records []*storage.BloodPressureRecord
	if err := withRetry(ctx, "query_blood_pressure", func() error {
		var err error
		records, err = repo.GetRecent(ctx, token, start, end)
		return err
	}); err != nil {
		return fmt.Sprintf("error: failed to query blood pressure records: %v", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("No blood pressure records between %s and %s.",
			start.Format(timeLayout), end.Format(timeLayout))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Blood pressure records between %s and %s:\n",
		start.Format(timeLayout), end.Format(timeLayout))
	for _, record := range records {
		fmt.Fprintf(&b, "- %s: %d/%d mmHg", record.RecordTime.Format(timeLayout),
			record.Systolic, record.Diastolic)
		if record.Pulse != nil {
			fmt.Fprintf(&b, ", pulse %d bpm", *record.Pulse)
		}
		if record.Note != "" {
			fmt.Fprintf(&b, " (%s)", record.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
