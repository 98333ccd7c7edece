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
	"fmt"
	"strings"

	"github.com/careflow-ai/careflow/storage"
	"github.com/careflow-ai/careflow/tool"
	"github.com/careflow-ai/careflow/tool/function"
)

type recordMedicationArgs struct {
	MedicationName string `json:"medication_name" jsonschema:"description=Name of the medication taken,required"`
	Dosage         string `json:"dosage,omitempty" jsonschema:"description=Dosage taken, e.g. 5mg"`
	RecordTime     string `json:"record_time,omitempty" jsonschema:"description=Intake time, defaults to now"`
	Note           string `json:"note,omitempty" jsonschema:"description=Free-form note"`
}

func registerMedicationTools(registry *tool.Registry, store storage.Store) {
	repo := store.Medications()

	registry.Register(function.New(
		func(ctx context.Context, args recordMedicationArgs) (string, error) {
			return recordMedication(ctx, repo, args), nil
		},
		function.WithName("record_medication"),
		function.WithDescription("Record a medication intake for the current user."),
	))

	registry.Register(function.New(
		func(ctx context.Context, args queryArgs) (string, error) {
			return queryMedication(ctx, repo, args), nil
		},
		function.WithName("query_medication"),
		function.WithDescription("List the current user's medication records, by default the last 14 days."),
	))
}

func recordMedication(ctx context.Context, repo storage.MedicationRepository, args recordMedicationArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	if args.MedicationName == "" {
		return "error: medication_name is required"
	}
	recordTime, err := parseTime(args.RecordTime)
	if err != nil {
		return "error: " + err.Error()
	}
	record := &storage.MedicationRecord{
		UserID:         token,
		MedicationName: args.MedicationName,
		Dosage:         args.Dosage,
		Note:           args.Note,
		RecordTime:     recordTime,
	}
	if err := withRetry(ctx, "record_medication", func() error {
		return repo.Create(ctx, record)
	}); err != nil {
		return fmt.Sprintf("error: failed to save medication record: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recorded medication: %s", record.MedicationName)
	if record.Dosage != "" {
		fmt.Fprintf(&b, ", dosage %s", record.Dosage)
	}
	fmt.Fprintf(&b, ", at %s", record.RecordTime.Format(timeLayout))
	if record.Note != "" {
		fmt.Fprintf(&b, ", note: %s", record.Note)
	}
	b.WriteString(".")
	return b.String()
}

func queryMedication(ctx context.Context, repo storage.MedicationRepository, args queryArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	start, end, err := queryWindow(args.StartDate, args.EndDate, args.Days)
	if err != nil {
		return "error: " + err.Error()
	}

	var records []*storage.MedicationRecord
	if err := withRetry(ctx, "query_medication", func() error {
		var err error
		records, err = repo.GetRecent(ctx, token, start, end)
		return err
	}); err != nil {
		return fmt.Sprintf("error: failed to query medication records: %v", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("No medication records between %s and %s.",
			start.Format(timeLayout), end.Format(timeLayout))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Medication records between %s and %s:\n",
		start.Format(timeLayout), end.Format(timeLayout))
	for _, record := range records {
		fmt.Fprintf(&b, "- %s: %s", record.RecordTime.Format(timeLayout), record.MedicationName)
		if record.Dosage != "" {
			fmt.Fprintf(&b, ", %s", record.Dosage)
		}
		if record.Note != "" {
			fmt.Fprintf(&b, " (%s)", record.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
