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

type recordSymptomArgs struct {
	SymptomName string `json:"symptom_name" jsonschema:"description=Name of the symptom, e.g. headache,required"`
	Severity    string `json:"severity,omitempty" jsonschema:"description=Severity,enum=mild,enum=moderate,enum=severe"`
	RecordTime  string `json:"record_time,omitempty" jsonschema:"description=Onset time, defaults to now"`
	Note        string `json:"note,omitempty" jsonschema:"description=Free-form note"`
}

func registerSymptomTools(registry *tool.Registry, store storage.Store) {
	repo := store.Symptoms()

	registry.Register(function.New(
		func(ctx context.Context, args recordSymptomArgs) (string, error) {
			return recordSymptom(ctx, repo, args), nil
		},
		function.WithName("record_symptom"),
		function.WithDescription("Record a symptom reported by the current user."),
	))

	registry.Register(function.New(
		func(ctx context.Context, args queryArgs) (string, error) {
			return querySymptom(ctx, repo, args), nil
		},
		function.WithName("query_symptom"),
		function.WithDescription("List the current user's symptom records, by default the last 14 days."),
	))
}

func recordSymptom(ctx context.Context, repo storage.SymptomRepository, args recordSymptomArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	if args.SymptomName == "" {
		return "error: symptom_name is required"
	}
	recordTime, err := parseTime(args.RecordTime)
	if err != nil {
		return "error: " + err.Error()
	}
	record := &storage.SymptomRecord{
		UserID:      token,
		SymptomName: args.SymptomName,
		Severity:    args.Severity,
		Note:        args.Note,
		RecordTime:  recordTime,
	}
	if err := withRetry(ctx, "record_symptom", func() error {
		return repo.Create(ctx, record)
	}); err != nil {
		return fmt.Sprintf("error: failed to save symptom record: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recorded symptom: %s", record.SymptomName)
	if record.Severity != "" {
		fmt.Fprintf(&b, ", severity %s", record.Severity)
	}
	fmt.Fprintf(&b, ", at %s", record.RecordTime.Format(timeLayout))
	if record.Note != "" {
		fmt.Fprintf(&b, ", note: %s", record.Note)
	}
	b.WriteString(".")
	return b.String()
}

func querySymptom(ctx context.Context, repo storage.SymptomRepository, args queryArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	start, end, err := queryWindow(args.StartDate, args.EndDate, args.Days)
	if err != nil {
		return "error: " + err.Error()
	}

	var records []*storage.SymptomRecord
	if err := withRetry(ctx, "query_symptom", func() error {
		var err error
		records, err = repo.GetRecent(ctx, token, start, end)
		return err
	}); err != nil {
		return fmt.Sprintf("error: failed to query symptom records: %v", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("No symptom records between %s and %s.",
			start.Format(timeLayout), end.Format(timeLayout))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Symptom records between %s and %s:\n",
		start.Format(timeLayout), end.Format(timeLayout))
	for _, record := range records {
		fmt.Fprintf(&b, "- %s: %s", record.RecordTime.Format(timeLayout), record.SymptomName)
		if record.Severity != "" {
			fmt.Fprintf(&b, ", %s", record.Severity)
		}
		if record.Note != "" {
			fmt.Fprintf(&b, " (%s)", record.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
