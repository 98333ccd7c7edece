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

type recordHealthEventArgs struct {
	EventType   string `json:"event_type" jsonschema:"description=Kind of event, e.g. doctor_visit or examination,required"`
	Description string `json:"description,omitempty" jsonschema:"description=What happened"`
	RecordTime  string `json:"record_time,omitempty" jsonschema:"description=Event time, defaults to now"`
	Note        string `json:"note,omitempty" jsonschema:"description=Free-form note"`
}

func registerHealthEventTools(registry *tool.Registry, store storage.Store) {
	repo := store.HealthEvents()

	registry.Register(function.New(
		func(ctx context.Context, args recordHealthEventArgs) (string, error) {
			return recordHealthEvent(ctx, repo, args), nil
		},
		function.WithName("record_health_event"),
		function.WithDescription("Record a health event (doctor visit, examination, etc.) for the current user."),
	))

	registry.Register(function.New(
		func(ctx context.Context, args queryArgs) (string, error) {
			return queryHealthEvent(ctx, repo, args), nil
		},
		function.WithName("query_health_event"),
		function.WithDescription("List the current user's health events, by default the last 14 days."),
	))
}

func recordHealthEvent(ctx context.Context, repo storage.HealthEventRepository, args recordHealthEventArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	if args.EventType == "" {
		return "error: event_type is required"
	}
	recordTime, err := parseTime(args.RecordTime)
	if err != nil {
		return "error: " + err.Error()
	}
	record := &storage.HealthEventRecord{
		UserID:      token,
		EventType:   args.EventType,
		Description: args.Description,
		Note:        args.Note,
		RecordTime:  recordTime,
	}
	if err := withRetry(ctx, "record_health_event", func() error {
		return repo.Create(ctx, record)
	}); err != nil {
		return fmt.Sprintf("error: failed to save health event: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recorded health event: %s", record.EventType)
	if record.Description != "" {
		fmt.Fprintf(&b, ", %s", record.Description)
	}
	fmt.Fprintf(&b, ", at %s", record.RecordTime.Format(timeLayout))
	if record.Note != "" {
		fmt.Fprintf(&b, ", note: %s", record.Note)
	}
	b.WriteString(".")
	return b.String()
}

func queryHealthEvent(ctx context.Context, repo storage.HealthEventRepository, args queryArgs) string {
	token := tokenID(ctx)
	if token == "" {
		return errNoUserContext
	}
	start, end, err := queryWindow(args.StartDate, args.EndDate, args.Days)
	if err != nil {
		return "error: " + err.Error()
	}

	var records []*storage.HealthEventRecord
	if err := withRetry(ctx, "query_health_event", func() error {
		var err error
		records, err = repo.GetRecent(ctx, token, start, end)
		return err
	}); err != nil {
		return fmt.Sprintf("error: failed to query health events: %v", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("No health events between %s and %s.",
			start.Format(timeLayout), end.Format(timeLayout))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Health events between %s and %s:\n",
		start.Format(timeLayout), end.Format(timeLayout))
	for _, record := range records {
		fmt.Fprintf(&b, "- %s: %s", record.RecordTime.Format(timeLayout), record.EventType)
		if record.Description != "" {
			fmt.Fprintf(&b, ", %s", record.Description)
		}
		if record.Note != "" {
			fmt.Fprintf(&b, " (%s)", record.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
