//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package health implements the health-record tools the agents call:
// record/query for blood pressure, medication, symptom and health event,
// plus update for blood pressure. Every tool is scoped to the token in
// the ambient runtime context and reports failures as plain strings so
// the model can recover.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careflow-ai/careflow/log"
	"github.com/careflow-ai/careflow/storage"
	"github.com/careflow-ai/careflow/tool"
)

const (
	// maxWindowDays bounds every query window.
	maxWindowDays = 14
	// maxAttempts bounds repository retries.
	maxAttempts = 3

	retryBaseDelay = 100 * time.Millisecond

	timeLayout = "2006-01-02 15:04:05"
)

// errNoUserContext is what every tool returns when the ambient context
// carries no token.
const errNoUserContext = "error: no active user context"

// dateLayouts are the accepted date/time argument formats, most specific
// first.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// nowFunc is swapped in tests.
var nowFunc = time.Now

// RegisterAll registers every health tool on the registry, persisting
// through the given store.
func RegisterAll(registry *tool.Registry, store storage.Store) {
	registerBloodPressureTools(registry, store)
	registerMedicationTools(registry, store)
	registerSymptomTools(registry, store)
	registerHealthEventTools(registry, store)
}

// tokenID extracts the ambient token, empty when unset.
func tokenID(ctx context.Context) string {
	rc, ok := tool.RuntimeContextFrom(ctx)
	if !ok {
		return ""
	}
	return rc.TokenID
}

// parseTime parses a date/time argument. Empty means "now".
func parseTime(value string) (time.Time, error) {
	if value == "" {
		return nowFunc(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, expected YYYY-MM-DD, YYYY-MM-DD HH:MM or YYYY-MM-DD HH:MM:SS", value)
}

// queryWindow resolves the [start, end] window from the optional
// arguments. The window always ends at "now" unless end_date is given,
// and never spans more than maxWindowDays. An absent days argument means
// the full 14 days; an explicit 0 means an empty window.
func queryWindow(startDate, endDate string, days *int) (time.Time, time.Time, error) {
	resolved := maxWindowDays
	if days != nil {
		resolved = *days
		if resolved < 0 {
			resolved = 0
		}
		if resolved > maxWindowDays {
			resolved = maxWindowDays
		}
	}
	span := time.Duration(resolved) * 24 * time.Hour
	maxSpan := maxWindowDays * 24 * time.Hour
	now := nowFunc()

	var start, end time.Time
	switch {
	case startDate == "" && endDate == "":
		end = now
		start = end.Add(-span)
	case endDate == "":
		var err error
		start, err = parseTime(startDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = now
	case startDate == "":
		var err error
		end, err = parseTime(endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = end.Add(-span)
	default:
		var err error
		start, err = parseTime(startDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err = parseTime(endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Sub(start) > maxSpan {
		start = end.Add(-maxSpan)
	}
	return start, end, nil
}

// withRetry runs op up to maxAttempts times with exponential backoff.
// Context cancellation stops the retries immediately.
func withRetry(ctx context.Context, name string, op func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Warnf("health tool %s: retrying after error: %v", name, err)
		}
		if err = op(); err == nil {
			return nil
		}
		// Missing records are a definitive answer, not a transient failure.
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return err
}
