//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"sync"

	"github.com/careflow-ai/careflow/model"
)

// CheckpointSaver persists the reduced conversation of a thread: the
// history plus the final assistant message of each completed turn, keyed
// by thread id (canonically the session id). Put overwrites; Get returns
// the latest checkpoint or nil when none exists.
type CheckpointSaver interface {
	Get(ctx context.Context, threadID string) ([]model.Message, error)
	Put(ctx context.Context, threadID string, messages []model.Message) error
	DeleteThread(ctx context.Context, threadID string) error
}

// InMemorySaver is the default CheckpointSaver, holding checkpoints in a
// process-local map.
type InMemorySaver struct {
	mu          sync.RWMutex
	checkpoints map[string][]model.Message
}

// Verify that InMemorySaver implements the CheckpointSaver interface.
var _ CheckpointSaver = (*InMemorySaver)(nil)

// NewInMemorySaver creates an empty in-memory checkpoint saver.
func NewInMemorySaver() *InMemorySaver {
	return &InMemorySaver{checkpoints: make(map[string][]model.Message)}
}

// Get returns the latest checkpoint for the thread, nil when none exists.
func (s *InMemorySaver) Get(_ context.Context, threadID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages, ok := s.checkpoints[threadID]
	if !ok {
		return nil, nil
	}
	copied := make([]model.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Put stores the thread's reduced conversation, replacing any previous
// checkpoint.
func (s *InMemorySaver) Put(_ context.Context, threadID string, messages []model.Message) error {
	copied := make([]model.Message, len(messages))
	copy(copied, messages)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[threadID] = copied
	return nil
}

// DeleteThread removes all checkpoints of the thread.
func (s *InMemorySaver) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, threadID)
	return nil
}
