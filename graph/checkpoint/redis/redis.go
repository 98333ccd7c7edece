//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a Redis-backed checkpoint saver, so reduced
// conversations survive process restarts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/careflow-ai/careflow/graph"
	"github.com/careflow-ai/careflow/model"
)

// Verify that Saver implements the graph.CheckpointSaver interface.
var _ graph.CheckpointSaver = (*Saver)(nil)

const keyPrefix = "careflow:checkpoint:"

// Saver stores one JSON-encoded reduced conversation per thread.
type Saver struct {
	client *goredis.Client
	ttl    time.Duration
}

// Option configures the Saver.
type Option func(*Saver)

// WithTTL expires checkpoints after the given duration. Zero keeps them
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Saver) {
		s.ttl = ttl
	}
}

// New connects to Redis at addr and verifies the connection.
func New(ctx context.Context, addr string, opts ...Option) (*Saver, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis checkpoint: ping %s: %w", addr, err)
	}
	s := &Saver{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *goredis.Client, opts ...Option) *Saver {
	s := &Saver{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the client.
func (s *Saver) Close() error {
	return s.client.Close()
}

// Get returns the latest checkpoint for the thread, nil when none exists.
func (s *Saver) Get(ctx context.Context, threadID string) ([]model.Message, error) {
	raw, err := s.client.Get(ctx, keyPrefix+threadID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis checkpoint: get %s: %w", threadID, err)
	}
	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("redis checkpoint: decode %s: %w", threadID, err)
	}
	return messages, nil
}

// Put stores the thread's reduced conversation, replacing any previous
// checkpoint.
func (s *Saver) Put(ctx context.Context, threadID string, messages []model.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("redis checkpoint: encode %s: %w", threadID, err)
	}
	if err := s.client.Set(ctx, keyPrefix+threadID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis checkpoint: put %s: %w", threadID, err)
	}
	return nil
}

// DeleteThread removes the thread's checkpoint.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, keyPrefix+threadID).Err(); err != nil {
		return fmt.Errorf("redis checkpoint: delete %s: %w", threadID, err)
	}
	return nil
}
