//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package openai provides the OpenAI embedder implementation.
package openai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/careflow-ai/careflow/knowledge/embedder"
	"github.com/careflow-ai/careflow/log"
)

// Verify that Embedder implements the embedder.Embedder interface.
var _ embedder.Embedder = (*Embedder)(nil)

const (
	// DefaultModel is the default OpenAI embedding model.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions is the vector dimension the retrieval tables were
	// built with.
	DefaultDimensions = 768

	// Model prefix for text-embedding-3 series, which support custom
	// dimensions.
	textEmbedding3Prefix = "text-embedding-3"
)

// Embedder implements embedder.Embedder on the OpenAI embeddings API.
// The client is constructed lazily on first use.
type Embedder struct {
	clientOnce sync.Once
	client     openai.Client

	model          string
	dimensions     int
	apiKey         string
	baseURL        string
	requestOptions []option.RequestOption
}

// Option configures the Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

// WithDimensions sets the embedding dimension. Only text-embedding-3 and
// later models honor it.
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) {
		e.dimensions = dimensions
	}
}

// WithAPIKey sets the API key; by default the SDK reads OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(e *Embedder) {
		e.apiKey = apiKey
	}
}

// WithBaseURL sets the base URL for OpenAI-compatible endpoints.
func WithBaseURL(baseURL string) Option {
	return func(e *Embedder) {
		e.baseURL = baseURL
	}
}

// WithRequestOptions appends extra request options for the OpenAI client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(e *Embedder) {
		e.requestOptions = append(e.requestOptions, opts...)
	}
}

// New creates an Embedder. The underlying HTTP client is not built until
// the first GetEmbedding call.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		model:      DefaultModel,
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) lazyClient() openai.Client {
	e.clientOnce.Do(func() {
		var clientOpts []option.RequestOption
		if e.apiKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(e.apiKey))
		}
		if e.baseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(e.baseURL))
		}
		clientOpts = append(clientOpts, e.requestOptions...)
		e.client = openai.NewClient(clientOpts...)
	})
	return e.client
}

// GetEmbedding implements the embedder.Embedder interface.
func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embedder: text cannot be empty")
	}

	request := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.model,
	}
	if strings.HasPrefix(e.model, textEmbedding3Prefix) {
		request.Dimensions = openai.Int(int64(e.dimensions))
	}

	client := e.lazyClient()
	response, err := client.Embeddings.New(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("embedder: create embedding: %w", err)
	}
	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		log.Warnf("embedder: received empty embedding response")
		return []float64{}, nil
	}
	return response.Data[0].Embedding, nil
}

// GetDimensions implements the embedder.Embedder interface.
func (e *Embedder) GetDimensions() int {
	return e.dimensions
}
