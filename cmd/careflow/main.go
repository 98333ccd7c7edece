//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Command careflow runs the conversational flow server: flows compiled
// from YAML, health tools over storage, exemplar retrieval and the HTTP
// chat surface.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/careflow-ai/careflow/flow"
	"github.com/careflow-ai/careflow/graph"
	redischeckpoint "github.com/careflow-ai/careflow/graph/checkpoint/redis"
	"github.com/careflow-ai/careflow/knowledge"
	openaiembedder "github.com/careflow-ai/careflow/knowledge/embedder/openai"
	"github.com/careflow-ai/careflow/knowledge/vectorstore/pgvector"
	"github.com/careflow-ai/careflow/log"
	_ "github.com/careflow-ai/careflow/model/openai" // registers the openai provider
	"github.com/careflow-ai/careflow/orchestrator"
	"github.com/careflow-ai/careflow/prompt"
	"github.com/careflow-ai/careflow/server"
	"github.com/careflow-ai/careflow/session"
	"github.com/careflow-ai/careflow/storage"
	"github.com/careflow-ai/careflow/storage/inmemory"
	"github.com/careflow-ai/careflow/storage/postgres"
	"github.com/careflow-ai/careflow/telemetry"
	"github.com/careflow-ai/careflow/tool"
	"github.com/careflow-ai/careflow/tool/health"
)

func main() {
	var (
		listenAddr = flag.String("addr", envOr("CAREFLOW_LISTEN_ADDR", ":8080"), "listen address")
		flowsDir   = flag.String("flows", envOr("CAREFLOW_FLOWS_DIR", "config/flows"), "flows root directory")
		rulesDir   = flag.String("rules", envOr("CAREFLOW_RULES_DIR", "config/flow_rule"), "shared prompt fragment directory")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "careflow",
		Endpoint:    os.Getenv("CAREFLOW_OTLP_ENDPOINT"),
	})
	if err != nil {
		log.Fatalf("telemetry setup: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warnf("telemetry shutdown: %v", err)
		}
	}()

	store := openStore(ctx)
	defer store.Close()
	health.RegisterAll(tool.Default(), store)

	prompts := prompt.NewManager(*rulesDir)
	builderOpts := []flow.BuilderOption{}
	if searcher := openSearcher(); searcher != nil {
		defer searcher.Release()
		builderOpts = append(builderOpts, flow.WithSearcher(searcher))
	}
	flows, err := flow.NewManager(*flowsDir, flow.NewBuilder(prompts, tool.Default(), builderOpts...))
	if err != nil {
		log.Fatalf("load flows: %v", err)
	}

	saver := openSaver(ctx)
	contexts := session.NewContextManager()
	orch := orchestrator.New(flows, contexts, saver)

	srv := server.New(orch, contexts,
		server.WithUsers(store.Users()),
		server.WithFlows(flows))
	if err := srv.ListenAndServe(ctx, *listenAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// openStore connects to Postgres when configured, otherwise serves from
// memory (dev mode).
func openStore(ctx context.Context) storage.Store {
	dsn := os.Getenv("CAREFLOW_DATABASE_URL")
	if dsn == "" {
		log.Warnf("CAREFLOW_DATABASE_URL not set, using in-memory storage")
		return inmemory.New()
	}
	store, err := postgres.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect storage: %v", err)
	}
	return store
}

// openSearcher builds the exemplar retrieval stack when a vector database
// is configured.
func openSearcher() *knowledge.Searcher {
	dsn := os.Getenv("CAREFLOW_VECTOR_DATABASE_URL")
	if dsn == "" {
		log.Warnf("CAREFLOW_VECTOR_DATABASE_URL not set, retrieval nodes will use the empty fallback")
		return nil
	}
	store, err := pgvector.New(dsn)
	if err != nil {
		log.Fatalf("connect vector store: %v", err)
	}
	searcher, err := knowledge.NewSearcher(openaiembedder.New(), store)
	if err != nil {
		log.Fatalf("create searcher: %v", err)
	}
	return searcher
}

// openSaver uses redis-backed checkpoints when configured, in-memory
// otherwise.
func openSaver(ctx context.Context) graph.CheckpointSaver {
	addr := os.Getenv("CAREFLOW_REDIS_ADDR")
	if addr == "" {
		return graph.NewInMemorySaver()
	}
	saver, err := redischeckpoint.New(ctx, addr)
	if err != nil {
		log.Fatalf("connect redis checkpoints: %v", err)
	}
	return saver
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
