// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command insight starts the FinSolve Insight API server.
//
// Insight answers questions over department documents and the HR employee
// dataset, scoped to the caller's role:
//   - Keyword/NLP query classification with graceful degradation
//   - Role-scoped multi-probe document retrieval with fallback
//   - Direct tabular answers for HR questions
//   - Streamed markdown answers with source citations (ND-JSON)
//
// Usage:
//
//	go run ./cmd/insight
//	go run ./cmd/insight -port 9090
//
// Required environment:
//
//	GROQ_API_KEY=gsk_...
//
// Optional environment:
//
//	GROQ_MODEL, GROQ_BASE_URL
//	EMBEDDING_SERVICE_URL, EMBEDDING_MODEL
//	QDRANT_URL, QDRANT_COLLECTION, QDRANT_API_KEY
//	HR_DATA_PATH (default resources/data/hr/hr_data.csv)
//	HISTORY_DB_DIR (default resources/database/history)
//	PERMISSIONS_PATH, CLASSIFIER_RULES_PATH
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/healthz
//
//	# Ask a question (streams ND-JSON events)
//	curl -N -X POST http://localhost:8080/api/v1/chat/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "What is the leave policy?", "role": "employee"}'
//
//	# Inspect a role's permitted departments
//	curl http://localhost:8080/api/v1/permissions/hr_specialist
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/finsolve/insight/services/assistant"
	"github.com/finsolve/insight/services/assistant/access"
	"github.com/finsolve/insight/services/assistant/history"
	"github.com/finsolve/insight/services/assistant/hr"
	"github.com/finsolve/insight/services/assistant/query"
	"github.com/finsolve/insight/services/assistant/retrieval"
	"github.com/finsolve/insight/services/llm"
)

const (
	defaultHRDataPath   = "resources/data/hr/hr_data.csv"
	defaultHistoryDBDir = "resources/database/history"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	// Best effort: a missing .env file is the normal production case.
	_ = godotenv.Load()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// headers through every handler and collaborator call.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx := context.Background()

	vocab, err := query.GetVocabulary(ctx)
	if err != nil {
		slog.Error("Failed to load classifier vocabulary", slog.String("error", err.Error()))
		os.Exit(1)
	}
	perms, err := access.LoadStore()
	if err != nil {
		slog.Error("Failed to load role permissions", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The linguistic backend is optional: without it the classifier
	// degrades to keyword-only intent and single-variant expansion.
	var annotator query.Annotator
	if prose, err := query.NewProseAnnotator(); err != nil {
		slog.Warn("Linguistic model unavailable, degrading to keyword-only classification",
			slog.String("error", err.Error()))
		annotator = query.NullAnnotator{}
	} else {
		annotator = prose
	}
	processor := query.NewProcessor(vocab, annotator)

	// A missing HR dataset is survivable; HR queries then report data
	// unavailable instead of failing the whole service.
	hrPath := os.Getenv("HR_DATA_PATH")
	if hrPath == "" {
		hrPath = defaultHRDataPath
	}
	var dataset *hr.Dataset
	if ds, err := hr.LoadDataset(hrPath); err != nil {
		slog.Warn("HR dataset unavailable", slog.String("path", hrPath), slog.String("error", err.Error()))
	} else {
		dataset = ds
	}
	resolver := hr.NewResolver(dataset, perms)

	retriever := retrieval.NewOrchestrator(retrieval.NewQdrantIndex(retrieval.NewEmbedder()))

	generator, err := llm.NewGroqClient()
	if err != nil {
		slog.Error("Failed to initialize generation backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	historyDir := os.Getenv("HISTORY_DB_DIR")
	if historyDir == "" {
		historyDir = defaultHistoryDBDir
	}
	var convStore *history.Store
	if store, err := history.OpenStore(historyDir); err != nil {
		slog.Warn("Conversation history unavailable", slog.String("error", err.Error()))
	} else {
		convStore = store
	}

	controller := assistant.NewController(processor, perms, resolver, retriever, generator)
	svc := assistant.NewService(controller, perms, convStore)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("finsolve-insight"))
	if *debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	assistant.RegisterRoutes(router, svc)

	printBanner(*port, annotator.Available(), dataset != nil, convStore != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Insight server")
		if convStore != nil {
			if err := convStore.Close(); err != nil {
				slog.Warn("Failed to close conversation store", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Insight server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// printBanner writes the startup summary to stdout.
func printBanner(port int, nlp, hrData, historyOn bool) {
	onOff := func(b bool) string {
		if b {
			return "enabled"
		}
		return "disabled"
	}
	fmt.Println("=========================================")
	fmt.Println("  FinSolve Insight")
	fmt.Println("=========================================")
	fmt.Printf("  Port:                %d\n", port)
	fmt.Printf("  Linguistic analysis: %s\n", onOff(nlp))
	fmt.Printf("  HR dataset:          %s\n", onOff(hrData))
	fmt.Printf("  Conversation store:  %s\n", onOff(historyOn))
	fmt.Println("=========================================")
}
