// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant sequences the question-answering pipeline: normalize,
// classify, branch to the HR resolver or document retrieval, assemble
// generation context, and emit the response as an ordered event stream.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/finsolve/insight/services/assistant/access"
	"github.com/finsolve/insight/services/assistant/events"
	"github.com/finsolve/insight/services/assistant/hr"
	"github.com/finsolve/insight/services/assistant/query"
	"github.com/finsolve/insight/services/assistant/retrieval"
	"github.com/finsolve/insight/services/llm"
)

var tracer = otel.Tracer("services/assistant")

var (
	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insight",
		Subsystem: "chat",
		Name:      "stream_duration_seconds",
		Help:      "Wall time of full response streams",
		Buckets:   prometheus.DefBuckets,
	})

	streamBranchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "chat",
		Name:      "stream_branch_total",
		Help:      "Response streams by branch taken",
	}, []string{"branch"})
)

// maxContextDocs bounds how many retrieved documents feed the generation
// context and the citation list.
const maxContextDocs = 5

// generationTemperature keeps answers grounded in the supplied context.
var generationTemperature = float32(0.3)

// Request is one question to answer.
type Request struct {
	// Question is the raw user question. Must be non-empty.
	Question string

	// Role is the caller's role name, resolved against the permission
	// table.
	Role string

	// Prior carries earlier conversation turns passed back into
	// generation. May be empty.
	Prior []llm.Message
}

// Controller runs the pipeline for each request.
//
// Thread Safety: Safe for concurrent use; each Stream call is an
// independent pipeline over shared read-only collaborators.
type Controller struct {
	processor *query.Processor
	perms     *access.Store
	resolver  *hr.Resolver
	retriever *retrieval.Orchestrator
	generator llm.StreamClient
}

// NewController wires the pipeline's collaborators.
func NewController(processor *query.Processor, perms *access.Store, resolver *hr.Resolver, retriever *retrieval.Orchestrator, generator llm.StreamClient) *Controller {
	return &Controller{
		processor: processor,
		perms:     perms,
		resolver:  resolver,
		retriever: retriever,
		generator: generator,
	}
}

// Stream answers one question as an ordered event stream.
//
// Description:
//
//	Emits exactly one start event, the query-analysis notes, the branch
//	content (HR table or retrieval-grounded generation with citations),
//	and exactly one terminal done event. Internal failures become a
//	single error event followed by done; the only error returned is an
//	emit failure, which means the client is gone and the stream stops.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	req - The question, role, and prior turns.
//	emit - Receives events in order. Must not be nil.
//
// Outputs:
//
//	error - Non-nil only when emit failed.
//
// Thread Safety: Safe for concurrent use.
func (c *Controller) Stream(ctx context.Context, req Request, emit events.EmitFunc) error {
	ctx, span := tracer.Start(ctx, "assistant.Stream")
	defer span.End()
	start := time.Now()
	defer func() { streamDuration.Observe(time.Since(start).Seconds()) }()

	pq := c.processor.Process(ctx, req.Question)
	span.SetAttributes(
		attribute.String("chat.query_type", pq.Intent.QueryType.String()),
		attribute.String("chat.role", req.Role),
	)

	if err := emit(events.Start()); err != nil {
		return err
	}
	if err := c.emitAnalysis(pq, emit); err != nil {
		return err
	}

	if pq.Intent.QueryType == query.QueryHRData {
		streamBranchTotal.WithLabelValues("hr").Inc()
		return c.streamHR(ctx, req, pq, emit)
	}
	streamBranchTotal.WithLabelValues("document").Inc()
	return c.streamDocuments(ctx, req, pq, emit)
}

// emitAnalysis writes the informational query-analysis preamble. The notes
// are display only; nothing downstream reads them.
func (c *Controller) emitAnalysis(pq query.ProcessedQuery, emit events.EmitFunc) error {
	notes := []string{
		"## 🔍 Query Analysis\n\n",
		fmt.Sprintf("**Original Query:** %s\n\n", pq.OriginalText),
	}
	if len(pq.Intent.TargetDepartments) > 0 {
		notes = append(notes, fmt.Sprintf("**Detected Departments:** %s\n\n",
			strings.Join(query.DepartmentStrings(pq.Intent.TargetDepartments), ", ")))
	}
	if pq.Intent.QueryType != query.QueryUnknown {
		notes = append(notes, fmt.Sprintf("**Query Type:** %s\n\n", pq.Intent.QueryType.Title()))
	}
	if len(pq.Entities.Dates) > 0 {
		notes = append(notes, fmt.Sprintf("**Time Period:** %s\n\n", strings.Join(pq.Entities.Dates, ", ")))
	}
	notes = append(notes, "---\n\n")

	for _, note := range notes {
		if err := emit(events.Token(note)); err != nil {
			return err
		}
	}
	return nil
}

// streamHR answers through the tabular resolver. Retrieval is never
// invoked on this branch.
func (c *Controller) streamHR(ctx context.Context, req Request, pq query.ProcessedQuery, emit events.EmitFunc) error {
	if !c.perms.Allows(req.Role, query.DeptHR) {
		if err := emit(events.Token("❌ **Access Denied:** You don't have permission to access HR data.\n\n")); err != nil {
			return err
		}
		return emit(events.Done())
	}

	if err := emit(events.Token("🔍 **Querying HR Database...**\n\n")); err != nil {
		return err
	}

	status, table := c.resolver.Resolve(ctx, req.Role, pq)
	if err := emit(events.Token(status + "\n\n")); err != nil {
		return err
	}
	if table != nil {
		if err := emit(events.Token("### 📊 HR Data Results\n\n")); err != nil {
			return err
		}
		if err := emit(events.CSV("HR Data Results", table.Columns, table.Rows)); err != nil {
			return err
		}
	}
	return emit(events.Done())
}

// streamDocuments answers through retrieval-grounded generation.
func (c *Controller) streamDocuments(ctx context.Context, req Request, pq query.ProcessedQuery, emit events.EmitFunc) error {
	if err := emit(events.Token("🔍 **Searching documents...**\n\n")); err != nil {
		return err
	}

	allowed := c.perms.Permitted(req.Role)
	if len(allowed) == 0 {
		if err := emit(events.Token("⚠️ **No accessible departments found for this user.**\n\n")); err != nil {
			return err
		}
		return emit(events.Done())
	}

	docs, effective, usedFallback, err := c.retriever.Retrieve(ctx, pq, allowed)
	if err != nil {
		slog.Error("Retrieval failed", slog.String("error", err.Error()))
		if emitErr := emit(events.Error("Document search is currently unavailable.")); emitErr != nil {
			return emitErr
		}
		return emit(events.Done())
	}

	if len(effective) > 0 {
		if err := emit(events.Token(fmt.Sprintf("**Searching in:** %s\n\n",
			strings.Join(query.DepartmentStrings(effective), ", ")))); err != nil {
			return err
		}
	}
	if usedFallback {
		if err := emit(events.Token("ℹ️ **Expanded search scope due to limited initial matches.**\n\n")); err != nil {
			return err
		}
	}
	if len(docs) == 0 {
		if err := emit(events.Token("⚠️ **No relevant information found in accessible documents.**\n\n")); err != nil {
			return err
		}
		return emit(events.Done())
	}

	if err := emit(events.Token(fmt.Sprintf("📄 **Found %d relevant documents**\n\n", len(docs)))); err != nil {
		return err
	}

	contextDocs := docs
	if len(contextDocs) > maxContextDocs {
		contextDocs = contextDocs[:maxContextDocs]
	}

	if err := emit(events.Token("💬 **Generating response...**\n\n---\n\n")); err != nil {
		return err
	}

	prompt := buildPrompt(pq, req.Role, effective, buildContext(contextDocs))
	messages := make([]llm.Message, 0, len(req.Prior)+1)
	messages = append(messages, req.Prior...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	var genFailed bool
	err = c.generator.ChatStream(ctx, messages, llm.GenerationParams{Temperature: &generationTemperature}, func(ev llm.StreamEvent) error {
		switch ev.Type {
		case llm.StreamEventToken:
			return emit(events.Token(ev.Content))
		case llm.StreamEventError:
			genFailed = true
			return emit(events.Error(llm.SafeLogString(ev.Err.Error())))
		}
		return nil
	})
	if err != nil && !genFailed {
		// The backend failed before any error event reached the client.
		slog.Error("Generation failed", slog.String("error", llm.SafeLogString(err.Error())))
		genFailed = true
		if emitErr := emit(events.Error("Response generation failed.")); emitErr != nil {
			return emitErr
		}
	}

	if !genFailed {
		if err := c.emitSources(contextDocs, emit); err != nil {
			return err
		}
	}
	return emit(events.Done())
}

// buildContext assembles the generation context block, each document
// prefixed with its source and department.
func buildContext(docs []retrieval.Document) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = fmt.Sprintf("Source: %s\nDepartment: %s\n%s", doc.Source, doc.Department, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

// emitSources appends the citation list after generation.
func (c *Controller) emitSources(docs []retrieval.Document, emit events.EmitFunc) error {
	if err := emit(events.Token("\n\n---\n\n### 📚 Sources\n\n")); err != nil {
		return err
	}
	for i, doc := range docs {
		name := doc.DisplayName()
		if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
			name = name[idx+1:]
		}
		line := fmt.Sprintf("%d. **%s** (Department: %s)\n", i+1, name, doc.Department)
		if err := emit(events.Token(line)); err != nil {
			return err
		}
	}
	return nil
}
