// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/finsolve/insight/services/assistant/query"
)

var tracer = otel.Tracer("services/assistant/retrieval")

var (
	probeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "retrieval",
		Name:      "probes_total",
		Help:      "Similarity search probes issued",
	})

	fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "retrieval",
		Name:      "fallback_total",
		Help:      "Fallback ladder steps taken",
	}, []string{"step"})

	dedupDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "retrieval",
		Name:      "dedup_dropped_total",
		Help:      "Duplicate documents dropped across probes",
	})
)

// probeK is the per-probe result count. Variants overlap heavily, so each
// probe stays small and dedup merges them.
const probeK = 4

// Orchestrator runs scoped multi-probe retrieval with a fallback ladder.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	index SearchIndex
}

// NewOrchestrator builds a retrieval orchestrator over a search index.
func NewOrchestrator(index SearchIndex) *Orchestrator {
	return &Orchestrator{index: index}
}

// Retrieve finds documents for a processed query within the caller's
// allowed departments.
//
// Description:
//
//	The initial scope is the intersection of the intent's target
//	departments with the allowed set, or the full allowed set when the
//	intersection is empty. Each query variant is probed in parallel and
//	results are deduplicated on first occurrence. When the deduplicated
//	set is empty the scope broadens: first to the full allowed set, then
//	to an unrestricted search. Department classification is heuristic;
//	narrow scoping must not silently starve the answer of matches.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	pq - The processed query supplying variants and target departments.
//	allowed - The caller's permitted departments.
//
// Outputs:
//
//	docs - Deduplicated documents, in probe order. May be empty.
//	effective - The departments reported as searched. Never broader than
//	allowed: the unrestricted final step still reports the allowed set.
//	usedFallback - True when any broadening step ran.
//	err - Non-nil only when a search probe itself failed.
//
// Thread Safety: Safe for concurrent use.
func (o *Orchestrator) Retrieve(ctx context.Context, pq query.ProcessedQuery, allowed []query.Department) (docs []Document, effective []query.Department, usedFallback bool, err error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	scope := intersect(pq.Intent.TargetDepartments, allowed)
	if len(scope) == 0 {
		scope = allowed
	}

	docs, err = o.multiProbe(ctx, pq.Variants, scope)
	if err != nil {
		return nil, nil, false, err
	}
	effective = scope

	if len(docs) == 0 {
		fallbackTotal.WithLabelValues("allowed").Inc()
		usedFallback = true
		effective = allowed
		docs, err = o.multiProbe(ctx, pq.Variants, allowed)
		if err != nil {
			return nil, nil, false, err
		}
	}
	if len(docs) == 0 {
		fallbackTotal.WithLabelValues("unrestricted").Inc()
		usedFallback = true
		// The search runs unrestricted, but the reported scope stays the
		// allowed set.
		effective = allowed
		docs, err = o.multiProbe(ctx, pq.Variants, nil)
		if err != nil {
			return nil, nil, false, err
		}
	}

	span.SetAttributes(
		attribute.Int("retrieval.documents", len(docs)),
		attribute.Int("retrieval.scope", len(effective)),
		attribute.Bool("retrieval.fallback", usedFallback),
	)
	slog.Debug("Retrieval complete",
		slog.Int("documents", len(docs)),
		slog.Any("effective_departments", query.DepartmentStrings(effective)),
		slog.Bool("used_fallback", usedFallback),
	)
	return docs, effective, usedFallback, nil
}

// multiProbe searches every variant in parallel and merges the results,
// deduplicated on first occurrence in variant order.
func (o *Orchestrator) multiProbe(ctx context.Context, variants []string, scope []query.Department) ([]Document, error) {
	results := make([][]Document, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			probeTotal.Inc()
			hits, err := o.index.Search(gctx, variant, probeK, scope)
			if err != nil {
				return err
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []Document
	for _, hits := range results {
		for _, doc := range hits {
			key := doc.DedupKey()
			if _, dup := seen[key]; dup {
				dedupDroppedTotal.Inc()
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, doc)
		}
	}
	return merged, nil
}

// intersect keeps the targets present in allowed, preserving target order.
func intersect(targets, allowed []query.Department) []query.Department {
	allowedSet := make(map[query.Department]struct{}, len(allowed))
	for _, d := range allowed {
		allowedSet[d] = struct{}{}
	}
	var out []query.Department
	for _, d := range targets {
		if _, ok := allowedSet[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
