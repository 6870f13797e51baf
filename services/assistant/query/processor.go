// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package query turns a raw user question into a ProcessedQuery: sanitized
// text, extracted entities, a keyword-scored Intent, and up to three search
// variants. The linguistic backend is pluggable; with a NullAnnotator the
// processor degrades to keyword-only classification rather than failing.
package query

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("services/assistant/query")

// =============================================================================
// Processed Query Types
// =============================================================================

// Entities groups the named entities extracted from a query. Every slice is
// non-nil after processing; categories the backend cannot produce stay empty.
type Entities struct {
	Persons   []string `json:"persons"`
	Orgs      []string `json:"orgs"`
	Dates     []string `json:"dates"`
	Money     []string `json:"money"`
	Numbers   []string `json:"numbers"`
	Locations []string `json:"locations"`
}

// emptyEntities returns an Entities value with all categories allocated.
func emptyEntities() Entities {
	return Entities{
		Persons:   []string{},
		Orgs:      []string{},
		Dates:     []string{},
		Money:     []string{},
		Numbers:   []string{},
		Locations: []string{},
	}
}

// ProcessedQuery is the full analysis of one user question.
type ProcessedQuery struct {
	// OriginalText is the question exactly as received.
	OriginalText string

	// CleanText is the sanitized form: collapsed whitespace, special
	// characters stripped.
	CleanText string

	// LemmatizedText is the stopword-free lemma form, empty when the
	// linguistic backend is unavailable.
	LemmatizedText string

	// Variants are the search probes derived from the query, ordered most
	// to least literal. At least one, at most three.
	Variants []string

	// Entities holds the extracted named entities.
	Entities Entities

	// Intent is the keyword-scored classification.
	Intent Intent
}

// =============================================================================
// Sanitization
// =============================================================================

// specialChars matches everything outside letters, digits, underscores,
// whitespace, and the small punctuation set queries legitimately carry.
// Unicode classes, not \w: names like "José" must survive sanitization so
// entity extraction can still match them.
var specialChars = regexp.MustCompile(`[^\p{L}\p{N}_\s?.,-]`)

// Sanitize normalizes raw query text: whitespace runs collapse to single
// spaces, characters outside the allowed set are removed, and the result is
// trimmed. Sanitize never fails; hostile input degrades to a short or empty
// string.
func Sanitize(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	cleaned := specialChars.ReplaceAllString(collapsed, "")
	return strings.TrimSpace(cleaned)
}

// =============================================================================
// Processor
// =============================================================================

// Processor analyzes user questions. Build one at startup with NewProcessor
// and share it; it holds only immutable state.
//
// Thread Safety: Safe for concurrent use.
type Processor struct {
	vocab     *Vocabulary
	annotator Annotator
	stopwords map[string]struct{}
}

// NewProcessor builds a query processor from a loaded vocabulary and a
// linguistic backend. Pass NullAnnotator{} when no model is available.
func NewProcessor(vocab *Vocabulary, annotator Annotator) *Processor {
	if annotator == nil {
		annotator = NullAnnotator{}
	}
	return &Processor{
		vocab:     vocab,
		annotator: annotator,
		stopwords: vocab.stopwordSet(),
	}
}

// Process analyzes one question end to end.
//
// Description:
//
//	Sanitizes the text, runs the linguistic backend when available,
//	classifies intent from keyword evidence, and derives the search
//	variants. Processing is total: it always returns a usable
//	ProcessedQuery, degrading per capability rather than erroring.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	text - The raw user question.
//
// Outputs:
//
//	ProcessedQuery - The analysis. Variants has at least one element
//	whenever CleanText is non-empty.
//
// Thread Safety: Safe for concurrent use.
func (p *Processor) Process(ctx context.Context, text string) ProcessedQuery {
	_, span := tracer.Start(ctx, "query.Process")
	defer span.End()

	clean := Sanitize(text)

	pq := ProcessedQuery{
		OriginalText: text,
		CleanText:    clean,
		Entities:     emptyEntities(),
	}

	full := p.annotator.Available()
	var annotation Annotation
	if full {
		annotation = p.annotator.Annotate(clean)
		pq.Entities = normalizeEntities(annotation.Entities)
		pq.LemmatizedText = p.lemmatize(annotation.Lemmas)
	}

	pq.Intent = detectIntent(p.vocab, clean, full)
	pq.Variants = expandVariants(clean, pq.LemmatizedText, annotation.NounPhrases)

	span.SetAttributes(
		attribute.String("query.type", pq.Intent.QueryType.String()),
		attribute.Int("query.departments", len(pq.Intent.TargetDepartments)),
		attribute.Float64("query.confidence", pq.Intent.Confidence),
		attribute.Int("query.variants", len(pq.Variants)),
		attribute.Bool("query.full_annotation", full),
	)
	slog.Debug("Query processed",
		slog.String("query_type", pq.Intent.QueryType.String()),
		slog.Any("departments", DepartmentStrings(pq.Intent.TargetDepartments)),
		slog.Float64("confidence", pq.Intent.Confidence),
		slog.Int("variants", len(pq.Variants)),
	)

	return pq
}

// lemmatize joins the backend's lemmas with stopwords removed.
func (p *Processor) lemmatize(lemmas []string) string {
	kept := make([]string, 0, len(lemmas))
	for _, lemma := range lemmas {
		if _, stop := p.stopwords[lemma]; stop {
			continue
		}
		kept = append(kept, lemma)
	}
	return strings.Join(kept, " ")
}

// normalizeEntities replaces nil category slices with empty ones so
// downstream code and JSON encoding see a uniform shape.
func normalizeEntities(e Entities) Entities {
	if e.Persons == nil {
		e.Persons = []string{}
	}
	if e.Orgs == nil {
		e.Orgs = []string{}
	}
	if e.Dates == nil {
		e.Dates = []string{}
	}
	if e.Money == nil {
		e.Money = []string{}
	}
	if e.Numbers == nil {
		e.Numbers = []string{}
	}
	if e.Locations == nil {
		e.Locations = []string{}
	}
	return e
}
