// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	classifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "classifier",
		Name:      "queries_total",
		Help:      "Total classified queries by query type",
	}, []string{"query_type"})

	classifierConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insight",
		Subsystem: "classifier",
		Name:      "confidence",
		Help:      "Classification confidence distribution",
		Buckets:   []float64{0.0, 0.2, 0.4, 0.6, 0.7, 0.8, 1.0},
	})

	techOverrideTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "classifier",
		Name:      "tech_override_total",
		Help:      "Times the technology-term override force-included engineering",
	})
)

// =============================================================================
// Department Vocabulary
// =============================================================================

// Department is one of the fixed document/business categories used both for
// access control and for document partitioning.
type Department string

const (
	DeptFinance     Department = "finance"
	DeptMarketing   Department = "marketing"
	DeptHR          Department = "hr"
	DeptEngineering Department = "engineering"
	DeptGeneral     Department = "general"
)

// AllDepartments lists the fixed department vocabulary in scoring order.
// Iteration over this slice (never over a map) keeps target-department
// ordering deterministic.
var AllDepartments = []Department{
	DeptFinance,
	DeptMarketing,
	DeptHR,
	DeptEngineering,
	DeptGeneral,
}

// Valid reports whether d is a member of the fixed department vocabulary.
func (d Department) Valid() bool {
	switch d {
	case DeptFinance, DeptMarketing, DeptHR, DeptEngineering, DeptGeneral:
		return true
	}
	return false
}

// DepartmentStrings converts a department slice to its string form, mostly
// for log attributes and user-facing display.
func DepartmentStrings(depts []Department) []string {
	out := make([]string, len(depts))
	for i, d := range depts {
		out[i] = string(d)
	}
	return out
}

// =============================================================================
// Query Type and Temporal Scope
// =============================================================================

// QueryType is the closed set of query classifications. Dispatch on it with
// an exhaustive switch; there is deliberately no "other" escape hatch.
type QueryType int

const (
	// QueryUnknown means no classification rule fired.
	QueryUnknown QueryType = iota

	// QueryHRData routes the question to the tabular HR resolver.
	QueryHRData

	// QueryDocumentSearch routes the question to semantic document retrieval.
	QueryDocumentSearch

	// QueryComparison is a document search with comparison framing.
	QueryComparison
)

// String returns the wire/display name of the query type.
func (t QueryType) String() string {
	switch t {
	case QueryHRData:
		return "hr_data"
	case QueryDocumentSearch:
		return "document_search"
	case QueryComparison:
		return "comparison"
	default:
		return "unknown"
	}
}

// Title returns the human-readable form used in analysis notes
// ("hr_data" -> "Hr Data").
func (t QueryType) Title() string {
	words := strings.Split(t.String(), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// TemporalScope marks whether a query targets quarterly or annual data.
type TemporalScope int

const (
	ScopeNone TemporalScope = iota
	ScopeQuarterly
	ScopeAnnual
)

// String returns the display name of the temporal scope.
func (s TemporalScope) String() string {
	switch s {
	case ScopeQuarterly:
		return "quarterly"
	case ScopeAnnual:
		return "annual"
	default:
		return "none"
	}
}

// =============================================================================
// Intent
// =============================================================================

// Intent is the structured classification of a query's purpose, target
// scope, and aggregation/comparison character.
type Intent struct {
	// QueryType drives the branch dispatch in the controller.
	QueryType QueryType

	// TargetDepartments is the insertion-ordered, deduplicated set of
	// departments the query appears to be about. Always a subset of the
	// fixed department vocabulary.
	TargetDepartments []Department

	// IsComparison is set when comparison keywords matched.
	IsComparison bool

	// IsAggregation is set when aggregation keywords matched.
	IsAggregation bool

	// TemporalScope marks quarterly/annual framing.
	TemporalScope TemporalScope

	// Confidence is in [0, 1], derived from the maximum department keyword
	// score (max_score / 5, capped at 1).
	Confidence float64
}

// =============================================================================
// Keyword Classification
// =============================================================================

// departmentQualifyRatio is the fraction of the maximum department score a
// department must reach to qualify as a target.
const departmentQualifyRatio = 0.7

// confidenceScoreDivisor normalizes the raw keyword count into [0, 1].
const confidenceScoreDivisor = 5.0

// techOverrideConfidence is the confidence floor applied when technology
// terms match. The engineering keyword list is sparse, so tech queries
// systematically under-score without the floor.
const techOverrideConfidence = 0.7

// detectIntent classifies the query from keyword evidence alone.
//
// Description:
//
//	Scores each department by counting case-insensitive keyword substring
//	occurrences, qualifies departments within departmentQualifyRatio of the
//	maximum, applies the technology-term override, resolves the query type
//	by fixed-precedence rules (HR data, then policy, then comparison),
//	marks the aggregation flag independently, and marks the temporal
//	scope.
//
//	When full is false (no linguistic backend available at startup), the
//	type-precedence rules are skipped: the intent degrades to
//	document_search when department keywords matched, unknown otherwise,
//	with confidence pinned to 0.
//
// Inputs:
//
//	vocab - The classifier vocabulary. Must not be nil.
//	cleanText - The sanitized query text.
//	full - Whether the full rule set runs (linguistic backend present).
//
// Outputs:
//
//	Intent - The classification. TargetDepartments is never nil.
//
// Thread Safety: Stateless aside from metrics. Safe for concurrent use.
func detectIntent(vocab *Vocabulary, cleanText string, full bool) Intent {
	lower := strings.ToLower(cleanText)

	intent := Intent{
		QueryType:         QueryUnknown,
		TargetDepartments: []Department{},
	}

	// Department scoring.
	maxScore := 0
	scores := make(map[Department]int, len(AllDepartments))
	for _, dept := range AllDepartments {
		score := 0
		for _, kw := range vocab.Departments[dept] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > 0 {
			scores[dept] = score
			if score > maxScore {
				maxScore = score
			}
		}
	}
	if maxScore > 0 {
		threshold := departmentQualifyRatio * float64(maxScore)
		for _, dept := range AllDepartments {
			if s, ok := scores[dept]; ok && float64(s) >= threshold {
				intent.TargetDepartments = append(intent.TargetDepartments, dept)
			}
		}
		intent.Confidence = float64(maxScore) / confidenceScoreDivisor
		if intent.Confidence > 1.0 {
			intent.Confidence = 1.0
		}
	}

	// Technology-term override: engineering is force-included and the
	// confidence floored, regardless of keyword scoring.
	if containsAny(lower, vocab.TechTerms) {
		if !containsDepartment(intent.TargetDepartments, DeptEngineering) {
			intent.TargetDepartments = append(intent.TargetDepartments, DeptEngineering)
		}
		if intent.Confidence < techOverrideConfidence {
			intent.Confidence = techOverrideConfidence
		}
		techOverrideTotal.Inc()
	}

	if full {
		// Query-type precedence: first match wins, in this fixed order.
		switch {
		case containsAny(lower, vocab.HRData):
			intent.QueryType = QueryHRData
		case containsAny(lower, vocab.Policy):
			intent.QueryType = QueryDocumentSearch
		case containsAny(lower, vocab.Comparison):
			intent.IsComparison = true
			intent.QueryType = QueryComparison
		}

		// Aggregation marks the flag without claiming the query type, so
		// "average salary" is both hr_data and an aggregation.
		if containsAny(lower, vocab.Aggregation) {
			intent.IsAggregation = true
		}

		// Temporal scope.
		switch {
		case containsAny(lower, vocab.Quarterly):
			intent.TemporalScope = ScopeQuarterly
		case containsAny(lower, vocab.Annual):
			intent.TemporalScope = ScopeAnnual
		}
	} else {
		intent.Confidence = 0.0
	}

	// Default to document search when departments were detected but no
	// type rule fired.
	if intent.QueryType == QueryUnknown && len(intent.TargetDepartments) > 0 {
		intent.QueryType = QueryDocumentSearch
	}

	intent.TargetDepartments = dedupDepartments(intent.TargetDepartments)

	classifiedTotal.WithLabelValues(intent.QueryType.String()).Inc()
	classifierConfidence.Observe(intent.Confidence)

	return intent
}

// containsAny reports whether any keyword is a substring of lower.
func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// containsDepartment reports whether dept is present in depts.
func containsDepartment(depts []Department, dept Department) bool {
	for _, d := range depts {
		if d == dept {
			return true
		}
	}
	return false
}

// dedupDepartments removes duplicates preserving first-seen order.
func dedupDepartments(depts []Department) []Department {
	seen := make(map[Department]struct{}, len(depts))
	out := depts[:0]
	for _, d := range depts {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
