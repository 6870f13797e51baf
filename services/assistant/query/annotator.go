// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

// Annotator is the linguistic capability backend of the query processor.
//
// Description:
//
//	The processor never inspects which implementation it holds; it only
//	asks whether the backend is Available and, if so, requests an
//	Annotation. A processor built with a NullAnnotator degrades to
//	keyword-only classification and single-variant expansion instead of
//	failing.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Annotator interface {
	// Available reports whether the backend can annotate text. A processor
	// treats false the same as holding a NullAnnotator.
	Available() bool

	// Annotate runs tokenization, tagging, and entity extraction over the
	// sanitized query text. Called only when Available returns true.
	Annotate(text string) Annotation
}

// Annotation is the linguistic evidence extracted from one query.
type Annotation struct {
	// Entities holds the extracted named entities by category.
	Entities Entities

	// Lemmas are the lowercased non-punctuation tokens in order. Stopword
	// filtering happens in the processor, which owns the vocabulary.
	Lemmas []string

	// NounPhrases are contiguous noun-phrase spans, in order of appearance.
	NounPhrases []string
}

// NullAnnotator is the degraded backend used when no linguistic model can
// be loaded at startup. It reports unavailable and annotates nothing.
type NullAnnotator struct{}

// Available always reports false.
func (NullAnnotator) Available() bool { return false }

// Annotate returns an empty annotation. Never called by the processor, but
// kept total so the type satisfies Annotator without panics.
func (NullAnnotator) Annotate(string) Annotation { return Annotation{} }
