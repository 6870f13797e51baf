// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval finds the documents most relevant to a processed query
// within the caller's permitted departments. The similarity search itself
// is a black box behind the SearchIndex interface; this package owns scope
// computation, multi-probe search, deduplication, and the fallback ladder.
package retrieval

// Document is one retrieved document span with its metadata.
type Document struct {
	// Content is the retrieved text span.
	Content string

	// Department is the department tag the document is filed under.
	Department string

	// Source is the path-like identifier used as the dedup key.
	Source string

	// Filename is the display name for citations; may be empty.
	Filename string

	// DocumentID is an alternate identifier used when Source is empty.
	DocumentID string
}

// dedupPrefixLen bounds the content-prefix fallback identity.
const dedupPrefixLen = 120

// DedupKey returns the document's identity for deduplication: the source
// identifier, falling back to the document ID, then to a content prefix
// when no identifier exists at all.
func (d Document) DedupKey() string {
	if d.Source != "" {
		return d.Source
	}
	if d.DocumentID != "" {
		return d.DocumentID
	}
	if len(d.Content) > dedupPrefixLen {
		return d.Content[:dedupPrefixLen]
	}
	return d.Content
}

// DisplayName returns the citation name: the filename when present,
// otherwise the source identifier.
func (d Document) DisplayName() string {
	if d.Filename != "" {
		return d.Filename
	}
	return d.Source
}
