// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// =============================================================================
// Prose Annotator
// =============================================================================

// ProseAnnotator is the full linguistic backend, built on the prose NLP
// library. It provides tokenization, POS tagging, and named-entity
// recognition; date and money mentions are matched by pattern since the
// underlying model does not label them.
//
// Thread Safety: Stateless; safe for concurrent use.
type ProseAnnotator struct{}

// NewProseAnnotator builds the full backend, verifying once at startup that
// the model can actually annotate. Callers fall back to NullAnnotator{} on
// error.
func NewProseAnnotator() (*ProseAnnotator, error) {
	// Exercise the full pipeline once; model setup failures surface here
	// instead of on the first user query.
	if _, err := prose.NewDocument("startup probe"); err != nil {
		return nil, fmt.Errorf("query: initializing linguistic model: %w", err)
	}
	return &ProseAnnotator{}, nil
}

// Available always reports true.
func (*ProseAnnotator) Available() bool { return true }

var (
	// dateMention matches years, quarter references, and month names.
	dateMention = regexp.MustCompile(`(?i)\b(?:q[1-4](?:\s+20\d{2})?|20\d{2}|january|february|march|april|may|june|july|august|september|october|november|december)\b`)

	// moneyMention matches amounts with spelled-out currency units. Currency
	// symbols never reach annotation; sanitization strips them first.
	moneyMention = regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s?(?:rupees|dollars|inr|usd)\b`)
)

// Annotate runs the prose pipeline over sanitized query text.
//
// Description:
//
//	Extracts PERSON entities as persons and GPE entities as locations,
//	matches date and money mentions by pattern, collects cardinal-number
//	tokens, lowercases the non-punctuation tokens as lemmas, and groups
//	contiguous adjective/noun POS runs into noun phrases.
//
//	Annotation is total: if the model fails mid-query the annotation
//	degrades to empty rather than propagating an error, matching the
//	processor's degrade-don't-fail contract.
func (*ProseAnnotator) Annotate(text string) Annotation {
	doc, err := prose.NewDocument(text)
	if err != nil {
		slog.Warn("Linguistic annotation failed; degrading to keyword-only",
			slog.String("error", err.Error()),
		)
		return Annotation{}
	}

	ann := Annotation{}

	for _, ent := range doc.Entities() {
		switch ent.Label {
		case "PERSON":
			ann.Entities.Persons = append(ann.Entities.Persons, ent.Text)
		case "GPE":
			ann.Entities.Locations = append(ann.Entities.Locations, ent.Text)
		}
	}

	ann.Entities.Dates = dateMention.FindAllString(text, -1)
	ann.Entities.Money = moneyMention.FindAllString(text, -1)

	var phrase []string
	flush := func() {
		if len(phrase) > 0 {
			ann.NounPhrases = append(ann.NounPhrases, strings.Join(phrase, " "))
			phrase = phrase[:0]
		}
	}
	for _, tok := range doc.Tokens() {
		if isWordToken(tok.Text) {
			ann.Lemmas = append(ann.Lemmas, strings.ToLower(tok.Text))
		}
		if tok.Tag == "CD" {
			ann.Entities.Numbers = append(ann.Entities.Numbers, tok.Text)
		}
		// Noun phrases are maximal runs of adjectives followed by nouns.
		if strings.HasPrefix(tok.Tag, "JJ") || strings.HasPrefix(tok.Tag, "NN") {
			phrase = append(phrase, strings.ToLower(tok.Text))
		} else {
			flush()
		}
	}
	flush()

	return ann
}

// isWordToken reports whether a token carries at least one letter or digit,
// filtering out pure punctuation tokens.
func isWordToken(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
