// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Classifier Vocabulary
// =============================================================================

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// =============================================================================
// Vocabulary Types
// =============================================================================

// Vocabulary holds the keyword lists that drive the keyword-scoring side of
// the classifier: per-department keywords, the technology-term override
// list, query-type trigger lists, temporal markers, and stopwords.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Vocabulary struct {
	// Departments maps each department tag to its keyword list. Keys must
	// come from the fixed department vocabulary.
	Departments map[Department][]string `yaml:"departments"`

	// TechTerms force-include engineering in the target set when matched.
	TechTerms []string `yaml:"tech_terms"`

	// HRData triggers the hr_data query type.
	HRData []string `yaml:"hr_data"`

	// Policy triggers the document_search query type.
	Policy []string `yaml:"policy"`

	// Comparison triggers the comparison query type.
	Comparison []string `yaml:"comparison"`

	// Aggregation sets the aggregation flag without changing the query type.
	Aggregation []string `yaml:"aggregation"`

	// Quarterly and Annual mark the temporal scope of a query.
	Quarterly []string `yaml:"quarterly"`
	Annual    []string `yaml:"annual"`

	// Stopwords are removed when building the lemmatized query form.
	Stopwords []string `yaml:"stopwords"`
}

// stopwordSet returns the stopword list as a lookup set.
func (v *Vocabulary) stopwordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(v.Stopwords))
	for _, w := range v.Stopwords {
		set[w] = struct{}{}
	}
	return set
}

// validate checks that every department key is from the fixed vocabulary
// and that each department has at least one keyword.
func (v *Vocabulary) validate() error {
	if len(v.Departments) == 0 {
		return fmt.Errorf("vocabulary has no department keyword lists")
	}
	for dept, words := range v.Departments {
		if !dept.Valid() {
			return fmt.Errorf("unknown department %q in vocabulary", dept)
		}
		if len(words) == 0 {
			return fmt.Errorf("department %q has an empty keyword list", dept)
		}
	}
	return nil
}

// =============================================================================
// Singleton Vocabulary
// =============================================================================

var (
	vocabMu      sync.RWMutex
	cachedVocab  *Vocabulary
	vocabLoadErr error
)

// GetVocabulary returns the cached classifier vocabulary.
//
// Description:
//
//	Loads the vocabulary on first call and caches it for subsequent calls.
//	The embedded defaults are used unless CLASSIFIER_RULES_PATH points to
//	an override YAML file. A broken override is an error rather than a
//	silent fall-through: misclassification caused by a half-loaded
//	vocabulary is harder to debug than a failed startup.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//
// Outputs:
//
//	*Vocabulary - The loaded vocabulary. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use.
func GetVocabulary(ctx context.Context) (*Vocabulary, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetVocabulary: ctx must not be nil")
	}

	vocabMu.RLock()
	if cachedVocab != nil || vocabLoadErr != nil {
		v, err := cachedVocab, vocabLoadErr
		vocabMu.RUnlock()
		return v, err
	}
	vocabMu.RUnlock()

	vocabMu.Lock()
	defer vocabMu.Unlock()
	if cachedVocab != nil || vocabLoadErr != nil {
		return cachedVocab, vocabLoadErr
	}

	cachedVocab, vocabLoadErr = loadVocabulary()
	return cachedVocab, vocabLoadErr
}

// loadVocabulary parses the override file when configured, otherwise the
// embedded defaults.
func loadVocabulary() (*Vocabulary, error) {
	raw := defaultKeywordsYAML
	source := "embedded"

	if path := os.Getenv("CLASSIFIER_RULES_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading classifier rules %s: %w", path, err)
		}
		raw = data
		source = path
	}

	var vocab Vocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("parsing classifier rules (%s): %w", source, err)
	}
	if err := vocab.validate(); err != nil {
		return nil, fmt.Errorf("validating classifier rules (%s): %w", source, err)
	}

	slog.Info("Classifier vocabulary loaded",
		slog.String("source", source),
		slog.Int("departments", len(vocab.Departments)),
		slog.Int("stopwords", len(vocab.Stopwords)),
	)
	return &vocab, nil
}

// ResetVocabularyForTest clears the cached vocabulary so tests can exercise
// loading with a modified environment.
func ResetVocabularyForTest() {
	vocabMu.Lock()
	defer vocabMu.Unlock()
	cachedVocab = nil
	vocabLoadErr = nil
}
