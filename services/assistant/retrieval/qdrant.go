// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/finsolve/insight/services/assistant/query"
)

// =============================================================================
// Qdrant Search Index
// =============================================================================

// QdrantIndex implements SearchIndex against a Qdrant collection over its
// REST API, embedding queries through an Embedder first. Plain net/http;
// no SDK.
//
// Thread Safety: Safe for concurrent use.
type QdrantIndex struct {
	baseURL    string
	collection string
	embedder   *Embedder
	client     *http.Client
}

const (
	defaultQdrantURL        = "http://localhost:6333"
	defaultQdrantCollection = "documents"
)

// NewQdrantIndex builds a search index client from QDRANT_URL and
// QDRANT_COLLECTION, with localhost defaults.
func NewQdrantIndex(embedder *Embedder) *QdrantIndex {
	baseURL := os.Getenv("QDRANT_URL")
	if baseURL == "" {
		baseURL = defaultQdrantURL
	}
	collection := os.Getenv("QDRANT_COLLECTION")
	if collection == "" {
		collection = defaultQdrantCollection
	}
	return &QdrantIndex{
		baseURL:    baseURL,
		collection: collection,
		embedder:   embedder,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Qdrant REST wire types, limited to the fields this service uses.

type qdrantSearchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantMatch struct {
	Any []string `json:"any"`
}

type qdrantSearchResponse struct {
	Result []struct {
		Payload struct {
			Content    string `json:"content"`
			Department string `json:"department"`
			Source     string `json:"source"`
			Filename   string `json:"filename"`
			DocumentID string `json:"document_id"`
		} `json:"payload"`
	} `json:"result"`
}

// Search embeds text and queries the collection, optionally restricted to
// a department set via a payload match-any filter.
func (q *QdrantIndex) Search(ctx context.Context, text string, k int, departments []query.Department) ([]Document, error) {
	vector, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	searchReq := qdrantSearchRequest{
		Vector:      vector,
		Limit:       k,
		WithPayload: true,
	}
	if len(departments) > 0 {
		searchReq.Filter = &qdrantFilter{
			Must: []qdrantCondition{{
				Key:   "department",
				Match: qdrantMatch{Any: query.DepartmentStrings(departments)},
			}},
		}
	}

	payload, err := json.Marshal(searchReq)
	if err != nil {
		return nil, fmt.Errorf("retrieval: marshaling search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, q.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("retrieval: building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		req.Header.Set("api-key", key)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: calling vector index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("retrieval: vector index returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded qdrantSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("retrieval: decoding search response: %w", err)
	}

	docs := make([]Document, 0, len(decoded.Result))
	for _, hit := range decoded.Result {
		docs = append(docs, Document{
			Content:    hit.Payload.Content,
			Department: hit.Payload.Department,
			Source:     hit.Payload.Source,
			Filename:   hit.Payload.Filename,
			DocumentID: hit.Payload.DocumentID,
		})
	}
	return docs, nil
}
