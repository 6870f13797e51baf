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
)

// =============================================================================
// Embedding Service Client
// =============================================================================

// Embedder turns query text into a vector via an Ollama-compatible
// embedding endpoint. Plain net/http against the REST API; no SDK.
//
// Thread Safety: Safe for concurrent use.
type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
}

const (
	defaultEmbeddingURL   = "http://localhost:11434"
	defaultEmbeddingModel = "nomic-embed-text"
)

// NewEmbedder builds an embedding client from EMBEDDING_SERVICE_URL and
// EMBEDDING_MODEL, with localhost Ollama defaults.
func NewEmbedder() *Embedder {
	baseURL := os.Getenv("EMBEDDING_SERVICE_URL")
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("retrieval: marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("retrieval: building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: calling embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("retrieval: embedding service returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("retrieval: decoding embed response: %w", err)
	}
	if len(decoded.Embeddings) == 0 || len(decoded.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("retrieval: embedding service returned no vector")
	}
	return decoded.Embeddings[0], nil
}
