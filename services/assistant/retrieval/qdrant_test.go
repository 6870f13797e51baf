// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finsolve/insight/services/assistant/query"
)

func TestEmbedderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Input != "leave policy" {
			t.Errorf("got input %q", req.Input)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer server.Close()

	t.Setenv("EMBEDDING_SERVICE_URL", server.URL)
	e := NewEmbedder()

	vec, err := e.Embed(context.Background(), "leave policy")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestEmbedderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	t.Setenv("EMBEDDING_SERVICE_URL", server.URL)
	e := NewEmbedder()

	if _, err := e.Embed(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestQdrantSearchFilter(t *testing.T) {
	embedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5, 0.5}}})
	}))
	defer embedServer.Close()

	var captured qdrantSearchRequest
	qdrantServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/documents/points/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		resp := qdrantSearchResponse{}
		resp.Result = make([]struct {
			Payload struct {
				Content    string `json:"content"`
				Department string `json:"department"`
				Source     string `json:"source"`
				Filename   string `json:"filename"`
				DocumentID string `json:"document_id"`
			} `json:"payload"`
		}, 1)
		resp.Result[0].Payload.Content = "policy text"
		resp.Result[0].Payload.Department = "general"
		resp.Result[0].Payload.Source = "general/policy.md"
		resp.Result[0].Payload.Filename = "policy.md"
		json.NewEncoder(w).Encode(resp)
	}))
	defer qdrantServer.Close()

	t.Setenv("EMBEDDING_SERVICE_URL", embedServer.URL)
	t.Setenv("QDRANT_URL", qdrantServer.URL)
	idx := NewQdrantIndex(NewEmbedder())

	docs, err := idx.Search(context.Background(), "leave policy", 4, []query.Department{query.DeptGeneral})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "general/policy.md" {
		t.Fatalf("unexpected docs: %+v", docs)
	}

	if captured.Limit != 4 {
		t.Errorf("limit: got %d", captured.Limit)
	}
	if !captured.WithPayload {
		t.Error("with_payload must be set")
	}
	if captured.Filter == nil || len(captured.Filter.Must) != 1 {
		t.Fatalf("expected one filter condition, got %+v", captured.Filter)
	}
	cond := captured.Filter.Must[0]
	if cond.Key != "department" || len(cond.Match.Any) != 1 || cond.Match.Any[0] != "general" {
		t.Errorf("unexpected filter condition: %+v", cond)
	}
}

func TestQdrantSearchUnrestricted(t *testing.T) {
	embedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5}}})
	}))
	defer embedServer.Close()

	var captured qdrantSearchRequest
	qdrantServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(qdrantSearchResponse{})
	}))
	defer qdrantServer.Close()

	t.Setenv("EMBEDDING_SERVICE_URL", embedServer.URL)
	t.Setenv("QDRANT_URL", qdrantServer.URL)
	idx := NewQdrantIndex(NewEmbedder())

	if _, err := idx.Search(context.Background(), "anything", 4, nil); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if captured.Filter != nil {
		t.Errorf("unrestricted search must omit the filter, got %+v", captured.Filter)
	}
}
