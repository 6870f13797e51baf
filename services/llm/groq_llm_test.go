// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, baseURL string) *GroqClient {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "gsk_testkeytestkeytestkey123")
	t.Setenv("GROQ_BASE_URL", baseURL)
	client, err := NewGroqClient()
	if err != nil {
		t.Fatalf("NewGroqClient failed: %v", err)
	}
	return client
}

func sseBody(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestChatStreamDeliversTokensInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer gsk_") {
			t.Errorf("missing bearer auth, got %q", auth)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("The ", "leave ", "policy"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var tokens []string
	var done bool
	err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "leave policy?"}}, GenerationParams{}, func(ev StreamEvent) error {
		switch ev.Type {
		case StreamEventToken:
			if done {
				t.Error("token after done")
			}
			tokens = append(tokens, ev.Content)
		case StreamEventDone:
			done = true
		case StreamEventError:
			t.Errorf("unexpected error event: %v", ev.Err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if !done {
		t.Error("stream must end with a done event")
	}
	if got := strings.Join(tokens, ""); got != "The leave policy" {
		t.Errorf("got %q", got)
	}
}

func TestChatStreamBackendErrorBecomesErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var errorEvents, doneEvents int
	err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{}, func(ev StreamEvent) error {
		switch ev.Type {
		case StreamEventError:
			errorEvents++
		case StreamEventDone:
			doneEvents++
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if errorEvents != 1 {
		t.Errorf("expected exactly one error event, got %d", errorEvents)
	}
	if doneEvents != 0 {
		t.Errorf("client must not emit done after a failed request, got %d", doneEvents)
	}
}

func TestChatStreamCallbackAbortStopsReading(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("one", "two", "three"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	abort := errors.New("client disconnected")
	var seen int
	err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{}, func(ev StreamEvent) error {
		if ev.Type == StreamEventToken {
			seen++
			return abort
		}
		return nil
	})
	if err == nil || !errors.Is(err, abort) {
		t.Fatalf("expected callback abort error, got %v", err)
	}
	if seen != 1 {
		t.Errorf("reading should stop after the abort, saw %d tokens", seen)
	}
}

func TestChatStreamSkipsMalformedChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, sseBody("recovered"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var tokens []string
	err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{}, func(ev StreamEvent) error {
		if ev.Type == StreamEventToken {
			tokens = append(tokens, ev.Content)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "recovered" {
		t.Errorf("got tokens %v", tokens)
	}
}

func TestNewGroqClientRequiresKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	if _, err := NewGroqClient(); err == nil {
		t.Fatal("expected error without GROQ_API_KEY")
	}
}
