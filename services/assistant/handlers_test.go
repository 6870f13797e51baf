// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/finsolve/insight/services/assistant/events"
	"github.com/finsolve/insight/services/assistant/history"
)

func newTestRouter(t *testing.T, f *fixture) (*gin.Engine, *history.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := history.OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := gin.New()
	RegisterRoutes(router, NewService(f.controller, f.perms, store))
	return router, store
}

func postQuery(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeStream(t *testing.T, body string) []events.Event {
	t.Helper()
	var out []events.Event
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line == "" {
			continue
		}
		var ev events.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q is not a JSON event: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestHandleQueryStreamsNDJSON(t *testing.T) {
	f := newFixture(t, nil, nil)
	router, _ := newTestRouter(t, f)

	w := postQuery(t, router, `{"question":"what is the average employee salary","role":"hr_specialist","user_id":"alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/x-ndjson") {
		t.Errorf("content type: got %q", ct)
	}
	if w.Header().Get("X-Conversation-ID") == "" {
		t.Error("expected a conversation ID header")
	}

	evs := decodeStream(t, w.Body.String())
	if evs[0].Type != events.TypeStart {
		t.Errorf("first event: got %s", evs[0].Type)
	}
	if evs[len(evs)-1].Type != events.TypeDone {
		t.Errorf("last event: got %s", evs[len(evs)-1].Type)
	}
}

func TestHandleQueryRecordsConversation(t *testing.T) {
	f := newFixture(t, nil, nil)
	router, store := newTestRouter(t, f)

	w := postQuery(t, router, `{"question":"what is the average employee salary","role":"hr_specialist","user_id":"alice"}`)
	convID := w.Header().Get("X-Conversation-ID")
	if convID == "" {
		t.Fatal("missing conversation ID")
	}

	conv, err := store.Get("alice", convID)
	if err != nil {
		t.Fatalf("conversation not stored: %v", err)
	}
	// One user turn plus the recorded assistant answer.
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[1].Role != "assistant" {
		t.Errorf("second message role: got %q", conv.Messages[1].Role)
	}
}

func TestHandleQueryResumesConversation(t *testing.T) {
	f := newFixture(t, nil, nil)
	router, store := newTestRouter(t, f)

	first := postQuery(t, router, `{"question":"what is the average employee salary","role":"hr_specialist","user_id":"alice"}`)
	convID := first.Header().Get("X-Conversation-ID")

	second := postQuery(t, router, `{"question":"and the median?","role":"hr_specialist","user_id":"alice","conversation_id":"`+convID+`"}`)
	if second.Header().Get("X-Conversation-ID") != convID {
		t.Error("resumed request should keep the conversation ID")
	}

	conv, err := store.Get("alice", convID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(conv.Messages) < 3 {
		t.Errorf("expected accumulated turns, got %d messages", len(conv.Messages))
	}
}

func TestHandleQueryRejectsMissingFields(t *testing.T) {
	f := newFixture(t, nil, nil)
	router, _ := newTestRouter(t, f)

	for _, body := range []string{
		`{}`,
		`{"question":"hello"}`,
		`{"role":"employee"}`,
		`{"question":"   ","role":"employee"}`,
		`not json`,
	} {
		w := postQuery(t, router, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: got status %d, want 400", body, w.Code)
		}
	}
}

func TestHandlePermissions(t *testing.T) {
	f := newFixture(t, nil, nil)
	router, _ := newTestRouter(t, f)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions/hr_specialist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp struct {
		Role        string   `json:"role"`
		Departments []string `json:"departments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Role != "hr_specialist" || len(resp.Departments) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestConversationEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)
	router, store := newTestRouter(t, f)

	conv, err := store.Create("alice", "What is the leave policy?")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// List.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?user_id=alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var listResp struct {
		Conversations []conversationSummary `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listResp.Conversations) != 1 || listResp.Conversations[0].ID != conv.ID {
		t.Errorf("unexpected listing: %+v", listResp.Conversations)
	}

	// Get.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID+"?user_id=alice", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}

	// Get as another user must miss.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID+"?user_id=bob", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-user get: got status %d, want 404", w.Code)
	}

	// Delete.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/"+conv.ID+"?user_id=alice", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status: got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID+"?user_id=alice", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got status %d, want 404", w.Code)
	}
}
