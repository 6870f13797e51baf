// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finsolve/insight/services/assistant/events"
	"github.com/finsolve/insight/services/assistant/history"
	"github.com/finsolve/insight/services/assistant/query"
	"github.com/finsolve/insight/services/llm"
)

// Service bundles the controller with its transport collaborators.
type Service struct {
	controller *Controller
	perms      PermissionReader
	history    *history.Store
}

// PermissionReader is the transport's view of the permission table.
type PermissionReader interface {
	Permitted(role string) []query.Department
}

// NewService builds the HTTP-facing service. history may be nil; the
// conversation endpoints then report the feature unavailable.
func NewService(controller *Controller, perms PermissionReader, hist *history.Store) *Service {
	return &Service{controller: controller, perms: perms, history: hist}
}

// queryRequest is the chat query payload.
type queryRequest struct {
	Question       string `json:"question" binding:"required"`
	Role           string `json:"role" binding:"required"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// handleQuery streams the answer to one question as ND-JSON, one event
// object per line.
func (s *Service) handleQuery(c *gin.Context) {
	requestID := uuid.NewString()
	logger := slog.With(slog.String("request_id", requestID))

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Rejected malformed query request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "question and role are required"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question must not be empty"})
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	// Resolve the conversation before streaming so its ID rides on a
	// header the client sees up front.
	var conv *history.Conversation
	var prior []llm.Message
	if s.history != nil {
		var err error
		if req.ConversationID != "" {
			conv, err = s.history.Get(userID, req.ConversationID)
			if err == nil {
				prior = conv.Messages
				conv, err = s.history.Append(userID, conv.ID, llm.Message{Role: "user", Content: req.Question})
			}
		} else {
			conv, err = s.history.Create(userID, req.Question)
		}
		if err != nil {
			// History is a convenience; answer the question anyway.
			logger.Warn("Conversation lookup failed", slog.String("error", err.Error()))
			conv = nil
		}
	}
	if conv != nil {
		c.Header("X-Conversation-ID", conv.ID)
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	flusher, canFlush := c.Writer.(http.Flusher)
	encoder := json.NewEncoder(c.Writer)

	var answer strings.Builder
	emit := func(ev events.Event) error {
		if ev.Type == events.TypeToken {
			answer.WriteString(ev.Content)
		}
		if err := encoder.Encode(ev); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	}

	logger.Info("Streaming query response",
		slog.String("role", req.Role),
		slog.Int("question_length", len(req.Question)),
	)

	err := s.controller.Stream(c.Request.Context(), Request{
		Question: req.Question,
		Role:     req.Role,
		Prior:    prior,
	}, emit)
	if err != nil {
		// Emit failures mean the client went away mid-stream.
		logger.Info("Client disconnected mid-stream", slog.String("error", err.Error()))
		return
	}

	if conv != nil && answer.Len() > 0 {
		if _, err := s.history.Append(userID, conv.ID, llm.Message{Role: "assistant", Content: answer.String()}); err != nil {
			logger.Warn("Failed to record assistant turn", slog.String("error", err.Error()))
		}
	}
}

// handlePermissions reports the departments a role may query.
func (s *Service) handlePermissions(c *gin.Context) {
	role := c.Param("role")
	c.JSON(http.StatusOK, gin.H{
		"role":        role,
		"departments": query.DepartmentStrings(s.perms.Permitted(role)),
	})
}

// handleHealth is the liveness probe.
func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
