// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finsolve/insight/services/assistant/history"
)

// historyUserID resolves the acting user for conversation endpoints.
func historyUserID(c *gin.Context) string {
	if id := c.Query("user_id"); id != "" {
		return id
	}
	return "anonymous"
}

// historyUnavailable guards the conversation endpoints when no store was
// configured at startup.
func (s *Service) historyUnavailable(c *gin.Context) bool {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "conversation history is not configured"})
		return true
	}
	return false
}

// conversationSummary is the listing shape: metadata without message
// bodies.
type conversationSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Messages    int    `json:"messages"`
	LastUpdated string `json:"last_updated"`
}

// handleListConversations returns the user's conversations, newest first.
func (s *Service) handleListConversations(c *gin.Context) {
	if s.historyUnavailable(c) {
		return
	}
	convs, err := s.history.List(historyUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	summaries := make([]conversationSummary, len(convs))
	for i, conv := range convs {
		summaries[i] = conversationSummary{
			ID:          conv.ID,
			Title:       conv.Title,
			Messages:    len(conv.Messages),
			LastUpdated: conv.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// handleGetConversation returns one conversation with its messages.
func (s *Service) handleGetConversation(c *gin.Context) {
	if s.historyUnavailable(c) {
		return
	}
	conv, err := s.history.Get(historyUserID(c), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// handleDeleteConversation removes one conversation.
func (s *Service) handleDeleteConversation(c *gin.Context) {
	if s.historyUnavailable(c) {
		return
	}
	if err := s.history.Delete(historyUserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}
	c.Status(http.StatusNoContent)
}
