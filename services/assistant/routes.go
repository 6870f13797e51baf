// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches the assistant endpoints to the router.
//
// Routes:
//
//	POST   /api/v1/chat/query          - Stream an answer (ND-JSON)
//	GET    /api/v1/permissions/:role   - Departments a role may query
//	GET    /api/v1/conversations       - List the user's conversations
//	GET    /api/v1/conversations/:id   - Load one conversation
//	DELETE /api/v1/conversations/:id   - Delete one conversation
//	GET    /healthz                    - Liveness probe
func RegisterRoutes(router *gin.Engine, svc *Service) {
	router.GET("/healthz", svc.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat/query", svc.handleQuery)
		v1.GET("/permissions/:role", svc.handlePermissions)

		conversations := v1.Group("/conversations")
		{
			conversations.GET("", svc.handleListConversations)
			conversations.GET("/:id", svc.handleGetConversation)
			conversations.DELETE("/:id", svc.handleDeleteConversation)
		}
	}
}
