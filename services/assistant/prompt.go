// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"fmt"
	"strings"

	"github.com/finsolve/insight/services/assistant/query"
)

// promptTemplate is the generation prompt. Placeholders, in order: role,
// departments, query type, entity summary, context block, question.
const promptTemplate = `You are an AI assistant for FinSolve Technologies.

**User Role:** %s
**Accessible Departments:** %s
**Query Type:** %s
**Detected Entities:** %s

**Context from company documents:**
%s

**Question:** %s

**Instructions:**
1. Answer based ONLY on the provided context
2. Format response in clear markdown with headers, bullet points, and emphasis
3. Cite specific sources by document name
4. If comparing data, use tables or structured format
5. If information is missing, clearly state that

**Answer:**
`

// buildPrompt renders the generation prompt for one request.
func buildPrompt(pq query.ProcessedQuery, role string, departments []query.Department, contextBlock string) string {
	return fmt.Sprintf(promptTemplate,
		role,
		strings.Join(query.DepartmentStrings(departments), ", "),
		pq.Intent.QueryType.String(),
		summarizeEntities(pq.Entities),
		contextBlock,
		pq.CleanText,
	)
}

// summarizeEntities renders the non-empty entity categories, or "None".
func summarizeEntities(e query.Entities) string {
	var parts []string
	add := func(name string, values []string) {
		if len(values) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(values, ", ")))
		}
	}
	add("persons", e.Persons)
	add("orgs", e.Orgs)
	add("dates", e.Dates)
	add("money", e.Money)
	add("numbers", e.Numbers)
	add("locations", e.Locations)

	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "; ")
}
