// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "regexp"

// redactionPattern pairs a secret-matching regex with a labeled
// replacement, so a log reader knows what class of secret was present
// without seeing its value.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is ordered most-specific-first: a Groq key must match
// its own pattern before any generic token pattern can truncate it.
var redactionPatterns = []redactionPattern{
	// Groq API key: gsk_<base62>
	{
		Pattern:     regexp.MustCompile(`gsk_[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:groq_key]",
	},
	// OpenAI-style key: sk-<base62, 20+ chars>
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:api_key]",
	},
	// Bearer token in Authorization header values
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	// API key in URL query parameter or config: key=<value>
	{
		Pattern:     regexp.MustCompile(`key=[A-Za-z0-9._-]{10,}`),
		Replacement: "key=[REDACTED]",
	},
	// Password in connection strings or config: password=<value>
	{
		Pattern:     regexp.MustCompile(`password=[^\s&]{3,}`),
		Replacement: "password=[REDACTED]",
	},
}

// SafeLogString redacts known secret patterns from a string before it
// reaches a log line or an error surfaced to a client.
//
// Pattern-based only: secrets in non-standard formats pass through, and a
// secret spanning multiple lines will not match. Callers must still avoid
// logging raw request headers.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactionPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}
