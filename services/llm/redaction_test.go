// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"strings"
	"testing"
)

func TestSafeLogString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"groq key",
			"auth failed for gsk_abc123def456ghi789jkl012",
			"auth failed for [REDACTED:groq_key]",
		},
		{
			"bearer token",
			"header Bearer abcdefghij1234567890 rejected",
			"header [REDACTED:bearer_token] rejected",
		},
		{
			"query parameter key",
			"GET /v1?key=abcdefghij123 returned 403",
			"GET /v1?key=[REDACTED] returned 403",
		},
		{
			"password",
			"dsn user=insight password=hunter2secret host=db",
			"dsn user=insight password=[REDACTED] host=db",
		},
		{
			"no secrets unchanged",
			"plain error message",
			"plain error message",
		},
		{
			"empty",
			"",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeLogString(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeLogStringNeverLeaksKey(t *testing.T) {
	secret := "gsk_supersecretvalue0123456789"
	out := SafeLogString("backend said: " + secret)
	if strings.Contains(out, secret) {
		t.Fatalf("secret leaked: %q", out)
	}
}
