// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import "testing"

func TestDateMention(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"revenue in q2 2025", []string{"q2 2025"}},
		{"spend for March and december", []string{"March", "december"}},
		{"plain question", nil},
	}
	for _, tt := range tests {
		got := dateMention.FindAllString(tt.in, -1)
		if len(got) != len(tt.want) {
			t.Errorf("dateMention(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("dateMention(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestMoneyMention(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{Sanitize("earning 50,000 rupees"), 1},
		{"paid 1200.50 USD last month", 1},
		// Currency symbols are gone by the time annotation sees the text;
		// a bare amount is a number, not a money mention.
		{Sanitize("salary above ₹50000"), 0},
		{"headcount of 120", 0},
	}
	for _, tt := range tests {
		if got := moneyMention.FindAllString(tt.in, -1); len(got) != tt.want {
			t.Errorf("moneyMention(%q) matched %v, want %d matches", tt.in, got, tt.want)
		}
	}
}
