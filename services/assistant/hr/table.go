// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hr

import (
	"fmt"
	"sort"
	"strings"
)

// Table is an ordered-column result table. Rows map column name to a
// display-ready string value; Columns fixes the presentation order, which
// map iteration would otherwise scramble.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// truncate caps the table at n rows.
func (t *Table) truncate(n int) {
	if len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
}

// =============================================================================
// Formatting
// =============================================================================

// formatRupees renders an amount as ₹ with comma grouping and two decimals,
// e.g. ₹1,234,567.89.
func formatRupees(amount float64) string {
	return "₹" + groupThousands(fmt.Sprintf("%.2f", amount))
}

// groupThousands inserts comma separators into the integer part of a
// fixed-point decimal string.
func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}

	var b strings.Builder
	pre := len(intPart) % 3
	if pre > 0 {
		b.WriteString(intPart[:pre])
	}
	for i := pre; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}

	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

// formatNumber renders a float rounded to two decimals without a unit.
func formatNumber(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// =============================================================================
// Aggregates
// =============================================================================

func meanSalary(emps []Employee) float64 {
	if len(emps) == 0 {
		return 0
	}
	var sum float64
	for _, e := range emps {
		sum += e.Salary
	}
	return sum / float64(len(emps))
}

func medianSalary(emps []Employee) float64 {
	if len(emps) == 0 {
		return 0
	}
	salaries := make([]float64, len(emps))
	for i, e := range emps {
		salaries[i] = e.Salary
	}
	sort.Float64s(salaries)
	mid := len(salaries) / 2
	if len(salaries)%2 == 0 {
		return (salaries[mid-1] + salaries[mid]) / 2
	}
	return salaries[mid]
}

func minMaxSalary(emps []Employee) (min, max float64) {
	if len(emps) == 0 {
		return 0, 0
	}
	min, max = emps[0].Salary, emps[0].Salary
	for _, e := range emps[1:] {
		if e.Salary < min {
			min = e.Salary
		}
		if e.Salary > max {
			max = e.Salary
		}
	}
	return min, max
}
