// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/finsolve/insight/services/assistant/query"
)

// allowAll grants every role every department.
type allowAll struct{}

func (allowAll) Allows(string, query.Department) bool { return true }

// allowNone denies everything.
type allowNone struct{}

func (allowNone) Allows(string, query.Department) bool { return false }

func testDataset() *Dataset {
	ds := &Dataset{}
	for i := 1; i <= 25; i++ {
		ds.Employees = append(ds.Employees, Employee{
			EmployeeID:        fmt.Sprintf("FINEMP%04d", i),
			FullName:          fmt.Sprintf("Employee Number%d", i),
			Role:              "Analyst",
			Department:        []string{"finance", "engineering"}[i%2],
			Salary:            50000 + float64(i)*1000,
			PerformanceRating: float64(i%5) + 1,
			LastReviewDate:    "2025-01-15",
			LeaveBalance:      10 + i%5,
			LeavesTaken:       i % 8,
			AttendancePct:     90 + float64(i%10),
		})
	}
	return ds
}

func processed(text string, mutate func(*query.ProcessedQuery)) query.ProcessedQuery {
	pq := query.ProcessedQuery{
		OriginalText: text,
		CleanText:    text,
		Entities: query.Entities{
			Persons: []string{}, Orgs: []string{}, Dates: []string{},
			Money: []string{}, Numbers: []string{}, Locations: []string{},
		},
	}
	if mutate != nil {
		mutate(&pq)
	}
	return pq
}

func TestResolveFailsClosed(t *testing.T) {
	r := NewResolver(testDataset(), allowNone{})

	status, table := r.Resolve(context.Background(), "employee", processed("what is the average salary", nil))
	if status != StatusAccessDenied {
		t.Errorf("got status %q, want %q", status, StatusAccessDenied)
	}
	if table != nil {
		t.Error("denied request must never return data")
	}
}

func TestResolveMissingDataset(t *testing.T) {
	r := NewResolver(nil, allowAll{})

	status, table := r.Resolve(context.Background(), "hr_specialist", processed("salary stats", nil))
	if status != StatusDataMissing {
		t.Errorf("got status %q, want %q", status, StatusDataMissing)
	}
	if table != nil {
		t.Error("expected no table")
	}
}

func TestResolvePersonLookup(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	pq := processed("what is Number7 doing", func(p *query.ProcessedQuery) {
		p.Entities.Persons = []string{"Number7"}
	})
	status, table := r.Resolve(context.Background(), "hr_specialist", pq)
	if status != "✅ Found employee: Number7" {
		t.Errorf("got status %q", status)
	}
	if table.Empty() {
		t.Fatal("expected rows for matched employee")
	}
	if table.Rows[0]["full_name"] != "Employee Number7" {
		t.Errorf("got %q", table.Rows[0]["full_name"])
	}
}

func TestResolveSalaryAggregation(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	pq := processed("what is the average salary", func(p *query.ProcessedQuery) {
		p.Intent.IsAggregation = true
	})
	status, table := r.Resolve(context.Background(), "manager", pq)
	if status != StatusRetrieved {
		t.Fatalf("got status %q", status)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("statistics table must have one row, got %d", len(table.Rows))
	}
	wantCols := []string{"Average Salary", "Median Salary", "Min Salary", "Max Salary", "Total Employees"}
	for i, c := range wantCols {
		if table.Columns[i] != c {
			t.Errorf("column %d: got %q, want %q", i, table.Columns[i], c)
		}
	}
	if table.Rows[0]["Total Employees"] != "25" {
		t.Errorf("got %q employees", table.Rows[0]["Total Employees"])
	}
	if !strings.HasPrefix(table.Rows[0]["Min Salary"], "₹51,000") {
		t.Errorf("min salary not currency formatted: %q", table.Rows[0]["Min Salary"])
	}
}

func TestResolveSalaryTopN(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	pq := processed("top salary earners", func(p *query.ProcessedQuery) {
		p.Entities.Numbers = []string{"5"}
	})
	_, table := r.Resolve(context.Background(), "manager", pq)
	if len(table.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(table.Rows))
	}
	// Highest salary in the dataset is employee 25.
	if table.Rows[0]["employee_id"] != "FINEMP0025" {
		t.Errorf("top earner: got %q", table.Rows[0]["employee_id"])
	}
	// Unparseable number falls back to the default size.
	pq = processed("top salary earners", func(p *query.ProcessedQuery) {
		p.Entities.Numbers = []string{"several"}
	})
	_, table = r.Resolve(context.Background(), "manager", pq)
	if len(table.Rows) != defaultTopN {
		t.Errorf("expected default %d rows, got %d", defaultTopN, len(table.Rows))
	}
}

func TestResolveSalaryListingTruncated(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	_, table := r.Resolve(context.Background(), "manager", processed("show all salary records", nil))
	if len(table.Rows) != maxResultRows {
		t.Errorf("listing should truncate to %d rows, got %d", maxResultRows, len(table.Rows))
	}
}

func TestResolveDepartmentAggregation(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	pq := processed("how many employees per department", func(p *query.ProcessedQuery) {
		p.Intent.IsAggregation = true
	})
	status, table := r.Resolve(context.Background(), "manager", pq)
	if status != StatusRetrieved {
		t.Fatalf("got status %q", status)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 department rows, got %d", len(table.Rows))
	}
	// Department groups come back in ascending name order.
	if table.Rows[0]["Department"] != "engineering" || table.Rows[1]["Department"] != "finance" {
		t.Errorf("unexpected department order: %q, %q", table.Rows[0]["Department"], table.Rows[1]["Department"])
	}
}

func TestResolvePerformanceTop(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	_, table := r.Resolve(context.Background(), "manager", processed("top performance ratings", nil))
	if len(table.Rows) != defaultTopN {
		t.Fatalf("expected %d rows, got %d", defaultTopN, len(table.Rows))
	}
	if table.Rows[0]["performance_rating"] != "5.00" {
		t.Errorf("expected best rating first, got %q", table.Rows[0]["performance_rating"])
	}
}

func TestResolveAttendanceAggregation(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	pq := processed("average leave balance", func(p *query.ProcessedQuery) {
		p.Intent.IsAggregation = true
	})
	_, table := r.Resolve(context.Background(), "manager", pq)
	if len(table.Rows) != 1 {
		t.Fatalf("expected one summary row, got %d", len(table.Rows))
	}
	if !strings.HasSuffix(table.Rows[0]["Avg Attendance %"], "%") {
		t.Errorf("attendance should carry a percent sign: %q", table.Rows[0]["Avg Attendance %"])
	}
}

func TestResolveSummaryFallback(t *testing.T) {
	r := NewResolver(testDataset(), allowAll{})

	status, table := r.Resolve(context.Background(), "manager", processed("tell me about the workforce", nil))
	if status != StatusSummary {
		t.Fatalf("got status %q, want %q", status, StatusSummary)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("summary must be one row, got %d", len(table.Rows))
	}
	if table.Rows[0]["Departments"] != "2" {
		t.Errorf("got %q distinct departments", table.Rows[0]["Departments"])
	}
}

func TestFormatRupees(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{75000, "₹75,000.00"},
		{1234567.891, "₹1,234,567.89"},
		{999.5, "₹999.50"},
		{0, "₹0.00"},
	}
	for _, tt := range tests {
		if got := formatRupees(tt.in); got != tt.want {
			t.Errorf("formatRupees(%f) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
