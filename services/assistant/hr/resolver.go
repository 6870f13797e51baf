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
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/finsolve/insight/services/assistant/query"
)

var tracer = otel.Tracer("services/assistant/hr")

var resolverBranchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Subsystem: "hr",
	Name:      "resolver_branch_total",
	Help:      "HR resolver outcomes by branch",
}, []string{"branch"})

// Status strings surfaced to the user. The resolver communicates failure
// through these, never through returned errors.
const (
	StatusAccessDenied = "❌ Access Denied: You don't have permission to access HR data."
	StatusDataMissing  = "❌ HR data not found."
	StatusRetrieved    = "✅ HR Data Retrieved"
	StatusNoMatch      = "⚠️ No matching HR data found"
	StatusSummary      = "✅ HR Summary"
)

// maxResultRows caps lookup and ranking result tables.
const maxResultRows = 20

// defaultTopN is the ranking size when the query names no number.
const defaultTopN = 10

// RoleAccess answers whether a role may read a department's data.
type RoleAccess interface {
	Allows(role string, dept query.Department) bool
}

// Resolver answers HR questions against the employee snapshot.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Resolver struct {
	data   *Dataset
	access RoleAccess
}

// NewResolver builds an HR resolver. data may be nil when no dataset was
// found at startup; resolution then reports the data-missing status.
func NewResolver(data *Dataset, access RoleAccess) *Resolver {
	return &Resolver{data: data, access: access}
}

// Resolve answers one HR question.
//
// Description:
//
//	Checks HR access first and fails closed, then walks the resolution
//	ladder: employee-name lookup, salary statistics and rankings,
//	department aggregation, performance ranking, leave/attendance, and a
//	generic summary as the final fallback. Resolution never returns an
//	error: any internal failure is converted to an error status string
//	with an absent table.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	role - The caller's role, checked against HR department access.
//	pq - The processed query driving branch selection.
//
// Outputs:
//
//	status - A human-readable status line, always non-empty.
//	table - The result table, or nil when no data is returned.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, role string, pq query.ProcessedQuery) (status string, table *Table) {
	_, span := tracer.Start(ctx, "hr.Resolve")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("HR resolver panic recovered", slog.Any("panic", rec))
			resolverBranchTotal.WithLabelValues("error").Inc()
			status = fmt.Sprintf("❌ Error processing HR query: %v", rec)
			table = nil
		}
		span.SetAttributes(attribute.Bool("hr.data_returned", table != nil))
	}()

	// Access check precedes any data access. Unknown roles resolve to no
	// HR access downstream, so they deny here too.
	if r.access == nil || !r.access.Allows(role, query.DeptHR) {
		resolverBranchTotal.WithLabelValues("denied").Inc()
		return StatusAccessDenied, nil
	}
	if r.data == nil {
		resolverBranchTotal.WithLabelValues("no_data").Inc()
		return StatusDataMissing, nil
	}

	lower := strings.ToLower(pq.CleanText)

	// Branch 1: employee lookup by extracted person entity.
	if len(pq.Entities.Persons) > 0 {
		person := pq.Entities.Persons[0]
		if t := r.findEmployees(person); !t.Empty() {
			t.truncate(maxResultRows)
			resolverBranchTotal.WithLabelValues("person").Inc()
			return fmt.Sprintf("✅ Found employee: %s", person), t
		}
	}

	// Branch 2: salary queries.
	if strings.Contains(lower, "salary") || strings.Contains(lower, "payroll") || strings.Contains(lower, "compensation") {
		t := r.resolveSalary(lower, pq)
		if !t.Empty() {
			t.truncate(maxResultRows)
			resolverBranchTotal.WithLabelValues("salary").Inc()
			return StatusRetrieved, t
		}
		resolverBranchTotal.WithLabelValues("no_match").Inc()
		return StatusNoMatch, nil
	}

	// Branch 3: department queries.
	if strings.Contains(lower, "department") {
		resolverBranchTotal.WithLabelValues("department").Inc()
		return StatusRetrieved, r.resolveDepartments(pq.Intent.IsAggregation)
	}

	// Branch 4: performance queries.
	if strings.Contains(lower, "performance") || strings.Contains(lower, "rating") {
		resolverBranchTotal.WithLabelValues("performance").Inc()
		return StatusRetrieved, r.resolvePerformance(lower)
	}

	// Branch 5: leave and attendance queries.
	if strings.Contains(lower, "leave") || strings.Contains(lower, "attendance") {
		resolverBranchTotal.WithLabelValues("attendance").Inc()
		return StatusRetrieved, r.resolveAttendance(pq.Intent.IsAggregation)
	}

	// Branch 6: generic summary.
	resolverBranchTotal.WithLabelValues("summary").Inc()
	return StatusSummary, r.summary()
}

// findEmployees matches full names by case-insensitive substring.
func (r *Resolver) findEmployees(person string) *Table {
	needle := strings.ToLower(person)
	t := &Table{Columns: []string{
		"employee_id", "full_name", "role", "department", "salary",
		"performance_rating", "last_review_date", "leave_balance",
		"leaves_taken", "attendance_pct",
	}}
	for _, e := range r.data.Employees {
		if !strings.Contains(strings.ToLower(e.FullName), needle) {
			continue
		}
		t.Rows = append(t.Rows, map[string]string{
			"employee_id":        e.EmployeeID,
			"full_name":          e.FullName,
			"role":               e.Role,
			"department":         e.Department,
			"salary":             formatNumber(e.Salary),
			"performance_rating": formatNumber(e.PerformanceRating),
			"last_review_date":   e.LastReviewDate,
			"leave_balance":      strconv.Itoa(e.LeaveBalance),
			"leaves_taken":       strconv.Itoa(e.LeavesTaken),
			"attendance_pct":     formatNumber(e.AttendancePct),
		})
	}
	return t
}

// resolveSalary handles aggregation statistics, top/bottom rankings, and
// the flat salary listing.
func (r *Resolver) resolveSalary(lower string, pq query.ProcessedQuery) *Table {
	emps := r.data.Employees

	if pq.Intent.IsAggregation {
		min, max := minMaxSalary(emps)
		return &Table{
			Columns: []string{"Average Salary", "Median Salary", "Min Salary", "Max Salary", "Total Employees"},
			Rows: []map[string]string{{
				"Average Salary":  formatRupees(meanSalary(emps)),
				"Median Salary":   formatRupees(medianSalary(emps)),
				"Min Salary":      formatRupees(min),
				"Max Salary":      formatRupees(max),
				"Total Employees": strconv.Itoa(len(emps)),
			}},
		}
	}

	switch {
	case strings.Contains(lower, "highest") || strings.Contains(lower, "top"):
		return r.salaryRanking(emps, topN(pq.Entities.Numbers), true)
	case strings.Contains(lower, "lowest") || strings.Contains(lower, "bottom"):
		return r.salaryRanking(emps, defaultTopN, false)
	default:
		return r.salaryListing(emps)
	}
}

// topN returns the ranking size: defaultTopN unless the first extracted
// number parses as an integer.
func topN(numbers []string) int {
	if len(numbers) > 0 {
		if n, err := strconv.Atoi(numbers[0]); err == nil {
			return n
		}
	}
	return defaultTopN
}

func (r *Resolver) salaryRanking(emps []Employee, n int, descending bool) *Table {
	ranked := make([]Employee, len(emps))
	copy(ranked, emps)
	sort.SliceStable(ranked, func(i, j int) bool {
		if descending {
			return ranked[i].Salary > ranked[j].Salary
		}
		return ranked[i].Salary < ranked[j].Salary
	})
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return r.salaryListing(ranked)
}

func (r *Resolver) salaryListing(emps []Employee) *Table {
	t := &Table{Columns: []string{"employee_id", "full_name", "role", "department", "salary"}}
	for _, e := range emps {
		t.Rows = append(t.Rows, map[string]string{
			"employee_id": e.EmployeeID,
			"full_name":   e.FullName,
			"role":        e.Role,
			"department":  e.Department,
			"salary":      formatNumber(e.Salary),
		})
	}
	return t
}

// resolveDepartments groups by department for aggregation intent, otherwise
// returns the flat department listing.
func (r *Resolver) resolveDepartments(aggregate bool) *Table {
	if !aggregate {
		t := &Table{Columns: []string{"employee_id", "full_name", "department", "role"}}
		for _, e := range r.data.Employees {
			t.Rows = append(t.Rows, map[string]string{
				"employee_id": e.EmployeeID,
				"full_name":   e.FullName,
				"department":  e.Department,
				"role":        e.Role,
			})
		}
		return t
	}

	type deptAgg struct {
		count  int
		salary float64
		perf   float64
	}
	aggs := make(map[string]*deptAgg)
	var names []string
	for _, e := range r.data.Employees {
		a, ok := aggs[e.Department]
		if !ok {
			a = &deptAgg{}
			aggs[e.Department] = a
			names = append(names, e.Department)
		}
		a.count++
		a.salary += e.Salary
		a.perf += e.PerformanceRating
	}
	sort.Strings(names)

	t := &Table{Columns: []string{"Department", "Employee Count", "Avg Salary", "Total Salary", "Avg Performance"}}
	for _, name := range names {
		a := aggs[name]
		t.Rows = append(t.Rows, map[string]string{
			"Department":      name,
			"Employee Count":  strconv.Itoa(a.count),
			"Avg Salary":      formatNumber(a.salary / float64(a.count)),
			"Total Salary":    formatNumber(a.salary),
			"Avg Performance": formatNumber(a.perf / float64(a.count)),
		})
	}
	return t
}

// resolvePerformance ranks by performance rating, top-N only when the query
// asks for the top.
func (r *Resolver) resolvePerformance(lower string) *Table {
	ranked := make([]Employee, len(r.data.Employees))
	copy(ranked, r.data.Employees)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PerformanceRating > ranked[j].PerformanceRating
	})
	if (strings.Contains(lower, "top") || strings.Contains(lower, "highest")) && len(ranked) > defaultTopN {
		ranked = ranked[:defaultTopN]
	}

	t := &Table{Columns: []string{"employee_id", "full_name", "department", "performance_rating", "last_review_date"}}
	for _, e := range ranked {
		t.Rows = append(t.Rows, map[string]string{
			"employee_id":        e.EmployeeID,
			"full_name":          e.FullName,
			"department":         e.Department,
			"performance_rating": formatNumber(e.PerformanceRating),
			"last_review_date":   e.LastReviewDate,
		})
	}
	return t
}

// resolveAttendance aggregates or lists leave and attendance figures.
func (r *Resolver) resolveAttendance(aggregate bool) *Table {
	emps := r.data.Employees
	if aggregate {
		var balance, taken, attendance float64
		for _, e := range emps {
			balance += float64(e.LeaveBalance)
			taken += float64(e.LeavesTaken)
			attendance += e.AttendancePct
		}
		n := float64(len(emps))
		if n == 0 {
			n = 1
		}
		return &Table{
			Columns: []string{"Avg Leave Balance", "Avg Leaves Taken", "Avg Attendance %"},
			Rows: []map[string]string{{
				"Avg Leave Balance": formatNumber(balance / n),
				"Avg Leaves Taken":  formatNumber(taken / n),
				"Avg Attendance %":  fmt.Sprintf("%.2f%%", attendance/n),
			}},
		}
	}

	t := &Table{Columns: []string{"employee_id", "full_name", "leave_balance", "leaves_taken", "attendance_pct"}}
	for _, e := range emps {
		t.Rows = append(t.Rows, map[string]string{
			"employee_id":    e.EmployeeID,
			"full_name":      e.FullName,
			"leave_balance":  strconv.Itoa(e.LeaveBalance),
			"leaves_taken":   strconv.Itoa(e.LeavesTaken),
			"attendance_pct": formatNumber(e.AttendancePct),
		})
	}
	return t
}

// summary builds the generic one-row dataset overview.
func (r *Resolver) summary() *Table {
	emps := r.data.Employees
	n := float64(len(emps))
	if n == 0 {
		n = 1
	}

	depts := make(map[string]struct{})
	var perf, attendance float64
	for _, e := range emps {
		depts[e.Department] = struct{}{}
		perf += e.PerformanceRating
		attendance += e.AttendancePct
	}

	return &Table{
		Columns: []string{"Total Employees", "Average Salary", "Departments", "Avg Performance", "Avg Attendance"},
		Rows: []map[string]string{{
			"Total Employees": strconv.Itoa(len(emps)),
			"Average Salary":  formatRupees(meanSalary(emps)),
			"Departments":     strconv.Itoa(len(depts)),
			"Avg Performance": formatNumber(perf / n),
			"Avg Attendance":  fmt.Sprintf("%.2f%%", attendance/n),
		}},
	}
}
