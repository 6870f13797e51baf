// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hr answers HR-specific questions directly against the structured
// employee table, bypassing document retrieval. The dataset is loaded once
// at startup and treated as an immutable snapshot; every request pipeline
// reads the same records without locking.
package hr

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// Employee is one row of the HR dataset.
type Employee struct {
	EmployeeID        string
	FullName          string
	Role              string
	Department        string
	Salary            float64
	PerformanceRating float64
	LastReviewDate    string
	LeaveBalance      int
	LeavesTaken       int
	AttendancePct     float64
}

// Dataset is the immutable employee table snapshot.
//
// Thread Safety: Immutable after LoadDataset; safe for concurrent reads.
type Dataset struct {
	Employees []Employee
}

// requiredColumns is the header the HR CSV must carry, in any order.
var requiredColumns = []string{
	"employee_id", "full_name", "role", "department", "salary",
	"performance_rating", "last_review_date", "leave_balance",
	"leaves_taken", "attendance_pct",
}

// LoadDataset reads the HR CSV from path into an immutable snapshot.
//
// Description:
//
//	Parses the header to locate columns by name, then decodes every row.
//	A malformed numeric field fails the whole load: a silently dropped or
//	zeroed salary row would corrupt every aggregate the resolver computes.
//
// Inputs:
//
//	path - Filesystem path to the HR CSV.
//
// Outputs:
//
//	*Dataset - The loaded snapshot. Never nil on success.
//	error - Non-nil when the file is missing, the header is incomplete,
//	or any row fails to decode.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hr: opening dataset %s: %w", path, err)
	}
	defer f.Close()

	ds, err := readDataset(f)
	if err != nil {
		return nil, fmt.Errorf("hr: reading dataset %s: %w", path, err)
	}
	slog.Info("HR dataset loaded",
		slog.String("path", path),
		slog.Int("records", len(ds.Employees)),
	)
	return ds, nil
}

func readDataset(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	ds := &Dataset{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		emp := Employee{
			EmployeeID:     record[col["employee_id"]],
			FullName:       record[col["full_name"]],
			Role:           record[col["role"]],
			Department:     record[col["department"]],
			LastReviewDate: record[col["last_review_date"]],
		}
		if emp.Salary, err = strconv.ParseFloat(record[col["salary"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: salary: %w", line, err)
		}
		if emp.PerformanceRating, err = strconv.ParseFloat(record[col["performance_rating"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: performance_rating: %w", line, err)
		}
		if emp.LeaveBalance, err = strconv.Atoi(record[col["leave_balance"]]); err != nil {
			return nil, fmt.Errorf("line %d: leave_balance: %w", line, err)
		}
		if emp.LeavesTaken, err = strconv.Atoi(record[col["leaves_taken"]]); err != nil {
			return nil, fmt.Errorf("line %d: leaves_taken: %w", line, err)
		}
		if emp.AttendancePct, err = strconv.ParseFloat(record[col["attendance_pct"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: attendance_pct: %w", line, err)
		}
		ds.Employees = append(ds.Employees, emp)
	}
	return ds, nil
}
