// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hr

import (
	"strings"
	"testing"
)

const sampleCSV = `employee_id,full_name,role,department,salary,performance_rating,last_review_date,leave_balance,leaves_taken,attendance_pct
FINEMP0001,Aarav Sharma,Analyst,finance,72000,4.2,2025-02-10,12,3,96.5
FINEMP0002,Priya Singh,HR Manager,hr,88000,4.8,2025-03-01,8,6,94.1
`

func TestReadDataset(t *testing.T) {
	ds, err := readDataset(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("readDataset failed: %v", err)
	}
	if len(ds.Employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(ds.Employees))
	}

	e := ds.Employees[1]
	if e.FullName != "Priya Singh" || e.Department != "hr" {
		t.Errorf("unexpected employee: %+v", e)
	}
	if e.Salary != 88000 {
		t.Errorf("salary: got %f", e.Salary)
	}
	if e.LeaveBalance != 8 || e.LeavesTaken != 6 {
		t.Errorf("leave fields: got %d, %d", e.LeaveBalance, e.LeavesTaken)
	}
}

func TestReadDatasetMissingColumn(t *testing.T) {
	csv := "employee_id,full_name\nFINEMP0001,Aarav Sharma\n"
	if _, err := readDataset(strings.NewReader(csv)); err == nil {
		t.Fatal("expected error for incomplete header")
	}
}

func TestReadDatasetBadNumeric(t *testing.T) {
	bad := strings.Replace(sampleCSV, "72000", "lots", 1)
	if _, err := readDataset(strings.NewReader(bad)); err == nil {
		t.Fatal("expected error for unparseable salary")
	}
}
