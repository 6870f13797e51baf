// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package access holds the process-wide role permission table: which
// departments each role may query. The table is read by every request
// pipeline and replaced, never mutated, on reload.
package access

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/finsolve/insight/services/assistant/query"
)

//go:embed permissions.yaml
var defaultPermissionsYAML []byte

// permissionsFile is the on-disk YAML shape.
type permissionsFile struct {
	Roles map[string][]query.Department `yaml:"roles"`
}

// Store is the role permission table.
//
// Description:
//
//	Lookups return a copy of the role's department list so callers can
//	never alias the table. Roles absent from the table resolve to
//	{general}; roles present with an explicitly empty list have no
//	access. Reload swaps the whole table under the lock rather than
//	mutating in place, so concurrent readers always see a complete
//	snapshot.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	roles map[string][]query.Department
}

// LoadStore builds the permission table from PERMISSIONS_PATH when set,
// otherwise from the embedded defaults.
func LoadStore() (*Store, error) {
	raw := defaultPermissionsYAML
	source := "embedded"

	if path := os.Getenv("PERMISSIONS_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("access: reading permissions %s: %w", path, err)
		}
		raw = data
		source = path
	}

	roles, err := parsePermissions(raw)
	if err != nil {
		return nil, fmt.Errorf("access: parsing permissions (%s): %w", source, err)
	}

	slog.Info("Role permissions loaded",
		slog.String("source", source),
		slog.Int("roles", len(roles)),
	)
	return &Store{roles: roles}, nil
}

func parsePermissions(raw []byte) (map[string][]query.Department, error) {
	var file permissionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("no roles defined")
	}
	for role, depts := range file.Roles {
		for _, d := range depts {
			if !d.Valid() {
				return nil, fmt.Errorf("role %q grants unknown department %q", role, d)
			}
		}
	}
	return file.Roles, nil
}

// Permitted returns the ordered departments role may query.
//
// Unknown roles resolve to {general}. The returned slice is a copy; callers
// may hold and modify it freely.
func (s *Store) Permitted(role string) []query.Department {
	s.mu.RLock()
	depts, known := s.roles[role]
	s.mu.RUnlock()

	if !known {
		return []query.Department{query.DeptGeneral}
	}
	out := make([]query.Department, len(depts))
	copy(out, depts)
	return out
}

// Allows reports whether role may query dept.
func (s *Store) Allows(role string, dept query.Department) bool {
	for _, d := range s.Permitted(role) {
		if d == dept {
			return true
		}
	}
	return false
}

// Replace atomically swaps in a freshly parsed permission table.
//
// The previous table stays visible to in-flight readers until their lookup
// completes; there is no partially updated state.
func (s *Store) Replace(raw []byte) error {
	roles, err := parsePermissions(raw)
	if err != nil {
		return fmt.Errorf("access: replacing permissions: %w", err)
	}

	s.mu.Lock()
	s.roles = roles
	s.mu.Unlock()

	slog.Info("Role permissions replaced", slog.Int("roles", len(roles)))
	return nil
}
