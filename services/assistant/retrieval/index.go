// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"

	"github.com/finsolve/insight/services/assistant/query"
)

// SearchIndex is the black-box similarity search the orchestrator probes.
//
// Description:
//
//	Search returns the k documents most similar to the query string. A
//	non-empty departments filter restricts results to those departments;
//	nil or empty means unrestricted. The index treats searches as
//	idempotent, side-effect-free reads.
//
// Thread Safety: Implementations must be safe for concurrent use; the
// orchestrator issues probes in parallel.
type SearchIndex interface {
	Search(ctx context.Context, text string, k int, departments []query.Department) ([]Document, error)
}
