// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import "strings"

// maxVariants caps the number of search probes derived from one query.
const maxVariants = 3

// expandVariants derives the ordered search probes for a query.
//
// The clean text always leads. The lemmatized form is added when it differs
// from the clean text, and the joined noun phrases when any were extracted.
// Duplicates are dropped preserving first occurrence, and the result is
// capped at maxVariants. With a degraded backend both optional inputs are
// empty and the single clean-text probe remains.
func expandVariants(clean, lemmatized string, nounPhrases []string) []string {
	variants := []string{clean}

	if lemmatized != "" && lemmatized != clean {
		variants = append(variants, lemmatized)
	}
	if len(nounPhrases) > 0 {
		variants = append(variants, strings.Join(nounPhrases, " "))
	}

	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	if len(out) > maxVariants {
		out = out[:maxVariants]
	}
	return out
}
