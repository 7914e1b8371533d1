package fts

import (
	"strings"
	"unicode"
)

// maxQueryTerms caps how many terms reach the engine
const maxQueryTerms = 32

// terms splits a user query into lowercase word tokens. Everything that is
// not a letter or digit separates terms, so FTS operators, quotes and
// column filters never reach the engine.
func terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if len(out) == maxQueryTerms {
			break
		}
	}
	return out
}

// sanitizeFTS5Query turns a free-text query into an FTS5 MATCH expression.
// Each term is quoted as a string literal and the terms are OR-ed, so a row
// matching any term is returned and bm25 ranks rows matching more terms
// first. Returns "" when the query has no searchable terms.
func sanitizeFTS5Query(query string) string {
	ts := terms(query)
	if len(ts) == 0 {
		return ""
	}
	quoted := make([]string, len(ts))
	for i, t := range ts {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

// sanitizeBM25Query builds the query string for DuckDB's match_bm25, which
// takes plain space-separated terms.
func sanitizeBM25Query(query string) string {
	return strings.Join(terms(query), " ")
}
