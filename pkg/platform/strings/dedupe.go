// Package strings holds list helpers shared by env parsing and policy rows.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and keeps the first occurrence of every
// non-blank one, in input order. Matching is case sensitive since entity
// type names and broker addresses are.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList parses a comma separated setting such as KAFKA_BROKERS or a
// depends_on column. A blank input yields nil.
//
//	SplitList(" Candidate, JobPost,,Candidate ") // []string{"Candidate", "JobPost"}
func SplitList(s string) []string {
	out := DedupeAndTrim(strings.Split(s, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
