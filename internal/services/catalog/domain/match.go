package domain

import (
	"strings"

	"researchflow/internal/core/clinterm"
	"researchflow/internal/core/resource"
)

// Condition is one predicate evaluated against a source document.
// Both the fallback and speed runners compile view predicates plus
// caller filters into Conditions before scanning documents.
type Condition struct {
	Field FieldSpec
	Op    string
	Value string
}

// SplitRangeOp peels a comparison prefix off a filter value.
// Plain values compare with "=".
func SplitRangeOp(val string) (op, bare string) {
	switch {
	case strings.HasPrefix(val, ">="):
		return ">=", val[2:]
	case strings.HasPrefix(val, "<="):
		return "<=", val[2:]
	case strings.HasPrefix(val, ">"):
		return ">", val[1:]
	case strings.HasPrefix(val, "<"):
		return "<", val[1:]
	default:
		return "=", val
	}
}

// Matches reports whether one document satisfies every condition.
// A missing extraction path fails the document.
func Matches(rec resource.Resource, conds []Condition) bool {
	for _, c := range conds {
		got, ok := rec.PathString(c.Field.Path)
		if !ok {
			return false
		}
		if c.Field.Text {
			if !clinterm.Matches(c.Value, got) {
				return false
			}
			continue
		}
		want := c.Value
		if c.Field.Ref {
			// both sides reduce to the local id, so "p1" and
			// "Patient/p1" filter identically
			_, got = resource.SplitRef(got)
			_, want = resource.SplitRef(want)
		}
		switch c.Op {
		case ">=":
			if got < want {
				return false
			}
		case "<=":
			if got > want {
				return false
			}
		case ">":
			if got <= want {
				return false
			}
		case "<":
			if got >= want {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

// PrimaryID resolves the id a document contributes to a view: the
// document's own id, or the local id of the primary reference field
func PrimaryID(v ViewSpec, rec resource.Resource) string {
	if v.Primary == "" {
		return rec.ID
	}
	f, _ := v.Field(v.Primary)
	ref, ok := rec.PathString(f.Path)
	if !ok {
		return ""
	}
	_, id := resource.SplitRef(ref)
	return id
}
