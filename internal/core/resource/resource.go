// Package resource wraps the source's schema-less entity documents.
//
// Source payloads are arbitrary nested JSON. Rather than passing raw maps
// around, callers hold a Resource and read fields with JSONPath expressions,
// keeping the known edges (entity type, id) typed.
package resource

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	perr "researchflow/internal/platform/errors"
)

// Resource is one parsed entity document
type Resource struct {
	Type string
	ID   string
	doc  any
}

// FromJSON parses raw into a Resource.
// When id is empty the document's own "id" field is used.
func FromJSON(typ, id string, raw []byte) (Resource, error) {
	doc, err := oj.Parse(raw)
	if err != nil {
		return Resource{}, perr.InvalidArgf("parse %s document: %v", typ, err)
	}
	r := Resource{Type: typ, ID: id, doc: doc}
	if r.ID == "" {
		if v, ok := r.PathString("id"); ok {
			r.ID = v
		}
	}
	return r, nil
}

// FromDoc wraps an already parsed document
func FromDoc(typ, id string, doc any) Resource {
	return Resource{Type: typ, ID: id, doc: doc}
}

// Doc exposes the underlying document for marshalling
func (r Resource) Doc() any { return r.doc }

// JSON renders the document back to bytes
func (r Resource) JSON() []byte { return []byte(oj.JSON(r.doc)) }

// Path evaluates a JSONPath expression and returns the first match
func (r Resource) Path(path string) (any, bool) {
	x, err := compile(path)
	if err != nil {
		return nil, false
	}
	got := x.Get(r.doc)
	if len(got) == 0 {
		return nil, false
	}
	return got[0], true
}

// PathString evaluates path and coerces scalar matches to a string.
// Objects and arrays report false; a view field must point at a scalar.
func (r Resource) PathString(path string) (string, bool) {
	v, ok := r.Path(path)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// compiled path expressions are shared across all resources
var (
	pathMu sync.RWMutex
	paths  = map[string]jp.Expr{}
)

func compile(path string) (jp.Expr, error) {
	pathMu.RLock()
	x, ok := paths[path]
	pathMu.RUnlock()
	if ok {
		return x, nil
	}

	x, err := jp.ParseString(path)
	if err != nil {
		return nil, perr.InvalidArgf("invalid field path %q: %v", path, err)
	}

	pathMu.Lock()
	paths[path] = x
	pathMu.Unlock()
	return x, nil
}

// SplitRef splits a source reference like "Patient/123" into its
// entity type and local id. A bare id comes back with an empty type.
func SplitRef(ref string) (typ, id string) {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}
