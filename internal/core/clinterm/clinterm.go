// Package clinterm normalizes free-text clinical terms for matching
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Remove zero-width and combining marks
// 5 Width fold fullwidth to ASCII
// 6 Fold punctuation to spaces
// 7 Collapse whitespace to single spaces and trim
//
// Source coding is verbose ("Diabetes mellitus, type 2 (disorder)") while
// callers filter with short terms ("diabetes"). CoreTerm reduces a term to
// its leading significant token so substring matching lines up on both sides.
package clinterm

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),                       // unicode case folding
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// qualifier tokens that never carry the clinical meaning of a term
var qualifiers = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "with": {},
	"without": {}, "due": {}, "to": {}, "in": {}, "on": {}, "by": {},
	"type": {}, "stage": {}, "grade": {}, "nos": {}, "unspecified": {},
	"acute": {}, "chronic": {}, "mild": {}, "moderate": {}, "severe": {},
	"history": {}, "disorder": {}, "finding": {}, "status": {},
}

// Normalize returns the canonical matching form of s following the pipeline above
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = Sanitize(s)

	// 1 repair UTF-8 drop invalid bytes
	s = strings.ToValidUTF8(s, "")

	// 2-5 transform via pooled chain then reset and return it
	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	// 6 punctuation to spaces
	ns = foldPunct(ns)

	// 7 collapse whitespace and trim
	ns = collapseSpaces(ns)

	return ns
}

// CoreTerm reduces s to its leading significant token after normalization.
// Qualifier words and bare numbers are skipped; when nothing significant
// remains the whole normalized string is returned.
func CoreTerm(s string) string {
	ns := Normalize(s)
	if ns == "" {
		return ""
	}
	for tok := range strings.FieldsSeq(ns) {
		if _, skip := qualifiers[tok]; skip {
			continue
		}
		if isNumeric(tok) {
			continue
		}
		return tok
	}
	return ns
}

// Matches reports whether the core of term occurs inside text,
// both sides normalized
func Matches(term, text string) bool {
	core := CoreTerm(term)
	if core == "" {
		return false
	}
	return strings.Contains(Normalize(text), core)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// foldPunct maps punctuation and symbol runes to spaces so token
// boundaries survive commas, parens and hyphens in source coding
func foldPunct(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims the edges
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
