package clinterm

import (
	"testing"
)

// Test table covers each stage and combined pipelines.
func TestNormalize_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{
			name: "identity ascii",
			in:   "diabetes",
			out:  "diabetes",
		},
		{
			name: "utf8 repair drops invalid bytes",
			in:   string([]byte{0xff, 'f', 'l', 'u', 0x80, ' ', 'a'}),
			out:  "flu a",
		},
		{
			name: "case fold",
			in:   "HyperTension",
			out:  "hypertension",
		},
		{
			name: "remove zero-widths",
			in:   "an​emi‍a", // ZERO WIDTH SPACE + ZERO WIDTH JOINER
			out:  "anemia",
		},
		{
			name: "remove combining marks",
			in:   "Sjögren", // combining diaeresis
			out:  "sjogren",
		},
		{
			name: "width fold fullwidth",
			in:   "ＣＯＰＤ exacerbation",
			out:  "copd exacerbation",
		},
		{
			name: "nfkc ligature",
			in:   "insuﬃciency", // ffi ligature
			out:  "insufficiency",
		},
		{
			name: "punctuation to spaces",
			in:   "Diabetes mellitus, type 2 (disorder)",
			out:  "diabetes mellitus type 2 disorder",
		},
		{
			name: "collapse whitespace",
			in:   "a\t\tb\nc   d",
			out:  "a b c d",
		},
		{
			name: "trim edges",
			in:   "  asthma  ",
			out:  "asthma",
		},
		{
			name: "empty",
			in:   "",
			out:  "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.out {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.out)
			}
		})
	}
}

func TestCoreTerm_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{
			name: "verbose source coding",
			in:   "Diabetes mellitus, type 2 (disorder)",
			out:  "diabetes",
		},
		{
			name: "leading qualifier skipped",
			in:   "Chronic kidney disease stage 3",
			out:  "kidney",
		},
		{
			name: "short term is its own core",
			in:   "asthma",
			out:  "asthma",
		},
		{
			name: "numbers skipped",
			in:   "2 hypertension",
			out:  "hypertension",
		},
		{
			name: "all qualifiers falls back to whole string",
			in:   "type 2",
			out:  "type 2",
		},
		{
			name: "empty",
			in:   "",
			out:  "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoreTerm(tc.in); got != tc.out {
				t.Fatalf("CoreTerm(%q) = %q, want %q", tc.in, got, tc.out)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		term string
		text string
		want bool
	}{
		{
			name: "short filter matches verbose coding",
			term: "diabetes",
			text: "Diabetes mellitus, type 2 (disorder)",
			want: true,
		},
		{
			name: "verbose filter matches verbose coding",
			term: "Diabetes mellitus",
			text: "Diabetes mellitus, type 2",
			want: true,
		},
		{
			name: "case and punctuation insensitive",
			term: "COPD",
			text: "copd, exacerbation",
			want: true,
		},
		{
			name: "no match",
			term: "asthma",
			text: "Diabetes mellitus, type 2",
			want: false,
		},
		{
			name: "empty term never matches",
			term: "",
			text: "anything",
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.term, tc.text); got != tc.want {
				t.Fatalf("Matches(%q, %q) = %v, want %v", tc.term, tc.text, got, tc.want)
			}
		})
	}
}

func TestSanitize_DropsControls(t *testing.T) {
	in := "ane\x00mia\x7f ok"
	if got := Sanitize(in); got != "anemia ok" {
		t.Fatalf("Sanitize(%q) = %q", in, got)
	}
}
