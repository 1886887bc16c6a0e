package diff

import (
	"strings"
	"testing"
)

func TestSegments_EqualInputs(t *testing.T) {
	segs := Segments("a\nb\nc\n", "a\nb\nc\n")
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for i, s := range segs {
		if s.Kind != SegUnchanged {
			t.Errorf("segment %d kind = %q, want unchanged", i, s.Kind)
		}
	}
}

func TestSegments_ChangedLine(t *testing.T) {
	segs := Segments("a\nb\nc\n", "a\nX\nc\n")
	want := []Segment{
		{SegUnchanged, "a\n"},
		{SegDeleted, "b\n"},
		{SegAdded, "X\n"},
		{SegUnchanged, "c\n"},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestSegments_ReplacementLonger(t *testing.T) {
	segs := Segments("a\n", "a\nb\nc\n")
	want := []Segment{
		{SegUnchanged, "a\n"},
		{SegAdded, "b\n"},
		{SegAdded, "c\n"},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %+v, want %+v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestSegments_OriginalLonger(t *testing.T) {
	segs := Segments("a\nb\nc\n", "a\n")
	want := []Segment{
		{SegUnchanged, "a\n"},
		{SegDeleted, "b\n"},
		{SegDeleted, "c\n"},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %+v, want %+v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestSegments_ShiftedBlockIsNotMinimal(t *testing.T) {
	// Inserting a line at the top misaligns every following pair. The
	// sequential walk reports them all as delete+add; that is the
	// intended behavior, not a bug.
	segs := Segments("a\nb\n", "new\na\nb\n")
	for _, s := range segs {
		if s.Kind == SegUnchanged {
			t.Fatalf("expected no unchanged segments, got %+v", segs)
		}
	}
}

func TestSegments_RoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		original string
		repl     string
	}{
		{"both empty", "", ""},
		{"empty original", "", "a\nb\n"},
		{"empty replacement", "a\nb\n", ""},
		{"no trailing newline", "a\nb", "a\nc"},
		{"trailing newline mismatch", "a\nb", "a\nb\n"},
		{"disjoint", "x\ny\nz\n", "1\n2\n"},
		{"single line no newline", "hello", "goodbye"},
		{"blank lines", "a\n\n\nb\n", "a\n\nb\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segs := Segments(tc.original, tc.repl)

			var fromOrig, fromRepl strings.Builder
			for _, s := range segs {
				if s.Kind != SegAdded {
					fromOrig.WriteString(s.Text)
				}
				if s.Kind != SegDeleted {
					fromRepl.WriteString(s.Text)
				}
			}
			if fromOrig.String() != tc.original {
				t.Errorf("unchanged+deleted = %q, want original %q", fromOrig.String(), tc.original)
			}
			if fromRepl.String() != tc.repl {
				t.Errorf("unchanged+added = %q, want replacement %q", fromRepl.String(), tc.repl)
			}
		})
	}
}

func TestSplitKeepEnds(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a\n"}},
		{"a\nb", []string{"a\n", "b"}},
		{"a\nb\n", []string{"a\n", "b\n"}},
		{"\n", []string{"\n"}},
		{"\n\n", []string{"\n", "\n"}},
	}
	for _, tc := range cases {
		got := splitKeepEnds(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("splitKeepEnds(%q) = %q, want %q", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitKeepEnds(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
