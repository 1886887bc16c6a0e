package diff

import "strings"

// SegmentKind classifies one line of a computed diff.
type SegmentKind string

const (
	SegUnchanged SegmentKind = "unchanged"
	SegDeleted   SegmentKind = "deleted"
	SegAdded     SegmentKind = "added"
)

// Segment is one line-level piece of a diff, in source order.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
}

// Segments computes a line-level diff between original and replacement.
// Lines are aligned pairwise by index: equal pairs emit unchanged,
// unequal pairs emit deleted then added, and whichever side runs longer
// emits a pure deleted or added tail. This is deliberately not a
// minimal LCS diff; sequential alignment is deterministic and O(n),
// cheap enough to recompute on every streaming update while the
// replacement is still growing.
func Segments(original, replacement string) []Segment {
	origLines := splitKeepEnds(original)
	replLines := splitKeepEnds(replacement)

	var segs []Segment
	n := len(origLines)
	if len(replLines) < n {
		n = len(replLines)
	}
	for i := 0; i < n; i++ {
		if origLines[i] == replLines[i] {
			segs = append(segs, Segment{Kind: SegUnchanged, Text: origLines[i]})
		} else {
			segs = append(segs, Segment{Kind: SegDeleted, Text: origLines[i]})
			segs = append(segs, Segment{Kind: SegAdded, Text: replLines[i]})
		}
	}
	for i := n; i < len(origLines); i++ {
		segs = append(segs, Segment{Kind: SegDeleted, Text: origLines[i]})
	}
	for i := n; i < len(replLines); i++ {
		segs = append(segs, Segment{Kind: SegAdded, Text: replLines[i]})
	}
	return segs
}

// splitKeepEnds splits content on \n keeping the terminator on each
// line, so that concatenating the pieces reproduces the input exactly.
// Trailing content without a final newline counts as a line; empty
// input has no lines.
func splitKeepEnds(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	for {
		idx := strings.IndexByte(content, '\n')
		if idx < 0 {
			return append(lines, content)
		}
		lines = append(lines, content[:idx+1])
		content = content[idx+1:]
		if content == "" {
			return lines
		}
	}
}
