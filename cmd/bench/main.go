package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/youruser/quill/internal/diff"
)

//go:embed testdata/*
var testdataFS embed.FS

// benchCase is one source/expected pair from testdata/.
type benchCase struct {
	name     string // display name
	source   string // filename in testdata/
	expected string // expected filename in testdata/
}

type benchResult struct {
	name     string
	passed   bool
	err      string // error details for failures
	segments int
	added    int
	deleted  int
	segsPer  time.Duration
	applyPer time.Duration
}

func main() {
	iters := 1000
	caseFilter := 0 // 0 = run all
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "--iters=") {
			fmt.Sscanf(strings.TrimPrefix(arg, "--iters="), "%d", &iters)
		}
		if strings.HasPrefix(arg, "--case=") {
			fmt.Sscanf(strings.TrimPrefix(arg, "--case="), "%d", &caseFilter)
		}
	}
	if iters < 1 {
		iters = 1
	}

	cases, err := discoverCases()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading testdata: %v\n", err)
		os.Exit(1)
	}
	if len(cases) == 0 {
		fmt.Fprintf(os.Stderr, "no testdata pairs found\n")
		os.Exit(1)
	}

	// Header
	fmt.Printf("diff benchmark, %d iterations per case\n", iters)
	if caseFilter > 0 {
		fmt.Printf("  (running case %d only)\n", caseFilter)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	passed := 0
	total := 0
	for i, bc := range cases {
		if caseFilter > 0 && i+1 != caseFilter {
			continue
		}
		total++
		result := runCase(bc, iters)
		if result.passed {
			passed++
		}
		printResult(i, len(cases), result)
	}

	// Summary
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Result: %d/%d passed\n", passed, total)
}

// discoverCases pairs every testdata file with its _expected sibling.
func discoverCases() ([]benchCase, error) {
	entries, err := testdataFS.ReadDir("testdata")
	if err != nil {
		return nil, err
	}

	var cases []benchCase
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, "_expected") {
			continue
		}
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		expected := base + "_expected" + ext
		if _, err := testdataFS.ReadFile("testdata/" + expected); err != nil {
			continue
		}

		display := base
		if idx := strings.Index(display, "_"); idx >= 0 {
			display = display[idx+1:]
		}
		display = strings.ReplaceAll(display, "_", " ")
		cases = append(cases, benchCase{name: display, source: name, expected: expected})
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].source < cases[j].source })
	return cases, nil
}

func runCase(bc benchCase, iters int) benchResult {
	result := benchResult{name: bc.name}

	src, err := testdataFS.ReadFile("testdata/" + bc.source)
	if err != nil {
		result.err = fmt.Sprintf("read source %s: %v", bc.source, err)
		return result
	}
	exp, err := testdataFS.ReadFile("testdata/" + bc.expected)
	if err != nil {
		result.err = fmt.Sprintf("read expected %s: %v", bc.expected, err)
		return result
	}
	original := string(src)
	expected := string(exp)

	segs := diff.Segments(original, expected)
	result.segments = len(segs)
	for _, s := range segs {
		switch s.Kind {
		case diff.SegAdded:
			result.added++
		case diff.SegDeleted:
			result.deleted++
		}
	}

	// Correctness first: a whole-document patch must reproduce the
	// expected text exactly before the timing loops mean anything.
	res := diff.Result{
		Original:    original,
		Replacement: expected,
		From:        0,
		To:          len(original),
		BaseSum:     diff.Checksum(original),
	}
	applied, err := diff.ApplyChecked(original, res)
	if err != nil {
		result.err = fmt.Sprintf("apply: %v", err)
		return result
	}
	if applied != expected {
		result.err = describeMismatch(applied, expected)
		return result
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		diff.Segments(original, expected)
	}
	result.segsPer = time.Since(start) / time.Duration(iters)

	start = time.Now()
	for i := 0; i < iters; i++ {
		diff.ApplyChecked(original, res)
	}
	result.applyPer = time.Since(start) / time.Duration(iters)

	result.passed = true
	return result
}

func printResult(index, total int, r benchResult) {
	label := fmt.Sprintf("[%d/%d] %s", index+1, total, r.name)

	// Pad with dots to align result
	dots := 40 - len(label)
	if dots < 3 {
		dots = 3
	}

	if r.passed {
		fmt.Printf("%s %s %d segs (+%d/-%d) | Segments %v | Apply %v\n",
			label, strings.Repeat(".", dots), r.segments, r.added, r.deleted, r.segsPer, r.applyPer)
	} else {
		fmt.Printf("%s %s FAIL\n", label, strings.Repeat(".", dots))
		fmt.Printf("      %s\n", r.err)
	}
}

// describeMismatch finds the first differing line between got and want.
func describeMismatch(got, want string) string {
	gotLines := strings.Split(got, "\n")
	wantLines := strings.Split(want, "\n")

	maxLines := len(gotLines)
	if len(wantLines) > maxLines {
		maxLines = len(wantLines)
	}

	for i := 0; i < maxLines; i++ {
		var g, w string
		if i < len(gotLines) {
			g = gotLines[i]
		}
		if i < len(wantLines) {
			w = wantLines[i]
		}
		if g != w {
			// Truncate long lines for display
			if len(g) > 60 {
				g = g[:57] + "..."
			}
			if len(w) > 60 {
				w = w[:57] + "..."
			}
			return fmt.Sprintf("output mismatch at line %d: got %q, want %q", i+1, g, w)
		}
	}

	return "output mismatch (unknown difference)"
}
