// Package textdiff computes line diffs and renders them as unified diffs or
// as minimal text-substitution hunks.
package textdiff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op marks a diff line as kept, inserted, or deleted.
type Op byte

const (
	Equal  Op = ' '
	Insert Op = '+'
	Delete Op = '-'
)

// Line is one line of a diff. Text keeps its trailing newline, if any.
type Line struct {
	Op   Op
	Text string
}

// Lines returns the line-level diff from before to after.
func Lines(before, after string) []Line {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []Line
	for _, d := range diffs {
		op := Equal
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = Insert
		case diffmatchpatch.DiffDelete:
			op = Delete
		}
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text != "" {
				out = append(out, Line{Op: op, Text: text})
			}
		}
	}
	return out
}

// Stats counts inserted and deleted lines.
func Stats(lines []Line) (added, removed int) {
	for _, l := range lines {
		switch l.Op {
		case Insert:
			added++
		case Delete:
			removed++
		}
	}
	return added, removed
}

// span is a half-open range of diff line indexes.
type span struct{ start, end int }

// groups returns the ranges around changed lines, each padded with up to
// context unchanged lines. Ranges closer than that are merged.
func groups(lines []Line, context int) []span {
	var out []span
	for i, l := range lines {
		if l.Op == Equal {
			continue
		}
		s := span{start: max(0, i-context), end: min(len(lines), i+context+1)}
		if n := len(out); n > 0 && s.start <= out[n-1].end {
			out[n-1].end = max(out[n-1].end, s.end)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Unified renders lines as a unified diff of path. An empty string means
// there is no change. isNew labels the old side /dev/null.
func Unified(path string, isNew bool, lines []Line, context int) string {
	hunks := groups(lines, context)
	if len(hunks) == 0 {
		return ""
	}

	// oldBefore[i] and newBefore[i] count the lines of each side that precede position i.
	oldBefore := make([]int, len(lines)+1)
	newBefore := make([]int, len(lines)+1)
	for i, l := range lines {
		oldBefore[i+1], newBefore[i+1] = oldBefore[i], newBefore[i]
		if l.Op != Insert {
			oldBefore[i+1]++
		}
		if l.Op != Delete {
			newBefore[i+1]++
		}
	}

	var b strings.Builder
	from := "a/" + path
	if isNew {
		from = "/dev/null"
	}
	fmt.Fprintf(&b, "--- %s\n+++ b/%s\n", from, path)
	for _, h := range hunks {
		oldCount := oldBefore[h.end] - oldBefore[h.start]
		newCount := newBefore[h.end] - newBefore[h.start]
		oldStart, newStart := oldBefore[h.start], newBefore[h.start]
		if oldCount > 0 {
			oldStart++
		}
		if newCount > 0 {
			newStart++
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		for _, l := range lines[h.start:h.end] {
			b.WriteByte(byte(l.Op))
			b.WriteString(strings.TrimSuffix(l.Text, "\n"))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Hunk is a substitution of OldText by NewText.
type Hunk struct {
	OldText string
	NewText string
}

// maxHunkContext bounds how far Hunks widens context to make a hunk unique.
const maxHunkContext = 3

// Hunks returns substitutions that turn before into after when applied in
// order, each to the first occurrence of its old text in the live content.
// Hunks carry one line of context, widened as needed for the old text to be
// unique. When no hunk set reproduces after, a single whole-content
// substitution is returned. Equal inputs produce no hunks.
func Hunks(before, after string) []Hunk {
	if before == after {
		return nil
	}
	if before == "" {
		return []Hunk{{NewText: after}}
	}

	lines := Lines(before, after)
	for context := 1; context <= maxHunkContext; context++ {
		var hunks []Hunk
		for _, g := range groups(lines, context) {
			var oldText, newText strings.Builder
			for _, l := range lines[g.start:g.end] {
				if l.Op != Insert {
					oldText.WriteString(l.Text)
				}
				if l.Op != Delete {
					newText.WriteString(l.Text)
				}
			}
			hunks = append(hunks, Hunk{OldText: oldText.String(), NewText: newText.String()})
		}
		if reproduces(before, after, hunks) {
			return hunks
		}
	}
	return []Hunk{{OldText: before, NewText: after}}
}

// reproduces reports whether applying hunks to before yields after, with
// every old text unique in before.
func reproduces(before, after string, hunks []Hunk) bool {
	content := before
	for _, h := range hunks {
		if h.OldText == "" || strings.Count(before, h.OldText) != 1 {
			return false
		}
		idx := strings.Index(content, h.OldText)
		if idx < 0 {
			return false
		}
		content = content[:idx] + h.NewText + content[idx+len(h.OldText):]
	}
	return content == after
}
