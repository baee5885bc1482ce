package textdiff

import (
	"strings"
	"testing"
)

func apply(content string, hunks []Hunk) string {
	for _, h := range hunks {
		if h.OldText == "" {
			content += h.NewText
			continue
		}
		idx := strings.Index(content, h.OldText)
		if idx < 0 {
			return "<not applicable>"
		}
		content = content[:idx] + h.NewText + content[idx+len(h.OldText):]
	}
	return content
}

func TestUnified(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
		want   string
	}{
		{
			name:   "changed line",
			before: "a\nb\nc\n",
			after:  "a\nB\nc\n",
			want:   "--- a/x.txt\n+++ b/x.txt\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n",
		},
		{
			name:   "new file",
			before: "",
			after:  "x\ny",
			want:   "--- /dev/null\n+++ b/x.txt\n@@ -0,0 +1,2 @@\n+x\n+y\n",
		},
		{
			name:   "unchanged",
			before: "same\n",
			after:  "same\n",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unified("x.txt", tt.before == "", Lines(tt.before, tt.after), 3)
			if got != tt.want {
				t.Errorf("Unified() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestUnified_SeparateHunks(t *testing.T) {
	before := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n"
	after := "one\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\ntwelve\n"
	want := "--- a/n.txt\n+++ b/n.txt\n" +
		"@@ -1,4 +1,4 @@\n-1\n+one\n 2\n 3\n 4\n" +
		"@@ -9,4 +9,4 @@\n 9\n 10\n 11\n-12\n+twelve\n"
	if got := Unified("n.txt", false, Lines(before, after), 3); got != want {
		t.Errorf("Unified() =\n%s\nwant\n%s", got, want)
	}
}

func TestStats(t *testing.T) {
	added, removed := Stats(Lines("a\nb\nc\n", "a\nx\ny\n"))
	if added != 2 || removed != 2 {
		t.Errorf("Stats() = (%d, %d), want (2, 2)", added, removed)
	}
}

func TestHunks(t *testing.T) {
	tests := []struct {
		name      string
		before    string
		after     string
		wantHunks int
	}{
		{"no change", "a\nb\n", "a\nb\n", 0},
		{"new content", "", "hello\n", 1},
		{"single line", "a\nb\nc\nd\ne\n", "a\nb\nC\nd\ne\n", 1},
		{"two distant changes", "1\n2\n3\n4\n5\n6\n7\n8\n", "one\n2\n3\n4\n5\n6\n7\neight\n", 2},
		{"adjacent changes merge", "1\n2\n3\n4\n", "one\n2\nthree\n4\n", 1},
		{"repeated lines", "x\ny\nx\ny\nx\n", "x\ny\nx\nY\nx\n", 1},
		{"missing final newline", "a\nb", "a\nb\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hunks := Hunks(tt.before, tt.after)
			if len(hunks) != tt.wantHunks {
				t.Errorf("Hunks() = %d hunks %q, want %d", len(hunks), hunks, tt.wantHunks)
			}
			if got := apply(tt.before, hunks); got != tt.after {
				t.Errorf("applying hunks = %q, want %q", got, tt.after)
			}
		})
	}
}
