package tool

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is the number of unchanged lines shown around each change.
const diffContext = 3

// unifiedDiff renders a line diff from before to after with file headers.
// Unchanged runs longer than twice diffContext are elided.
func unifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}

	diffs := lineDiffs(before, after)

	var builder strings.Builder
	builder.WriteString(color.RedString("--- %s", path) + "\n")
	builder.WriteString(color.GreenString("+++ %s", path) + "\n")

	for idx, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				builder.WriteString(color.GreenString("+%s", l) + "\n")
			}
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				builder.WriteString(color.RedString("-%s", l) + "\n")
			}
		case diffmatchpatch.DiffEqual:
			writeContext(&builder, lines, idx == 0, idx == len(diffs)-1)
		}
	}

	return builder.String()
}

func writeContext(builder *strings.Builder, lines []string, first, last bool) {
	head, tail := diffContext, diffContext
	if first {
		head = 0
	}
	if last {
		tail = 0
	}

	if len(lines) <= head+tail {
		for _, l := range lines {
			builder.WriteString(" " + l + "\n")
		}
		return
	}

	for _, l := range lines[:head] {
		builder.WriteString(" " + l + "\n")
	}
	builder.WriteString(color.CyanString("@@ %d unchanged lines @@", len(lines)-head-tail) + "\n")
	for _, l := range lines[len(lines)-tail:] {
		builder.WriteString(" " + l + "\n")
	}
}

// DiffStats counts added and deleted lines between two texts.
func DiffStats(before, after string) (int, int) {
	additions, deletions := 0, 0
	for _, d := range lineDiffs(before, after) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}
	return additions, deletions
}

func lineDiffs(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}

// DiffSummary describes the size of an edit, e.g. "+3 -1".
func DiffSummary(before, after string) string {
	add, del := DiffStats(before, after)
	return fmt.Sprintf("+%d -%d", add, del)
}
