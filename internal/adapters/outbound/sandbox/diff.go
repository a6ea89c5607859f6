package sandbox

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// changeSummary reports the line-level change between two versions of a file.
func changeSummary(before, after string) string {
	if before == after {
		return "no change"
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	added, removed := countLines(diffs)
	return fmt.Sprintf("+%d -%d lines", added, removed)
}

func countLines(diffs []diffmatchpatch.Diff) (added, removed int) {
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if d.Text != "" && !strings.HasSuffix(d.Text, "\n") {
			n++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}
