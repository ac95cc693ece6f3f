package internal

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/utils/binary"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContextLines = 3

// renderUnifiedDiff produces a git-style unified diff between two versions of
// one file. Binary content is reported instead of diffed.
func renderUnifiedDiff(path string, from, to []byte) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)

	if isBinary(from) || isBinary(to) {
		b.WriteString("(binary files differ)\n")
		return b.String(), nil
	}

	fromFile := "a/" + path
	if from == nil {
		fromFile = "/dev/null"
	}
	toFile := "b/" + path
	if to == nil {
		toFile = "/dev/null"
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(string(from)),
		B:        splitLines(string(to)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  diffContextLines,
	})
	if err != nil {
		return "", fmt.Errorf("render diff: %w", err)
	}
	if text == "" {
		return "", nil
	}

	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// splitLines is difflib.SplitLines without the phantom empty line it adds
// after a trailing newline or for empty input.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	last := len(lines) - 1
	if lines[last] == "" {
		return lines[:last]
	}
	lines[last] += "\n"
	return lines
}

func isBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	bin, err := binary.IsBinary(bytes.NewReader(content))
	return err == nil && bin
}

// LineStats counts the lines inserted into and deleted from `from` to obtain `to`.
func LineStats(from, to string) (insertions, deletions int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			insertions += n
		case diffmatchpatch.DiffDelete:
			deletions += n
		}
	}
	return insertions, deletions
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
