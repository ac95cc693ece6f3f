package internal

import (
	"regexp"
	"sort"
	"strings"
)

var (
	windowsPathPattern = regexp.MustCompile(`[A-Za-z]:\\(?:[^\s/:*?"<>|\r\n]+\\?)*|[A-Za-z]:/(?:[^\s/:*?"<>|\r\n]+/?)*`)
	unixPathPattern    = regexp.MustCompile(`/(?:[^\s/:*?"<>|\r\n]+/?)+`)
)

// ExtractPaths finds Windows and Unix style paths in free text. Results are
// unique and sorted; trailing sentence punctuation is not part of a path.
func ExtractPaths(text string) []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = strings.TrimRight(p, ".,;:!?)'\"")
		if p == "" || p == "/" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	winSpans := windowsPathPattern.FindAllStringIndex(text, -1)
	for _, span := range winSpans {
		add(text[span[0]:span[1]])
	}

	for _, span := range unixPathPattern.FindAllStringIndex(text, -1) {
		if insideSpan(span, winSpans) {
			continue
		}
		add(text[span[0]:span[1]])
	}

	sort.Strings(paths)
	return paths
}

func insideSpan(span []int, spans [][]int) bool {
	for _, s := range spans {
		if span[0] >= s[0] && span[1] <= s[1] {
			return true
		}
	}
	return false
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// stripCodeFence removes a surrounding markdown code fence, which local
// models tend to add around JSON answers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
