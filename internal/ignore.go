package internal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFilename lists gitignore-style patterns for paths that never appear
// in a daily update (lock files, generated code, vendored trees).
const IgnoreFilename = ".dailyignore"

type IgnoreMatcher struct {
	patterns []gitignore.Pattern
	basePath string
}

func NewIgnoreMatcher(basePath string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{
		basePath: basePath,
	}

	ignorePath := filepath.Join(basePath, IgnoreFilename)
	patterns, err := parseIgnoreFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	m.patterns = patterns
	return m, nil
}

// NewIgnoreMatcherFromPatterns builds a matcher from pattern lines, mainly for
// patterns supplied through configuration.
func NewIgnoreMatcherFromPatterns(basePath string, lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{basePath: basePath}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, gitignore.ParsePattern(line, nil))
	}
	return m
}

// Match reports whether an absolute path under basePath is ignored.
func (m *IgnoreMatcher) Match(path string) bool {
	relPath, err := filepath.Rel(m.basePath, path)
	if err != nil {
		return false
	}
	return m.MatchPath(filepath.ToSlash(relPath))
}

// MatchPath reports whether a slash-separated path relative to the
// repository root is ignored.
func (m *IgnoreMatcher) MatchPath(relPath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	pathParts := strings.Split(relPath, "/")

	ignored := false
	for _, p := range m.patterns {
		switch p.Match(pathParts, false) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}

func (m *IgnoreMatcher) Extend(other *IgnoreMatcher) {
	if other == nil {
		return
	}
	m.patterns = append(m.patterns, other.patterns...)
}

func parseIgnoreFile(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}
