package internal

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeRemoved  ChangeType = "REMOVED"
	ChangeModified ChangeType = "MODIFIED"
)

var extensionKinds = map[string]string{
	".py":   "Python script",
	".go":   "Go source",
	".md":   "Markdown documentation",
	".txt":  "Text file",
	".json": "JSON data/config",
	".yaml": "YAML config",
	".yml":  "YAML config",
}

// DescribeChange guesses what a file is from its extension.
func DescribeChange(path string) string {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return fmt.Sprintf("%s: %s", kind, path)
	}
	return fmt.Sprintf("File: %s", path)
}

type CodeChange struct {
	Repo        string
	Type        ChangeType
	File        string
	Description string
	Insertions  int
	Deletions   int
}

func (c CodeChange) String() string {
	line := fmt.Sprintf("%s: %s - %s", c.Type, c.File, c.Description)
	if c.Type == ChangeModified && c.Insertions+c.Deletions > 0 {
		line += fmt.Sprintf(" (Modified lines: %d)", c.Insertions+c.Deletions)
	}
	return line
}

// ChangeList flattens a change set into added, removed, then modified entries.
func ChangeList(cs *ChangeSet) []CodeChange {
	if cs == nil {
		return nil
	}

	stats := make(map[string]FileDiff, len(cs.Diffs))
	for _, d := range cs.Diffs {
		stats[d.Path] = d
	}

	changes := make([]CodeChange, 0, len(cs.Added)+len(cs.Removed)+len(cs.Modified))
	add := func(t ChangeType, paths []string) {
		for _, p := range paths {
			c := CodeChange{
				Repo:        cs.Repo.Label,
				Type:        t,
				File:        p,
				Description: DescribeChange(p),
			}
			if d, ok := stats[p]; ok {
				c.Insertions, c.Deletions = d.Insertions, d.Deletions
			}
			changes = append(changes, c)
		}
	}
	add(ChangeAdded, cs.Added)
	add(ChangeRemoved, cs.Removed)
	add(ChangeModified, cs.Modified)

	return changes
}
