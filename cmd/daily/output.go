package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/4thel00z/daily/internal"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	addedLabel    = color.New(color.FgGreen).SprintFunc()
	removedLabel  = color.New(color.FgRed).SprintFunc()
	modifiedLabel = color.New(color.FgYellow).SprintFunc()
	headerLabel   = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimLabel      = color.New(color.Faint).SprintFunc()
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func changeLabel(t internal.ChangeType) string {
	switch t {
	case internal.ChangeAdded:
		return addedLabel(string(t))
	case internal.ChangeRemoved:
		return removedLabel(string(t))
	default:
		return modifiedLabel(string(t))
	}
}

// printChangeSets lists working-tree changes per repository. Nil slots are
// repositories that could not be read.
func printChangeSets(w io.Writer, paths []string, sets []*internal.ChangeSet, showDiffs bool) {
	for i, cs := range sets {
		if cs == nil {
			fmt.Fprintf(w, "%s %s\n", headerLabel(paths[i]), removedLabel("(unavailable)"))
			continue
		}

		fmt.Fprintln(w, headerLabel(cs.Repo.Label))
		if cs.IsEmpty() {
			fmt.Fprintln(w, dimLabel("  no uncommitted changes"))
			continue
		}

		for _, c := range internal.ChangeList(cs) {
			line := fmt.Sprintf("  %s %s", changeLabel(c.Type), c.File)
			if c.Insertions+c.Deletions > 0 {
				line += dimLabel(fmt.Sprintf(" (+%d/-%d)", c.Insertions, c.Deletions))
			}
			fmt.Fprintln(w, line)
		}

		if showDiffs {
			for _, d := range cs.Diffs {
				printDiff(w, d.Diff)
			}
		}
	}
}

func printHistory(w io.Writer, paths []string, results []*internal.HistoryResult, showDiffs bool) {
	now := time.Now()

	for i, h := range results {
		if h == nil {
			fmt.Fprintf(w, "%s %s\n", headerLabel(paths[i]), removedLabel("(unavailable)"))
			continue
		}

		title := h.Repo.Label
		if h.Branch != "" {
			title += " [" + h.Branch + "]"
		}
		fmt.Fprintln(w, headerLabel(title))

		if len(h.Commits) == 0 {
			fmt.Fprintln(w, dimLabel("  no commits"))
			continue
		}

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Commit", "When", "Author", "Message", "Files"})
		for _, c := range h.Commits {
			t.AppendRow(table.Row{
				shortHash(c.Hash),
				humanize.RelTime(c.When, now, "ago", "from now"),
				c.AuthorName,
				firstLine(c.Message),
				len(c.Files),
			})
		}
		t.Render()

		if showDiffs {
			for _, d := range h.Diffs {
				printDiff(w, d.Diff)
			}
		}
	}
}

// printDiff highlights the patch when writing to a color terminal.
func printDiff(w io.Writer, diff string) {
	if diff == "" {
		return
	}
	if w == io.Writer(os.Stdout) && !color.NoColor {
		if err := quick.Highlight(w, diff, "diff", "terminal256", "monokai"); err == nil {
			fmt.Fprintln(w)
			return
		}
	}
	fmt.Fprintln(w, strings.TrimRight(diff, "\n"))
}

func printStatus(w io.Writer, out *internal.StatusOutput) {
	if out.Backend.Available {
		fmt.Fprintf(w, "%s %s\n", addedLabel("backend:"), out.Backend.Message)
	} else {
		fmt.Fprintf(w, "%s %s\n", removedLabel("backend:"), out.Backend.Message)
	}

	if len(out.Repositories) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Repository", "Branch", "Identity", "Path"})
	for _, r := range out.Repositories {
		branch := r.Branch
		if !r.Available {
			branch = "unavailable"
		}
		t.AppendRow(table.Row{r.Label, branch, r.Identity.String(), r.Path})
	}
	t.Render()
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
