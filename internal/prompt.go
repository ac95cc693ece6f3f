package internal

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed prompts/*.txt
var builtinPrompts embed.FS

const (
	PromptDailyUpdate  = "summarize_daily_update"
	PromptFileChanges  = "summarize_file_changes"
	PromptExtractPaths = "extract_paths_and_activity"
)

const (
	PlaceholderContext       = "{daily_update_context}"
	PlaceholderFileChanges   = "{file_changes_context}"
	PlaceholderWorkSummary   = "{work_summary}"
	PlaceholderFileName      = "{file_name}"
	PlaceholderModifications = "{file_modifications}"
	PlaceholderDate          = "{date}"
)

// Replacement substitutes every occurrence of Placeholder with Value.
type Replacement struct {
	Placeholder string
	Value       string
}

// ApplyReplacements substitutes all placeholders in a single pass, so
// placeholder tokens inside substituted values are left as they are. When two
// replacements share a placeholder the first one wins.
func ApplyReplacements(template string, replacements ...Replacement) string {
	pairs := make([]string, 0, 2*len(replacements))
	for _, r := range replacements {
		if r.Placeholder == "" {
			continue
		}
		pairs = append(pairs, r.Placeholder, r.Value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// PromptAssembler loads named templates. Files in the override directory
// win over the built-in ones.
type PromptAssembler struct {
	dir string
}

func NewPromptAssembler(dir string) *PromptAssembler {
	return &PromptAssembler{dir: dir}
}

func (p *PromptAssembler) Template(name string) (string, error) {
	file := name + ".txt"

	if p.dir != "" {
		data, err := os.ReadFile(filepath.Join(p.dir, file))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}

	data, err := builtinPrompts.ReadFile("prompts/" + file)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}
	return string(data), nil
}

func (p *PromptAssembler) Render(name string, replacements ...Replacement) (string, error) {
	tmpl, err := p.Template(name)
	if err != nil {
		return "", err
	}
	return ApplyReplacements(tmpl, replacements...), nil
}

// ExportPrompts writes the built-in templates into dir so they can be
// edited. Existing files are kept.
func ExportPrompts(dir string) error {
	entries, err := builtinPrompts.ReadDir("prompts")
	if err != nil {
		return fmt.Errorf("list prompts: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create prompts dir: %w", err)
	}

	for _, e := range entries {
		target := filepath.Join(dir, e.Name())
		if _, err := os.Stat(target); err == nil {
			continue
		}
		data, err := builtinPrompts.ReadFile("prompts/" + e.Name())
		if err != nil {
			return fmt.Errorf("read prompt %s: %w", e.Name(), err)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return fmt.Errorf("write prompt %s: %w", e.Name(), err)
		}
	}
	return nil
}

type FileSummary struct {
	Repo    string
	Path    string
	Summary string
}

// DailyContext is the evidence for one daily update.
type DailyContext struct {
	Date          time.Time
	History       []*HistoryResult
	Current       []*ChangeSet
	FileSummaries []FileSummary
	IncludeDiffs  bool
}

// CommitLines renders "- <date> <author>: <message>" for every commit,
// repository by repository.
func (d DailyContext) CommitLines() []string {
	var lines []string
	for _, h := range d.History {
		if h == nil {
			continue
		}
		for _, c := range h.Commits {
			msg := strings.TrimSpace(c.Message)
			if i := strings.IndexByte(msg, '\n'); i >= 0 {
				msg = msg[:i]
			}
			if msg == "" {
				msg = c.Hash
			}
			lines = append(lines, fmt.Sprintf("- %s %s: %s", c.When.Format(time.DateOnly), c.AuthorName, msg))
		}
	}
	return lines
}

// FileChanges lists committed and uncommitted file changes, followed by the
// diffs when they were requested.
func (d DailyContext) FileChanges() string {
	var b strings.Builder

	for _, h := range d.History {
		if h == nil || len(h.ChangedFiles) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Committed in %s", h.Repo.Label)
		if h.Branch != "" {
			fmt.Fprintf(&b, " (%s)", h.Branch)
		}
		b.WriteString(":\n")
		for _, f := range h.ChangedFiles {
			fmt.Fprintf(&b, "- %s\n", DescribeChange(f))
		}
	}

	for _, cs := range d.Current {
		if cs.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "Uncommitted in %s:\n", cs.Repo.Label)
		for _, c := range ChangeList(cs) {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if d.IncludeDiffs {
		for _, pd := range append(MergeForPrompt(d.History), MergeForPrompt(d.Current)...) {
			if pd.Diff == "" {
				continue
			}
			fmt.Fprintf(&b, "\n### %s/%s\n%s\n", pd.RepoLabel, pd.Path, strings.TrimRight(pd.Diff, "\n"))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// String renders the full context block handed to the daily update template.
func (d DailyContext) String() string {
	var b strings.Builder

	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}
	fmt.Fprintf(&b, "Daily status for %s\n", date.Format("Monday, 02 January 2006"))

	if len(d.FileSummaries) > 0 {
		b.WriteString("\nFile summaries:\n")
		for _, s := range d.FileSummaries {
			fmt.Fprintf(&b, "Summary for %s/%s:\n%s\n\n", s.Repo, s.Path, strings.TrimSpace(s.Summary))
		}
	}

	b.WriteString("\nRecent commits:\n")
	if lines := d.CommitLines(); len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
	} else {
		b.WriteString("No commits found.")
	}
	b.WriteString("\n")

	if changes := d.FileChanges(); changes != "" {
		b.WriteString("\nFile changes:\n")
		b.WriteString(changes)
		b.WriteString("\n")
	}

	return b.String()
}

// Replacements returns the placeholders the daily update template uses.
func (d DailyContext) Replacements(workSummary string) []Replacement {
	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}
	return []Replacement{
		{Placeholder: PlaceholderWorkSummary, Value: workSummary},
		{Placeholder: PlaceholderDate, Value: date.Format(time.DateOnly)},
		{Placeholder: PlaceholderFileChanges, Value: d.FileChanges()},
		{Placeholder: PlaceholderContext, Value: d.String()},
	}
}
