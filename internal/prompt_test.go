package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPromptsHavePlaceholders(t *testing.T) {
	p := NewPromptAssembler("")

	tests := map[string][]string{
		PromptDailyUpdate:  {PlaceholderContext, PlaceholderWorkSummary},
		PromptFileChanges:  {PlaceholderFileName, PlaceholderModifications},
		PromptExtractPaths: {PlaceholderContext},
	}
	for name, placeholders := range tests {
		tmpl, err := p.Template(name)
		require.NoError(t, err, name)
		for _, ph := range placeholders {
			assert.Contains(t, tmpl, ph, "%s should contain %s", name, ph)
		}
	}
}

func TestPromptOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptFileChanges+".txt"), []byte("custom {file_name}"), 0644))

	p := NewPromptAssembler(dir)

	out, err := p.Render(PromptFileChanges, Replacement{Placeholder: PlaceholderFileName, Value: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, "custom a.go", out)

	builtin, err := p.Template(PromptDailyUpdate)
	require.NoError(t, err)
	assert.Contains(t, builtin, PlaceholderContext, "missing override falls back to built-in")
}

func TestPromptUnknown(t *testing.T) {
	_, err := NewPromptAssembler(t.TempDir()).Template("nope")
	assert.ErrorIs(t, err, ErrUnknownPrompt)
}

func TestApplyReplacementsSinglePass(t *testing.T) {
	out := ApplyReplacements("{a} {b}",
		Replacement{Placeholder: "{a}", Value: "{b}"},
		Replacement{Placeholder: "{b}", Value: "x"},
	)
	assert.Equal(t, "{b} x", out)

	out = ApplyReplacements("{a}",
		Replacement{Placeholder: "{a}", Value: "first"},
		Replacement{Placeholder: "{a}", Value: "second"},
		Replacement{Placeholder: "", Value: "ignored"},
	)
	assert.Equal(t, "first", out)
}

func TestDailyReplacementsKeepPlaceholdersInValues(t *testing.T) {
	dc := DailyContext{
		Date: time.Date(2025, 7, 3, 9, 0, 0, 0, time.Local),
		History: []*HistoryResult{{
			Repo:         RepositoryRef{Label: "api"},
			ChangedFiles: []string{"tmpl.txt"},
			Diffs:        []FileDiff{{Path: "tmpl.txt", Diff: "+see {daily_update_context}\n"}},
		}},
		IncludeDiffs: true,
	}
	notes := "literal {file_changes_context} and {daily_update_context}"

	prompt := ApplyReplacements("{work_summary}|{file_changes_context}", dc.Replacements(notes)...)

	parts := strings.SplitN(prompt, "|", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, notes, parts[0])
	assert.Contains(t, parts[1], "+see {daily_update_context}")
	assert.NotContains(t, parts[1], "Daily status for")
}

func TestExportPrompts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptDailyUpdate+".txt"), []byte("mine"), 0644))

	require.NoError(t, ExportPrompts(dir))

	kept, err := os.ReadFile(filepath.Join(dir, PromptDailyUpdate+".txt"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(kept))
	assert.FileExists(t, filepath.Join(dir, PromptExtractPaths+".txt"))
	assert.FileExists(t, filepath.Join(dir, PromptFileChanges+".txt"))
}

func TestDailyContext(t *testing.T) {
	when := time.Date(2025, 7, 2, 10, 0, 0, 0, time.Local)
	dc := DailyContext{
		Date: time.Date(2025, 7, 3, 9, 0, 0, 0, time.Local),
		History: []*HistoryResult{
			nil,
			{
				Repo:         RepositoryRef{Label: "api"},
				Branch:       "main",
				Commits:      []CommitRecord{{Hash: "abc", AuthorName: "Alice", When: when, Message: "Fix login\n\nlong body"}},
				ChangedFiles: []string{"auth.go"},
				Diffs:        []FileDiff{{Path: "auth.go", Diff: "diff --git a/auth.go b/auth.go\n+fix\n"}},
			},
		},
		Current: []*ChangeSet{{
			Repo:  RepositoryRef{Label: "web"},
			Added: []string{"page.md"},
		}},
		FileSummaries: []FileSummary{{Repo: "api", Path: "auth.go", Summary: "Fixed token expiry."}},
		IncludeDiffs:  true,
	}

	assert.Equal(t, []string{"- 2025-07-02 Alice: Fix login"}, dc.CommitLines())

	text := dc.String()
	assert.Contains(t, text, "Thursday, 03 July 2025")
	assert.Contains(t, text, "Summary for api/auth.go:\nFixed token expiry.")
	assert.Contains(t, text, "Committed in api (main):\n- Go source: auth.go")
	assert.Contains(t, text, "Uncommitted in web:\n- ADDED: page.md - Markdown documentation: page.md")
	assert.Contains(t, text, "### api/auth.go\ndiff --git")

	prompt := ApplyReplacements("{work_summary}|{daily_update_context}", dc.Replacements("notes")...)
	assert.True(t, strings.HasPrefix(prompt, "notes|Daily status for"))
}

func TestDailyContextEmpty(t *testing.T) {
	text := DailyContext{Date: time.Now()}.String()
	assert.Contains(t, text, "No commits found.")
	assert.NotContains(t, text, "File changes:")
}
