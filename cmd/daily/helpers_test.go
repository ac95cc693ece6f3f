package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/4thel00z/daily/internal"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// testApp builds an app whose scopes live in temporary directories.
func testApp(t *testing.T) (*app, string) {
	t.Helper()
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	resolver := internal.NewScopeResolverAt(home, work)
	return &app{resolver: resolver, newSession: newSessionFactory(resolver)}, work
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test", a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// makeRepo creates a repository with one commit of auth.go on 2025-07-02 and
// an uncommitted edit to it.
func makeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	write := func(content string) {
		if err := os.WriteFile(filepath.Join(dir, "auth.go"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write("package auth\n")
	if _, err := wt.Add("auth.go"); err != nil {
		t.Fatal(err)
	}
	when := time.Date(2025, 7, 2, 10, 0, 0, 0, time.Local)
	sig := &object.Signature{Name: "Alice", Email: "alice@example.com", When: when}
	if _, err := wt.Commit("Add auth package", &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		t.Fatal(err)
	}

	write("package auth\n\nfunc Login() {}\n")
	return dir
}
