package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	return &testRepo{t: t, dir: dir, repo: repo, wt: wt}
}

func (r *testRepo) write(path, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, path)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0644))
}

func (r *testRepo) remove(path string) {
	r.t.Helper()
	require.NoError(r.t, os.Remove(filepath.Join(r.dir, path)))
}

func (r *testRepo) stage(path string) {
	r.t.Helper()
	_, err := r.wt.Add(path)
	require.NoError(r.t, err)
}

func (r *testRepo) setIdentity(name, email string) {
	r.t.Helper()
	cfg, err := r.repo.Config()
	require.NoError(r.t, err)
	cfg.User.Name = name
	cfg.User.Email = email
	require.NoError(r.t, r.repo.SetConfig(cfg))
}

// commit stages the given paths (removing the ones missing from disk) and
// commits them as author at when.
func (r *testRepo) commit(msg string, author Identity, when time.Time, paths ...string) string {
	r.t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(r.dir, p)); os.IsNotExist(err) {
			_, err := r.wt.Remove(p)
			require.NoError(r.t, err)
			continue
		}
		r.stage(p)
	}

	sig := &object.Signature{Name: author.Name, Email: author.Email, When: when}
	hash, err := r.wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
	return hash.String()
}

func (r *testRepo) open(opts RepositoryOptions) *GitRepository {
	r.t.Helper()
	repo, err := OpenRepository(r.dir, opts)
	require.NoError(r.t, err)
	return repo
}

var (
	alice = Identity{Name: "Alice", Email: "alice@example.com"}
	bob   = Identity{Name: "Bob", Email: "bob@example.com"}
)

func day(s string, hour int) time.Time {
	d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func TestOpenRepositoryRejectsNonRepositories(t *testing.T) {
	plain := t.TempDir()

	_, err := OpenRepository(plain, RepositoryOptions{})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	_, err = OpenRepository(filepath.Join(plain, "missing"), RepositoryOptions{})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestOpenRepositoryRequiresRoot(t *testing.T) {
	r := newTestRepo(t)
	r.write("sub/file.txt", "x\n")

	_, err := OpenRepository(filepath.Join(r.dir, "sub"), RepositoryOptions{})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestRepositoryRefLabel(t *testing.T) {
	r := newTestRepo(t)
	repo := r.open(RepositoryOptions{})

	assert.Equal(t, filepath.Base(r.dir), repo.Ref().Label)
	assert.True(t, filepath.IsAbs(repo.Path()))
}

func TestResolveIdentityFallsBackPerField(t *testing.T) {
	r := newTestRepo(t)
	r.setIdentity("Local Name", "")

	repo := r.open(RepositoryOptions{GlobalIdentity: &Identity{Name: "Global", Email: "global@example.com"}})
	identity, ok := repo.ResolveIdentity()

	assert.True(t, ok)
	assert.Equal(t, "Local Name", identity.Name)
	assert.Equal(t, "global@example.com", identity.Email)
}

func TestResolveIdentityNone(t *testing.T) {
	r := newTestRepo(t)
	repo := r.open(RepositoryOptions{})

	identity, ok := repo.ResolveIdentity()
	assert.False(t, ok)
	assert.True(t, identity.IsZero())
}

func TestBranch(t *testing.T) {
	r := newTestRepo(t)
	repo := r.open(RepositoryOptions{})

	branch, err := repo.Branch()
	require.NoError(t, err)
	assert.Empty(t, branch, "unborn HEAD has no branch")

	r.write("a.txt", "a\n")
	r.commit("init", alice, day("2025-07-01", 9), "a.txt")

	branch, err = repo.Branch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCurrentChangesClassification(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "one\ntwo\n")
	r.write("b.txt", "b\n")
	r.write("c.txt", "c\n")
	r.commit("init", alice, day("2025-07-01", 9), "a.txt", "b.txt", "c.txt")

	r.write("a.txt", "one\nthree\n")
	r.remove("b.txt")
	r.write("d.txt", "untracked\n")
	r.write("e.txt", "staged\n")
	r.stage("e.txt")

	cs, err := r.open(RepositoryOptions{}).CurrentChanges(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"d.txt", "e.txt"}, cs.Added)
	assert.Equal(t, []string{"a.txt"}, cs.Modified)
	assert.Equal(t, []string{"b.txt"}, cs.Removed)
	assert.Empty(t, cs.Diffs)

	seen := map[string]int{}
	for _, p := range append(append(append([]string{}, cs.Added...), cs.Modified...), cs.Removed...) {
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "%s classified more than once", p)
	}
}

func TestCurrentChangesDiffs(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "one\ntwo\n")
	r.commit("init", alice, day("2025-07-01", 9), "a.txt")
	r.write("a.txt", "one\nthree\n")

	cs, err := r.open(RepositoryOptions{}).CurrentChanges(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, cs.Diffs, 1)

	d := cs.Diffs[0]
	assert.Equal(t, "a.txt", d.Path)
	assert.True(t, strings.HasPrefix(d.Diff, "diff --git a/a.txt b/a.txt\n"))
	assert.Contains(t, d.Diff, "-two")
	assert.Contains(t, d.Diff, "+three")
	assert.Equal(t, 1, d.Insertions)
	assert.Equal(t, 1, d.Deletions)

	diff, ok := cs.Diff("a.txt")
	assert.True(t, ok)
	assert.Equal(t, d.Diff, diff)
}

func TestCurrentChangesCleanTree(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "a\n")
	r.commit("init", alice, day("2025-07-01", 9), "a.txt")

	cs, err := r.open(RepositoryOptions{}).CurrentChanges(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, cs.IsEmpty())
}

func TestCurrentChangesIgnorePatterns(t *testing.T) {
	r := newTestRepo(t)
	r.write("keep.txt", "k\n")
	r.write("deps.lock", "l\n")
	r.write("vendor/lib.go", "package lib\n")

	cs, err := r.open(RepositoryOptions{Ignore: []string{"*.lock", "vendor/"}}).CurrentChanges(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, cs.Added)
}

func TestHistorySinceFiltersByDateAndAuthor(t *testing.T) {
	r := newTestRepo(t)
	r.write("f.txt", "1\n")
	r.commit("before window", alice, day("2025-06-30", 12), "f.txt")
	r.write("f.txt", "2\n")
	r.commit("first in window", alice, day("2025-07-01", 10), "f.txt")
	r.write("g.txt", "bob\n")
	r.commit("bob's work", bob, day("2025-07-02", 10), "g.txt")
	r.write("f.txt", "3\n")
	r.commit("latest", alice, day("2025-07-03", 10), "f.txt")

	since, err := ParseSinceDate("2025-07-01")
	require.NoError(t, err)

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since:        since,
		Author:       "ALICE",
		WithMessages: true,
	})
	require.NoError(t, err)

	require.Len(t, res.Commits, 2)
	assert.Equal(t, "latest", res.Commits[0].Message)
	assert.Equal(t, "first in window", res.Commits[1].Message)
	assert.Equal(t, []string{"f.txt"}, res.ChangedFiles)
	assert.Equal(t, "master", res.Branch)
	for _, c := range res.Commits {
		assert.False(t, c.When.Before(since))
	}
}

func TestHistorySinceAuthorMatchesNameOrEmail(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "a\n")
	r.commit("email only", Identity{Name: "Carol", Email: "alice@co.com"}, day("2025-07-02", 9), "a.txt")
	r.write("b.txt", "b\n")
	r.commit("name only", Identity{Name: "Alice B", Email: "ab@example.org"}, day("2025-07-02", 10), "b.txt")
	r.write("c.txt", "c\n")
	r.commit("neither", Identity{Name: "Bob", Email: "bob@co.com"}, day("2025-07-02", 11), "c.txt")

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since:        day("2025-07-01", 0),
		Author:       "alice",
		WithMessages: true,
		WithDiffs:    true,
	})
	require.NoError(t, err)

	var messages []string
	for _, c := range res.Commits {
		messages = append(messages, c.Message)
	}
	assert.Equal(t, []string{"name only", "email only"}, messages)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, res.ChangedFiles)
	_, ok := res.Diff("c.txt")
	assert.False(t, ok, "filtered commits contribute no diffs")
}

func TestHistorySinceUsesIdentityWhenNoAuthor(t *testing.T) {
	r := newTestRepo(t)
	r.setIdentity("", "alice@example.com")
	r.write("a.txt", "a\n")
	r.commit("alice", alice, day("2025-07-02", 10), "a.txt")
	r.write("b.txt", "b\n")
	r.commit("bob", bob, day("2025-07-02", 11), "b.txt")

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since:        day("2025-07-01", 0),
		WithMessages: true,
	})
	require.NoError(t, err)

	require.Len(t, res.Commits, 1)
	assert.Equal(t, "alice", res.Commits[0].Message)
}

func TestHistorySinceWithoutIdentityIncludesEveryone(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "a\n")
	r.commit("alice", alice, day("2025-07-02", 10), "a.txt")
	r.write("b.txt", "b\n")
	r.commit("bob", bob, day("2025-07-02", 11), "b.txt")

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since: day("2025-07-01", 0),
	})
	require.NoError(t, err)

	assert.Len(t, res.Commits, 2)
	for _, c := range res.Commits {
		assert.Empty(t, c.Message, "messages are only collected on request")
	}
}

func TestHistorySinceAccumulatesDiffsPerPath(t *testing.T) {
	r := newTestRepo(t)
	r.write("f.txt", "one\n")
	r.commit("add f", alice, day("2025-07-02", 9), "f.txt")
	r.write("f.txt", "one\ntwo\n")
	r.commit("extend f", alice, day("2025-07-02", 10), "f.txt")

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since:     day("2025-07-01", 0),
		WithDiffs: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"f.txt"}, res.ChangedFiles)
	require.Len(t, res.Diffs, 1)

	d := res.Diffs[0]
	assert.Equal(t, 2, d.Insertions)
	assert.Equal(t, 0, d.Deletions)
	assert.Equal(t, 2, strings.Count(d.Diff, "diff --git a/f.txt b/f.txt"))
	assert.Less(t, strings.Index(d.Diff, "+two"), strings.Index(d.Diff, "new file mode"),
		"newest patch comes first")
}

func TestHistorySinceRenamedFile(t *testing.T) {
	r := newTestRepo(t)
	body := "package main\n\nfunc main() {}\n"
	r.write("old.go", body)
	r.commit("add", alice, day("2025-06-30", 9), "old.go")
	r.remove("old.go")
	r.write("new.go", body)
	r.commit("rename", alice, day("2025-07-02", 9), "old.go", "new.go")

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since:     day("2025-07-01", 0),
		WithDiffs: true,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"old.go", "new.go"}, res.ChangedFiles)
	require.Len(t, res.Commits, 1)
	assert.ElementsMatch(t, []string{"old.go", "new.go"}, res.Commits[0].Files)
	for _, path := range res.ChangedFiles {
		assert.NotContains(t, path, "=>")
	}

	added, ok := res.Diff("new.go")
	require.True(t, ok)
	assert.Contains(t, added, "+func main() {}")
	removed, ok := res.Diff("old.go")
	require.True(t, ok)
	assert.Contains(t, removed, "-func main() {}")

	for _, d := range res.Diffs {
		assert.Equal(t, 3, d.Insertions+d.Deletions, d.Path)
	}
}

func TestHistorySinceRecordsRemovedFiles(t *testing.T) {
	r := newTestRepo(t)
	r.write("gone.txt", "bye\n")
	r.commit("add", alice, day("2025-06-01", 9), "gone.txt")
	r.remove("gone.txt")
	r.commit("remove", alice, day("2025-07-02", 9), "gone.txt")

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since:     day("2025-07-01", 0),
		WithDiffs: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"gone.txt"}, res.ChangedFiles)
	diff, ok := res.Diff("gone.txt")
	assert.True(t, ok)
	assert.Contains(t, diff, "-bye")
}

func TestHistorySinceUnbornHead(t *testing.T) {
	r := newTestRepo(t)

	res, err := r.open(RepositoryOptions{}).HistorySince(context.Background(), HistoryQuery{
		Since: day("2025-07-01", 0),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Commits)
	assert.Empty(t, res.Branch)
}

func TestHistorySinceCanceled(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.txt", "a\n")
	r.commit("a", alice, day("2025-07-02", 9), "a.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.open(RepositoryOptions{}).HistorySince(ctx, HistoryQuery{Since: day("2025-07-01", 0)})
	assert.ErrorIs(t, err, context.Canceled)
}
