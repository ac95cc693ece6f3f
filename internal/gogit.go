package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

const metadataDir = ".git"

// GitRepository is a read-only handle on one local repository.
type GitRepository struct {
	repo     *git.Repository
	rootPath string
	global   *Identity
	ignore   *IgnoreMatcher
	logger   *zap.Logger
}

// RepositoryOptions configures OpenRepository. GlobalIdentity, when set, is
// used for fields the repository's own config leaves empty.
type RepositoryOptions struct {
	GlobalIdentity *Identity
	Ignore         []string
	Logger         *zap.Logger
}

// OpenRepository opens the repository rooted exactly at path.
func OpenRepository(path string, opts RepositoryOptions) (*GitRepository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRepositoryUnavailable, path, err)
	}

	if _, err := os.Stat(filepath.Join(abs, metadataDir)); err != nil {
		return nil, fmt.Errorf("%w: %s is not a git repository", ErrRepositoryUnavailable, path)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrRepositoryUnavailable, path, err)
	}

	ignore, err := NewIgnoreMatcher(abs)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", IgnoreFilename, err)
	}
	ignore.Extend(NewIgnoreMatcherFromPatterns(abs, opts.Ignore))

	return &GitRepository{
		repo:     repo,
		rootPath: abs,
		global:   opts.GlobalIdentity,
		ignore:   ignore,
		logger:   logger.With(zap.String("repo", abs)),
	}, nil
}

func (r *GitRepository) Path() string {
	return r.rootPath
}

// Ref describes the repository together with its resolved identity.
func (r *GitRepository) Ref() RepositoryRef {
	identity, _ := r.ResolveIdentity()
	return NewRepositoryRef(r.rootPath, identity)
}

// ResolveIdentity reads user.name and user.email from the repository config,
// falling back field by field to the global identity.
func (r *GitRepository) ResolveIdentity() (Identity, bool) {
	var identity Identity

	if cfg, err := r.repo.ConfigScoped(config.LocalScope); err == nil {
		identity.Name = cfg.User.Name
		identity.Email = cfg.User.Email
	}

	if r.global != nil {
		if identity.Name == "" {
			identity.Name = r.global.Name
		}
		if identity.Email == "" {
			identity.Email = r.global.Email
		}
	}

	return identity, !identity.IsZero()
}

// Branch returns the short name of HEAD, or an empty string for an unborn HEAD.
func (r *GitRepository) Branch() (string, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// CurrentChanges classifies uncommitted paths. Passes run in the order
// untracked, worktree-vs-index, index-vs-HEAD and the first classification
// of a path wins.
func (r *GitRepository) CurrentChanges(ctx context.Context, withDiffs bool) (*ChangeSet, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	paths := make([]string, 0, len(status))
	for path := range status {
		if r.ignore.MatchPath(path) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	cs := &ChangeSet{Repo: r.Ref()}
	seen := make(map[string]bool, len(paths))
	classify := func(path string, code git.StatusCode) {
		if seen[path] {
			return
		}
		switch code {
		case git.Untracked, git.Added, git.Copied:
			cs.Added = append(cs.Added, path)
		case git.Modified, git.Renamed, git.UpdatedButUnmerged:
			cs.Modified = append(cs.Modified, path)
		case git.Deleted:
			cs.Removed = append(cs.Removed, path)
		default:
			return
		}
		seen[path] = true
	}

	for _, path := range paths {
		if status[path].Worktree == git.Untracked {
			classify(path, git.Untracked)
		}
	}
	for _, path := range paths {
		switch code := status[path].Worktree; code {
		case git.Modified, git.Deleted:
			classify(path, code)
		}
	}
	for _, path := range paths {
		switch code := status[path].Staging; code {
		case git.Added, git.Modified, git.Deleted:
			classify(path, code)
		}
	}

	if !withDiffs {
		return cs, nil
	}

	headTree, err := r.headTree()
	if err != nil {
		return nil, err
	}

	cs.Diffs = make([]FileDiff, 0, len(cs.Modified))
	for _, path := range cs.Modified {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cs.Diffs = append(cs.Diffs, r.worktreeDiff(worktree, headTree, path))
	}

	return cs, nil
}

func (r *GitRepository) worktreeDiff(worktree *git.Worktree, headTree *object.Tree, path string) FileDiff {
	fd := FileDiff{Path: path}

	from, err := contentFromTree(headTree, path)
	if err != nil {
		r.logger.Warn("read HEAD version", zap.String("path", path), zap.Error(err))
		fd.Diff = diffError(err)
		return fd
	}

	to, err := util.ReadFile(worktree.Filesystem, path)
	if err != nil && !os.IsNotExist(err) {
		r.logger.Warn("read worktree version", zap.String("path", path), zap.Error(err))
		fd.Diff = diffError(err)
		return fd
	}

	text, err := renderUnifiedDiff(path, from, to)
	if err != nil {
		fd.Diff = diffError(err)
		return fd
	}

	fd.Diff = text
	fd.Insertions, fd.Deletions = LineStats(string(from), string(to))
	return fd
}

// HistorySince walks HEAD in committer-time order and collects the commits
// committed on or after q.Since that pass the author filter.
func (r *GitRepository) HistorySince(ctx context.Context, q HistoryQuery) (*HistoryResult, error) {
	result := &HistoryResult{Repo: r.Ref()}

	branch, err := r.Branch()
	if err != nil {
		return nil, err
	}
	result.Branch = branch
	if branch == "" {
		return result, nil
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	match := r.authorMatcher(q.Author)

	since := q.Since
	iter, err := r.repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
		Since: &since,
	})
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	changed := make(map[string]bool)
	diffIndex := make(map[string]int)

	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Committer.When.Before(q.Since) {
			return nil
		}
		if !match(c.Author.Name, c.Author.Email) {
			return nil
		}

		record := CommitRecord{
			Hash:        c.Hash.String(),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			When:        c.Committer.When,
		}
		if q.WithMessages {
			record.Message = strings.TrimSpace(c.Message)
		}

		changes, err := commitChanges(ctx, c, q.WithDiffs)
		if err != nil {
			r.logger.Warn("commit changes", zap.String("commit", c.Hash.String()), zap.Error(err))
		}

		for _, ch := range changes {
			if r.ignore.MatchPath(ch.Path) {
				continue
			}
			record.Files = append(record.Files, ch.Path)
			if !changed[ch.Path] {
				changed[ch.Path] = true
				result.ChangedFiles = append(result.ChangedFiles, ch.Path)
			}
			if !q.WithDiffs {
				continue
			}

			if i, ok := diffIndex[ch.Path]; ok {
				fd := &result.Diffs[i]
				fd.Diff = joinPatches(fd.Diff, ch.Patch)
				fd.Insertions += ch.Insertions
				fd.Deletions += ch.Deletions
				continue
			}
			diffIndex[ch.Path] = len(result.Diffs)
			result.Diffs = append(result.Diffs, FileDiff{
				Path:       ch.Path,
				Diff:       ch.Patch,
				Insertions: ch.Insertions,
				Deletions:  ch.Deletions,
			})
		}

		result.Commits = append(result.Commits, record)
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read commits: %w", err)
	}

	return result, nil
}

// authorMatcher returns a case-insensitive substring matcher over author name
// and email. With no explicit filter it uses the resolved identity, and when
// there is no identity either every commit matches.
func (r *GitRepository) authorMatcher(author string) func(name, email string) bool {
	var needles []string
	if author != "" {
		needles = append(needles, strings.ToLower(author))
	} else if identity, ok := r.ResolveIdentity(); ok {
		for _, s := range []string{identity.Name, identity.Email} {
			if s != "" {
				needles = append(needles, strings.ToLower(s))
			}
		}
	}

	if len(needles) == 0 {
		r.logger.Debug("no author filter resolved, including all commits")
		return func(string, string) bool { return true }
	}

	return func(name, email string) bool {
		name, email = strings.ToLower(name), strings.ToLower(email)
		for _, n := range needles {
			if strings.Contains(name, n) || strings.Contains(email, n) {
				return true
			}
		}
		return false
	}
}

func (r *GitRepository) headTree() (*object.Tree, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("get HEAD commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get HEAD tree: %w", err)
	}
	return tree, nil
}

// commitChange is one path touched by a commit. A rename shows up as a
// deletion of the old path and an addition of the new one.
type commitChange struct {
	Path       string
	Patch      string
	Insertions int
	Deletions  int
}

// commitChanges lists the paths changed by c against its first parent. Rename
// detection stays off so every entry is a real path. Patches and line counts
// are only rendered when withPatches is set.
func commitChanges(ctx context.Context, c *object.Commit, withPatches bool) ([]commitChange, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("get parent: %w", err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("get parent tree: %w", err)
		}
	}

	changes, err := object.DiffTreeContext(ctx, parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	out := make([]commitChange, 0, len(changes))
	for _, change := range changes {
		cc := commitChange{Path: change.To.Name}
		if cc.Path == "" {
			cc.Path = change.From.Name
		}

		if withPatches {
			patch, err := change.PatchContext(ctx)
			if err != nil {
				cc.Patch = diffError(err)
			} else {
				cc.Patch = patch.String()
				for _, st := range patch.Stats() {
					cc.Insertions += st.Addition
					cc.Deletions += st.Deletion
				}
			}
		}
		out = append(out, cc)
	}

	return out, nil
}

func contentFromTree(tree *object.Tree, path string) ([]byte, error) {
	if tree == nil {
		return nil, nil
	}
	f, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func joinPatches(existing, next string) string {
	switch {
	case existing == "":
		return next
	case next == "":
		return existing
	default:
		return strings.TrimRight(existing, "\n") + "\n\n" + next
	}
}

func diffError(err error) string {
	return fmt.Sprintf("Error getting diff: %v", err)
}
