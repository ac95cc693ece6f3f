package internal

import (
	"fmt"
	"path/filepath"
	"time"
)

// Identity is a committer identity as configured in git (user.name / user.email).
type Identity struct {
	Name  string
	Email string
}

func (i Identity) IsZero() bool {
	return i.Name == "" && i.Email == ""
}

func (i Identity) String() string {
	switch {
	case i.Name != "" && i.Email != "":
		return fmt.Sprintf("%s <%s>", i.Name, i.Email)
	case i.Email != "":
		return i.Email
	default:
		return i.Name
	}
}

// RepositoryRef identifies one scanned repository and the identity used
// as its default author filter.
type RepositoryRef struct {
	Path     string
	Label    string
	Identity Identity
}

func NewRepositoryRef(path string, identity Identity) RepositoryRef {
	return RepositoryRef{
		Path:     path,
		Label:    filepath.Base(path),
		Identity: identity,
	}
}

// FileDiff is the patch text of one path. A diff that could not be computed
// carries the error text instead of failing the whole scan.
type FileDiff struct {
	Path       string
	Diff       string
	Insertions int
	Deletions  int
}

// ChangeSet is the working-tree state of one repository. Added, Modified and
// Removed are disjoint and keep the order in which paths were classified.
type ChangeSet struct {
	Repo     RepositoryRef
	Added    []string
	Modified []string
	Removed  []string
	Diffs    []FileDiff
}

func (c *ChangeSet) IsEmpty() bool {
	return c == nil || len(c.Added)+len(c.Modified)+len(c.Removed) == 0
}

func (c *ChangeSet) Diff(path string) (string, bool) {
	if c == nil {
		return "", false
	}
	return lookupDiff(c.Diffs, path)
}

func (c *ChangeSet) RepoLabel() string {
	if c == nil {
		return ""
	}
	return c.Repo.Label
}

func (c *ChangeSet) FileDiffs() []FileDiff {
	if c == nil {
		return nil
	}
	return c.Diffs
}

type CommitRecord struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string
	Files       []string
}

// HistoryResult holds the commits of one repository since a reference date,
// newest first.
type HistoryResult struct {
	Repo         RepositoryRef
	Branch       string
	Commits      []CommitRecord
	ChangedFiles []string
	Diffs        []FileDiff
}

func (h *HistoryResult) Diff(path string) (string, bool) {
	if h == nil {
		return "", false
	}
	return lookupDiff(h.Diffs, path)
}

func (h *HistoryResult) RepoLabel() string {
	if h == nil {
		return ""
	}
	return h.Repo.Label
}

func (h *HistoryResult) FileDiffs() []FileDiff {
	if h == nil {
		return nil
	}
	return h.Diffs
}

// HistoryQuery selects commits committed on or after Since. An empty Author
// falls back to the repository identity, and to no filter at all when no
// identity is configured.
type HistoryQuery struct {
	Since        time.Time
	WithDiffs    bool
	WithMessages bool
	Author       string
}

func lookupDiff(diffs []FileDiff, path string) (string, bool) {
	for _, d := range diffs {
		if d.Path == path {
			return d.Diff, true
		}
	}
	return "", false
}

// ParseSinceDate parses a calendar day (YYYY-MM-DD) as local midnight.
func ParseSinceDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, s)
	}
	return t, nil
}
