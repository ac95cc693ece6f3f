package v1

import "time"

// UpdateRequest selects the evidence for one daily update. An empty Since
// means yesterday.
type UpdateRequest struct {
	Since            string `json:"since,omitempty"`
	Author           string `json:"author,omitempty"`
	WithDiffs        bool   `json:"with_diffs,omitempty"`
	WithCurrent      bool   `json:"with_current,omitempty"`
	PerFileSummaries bool   `json:"per_file_summaries,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// Chunk is one piece of a streamed update. The last chunk has Done set and
// holds the complete text.
type Chunk struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Commit is one commit found in a repository's history.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
	Message string    `json:"message"`
	Files   []string  `json:"files"`
}

// RepositoryChanges is what one repository contributed. Available is false
// when the repository could not be read.
type RepositoryChanges struct {
	Path      string   `json:"path"`
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Branch    string   `json:"branch,omitempty"`
	Commits   []Commit `json:"commits,omitempty"`
	Files     []string `json:"files,omitempty"`
	Added     []string `json:"added,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}
