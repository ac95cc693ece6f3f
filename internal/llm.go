package internal

import (
	"context"
	"iter"
	"sync/atomic"
)

// Generator turns a prompt into text, either as one response or as a
// pull-based sequence of chunks ending with a Done chunk.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error]
	Check(ctx context.Context) Health
}

// ObjectGenerator is implemented by backends that support schema-constrained output.
type ObjectGenerator interface {
	GenerateObject(ctx context.Context, prompt string, target any) error
}

type Health struct {
	Available bool
	Message   string
}

// PathsAndSummary is the structured result of reading a free-text daily note.
type PathsAndSummary struct {
	ProjectPaths []string `json:"project_paths"`
	WorkSummary  string   `json:"work_summary"`
}

// singleUse makes seq fail with ErrStreamConsumed when ranged over a second time.
func singleUse[T any](seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		if used.Swap(true) {
			var zero T
			yield(zero, ErrStreamConsumed)
			return
		}
		seq(yield)
	}
}
