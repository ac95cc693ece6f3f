package internal

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultOpenMarker  = "<think>"
	DefaultCloseMarker = "</think>"
)

// HiddenFilter removes open…close sections from text that arrives in
// arbitrary chunks. Whitespace following a closing marker is removed too.
// Text is never emitted while it could still be the start of a section, and
// an opening marker that is never closed suppresses the rest of the stream.
//
// A HiddenFilter belongs to one stream; it is not safe for concurrent use.
type HiddenFilter struct {
	open  string
	close string

	// pending holds bytes not yet known to be visible or hidden. While inside
	// a section it only keeps enough of a tail to recognise the closing marker.
	pending   string
	inside    bool
	trimSpace bool
}

func NewHiddenFilter(open, close string) *HiddenFilter {
	if open == "" {
		open = DefaultOpenMarker
	}
	if close == "" {
		close = DefaultCloseMarker
	}
	return &HiddenFilter{open: open, close: close}
}

// Write consumes one chunk and returns the text that is now known to be visible.
func (f *HiddenFilter) Write(chunk string) string {
	f.pending += chunk

	var out strings.Builder
	for {
		if f.inside {
			i := strings.Index(f.pending, f.close)
			if i < 0 {
				if keep := len(f.close) - 1; len(f.pending) > keep {
					f.pending = f.pending[len(f.pending)-keep:]
				}
				return out.String()
			}
			f.pending = f.pending[i+len(f.close):]
			f.inside = false
			f.trimSpace = true
		}

		if f.trimSpace {
			f.pending = strings.TrimLeftFunc(f.pending, unicode.IsSpace)
			// A multi-byte space may be split across chunks.
			if f.pending == "" || !utf8.FullRuneInString(f.pending) {
				return out.String()
			}
			f.trimSpace = false
		}

		if i := strings.Index(f.pending, f.open); i >= 0 {
			out.WriteString(f.pending[:i])
			f.pending = f.pending[i+len(f.open):]
			f.inside = true
			continue
		}

		n := len(f.pending) - partialPrefixLen(f.pending, f.open)
		out.WriteString(f.pending[:n])
		f.pending = f.pending[n:]
		return out.String()
	}
}

// Flush ends the stream. A held-back partial opening marker turned out to be
// plain text and is returned; an unterminated section is dropped.
func (f *HiddenFilter) Flush() string {
	defer func() {
		f.pending = ""
		f.inside = false
		f.trimSpace = false
	}()
	if f.inside {
		return ""
	}
	return f.pending
}

// partialPrefixLen returns the length of the longest proper prefix of marker
// that s ends with.
func partialPrefixLen(s, marker string) int {
	n := min(len(marker)-1, len(s))
	for ; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

// RemoveHidden applies the same rules as HiddenFilter to a complete text.
func RemoveHidden(text, open, close string) string {
	f := NewHiddenFilter(open, close)
	return f.Write(text) + f.Flush()
}

// Chunk is one unit of a generated stream. The last chunk has Done set and
// carries the complete output rather than an increment.
type Chunk struct {
	Text string
	Done bool
}

// FilterStream turns raw model deltas into chunks. When filter is nil the
// deltas are passed through unchanged. Empty increments are not yielded; the
// final chunk is always yielded once the source ends without error.
func FilterStream(raw iter.Seq2[string, error], filter *HiddenFilter) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		var full strings.Builder

		for delta, err := range raw {
			if err != nil {
				yield(Chunk{}, err)
				return
			}

			text := delta
			if filter != nil {
				text = filter.Write(delta)
			}
			if text == "" {
				continue
			}
			full.WriteString(text)
			if !yield(Chunk{Text: text}, nil) {
				return
			}
		}

		if filter != nil {
			if tail := filter.Flush(); tail != "" {
				full.WriteString(tail)
				if !yield(Chunk{Text: tail}, nil) {
					return
				}
			}
		}
		yield(Chunk{Text: full.String(), Done: true}, nil)
	}
}
